package manager

import (
	"bytes"
	"context"
	"testing"
	"time"

	"inferd/internal/engine/enginetest"
	"inferd/pkg/types"
)

func TestUnloadRemovesInstance(t *testing.T) {
	fake := enginetest.New()
	fake.EOSAt = 0
	pub := NewMemoryPublisher()
	m := oneModelManager(t, fake, "m1")
	m.SetPublisher(pub)

	if err := m.EnsureInstance(context.Background(), "m1"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := m.Unload("m1"); err != nil {
		t.Fatalf("unload: %v", err)
	}

	m.mu.RLock()
	_, ok := m.instances["m1"]
	used := m.usedEstMB
	m.mu.RUnlock()
	if ok {
		t.Fatalf("instance survived unload")
	}
	if used != 0 {
		t.Fatalf("usedEstMB = %d after unload, want 0", used)
	}
	if !fake.Loaded()[0].Closed() {
		t.Fatalf("engine model not closed")
	}

	names := pub.Names()
	sawStart, sawDone := false, false
	for _, n := range names {
		if n == "unload_start" {
			sawStart = true
		}
		if n == "unload_done" {
			sawDone = true
		}
	}
	if !sawStart || !sawDone {
		t.Fatalf("missing unload events in %v", names)
	}

	if err := m.Unload("m1"); err == nil || !IsModelNotFound(err) {
		t.Fatalf("second unload should report not found, got %v", err)
	}
}

func TestUnloadNotLoaded(t *testing.T) {
	m := testManager(t, enginetest.New(), ManagerConfig{})
	if err := m.Unload("ghost"); err == nil || !IsModelNotFound(err) {
		t.Fatalf("expected model not found, got %v", err)
	}
	if err := m.Unload(""); err == nil || !IsModelNotFound(err) {
		t.Fatalf("expected model not found for empty id, got %v", err)
	}
}

func TestUnloadWaitsForInflightGeneration(t *testing.T) {
	fake := enginetest.New()
	fake.Script = []string{"a", "b", "c"}
	fake.EOSAt = 3
	fake.StepDelay = 5 * time.Millisecond
	p := createModelFile(t, t.TempDir(), "m.gguf", 1)
	m := testManager(t, fake, ManagerConfig{
		Registry:     []types.Model{{ID: "m", Path: p}},
		DefaultModel: "m",
		DrainTimeout: 2 * time.Second,
	})
	if err := m.EnsureInstance(context.Background(), "m"); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	done := make(chan string, 1)
	started := make(chan struct{})
	go func() {
		var buf bytes.Buffer
		first := true
		flush := func() {
			if first {
				first = false
				close(started)
			}
		}
		req := types.GenerateRequest{Prompt: "hi", Stream: true, MaxTokens: 3}
		if err := m.Generate(context.Background(), req, &buf, flush); err != nil {
			t.Errorf("generate: %v", err)
			done <- ""
			return
		}
		done <- buf.String()
	}()

	<-started
	if err := m.Unload("m"); err != nil {
		t.Fatalf("unload: %v", err)
	}
	out := <-done
	if out == "" {
		t.Fatalf("generation failed during drain")
	}
	fl := lastLine(t, out)
	if fl.FinishReason != "stop" {
		t.Fatalf("in-flight generation was interrupted: %+v", fl)
	}
	if !fake.Loaded()[0].Closed() {
		t.Fatalf("model not closed after drain")
	}
}

func TestUnloadCancelsAfterDrainTimeout(t *testing.T) {
	fake := enginetest.New()
	fake.StepDelay = 20 * time.Millisecond
	pub := NewMemoryPublisher()
	p := createModelFile(t, t.TempDir(), "m.gguf", 1)
	m := testManager(t, fake, ManagerConfig{
		Registry:     []types.Model{{ID: "m", Path: p}},
		DefaultModel: "m",
		DrainTimeout: 30 * time.Millisecond,
	})
	m.SetPublisher(pub)
	if err := m.EnsureInstance(context.Background(), "m"); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	done := make(chan string, 1)
	started := make(chan struct{})
	go func() {
		var buf bytes.Buffer
		first := true
		flush := func() {
			if first {
				first = false
				close(started)
			}
		}
		req := types.GenerateRequest{Prompt: "hi", Stream: true, MaxTokens: 1000}
		if err := m.Generate(context.Background(), req, &buf, flush); err != nil {
			t.Errorf("generate: %v", err)
			done <- ""
			return
		}
		done <- buf.String()
	}()

	<-started
	if err := m.Unload("m"); err != nil {
		t.Fatalf("unload: %v", err)
	}
	out := <-done
	if out == "" {
		t.Fatalf("generation failed during forced drain")
	}
	fl := lastLine(t, out)
	if fl.FinishReason != "cancel" {
		t.Fatalf("finish reason = %q, want cancel after drain timeout", fl.FinishReason)
	}
	if fl.Content == "" {
		t.Fatalf("partial output lost on forced drain")
	}

	sawTimeout := false
	for _, n := range pub.Names() {
		if n == "unload_timeout" {
			sawTimeout = true
		}
	}
	if !sawTimeout {
		t.Fatalf("no unload_timeout event in %v", pub.Names())
	}
}

func TestUnloadRefusesNewWorkWhileDraining(t *testing.T) {
	fake := enginetest.New()
	fake.EOSAt = 0
	m := oneModelManager(t, fake, "m1")
	if err := m.EnsureInstance(context.Background(), "m1"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	m.mu.Lock()
	m.instances["m1"].State = StateDraining
	m.mu.Unlock()

	var buf bytes.Buffer
	err := m.Generate(context.Background(), types.GenerateRequest{Prompt: "hi"}, &buf, nil)
	if err == nil || !IsTooBusy(err) {
		t.Fatalf("expected too busy while draining, got %v", err)
	}
}

package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"inferd/internal/engine"
	"inferd/internal/engine/enginetest"
)

func TestStreamItemsAreCumulativePrefixExtensions(t *testing.T) {
	eng := enginetest.New()
	eng.Script = []string{"one ", "two ", "three"}
	eng.EOSAt = 3
	h := loadTestHandle(t, eng, engine.ModelParams{CtxSize: 512}, 0)
	defer h.Release()

	s, err := h.GenerateStream(context.Background(), "hi", Params{MaxNewTokens: 8})
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}
	defer s.Close()

	var items []string
	for item := range s.Text() {
		items = append(items, item)
	}
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}
	for i := 1; i < len(items); i++ {
		if !strings.HasPrefix(items[i], items[i-1]) || len(items[i]) <= len(items[i-1]) {
			t.Fatalf("item %d is not a strict prefix extension: %q -> %q", i, items[i-1], items[i])
		}
	}

	res, err := s.Result()
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if res.Text != "one two three" || res.Text != items[len(items)-1] {
		t.Fatalf("final text %q, last item %q", res.Text, items[len(items)-1])
	}
	if res.FinishReason != engine.ReasonStop {
		t.Fatalf("FinishReason = %q", res.FinishReason)
	}
}

func TestStreamCloseMidwayStopsProducerAndFreesHandle(t *testing.T) {
	eng := enginetest.New()
	eng.Script = []string{"a", "b", "c", "d", "e", "f"}
	h := loadTestHandle(t, eng, engine.ModelParams{CtxSize: 512}, 0)
	defer h.Release()

	// Far more tokens than the stream buffer holds, so the producer cannot
	// finish before Close and the cancel path is always exercised.
	s, err := h.GenerateStream(context.Background(), "hi", Params{MaxNewTokens: 1000})
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}

	first, ok := <-s.Text()
	if !ok {
		t.Fatalf("stream closed before first item")
	}
	s.Close()

	res, err := s.Result()
	if err != nil {
		t.Fatalf("Result after Close: %v", err)
	}
	if res.FinishReason != engine.ReasonCancel {
		t.Fatalf("FinishReason = %q, want cancel", res.FinishReason)
	}
	if !strings.HasPrefix(res.Text, first) {
		t.Fatalf("partial %q does not extend first item %q", res.Text, first)
	}

	// The slot must be free again: a fresh generation works immediately.
	if h.Busy() {
		t.Fatalf("handle still busy after Close")
	}
	if _, err := h.Generate(context.Background(), "hi", Params{MaxNewTokens: 1}, nil); err != nil {
		t.Fatalf("Generate after Close: %v", err)
	}
}

func TestStreamHoldsBusySlotWhileOpen(t *testing.T) {
	eng := enginetest.New()
	eng.Script = []string{"a", "b", "c", "d"}
	h := loadTestHandle(t, eng, engine.ModelParams{CtxSize: 512}, 0)
	defer h.Release()

	// The producer blocks on the bounded buffer long before 1000 tokens,
	// keeping the slot held until Close.
	s, err := h.GenerateStream(context.Background(), "hi", Params{MaxNewTokens: 1000})
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}
	defer s.Close()

	if _, err := h.Generate(context.Background(), "hi", Params{MaxNewTokens: 1}, nil); !IsBusy(err) {
		t.Fatalf("err = %v, want busy", err)
	}
	if _, err := h.GenerateStream(context.Background(), "hi", Params{MaxNewTokens: 1}); !IsBusy(err) {
		t.Fatalf("second stream err = %v, want busy", err)
	}
}

func TestStreamCloseIdempotentAfterDrain(t *testing.T) {
	eng := enginetest.New()
	eng.Script = []string{"a", "b"}
	eng.EOSAt = 2
	h := loadTestHandle(t, eng, engine.ModelParams{CtxSize: 512}, 0)
	defer h.Release()

	s, err := h.GenerateStream(context.Background(), "hi", Params{MaxNewTokens: 4})
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}
	for range s.Text() {
	}
	s.Close()
	s.Close()

	res, err := s.Result()
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if res.FinishReason != engine.ReasonStop {
		t.Fatalf("FinishReason = %q", res.FinishReason)
	}
}

func TestStreamReleasesSlotOnEngineError(t *testing.T) {
	eng := enginetest.New()
	eng.CompleteErr = errors.New("backend exploded")
	h := loadTestHandle(t, eng, engine.ModelParams{CtxSize: 512}, 0)
	defer h.Release()

	s, err := h.GenerateStream(context.Background(), "hi", Params{MaxNewTokens: 2})
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}
	for range s.Text() {
	}

	if _, err := s.Result(); err == nil {
		t.Fatalf("Result: expected engine error")
	}
	if h.Busy() {
		t.Fatalf("handle still busy after producer error")
	}
}

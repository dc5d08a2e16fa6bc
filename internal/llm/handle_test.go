package llm

import (
	"context"
	"math/rand"
	"strings"
	"testing"
	"time"

	"inferd/internal/engine"
	"inferd/internal/engine/enginetest"
)

func loadTestHandle(t *testing.T, eng *enginetest.Engine, params engine.ModelParams, capacity int64) *Handle {
	t.Helper()
	h, err := Load(eng, engine.CPUModern, "/models/fake.gguf", params, capacity)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return h
}

func TestLoadAttachesCacheWhenCapacitySet(t *testing.T) {
	eng := enginetest.New()
	h := loadTestHandle(t, eng, engine.ModelParams{CtxSize: 512}, 1_000_000_000)
	defer h.Release()

	m := eng.Loaded()[0]
	c := m.AttachedCache()
	if c == nil {
		t.Fatalf("no cache attached")
	}
	if c.Capacity() != 1_000_000_000 {
		t.Fatalf("cache capacity = %d", c.Capacity())
	}
	if h.CacheCapacity() != 1_000_000_000 {
		t.Fatalf("handle cache capacity = %d", h.CacheCapacity())
	}
}

func TestLoadSkipsCacheWhenCapacityZero(t *testing.T) {
	eng := enginetest.New()
	h := loadTestHandle(t, eng, engine.ModelParams{CtxSize: 512}, 0)
	defer h.Release()

	if eng.Loaded()[0].AttachedCache() != nil {
		t.Fatalf("cache attached despite zero capacity")
	}
}

func TestReleaseIdempotent(t *testing.T) {
	eng := enginetest.New()
	h := loadTestHandle(t, eng, engine.ModelParams{CtxSize: 512}, 1000)

	if err := h.Release(); err != nil {
		t.Fatalf("first Release: %v", err)
	}
	// The fake model errors on a double Close, so a nil here proves the
	// second call never reached the engine.
	if err := h.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}
	if !eng.Loaded()[0].Closed() {
		t.Fatalf("model not closed")
	}
}

func TestReleaseWaitsForInflightGeneration(t *testing.T) {
	eng := enginetest.New()
	eng.Script = []string{"a", "b", "c", "d"}
	eng.StepDelay = 5 * time.Millisecond
	h := loadTestHandle(t, eng, engine.ModelParams{CtxSize: 512}, 0)

	started := make(chan struct{})
	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := h.Generate(context.Background(), "hi", Params{MaxNewTokens: 4}, func(string) {
			select {
			case <-started:
			default:
				close(started)
			}
		})
		done <- outcome{res, err}
	}()

	<-started
	if err := h.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	// Had Release freed the model early, the engine would have failed the
	// run with a closed-model error.
	out := <-done
	if out.err != nil {
		t.Fatalf("Generate: %v", out.err)
	}
	if out.res.Text != "abcd" {
		t.Fatalf("Text = %q, want full run before release", out.res.Text)
	}
}

func TestGenerateAfterReleaseFails(t *testing.T) {
	eng := enginetest.New()
	h := loadTestHandle(t, eng, engine.ModelParams{CtxSize: 512}, 0)
	if err := h.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	_, err := h.Generate(context.Background(), "hi", Params{MaxNewTokens: 2}, nil)
	if !IsReleased(err) {
		t.Fatalf("err = %v, want released", err)
	}
	if _, err := h.Encode("hi"); !IsReleased(err) {
		t.Fatalf("Encode err = %v, want released", err)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	eng := enginetest.New()
	h := loadTestHandle(t, eng, engine.ModelParams{CtxSize: 512}, 0)
	defer h.Release()

	alphabet := []rune("abc déé漢字mañana🙂 \n\t")
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		var sb strings.Builder
		n := rng.Intn(200)
		for j := 0; j < n; j++ {
			sb.WriteRune(alphabet[rng.Intn(len(alphabet))])
		}
		want := sb.String()

		toks, err := h.Encode(want)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		got, err := h.DecodeText(toks)
		if err != nil {
			t.Fatalf("DecodeText: %v", err)
		}
		if got != want {
			t.Fatalf("round trip mismatch: %q != %q", got, want)
		}
	}
}

func TestDecodeTextRejectsInvalidUTF8(t *testing.T) {
	eng := enginetest.New()
	h := loadTestHandle(t, eng, engine.ModelParams{CtxSize: 512}, 0)
	defer h.Release()

	// 0xFF can never start a UTF-8 sequence.
	_, err := h.DecodeText([]int32{0xFF})
	if !IsEncoding(err) {
		t.Fatalf("err = %v, want encoding error", err)
	}

	// Decode itself hands back raw bytes without complaint.
	b, err := h.Decode([]int32{0xFF})
	if err != nil || len(b) != 1 || b[0] != 0xFF {
		t.Fatalf("Decode = %v, %v", b, err)
	}
}

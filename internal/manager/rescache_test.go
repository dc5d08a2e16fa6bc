package manager

import (
	"testing"

	"inferd/internal/engine/enginetest"
	"inferd/internal/llm"
)

func TestResultKeyDistinguishesRequests(t *testing.T) {
	base := llm.Params{MaxNewTokens: 16, Seed: 42}
	k := resultKey("m1", "hello", base)
	if k == "" {
		t.Fatalf("empty key")
	}
	if k != resultKey("m1", "hello", base) {
		t.Fatalf("key not stable for identical requests")
	}

	other := base
	other.Seed = 43
	if k == resultKey("m1", "hello", other) {
		t.Fatalf("seed change did not change the key")
	}
	if k == resultKey("m2", "hello", base) {
		t.Fatalf("model change did not change the key")
	}
	if k == resultKey("m1", "hello!", base) {
		t.Fatalf("prompt change did not change the key")
	}

	other = base
	other.Temperature = 0.7
	if k == resultKey("m1", "hello", other) {
		t.Fatalf("sampling change did not change the key")
	}
}

func TestResultCacheRoundTrip(t *testing.T) {
	m := testManager(t, enginetest.New(), ManagerConfig{})
	if _, ok := m.cachedResult("missing"); ok {
		t.Fatalf("hit on an empty cache")
	}
	res := llm.Result{Text: "out", PromptTokens: 2, CompletionTokens: 1, FinishReason: "stop"}
	m.storeResult("k", res)
	got, ok := m.cachedResult("k")
	if !ok || got != res {
		t.Fatalf("round trip = %+v ok=%v", got, ok)
	}
}

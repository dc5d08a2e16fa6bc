package engine

import "context"

// Variant names one compute backend an engine can serve.
type Variant string

const (
	CPUModern   Variant = "cpu-modern"
	CPULegacy   Variant = "cpu-legacy"
	AccelModern Variant = "accel-modern"
	AccelLegacy Variant = "accel-legacy"
)

func (v Variant) String() string { return string(v) }

// Chunk is one incremental piece of completion output.
type Chunk struct {
	Text string
}

// Engine constructs models and caches for one or more variants.
type Engine interface {
	// Name identifies the provider in logs and status output.
	Name() string

	// Load opens the model file and prepares it for completion calls.
	Load(path string, params ModelParams) (Model, error)

	// NewCache allocates a completion cache holding up to capacity bytes.
	// Providers without a cache implementation return ErrUnsupported.
	NewCache(capacity int64) (Cache, error)
}

// Model is one loaded model. The tokenizer and the generator are the same
// underlying object; there is no separate tokenizer handle.
//
// Implementations are not safe for concurrent Complete calls; callers are
// expected to serialize access (internal/llm.Handle does).
type Model interface {
	// Tokenize converts text to token ids.
	Tokenize(text string) ([]int32, error)

	// Detokenize converts token ids back to bytes. The result is not
	// guaranteed to be valid UTF-8 at arbitrary token boundaries.
	Detokenize(toks []int32) ([]byte, error)

	// EOS reports the end-of-sequence token id, or -1 when the provider
	// cannot determine it.
	EOS() int32

	// SetCache attaches a cache built by the owning engine's NewCache.
	SetCache(c Cache) error

	// Complete streams a completion for prompt. emit is called once per
	// chunk; returning false stops the generation early (treated as a
	// cancellation, not an error). procs are applied to the logits on every
	// step, in order. The returned reason is "stop" when the model ended
	// naturally, "length" when the token limit was hit, and "" when emit
	// stopped the run.
	Complete(ctx context.Context, prompt string, p CompletionParams, procs []LogitsProcessor, emit func(Chunk) bool) (reason string, err error)

	// Close releases the model. Safe to call once; Handle guarantees that.
	Close() error
}

// Cache is an opaque completion cache attached to a Model.
type Cache interface {
	// Capacity reports the configured byte capacity.
	Capacity() int64

	// Close releases cache resources.
	Close() error
}

// Finish reasons reported by Complete and carried through the stack.
const (
	ReasonStop   = "stop"
	ReasonLength = "length"
	ReasonCancel = "cancel"
)

package engine

// ModelParams is the immutable load-time configuration snapshot for one
// model. It is derived once from the runtime config and never mutated after
// Load.
type ModelParams struct {
	// CtxSize is the context window in tokens.
	CtxSize int

	// Seed passed to the engine at load time; 0 lets the engine choose.
	Seed int

	// Threads used for CPU inference; 0 lets the engine choose.
	Threads int

	// BatchSize for prompt processing; 0 lets the engine choose.
	BatchSize int

	// UseMmap maps the model file instead of reading it.
	UseMmap bool

	// UseMlock pins model memory.
	UseMlock bool

	// GPULayers offloaded to an accelerator; 0 keeps everything on CPU.
	GPULayers int

	// RopeFreqBase overrides the RoPE base frequency when > 0.
	RopeFreqBase float32

	// RopeFreqScale is the inverse of the positional-embedding compression
	// factor; 0 means unscaled.
	RopeFreqScale float32

	// TensorSplit gives per-device proportions for multi-GPU setups; nil
	// when not configured.
	TensorSplit []float32

	// Legacy carries fields only meaningful for the legacy format family;
	// nil for modern (gguf) models.
	Legacy *LegacyParams
}

// LegacyParams are the extra knobs the ggml-era loaders require.
type LegacyParams struct {
	// GroupedQueryAttn is the grouped-query attention factor (n_gqa).
	GroupedQueryAttn int

	// RMSNormEps overrides the RMS norm epsilon when > 0.
	RMSNormEps float32
}

// CompletionParams are the per-call sampling settings for Complete.
type CompletionParams struct {
	MaxTokens     int
	Temperature   float32
	TopP          float32
	TopK          int
	RepeatPenalty float32

	// TFSZ is the tail-free sampling z parameter; 1.0 disables it.
	TFSZ float32

	// Mirostat mode: 0 off, 1 or 2 select the algorithm version.
	Mirostat    int
	MirostatTau float32
	MirostatEta float32

	// Seed for this call; 0 lets the engine choose.
	Seed int

	// Stop sequences that end the generation when matched.
	Stop []string
}

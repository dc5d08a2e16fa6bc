package types

// Model describes one entry in the scanned model catalog.
type Model struct {
	// Stable identifier, currently the file name.
	// example: tinyllama-q4.gguf
	ID string `json:"id" example:"tinyllama-q4.gguf"`
	// Human-readable name.
	// example: tinyllama-q4.gguf
	Name string `json:"name" example:"tinyllama-q4.gguf"`
	// Absolute path to the model file.
	Path string `json:"path"`
	// Quantization label when it can be derived from the file name.
	// example: q4_k_m
	Quant string `json:"quant,omitempty" example:"q4_k_m"`
	// Format family: "modern" (gguf) or "legacy" (ggml-era containers).
	// example: modern
	Family string `json:"family,omitempty" example:"modern"`
	// File size in bytes.
	// example: 668788096
	SizeBytes int64 `json:"size_bytes,omitempty" example:"668788096"`
}

// GenerateRequest is the payload for POST /v1/generate.
type GenerateRequest struct {
	// Optional model identifier. If empty, the server default is used.
	// example: tinyllama-q4.gguf
	Model string `json:"model,omitempty" example:"tinyllama-q4.gguf"`
	// Required prompt text to generate a completion for.
	// example: Write a haiku about the ocean.
	Prompt string `json:"prompt" example:"Write a haiku about the ocean."`
	// If true, stream results as NDJSON token lines; otherwise one JSON object.
	// example: true
	Stream bool `json:"stream,omitempty" example:"true"`
	// Maximum number of new tokens to generate.
	// example: 128
	MaxTokens int `json:"max_tokens,omitempty" example:"128"`
	// Sampling temperature (higher = more random).
	// example: 0.7
	Temperature float64 `json:"temperature,omitempty" example:"0.7"`
	// Nucleus sampling probability.
	// example: 0.9
	TopP float64 `json:"top_p,omitempty" example:"0.9"`
	// Top-K sampling: limit candidates to top K tokens.
	// example: 40
	TopK int `json:"top_k,omitempty" example:"40"`
	// Repeat penalty applied to recent tokens.
	// example: 1.1
	RepeatPenalty float64 `json:"repeat_penalty,omitempty" example:"1.1"`
	// Tail-free sampling parameter z (1.0 disables it).
	// example: 1.0
	TFSZ float64 `json:"tfs_z,omitempty" example:"1.0"`
	// Mirostat mode: 0 off, 1 or 2 select the algorithm version.
	// example: 0
	Mirostat int `json:"mirostat,omitempty" example:"0"`
	// Mirostat target entropy.
	// example: 5.0
	MirostatTau float64 `json:"mirostat_tau,omitempty" example:"5.0"`
	// Mirostat learning rate.
	// example: 0.1
	MirostatEta float64 `json:"mirostat_eta,omitempty" example:"0.1"`
	// Forbid the end-of-sequence token so generation runs to max_tokens.
	// example: false
	BanEOS bool `json:"ban_eos_token,omitempty" example:"false"`
	// Random seed for reproducibility; 0 or omitted lets the engine choose.
	// example: 42
	Seed int64 `json:"seed,omitempty" example:"42"`
	// Optional stop sequences. Generation stops when any sequence is matched.
	// example: ["\n\n","END"]
	Stop []string `json:"stop,omitempty" example:"[\"\\n\\n\",\"END\"]"`
	// Context window override used to size the prompt budget; 0 uses the
	// configured context length.
	// example: 2048
	TruncationLength int `json:"truncation_length,omitempty" example:"2048"`
}

// Usage reports token accounting for one completed generation.
type Usage struct {
	// Tokens consumed by the (truncated) prompt.
	// example: 12
	PromptTokens int `json:"prompt_tokens" example:"12"`
	// Tokens produced by the engine.
	// example: 64
	CompletionTokens int `json:"completion_tokens" example:"64"`
	// Sum of prompt and completion tokens.
	// example: 76
	TotalTokens int `json:"total_tokens" example:"76"`
}

// TokenLine is one NDJSON line of a streaming generate response.
type TokenLine struct {
	// Incremental text chunk.
	// example: blue
	Token string `json:"token" example:"blue"`
}

// FinalLine terminates a streaming generate response.
type FinalLine struct {
	// Always true on the terminating line.
	// example: true
	Done bool `json:"done" example:"true"`
	// Generation id assigned by the server.
	// example: 7b1c3e04-92f1-4b2e-a6b4-0d5d4f9e2f10
	ID string `json:"id" example:"7b1c3e04-92f1-4b2e-a6b4-0d5d4f9e2f10"`
	// Model that served the request.
	// example: tinyllama-q4.gguf
	Model string `json:"model" example:"tinyllama-q4.gguf"`
	// Full accumulated completion text.
	Content string `json:"content"`
	// Why generation ended: stop, length or cancel.
	// example: stop
	FinishReason string `json:"finish_reason" example:"stop"`
	// Token accounting.
	Usage Usage `json:"usage"`
}

// GenerateResponse is the buffered (non-streaming) generate payload.
type GenerateResponse struct {
	// Generation id assigned by the server.
	// example: 7b1c3e04-92f1-4b2e-a6b4-0d5d4f9e2f10
	ID string `json:"id" example:"7b1c3e04-92f1-4b2e-a6b4-0d5d4f9e2f10"`
	// Model that served the request.
	// example: tinyllama-q4.gguf
	Model string `json:"model" example:"tinyllama-q4.gguf"`
	// Full completion text.
	Content string `json:"content"`
	// Why generation ended: stop, length or cancel.
	// example: stop
	FinishReason string `json:"finish_reason" example:"stop"`
	// Token accounting.
	Usage Usage `json:"usage"`
}

// ModelsResponse wraps the list of models returned by GET /v1/models.
type ModelsResponse struct {
	// List of available models.
	Models []Model `json:"models"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// InstanceStatus summarizes one loaded instance for /v1/status.
type InstanceStatus struct {
	// ID of the model this instance serves.
	// example: tinyllama-q4.gguf
	ModelID string `json:"model_id" example:"tinyllama-q4.gguf"`
	// Lifecycle state: loading, ready or draining.
	// example: ready
	State string `json:"state" example:"ready"`
	// Format family the instance was loaded as.
	// example: modern
	Family string `json:"family" example:"modern"`
	// Engine variant serving the instance.
	// example: cpu-modern
	Variant string `json:"variant" example:"cpu-modern"`
	// Last time this instance served a request (unix seconds).
	// example: 1700000000
	LastUsed int64 `json:"last_used_unix" example:"1700000000"`
	// Estimated resident memory in MB.
	// example: 1200
	EstMemMB int `json:"est_mem_mb" example:"1200"`
	// 1 while a generation is in flight on this instance.
	// example: 0
	Inflight int `json:"inflight" example:"0"`
	// TCP port used by the managed runtime (subprocess engine only).
	// example: 30001
	Port int `json:"port,omitempty" example:"30001"`
	// Process ID of the managed runtime (subprocess engine only).
	// example: 12345
	PID int `json:"pid,omitempty" example:"12345"`
}

// PreflightReport describes what the engine layer can offer on this host.
type PreflightReport struct {
	// True when the in-process engine was compiled in.
	// example: false
	CgoEngine bool `json:"cgo_engine" example:"false"`
	// True when the in-process engine was built with CUDA support.
	// example: false
	CUDA bool `json:"cuda" example:"false"`
	// Resolved llama-server binary path, when found.
	// example: /usr/local/bin/llama-server
	ServerBin string `json:"server_bin,omitempty" example:"/usr/local/bin/llama-server"`
	// True when a llama-server binary or external URL is usable.
	// example: true
	ServerAvailable bool `json:"server_available" example:"true"`
	// Engine variants registered at startup.
	// example: ["cpu-modern","cpu-legacy"]
	Variants []string `json:"variants"`
	// Probe error, if any.
	Error string `json:"error,omitempty"`
}

// StatusResponse is returned by GET /v1/status.
type StatusResponse struct {
	// Loaded/managed instances.
	Instances []InstanceStatus `json:"instances"`
	// Memory budget in MB across all instances (0 = unlimited).
	// example: 8192
	BudgetMB int `json:"budget_mb" example:"8192"`
	// Estimated used memory in MB.
	// example: 2048
	UsedMB int `json:"used_est_mb" example:"2048"`
	// Reserved memory margin in MB.
	// example: 512
	MarginMB int `json:"margin_mb" example:"512"`
	// Requests currently waiting in the admission queue.
	// example: 0
	QueueLen int `json:"queue_len" example:"0"`
	// Maximum queued requests allowed before backpressure triggers.
	// example: 32
	MaxQueueDepth int `json:"max_queue_depth" example:"32"`
	// Generations currently in flight across all instances.
	// example: 1
	Inflight int `json:"inflight" example:"1"`
	// Overall manager state (e.g., ready, error).
	// example: ready
	State string `json:"state" example:"ready"`
	// Number of instances currently loading.
	// example: 0
	WarmupsInProgress int `json:"warmups_in_progress" example:"0"`
	// Number of instances currently draining (unload in progress).
	// example: 0
	DrainingCount int `json:"draining_count" example:"0"`
	// Last error observed by the manager (if any).
	LastError string `json:"last_error,omitempty"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
	// Total number of evictions performed to stay inside the budget.
	// example: 5
	EvictionsTotal uint64 `json:"evictions_total" example:"5"`
	// Total number of model loads.
	// example: 12
	LoadsTotal uint64 `json:"loads_total" example:"12"`
	// Engine availability probe.
	Preflight PreflightReport `json:"preflight"`
}

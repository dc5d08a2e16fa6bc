package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"inferd/internal/engine"
)

// Config holds every runtime parameter of the daemon. File values overlay
// Default(); flags overlay the file in cmd.
type Config struct {
	// Server.
	Addr                   string   `json:"addr" yaml:"addr" toml:"addr"`
	LogLevel               string   `json:"log_level" yaml:"log_level" toml:"log_level"`
	MaxBodyBytes           int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	GenerateTimeoutSeconds int      `json:"generate_timeout_seconds" yaml:"generate_timeout_seconds" toml:"generate_timeout_seconds"`
	CORSEnabled            bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins            []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`

	// Model catalog.
	ModelsDir    string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	DefaultModel string `json:"default_model" yaml:"default_model" toml:"default_model"`

	// Engine selection: "auto", "server" (managed llama-server) or "llama"
	// (in-process, needs the llama build tag).
	Engine  string `json:"engine" yaml:"engine" toml:"engine"`
	CPUOnly bool   `json:"cpu_only" yaml:"cpu_only" toml:"cpu_only"`

	// Model load parameters, read once per load.
	CtxSize          int     `json:"ctx_size" yaml:"ctx_size" toml:"ctx_size"`
	Threads          int     `json:"threads" yaml:"threads" toml:"threads"`
	BatchSize        int     `json:"batch_size" yaml:"batch_size" toml:"batch_size"`
	GPULayers        int     `json:"gpu_layers" yaml:"gpu_layers" toml:"gpu_layers"`
	NoMmap           bool    `json:"no_mmap" yaml:"no_mmap" toml:"no_mmap"`
	Mlock            bool    `json:"mlock" yaml:"mlock" toml:"mlock"`
	Seed             int     `json:"seed" yaml:"seed" toml:"seed"`
	RopeFreqBase     float64 `json:"rope_freq_base" yaml:"rope_freq_base" toml:"rope_freq_base"`
	CompressPosEmb   float64 `json:"compress_pos_emb" yaml:"compress_pos_emb" toml:"compress_pos_emb"`
	TensorSplit      string  `json:"tensor_split" yaml:"tensor_split" toml:"tensor_split"`
	CacheCapacity    string  `json:"cache_capacity" yaml:"cache_capacity" toml:"cache_capacity"`
	GroupedQueryAttn int     `json:"n_gqa" yaml:"n_gqa" toml:"n_gqa"`
	RMSNormEps       float64 `json:"rms_norm_eps" yaml:"rms_norm_eps" toml:"rms_norm_eps"`

	// Generation defaults for requests that omit them.
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`

	// Admission and memory accounting.
	MemBudgetMB         int `json:"mem_budget_mb" yaml:"mem_budget_mb" toml:"mem_budget_mb"`
	MemMarginMB         int `json:"mem_margin_mb" yaml:"mem_margin_mb" toml:"mem_margin_mb"`
	MaxQueueDepth       int `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
	MaxWaitSeconds      int `json:"max_wait_seconds" yaml:"max_wait_seconds" toml:"max_wait_seconds"`
	DrainTimeoutSeconds int `json:"drain_timeout_seconds" yaml:"drain_timeout_seconds" toml:"drain_timeout_seconds"`

	// Seeded-result cache.
	ResultCacheTTLSeconds int `json:"result_cache_ttl_seconds" yaml:"result_cache_ttl_seconds" toml:"result_cache_ttl_seconds"`
	ResultCacheSize       int `json:"result_cache_size" yaml:"result_cache_size" toml:"result_cache_size"`

	// Managed llama-server runtime. ServerURL attaches to a running server
	// instead of spawning one.
	ServerBin           string   `json:"server_bin" yaml:"server_bin" toml:"server_bin"`
	ServerURL           string   `json:"server_url" yaml:"server_url" toml:"server_url"`
	ServerHost          string   `json:"server_host" yaml:"server_host" toml:"server_host"`
	PortStart           int      `json:"port_start" yaml:"port_start" toml:"port_start"`
	PortEnd             int      `json:"port_end" yaml:"port_end" toml:"port_end"`
	SpawnTimeoutSeconds int      `json:"spawn_timeout_seconds" yaml:"spawn_timeout_seconds" toml:"spawn_timeout_seconds"`
	ServerArgs          []string `json:"server_args" yaml:"server_args" toml:"server_args"`

	// StatePath persists instance LRU metadata across restarts; empty
	// disables persistence.
	StatePath string `json:"state_path" yaml:"state_path" toml:"state_path"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:                  ":8080",
		LogLevel:              "info",
		ModelsDir:             "~/models",
		Engine:                "auto",
		CtxSize:               2048,
		CompressPosEmb:        1.0,
		MaxTokens:             256,
		MaxQueueDepth:         32,
		MaxWaitSeconds:        30,
		DrainTimeoutSeconds:   5,
		ResultCacheTTLSeconds: 60,
		ResultCacheSize:       128,
		ServerHost:            "127.0.0.1",
		PortStart:             30000,
		PortEnd:               30100,
		SpawnTimeoutSeconds:   30,
	}
}

// Validate checks cross-field invariants. It is called by Load and again by
// serve after flag overlays.
func (c Config) Validate() error {
	switch c.Engine {
	case "auto", "server", "llama":
	default:
		return fmt.Errorf("engine must be auto, server or llama, got %q", c.Engine)
	}
	if c.CtxSize <= 0 {
		return fmt.Errorf("ctx_size must be > 0, got %d", c.CtxSize)
	}
	if c.CompressPosEmb <= 0 {
		return fmt.Errorf("compress_pos_emb must be > 0, got %v", c.CompressPosEmb)
	}
	if _, err := engine.ParseCapacity(c.CacheCapacity); err != nil {
		return err
	}
	if _, err := ParseTensorSplit(c.TensorSplit); err != nil {
		return err
	}
	if c.PortStart > c.PortEnd {
		return fmt.Errorf("port_start %d > port_end %d", c.PortStart, c.PortEnd)
	}
	return nil
}

// RopeFreqScale derives the RoPE scaling factor as the inverse of the
// positional-embedding compression factor.
func (c Config) RopeFreqScale() float32 {
	if c.CompressPosEmb <= 0 {
		return 0
	}
	return float32(1.0 / c.CompressPosEmb)
}

// ModelParams builds the load-time snapshot shared by every variant. Legacy
// extras are attached separately for legacy-family models.
func (c Config) ModelParams() engine.ModelParams {
	split, _ := ParseTensorSplit(c.TensorSplit)
	return engine.ModelParams{
		CtxSize:       c.CtxSize,
		Seed:          c.Seed,
		Threads:       c.Threads,
		BatchSize:     c.BatchSize,
		UseMmap:       !c.NoMmap,
		UseMlock:      c.Mlock,
		GPULayers:     c.GPULayers,
		RopeFreqBase:  float32(c.RopeFreqBase),
		RopeFreqScale: c.RopeFreqScale(),
		TensorSplit:   split,
	}
}

// LegacyParams carries the ggml-era load extras from the config.
func (c Config) LegacyParams() *engine.LegacyParams {
	return &engine.LegacyParams{
		GroupedQueryAttn: c.GroupedQueryAttn,
		RMSNormEps:       float32(c.RMSNormEps),
	}
}

func (c Config) MaxWait() time.Duration        { return time.Duration(c.MaxWaitSeconds) * time.Second }
func (c Config) DrainTimeout() time.Duration   { return time.Duration(c.DrainTimeoutSeconds) * time.Second }
func (c Config) SpawnTimeout() time.Duration   { return time.Duration(c.SpawnTimeoutSeconds) * time.Second }
func (c Config) ResultCacheTTL() time.Duration { return time.Duration(c.ResultCacheTTLSeconds) * time.Second }

// ParseTensorSplit parses a comma-separated proportion list like
// "0.6,0.4". An empty string means no split.
func ParseTensorSplit(s string) ([]float32, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float32, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("tensor_split: bad proportion %q", p)
		}
		out = append(out, float32(f))
	}
	return out, nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"inferd/internal/backend"
	"inferd/internal/config"
	"inferd/internal/engine"
	"inferd/internal/engine/llamaserver"
	"inferd/internal/httpapi"
	"inferd/internal/manager"
	"inferd/internal/registry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the inference daemon",
	Example: `  inferd serve --models-dir ~/models --addr :8080
  inferd serve --config /etc/inferd/config.yaml --mem-budget-mb 8192`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	registerServeFlags(serveCmd.Flags())
	rootCmd.AddCommand(serveCmd)
}

func registerServeFlags(f *pflag.FlagSet) {
	f.String("config", envOr("INFERD_CONFIG", ""), "config file (yaml, json or toml)")
	f.String("addr", "", "HTTP listen address, e.g. :8080")
	f.String("models-dir", "", "directory scanned for model files")
	f.String("default-model", "", "model id used when a request omits one")
	f.String("engine", "", "engine mode: auto, server or llama")
	f.Bool("cpu-only", false, "suppress accelerated engine variants")
	f.Int("gpu-layers", 0, "layers to offload to the accelerator")
	f.Int("ctx-size", 0, "context window in tokens")
	f.Int("threads", 0, "CPU threads per loaded model")
	f.Int("mem-budget-mb", 0, "memory budget in MB across instances (0 = unlimited)")
	f.Int("mem-margin-mb", 0, "reserved memory margin in MB")
	f.Int("max-queue-depth", 0, "queued generations per model before backpressure")
	f.Int("max-wait-seconds", 0, "admission wait bound in seconds")
	f.Int("generate-timeout-seconds", 0, "hard cap on one generation (0 = unlimited)")
	f.String("state-path", "", "file that persists instance LRU state across restarts")
	f.Bool("cors", false, "enable CORS")
	f.StringSlice("cors-origin", nil, "allowed CORS origins (default *)")
}

// loadServeConfig overlays, in order: built-in defaults, the config
// file, INFERD_* environment, explicit flags.
func loadServeConfig(cmd *cobra.Command) (config.Config, error) {
	f := cmd.Flags()
	cfg := config.Default()
	if path, _ := f.GetString("config"); path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
	}

	if v := os.Getenv("INFERD_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("INFERD_MODELS_DIR"); v != "" {
		cfg.ModelsDir = v
	}
	if v := os.Getenv("INFERD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	if v, _ := f.GetString("addr"); v != "" {
		cfg.Addr = v
	}
	if v, _ := f.GetString("models-dir"); v != "" {
		cfg.ModelsDir = v
	}
	if v, _ := f.GetString("default-model"); v != "" {
		cfg.DefaultModel = v
	}
	if v, _ := f.GetString("engine"); v != "" {
		cfg.Engine = v
	}
	if v, _ := f.GetString("state-path"); v != "" {
		cfg.StatePath = v
	}
	if logLevelFlag != "" {
		cfg.LogLevel = logLevelFlag
	}
	if f.Changed("cpu-only") {
		cfg.CPUOnly, _ = f.GetBool("cpu-only")
	}
	if f.Changed("gpu-layers") {
		cfg.GPULayers, _ = f.GetInt("gpu-layers")
	}
	if f.Changed("ctx-size") {
		cfg.CtxSize, _ = f.GetInt("ctx-size")
	}
	if f.Changed("threads") {
		cfg.Threads, _ = f.GetInt("threads")
	}
	if f.Changed("mem-budget-mb") {
		cfg.MemBudgetMB, _ = f.GetInt("mem-budget-mb")
	}
	if f.Changed("mem-margin-mb") {
		cfg.MemMarginMB, _ = f.GetInt("mem-margin-mb")
	}
	if f.Changed("max-queue-depth") {
		cfg.MaxQueueDepth, _ = f.GetInt("max-queue-depth")
	}
	if f.Changed("max-wait-seconds") {
		cfg.MaxWaitSeconds, _ = f.GetInt("max-wait-seconds")
	}
	if f.Changed("generate-timeout-seconds") {
		cfg.GenerateTimeoutSeconds, _ = f.GetInt("generate-timeout-seconds")
	}
	if f.Changed("cors") {
		cfg.CORSEnabled, _ = f.GetBool("cors")
	}
	if f.Changed("cors-origin") {
		cfg.CORSOrigins, _ = f.GetStringSlice("cors-origin")
	}
	return cfg, cfg.Validate()
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadServeConfig(cmd)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)
	httpapi.SetLogger(logger)
	httpapi.SetLogLevel(apiLogLevel(cfg.LogLevel))
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetGenerateTimeoutSeconds(cfg.GenerateTimeoutSeconds)
	if cfg.CORSEnabled {
		origins := cfg.CORSOrigins
		if len(origins) == 0 {
			origins = []string{"*"}
		}
		httpapi.SetCORSOptions(&cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Log-Level"},
			MaxAge:         300,
		})
	}

	models, err := registry.LoadDir(cfg.ModelsDir)
	if err != nil {
		return fmt.Errorf("scan models dir: %w", err)
	}
	logger.Info().Int("models", len(models)).Str("dir", cfg.ModelsDir).Msg("catalog loaded")

	engines, server, report := backend.Build(backend.BuildOptions{
		Mode:         cfg.Engine,
		CPUOnly:      cfg.CPUOnly,
		GPULayers:    cfg.GPULayers,
		ServerBin:    cfg.ServerBin,
		ServerURL:    cfg.ServerURL,
		ServerHost:   cfg.ServerHost,
		PortStart:    cfg.PortStart,
		PortEnd:      cfg.PortEnd,
		SpawnTimeout: cfg.SpawnTimeout(),
		ServerArgs:   cfg.ServerArgs,
		OnEvent: func(e llamaserver.Event) {
			logger.Debug().Str("path", e.Path).Fields(e.Fields).Msg("llama-server " + e.Name)
		},
	}, logger)

	capacity, _ := engine.ParseCapacity(cfg.CacheCapacity)
	mgr := manager.New(manager.ManagerConfig{
		Registry:         models,
		DefaultModel:     cfg.DefaultModel,
		Engines:          engines,
		Server:           server,
		Report:           report,
		BudgetMB:         cfg.MemBudgetMB,
		MarginMB:         cfg.MemMarginMB,
		MaxQueueDepth:    cfg.MaxQueueDepth,
		MaxWait:          cfg.MaxWait(),
		DrainTimeout:     cfg.DrainTimeout(),
		ModelParams:      cfg.ModelParams(),
		Legacy:           cfg.LegacyParams(),
		CacheCapacity:    capacity,
		DefaultMaxTokens: cfg.MaxTokens,
		ResultCacheTTL:   cfg.ResultCacheTTL(),
		ResultCacheSize:  cfg.ResultCacheSize,
		StatePath:        cfg.StatePath,
	}, logger)
	mgr.SetPublisher(&eventSink{log: logger})

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(mgr),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := mgr.WarmStart(baseCtx); err != nil {
			logger.Warn().Err(err).Msg("warm start failed")
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("inferd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	stop, stopCancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stopCancel()

	select {
	case err := <-errCh:
		return err
	case <-stop.Done():
	}

	logger.Info().Msg("shutting down")
	// Cut in-flight generations loose first so Shutdown does not wait
	// out a long completion.
	cancelBase()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
	if err := mgr.Close(); err != nil {
		logger.Error().Err(err).Msg("manager close")
	}
	return <-errCh
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}

// apiLogLevel maps the daemon log level onto the HTTP layer's
// per-request verbosity.
func apiLogLevel(s string) httpapi.LogLevel {
	switch strings.ToLower(s) {
	case "trace", "debug":
		return httpapi.LevelDebug
	case "info":
		return httpapi.LevelInfo
	case "warn", "error":
		return httpapi.LevelError
	default:
		return httpapi.LevelOff
	}
}

// eventSink forwards manager lifecycle events to the daemon log and
// feeds finished generations into the metrics.
type eventSink struct {
	log zerolog.Logger
}

func (s *eventSink) Publish(e manager.Event) {
	s.log.Debug().Str("model", e.ModelID).Fields(e.Fields).Msg("event " + e.Name)
	if e.Name != "generate_done" {
		return
	}
	reason, _ := e.Fields["reason"].(string)
	tokens, _ := e.Fields["completion_tokens"].(int)
	durMS, _ := e.Fields["dur_ms"].(int64)
	httpapi.ObserveGeneration(e.ModelID, reason, tokens, time.Duration(durMS)*time.Millisecond)
}

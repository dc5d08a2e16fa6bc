package manager

import (
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"inferd/internal/backend"
	"inferd/internal/engine"
	"inferd/internal/engine/llamaserver"
	"inferd/internal/llm"
	"inferd/pkg/types"
)

const (
	defaultMaxQueueDepth = 32
	defaultMaxWait       = 30 * time.Second
	defaultDrainTimeout  = 5 * time.Second
	defaultMaxTokens     = 256
	defaultResultTTL     = 5 * time.Minute
	defaultResultSize    = 128
)

// ManagerConfig carries everything the manager needs. The cmd layer
// maps the file config onto it, so this package stays decoupled from
// the config format.
type ManagerConfig struct {
	// Registry is the model catalog; DefaultModel serves requests that
	// name no model.
	Registry     []types.Model
	DefaultModel string

	// Engines resolves variants to engines. Server is the managed
	// llama-server engine when one was built, used for process teardown
	// and per-instance port/pid reporting. Report says what came up.
	Engines *engine.Registry
	Server  *llamaserver.Engine
	Report  backend.Report

	// BudgetMB caps the estimated resident memory across instances;
	// 0 disables eviction. MarginMB is headroom kept free on top.
	BudgetMB int
	MarginMB int

	// MaxQueueDepth bounds waiting requests per instance, MaxWait bounds
	// how long one may wait, DrainTimeout bounds how long an unload
	// waits before canceling in-flight work.
	MaxQueueDepth int
	MaxWait       time.Duration
	DrainTimeout  time.Duration

	// ModelParams seed every load; Legacy is attached for ggml-era
	// models only. CacheCapacity sizes the per-model prompt cache.
	ModelParams   engine.ModelParams
	Legacy        *engine.LegacyParams
	CacheCapacity int64

	// DefaultMaxTokens applies when a request sends max_tokens <= 0.
	DefaultMaxTokens int

	// ResultCacheTTL and ResultCacheSize shape the seeded-result cache.
	ResultCacheTTL  time.Duration
	ResultCacheSize int

	// StatePath persists LRU metadata across restarts; empty disables.
	StatePath string
}

// Manager owns all loaded instances and the request lifecycle around
// them. One Manager serves one daemon.
type Manager struct {
	mu        sync.RWMutex
	state     State
	lastErr   string
	instances map[string]*Instance
	usedEstMB int

	registry     []types.Model
	defaultModel string

	engines *engine.Registry
	server  *llamaserver.Engine
	report  backend.Report

	budgetMB      int
	marginMB      int
	maxQueueDepth int
	maxWait       time.Duration
	drainTimeout  time.Duration

	baseParams       engine.ModelParams
	legacyParams     *engine.LegacyParams
	cacheCapacity    int64
	defaultMaxTokens int

	flight  singleflight.Group
	results *ttlcache.Cache[string, llm.Result]

	statePath string
	lruMeta   map[string]lruRecord

	pub EventPublisher
	log zerolog.Logger

	started   time.Time
	loads     uint64
	evictions uint64
}

// New builds a Manager, applying defaults for zero limits and loading
// any persisted LRU metadata. Instances load lazily on first use.
func New(cfg ManagerConfig, log zerolog.Logger) *Manager {
	if cfg.MaxQueueDepth <= 0 {
		cfg.MaxQueueDepth = defaultMaxQueueDepth
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = defaultMaxWait
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = defaultDrainTimeout
	}
	if cfg.DefaultMaxTokens <= 0 {
		cfg.DefaultMaxTokens = defaultMaxTokens
	}
	ttl := cfg.ResultCacheTTL
	if ttl <= 0 {
		ttl = defaultResultTTL
	}
	size := cfg.ResultCacheSize
	if size <= 0 {
		size = defaultResultSize
	}

	m := &Manager{
		state:            StateIdle,
		instances:        make(map[string]*Instance),
		registry:         cfg.Registry,
		defaultModel:     cfg.DefaultModel,
		engines:          cfg.Engines,
		server:           cfg.Server,
		report:           cfg.Report,
		budgetMB:         cfg.BudgetMB,
		marginMB:         cfg.MarginMB,
		maxQueueDepth:    cfg.MaxQueueDepth,
		maxWait:          cfg.MaxWait,
		drainTimeout:     cfg.DrainTimeout,
		baseParams:       cfg.ModelParams,
		legacyParams:     cfg.Legacy,
		cacheCapacity:    cfg.CacheCapacity,
		defaultMaxTokens: cfg.DefaultMaxTokens,
		results: ttlcache.New[string, llm.Result](
			ttlcache.WithTTL[string, llm.Result](ttl),
			ttlcache.WithCapacity[string, llm.Result](uint64(size)),
		),
		statePath: cfg.StatePath,
		lruMeta:   make(map[string]lruRecord),
		pub:       noopPublisher{},
		log:       log,
		started:   time.Now(),
	}
	m.loadLRUMetadata()
	go m.results.Start()
	return m
}

// ListModels returns a copy of the catalog.
func (m *Manager) ListModels() []types.Model {
	out := make([]types.Model, len(m.registry))
	copy(out, m.registry)
	return out
}

// DefaultModel returns the id used when a request names no model.
func (m *Manager) DefaultModel() string { return m.defaultModel }

// Ready reports whether the daemon can serve generations: at least one
// engine variant registered and no startup error. Instances load
// lazily, so an empty instance table is still ready.
func (m *Manager) Ready() bool {
	if m.report.Error != "" {
		return false
	}
	return m.engines != nil && len(m.engines.Variants()) > 0
}

// Close drains and unloads every instance, stops any managed server
// processes and persists the LRU metadata. Meant for shutdown; the
// Manager should not be used afterwards.
func (m *Manager) Close() error {
	m.mu.RLock()
	ids := make([]string, 0, len(m.instances))
	for id := range m.instances {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	var firstErr error
	for _, id := range ids {
		if err := m.Unload(id); err != nil && firstErr == nil && !IsModelNotFound(err) {
			firstErr = err
		}
	}
	if m.server != nil {
		m.server.StopAll()
	}
	m.results.Stop()
	return firstErr
}

package llamaserver

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/engine"
)

// Event is one process lifecycle notification.
type Event struct {
	Name   string
	Path   string
	Fields map[string]any
}

// Options configure the engine. The zero value spawns "llama-server" from
// PATH on 127.0.0.1 with a kernel-assigned port.
type Options struct {
	// Bin is the server binary; empty means "llama-server" from PATH.
	Bin string

	// BaseURL switches to attach mode: no processes are spawned and every
	// model talks to this one server.
	BaseURL string

	// Host and port range for spawned servers. A zero range asks the
	// kernel for a free port.
	Host      string
	PortStart int
	PortEnd   int

	// SpawnTimeout bounds the wait for /health after starting a process.
	SpawnTimeout time.Duration

	// ExtraArgs are appended to every spawned server's command line.
	ExtraArgs []string

	// OnEvent, when set, receives process lifecycle events.
	OnEvent func(Event)

	// Log receives process lifecycle lines; the zero value is silent.
	Log zerolog.Logger
}

// Engine runs models on llama-server, one process per model file.
type Engine struct {
	opts   Options
	client *http.Client
	log    zerolog.Logger

	mu    sync.Mutex
	procs map[string]*proc // key: model path
}

var _ engine.Engine = (*Engine)(nil)

// New builds the engine.
func New(opts Options) *Engine {
	if strings.TrimSpace(opts.Bin) == "" {
		opts.Bin = "llama-server"
	}
	if strings.TrimSpace(opts.Host) == "" {
		opts.Host = "127.0.0.1"
	}
	if opts.SpawnTimeout <= 0 {
		opts.SpawnTimeout = 30 * time.Second
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:    100,
		IdleConnTimeout: 90 * time.Second,
	}
	// Intentionally Timeout=0: every call carries its own context deadline,
	// and completion streams must be allowed to run long.
	cli := &http.Client{Transport: tr, Timeout: 0}
	return &Engine{opts: opts, client: cli, log: opts.Log, procs: make(map[string]*proc)}
}

func (e *Engine) Name() string { return "llama-server" }

// Attached reports whether the engine talks to an externally managed
// server instead of spawning its own.
func (e *Engine) Attached() bool { return strings.TrimSpace(e.opts.BaseURL) != "" }

// Load makes path servable and returns its model. In spawn mode this
// starts (or reuses) a llama-server process and waits for readiness; in
// attach mode it only verifies the configured server is healthy.
func (e *Engine) Load(path string, params engine.ModelParams) (engine.Model, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("model path is empty")
	}
	if e.Attached() {
		base := strings.TrimRight(strings.TrimSpace(e.opts.BaseURL), "/")
		if !e.isHealthy(base, 3*time.Second) {
			return nil, fmt.Errorf("llama-server at %s is not healthy", base)
		}
		m := &Model{eng: e, path: path, baseURL: base, external: true}
		m.logProps()
		return m, nil
	}
	base, err := e.ensureProcess(path, params)
	if err != nil {
		return nil, err
	}
	m := &Model{eng: e, path: path, baseURL: base}
	m.logProps()
	return m, nil
}

// NewCache returns a prompt cache marker. The server process owns the
// actual KV memory; capacity is recorded for accounting only.
func (e *Engine) NewCache(capacity int64) (engine.Cache, error) {
	return &Cache{capacity: capacity}, nil
}

func (e *Engine) publish(name, path string, fields map[string]any) {
	if e.opts.OnEvent == nil {
		return
	}
	e.opts.OnEvent(Event{Name: name, Path: path, Fields: fields})
}

// Cache switches prompt caching on for the model it is attached to.
type Cache struct {
	capacity int64
}

func (c *Cache) Capacity() int64 { return c.capacity }
func (c *Cache) Close() error    { return nil }

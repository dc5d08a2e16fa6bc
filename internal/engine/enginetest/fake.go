// Package enginetest provides an in-memory engine.Engine for tests. The fake
// tokenizer is byte-level and exactly reversible, completions follow a
// per-model script, and logits processors are applied for real so EOS-ban
// behavior can be asserted without a model file.
package enginetest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"inferd/internal/engine"
)

const (
	eosID    int32 = 256
	fillerID int32 = 257
	chunkID0 int32 = 258
)

// Engine implements engine.Engine. Template fields are copied onto every
// model it loads.
type Engine struct {
	EngineName string

	// Script is the chunk sequence loaded models emit.
	Script []string
	// EOSAt is the 0-based step at which the model tries to emit EOS;
	// -1 means never.
	EOSAt int
	// Filler is emitted when the script is exhausted or EOS is banned.
	Filler string
	// StepDelay widens cancellation windows in timing-sensitive tests.
	StepDelay time.Duration
	// LoadDelay widens the window in which loads overlap.
	LoadDelay time.Duration

	LoadErr     error
	CacheErr    error
	CompleteErr error

	mu     sync.Mutex
	loaded []*Model
}

// New returns a fake engine whose models never emit EOS on their own.
func New() *Engine {
	return &Engine{EngineName: "fake", EOSAt: -1, Filler: "x"}
}

func (e *Engine) Name() string {
	if e.EngineName == "" {
		return "fake"
	}
	return e.EngineName
}

func (e *Engine) Load(path string, params engine.ModelParams) (engine.Model, error) {
	if e.LoadDelay > 0 {
		time.Sleep(e.LoadDelay)
	}
	if e.LoadErr != nil {
		return nil, e.LoadErr
	}
	m := &Model{
		Path:        path,
		Params:      params,
		Script:      append([]string(nil), e.Script...),
		EOSAt:       e.EOSAt,
		Filler:      e.Filler,
		StepDelay:   e.StepDelay,
		CompleteErr: e.CompleteErr,
	}
	if m.Filler == "" {
		m.Filler = "x"
	}
	e.mu.Lock()
	e.loaded = append(e.loaded, m)
	e.mu.Unlock()
	return m, nil
}

func (e *Engine) NewCache(capacity int64) (engine.Cache, error) {
	if e.CacheErr != nil {
		return nil, e.CacheErr
	}
	return &Cache{capacity: capacity}, nil
}

// Loaded returns the models this engine has constructed, in load order.
func (e *Engine) Loaded() []*Model {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Model(nil), e.loaded...)
}

// Cache records its capacity and whether it was closed.
type Cache struct {
	capacity int64
	closed   atomic.Bool
}

func (c *Cache) Capacity() int64 { return c.capacity }
func (c *Cache) Close() error    { c.closed.Store(true); return nil }
func (c *Cache) Closed() bool    { return c.closed.Load() }

// Model implements engine.Model over the byte-level fake vocabulary:
// ids 0..255 are raw bytes, 256 is EOS, 257 is the filler token, and
// 258+i is the i-th script chunk.
type Model struct {
	Path   string
	Params engine.ModelParams

	Script      []string
	EOSAt       int
	Filler      string
	StepDelay   time.Duration
	CompleteErr error

	mu       sync.Mutex
	cache    engine.Cache
	closed   bool
	inflight atomic.Int32

	LastPrompt string
	LastParams engine.CompletionParams
	LastProcs  []engine.LogitsProcessor
	Completes  int
}

func (m *Model) Tokenize(text string) ([]int32, error) {
	b := []byte(text)
	toks := make([]int32, len(b))
	for i, c := range b {
		toks[i] = int32(c)
	}
	return toks, nil
}

func (m *Model) Detokenize(toks []int32) ([]byte, error) {
	out := make([]byte, 0, len(toks))
	for _, t := range toks {
		if t >= 0 && t < 256 {
			out = append(out, byte(t))
		}
	}
	return out, nil
}

func (m *Model) EOS() int32 { return eosID }

func (m *Model) SetCache(c engine.Cache) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache = c
	return nil
}

// AttachedCache returns the cache passed to SetCache, if any.
func (m *Model) AttachedCache() engine.Cache {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache
}

func (m *Model) Complete(ctx context.Context, prompt string, p engine.CompletionParams, procs []engine.LogitsProcessor, emit func(engine.Chunk) bool) (string, error) {
	if m.inflight.Add(1) != 1 {
		m.inflight.Add(-1)
		return "", fmt.Errorf("concurrent Complete on one model")
	}
	defer m.inflight.Add(-1)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", fmt.Errorf("Complete on closed model")
	}
	m.LastPrompt = prompt
	m.LastParams = p
	m.LastProcs = procs
	m.Completes++
	m.mu.Unlock()

	if m.CompleteErr != nil {
		return "", m.CompleteErr
	}

	maxTokens := p.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8
	}

	var past []int32
	emitted := 0
	for step := 0; emitted < maxTokens; step++ {
		if m.StepDelay > 0 {
			select {
			case <-time.After(m.StepDelay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		} else if ctx.Err() != nil {
			return "", ctx.Err()
		}

		wantEOS := m.EOSAt >= 0 && step == m.EOSAt
		var wantTok int32
		var wantText string
		switch {
		case wantEOS:
			wantTok = eosID
		case emitted < len(m.Script):
			wantTok = chunkID0 + int32(emitted)
			wantText = m.Script[emitted]
		default:
			wantTok = fillerID
			wantText = m.Filler
		}

		logits := make([]float32, int(chunkID0)+len(m.Script)+1)
		logits[fillerID] = 0.5
		logits[wantTok] = 1
		last := int32(-1)
		if len(past) > 0 {
			last = past[len(past)-1]
		}
		for _, pr := range procs {
			logits = pr.Process(last, past, logits)
		}

		best := int32(0)
		for id, v := range logits {
			if v > logits[best] {
				best = int32(id)
			}
		}

		if best == eosID {
			return engine.ReasonStop, nil
		}
		if best == fillerID {
			wantText = m.Filler
		}
		past = append(past, best)
		emitted++
		if !emit(engine.Chunk{Text: wantText}) {
			return "", nil
		}
	}
	return engine.ReasonLength, nil
}

func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("model closed twice")
	}
	m.closed = true
	return nil
}

// Closed reports whether Close has run.
func (m *Model) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

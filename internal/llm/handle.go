package llm

import (
	"context"
	"runtime"
	"sync"
	"unicode/utf8"

	"inferd/internal/engine"
)

// Handle is the single owning wrapper around one loaded engine model. All
// generation, tokenization and release go through it.
type Handle struct {
	eng     engine.Engine
	model   engine.Model
	cache   engine.Cache
	variant engine.Variant
	path    string
	params  engine.ModelParams

	mu        sync.Mutex
	released  bool
	genCancel context.CancelFunc

	// busy holds one token while a generation is in flight. Release
	// acquires it to wait for the generation to stop.
	busy chan struct{}
}

// Load opens path on eng and wires up the completion cache when
// cacheCapacity > 0. Providers without a cache implementation degrade to an
// uncached model; any other cache failure fails the load.
func Load(eng engine.Engine, variant engine.Variant, path string, params engine.ModelParams, cacheCapacity int64) (*Handle, error) {
	model, err := eng.Load(path, params)
	if err != nil {
		return nil, err
	}
	h := &Handle{
		eng:     eng,
		model:   model,
		variant: variant,
		path:    path,
		params:  params,
		busy:    make(chan struct{}, 1),
	}
	if cacheCapacity > 0 {
		c, err := eng.NewCache(cacheCapacity)
		switch {
		case err == nil:
			if err := model.SetCache(c); err != nil {
				_ = c.Close()
				_ = model.Close()
				return nil, err
			}
			h.cache = c
		case engine.IsUnsupported(err):
			// no cache on this provider; generation still works
		default:
			_ = model.Close()
			return nil, err
		}
	}
	runtime.SetFinalizer(h, (*Handle).finalize)
	return h, nil
}

func (h *Handle) finalize() { _ = h.Release() }

// Release frees the model and its cache. It refuses new generations first,
// then waits for an in-flight one to finish. Calling it again is a no-op;
// a finalizer covers handles that go out of scope without a call.
func (h *Handle) Release() error {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return nil
	}
	h.released = true
	h.mu.Unlock()

	// Take the generation slot and keep it; the model is gone after this.
	h.busy <- struct{}{}

	runtime.SetFinalizer(h, nil)
	var first error
	if h.cache != nil {
		if err := h.cache.Close(); err != nil {
			first = err
		}
		h.cache = nil
	}
	if err := h.model.Close(); err != nil && first == nil {
		first = err
	}
	return first
}

// Released reports whether Release has been called.
func (h *Handle) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

// Busy reports whether a generation is in flight.
func (h *Handle) Busy() bool { return len(h.busy) > 0 }

// CancelActive cooperatively cancels the in-flight generation, if any. The
// canceled caller still receives its partial output.
func (h *Handle) CancelActive() {
	h.mu.Lock()
	cancel := h.genCancel
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (h *Handle) Variant() engine.Variant    { return h.variant }
func (h *Handle) Path() string               { return h.path }
func (h *Handle) Params() engine.ModelParams { return h.params }

func (h *Handle) CacheCapacity() int64 {
	if h.cache == nil {
		return 0
	}
	return h.cache.Capacity()
}

// EOS reports the model's end-of-sequence token id, -1 when unknown.
func (h *Handle) EOS() int32 { return h.model.EOS() }

// Encode converts text to token ids.
func (h *Handle) Encode(text string) ([]int32, error) {
	if err := h.live(); err != nil {
		return nil, err
	}
	return h.model.Tokenize(text)
}

// Decode converts token ids to raw bytes. The bytes are not guaranteed to
// be valid UTF-8 at arbitrary token boundaries; use DecodeText when text is
// required.
func (h *Handle) Decode(toks []int32) ([]byte, error) {
	if err := h.live(); err != nil {
		return nil, err
	}
	return h.model.Detokenize(toks)
}

// DecodeText is Decode plus UTF-8 validation.
func (h *Handle) DecodeText(toks []int32) (string, error) {
	b, err := h.Decode(toks)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", ErrEncoding("decoded tokens are not valid UTF-8")
	}
	return string(b), nil
}

func (h *Handle) live() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return ErrReleased(h.path)
	}
	return nil
}

// tryAcquire claims the generation slot without blocking.
func (h *Handle) tryAcquire() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return ErrReleased(h.path)
	}
	select {
	case h.busy <- struct{}{}:
		return nil
	default:
		return ErrBusy(h.path)
	}
}

func (h *Handle) releaseSlot() { <-h.busy }

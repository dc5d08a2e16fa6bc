//go:build !llama

// Package llamacpp is the in-process provider built on the go-llama.cpp
// bindings. This stub is compiled when the 'llama' build tag is NOT set,
// keeping default builds and CI CGO-free. It refuses to load rather than
// mock anything; callers check Built before registering the engine.
package llamacpp

import (
	"errors"

	"inferd/internal/engine"
)

// Built indicates this binary was compiled with real llama support.
const Built = false

type Engine struct{}

func New() *Engine { return &Engine{} }

func (e *Engine) Name() string { return "llamacpp" }

func (e *Engine) Load(string, engine.ModelParams) (engine.Model, error) {
	return nil, errors.New("in-process llama engine not built (missing 'llama' build tag)")
}

func (e *Engine) NewCache(int64) (engine.Cache, error) {
	return nil, engine.ErrUnsupported("completion cache")
}

//go:build llama

// Package llamacpp is the in-process provider built on the go-llama.cpp
// bindings. It is compiled only with the 'llama' build tag so default builds
// and CI stay CGO-free; a stub that refuses to load lives behind !llama.
package llamacpp

import (
	"context"
	"errors"
	"strings"

	llama "github.com/go-skynet/go-llama.cpp"

	"inferd/internal/engine"
)

// Built indicates this binary was compiled with real llama support.
const Built = true

type Engine struct{}

func New() *Engine { return &Engine{} }

func (e *Engine) Name() string { return "llamacpp" }

func (e *Engine) Load(path string, params engine.ModelParams) (engine.Model, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("model path is empty")
	}
	// Only the context size maps onto the binding today; the remaining load
	// parameters are handled by the llamaserver provider.
	m, err := llama.New(path, llama.SetContext(params.CtxSize))
	if err != nil {
		return nil, err
	}
	return &Model{model: m, params: params}, nil
}

func (e *Engine) NewCache(int64) (engine.Cache, error) {
	return nil, engine.ErrUnsupported("completion cache")
}

// Model owns one loaded *llama.LLama.
type Model struct {
	model  *llama.LLama
	params engine.ModelParams
}

func (m *Model) Tokenize(string) ([]int32, error) {
	return nil, engine.ErrUnsupported("tokenize")
}

func (m *Model) Detokenize([]int32) ([]byte, error) {
	return nil, engine.ErrUnsupported("detokenize")
}

func (m *Model) EOS() int32 { return -1 }

func (m *Model) SetCache(engine.Cache) error {
	return engine.ErrUnsupported("completion cache")
}

func (m *Model) Complete(ctx context.Context, prompt string, p engine.CompletionParams, procs []engine.LogitsProcessor, emit func(engine.Chunk) bool) (string, error) {
	if m.model == nil {
		return "", errors.New("llama model not initialized")
	}
	// The binding applies logits rewrites natively or not at all; refuse
	// anything we cannot honor rather than change sampling silently.
	if len(procs) > 0 {
		return "", engine.ErrUnsupported("logits processors")
	}

	emitted := 0
	m.model.SetTokenCallback(func(tok string) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		emitted++
		return emit(engine.Chunk{Text: tok})
	})

	po := predictOptions(p, m.params.Threads)
	if _, err := m.model.Predict(prompt, po...); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	if ctx.Err() != nil {
		return "", nil
	}
	if p.MaxTokens > 0 && emitted >= p.MaxTokens {
		return engine.ReasonLength, nil
	}
	return engine.ReasonStop, nil
}

func (m *Model) Close() error {
	if m.model != nil {
		m.model.Free()
		m.model = nil
	}
	return nil
}

func zn(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func zf(v, def float32) float32 {
	if v > 0 {
		return v
	}
	return def
}

// predictOptions converts completion params into go-llama.cpp options.
// Tail-free sampling and mirostat are not mapped onto the binding yet.
func predictOptions(p engine.CompletionParams, threads int) []llama.PredictOption {
	po := []llama.PredictOption{
		llama.SetTokens(max(1, p.MaxTokens)),
		llama.SetThreads(max(1, threads)),
		llama.SetTopP(zf(p.TopP, llama.DefaultOptions.TopP)),
		llama.SetTopK(zn(p.TopK, llama.DefaultOptions.TopK)),
		llama.SetTemperature(zf(p.Temperature, llama.DefaultOptions.Temperature)),
		llama.SetPenalty(zf(p.RepeatPenalty, llama.DefaultOptions.Penalty)),
	}
	if p.Seed != 0 {
		po = append(po, llama.SetSeed(p.Seed))
	}
	if len(p.Stop) > 0 {
		po = append(po, llama.SetStopWords(p.Stop...))
	}
	return po
}

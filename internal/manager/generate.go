package manager

import (
	"context"
	"fmt"
	"io"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"inferd/internal/engine"
	"inferd/internal/llm"
	"inferd/pkg/types"
)

// Generate runs one request end to end: ensure the instance, pass
// admission, drive the engine and write the response to w. With
// req.Stream the response is NDJSON token lines followed by a final
// line; otherwise a single JSON object. flush, when non-nil, runs after
// every written line so chunks reach the client promptly. Seeded
// requests are served from and stored into the result cache in either
// mode; a cached result replays as a single token line when streamed.
//
// ctx cancellation stops the generation at the next chunk boundary and
// is not an error: the partial text still arrives with finish_reason
// "cancel".
func (m *Manager) Generate(ctx context.Context, req types.GenerateRequest, w io.Writer, flush func()) error {
	modelID := req.Model
	if modelID == "" {
		modelID = m.defaultModel
	}
	if modelID == "" {
		return ErrModelNotFound("")
	}
	if err := m.EnsureInstance(ctx, modelID); err != nil {
		return err
	}
	release, err := m.beginGeneration(ctx, modelID)
	if err != nil {
		return err
	}
	defer release()

	m.mu.RLock()
	var h *llm.Handle
	if inst := m.instances[modelID]; inst != nil {
		h = inst.handle
	}
	m.mu.RUnlock()
	if h == nil {
		return ErrModelNotFound(modelID)
	}

	p := m.requestParams(req)
	genID := uuid.NewString()
	start := time.Now()
	m.publish("generate_start", modelID, map[string]any{"id": genID, "stream": req.Stream})

	cacheKey := ""
	if req.Seed != 0 {
		cacheKey = resultKey(modelID, req.Prompt, p)
	}

	var res llm.Result
	cached := false
	if cacheKey != "" {
		if hit, ok := m.cachedResult(cacheKey); ok {
			m.publish("cache_hit", modelID, map[string]any{"id": genID})
			res, cached = hit, true
			err = writeCached(w, flush, req.Stream, genID, modelID, res)
		}
	}
	if !cached {
		if req.Stream {
			res, err = m.generateStream(ctx, w, flush, h, genID, modelID, req.Prompt, p)
		} else {
			res, err = m.generateBuffered(ctx, w, h, genID, modelID, req.Prompt, p)
		}
	}
	if err != nil {
		m.publish("generate_error", modelID, map[string]any{"id": genID, "error": err.Error()})
		return err
	}
	if !cached && cacheKey != "" && res.FinishReason != engine.ReasonCancel {
		m.storeResult(cacheKey, res)
	}
	m.publish("generate_done", modelID, map[string]any{
		"id":                genID,
		"reason":            res.FinishReason,
		"completion_tokens": res.CompletionTokens,
		"dur_ms":            time.Since(start).Milliseconds(),
	})
	return nil
}

// requestParams maps the wire request onto engine parameters. A zero
// max_tokens takes the configured default; truncation_length sizes the
// prompt budget the same way a context window does, leaving room for
// the new tokens.
func (m *Manager) requestParams(req types.GenerateRequest) llm.Params {
	maxNew := req.MaxTokens
	if maxNew <= 0 {
		maxNew = m.defaultMaxTokens
	}
	p := llm.Params{
		MaxNewTokens:  maxNew,
		Temperature:   float32(req.Temperature),
		TopP:          float32(req.TopP),
		TopK:          req.TopK,
		RepeatPenalty: float32(req.RepeatPenalty),
		TFSZ:          float32(req.TFSZ),
		Mirostat:      req.Mirostat,
		MirostatTau:   float32(req.MirostatTau),
		MirostatEta:   float32(req.MirostatEta),
		Seed:          int(req.Seed),
		Stop:          req.Stop,
		BanEOS:        req.BanEOS,
	}
	if req.TruncationLength > 0 {
		p.MaxPromptTokens = llm.PromptBudget(req.TruncationLength, maxNew)
	}
	return p
}

func (m *Manager) generateStream(ctx context.Context, w io.Writer, flush func(), h *llm.Handle, genID, modelID, prompt string, p llm.Params) (llm.Result, error) {
	enc := json.NewEncoder(w)
	var writeErr error
	res, err := h.Generate(ctx, prompt, p, func(tok string) {
		if writeErr != nil {
			return
		}
		if werr := enc.Encode(types.TokenLine{Token: tok}); werr != nil {
			// The client is gone; stop generating for it.
			writeErr = werr
			h.CancelActive()
			return
		}
		if flush != nil {
			flush()
		}
	})
	if err != nil {
		return llm.Result{}, err
	}
	if writeErr != nil {
		return llm.Result{}, fmt.Errorf("write stream: %w", writeErr)
	}
	if err := enc.Encode(finalLine(genID, modelID, res)); err != nil {
		return llm.Result{}, fmt.Errorf("write final line: %w", err)
	}
	if flush != nil {
		flush()
	}
	return res, nil
}

// generateBuffered consumes the pull stream to completion and writes
// one JSON object.
func (m *Manager) generateBuffered(ctx context.Context, w io.Writer, h *llm.Handle, genID, modelID, prompt string, p llm.Params) (llm.Result, error) {
	s, err := h.GenerateStream(ctx, prompt, p)
	if err != nil {
		return llm.Result{}, err
	}
	defer s.Close()
	for range s.Text() {
	}
	res, err := s.Result()
	if err != nil {
		return llm.Result{}, err
	}
	return res, writeResponse(w, genID, modelID, res)
}

// writeCached replays a stored result in the requested delivery mode:
// one token line carrying the whole text plus the final line when
// streaming, a single JSON object otherwise.
func writeCached(w io.Writer, flush func(), stream bool, genID, modelID string, res llm.Result) error {
	if !stream {
		return writeResponse(w, genID, modelID, res)
	}
	enc := json.NewEncoder(w)
	if res.Text != "" {
		if err := enc.Encode(types.TokenLine{Token: res.Text}); err != nil {
			return fmt.Errorf("write stream: %w", err)
		}
	}
	if err := enc.Encode(finalLine(genID, modelID, res)); err != nil {
		return fmt.Errorf("write final line: %w", err)
	}
	if flush != nil {
		flush()
	}
	return nil
}

func finalLine(genID, modelID string, res llm.Result) types.FinalLine {
	return types.FinalLine{
		Done:         true,
		ID:           genID,
		Model:        modelID,
		Content:      res.Text,
		FinishReason: res.FinishReason,
		Usage:        usageFrom(res),
	}
}

func writeResponse(w io.Writer, genID, modelID string, res llm.Result) error {
	return json.NewEncoder(w).Encode(types.GenerateResponse{
		ID:           genID,
		Model:        modelID,
		Content:      res.Text,
		FinishReason: res.FinishReason,
		Usage:        usageFrom(res),
	})
}

func usageFrom(res llm.Result) types.Usage {
	return types.Usage{
		PromptTokens:     res.PromptTokens,
		CompletionTokens: res.CompletionTokens,
		TotalTokens:      res.PromptTokens + res.CompletionTokens,
	}
}

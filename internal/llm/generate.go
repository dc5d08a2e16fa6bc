package llm

import (
	"context"
	"strings"

	"inferd/internal/engine"
)

// Params are the per-request generation settings.
type Params struct {
	MaxNewTokens  int
	Temperature   float32
	TopP          float32
	TopK          int
	RepeatPenalty float32
	TFSZ          float32
	Mirostat      int
	MirostatTau   float32
	MirostatEta   float32
	Seed          int
	Stop          []string

	// BanEOS forbids the end-of-sequence token so generation always runs to
	// MaxNewTokens.
	BanEOS bool

	// MaxPromptTokens caps the prompt after encoding; the trailing tokens
	// are kept. 0 derives the budget from the context window.
	MaxPromptTokens int

	// Processors are applied to the logits each step, after the EOS ban.
	Processors []engine.LogitsProcessor
}

// Result is the outcome of one generation.
type Result struct {
	Text             string
	PromptTokens     int
	CompletionTokens int

	// FinishReason is "stop", "length" or "cancel".
	FinishReason string
}

// PromptBudget returns how many prompt tokens fit alongside maxNew new
// tokens in a ctxLen window. A result of 0 disables truncation, matching
// the historical tail-slice behavior.
func PromptBudget(ctxLen, maxNew int) int {
	if ctxLen <= 0 {
		return 0
	}
	if b := ctxLen - maxNew; b > 0 {
		return b
	}
	return 0
}

// Generate runs one completion: encode, keep the trailing prompt budget,
// decode back to text, then stream chunks from the engine. onToken receives
// each incremental chunk; pass nil when only the final Result matters.
//
// ctx is the cancellation token. Cancellation is honored at chunk
// boundaries and is not an error: the partial Result is returned with
// FinishReason "cancel".
func (h *Handle) Generate(ctx context.Context, prompt string, p Params, onToken func(string)) (Result, error) {
	if err := h.tryAcquire(); err != nil {
		return Result{}, err
	}
	defer h.releaseSlot()
	return h.generateLocked(ctx, prompt, p, onToken)
}

// generateLocked assumes the generation slot is held by the caller.
func (h *Handle) generateLocked(ctx context.Context, prompt string, p Params, onToken func(string)) (Result, error) {
	genCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	h.mu.Lock()
	h.genCancel = cancel
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		h.genCancel = nil
		h.mu.Unlock()
	}()

	budget := p.MaxPromptTokens
	if budget <= 0 {
		budget = PromptBudget(h.params.CtxSize, p.MaxNewTokens)
	}

	toks, err := h.model.Tokenize(prompt)
	if err != nil {
		return Result{}, err
	}
	if budget > 0 && len(toks) > budget {
		toks = toks[len(toks)-budget:]
	}

	// Round-trip through the tokenizer so the engine sees exactly the kept
	// window. Providers without detokenize run with the original text.
	text := prompt
	if b, derr := h.model.Detokenize(toks); derr == nil {
		t, terr := textFromBytes(b)
		if terr != nil {
			return Result{}, terr
		}
		text = t
	} else if !engine.IsUnsupported(derr) {
		return Result{}, derr
	}

	cp := engine.CompletionParams{
		MaxTokens:     p.MaxNewTokens,
		Temperature:   p.Temperature,
		TopP:          p.TopP,
		TopK:          p.TopK,
		RepeatPenalty: p.RepeatPenalty,
		TFSZ:          p.TFSZ,
		Mirostat:      p.Mirostat,
		MirostatTau:   p.MirostatTau,
		MirostatEta:   p.MirostatEta,
		Seed:          p.Seed,
		Stop:          p.Stop,
	}

	var procs []engine.LogitsProcessor
	if p.BanEOS {
		procs = append(procs, engine.EOSBan{ID: h.model.EOS()})
	}
	procs = append(procs, p.Processors...)

	var sb strings.Builder
	completion := 0
	reason, err := h.model.Complete(genCtx, text, cp, procs, func(c engine.Chunk) bool {
		select {
		case <-genCtx.Done():
			return false
		default:
		}
		sb.WriteString(c.Text)
		completion++
		if onToken != nil {
			onToken(c.Text)
		}
		return true
	})

	res := Result{
		Text:             sb.String(),
		PromptTokens:     len(toks),
		CompletionTokens: completion,
		FinishReason:     reason,
	}
	switch {
	case err != nil && genCtx.Err() != nil:
		// The engine aborted because we canceled it; keep the partial text.
		res.FinishReason = engine.ReasonCancel
		return res, nil
	case err != nil:
		return Result{}, err
	case genCtx.Err() != nil || reason == "":
		res.FinishReason = engine.ReasonCancel
		return res, nil
	}
	return res, nil
}

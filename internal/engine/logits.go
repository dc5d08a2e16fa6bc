package engine

import "math"

// LogitsProcessor rewrites the logits vector before sampling each step.
// In-process providers apply the composed list directly; remote providers
// translate the processors they recognize (by concrete type) into protocol
// fields and reject the rest with ErrUnsupported.
type LogitsProcessor interface {
	// Process receives the last sampled token id (-1 on the first step), the
	// ids generated so far, and the current logits. It returns the logits to
	// sample from, usually the same slice mutated in place.
	Process(tokenID int32, past []int32, logits []float32) []float32
}

// EOSBan forces the end-of-sequence logit to -Inf every step so generation
// always runs to the token limit. ID may be -1 when the caller could not
// learn the id; providers that know their own EOS id substitute it.
type EOSBan struct {
	ID int32
}

func (b EOSBan) Process(_ int32, _ []int32, logits []float32) []float32 {
	if b.ID >= 0 && int(b.ID) < len(logits) {
		logits[b.ID] = float32(math.Inf(-1))
	}
	return logits
}

// ProcessorFunc adapts a plain function to a LogitsProcessor.
type ProcessorFunc func(tokenID int32, past []int32, logits []float32) []float32

func (f ProcessorFunc) Process(tokenID int32, past []int32, logits []float32) []float32 {
	return f(tokenID, past, logits)
}

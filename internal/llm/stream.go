package llm

import (
	"context"
	"strings"
	"sync"
)

// streamBuffer bounds the handoff channel so a fast engine cannot outrun a
// slow consumer without limit.
const streamBuffer = 8

// Stream is the pull side of one generation. Each received item is the
// cumulative text so far, not the delta. A Stream is consumed once; Close
// is idempotent and safe to call whether or not the channel was drained.
type Stream struct {
	ch     chan string
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	res Result
	err error
}

// GenerateStream starts a generation on its own goroutine and returns a
// Stream to pull from. The busy slot is claimed here, so a concurrent
// generation on the same handle fails at the call site.
func (h *Handle) GenerateStream(ctx context.Context, prompt string, p Params) (*Stream, error) {
	if err := h.tryAcquire(); err != nil {
		return nil, err
	}
	genCtx, cancel := context.WithCancel(ctx)
	s := &Stream{
		ch:     make(chan string, streamBuffer),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		defer close(s.ch)
		defer h.releaseSlot()
		defer cancel()

		var cum strings.Builder
		res, err := h.generateLocked(genCtx, prompt, p, func(tok string) {
			cum.WriteString(tok)
			select {
			case s.ch <- cum.String():
			case <-genCtx.Done():
			}
		})
		s.mu.Lock()
		s.res, s.err = res, err
		s.mu.Unlock()
	}()
	return s, nil
}

// Text returns the channel of cumulative snapshots. It closes when the
// generation finishes, fails or is canceled.
func (s *Stream) Text() <-chan string { return s.ch }

// Result blocks until the generation has fully stopped and returns its
// outcome. After a cancel the partial result is returned with a nil error.
func (s *Stream) Result() (Result, error) {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.res, s.err
}

// Close cancels the generation and waits for the producer to stop. It is
// safe to call multiple times and after the channel is drained.
func (s *Stream) Close() {
	s.cancel()
	<-s.done
}

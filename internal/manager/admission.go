package manager

import (
	"context"
	"sync"
	"time"
)

// Admission timers are pooled; generate traffic churns through them
// quickly.
var timerPool = sync.Pool{
	New: func() any {
		t := time.NewTimer(time.Hour)
		t.Stop()
		return t
	},
}

func getTimer(d time.Duration) *time.Timer {
	t := timerPool.Get().(*time.Timer)
	t.Reset(d)
	return t
}

func putTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	timerPool.Put(t)
}

// beginGeneration admits one generation on the instance: first a
// bounded queue slot, then the single generation slot. One timer spans
// both waits, so the total admission wait is bounded by maxWait. The
// returned release must be called exactly once when the generation
// finishes.
func (m *Manager) beginGeneration(ctx context.Context, modelID string) (func(), error) {
	m.mu.RLock()
	inst := m.instances[modelID]
	draining := inst != nil && inst.State == StateDraining
	m.mu.RUnlock()
	if inst == nil {
		return nil, ErrModelNotFound(modelID)
	}
	if draining {
		return nil, ErrTooBusy(modelID, "draining")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t := getTimer(m.maxWait)
	defer putTimer(t)

	select {
	case inst.queueCh <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.C:
		return nil, ErrTooBusy(modelID, "queue full")
	}

	// The drain may have started while we waited for the queue slot.
	m.mu.RLock()
	cur := m.instances[modelID]
	draining = cur == nil || cur.State == StateDraining
	m.mu.RUnlock()
	if draining {
		<-inst.queueCh
		return nil, ErrTooBusy(modelID, "draining")
	}

	select {
	case inst.genCh <- struct{}{}:
	case <-ctx.Done():
		<-inst.queueCh
		return nil, ctx.Err()
	case <-t.C:
		<-inst.queueCh
		return nil, ErrTooBusy(modelID, "generation slot wait timed out")
	}

	m.mu.Lock()
	inst.LastUsed = time.Now()
	m.mu.Unlock()

	return func() {
		<-inst.genCh
		<-inst.queueCh
	}, nil
}

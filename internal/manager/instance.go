package manager

import (
	"time"

	"inferd/internal/backend"
	"inferd/internal/engine"
	"inferd/internal/llm"
)

// State tracks an instance, and the manager as a whole, through its
// lifecycle.
type State string

const (
	StateIdle     State = "idle"
	StateLoading  State = "loading"
	StateReady    State = "ready"
	StateDraining State = "draining"
	StateError    State = "error"
)

// Instance is one loaded model. The two channels implement admission:
// queueCh bounds how many requests may wait, genCh serializes the
// actual generations. Both are sized at creation and never replaced,
// so reading their lengths needs no lock; everything else is guarded
// by the manager mutex.
type Instance struct {
	ID       string
	State    State
	Family   backend.Family
	Variant  engine.Variant
	Path     string
	LastUsed time.Time
	EstMemMB int

	// Port and PID identify the managed runtime process when the engine
	// spawned one for this model; zero otherwise.
	Port int
	PID  int

	handle  *llm.Handle
	genCh   chan struct{}
	queueCh chan struct{}
}

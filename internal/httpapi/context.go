package httpapi

import (
	"context"
	"sync"
)

var (
	baseCtxMu sync.RWMutex
	baseCtx   = context.Background()
)

// SetBaseContext installs the server lifetime context. Generations in
// flight are canceled when it ends, so shutdown does not wait out a
// long completion.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	baseCtxMu.Lock()
	defer baseCtxMu.Unlock()
	baseCtx = ctx
}

func serverBaseCtx() context.Context {
	baseCtxMu.RLock()
	defer baseCtxMu.RUnlock()
	return baseCtx
}

// joinContexts derives from primary and additionally cancels when
// secondary is done. Values and deadlines come from primary only.
func joinContexts(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(primary)
	stop := context.AfterFunc(secondary, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

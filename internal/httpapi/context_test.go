package httpapi

import (
	"context"
	"testing"
	"time"
)

func waitDone(t *testing.T, ctx context.Context) {
	t.Helper()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatalf("context not canceled in time")
	}
}

func TestJoinContextsCancelsWithPrimary(t *testing.T) {
	primary, cancelPrimary := context.WithCancel(context.Background())
	joined, cancel := joinContexts(primary, context.Background())
	defer cancel()

	cancelPrimary()
	waitDone(t, joined)
}

func TestJoinContextsCancelsWithSecondary(t *testing.T) {
	secondary, cancelSecondary := context.WithCancel(context.Background())
	joined, cancel := joinContexts(context.Background(), secondary)
	defer cancel()

	cancelSecondary()
	waitDone(t, joined)
}

func TestJoinContextsCancelFuncReleases(t *testing.T) {
	joined, cancel := joinContexts(context.Background(), context.Background())
	cancel()
	waitDone(t, joined)
}

func TestSetBaseContextNilResets(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	SetBaseContext(ctx)
	defer SetBaseContext(nil)

	if serverBaseCtx() != ctx {
		t.Fatalf("base context not installed")
	}
	cancel()
	waitDone(t, serverBaseCtx())

	SetBaseContext(nil)
	if err := serverBaseCtx().Err(); err != nil {
		t.Fatalf("nil should restore a live context, got %v", err)
	}
}

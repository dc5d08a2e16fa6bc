package e2e

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"inferd/internal/engine"
	"inferd/internal/engine/enginetest"
	"inferd/internal/httpapi"
	"inferd/internal/manager"
	"inferd/internal/registry"
)

// writeModelFile drops a gguf-magic file so the registry scan picks it
// up as a modern-family model.
func writeModelFile(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	data := append([]byte("GGUF"), make([]byte, 1024*1024)...)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatalf("write model file: %v", err)
	}
	return p
}

// newDaemon assembles the in-process stack end to end: scanned catalog,
// manager over the fake engine, HTTP mux, live test server.
func newDaemon(t *testing.T, fake *enginetest.Engine, mutate func(*manager.ManagerConfig)) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	writeModelFile(t, dir, "alpha.gguf")
	writeModelFile(t, dir, "beta.gguf")

	models, err := registry.LoadDir(dir)
	if err != nil {
		t.Fatalf("scan models: %v", err)
	}
	reg := engine.NewRegistry()
	reg.Register(engine.CPUModern, fake)
	reg.Register(engine.CPULegacy, fake)

	cfg := manager.ManagerConfig{
		Registry:     models,
		DefaultModel: "alpha.gguf",
		Engines:      reg,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	mgr := manager.New(cfg, zerolog.Nop())
	srv := httptest.NewServer(httpapi.NewMux(mgr))
	t.Cleanup(func() {
		srv.Close()
		_ = mgr.Close()
	})
	return srv
}

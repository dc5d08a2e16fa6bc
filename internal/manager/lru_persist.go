package manager

import (
	"context"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
)

// lruRecord is what survives a restart: when a model was last used and
// what it cost. The state file is advisory; a missing or corrupt one is
// ignored.
type lruRecord struct {
	LastUsedUnix int64 `json:"last_used_unix"`
	EstMemMB     int   `json:"est_mem_mb"`
}

func (m *Manager) loadLRUMetadata() {
	if m.statePath == "" {
		return
	}
	b, err := os.ReadFile(m.statePath)
	if err != nil {
		return
	}
	meta := make(map[string]lruRecord)
	if err := json.Unmarshal(b, &meta); err != nil {
		m.log.Warn().Err(err).Str("path", m.statePath).Msg("discarding unreadable lru state")
		return
	}
	m.lruMeta = meta
}

// saveLRUMetadata snapshots the currently loaded instances. Written to
// a temp file first so a crash mid-write cannot corrupt the previous
// state.
func (m *Manager) saveLRUMetadata() {
	if m.statePath == "" {
		return
	}
	m.mu.RLock()
	meta := make(map[string]lruRecord, len(m.instances))
	for id, inst := range m.instances {
		meta[id] = lruRecord{LastUsedUnix: inst.LastUsed.Unix(), EstMemMB: inst.EstMemMB}
	}
	m.mu.RUnlock()

	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(m.statePath), 0o755); err != nil {
		m.log.Warn().Err(err).Str("path", m.statePath).Msg("persist lru state failed")
		return
	}
	tmp := m.statePath + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		m.log.Warn().Err(err).Str("path", m.statePath).Msg("persist lru state failed")
		return
	}
	if err := os.Rename(tmp, m.statePath); err != nil {
		m.log.Warn().Err(err).Str("path", m.statePath).Msg("persist lru state failed")
	}
}

// WarmStart reloads the most recently used model from the persisted
// state when it is still in the catalog. Called once at startup after
// the engines are registered; serving stays lazy when there is nothing
// to warm.
func (m *Manager) WarmStart(ctx context.Context) error {
	var best string
	var bestTs int64
	for id, rec := range m.lruMeta {
		if _, ok := m.getModelByID(id); !ok {
			continue
		}
		if rec.LastUsedUnix >= bestTs {
			best, bestTs = id, rec.LastUsedUnix
		}
	}
	if best == "" {
		return nil
	}
	m.publish("warm_start", best, map[string]any{"last_used_unix": bestTs})
	return m.EnsureInstance(ctx, best)
}

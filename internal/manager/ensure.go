package manager

import (
	"context"
	"os"
	"time"

	"inferd/internal/backend"
	"inferd/internal/engine"
	"inferd/internal/llm"
	"inferd/pkg/types"
)

// EnsureInstance makes sure the model is loaded and ready, loading it
// on first use. Concurrent calls for the same model share one load. The
// caller's ctx only abandons the wait; the load itself runs to
// completion so a canceled request does not strand a half-loaded model.
func (m *Manager) EnsureInstance(ctx context.Context, modelID string) error {
	if modelID == "" {
		modelID = m.defaultModel
	}
	if modelID == "" {
		return ErrModelNotFound("")
	}
	if m.touchReady(modelID) {
		return nil
	}
	ch := m.flight.DoChan(modelID, func() (interface{}, error) {
		return nil, m.loadInstance(modelID)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// touchReady refreshes LastUsed when the instance is already ready.
func (m *Manager) touchReady(modelID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst := m.instances[modelID]
	if inst == nil || inst.State != StateReady {
		return false
	}
	inst.LastUsed = time.Now()
	return true
}

func (m *Manager) loadInstance(modelID string) error {
	// A flight we joined late may have finished the load already.
	if m.touchReady(modelID) {
		return nil
	}
	start := time.Now()

	mdl, ok := m.getModelByID(modelID)
	if !ok {
		return ErrModelNotFound(modelID)
	}
	if m.engines == nil || len(m.engines.Variants()) == 0 {
		reason := m.report.Error
		if reason == "" {
			reason = "no engine registered"
		}
		return ErrUnavailable(reason)
	}

	m.publish("ensure_start", modelID, nil)

	fam := backend.Family(mdl.Family)
	if fam != backend.FamilyModern && fam != backend.FamilyLegacy {
		detected, err := backend.DetectFamily(mdl.Path)
		if err != nil {
			m.failLoad(modelID, err)
			return err
		}
		fam = detected
	}

	eng, variant, err := backend.Resolve(m.engines, m.report.Accel, fam)
	if err != nil {
		m.failLoad(modelID, err)
		return err
	}

	estMB := estimateMemMB(mdl)
	if m.budgetMB > 0 {
		m.evictUntilFits(estMB)
	}

	m.mu.Lock()
	if cur := m.instances[modelID]; cur != nil {
		switch cur.State {
		case StateReady:
			cur.LastUsed = time.Now()
			m.mu.Unlock()
			return nil
		case StateDraining:
			m.mu.Unlock()
			return ErrTooBusy(modelID, "draining")
		default:
			m.usedEstMB -= cur.EstMemMB
		}
	}
	inst := &Instance{
		ID:       modelID,
		State:    StateLoading,
		Family:   fam,
		Variant:  variant,
		Path:     mdl.Path,
		LastUsed: time.Now(),
		EstMemMB: estMB,
		genCh:    make(chan struct{}, 1),
		queueCh:  make(chan struct{}, m.maxQueueDepth),
	}
	m.instances[modelID] = inst
	m.usedEstMB += estMB
	m.state = StateLoading
	m.mu.Unlock()

	h, err := llm.Load(eng, variant, mdl.Path, m.paramsFor(variant, fam), m.cacheCapacity)
	if err != nil {
		m.mu.Lock()
		if m.instances[modelID] == inst {
			delete(m.instances, modelID)
			m.usedEstMB -= estMB
			if m.usedEstMB < 0 {
				m.usedEstMB = 0
			}
		}
		m.mu.Unlock()
		m.failLoad(modelID, err)
		return err
	}

	m.mu.Lock()
	inst.handle = h
	inst.State = StateReady
	inst.LastUsed = time.Now()
	if m.server != nil {
		if pi, ok := m.server.Info(mdl.Path); ok {
			inst.Port, inst.PID = pi.Port, pi.PID
		}
	}
	m.state = StateReady
	m.lastErr = ""
	m.loads++
	m.mu.Unlock()

	m.saveLRUMetadata()
	m.publish("ensure_ready", modelID, map[string]any{
		"variant": variant.String(),
		"est_mb":  estMB,
		"dur_ms":  time.Since(start).Milliseconds(),
	})
	m.log.Info().
		Str("model", modelID).
		Str("variant", variant.String()).
		Int("est_mb", estMB).
		Dur("dur", time.Since(start)).
		Msg("instance ready")
	return nil
}

func (m *Manager) failLoad(modelID string, err error) {
	m.mu.Lock()
	m.state = StateError
	m.lastErr = err.Error()
	m.mu.Unlock()
	m.publish("ensure_error", modelID, map[string]any{"error": err.Error()})
	m.log.Warn().Err(err).Str("model", modelID).Msg("instance load failed")
}

// paramsFor shapes the load parameters for the resolved variant. CPU
// variants drop the offload settings so a fallback load never asks a
// CPU build for GPU layers; legacy models carry the ggml-era extras.
func (m *Manager) paramsFor(variant engine.Variant, fam backend.Family) engine.ModelParams {
	p := m.baseParams
	switch variant {
	case engine.CPUModern, engine.CPULegacy:
		p.GPULayers = 0
		p.TensorSplit = nil
	}
	p.Legacy = nil
	if fam == backend.FamilyLegacy && m.legacyParams != nil {
		lp := *m.legacyParams
		p.Legacy = &lp
	}
	return p
}

func (m *Manager) getModelByID(id string) (types.Model, bool) {
	for _, mdl := range m.registry {
		if mdl.ID == id {
			return mdl, true
		}
	}
	return types.Model{}, false
}

// estimateMemMB sizes an instance for budget accounting: the catalog
// size when the scanner recorded one, otherwise the file size, never
// below one megabyte.
func estimateMemMB(mdl types.Model) int {
	size := mdl.SizeBytes
	if size <= 0 {
		if fi, err := os.Stat(mdl.Path); err == nil {
			size = fi.Size()
		}
	}
	mb := int(size / (1024 * 1024))
	if mb < 1 {
		mb = 1
	}
	return mb
}

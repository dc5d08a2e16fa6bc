package manager

import "time"

// Unload drains the instance and releases its engine resources. New
// work is refused as soon as the drain starts; in-flight generations
// get drainTimeout to finish before they are canceled, and the release
// itself always waits for the last generation to wind down. Unloading a
// model that is not loaded reports not-found; a drain already in
// progress is a no-op.
func (m *Manager) Unload(modelID string) error {
	if modelID == "" {
		return ErrModelNotFound("")
	}
	m.mu.Lock()
	inst := m.instances[modelID]
	if inst == nil {
		m.mu.Unlock()
		return ErrModelNotFound(modelID)
	}
	if inst.State == StateDraining {
		m.mu.Unlock()
		return nil
	}
	inst.State = StateDraining
	h := inst.handle
	m.mu.Unlock()

	m.publish("unload_start", modelID, nil)

	deadline := time.Now().Add(m.drainTimeout)
	for len(inst.genCh) > 0 || len(inst.queueCh) > 0 {
		if time.Now().After(deadline) {
			m.publish("unload_timeout", modelID, nil)
			if h != nil {
				h.CancelActive()
			}
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if h != nil {
		if err := h.Release(); err != nil {
			m.log.Warn().Err(err).Str("model", modelID).Msg("release failed")
		}
	}

	m.mu.Lock()
	if m.instances[modelID] == inst {
		m.usedEstMB -= inst.EstMemMB
		if m.usedEstMB < 0 {
			m.usedEstMB = 0
		}
		delete(m.instances, modelID)
	}
	m.mu.Unlock()

	m.saveLRUMetadata()
	m.publish("unload_done", modelID, nil)
	m.log.Info().Str("model", modelID).Msg("instance unloaded")
	return nil
}

package manager

// evictUntilFits frees idle instances, least recently used first, until
// requiredMB plus the margin fits in the budget. Best effort: busy or
// loading instances are never touched, and an over-budget load proceeds
// when nothing is evictable.
func (m *Manager) evictUntilFits(requiredMB int) {
	for {
		m.mu.Lock()
		if m.usedEstMB+requiredMB+m.marginMB <= m.budgetMB {
			m.mu.Unlock()
			return
		}
		var victim *Instance
		for _, inst := range m.instances {
			if inst.State != StateReady {
				continue
			}
			if len(inst.genCh) > 0 || len(inst.queueCh) > 0 {
				continue
			}
			if victim == nil || inst.LastUsed.Before(victim.LastUsed) {
				victim = inst
			}
		}
		if victim == nil {
			m.mu.Unlock()
			return
		}
		// Draining refuses new admissions while we release.
		victim.State = StateDraining
		h := victim.handle
		m.mu.Unlock()

		if h != nil {
			if err := h.Release(); err != nil {
				m.log.Warn().Err(err).Str("model", victim.ID).Msg("evict release failed")
			}
		}

		m.mu.Lock()
		if m.instances[victim.ID] == victim {
			m.usedEstMB -= victim.EstMemMB
			if m.usedEstMB < 0 {
				m.usedEstMB = 0
			}
			delete(m.instances, victim.ID)
			m.evictions++
		}
		m.mu.Unlock()

		m.publish("evict", victim.ID, map[string]any{"est_mb": victim.EstMemMB})
		m.log.Info().Str("model", victim.ID).Int("est_mb", victim.EstMemMB).Msg("evicted idle instance")
	}
}

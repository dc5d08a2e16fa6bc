package manager

import (
	"sort"
	"time"

	"inferd/internal/backend"
	"inferd/pkg/types"
)

// Status reports the whole daemon state for the status endpoint.
func (m *Manager) Status() types.StatusResponse {
	m.mu.RLock()
	defer m.mu.RUnlock()

	instances := make([]types.InstanceStatus, 0, len(m.instances))
	queued, inflight, warmups, draining := 0, 0, 0, 0
	for _, inst := range m.instances {
		q, g := len(inst.queueCh), len(inst.genCh)
		queued += q
		inflight += g
		switch inst.State {
		case StateLoading:
			warmups++
		case StateDraining:
			draining++
		}
		instances = append(instances, types.InstanceStatus{
			ModelID:  inst.ID,
			State:    string(inst.State),
			Family:   string(inst.Family),
			Variant:  inst.Variant.String(),
			LastUsed: inst.LastUsed.Unix(),
			EstMemMB: inst.EstMemMB,
			Inflight: g,
			Port:     inst.Port,
			PID:      inst.PID,
		})
	}
	sort.Slice(instances, func(i, j int) bool { return instances[i].ModelID < instances[j].ModelID })

	now := time.Now()
	return types.StatusResponse{
		Instances:         instances,
		BudgetMB:          m.budgetMB,
		UsedMB:            m.usedEstMB,
		MarginMB:          m.marginMB,
		QueueLen:          queued,
		MaxQueueDepth:     m.maxQueueDepth,
		Inflight:          inflight,
		State:             string(m.state),
		WarmupsInProgress: warmups,
		DrainingCount:     draining,
		LastError:         m.lastErr,
		UptimeSeconds:     int64(now.Sub(m.started).Seconds()),
		ServerTimeUnix:    now.Unix(),
		EvictionsTotal:    m.evictions,
		LoadsTotal:        m.loads,
		Preflight:         preflightFrom(m.report),
	}
}

func preflightFrom(rep backend.Report) types.PreflightReport {
	return types.PreflightReport{
		CgoEngine:       rep.CgoEngine,
		CUDA:            rep.CUDA,
		ServerBin:       rep.ServerBin,
		ServerAvailable: rep.ServerAvailable,
		Variants:        rep.Variants,
		Error:           rep.Error,
	}
}

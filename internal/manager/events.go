package manager

import "time"

// Event is one lifecycle notification: loads, drains, evictions,
// generation milestones. Names are stable identifiers, not prose.
type Event struct {
	Name    string
	ModelID string
	Time    time.Time
	Fields  map[string]any
}

// EventPublisher receives lifecycle events. Publish must not block: the
// manager calls it on request paths.
type EventPublisher interface {
	Publish(Event)
}

type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// SetPublisher replaces the event sink; nil restores the no-op sink.
func (m *Manager) SetPublisher(p EventPublisher) {
	if p == nil {
		p = noopPublisher{}
	}
	m.mu.Lock()
	m.pub = p
	m.mu.Unlock()
}

func (m *Manager) publish(name, modelID string, fields map[string]any) {
	m.mu.RLock()
	p := m.pub
	m.mu.RUnlock()
	p.Publish(Event{Name: name, ModelID: modelID, Time: time.Now(), Fields: fields})
}

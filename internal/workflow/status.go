package workflow

import (
	"context"
	"time"

	"guessrank/internal/stage"
)

// StatusSummary is a snapshot of pipeline activity.
type StatusSummary struct {
	Active      int            `json:"active"`
	Processed   int            `json:"processed"`
	Failed      int            `json:"failed"`
	QueueActive int            `json:"queue_active"`
	QueueWait   int            `json:"queue_waiting"`
	QueueLimit  int            `json:"queue_limit"`
	LastError   string         `json:"last_error,omitempty"`
	LastErrorAt time.Time      `json:"last_error_at,omitzero"`
	Health      []stage.Health `json:"health"`
}

// Status reports counters, gate occupancy, and component health.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{
		Active:      m.active,
		Processed:   m.processed,
		Failed:      m.failed,
		LastErrorAt: m.lastErrorAt,
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	m.mu.RUnlock()

	if gate := m.deps.Gate; gate != nil {
		summary.QueueActive, summary.QueueWait = gate.Stats()
		summary.QueueLimit = gate.Limit()
	}
	summary.Health = stage.CheckAll(ctx, m.deps.Checks...)
	return summary
}

// Ready reports whether every health check passes.
func (s StatusSummary) Ready() bool {
	for _, h := range s.Health {
		if !h.Ready {
			return false
		}
	}
	return true
}

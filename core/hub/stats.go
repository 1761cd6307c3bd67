package hub

import (
	"slices"
	"time"
)

// Stats is a point-in-time snapshot of hub state for the surrounding
// service's status surface.
type Stats struct {
	Connections    int              `json:"connections"`
	Channels       int              `json:"channels"`
	Subscriptions  int              `json:"subscriptions"`
	BufferedEvents int              `json:"buffered_events"`
	Details        []ConnectionInfo `json:"details"`
}

// ConnectionInfo describes one live connection.
type ConnectionInfo struct {
	ID           string    `json:"id"`
	SubjectID    string    `json:"subject_id,omitempty"`
	Role         string    `json:"role"`
	ConnectedAt  time.Time `json:"connected_at"`
	LastLiveness time.Time `json:"last_liveness"`
	Channels     []string  `json:"channels,omitempty"`
}

// Stats snapshots the hub under the read lock. Details are sorted by
// connection ID for deterministic output.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := Stats{
		Connections: len(h.conns),
		Channels:    len(h.channels),
		Details:     make([]ConnectionInfo, 0, len(h.conns)),
	}

	for _, chs := range h.subs {
		stats.Subscriptions += len(chs)
	}
	for _, buf := range h.buffers {
		stats.BufferedEvents += buf.len()
	}

	for id, conn := range h.conns {
		channels := make([]string, 0, len(h.subs[id]))
		for ch := range h.subs[id] {
			channels = append(channels, ch)
		}
		slices.Sort(channels)

		stats.Details = append(stats.Details, ConnectionInfo{
			ID:           conn.ID,
			SubjectID:    conn.SubjectID,
			Role:         conn.Role,
			ConnectedAt:  conn.ConnectedAt,
			LastLiveness: conn.LastLiveness,
			Channels:     channels,
		})
	}

	slices.SortFunc(stats.Details, func(a, b ConnectionInfo) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})

	return stats
}

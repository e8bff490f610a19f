package domain

import "time"

// CheckpointStatus is the outcome of the last extraction attempt for an item.
type CheckpointStatus string

// Checkpoint statuses.
const (
	StatusSuccess          CheckpointStatus = "success"
	StatusFailed           CheckpointStatus = "failed"
	StatusAccessRestricted CheckpointStatus = "access_restricted"
)

// Valid reports whether s is a known status.
func (s CheckpointStatus) Valid() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusAccessRestricted:
		return true
	default:
		return false
	}
}

// CheckpointEntry is the persisted extraction outcome for one item.
type CheckpointEntry struct {
	ItemID      string           `json:"item_id"`
	Record      ExtractedRecord  `json:"record"`
	LastAttempt time.Time        `json:"last_attempt"`
	Status      CheckpointStatus `json:"status"`
	Attempts    int              `json:"attempts"`
	Error       string           `json:"error,omitempty"`
}

// Cached reports whether the entry lets a run skip fetching the item.
func (e *CheckpointEntry) Cached() bool {
	return e != nil && (e.Status == StatusSuccess || e.Status == StatusAccessRestricted)
}

package models

import "time"

// Actor types recorded on a history entry.
const (
	ChangedByUser    = "user"
	ChangedByService = "service"
	ChangedBySystem  = "system"
)

// Change types recorded on a history entry.
const (
	ChangeTypeStatus        = "status"
	ChangeTypeScheduledDate = "scheduled_date"
	ChangeTypeScheduledTime = "scheduled_time"
	ChangeTypeCancellation  = "cancellation"
)

// VisitHistoryEntry is an append-only audit record of one change to a visit.
// Entries are never updated or deleted.
type VisitHistoryEntry struct {
	ID            string    `json:"id"`
	VisitID       string    `json:"visit_id"`
	ChangedBy     string    `json:"changed_by"`
	ChangedByType string    `json:"changed_by_type"` // user | service | system
	ChangeType    string    `json:"change_type"`
	OldValue      string    `json:"old_value,omitempty"`
	NewValue      string    `json:"new_value,omitempty"`
	Description   string    `json:"description,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

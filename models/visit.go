package models

import "time"

// Visit statuses. Completed and cancelled are terminal.
const (
	VisitStatusPending   = "pending"
	VisitStatusConfirmed = "confirmed"
	VisitStatusCompleted = "completed"
	VisitStatusCancelled = "cancelled"
)

// Visit represents a booked appointment between a user and an auto service.
type Visit struct {
	ID                   string    `json:"id"`
	UserID               string    `json:"user_id"`
	AutoServiceID        string    `json:"auto_service_id"`
	AutoServiceProfileID string    `json:"auto_service_profile_id"`
	ScheduledDate        string    `json:"scheduled_date"` // "YYYY-MM-DD"
	ScheduledTime        string    `json:"scheduled_time"` // "HH:MM"
	Status               string    `json:"status"`
	ProblemDescription   string    `json:"problem_description,omitempty"`
	ConfirmedDate        string    `json:"confirmed_date,omitempty"` // provider-adjusted, wins over ScheduledDate when set
	ConfirmedTime        string    `json:"confirmed_time,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// EffectiveDate returns the provider-confirmed date when present, else the
// requested one. Display and conflict checks use this value.
func (v Visit) EffectiveDate() string {
	if v.ConfirmedDate != "" {
		return v.ConfirmedDate
	}
	return v.ScheduledDate
}

// EffectiveTime returns the provider-confirmed time when present.
func (v Visit) EffectiveTime() string {
	if v.ConfirmedTime != "" {
		return v.ConfirmedTime
	}
	return v.ScheduledTime
}

// Terminal reports whether the visit can no longer transition.
func (v Visit) Terminal() bool {
	return v.Status == VisitStatusCompleted || v.Status == VisitStatusCancelled
}

// CreateVisitInput is the payload for booking a new visit.
type CreateVisitInput struct {
	AutoServiceID        string `json:"auto_service_id"`
	AutoServiceProfileID string `json:"auto_service_profile_id"`
	ScheduledDate        string `json:"scheduled_date"`
	ScheduledTime        string `json:"scheduled_time"`
	ProblemDescription   string `json:"problem_description,omitempty"`
}

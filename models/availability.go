package models

// AvailabilityException overrides the weekday default for one calendar date.
type AvailabilityException struct {
	ID          string `json:"id"`
	Date        string `json:"date"` // "YYYY-MM-DD"
	IsAvailable bool   `json:"is_available"`
	StartTime   string `json:"start_time,omitempty"` // window override when available
	EndTime     string `json:"end_time,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// Date load statuses derived from bookedVisits / maxVisits.
const (
	DateLoadAvailable = "available"
	DateLoadHeavy     = "heavy"
	DateLoadFull      = "full"
)

// DateLoad is a derived per-date booking pressure figure. Recomputed on
// every availability query, never persisted.
type DateLoad struct {
	Date           string  `json:"date"`
	BookedVisits   int     `json:"booked_visits"`
	MaxVisits      int     `json:"max_visits"`
	LoadPercentage float64 `json:"load_percentage"`
	Status         string  `json:"status"`
}

// ScheduledVisit is the slice of a visit the availability window needs:
// which time on which date is taken.
type ScheduledVisit struct {
	ID     string `json:"id"`
	Date   string `json:"date"`
	Time   string `json:"time"`
	Status string `json:"status"`
}

// DateSlots lists the bookable time points for one date.
type DateSlots struct {
	Date  string   `json:"date"`
	Slots []string `json:"slots"` // "HH:MM", granularity-discretized
}

// AvailabilityResponse is the full availability picture for a provider
// over a requested date window.
type AvailabilityResponse struct {
	WorkingHours    WorkingHours            `json:"working_hours"`
	Exceptions      []AvailabilityException `json:"exceptions"`
	MaxVisitsPerDay int                     `json:"max_visits_per_day"`
	ScheduledVisits []ScheduledVisit        `json:"scheduled_visits"`
	AvailableSlots  []DateSlots             `json:"available_slots"`
	DateLoad        []DateLoad              `json:"date_load"`
}

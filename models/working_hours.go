package models

// WorkingHoursDay is one weekday's open window. Absent entry means closed.
type WorkingHoursDay struct {
	Open  string `json:"open"`  // "HH:MM"
	Close string `json:"close"` // "HH:MM", must be after Open
}

// WorkingHours maps lowercase weekday names ("monday".."sunday") to hours.
type WorkingHours map[string]*WorkingHoursDay

// WorkingHoursGroup buckets weekdays sharing an identical open/close pair.
type WorkingHoursGroup struct {
	Days  []string        `json:"days"` // Monday-first order
	Hours WorkingHoursDay `json:"hours"`
}

package availability

import (
	"context"

	"vizit/models"
)

// Resolver produces the bookable picture for a provider over a date window.
// The server's computation is authoritative; the resolver re-derives slots
// and date load locally with the same rules so partial responses and
// optimistic UI stay consistent.
type Resolver interface {
	GetAvailability(ctx context.Context, providerID, startDate, endDate string) (*models.AvailabilityResponse, error)
	DaySlots(resp *models.AvailabilityResponse, date string) []string
}

// DefaultResolver is the concrete implementation.
type DefaultResolver struct {
	Client         APIReader
	Tokens         TokenSource // optional; enables local own-service detection
	Granularity    int         // slot step in minutes, pinned by the API contract
	HeavyThreshold float64     // booked/max ratio at which a date reads "heavy"
}

// APIReader is the slice of the marketplace API the resolver needs.
type APIReader interface {
	GetAvailability(ctx context.Context, providerID, startDate, endDate string) (*models.AvailabilityResponse, error)
}

// TokenSource yields the current access token. The resolver reads the
// subject claim from it to recognize a provider querying itself.
type TokenSource interface {
	Access() string
}

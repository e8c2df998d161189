package visit

import (
	"context"

	"vizit/client"
	"vizit/models"
)

// Service drives the visit state machine: pending -> confirmed -> completed,
// with cancellation possible from pending or confirmed. Completed and
// cancelled are terminal. Every successful mutation appends exactly one
// history entry server-side; a rejected transition is a no-op and is never
// retried automatically.
type Service interface {
	Create(ctx context.Context, input models.CreateVisitInput) (*models.Visit, error)
	Accept(ctx context.Context, visitID string, opts AcceptOptions) (*models.Visit, error)
	Reschedule(ctx context.Context, visitID, date, timeOfDay string) (*models.Visit, error)
	Complete(ctx context.Context, visitID, notes string) (*models.Visit, error)
	Cancel(ctx context.Context, visitID, reason string) (*models.Visit, error)
	Delete(ctx context.Context, visitID string) error
	History(ctx context.Context, visitID string) ([]models.VisitHistoryEntry, error)
}

// AcceptOptions carries the provider's optional schedule adjustment.
type AcceptOptions struct {
	ConfirmedDate string
	ConfirmedTime string
	Notes         string
}

// VisitAPI is the slice of the marketplace API the lifecycle needs.
type VisitAPI interface {
	CreateVisit(ctx context.Context, input models.CreateVisitInput) (*models.Visit, error)
	GetVisit(ctx context.Context, visitID string) (*models.Visit, error)
	UpdateVisitStatus(ctx context.Context, visitID string, body client.StatusUpdate) (*models.Visit, error)
	RescheduleVisit(ctx context.Context, visitID, date, timeOfDay string) (*models.Visit, error)
	CancelVisit(ctx context.Context, visitID, reason string) (*models.Visit, error)
	CompleteVisit(ctx context.Context, visitID, notes string) (*models.Visit, error)
	DeleteVisit(ctx context.Context, visitID string) error
	GetVisitHistory(ctx context.Context, visitID string) ([]models.VisitHistoryEntry, error)
}

// SlotChecker answers whether a (date, time) is currently bookable for a
// provider. Satisfied by the availability resolver.
type SlotChecker interface {
	GetAvailability(ctx context.Context, providerID, startDate, endDate string) (*models.AvailabilityResponse, error)
	DaySlots(resp *models.AvailabilityResponse, date string) []string
}

// DefaultVisitService implements Service.
type DefaultVisitService struct {
	Client       VisitAPI
	Availability SlotChecker
}

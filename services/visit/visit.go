package visit

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"vizit/client"
	"vizit/models"
	"vizit/services/schedule"
	"vizit/utils"
)

const dateLayout = "2006-01-02"

// NewService wires the lifecycle with its collaborators.
func NewService(api VisitAPI, slots SlotChecker) *DefaultVisitService {
	return &DefaultVisitService{Client: api, Availability: slots}
}

// Create books a new visit in pending state.
func (s *DefaultVisitService) Create(ctx context.Context, input models.CreateVisitInput) (*models.Visit, error) {
	if err := validateSchedule(input.ScheduledDate, input.ScheduledTime); err != nil {
		return nil, err
	}
	return s.Client.CreateVisit(ctx, input)
}

// Accept confirms a pending visit. With no explicit confirmed date the
// requested date is kept when it is today or later; a past requested date
// is replaced by today so a visit is never silently confirmed into the past.
func (s *DefaultVisitService) Accept(ctx context.Context, visitID string, opts AcceptOptions) (*models.Visit, error) {
	logger := utils.GetLogger()

	v, err := s.Client.GetVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if v.Status != models.VisitStatusPending {
		return nil, &utils.ConflictError{
			Message: fmt.Sprintf("visit %s cannot be accepted from status %q", visitID, v.Status),
		}
	}

	confirmedDate := opts.ConfirmedDate
	if confirmedDate == "" {
		confirmedDate = defaultConfirmedDate(v.ScheduledDate, time.Now())
	}
	confirmedTime := opts.ConfirmedTime
	if confirmedTime == "" {
		confirmedTime = v.ScheduledTime
	}
	if err := validateSchedule(confirmedDate, confirmedTime); err != nil {
		return nil, err
	}

	updated, err := s.Client.UpdateVisitStatus(ctx, visitID, client.StatusUpdate{
		Status:        models.VisitStatusConfirmed,
		ConfirmedDate: confirmedDate,
		ConfirmedTime: confirmedTime,
		Notes:         opts.Notes,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("visit accepted",
		zap.String("visitID", visitID),
		zap.String("confirmedDate", confirmedDate),
		zap.String("confirmedTime", confirmedTime))
	return updated, nil
}

// defaultConfirmedDate keeps a today-or-future requested date and
// substitutes today otherwise.
func defaultConfirmedDate(scheduledDate string, now time.Time) string {
	today := now.Format(dateLayout)
	d, err := time.Parse(dateLayout, scheduledDate)
	if err != nil {
		return today
	}
	if d.Format(dateLayout) < today {
		return today
	}
	return scheduledDate
}

// Reschedule moves the working schedule without changing status. The new
// slot must be in the provider's currently available set, unless it is the
// slot the visit already holds.
func (s *DefaultVisitService) Reschedule(ctx context.Context, visitID, date, timeOfDay string) (*models.Visit, error) {
	if err := validateSchedule(date, timeOfDay); err != nil {
		return nil, err
	}

	v, err := s.Client.GetVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if v.Terminal() {
		return nil, &utils.ConflictError{
			Message: fmt.Sprintf("visit %s cannot be rescheduled from status %q", visitID, v.Status),
		}
	}

	// The visit's own effective slot looks taken in the provider's schedule
	// because this very visit occupies it, so it is exempt from the check.
	ownSlot := date == v.EffectiveDate() && timeOfDay == v.EffectiveTime()
	if !ownSlot {
		resp, err := s.Availability.GetAvailability(ctx, v.AutoServiceID, date, date)
		if err != nil {
			return nil, err
		}
		// A nil response means no availability data; the server remains the
		// authority and will reject an impossible slot.
		if resp != nil && !slotOffered(s.Availability.DaySlots(resp, date), timeOfDay) {
			return nil, &utils.ConflictError{
				Message: fmt.Sprintf("slot %s %s is no longer available", date, timeOfDay),
			}
		}
	}

	return s.Client.RescheduleVisit(ctx, visitID, date, timeOfDay)
}

// Complete closes out a confirmed visit.
func (s *DefaultVisitService) Complete(ctx context.Context, visitID, notes string) (*models.Visit, error) {
	v, err := s.Client.GetVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if v.Status != models.VisitStatusConfirmed {
		return nil, &utils.ConflictError{
			Message: fmt.Sprintf("visit %s cannot be completed from status %q", visitID, v.Status),
		}
	}
	return s.Client.CompleteVisit(ctx, visitID, notes)
}

// Cancel withdraws a pending or confirmed visit. The reason is mandatory
// and checked before any request is issued; the server enforces the same
// rule and there is no point paying a round trip for a known rejection.
func (s *DefaultVisitService) Cancel(ctx context.Context, visitID, reason string) (*models.Visit, error) {
	reason = strings.TrimSpace(reason)
	if len([]rune(reason)) < 3 {
		return nil, &utils.ValidationError{
			Field:   "reason",
			Message: "cancellation reason must be at least 3 characters",
		}
	}

	v, err := s.Client.GetVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if v.Terminal() {
		return nil, &utils.ConflictError{
			Message: fmt.Sprintf("visit %s cannot be cancelled from status %q", visitID, v.Status),
		}
	}
	return s.Client.CancelVisit(ctx, visitID, reason)
}

// Delete removes a visit outright. Only unconfirmed visits may be deleted;
// the server is authoritative, this guard just saves the round trip.
func (s *DefaultVisitService) Delete(ctx context.Context, visitID string) error {
	v, err := s.Client.GetVisit(ctx, visitID)
	if err != nil {
		return err
	}
	if v.Status != models.VisitStatusPending {
		return &utils.ConflictError{
			Message: fmt.Sprintf("visit %s is %s and can no longer be deleted", visitID, v.Status),
		}
	}
	return s.Client.DeleteVisit(ctx, visitID)
}

// History returns the audit trail oldest-first.
func (s *DefaultVisitService) History(ctx context.Context, visitID string) ([]models.VisitHistoryEntry, error) {
	entries, err := s.Client.GetVisitHistory(ctx, visitID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return entries, nil
}

// validateSchedule rejects malformed date/time input locally.
func validateSchedule(date, timeOfDay string) error {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return &utils.ValidationError{Field: "date", Message: fmt.Sprintf("%q is not a valid date", date)}
	}
	if _, ok := schedule.ParseClock(timeOfDay); !ok {
		return &utils.ValidationError{Field: "time", Message: fmt.Sprintf("%q is not a valid time", timeOfDay)}
	}
	return nil
}

func slotOffered(slots []string, timeOfDay string) bool {
	for _, s := range slots {
		if s == timeOfDay {
			return true
		}
	}
	return false
}

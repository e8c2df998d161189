package availability

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"vizit/models"
	"vizit/services/schedule"
	"vizit/utils"
)

const dateLayout = "2006-01-02"

// NewResolver wires a resolver with the scheduling constants from config.
func NewResolver(api APIReader, tokens TokenSource, granularityMin int, heavyThreshold float64) *DefaultResolver {
	return &DefaultResolver{
		Client:         api,
		Tokens:         tokens,
		Granularity:    granularityMin,
		HeavyThreshold: heavyThreshold,
	}
}

// GetAvailability fetches the provider's window and re-derives slots and
// date load locally. Returns (nil, nil) when the provider or profile does
// not resolve, so callers degrade to "no constraints" instead of failing.
// A provider asking about itself is rejected before the round trip; the
// server enforces the same rule via a localized conflict message.
func (s *DefaultResolver) GetAvailability(ctx context.Context, providerID, startDate, endDate string) (*models.AvailabilityResponse, error) {
	logger := utils.GetLogger()

	if s.isOwnService(providerID) {
		return nil, ErrOwnService
	}

	resp, err := s.Client.GetAvailability(ctx, providerID, startDate, endDate)
	if err != nil {
		if utils.IsNotFound(err) {
			logger.Debug("availability: provider not found, degrading to no constraints",
				zap.String("providerID", providerID))
			return nil, nil
		}
		var conflict *utils.ConflictError
		if errors.As(err, &conflict) && classifyOwnService(conflict.Message) {
			return nil, ErrOwnService
		}
		return nil, err
	}

	s.recompute(resp, startDate, endDate)
	return resp, nil
}

// DaySlots derives the bookable time points for one date from an already
// fetched response. Used by reschedule validation.
func (s *DefaultResolver) DaySlots(resp *models.AvailabilityResponse, date string) []string {
	if resp == nil {
		return nil
	}
	exceptions := exceptionsByDate(resp.Exceptions)
	taken, counts := bookingsByDate(resp.ScheduledVisits)
	return s.daySlots(resp, date, exceptions, taken, counts[date])
}

// recompute overwrites AvailableSlots and DateLoad with locally derived
// values for every date of the requested window.
func (s *DefaultResolver) recompute(resp *models.AvailabilityResponse, startDate, endDate string) {
	start, err := time.Parse(dateLayout, startDate)
	if err != nil {
		return
	}
	end, err := time.Parse(dateLayout, endDate)
	if err != nil || end.Before(start) {
		return
	}

	exceptions := exceptionsByDate(resp.Exceptions)
	taken, counts := bookingsByDate(resp.ScheduledVisits)

	resp.AvailableSlots = resp.AvailableSlots[:0]
	resp.DateLoad = resp.DateLoad[:0]
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		date := d.Format(dateLayout)
		booked := counts[date]
		resp.AvailableSlots = append(resp.AvailableSlots, models.DateSlots{
			Date:  date,
			Slots: s.daySlots(resp, date, exceptions, taken, booked),
		})
		resp.DateLoad = append(resp.DateLoad, s.dateLoad(date, booked, resp.MaxVisitsPerDay))
	}
}

// daySlots applies the effective-hours rule: exception wins over weekday
// default; closed exception or absent hours yield zero slots; otherwise the
// discretized points inside [open, close) minus taken times, while the
// day still has booking capacity. A non-positive cap means no capacity at
// all, the same reading dateLoad gives it.
func (s *DefaultResolver) daySlots(resp *models.AvailabilityResponse, date string, exceptions map[string]models.AvailabilityException, taken map[string]map[string]bool, booked int) []string {
	if booked >= resp.MaxVisitsPerDay {
		return nil
	}

	openMin, closeMin, ok := s.effectiveWindow(resp.WorkingHours, exceptions, date)
	if !ok {
		return nil
	}

	step := s.Granularity
	if step <= 0 {
		step = 30
	}
	var slots []string
	for t := openMin; t < closeMin; t += step {
		clock := schedule.FormatClock(t)
		if taken[date][clock] {
			continue
		}
		slots = append(slots, clock)
	}
	return slots
}

// effectiveWindow resolves the open window for a date: a date-scoped
// exception overrides the weekday default entirely.
func (s *DefaultResolver) effectiveWindow(hours models.WorkingHours, exceptions map[string]models.AvailabilityException, date string) (openMin, closeMin int, ok bool) {
	if exc, found := exceptions[date]; found {
		if !exc.IsAvailable {
			return 0, 0, false
		}
		if exc.StartTime != "" && exc.EndTime != "" {
			start, okStart := schedule.ParseClock(exc.StartTime)
			end, okEnd := schedule.ParseClock(exc.EndTime)
			if okStart && okEnd && start < end {
				return start, end, true
			}
			return 0, 0, false
		}
		// Available exception with no window keeps the weekday default.
	}

	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return 0, 0, false
	}
	return schedule.Window(hours[schedule.DayName(d)])
}

// dateLoad classifies booking pressure purely from booked/max.
func (s *DefaultResolver) dateLoad(date string, booked, max int) models.DateLoad {
	load := models.DateLoad{
		Date:         date,
		BookedVisits: booked,
		MaxVisits:    max,
	}
	if max <= 0 {
		load.LoadPercentage = 100
		load.Status = models.DateLoadFull
		return load
	}
	ratio := float64(booked) / float64(max)
	load.LoadPercentage = ratio * 100
	switch {
	case booked >= max:
		load.Status = models.DateLoadFull
	case ratio >= s.HeavyThreshold:
		load.Status = models.DateLoadHeavy
	default:
		load.Status = models.DateLoadAvailable
	}
	return load
}

// isOwnService compares the access token's subject against the queried
// provider id. Malformed or absent tokens never match.
func (s *DefaultResolver) isOwnService(providerID string) bool {
	if s.Tokens == nil || providerID == "" {
		return false
	}
	id, err := utils.ExtractIDFromToken(s.Tokens.Access())
	return err == nil && id == providerID
}

func exceptionsByDate(list []models.AvailabilityException) map[string]models.AvailabilityException {
	m := make(map[string]models.AvailabilityException, len(list))
	for _, exc := range list {
		m[exc.Date] = exc
	}
	return m
}

// bookingsByDate indexes which times are taken per date and how many
// active visits each date carries. Cancelled visits occupy nothing.
func bookingsByDate(visits []models.ScheduledVisit) (map[string]map[string]bool, map[string]int) {
	taken := make(map[string]map[string]bool)
	counts := make(map[string]int)
	for _, v := range visits {
		if v.Status == models.VisitStatusCancelled {
			continue
		}
		if taken[v.Date] == nil {
			taken[v.Date] = make(map[string]bool)
		}
		taken[v.Date][v.Time] = true
		counts[v.Date]++
	}
	return taken, counts
}

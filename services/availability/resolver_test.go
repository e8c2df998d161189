package availability

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"vizit/models"
	"vizit/utils"
)

// fakeAPI serves one canned response or error.
type fakeAPI struct {
	resp  *models.AvailabilityResponse
	err   error
	calls int
}

func (f *fakeAPI) GetAvailability(ctx context.Context, providerID, startDate, endDate string) (*models.AvailabilityResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	// The resolver mutates slots/load in place; hand out a copy.
	cp := *f.resp
	return &cp, nil
}

func day(open, close string) *models.WorkingHoursDay {
	return &models.WorkingHoursDay{Open: open, Close: close}
}

func standardWeek() models.WorkingHours {
	return models.WorkingHours{
		"monday":    day("09:00", "18:00"),
		"tuesday":   day("09:00", "18:00"),
		"wednesday": day("09:00", "18:00"),
		"thursday":  day("09:00", "18:00"),
		"friday":    day("09:00", "18:00"),
		"saturday":  day("10:00", "14:00"),
	}
}

func newTestResolver(api APIReader) *DefaultResolver {
	return NewResolver(api, nil, 30, 0.7)
}

type staticTokens struct{ token string }

func (s staticTokens) Access() string { return s.token }

func slotsFor(t *testing.T, resp *models.AvailabilityResponse, date string) []string {
	t.Helper()
	for _, ds := range resp.AvailableSlots {
		if ds.Date == date {
			return ds.Slots
		}
	}
	t.Fatalf("no slot entry for %s", date)
	return nil
}

func loadFor(t *testing.T, resp *models.AvailabilityResponse, date string) models.DateLoad {
	t.Helper()
	for _, dl := range resp.DateLoad {
		if dl.Date == date {
			return dl
		}
	}
	t.Fatalf("no date load entry for %s", date)
	return models.DateLoad{}
}

func TestGetAvailability_ExceptionClosesWednesday(t *testing.T) {
	api := &fakeAPI{resp: &models.AvailabilityResponse{
		WorkingHours:    standardWeek(),
		MaxVisitsPerDay: 10,
		Exceptions: []models.AvailabilityException{
			{ID: "e1", Date: "2025-06-04", IsAvailable: false, Reason: "inventory day"},
		},
	}}
	resolver := newTestResolver(api)

	// 2025-06-04 is a Wednesday, 2025-06-05 the following Thursday.
	resp, err := resolver.GetAvailability(context.Background(), "prov-1", "2025-06-04", "2025-06-05")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if slots := slotsFor(t, resp, "2025-06-04"); len(slots) != 0 {
		t.Fatalf("closed exception must yield zero slots, got %v", slots)
	}
	thursday := slotsFor(t, resp, "2025-06-05")
	if len(thursday) != 18 {
		t.Fatalf("expected 18 half-hour slots for 09:00-18:00, got %d: %v", len(thursday), thursday)
	}
	if thursday[0] != "09:00" || thursday[len(thursday)-1] != "17:30" {
		t.Fatalf("unexpected slot bounds: %v", thursday)
	}
}

func TestGetAvailability_ExceptionOverridesWindow(t *testing.T) {
	api := &fakeAPI{resp: &models.AvailabilityResponse{
		WorkingHours:    standardWeek(),
		MaxVisitsPerDay: 10,
		Exceptions: []models.AvailabilityException{
			{ID: "e1", Date: "2025-06-04", IsAvailable: true, StartTime: "12:00", EndTime: "14:00"},
		},
	}}
	resolver := newTestResolver(api)

	resp, err := resolver.GetAvailability(context.Background(), "prov-1", "2025-06-04", "2025-06-04")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	slots := slotsFor(t, resp, "2025-06-04")
	want := []string{"12:00", "12:30", "13:00", "13:30"}
	if len(slots) != len(want) {
		t.Fatalf("got %v, want %v", slots, want)
	}
	for i := range want {
		if slots[i] != want[i] {
			t.Fatalf("got %v, want %v", slots, want)
		}
	}
}

func TestGetAvailability_BookedTimesAreSubtracted(t *testing.T) {
	api := &fakeAPI{resp: &models.AvailabilityResponse{
		WorkingHours:    standardWeek(),
		MaxVisitsPerDay: 10,
		ScheduledVisits: []models.ScheduledVisit{
			{ID: "v1", Date: "2025-06-07", Time: "10:00", Status: models.VisitStatusConfirmed},
			{ID: "v2", Date: "2025-06-07", Time: "11:30", Status: models.VisitStatusPending},
			{ID: "v3", Date: "2025-06-07", Time: "12:00", Status: models.VisitStatusCancelled},
		},
	}}
	resolver := newTestResolver(api)

	// 2025-06-07 is a Saturday, 10:00-14:00.
	resp, err := resolver.GetAvailability(context.Background(), "prov-1", "2025-06-07", "2025-06-07")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	slots := slotsFor(t, resp, "2025-06-07")
	for _, s := range slots {
		if s == "10:00" || s == "11:30" {
			t.Fatalf("booked time %s must not be offered: %v", s, slots)
		}
	}
	// Cancelled visit occupies nothing.
	found := false
	for _, s := range slots {
		if s == "12:00" {
			found = true
		}
	}
	if !found {
		t.Fatalf("cancelled visit must free its slot: %v", slots)
	}
}

func TestGetAvailability_FullDayOffersNoSlots(t *testing.T) {
	api := &fakeAPI{resp: &models.AvailabilityResponse{
		WorkingHours:    standardWeek(),
		MaxVisitsPerDay: 2,
		ScheduledVisits: []models.ScheduledVisit{
			{ID: "v1", Date: "2025-06-02", Time: "09:00", Status: models.VisitStatusConfirmed},
			{ID: "v2", Date: "2025-06-02", Time: "10:00", Status: models.VisitStatusPending},
		},
	}}
	resolver := newTestResolver(api)

	resp, err := resolver.GetAvailability(context.Background(), "prov-1", "2025-06-02", "2025-06-02")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slots := slotsFor(t, resp, "2025-06-02"); len(slots) != 0 {
		t.Fatalf("a date at capacity must offer no slots, got %v", slots)
	}
	if load := loadFor(t, resp, "2025-06-02"); load.Status != models.DateLoadFull {
		t.Fatalf("expected full, got %+v", load)
	}
}

func TestGetAvailability_ZeroCapOffersNoSlots(t *testing.T) {
	api := &fakeAPI{resp: &models.AvailabilityResponse{
		WorkingHours:    standardWeek(),
		MaxVisitsPerDay: 0,
	}}
	resolver := newTestResolver(api)

	resp, err := resolver.GetAvailability(context.Background(), "prov-1", "2025-06-02", "2025-06-02")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slots := slotsFor(t, resp, "2025-06-02"); len(slots) != 0 {
		t.Fatalf("a zero cap must offer no slots, got %v", slots)
	}
	if load := loadFor(t, resp, "2025-06-02"); load.Status != models.DateLoadFull {
		t.Fatalf("expected full, got %+v", load)
	}
}

func TestDateLoadStatusThresholds(t *testing.T) {
	resolver := newTestResolver(&fakeAPI{})
	cases := []struct {
		booked, max int
		want        string
	}{
		{0, 10, models.DateLoadAvailable},
		{6, 10, models.DateLoadAvailable},
		{7, 10, models.DateLoadHeavy},
		{9, 10, models.DateLoadHeavy},
		{10, 10, models.DateLoadFull},
		{11, 10, models.DateLoadFull},
		{0, 0, models.DateLoadFull},
	}
	for _, tc := range cases {
		if got := resolver.dateLoad("2025-06-02", tc.booked, tc.max); got.Status != tc.want {
			t.Errorf("dateLoad(%d/%d) = %s, want %s", tc.booked, tc.max, got.Status, tc.want)
		}
	}
}

func TestGetAvailability_NotFoundDegradesToNil(t *testing.T) {
	api := &fakeAPI{err: &utils.NotFoundError{Resource: "provider", ID: "ghost"}}
	resolver := newTestResolver(api)

	resp, err := resolver.GetAvailability(context.Background(), "ghost", "2025-06-02", "2025-06-08")
	if err != nil {
		t.Fatalf("not-found must degrade, got error: %v", err)
	}
	if resp != nil {
		t.Fatalf("expected nil response, got %+v", resp)
	}
}

func TestGetAvailability_OwnServiceMarker(t *testing.T) {
	messages := []string{
		"You cannot book your own service",
		"Вы не можете записаться в собственный сервис",
		"O'z servisingizga yozila olmaysiz",
	}
	for _, msg := range messages {
		api := &fakeAPI{err: &utils.ConflictError{Message: msg}}
		resolver := newTestResolver(api)
		_, err := resolver.GetAvailability(context.Background(), "self", "2025-06-02", "2025-06-08")
		if err != ErrOwnService {
			t.Errorf("message %q: expected ErrOwnService, got %v", msg, err)
		}
	}
}

func TestGetAvailability_OwnServiceByTokenSubject(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "prov-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	api := &fakeAPI{resp: &models.AvailabilityResponse{WorkingHours: standardWeek(), MaxVisitsPerDay: 10}}
	resolver := newTestResolver(api)
	resolver.Tokens = staticTokens{token: token}

	if _, err := resolver.GetAvailability(context.Background(), "prov-1", "2025-06-02", "2025-06-02"); err != ErrOwnService {
		t.Fatalf("expected ErrOwnService, got %v", err)
	}
	if api.calls != 0 {
		t.Fatalf("own-service lookup must not reach the API, got %d calls", api.calls)
	}

	// A different provider passes through.
	if _, err := resolver.GetAvailability(context.Background(), "prov-2", "2025-06-02", "2025-06-02"); err != nil {
		t.Fatalf("unexpected error for another provider: %v", err)
	}
	if api.calls != 1 {
		t.Fatalf("expected one API call, got %d", api.calls)
	}
}

func TestGetAvailability_UnrelatedConflictPassesThrough(t *testing.T) {
	api := &fakeAPI{err: &utils.ConflictError{Message: "window too large"}}
	resolver := newTestResolver(api)
	_, err := resolver.GetAvailability(context.Background(), "prov-1", "2025-06-02", "2025-06-08")
	if !utils.IsConflict(err) || err == ErrOwnService {
		t.Fatalf("expected the conflict surfaced verbatim, got %v", err)
	}
}

package schedule

import (
	"fmt"
	"strings"
	"time"

	"vizit/models"
)

// weekdayOrder is the canonical Monday-first ordering used everywhere the
// calendar sorts or collapses days.
var weekdayOrder = []string{
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
}

var weekdayIndex = func() map[string]int {
	m := make(map[string]int, len(weekdayOrder))
	for i, d := range weekdayOrder {
		m[d] = i
	}
	return m
}()

// ParseClock converts "HH:MM" to minutes from midnight. Returns ok=false
// for anything malformed; callers skip such entries instead of failing.
func ParseClock(s string) (int, bool) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, false
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

// FormatClock renders minutes from midnight as "HH:MM".
func FormatClock(min int) string {
	return fmt.Sprintf("%02d:%02d", min/60, min%60)
}

// validDay reports whether the entry holds a usable open window.
func validDay(day *models.WorkingHoursDay) bool {
	if day == nil {
		return false
	}
	openMin, okOpen := ParseClock(day.Open)
	closeMin, okClose := ParseClock(day.Close)
	return okOpen && okClose && openMin < closeMin
}

// GroupWorkingHours buckets weekdays by identical (open, close) pair. Days
// within a bucket come back Monday-first; days without valid hours are
// excluded entirely, so no empty groups are emitted.
func GroupWorkingHours(hours models.WorkingHours) []models.WorkingHoursGroup {
	buckets := make(map[string][]string)
	windows := make(map[string]models.WorkingHoursDay)
	for _, name := range weekdayOrder {
		day := hours[name]
		if !validDay(day) {
			continue
		}
		key := day.Open + "-" + day.Close
		buckets[key] = append(buckets[key], name)
		windows[key] = *day
	}

	// Emit groups ordered by their earliest weekday so output is stable.
	var groups []models.WorkingHoursGroup
	seen := make(map[string]bool)
	for _, name := range weekdayOrder {
		day := hours[name]
		if !validDay(day) {
			continue
		}
		key := day.Open + "-" + day.Close
		if seen[key] {
			continue
		}
		seen[key] = true
		groups = append(groups, models.WorkingHoursGroup{
			Days:  buckets[key],
			Hours: windows[key],
		})
	}
	return groups
}

// IsCurrentlyOpen answers whether the provider is open at the given moment.
// known is false when the current weekday has no usable entry; callers must
// not claim "closed" when the data is simply absent.
func IsCurrentlyOpen(hours models.WorkingHours, now time.Time) (open bool, known bool) {
	name := strings.ToLower(now.Weekday().String())
	day := hours[name]
	if !validDay(day) {
		return false, false
	}
	openMin, _ := ParseClock(day.Open)
	closeMin, _ := ParseClock(day.Close)
	nowMin := now.Hour()*60 + now.Minute()
	return nowMin >= openMin && nowMin <= closeMin, true
}

// Window returns the parsed open window in minutes from midnight.
// ok is false for absent or malformed entries.
func Window(day *models.WorkingHoursDay) (openMin, closeMin int, ok bool) {
	if !validDay(day) {
		return 0, 0, false
	}
	openMin, _ = ParseClock(day.Open)
	closeMin, _ = ParseClock(day.Close)
	return openMin, closeMin, true
}

// DayName returns the lowercase weekday key for a date.
func DayName(t time.Time) string {
	return strings.ToLower(t.Weekday().String())
}

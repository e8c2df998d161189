package schedule

import "strings"

// Localized weekday display names, Monday-first. Only the locales the
// marketplace ships; unknown locales fall back to English.
var dayNames = map[string][]string{
	"en": {"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"},
	"ru": {"Понедельник", "Вторник", "Среда", "Четверг", "Пятница", "Суббота", "Воскресенье"},
	"uz": {"Dushanba", "Seshanba", "Chorshanba", "Payshanba", "Juma", "Shanba", "Yakshanba"},
}

// FormatDayRange renders a set of weekdays compactly: three or more
// consecutive days (Monday order, Sunday wrapping to Monday) collapse to
// "First–Last"; short mixed sets are comma-separated; anything longer than
// three non-consecutive names falls back to "First–Last" to bound the
// label length.
func FormatDayRange(days []string, locale string) string {
	names := dayNames[locale]
	if names == nil {
		names = dayNames["en"]
	}

	var present [7]bool
	count := 0
	for _, d := range days {
		idx, ok := weekdayIndex[strings.ToLower(d)]
		if !ok || present[idx] {
			continue
		}
		present[idx] = true
		count++
	}
	if count == 0 {
		return ""
	}
	if count == 7 {
		return names[0] + "–" + names[6]
	}

	// A cyclic run has exactly one gap: a present day whose successor is
	// absent marks the run's end.
	gaps := 0
	last := -1
	for i := 0; i < 7; i++ {
		if present[i] && !present[(i+1)%7] {
			gaps++
			last = i
		}
	}
	if gaps == 1 && count >= 3 {
		first := (last + 7 - count + 1) % 7
		return names[first] + "–" + names[last]
	}

	ordered := make([]string, 0, count)
	firstIdx, lastIdx := -1, -1
	for i := 0; i < 7; i++ {
		if !present[i] {
			continue
		}
		ordered = append(ordered, names[i])
		if firstIdx == -1 {
			firstIdx = i
		}
		lastIdx = i
	}
	if len(ordered) > 3 {
		return names[firstIdx] + "–" + names[lastIdx]
	}
	return strings.Join(ordered, ", ")
}

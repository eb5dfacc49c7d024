package ride

import (
	"time"

	"backend-ridelink/internal/shared/apperr"
)

// NowRideWindow is how long a "ride now" request stays joinable.
const NowRideWindow = 30 * time.Minute

const (
	lunchStartHour     = 12
	lunchEndHour       = 14
	afternoonStartHour = 14
	afternoonEndHour   = 18
)

// Window derives the ride time window from a preset. Lunch and afternoon
// windows roll to the next day once their start has passed.
func Window(preset Preset, now time.Time, customStart, customEnd time.Time) (time.Time, time.Time, error) {
	switch preset {
	case PresetNow:
		return now, now.Add(NowRideWindow), nil
	case PresetLunch:
		return rollingWindow(now, lunchStartHour, lunchEndHour), rollingWindowEnd(now, lunchStartHour, lunchEndHour), nil
	case PresetAfternoon:
		return rollingWindow(now, afternoonStartHour, afternoonEndHour), rollingWindowEnd(now, afternoonStartHour, afternoonEndHour), nil
	case PresetCustom:
		if customStart.IsZero() || customEnd.IsZero() {
			return time.Time{}, time.Time{}, apperr.New(apperr.CodeValidation, "custom preset requires start_time and end_time")
		}
		if !customEnd.After(customStart) {
			return time.Time{}, time.Time{}, apperr.New(apperr.CodeValidation, "end_time must be after start_time")
		}
		return customStart, customEnd, nil
	default:
		return time.Time{}, time.Time{}, apperr.New(apperr.CodeValidation, "unknown preset")
	}
}

func rollingWindow(now time.Time, startHour, _ int) time.Time {
	day := now
	start := time.Date(day.Year(), day.Month(), day.Day(), startHour, 0, 0, 0, day.Location())
	if now.After(start) {
		day = day.AddDate(0, 0, 1)
		start = time.Date(day.Year(), day.Month(), day.Day(), startHour, 0, 0, 0, day.Location())
	}
	return start
}

func rollingWindowEnd(now time.Time, startHour, endHour int) time.Time {
	start := rollingWindow(now, startHour, endHour)
	return time.Date(start.Year(), start.Month(), start.Day(), endHour, 0, 0, 0, start.Location())
}

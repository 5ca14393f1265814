package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"attendance.service/internal/core/model"
)

// ResolveSchedule computes the effective start/end/grace for a worker on a
// date from a configuration snapshot. Precedence: enabled day override for
// the date's weekday, then the worker's custom times, then the tenant
// defaults. Pure function; no clock access.
func ResolveSchedule(cfg model.ScheduleConfig, worker model.Worker, date string) (model.ResolvedSchedule, error) {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return model.ResolvedSchedule{}, fmt.Errorf("invalid date %q: %w", date, err)
	}

	startRaw := cfg.DefaultStart
	endRaw := cfg.DefaultEnd

	if worker.CustomStart != nil && *worker.CustomStart != "" {
		startRaw = *worker.CustomStart
	}
	if worker.CustomEnd != nil && *worker.CustomEnd != "" {
		endRaw = *worker.CustomEnd
	}

	for _, o := range cfg.DayOverrides {
		if o.Enabled && o.Weekday == day.Weekday() {
			startRaw = o.Start
			endRaw = o.End
			break
		}
	}

	start, err := ParseMinuteOfDay(startRaw)
	if err != nil {
		return model.ResolvedSchedule{}, fmt.Errorf("invalid start time %q: %w", startRaw, err)
	}
	end, err := ParseMinuteOfDay(endRaw)
	if err != nil {
		return model.ResolvedSchedule{}, fmt.Errorf("invalid end time %q: %w", endRaw, err)
	}

	return model.ResolvedSchedule{
		StartMinute:  start,
		EndMinute:    end,
		GraceMinutes: cfg.LateGraceMinutes,
	}, nil
}

// ParseMinuteOfDay converts an "HH:MM" wall time into minutes since midnight.
func ParseMinuteOfDay(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}

// AtMinute returns the instant at the given minute of the civil day in loc.
func AtMinute(date string, minute int, loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return day.Add(time.Duration(minute) * time.Minute), nil
}

// MinuteOfDay converts an instant into minutes since midnight of its own
// civil day.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// Package shift maps wall-clock time to duty shifts.
//
// Mon–Thu 09:00–18:00 local is the "weekday" shift, Fri–Sun 09:00–18:00 is
// the "weekend" shift. Tasks created after the shift end hour are assigned
// to the NEXT calendar day's shift, not the one that just ended.
package shift

import (
	"time"

	"kioskops/models"
)

// Resolver is a pure, stateless shift classifier for a fixed-offset
// operating timezone.
type Resolver struct {
	// Offset is the fixed UTC offset of the operating timezone (no DST).
	Offset time.Duration
	// EndHour is the local hour at which shifts end (24h clock).
	EndHour int
}

// NewResolver builds a resolver with the standard 18:00 shift end.
func NewResolver(offset time.Duration) Resolver {
	return Resolver{Offset: offset, EndHour: 18}
}

func (r Resolver) local(t time.Time) time.Time {
	return t.UTC().Add(r.Offset)
}

// WeekdayMon1 returns the Monday-indexed day number (1=Mon ... 7=Sun) of t
// in the operating timezone.
func (r Resolver) WeekdayMon1(t time.Time) int {
	d := int(r.local(t).Weekday()) // 0=Sun
	if d == 0 {
		return 7
	}
	return d
}

// LocalHour returns the hour of t in the operating timezone.
func (r Resolver) LocalHour(t time.Time) int {
	return r.local(t).Hour()
}

// AssignmentShift returns the shift new work created at t should be
// assigned to. After the shift end hour the assignment rolls over to the
// next day.
func (r Resolver) AssignmentShift(t time.Time) models.ShiftType {
	w := r.WeekdayMon1(t)
	if r.LocalHour(t) >= r.EndHour {
		if w == 7 {
			w = 1
		} else {
			w++
		}
	}
	// weekday: Mon(1)-Thu(4), weekend: Fri(5)-Sun(7)
	if w >= 5 {
		return models.ShiftWeekend
	}
	return models.ShiftWeekday
}

package shift

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"kioskops/models"
)

const klOffset = 8 * time.Hour

// klTime builds a UTC instant that corresponds to the given local
// Kuala Lumpur wall-clock time.
func klTime(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC).Add(-klOffset)
}

func TestWeekdayMon1(t *testing.T) {
	r := NewResolver(klOffset)

	// 2025-01-06 is a Monday, 2025-01-12 a Sunday.
	assert.Equal(t, 1, r.WeekdayMon1(klTime(2025, time.January, 6, 12, 0)))
	assert.Equal(t, 4, r.WeekdayMon1(klTime(2025, time.January, 9, 12, 0)))
	assert.Equal(t, 7, r.WeekdayMon1(klTime(2025, time.January, 12, 12, 0)))
}

func TestAssignmentShiftDuringHours(t *testing.T) {
	r := NewResolver(klOffset)

	// Thursday 17:59 local is still the weekday shift.
	assert.Equal(t, models.ShiftWeekday, r.AssignmentShift(klTime(2025, time.January, 9, 17, 59)))
	// Friday midday is the weekend shift.
	assert.Equal(t, models.ShiftWeekend, r.AssignmentShift(klTime(2025, time.January, 10, 12, 0)))
	// Monday morning is back to weekday.
	assert.Equal(t, models.ShiftWeekday, r.AssignmentShift(klTime(2025, time.January, 6, 9, 0)))
}

func TestAssignmentShiftRollsToNextDayAfterHours(t *testing.T) {
	r := NewResolver(klOffset)

	// Thursday 18:01 rolls to Friday -> weekend.
	assert.Equal(t, models.ShiftWeekend, r.AssignmentShift(klTime(2025, time.January, 9, 18, 1)))
	// Sunday 19:00 rolls to Monday -> weekday.
	assert.Equal(t, models.ShiftWeekday, r.AssignmentShift(klTime(2025, time.January, 12, 19, 0)))
	// Friday 18:00 sharp rolls to Saturday, still weekend.
	assert.Equal(t, models.ShiftWeekend, r.AssignmentShift(klTime(2025, time.January, 10, 18, 0)))
}

func TestAssignmentShiftRespectsOffset(t *testing.T) {
	r := NewResolver(klOffset)

	// 11:00 UTC on a Thursday is 19:00 in KL: already next-day territory.
	utcThursday := time.Date(2025, time.January, 9, 11, 0, 0, 0, time.UTC)
	assert.Equal(t, models.ShiftWeekend, r.AssignmentShift(utcThursday))
}

package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ClockTime is a wall-clock time of day in "HH:MM" form. Appointments and
// schedule blocks use it instead of time.Time so slot equality is a plain
// string compare and no timezone ever leaks into slot arithmetic.
type ClockTime string

// Minutes returns the time of day as minutes since midnight. Only the
// canonical two-digit "HH:MM" form is accepted: time.Parse tolerates "9:30",
// but slot occupancy compares strings, so "9:30" and "09:30" must not both
// name the same slot.
func (t ClockTime) Minutes() (int, error) {
	s := string(t)
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("invalid clock time %q: want HH:MM", s)
	}
	parsed, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	return parsed.Hour()*60 + parsed.Minute(), nil
}

// Valid reports whether t is a well-formed "HH:MM" time.
func (t ClockTime) Valid() bool {
	_, err := t.Minutes()
	return err == nil
}

// ClockTimeFromMinutes formats minutes since midnight as "HH:MM".
func ClockTimeFromMinutes(m int) ClockTime {
	return ClockTime(fmt.Sprintf("%02d:%02d", m/60, m%60))
}

// At anchors the clock time onto a calendar date in the date's location.
func (t ClockTime) At(date time.Time) (time.Time, error) {
	m, err := t.Minutes()
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), m/60, m%60, 0, 0, date.Location()), nil
}

// ScheduleBlock is one contiguous availability window for a doctor on a given
// weekday, e.g. Monday 09:00-13:00. A morning and an afternoon block are two
// rows. Inactive blocks are preserved but excluded from slot generation.
type ScheduleBlock struct {
	Base
	DoctorID  uuid.UUID    `db:"doctor_id" json:"doctor_id"`
	Weekday   time.Weekday `db:"weekday" json:"weekday"`
	StartTime ClockTime    `db:"start_time" json:"start_time"`
	EndTime   ClockTime    `db:"end_time" json:"end_time"`
	Active    bool         `db:"active" json:"active"`
}

type CreateScheduleBlockRequest struct {
	Weekday   int       `json:"weekday" binding:"min=0,max=6"`
	StartTime ClockTime `json:"start_time" binding:"required,clocktime"`
	EndTime   ClockTime `json:"end_time" binding:"required,clocktime"`
}

// Slot is one bookable candidate produced by walking a doctor's schedule
// blocks at the configured slot duration.
type Slot struct {
	Time      ClockTime `json:"time"`
	Available bool      `json:"available"`
}

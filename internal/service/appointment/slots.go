package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/medisched/scheduling-api/internal/model"
)

// AvailableSlots walks the doctor's schedule blocks for the date's weekday,
// emitting one candidate per slot duration while the whole slot fits inside
// the block. A candidate is unavailable iff an active appointment holds
// exactly that (doctor, date, time). Overlapping blocks would emit the same
// time twice; duplicates are dropped, first emission wins.
//
// The listing is advisory: it reads a snapshot and a concurrent booking can
// invalidate it. The authoritative check happens inside the booking
// transaction.
func (s *Service) AvailableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]model.Slot, error) {
	if _, err := s.doctorInClinic(ctx, doctorID); err != nil {
		return nil, err
	}

	day := model.DateOnly(date)
	blocks, err := s.schedule.BlocksFor(ctx, doctorID, day.Weekday())
	if err != nil {
		return nil, err
	}

	bookedTimes, err := s.appointments.BookedTimes(ctx, doctorID, day)
	if err != nil {
		return nil, err
	}
	booked := make(map[model.ClockTime]bool, len(bookedTimes))
	for _, t := range bookedTimes {
		booked[t] = true
	}

	duration := s.cfg.SlotDurationMinutes
	seen := make(map[model.ClockTime]bool)
	var slots []model.Slot

	for _, block := range blocks {
		start, err := block.StartTime.Minutes()
		if err != nil {
			return nil, err
		}
		end, err := block.EndTime.Minutes()
		if err != nil {
			return nil, err
		}

		for cursor := start; cursor+duration <= end; cursor += duration {
			t := model.ClockTimeFromMinutes(cursor)
			if seen[t] {
				continue
			}
			seen[t] = true
			slots = append(slots, model.Slot{Time: t, Available: !booked[t]})
		}
	}
	return slots, nil
}

package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medisched/scheduling-api/internal/model"
	"github.com/medisched/scheduling-api/internal/tenant"
	apperrors "github.com/medisched/scheduling-api/pkg/errors"
)

type fakeDoctorRepo struct {
	doctors map[uuid.UUID]*model.Doctor
}

func (r *fakeDoctorRepo) Create(_ context.Context, doctor *model.Doctor) error {
	r.doctors[doctor.ID] = doctor
	return nil
}

func (r *fakeDoctorRepo) Get(_ context.Context, id uuid.UUID) (*model.Doctor, error) {
	doctor, ok := r.doctors[id]
	if !ok {
		return nil, apperrors.NotFound("doctor", nil)
	}
	return doctor, nil
}

func (r *fakeDoctorRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*model.Doctor, error) {
	for _, doctor := range r.doctors {
		if doctor.UserID == userID {
			return doctor, nil
		}
	}
	return nil, apperrors.NotFound("doctor", nil)
}

func (r *fakeDoctorRepo) Update(_ context.Context, doctor *model.Doctor) error {
	r.doctors[doctor.ID] = doctor
	return nil
}

func (r *fakeDoctorRepo) List(_ context.Context, clinicID uuid.UUID) ([]*model.Doctor, error) {
	return nil, nil
}

// fakeBlockRepo counts reads so the cache behavior is observable.
type fakeBlockRepo struct {
	blocks map[uuid.UUID]*model.ScheduleBlock
	reads  int
}

func (r *fakeBlockRepo) Create(_ context.Context, block *model.ScheduleBlock) error {
	if block.ID == uuid.Nil {
		block.ID = uuid.New()
	}
	r.blocks[block.ID] = block
	return nil
}

func (r *fakeBlockRepo) BlocksFor(_ context.Context, doctorID uuid.UUID, weekday time.Weekday) ([]*model.ScheduleBlock, error) {
	r.reads++
	var out []*model.ScheduleBlock
	for _, block := range r.blocks {
		if block.DoctorID == doctorID && block.Weekday == weekday && block.Active {
			out = append(out, block)
		}
	}
	return out, nil
}

func (r *fakeBlockRepo) ListForDoctor(_ context.Context, doctorID uuid.UUID) ([]*model.ScheduleBlock, error) {
	var out []*model.ScheduleBlock
	for _, block := range r.blocks {
		if block.DoctorID == doctorID {
			out = append(out, block)
		}
	}
	return out, nil
}

func (r *fakeBlockRepo) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	block, ok := r.blocks[id]
	if !ok {
		return apperrors.NotFound("schedule block", nil)
	}
	block.Active = active
	return nil
}

func setup(t *testing.T) (*Service, *fakeBlockRepo, context.Context, *model.Doctor) {
	t.Helper()

	doctors := &fakeDoctorRepo{doctors: make(map[uuid.UUID]*model.Doctor)}
	blocks := &fakeBlockRepo{blocks: make(map[uuid.UUID]*model.ScheduleBlock)}

	clinicID := uuid.New()
	ctx := tenant.WithClinic(context.Background(), clinicID)

	doctor := &model.Doctor{
		Base:     model.Base{ID: uuid.New()},
		ClinicID: clinicID,
		UserID:   uuid.New(),
		FullName: "Asha Rao",
	}
	require.NoError(t, doctors.Create(ctx, doctor))

	return NewService(doctors, blocks), blocks, ctx, doctor
}

func TestCreateBlock(t *testing.T) {
	svc, _, ctx, doctor := setup(t)

	block, err := svc.CreateBlock(ctx, doctor.ID, &model.CreateScheduleBlockRequest{
		Weekday:   int(time.Monday),
		StartTime: "09:00",
		EndTime:   "13:00",
	})
	require.NoError(t, err)
	assert.True(t, block.Active)
	assert.Equal(t, time.Monday, block.Weekday)

	got, err := svc.BlocksFor(ctx, doctor.ID, time.Monday)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.ClockTime("09:00"), got[0].StartTime)
}

func TestCreateBlockRejectsInvertedWindow(t *testing.T) {
	svc, _, ctx, doctor := setup(t)

	_, err := svc.CreateBlock(ctx, doctor.ID, &model.CreateScheduleBlockRequest{
		Weekday:   int(time.Monday),
		StartTime: "13:00",
		EndTime:   "09:00",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrBadRequest, apperrors.CodeOf(err))

	_, err = svc.CreateBlock(ctx, doctor.ID, &model.CreateScheduleBlockRequest{
		Weekday:   int(time.Monday),
		StartTime: "09:00",
		EndTime:   "09:00",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrBadRequest, apperrors.CodeOf(err))
}

func TestCreateBlockForeignClinic(t *testing.T) {
	svc, _, _, doctor := setup(t)

	otherClinic := tenant.WithClinic(context.Background(), uuid.New())
	_, err := svc.CreateBlock(otherClinic, doctor.ID, &model.CreateScheduleBlockRequest{
		Weekday:   int(time.Monday),
		StartTime: "09:00",
		EndTime:   "13:00",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrNotFound, apperrors.CodeOf(err))
}

func TestBlocksForCaches(t *testing.T) {
	svc, blocks, ctx, doctor := setup(t)

	_, err := svc.CreateBlock(ctx, doctor.ID, &model.CreateScheduleBlockRequest{
		Weekday:   int(time.Monday),
		StartTime: "09:00",
		EndTime:   "13:00",
	})
	require.NoError(t, err)

	_, err = svc.BlocksFor(ctx, doctor.ID, time.Monday)
	require.NoError(t, err)
	_, err = svc.BlocksFor(ctx, doctor.ID, time.Monday)
	require.NoError(t, err)
	assert.Equal(t, 1, blocks.reads)

	// A write for the same doctor/weekday invalidates the cached listing.
	_, err = svc.CreateBlock(ctx, doctor.ID, &model.CreateScheduleBlockRequest{
		Weekday:   int(time.Monday),
		StartTime: "14:00",
		EndTime:   "17:00",
	})
	require.NoError(t, err)

	got, err := svc.BlocksFor(ctx, doctor.ID, time.Monday)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 2, blocks.reads)
}

func TestSetBlockActiveHidesBlock(t *testing.T) {
	svc, _, ctx, doctor := setup(t)

	block, err := svc.CreateBlock(ctx, doctor.ID, &model.CreateScheduleBlockRequest{
		Weekday:   int(time.Monday),
		StartTime: "09:00",
		EndTime:   "13:00",
	})
	require.NoError(t, err)

	require.NoError(t, svc.SetBlockActive(ctx, block.ID, false))

	got, err := svc.BlocksFor(ctx, doctor.ID, time.Monday)
	require.NoError(t, err)
	assert.Empty(t, got)

	// Reactivation makes it visible again.
	require.NoError(t, svc.SetBlockActive(ctx, block.ID, true))
	got, err = svc.BlocksFor(ctx, doctor.ID, time.Monday)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	listed, err := svc.ListForDoctor(ctx, doctor.ID)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/medisched/scheduling-api/internal/model"
	"github.com/medisched/scheduling-api/internal/repository"
	"github.com/medisched/scheduling-api/internal/tenant"
	apperrors "github.com/medisched/scheduling-api/pkg/errors"
)

const (
	cacheTTL     = 5 * time.Minute
	cacheCleanup = 10 * time.Minute
)

// Service is the read-mostly schedule catalog: a doctor's weekly availability
// blocks. Blocks change rarely and are read on every slot listing, so lookups
// go through a short-TTL cache; any write flushes it.
type Service struct {
	doctors         repository.DoctorRepository
	blocks          repository.ScheduleRepository
	cache           *gocache.Cache
	defaultDailyCap int
}

type Option func(*Service)

// WithDefaultDailyCap overrides the cap applied to doctors registered
// without an explicit daily limit.
func WithDefaultDailyCap(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.defaultDailyCap = limit
		}
	}
}

func NewService(doctors repository.DoctorRepository, blocks repository.ScheduleRepository, opts ...Option) *Service {
	s := &Service{
		doctors:         doctors,
		blocks:          blocks,
		cache:           gocache.New(cacheTTL, cacheCleanup),
		defaultDailyCap: DefaultDailyCap,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BlocksFor returns the doctor's active blocks for a weekday, ordered by
// start time.
func (s *Service) BlocksFor(ctx context.Context, doctorID uuid.UUID, weekday time.Weekday) ([]*model.ScheduleBlock, error) {
	key := blockCacheKey(doctorID, weekday)
	if cached, ok := s.cache.Get(key); ok {
		return cached.([]*model.ScheduleBlock), nil
	}

	if _, err := s.doctors.Get(ctx, doctorID); err != nil {
		return nil, err
	}

	blocks, err := s.blocks.BlocksFor(ctx, doctorID, weekday)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch schedule blocks: %w", err)
	}

	s.cache.Set(key, blocks, gocache.DefaultExpiration)
	return blocks, nil
}

// CreateBlock adds an availability block for a doctor in the caller's clinic.
func (s *Service) CreateBlock(ctx context.Context, doctorID uuid.UUID, req *model.CreateScheduleBlockRequest) (*model.ScheduleBlock, error) {
	doctor, err := s.doctorInClinic(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	start, err := req.StartTime.Minutes()
	if err != nil {
		return nil, apperrors.BadRequest("invalid start time", err)
	}
	end, err := req.EndTime.Minutes()
	if err != nil {
		return nil, apperrors.BadRequest("invalid end time", err)
	}
	if start >= end {
		return nil, apperrors.BadRequest("start time must be before end time", nil)
	}

	block := &model.ScheduleBlock{
		DoctorID:  doctor.ID,
		Weekday:   time.Weekday(req.Weekday),
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Active:    true,
	}
	if err := s.blocks.Create(ctx, block); err != nil {
		return nil, fmt.Errorf("failed to create schedule block: %w", err)
	}

	s.cache.Delete(blockCacheKey(doctor.ID, block.Weekday))
	return block, nil
}

// SetBlockActive toggles a block without deleting it (holiday block-outs).
func (s *Service) SetBlockActive(ctx context.Context, blockID uuid.UUID, active bool) error {
	if err := s.blocks.SetActive(ctx, blockID, active); err != nil {
		return err
	}
	// The block's doctor/weekday is unknown here; drop the whole cache.
	s.cache.Flush()
	return nil
}

func (s *Service) ListForDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.ScheduleBlock, error) {
	if _, err := s.doctors.Get(ctx, doctorID); err != nil {
		return nil, err
	}
	return s.blocks.ListForDoctor(ctx, doctorID)
}

func (s *Service) doctorInClinic(ctx context.Context, doctorID uuid.UUID) (*model.Doctor, error) {
	clinicID, err := tenant.ClinicID(ctx)
	if err != nil {
		return nil, err
	}
	doctor, err := s.doctors.Get(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if doctor.ClinicID != clinicID {
		return nil, apperrors.NotFound("doctor", nil)
	}
	return doctor, nil
}

func blockCacheKey(doctorID uuid.UUID, weekday time.Weekday) string {
	return doctorID.String() + "/" + weekday.String()
}

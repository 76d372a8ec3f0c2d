package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/medisched/scheduling-api/internal/repository"
)

type clinicRepository struct {
	BaseRepository
}

type doctorRepository struct {
	BaseRepository
}

type patientRepository struct {
	BaseRepository
}

type scheduleRepository struct {
	BaseRepository
}

type appointmentRepository struct {
	BaseRepository
}

type queueRepository struct {
	BaseRepository
}

func NewClinicRepository(db *sqlx.DB) repository.ClinicRepository {
	return &clinicRepository{NewBaseRepository(db)}
}

func NewDoctorRepository(db *sqlx.DB) repository.DoctorRepository {
	return &doctorRepository{NewBaseRepository(db)}
}

func NewPatientRepository(db *sqlx.DB) repository.PatientRepository {
	return &patientRepository{NewBaseRepository(db)}
}

func NewScheduleRepository(db *sqlx.DB) repository.ScheduleRepository {
	return &scheduleRepository{NewBaseRepository(db)}
}

func NewAppointmentRepository(db *sqlx.DB) repository.AppointmentRepository {
	return &appointmentRepository{NewBaseRepository(db)}
}

func NewQueueRepository(db *sqlx.DB) repository.QueueRepository {
	return &queueRepository{NewBaseRepository(db)}
}

package model

type ClinicStatus string

const (
	ClinicStatusActive    ClinicStatus = "active"
	ClinicStatusSuspended ClinicStatus = "suspended"
)

// Clinic is the tenant. Appointment and QueueEntry carry a denormalized
// clinic_id so hot-path queries never join through patient or doctor.
type Clinic struct {
	Base
	Name     string       `db:"name" json:"name"`
	Location string       `db:"location" json:"location"`
	Status   ClinicStatus `db:"status" json:"status"`
}

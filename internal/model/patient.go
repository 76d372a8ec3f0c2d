package model

import (
	"github.com/google/uuid"
)

type Patient struct {
	Base
	ClinicID uuid.UUID `db:"clinic_id" json:"clinic_id"`
	UserID   uuid.UUID `db:"user_id" json:"user_id"`
	FullName string    `db:"full_name" json:"full_name"`
	Email    string    `db:"email" json:"email"`
	Phone    string    `db:"phone" json:"phone,omitempty"`
}

// Package tenant carries the resolved clinic through a request. The engine
// never reads tenant state from a global; every clinic-scoped operation pulls
// the clinic id out of the context and fails with a configuration error when
// it is missing.
package tenant

import (
	"context"

	"github.com/google/uuid"

	apperrors "github.com/medisched/scheduling-api/pkg/errors"
)

type contextKey struct{}

var clinicKey contextKey

// WithClinic returns a context scoped to the given clinic.
func WithClinic(ctx context.Context, clinicID uuid.UUID) context.Context {
	return context.WithValue(ctx, clinicKey, clinicID)
}

// ClinicID resolves the clinic the request belongs to.
func ClinicID(ctx context.Context) (uuid.UUID, error) {
	id, ok := ctx.Value(clinicKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, apperrors.Configuration("no clinic resolved for request")
	}
	return id, nil
}

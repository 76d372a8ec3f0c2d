package tenant_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medisched/scheduling-api/internal/tenant"
	apperrors "github.com/medisched/scheduling-api/pkg/errors"
)

func TestClinicID(t *testing.T) {
	clinicID := uuid.New()
	ctx := tenant.WithClinic(context.Background(), clinicID)

	got, err := tenant.ClinicID(ctx)
	require.NoError(t, err)
	assert.Equal(t, clinicID, got)
}

func TestClinicIDMissing(t *testing.T) {
	_, err := tenant.ClinicID(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrConfiguration, apperrors.CodeOf(err))
}

func TestClinicIDNil(t *testing.T) {
	ctx := tenant.WithClinic(context.Background(), uuid.Nil)
	_, err := tenant.ClinicID(ctx)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrConfiguration, apperrors.CodeOf(err))
}

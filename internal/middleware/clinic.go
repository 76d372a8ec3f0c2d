package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medisched/scheduling-api/internal/handler"
	"github.com/medisched/scheduling-api/internal/model"
	"github.com/medisched/scheduling-api/internal/tenant"
	apperrors "github.com/medisched/scheduling-api/pkg/errors"
)

const (
	HeaderXClinicID = "X-Clinic-ID"
	HeaderXUserID   = "X-User-ID"
)

// ClinicStore is the lookup ClinicContext resolves tenants against.
// Satisfied by repository.ClinicRepository.
type ClinicStore interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Clinic, error)
}

// ClinicContext resolves the tenant for every request from the X-Clinic-ID
// header the portal's session layer fills in. The clinic must exist and be
// active; a suspended tenant is refused before any handler runs.
func ClinicContext(clinics ClinicStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(HeaderXClinicID)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest,
				handler.NewErrorResponse("missing "+HeaderXClinicID+" header"))
			return
		}
		clinicID, err := uuid.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest,
				handler.NewErrorResponse("invalid "+HeaderXClinicID+" header"))
			return
		}

		clinic, err := clinics.Get(c.Request.Context(), clinicID)
		if err != nil {
			if apperrors.IsCode(err, apperrors.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusNotFound,
					handler.NewErrorResponse("unknown clinic"))
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				handler.NewErrorResponse("failed to resolve clinic"))
			return
		}
		if clinic.Status != model.ClinicStatusActive {
			c.AbortWithStatusJSON(http.StatusForbidden,
				handler.NewErrorResponse("clinic is not active"))
			return
		}

		c.Request = c.Request.WithContext(tenant.WithClinic(c.Request.Context(), clinic.ID))
		c.Next()
	}
}

// Identity carries the portal user through to handlers that need ownership
// checks. The header is optional; handlers that require it reply 401.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := c.GetHeader(HeaderXUserID); raw != "" {
			if userID, err := uuid.Parse(raw); err == nil {
				c.Set(handler.ContextUserID, userID)
			}
		}
		c.Next()
	}
}

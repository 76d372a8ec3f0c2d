package appointment

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/medisched/scheduling-api/internal/config"
	appointmentService "github.com/medisched/scheduling-api/internal/service/appointment"
)

func TestThrottleGuardsBookingRoutesOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)

	reject := func(c *gin.Context) {
		c.AbortWithStatus(http.StatusTooManyRequests)
	}
	svc := appointmentService.NewService(nil, nil, nil, nil, nil, config.SchedulingConfig{})
	h := NewHandler(svc, WithThrottle(reject))

	r := gin.New()
	h.RegisterRoutes(r.Group("/api/v1"))

	do := func(method, path string) int {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
		return w.Code
	}

	// The slot-consuming routes sit behind the throttle.
	assert.Equal(t, http.StatusTooManyRequests, do(http.MethodPost, "/api/v1/appointments"))
	assert.Equal(t, http.StatusTooManyRequests,
		do(http.MethodPost, "/api/v1/appointments/"+uuid.NewString()+"/reschedule"))

	// Reads and the cheap verbs reach their handlers: the replies below come
	// from path/identity validation, not the throttle.
	assert.Equal(t, http.StatusBadRequest, do(http.MethodGet, "/api/v1/appointments/not-a-uuid"))
	assert.Equal(t, http.StatusUnauthorized,
		do(http.MethodPost, "/api/v1/appointments/"+uuid.NewString()+"/cancel"))
}

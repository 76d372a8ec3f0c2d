package appointment

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/medisched/scheduling-api/internal/handler"
	"github.com/medisched/scheduling-api/internal/model"
	"github.com/medisched/scheduling-api/internal/service/appointment"
)

const dateFormat = "2006-01-02"

type Handler struct {
	service  *appointment.Service
	throttle gin.HandlerFunc
}

type Option func(*Handler)

// WithThrottle rate-limits the slot-consuming routes (book, reschedule).
// Reads and the cheap lifecycle verbs stay unthrottled.
func WithThrottle(mw gin.HandlerFunc) Option {
	return func(h *Handler) { h.throttle = mw }
}

func NewHandler(service *appointment.Service, opts ...Option) *Handler {
	h := &Handler{
		service:  service,
		throttle: func(c *gin.Context) { c.Next() },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	appointments := rg.Group("/appointments")
	{
		appointments.POST("", h.throttle, h.Book)
		appointments.GET("/:id", h.Get)
		appointments.POST("/:id/reschedule", h.throttle, h.Reschedule)
		appointments.POST("/:id/cancel", h.Cancel)
		appointments.POST("/:id/complete", h.Complete)
	}

	me := rg.Group("/patients/me/appointments")
	{
		me.GET("", h.PatientHistory)
		me.GET("/upcoming", h.PatientUpcoming)
	}

	doctors := rg.Group("/doctors/:id")
	{
		doctors.GET("/slots", h.AvailableSlots)
		doctors.GET("/appointments", h.DoctorSchedule)
	}

	rg.GET("/clinic/appointments", h.ClinicSchedule)
}

func (h *Handler) Book(c *gin.Context) {
	userID, ok := handler.RequireUser(c)
	if !ok {
		return
	}

	var req model.BookAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	appt, err := h.service.Book(c.Request.Context(), userID, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(appt))
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := handler.PathID(c, "id")
	if !ok {
		return
	}

	appt, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(appt))
}

func (h *Handler) Reschedule(c *gin.Context) {
	userID, ok := handler.RequireUser(c)
	if !ok {
		return
	}
	id, ok := handler.PathID(c, "id")
	if !ok {
		return
	}

	var req model.RescheduleAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	appt, err := h.service.Reschedule(c.Request.Context(), id, userID, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(appt))
}

func (h *Handler) Cancel(c *gin.Context) {
	userID, ok := handler.RequireUser(c)
	if !ok {
		return
	}
	id, ok := handler.PathID(c, "id")
	if !ok {
		return
	}

	var req model.CancelAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	if err := h.service.Cancel(c.Request.Context(), id, userID, req.Reason); err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}

func (h *Handler) Complete(c *gin.Context) {
	userID, ok := handler.RequireUser(c)
	if !ok {
		return
	}
	id, ok := handler.PathID(c, "id")
	if !ok {
		return
	}

	appt, err := h.service.Complete(c.Request.Context(), id, userID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(appt))
}

func (h *Handler) PatientHistory(c *gin.Context) {
	userID, ok := handler.RequireUser(c)
	if !ok {
		return
	}

	appointments, err := h.service.PatientHistory(c.Request.Context(), userID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(appointments))
}

func (h *Handler) PatientUpcoming(c *gin.Context) {
	userID, ok := handler.RequireUser(c)
	if !ok {
		return
	}

	appointments, err := h.service.PatientUpcoming(c.Request.Context(), userID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(appointments))
}

// AvailableSlots lists the doctor's bookable times for ?date=YYYY-MM-DD.
func (h *Handler) AvailableSlots(c *gin.Context) {
	doctorID, ok := handler.PathID(c, "id")
	if !ok {
		return
	}
	date, ok := queryDate(c, "date")
	if !ok {
		return
	}

	slots, err := h.service.AvailableSlots(c.Request.Context(), doctorID, date)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(slots))
}

// DoctorSchedule returns a single day with ?date=, or a week with
// ?week_start=.
func (h *Handler) DoctorSchedule(c *gin.Context) {
	doctorID, ok := handler.PathID(c, "id")
	if !ok {
		return
	}

	if weekStart := c.Query("week_start"); weekStart != "" {
		start, err := time.Parse(dateFormat, weekStart)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid week_start, expected YYYY-MM-DD"))
			return
		}
		appointments, err := h.service.DoctorWeeklySchedule(c.Request.Context(), doctorID, start)
		if err != nil {
			handler.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, handler.NewSuccessResponse(appointments))
		return
	}

	date, ok := queryDate(c, "date")
	if !ok {
		return
	}
	appointments, err := h.service.DoctorDailySchedule(c.Request.Context(), doctorID, date)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(appointments))
}

func (h *Handler) ClinicSchedule(c *gin.Context) {
	from, ok := queryDate(c, "from")
	if !ok {
		return
	}
	to, ok := queryDate(c, "to")
	if !ok {
		return
	}

	appointments, err := h.service.ClinicSchedule(c.Request.Context(), from, to)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(appointments))
}

func queryDate(c *gin.Context, name string) (time.Time, bool) {
	raw := c.Query(name)
	date, err := time.Parse(dateFormat, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid "+name+", expected YYYY-MM-DD"))
		return time.Time{}, false
	}
	return date, true
}

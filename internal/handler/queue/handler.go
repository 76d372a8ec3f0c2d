package queue

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/medisched/scheduling-api/internal/handler"
	"github.com/medisched/scheduling-api/internal/model"
	"github.com/medisched/scheduling-api/internal/service/queue"
)

type Handler struct {
	service *queue.Service
}

func NewHandler(service *queue.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/appointments/:id/check-in", h.CheckIn)

	q := rg.Group("/queue")
	{
		q.POST("/walk-ins", h.AddWalkIn)
		q.GET("/me", h.MyStatus)
		q.POST("/entries/:id/skip", h.Skip)
		q.POST("/entries/:id/complete", h.CompleteConsultation)
	}

	doctors := rg.Group("/doctors/:id/queue")
	{
		doctors.GET("", h.DoctorQueue)
		doctors.POST("/call-next", h.CallNext)
	}
}

func (h *Handler) CheckIn(c *gin.Context) {
	id, ok := handler.PathID(c, "id")
	if !ok {
		return
	}

	status, err := h.service.CheckIn(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(status))
}

func (h *Handler) AddWalkIn(c *gin.Context) {
	var req model.AddWalkInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	status, err := h.service.AddWalkIn(c.Request.Context(), req.DoctorID, req.PatientID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(status))
}

// MyStatus is the endpoint a waiting patient polls for their position and
// wait estimate.
func (h *Handler) MyStatus(c *gin.Context) {
	userID, ok := handler.RequireUser(c)
	if !ok {
		return
	}

	status, err := h.service.MyStatus(c.Request.Context(), userID, time.Now())
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(status))
}

func (h *Handler) DoctorQueue(c *gin.Context) {
	doctorID, ok := handler.PathID(c, "id")
	if !ok {
		return
	}

	date := time.Now()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid date, expected YYYY-MM-DD"))
			return
		}
		date = parsed
	}

	statuses, err := h.service.DoctorQueue(c.Request.Context(), doctorID, date)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(statuses))
}

func (h *Handler) CallNext(c *gin.Context) {
	doctorID, ok := handler.PathID(c, "id")
	if !ok {
		return
	}

	entry, err := h.service.CallNext(c.Request.Context(), doctorID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(entry))
}

func (h *Handler) Skip(c *gin.Context) {
	id, ok := handler.PathID(c, "id")
	if !ok {
		return
	}

	entry, err := h.service.Skip(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(entry))
}

func (h *Handler) CompleteConsultation(c *gin.Context) {
	id, ok := handler.PathID(c, "id")
	if !ok {
		return
	}

	entry, err := h.service.CompleteConsultation(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(entry))
}

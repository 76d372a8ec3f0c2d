package schedule

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medisched/scheduling-api/internal/handler"
	"github.com/medisched/scheduling-api/internal/model"
	"github.com/medisched/scheduling-api/internal/service/schedule"
)

type Handler struct {
	service *schedule.Service
}

func NewHandler(service *schedule.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/doctors", h.CreateDoctor)
	rg.GET("/doctors", h.ListDoctors)
	rg.GET("/doctors/:id", h.GetDoctor)
	rg.PATCH("/doctors/:id/available", h.SetDoctorAvailable)

	blocks := rg.Group("/doctors/:id/schedule-blocks")
	{
		blocks.POST("", h.CreateBlock)
		blocks.GET("", h.ListForDoctor)
	}

	rg.PATCH("/schedule-blocks/:id/active", h.SetActive)
}

func (h *Handler) CreateDoctor(c *gin.Context) {
	var req model.CreateDoctorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	doctor, err := h.service.CreateDoctor(c.Request.Context(), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(doctor))
}

func (h *Handler) ListDoctors(c *gin.Context) {
	doctors, err := h.service.ListDoctors(c.Request.Context())
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(doctors))
}

func (h *Handler) GetDoctor(c *gin.Context) {
	id, ok := handler.PathID(c, "id")
	if !ok {
		return
	}

	doctor, err := h.service.GetDoctor(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(doctor))
}

func (h *Handler) SetDoctorAvailable(c *gin.Context) {
	id, ok := handler.PathID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Available *bool `json:"available" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	doctor, err := h.service.SetDoctorAvailable(c.Request.Context(), id, *req.Available)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(doctor))
}

func (h *Handler) CreateBlock(c *gin.Context) {
	doctorID, ok := handler.PathID(c, "id")
	if !ok {
		return
	}

	var req model.CreateScheduleBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	block, err := h.service.CreateBlock(c.Request.Context(), doctorID, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(block))
}

func (h *Handler) ListForDoctor(c *gin.Context) {
	doctorID, ok := handler.PathID(c, "id")
	if !ok {
		return
	}

	blocks, err := h.service.ListForDoctor(c.Request.Context(), doctorID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(blocks))
}

func (h *Handler) SetActive(c *gin.Context) {
	id, ok := handler.PathID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Active *bool `json:"active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	if err := h.service.SetBlockActive(c.Request.Context(), id, *req.Active); err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}

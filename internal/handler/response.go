package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/medisched/scheduling-api/pkg/errors"
)

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// RespondError maps an engine error to its HTTP status. Unrecognized errors
// become a 500 with a generic message so internals never leak.
func RespondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"

	switch apperrors.CodeOf(err) {
	case apperrors.ErrNotFound:
		status, message = http.StatusNotFound, err.Error()
	case apperrors.ErrBadRequest:
		status, message = http.StatusBadRequest, err.Error()
	case apperrors.ErrConflict, apperrors.ErrAlreadyQueued:
		status, message = http.StatusConflict, err.Error()
	case apperrors.ErrCapacity:
		status, message = http.StatusConflict, err.Error()
	case apperrors.ErrInvalidState:
		status, message = http.StatusUnprocessableEntity, err.Error()
	case apperrors.ErrUnauthorized:
		status, message = http.StatusForbidden, err.Error()
	case apperrors.ErrConfiguration:
		status, message = http.StatusBadRequest, err.Error()
	}

	c.JSON(status, NewErrorResponse(message))
}

// ContextUserID is the gin context key the identity middleware fills in.
const ContextUserID = "user_id"

// UserID returns the authenticated portal user carried on the request.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := c.Get(ContextUserID)
	if !ok {
		return uuid.Nil, false
	}
	userID, ok := id.(uuid.UUID)
	return userID, ok
}

// PathID parses a uuid path parameter, replying 400 on failure.
func PathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse("invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}

// RequireUser replies 401 when no identity was resolved for the request.
func RequireUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse("missing user identity"))
		return uuid.Nil, false
	}
	return userID, true
}

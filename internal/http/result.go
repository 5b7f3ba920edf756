package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"wellness-analytics/internal/goals"
	"wellness-analytics/internal/models"
)

// Result response envelope.
// - code: 2000 on success, -1 on error
// - type: 'success' | 'error'
type Result[T any] struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Result  T      `json:"result"`
}

const (
	ResultSuccess = 2000
	ResultError   = -1
)

func Ok[T any](result T) Result[T] {
	return Result[T]{Code: ResultSuccess, Type: "success", Message: "ok", Result: result}
}

func Fail(message string) Result[any] {
	return Result[any]{Code: ResultError, Type: "error", Message: message, Result: nil}
}

func ok[T any](c *gin.Context, v T) {
	c.JSON(http.StatusOK, Ok(v))
}

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Fail(message))
}

// failErr maps domain errors onto HTTP status codes.
func failErr(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrInvalidSample), errors.Is(err, goals.ErrInvalidGoal):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, goals.ErrGoalInactive):
		status = http.StatusConflict
	case errors.Is(err, models.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	}
	fail(c, status, err.Error())
}

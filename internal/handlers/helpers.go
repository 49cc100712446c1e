package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	apierrors "github.com/yukikurage/taskflow-api/internal/errors"
	"github.com/yukikurage/taskflow-api/internal/middleware"
	"github.com/yukikurage/taskflow-api/internal/services"
)

// paramID parses a numeric path parameter, answering 400 when it is not one.
func paramID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		apierrors.BadRequest(c, "Invalid "+name)
		return 0, false
	}
	return id, true
}

// currentUser returns the authenticated user ID, answering 401 when absent.
func currentUser(c *gin.Context) (uint64, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		apierrors.Unauthorized(c, "Not authenticated")
		return 0, false
	}
	return userID, true
}

// respondError writes the response for a service error. Unexpected ones
// are attached to the context for the request logger.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidCredentials), errors.Is(err, services.ErrInactiveUser):
		apierrors.Unauthorized(c, err.Error())
		return
	case errors.Is(err, apierrors.ErrNotFound),
		errors.Is(err, apierrors.ErrValidation),
		errors.Is(err, apierrors.ErrConflict),
		errors.Is(err, apierrors.ErrPermissionDenied):
	default:
		_ = c.Error(err)
	}
	apierrors.RespondWithServiceError(c, err)
}

func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		apierrors.BadRequestWithDetails(c, "Invalid request body", err.Error())
		return false
	}
	return true
}

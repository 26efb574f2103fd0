// Package handler contains the echo handlers of the planner API.  Handlers
// depend on small interfaces so they can be exercised with in-memory fakes.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/event-seating-planner/internal/middleware"
	"github.com/iliyamo/event-seating-planner/internal/model"
	"github.com/iliyamo/event-seating-planner/internal/repository"
	"github.com/iliyamo/event-seating-planner/internal/service"
)

var (
	errNoUser = errors.New("invalid user_id in context")
	errBadID  = errors.New("invalid id")
)

// getUserID returns the authenticated user id set by middleware.JWTAuth.
func getUserID(c echo.Context) (uint64, error) {
	id, ok := middleware.UserID(c)
	if !ok {
		return 0, errNoUser
	}
	return id, nil
}

// isPlanner reports whether the caller is limited to their own events.
// Viewers may read every event.
func isPlanner(c echo.Context) bool { return middleware.Role(c) == model.RolePlanner }

// pathID parses the :name path parameter as a positive id.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// writeError maps repository and service errors to status codes.  Unknown
// errors are logged and reported as 500 with fallback.
func writeError(c echo.Context, log *zap.Logger, err error, fallback string) error {
	status, msg := http.StatusInternalServerError, fallback
	switch {
	case errors.Is(err, errNoUser):
		status, msg = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, errBadID):
		status, msg = http.StatusBadRequest, "invalid id"
	case errors.Is(err, repository.ErrEventNotFound):
		status, msg = http.StatusNotFound, "event not found"
	case errors.Is(err, repository.ErrRunNotFound):
		status, msg = http.StatusNotFound, "run not found"
	case errors.Is(err, repository.ErrForbidden):
		status, msg = http.StatusForbidden, "forbidden"
	case errors.Is(err, repository.ErrConflict):
		status, msg = http.StatusConflict, "event was modified; reload and retry"
	case errors.Is(err, repository.ErrStaleRun):
		status, msg = http.StatusConflict, "event changed since the run was computed"
	case errors.Is(err, repository.ErrRunState):
		status, msg = http.StatusConflict, "run status does not allow this action"
	case errors.Is(err, service.ErrQueueDisabled):
		status, msg = http.StatusServiceUnavailable, "background optimization is not available"
	default:
		log.Error(fallback, zap.String("path", c.Path()), zap.Error(err))
	}
	return c.JSON(status, echo.Map{"error": msg})
}

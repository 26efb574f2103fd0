package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-seating-planner/internal/seating"
)

// ScoringWeights lists the constants the engine scores with, so clients can
// render explanations next to a result.
func ScoringWeights(c echo.Context) error {
	return c.JSON(http.StatusOK, seating.DefaultWeights())
}

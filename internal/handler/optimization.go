package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/event-seating-planner/internal/model"
	"github.com/iliyamo/event-seating-planner/internal/seating"
)

// Optimizer is implemented by service.Optimizer.
type Optimizer interface {
	Stateless(snap seating.Snapshot, req seating.Budget) seating.OptimizationResult
	RunSync(ctx context.Context, ev *model.Event, userID uint64, req seating.Budget) (*model.OptimizationRun, error)
	Enqueue(ctx context.Context, ev *model.Event, userID uint64, req seating.Budget) (*model.OptimizationRun, error)
	Apply(ctx context.Context, runID, ownerID uint64) (*model.Event, error)
}

// RunStore is the part of repository.RunRepo the run endpoints use.
type RunStore interface {
	GetByID(ctx context.Context, id uint64) (*model.OptimizationRun, error)
	ListByEvent(ctx context.Context, eventID uint64, limit int) ([]model.OptimizationRun, error)
	Discard(ctx context.Context, id uint64) error
}

// OptimizationHandler serves optimization runs.
type OptimizationHandler struct {
	Events    EventStore
	Runs      RunStore
	Optimizer Optimizer
	Log       *zap.Logger
}

func NewOptimizationHandler(events EventStore, runs RunStore, opt Optimizer, log *zap.Logger) *OptimizationHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &OptimizationHandler{Events: events, Runs: runs, Optimizer: opt, Log: log}
}

type optimizeReq struct {
	Budget budgetReq `json:"budget"`
}

// Stateless: POST /v1/optimize seats a posted snapshot and stores nothing.
func (h *OptimizationHandler) Stateless(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, MaxOptimizeBody+1))
	if err != nil {
		return badRequest(c, "invalid body")
	}
	if len(body) > MaxOptimizeBody {
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "snapshot too large"})
	}
	snap, budget, err := DecodeOptimizeRequest(body)
	if err != nil {
		return badRequest(c, err.Error())
	}
	return c.JSON(http.StatusOK, h.Optimizer.Stateless(snap, budget))
}

// ownedEvent loads the :id event of the calling planner.
func (h *OptimizationHandler) ownedEvent(ctx context.Context, c echo.Context) (*model.Event, uint64, error) {
	uid, err := getUserID(c)
	if err != nil {
		return nil, 0, err
	}
	id, ok := pathID(c, "id")
	if !ok {
		return nil, uid, errBadID
	}
	ev, err := h.Events.GetForOwner(ctx, id, uid)
	return ev, uid, err
}

// Optimize: POST /v1/events/:id/optimize runs the engine now and returns the
// stored run.
func (h *OptimizationHandler) Optimize(c echo.Context) error {
	var req optimizeReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	ev, uid, err := h.ownedEvent(ctx, c)
	if err != nil {
		return writeError(c, h.Log, err, "load event failed")
	}
	run, err := h.Optimizer.RunSync(ctx, ev, uid, req.Budget.budget())
	if err != nil {
		return writeError(c, h.Log, err, "optimization failed")
	}
	return c.JSON(http.StatusCreated, run)
}

// OptimizeAsync: POST /v1/events/:id/optimize/async queues a run for the
// background worker and answers 202 with its id.
func (h *OptimizationHandler) OptimizeAsync(c echo.Context) error {
	var req optimizeReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ev, uid, err := h.ownedEvent(ctx, c)
	if err != nil {
		return writeError(c, h.Log, err, "load event failed")
	}
	run, err := h.Optimizer.Enqueue(ctx, ev, uid, req.Budget.budget())
	if err != nil {
		return writeError(c, h.Log, err, "enqueue optimization failed")
	}
	c.Response().Header().Set(echo.HeaderLocation, "/v1/runs/"+strconv.FormatUint(run.ID, 10))
	return c.JSON(http.StatusAccepted, echo.Map{
		"run_id":        run.ID,
		"status":        run.Status,
		"event_version": run.EventVersion,
	})
}

// ListRuns: GET /v1/events/:id/runs?limit=N
func (h *OptimizationHandler) ListRuns(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := loadReadable(ctx, c, h.Events, id); err != nil {
		return writeError(c, h.Log, err, "load event failed")
	}
	runs, err := h.Runs.ListByEvent(ctx, id, limit)
	if err != nil {
		return writeError(c, h.Log, err, "list runs failed")
	}
	items := make([]model.RunSummary, 0, len(runs))
	for _, r := range runs {
		items = append(items, r.Summary())
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetRun: GET /v1/runs/:id returns the run with its full result.
func (h *OptimizationHandler) GetRun(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid run id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	run, err := h.Runs.GetByID(ctx, id)
	if err != nil {
		return writeError(c, h.Log, err, "load run failed")
	}
	if _, err := loadReadable(ctx, c, h.Events, run.EventID); err != nil {
		return writeError(c, h.Log, err, "load event failed")
	}
	return c.JSON(http.StatusOK, run)
}

// ApplyRun: POST /v1/runs/:id/apply writes the proposal into the event.
func (h *OptimizationHandler) ApplyRun(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return writeError(c, h.Log, err, "")
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid run id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ev, err := h.Optimizer.Apply(ctx, id, uid)
	if err != nil {
		return writeError(c, h.Log, err, "apply run failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"run_id": id, "status": model.RunApplied, "event": ev})
}

// DiscardRun: POST /v1/runs/:id/discard rejects a pending or completed run.
func (h *OptimizationHandler) DiscardRun(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return writeError(c, h.Log, err, "")
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid run id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	run, err := h.Runs.GetByID(ctx, id)
	if err != nil {
		return writeError(c, h.Log, err, "load run failed")
	}
	if _, err := h.Events.GetForOwner(ctx, run.EventID, uid); err != nil {
		return writeError(c, h.Log, err, "load event failed")
	}
	if err := h.Runs.Discard(ctx, id); err != nil {
		return writeError(c, h.Log, err, "discard run failed")
	}
	return c.NoContent(http.StatusNoContent)
}

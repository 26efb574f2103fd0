package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/event-seating-planner/internal/model"
)

// EventStore is the part of repository.EventRepo the event endpoints use.
type EventStore interface {
	Create(ctx context.Context, e *model.Event) error
	GetByID(ctx context.Context, id uint64) (*model.Event, error)
	GetForOwner(ctx context.Context, id, ownerID uint64) (*model.Event, error)
	ListByOwner(ctx context.Context, ownerID uint64) ([]model.Event, error)
	Update(ctx context.Context, e *model.Event, expectedVersion uint32) error
	Delete(ctx context.Context, id, ownerID uint64) error
}

// EventHandler serves event documents.
type EventHandler struct {
	Events EventStore
	Log    *zap.Logger
}

func NewEventHandler(events EventStore, log *zap.Logger) *EventHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &EventHandler{Events: events, Log: log}
}

type eventReq struct {
	Name     string              `json:"name"`
	StartsAt *time.Time          `json:"starts_at"`
	Document model.EventDocument `json:"document"`
	// Version, when set on update, must match the stored version.
	Version uint32 `json:"version"`
}

func (r *eventReq) validate() string {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return "name is required"
	}
	if len(r.Name) > 200 {
		return "name is too long"
	}
	if err := r.Document.Validate(); err != nil {
		return "invalid document: " + err.Error()
	}
	return ""
}

// loadReadable returns the event when the caller may read it: planners see
// their own events, viewers see every event.
func loadReadable(ctx context.Context, c echo.Context, events EventStore, id uint64) (*model.Event, error) {
	uid, err := getUserID(c)
	if err != nil {
		return nil, err
	}
	if isPlanner(c) {
		return events.GetForOwner(ctx, id, uid)
	}
	return events.GetByID(ctx, id)
}

// Create: POST /v1/events
func (h *EventHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return writeError(c, h.Log, err, "")
	}
	var req eventReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if msg := req.validate(); msg != "" {
		return badRequest(c, msg)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ev := &model.Event{OwnerID: uid, Name: req.Name, StartsAt: req.StartsAt, Document: req.Document}
	if err := h.Events.Create(ctx, ev); err != nil {
		return writeError(c, h.Log, err, "create event failed")
	}
	return c.JSON(http.StatusCreated, ev)
}

// List: GET /v1/events returns the planner's own events.
func (h *EventHandler) List(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return writeError(c, h.Log, err, "")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	events, err := h.Events.ListByOwner(ctx, uid)
	if err != nil {
		return writeError(c, h.Log, err, "list events failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"items": events})
}

// Get: GET /v1/events/:id
func (h *EventHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ev, err := loadReadable(ctx, c, h.Events, id)
	if err != nil {
		return writeError(c, h.Log, err, "load event failed")
	}
	return c.JSON(http.StatusOK, ev)
}

// Update: PUT /v1/events/:id replaces name, start time and document.
func (h *EventHandler) Update(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return writeError(c, h.Log, err, "")
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	var req eventReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if msg := req.validate(); msg != "" {
		return badRequest(c, msg)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ev := &model.Event{ID: id, OwnerID: uid, Name: req.Name, StartsAt: req.StartsAt, Document: req.Document}
	if err := h.Events.Update(ctx, ev, req.Version); err != nil {
		return writeError(c, h.Log, err, "update event failed")
	}
	return c.JSON(http.StatusOK, ev)
}

// Delete: DELETE /v1/events/:id removes the event and its runs.
func (h *EventHandler) Delete(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return writeError(c, h.Log, err, "")
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Events.Delete(ctx, id, uid); err != nil {
		return writeError(c, h.Log, err, "delete event failed")
	}
	return c.NoContent(http.StatusNoContent)
}

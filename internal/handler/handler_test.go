package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/event-seating-planner/internal/middleware"
	"github.com/iliyamo/event-seating-planner/internal/model"
	"github.com/iliyamo/event-seating-planner/internal/repository"
	"github.com/iliyamo/event-seating-planner/internal/seating"
	"github.com/iliyamo/event-seating-planner/internal/service"
)

type memEvents struct {
	byID   map[uint64]*model.Event
	nextID uint64
}

func newMemEvents() *memEvents { return &memEvents{byID: map[uint64]*model.Event{}} }

func (m *memEvents) Create(_ context.Context, e *model.Event) error {
	m.nextID++
	e.ID, e.Version = m.nextID, 1
	cp := *e
	m.byID[e.ID] = &cp
	return nil
}

func (m *memEvents) GetByID(_ context.Context, id uint64) (*model.Event, error) {
	e, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrEventNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *memEvents) GetForOwner(ctx context.Context, id, ownerID uint64) (*model.Event, error) {
	e, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.OwnerID != ownerID {
		return nil, repository.ErrForbidden
	}
	return e, nil
}

func (m *memEvents) ListByOwner(_ context.Context, ownerID uint64) ([]model.Event, error) {
	out := []model.Event{}
	for id := m.nextID; id > 0; id-- {
		if e, ok := m.byID[id]; ok && e.OwnerID == ownerID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *memEvents) Update(ctx context.Context, e *model.Event, expected uint32) error {
	cur, err := m.GetForOwner(ctx, e.ID, e.OwnerID)
	if err != nil {
		return err
	}
	if expected != 0 && expected != cur.Version {
		return repository.ErrConflict
	}
	e.Version = cur.Version + 1
	cp := *e
	m.byID[e.ID] = &cp
	return nil
}

func (m *memEvents) Delete(ctx context.Context, id, ownerID uint64) error {
	if _, err := m.GetForOwner(ctx, id, ownerID); err != nil {
		return err
	}
	delete(m.byID, id)
	return nil
}

type memRuns struct {
	byID      map[uint64]*model.OptimizationRun
	discarded []uint64
}

func (m *memRuns) GetByID(_ context.Context, id uint64) (*model.OptimizationRun, error) {
	r, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrRunNotFound
	}
	return r, nil
}

func (m *memRuns) ListByEvent(_ context.Context, eventID uint64, _ int) ([]model.OptimizationRun, error) {
	out := []model.OptimizationRun{}
	for _, r := range m.byID {
		if r.EventID == eventID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memRuns) Discard(_ context.Context, id uint64) error {
	r, ok := m.byID[id]
	if !ok {
		return repository.ErrRunNotFound
	}
	if r.Status != model.RunPending && r.Status != model.RunCompleted {
		return repository.ErrRunState
	}
	r.Status = model.RunDiscarded
	m.discarded = append(m.discarded, id)
	return nil
}

// stubOptimizer runs the real engine and records runs in memRuns.
type stubOptimizer struct {
	runs       *memRuns
	queueDown  bool
	applyErr   error
	lastBudget seating.Budget
}

func (s *stubOptimizer) Stateless(snap seating.Snapshot, b seating.Budget) seating.OptimizationResult {
	s.lastBudget = b
	return seating.Optimize(snap, b)
}

func (s *stubOptimizer) store(ev *model.Event, uid uint64, b seating.Budget, status model.RunStatus, res *seating.OptimizationResult) *model.OptimizationRun {
	s.lastBudget = b
	run := &model.OptimizationRun{
		ID: uint64(len(s.runs.byID) + 1), EventID: ev.ID, RequestedBy: uid, EventVersion: ev.Version,
		Status: status, Budget: b, Result: res, CreatedAt: time.Now(),
	}
	s.runs.byID[run.ID] = run
	return run
}

func (s *stubOptimizer) RunSync(_ context.Context, ev *model.Event, uid uint64, b seating.Budget) (*model.OptimizationRun, error) {
	res := seating.Optimize(ev.Document.Snapshot(), b)
	return s.store(ev, uid, b, model.RunCompleted, &res), nil
}

func (s *stubOptimizer) Enqueue(_ context.Context, ev *model.Event, uid uint64, b seating.Budget) (*model.OptimizationRun, error) {
	if s.queueDown {
		return nil, service.ErrQueueDisabled
	}
	return s.store(ev, uid, b, model.RunPending, nil), nil
}

func (s *stubOptimizer) Apply(context.Context, uint64, uint64) (*model.Event, error) {
	if s.applyErr != nil {
		return nil, s.applyErr
	}
	return &model.Event{ID: 1, Version: 2}, nil
}

type fixture struct {
	e      *echo.Echo
	events *memEvents
	runs   *memRuns
	opt    *stubOptimizer
}

// testIdentity stands in for JWTAuth: it trusts the X-Test-User and
// X-Test-Role headers.
func testIdentity(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if uid, err := strconv.ParseUint(c.Request().Header.Get("X-Test-User"), 10, 64); err == nil {
			c.Set(middleware.ContextUserID, uid)
			c.Set(middleware.ContextRole, c.Request().Header.Get("X-Test-Role"))
		}
		return next(c)
	}
}

func newFixture() *fixture {
	f := &fixture{events: newMemEvents(), runs: &memRuns{byID: map[uint64]*model.OptimizationRun{}}}
	f.opt = &stubOptimizer{runs: f.runs}
	f.e = echo.New()
	f.e.Use(testIdentity)
	ev := NewEventHandler(f.events, zap.NewNop())
	oh := NewOptimizationHandler(f.events, f.runs, f.opt, zap.NewNop())

	f.e.POST("/v1/optimize", oh.Stateless)
	f.e.GET("/v1/scoring/weights", ScoringWeights)
	f.e.GET("/healthz", Health)
	f.e.POST("/v1/events", ev.Create)
	f.e.GET("/v1/events", ev.List)
	f.e.GET("/v1/events/:id", ev.Get)
	f.e.PUT("/v1/events/:id", ev.Update)
	f.e.DELETE("/v1/events/:id", ev.Delete)
	f.e.POST("/v1/events/:id/optimize", oh.Optimize)
	f.e.POST("/v1/events/:id/optimize/async", oh.OptimizeAsync)
	f.e.GET("/v1/events/:id/runs", oh.ListRuns)
	f.e.GET("/v1/runs/:id", oh.GetRun)
	f.e.POST("/v1/runs/:id/apply", oh.ApplyRun)
	f.e.POST("/v1/runs/:id/discard", oh.DiscardRun)
	return f
}

// do serves one request as uid/role; uid 0 is anonymous.
func (f *fixture) do(uid uint64, role, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if uid != 0 {
		req.Header.Set("X-Test-User", strconv.FormatUint(uid, 10))
		req.Header.Set("X-Test-Role", role)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

const eventBody = `{
  "name": "Wedding",
  "document": {
    "guests": [
      {"id": "a", "table_id": "t1", "relationships": [{"other_guest_id": "b", "type": "partner", "strength": 5}]},
      {"id": "b", "table_id": "t2"},
      {"id": "c"}
    ],
    "tables": [{"id": "t1", "capacity": 2}, {"id": "t2", "capacity": 2}],
    "constraints": []
  }
}`

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestEventCRUD(t *testing.T) {
	f := newFixture()

	rec := f.do(10, model.RolePlanner, http.MethodPost, "/v1/events", eventBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var ev model.Event
	decode(t, rec, &ev)
	assert.Equal(t, uint64(1), ev.ID)
	assert.Equal(t, uint64(10), ev.OwnerID)
	assert.Len(t, ev.Document.Guests, 3)

	rec = f.do(10, model.RolePlanner, http.MethodGet, "/v1/events/1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	// other planners are refused, viewers may read
	rec = f.do(11, model.RolePlanner, http.MethodGet, "/v1/events/1", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = f.do(12, model.RoleViewer, http.MethodGet, "/v1/events/1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(10, model.RolePlanner, http.MethodGet, "/v1/events", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Wedding"`)

	update := strings.Replace(eventBody, `"name": "Wedding"`, `"name": "Reception", "version": 1`, 1)
	rec = f.do(10, model.RolePlanner, http.MethodPut, "/v1/events/1", update)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &ev)
	assert.Equal(t, "Reception", ev.Name)
	assert.Equal(t, uint32(2), ev.Version)

	// the same expected version is now stale
	rec = f.do(10, model.RolePlanner, http.MethodPut, "/v1/events/1", update)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(10, model.RolePlanner, http.MethodDelete, "/v1/events/1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(10, model.RolePlanner, http.MethodGet, "/v1/events/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"event not found"}`, rec.Body.String())
}

func TestEventValidation(t *testing.T) {
	f := newFixture()
	cases := map[string]string{
		"bad json":        `{`,
		"missing name":    `{"document": {"guests": [], "tables": []}}`,
		"duplicate guest": `{"name": "x", "document": {"guests": [{"id": "a"}, {"id": "a"}]}}`,
		"unknown table":   `{"name": "x", "document": {"guests": [{"id": "a", "table_id": "t9"}]}}`,
		"bad constraint":  `{"name": "x", "document": {"guests": [{"id": "a"}], "constraints": [{"id": "k", "type": "glue", "guest_ids": ["a"], "priority": "required"}]}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := f.do(10, model.RolePlanner, http.MethodPost, "/v1/events", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}

	rec := f.do(0, "", http.MethodPost, "/v1/events", eventBody)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = f.do(10, model.RolePlanner, http.MethodGet, "/v1/events/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOptimizeSyncAndRuns(t *testing.T) {
	f := newFixture()
	require.Equal(t, http.StatusCreated, f.do(10, model.RolePlanner, http.MethodPost, "/v1/events", eventBody).Code)

	rec := f.do(10, model.RolePlanner, http.MethodPost, "/v1/events/1/optimize",
		`{"budget": {"max_passes": 5, "time_limit_ms": 250}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var run model.OptimizationRun
	decode(t, rec, &run)
	assert.Equal(t, model.RunCompleted, run.Status)
	require.NotNil(t, run.Result)
	assert.Equal(t, run.Result.ProposedAssignments["a"], run.Result.ProposedAssignments["b"])
	assert.Equal(t, seating.Budget{MaxPasses: 5, TimeLimit: 250 * time.Millisecond}, f.opt.lastBudget)

	// no body at all is a default budget
	rec = f.do(10, model.RolePlanner, http.MethodPost, "/v1/events/1/optimize", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(11, model.RolePlanner, http.MethodPost, "/v1/events/1/optimize", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(12, model.RoleViewer, http.MethodGet, "/v1/events/1/runs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Items []model.RunSummary `json:"items"`
	}
	decode(t, rec, &list)
	assert.Len(t, list.Items, 2)

	rec = f.do(12, model.RoleViewer, http.MethodGet, "/v1/runs/1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(11, model.RolePlanner, http.MethodGet, "/v1/runs/1", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = f.do(10, model.RolePlanner, http.MethodGet, "/v1/runs/99", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"run not found"}`, rec.Body.String())
}

func TestOptimizeAsync(t *testing.T) {
	f := newFixture()
	require.Equal(t, http.StatusCreated, f.do(10, model.RolePlanner, http.MethodPost, "/v1/events", eventBody).Code)

	rec := f.do(10, model.RolePlanner, http.MethodPost, "/v1/events/1/optimize/async", "")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, "/v1/runs/1", rec.Header().Get(echo.HeaderLocation))
	assert.JSONEq(t, `{"run_id":1,"status":"PENDING","event_version":1}`, rec.Body.String())

	f.opt.queueDown = true
	rec = f.do(10, model.RolePlanner, http.MethodPost, "/v1/events/1/optimize/async", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestApplyAndDiscard(t *testing.T) {
	f := newFixture()
	require.Equal(t, http.StatusCreated, f.do(10, model.RolePlanner, http.MethodPost, "/v1/events", eventBody).Code)
	require.Equal(t, http.StatusCreated, f.do(10, model.RolePlanner, http.MethodPost, "/v1/events/1/optimize", "").Code)

	rec := f.do(10, model.RolePlanner, http.MethodPost, "/v1/runs/1/apply", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"APPLIED"`)

	f.opt.applyErr = repository.ErrStaleRun
	rec = f.do(10, model.RolePlanner, http.MethodPost, "/v1/runs/1/apply", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"event changed since the run was computed"}`, rec.Body.String())

	rec = f.do(11, model.RolePlanner, http.MethodPost, "/v1/runs/1/discard", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = f.do(10, model.RolePlanner, http.MethodPost, "/v1/runs/1/discard", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []uint64{1}, f.runs.discarded)
	rec = f.do(10, model.RolePlanner, http.MethodPost, "/v1/runs/1/discard", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestStatelessOptimize(t *testing.T) {
	f := newFixture()
	snap := `{"guests": [{"id": "a"}, {"id": "b"}], "tables": [{"id": "t1", "capacity": 2}]}`

	rec := f.do(0, "", http.MethodPost, "/v1/optimize", `{"snapshot": `+snap+`, "budget": {"max_evaluations": 50}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res seating.OptimizationResult
	decode(t, rec, &res)
	assert.Equal(t, seating.Assignment{"a": "t1", "b": "t1"}, res.ProposedAssignments)
	assert.Equal(t, 50, f.opt.lastBudget.MaxEvaluations)

	rec = f.do(0, "", http.MethodPost, "/v1/optimize", snap)
	assert.Equal(t, http.StatusOK, rec.Code)

	for _, body := range []string{`[1,2]`, `nope`, `{"snapshot": 3}`, `{"guests": [{"id": ""}]}`} {
		rec = f.do(0, "", http.MethodPost, "/v1/optimize", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestScoringWeightsAndHealth(t *testing.T) {
	f := newFixture()
	rec := f.do(0, "", http.MethodGet, "/v1/scoring/weights", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var w seating.Weights
	decode(t, rec, &w)
	assert.Equal(t, seating.DefaultWeights(), w)

	rec = f.do(0, "", http.MethodGet, "/healthz", "")
	assert.Equal(t, "ok", rec.Body.String())
}

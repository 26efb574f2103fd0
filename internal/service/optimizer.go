// Package service holds the planner workflows that sit between the HTTP
// handlers, the repositories and the seating engine.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/event-seating-planner/internal/metrics"
	"github.com/iliyamo/event-seating-planner/internal/model"
	"github.com/iliyamo/event-seating-planner/internal/queue"
	"github.com/iliyamo/event-seating-planner/internal/repository"
	"github.com/iliyamo/event-seating-planner/internal/seating"
)

// ErrQueueDisabled is returned by Enqueue when no broker is configured.
var ErrQueueDisabled = errors.New("background optimization is not configured")

// A synchronous run stops searching storeReserve before its context
// deadline so the result can still be stored, but always searches for at
// least minSearch.
const (
	storeReserve   = 2 * time.Second
	minSearch      = 100 * time.Millisecond
	storeRunTimeout = 5 * time.Second
)

// EventStore loads events.
type EventStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Event, error)
}

// RunStore persists optimization runs.
type RunStore interface {
	Create(ctx context.Context, run *model.OptimizationRun) error
	GetByID(ctx context.Context, id uint64) (*model.OptimizationRun, error)
	Complete(ctx context.Context, id uint64, res seating.OptimizationResult) error
	Fail(ctx context.Context, id uint64, msg string) error
	Apply(ctx context.Context, runID, ownerID uint64, build repository.ApplyFunc) (*model.Event, error)
}

// Publisher hands optimization requests to the background worker.
type Publisher interface {
	PublishOptimizeRequested(ctx context.Context, msg queue.OptimizeRequested) error
}

// Optimizer runs the seating engine for events and tracks the outcome as
// optimization runs.
type Optimizer struct {
	events EventStore
	runs   RunStore
	pub    Publisher
	limit  seating.Budget
	rec    *metrics.Recorder
	log    *zap.Logger
	now    func() time.Time
}

// NewOptimizer wires an Optimizer.  pub may be nil, which disables Enqueue.
// limit caps every budget a caller asks for; its zero fields impose no cap.
func NewOptimizer(events EventStore, runs RunStore, pub Publisher, limit seating.Budget, rec *metrics.Recorder, log *zap.Logger) *Optimizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Optimizer{events: events, runs: runs, pub: pub, limit: limit, rec: rec, log: log, now: time.Now}
}

// ClampBudget returns req limited by the configured maximums.  A zero field
// in req asks for the configured value.
func (o *Optimizer) ClampBudget(req seating.Budget) seating.Budget {
	return seating.Budget{
		MaxPasses:      clampInt(req.MaxPasses, o.limit.MaxPasses),
		MaxEvaluations: clampInt(req.MaxEvaluations, o.limit.MaxEvaluations),
		TimeLimit:      time.Duration(clampInt(int(req.TimeLimit), int(o.limit.TimeLimit))),
	}
}

func clampInt(req, limit int) int {
	if req < 0 {
		req = 0
	}
	if limit <= 0 {
		return req
	}
	if req == 0 || req > limit {
		return limit
	}
	return req
}

func (o *Optimizer) optimize(mode string, snap seating.Snapshot, budget seating.Budget) seating.OptimizationResult {
	start := o.now()
	res := seating.Optimize(snap, budget)
	took := o.now().Sub(start)
	o.rec.Observe(mode, took, res)
	o.log.Debug("optimization finished",
		zap.String("mode", mode),
		zap.Int("guests", len(snap.Guests)),
		zap.Int("moved", len(res.MovedGuestIDs)),
		zap.Int("violations", len(res.Violations)),
		zap.Int("evaluations", res.Stats.Evaluations),
		zap.Bool("budget_exhausted", res.Stats.BudgetExhausted),
		zap.Duration("took", took))
	return res
}

// Stateless optimizes a caller-supplied snapshot without persisting anything.
func (o *Optimizer) Stateless(snap seating.Snapshot, req seating.Budget) seating.OptimizationResult {
	return o.optimize(metrics.ModeStateless, snap, o.ClampBudget(req))
}

// withinDeadline shortens budget.TimeLimit so the search ends before ctx's
// deadline, leaving storeReserve for persisting the run.
func (o *Optimizer) withinDeadline(ctx context.Context, budget seating.Budget) seating.Budget {
	dl, ok := ctx.Deadline()
	if !ok {
		return budget
	}
	left := dl.Sub(o.now()) - storeReserve
	if left < minSearch {
		left = minSearch
	}
	if budget.TimeLimit == 0 || left < budget.TimeLimit {
		budget.TimeLimit = left
	}
	return budget
}

// RunSync optimizes ev immediately and stores the result as a COMPLETED run.
// The search is bounded by ctx's deadline. The run is stored even when ctx
// ran out meanwhile, since the work is already done.
func (o *Optimizer) RunSync(ctx context.Context, ev *model.Event, userID uint64, req seating.Budget) (*model.OptimizationRun, error) {
	budget := o.withinDeadline(ctx, o.ClampBudget(req))
	res := o.optimize(metrics.ModeSync, ev.Document.Snapshot(), budget)
	run := &model.OptimizationRun{
		EventID:      ev.ID,
		RequestedBy:  userID,
		EventVersion: ev.Version,
		Mode:         model.RunModeSync,
		Status:       model.RunCompleted,
		Budget:       budget,
		Result:       &res,
	}
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeRunTimeout)
	defer cancel()
	if err := o.runs.Create(storeCtx, run); err != nil {
		return nil, fmt.Errorf("store run: %w", err)
	}
	return run, nil
}

// Enqueue stores a PENDING run for ev and publishes it to the worker.  When
// publishing fails the run is marked FAILED and the error returned.
func (o *Optimizer) Enqueue(ctx context.Context, ev *model.Event, userID uint64, req seating.Budget) (*model.OptimizationRun, error) {
	if o.pub == nil {
		return nil, ErrQueueDisabled
	}
	run := &model.OptimizationRun{
		EventID:      ev.ID,
		RequestedBy:  userID,
		EventVersion: ev.Version,
		Mode:         model.RunModeAsync,
		Status:       model.RunPending,
		Budget:       o.ClampBudget(req),
	}
	if err := o.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("store run: %w", err)
	}
	msg := queue.OptimizeRequested{
		RunID:        run.ID,
		EventID:      ev.ID,
		EventVersion: ev.Version,
		RequestedBy:  userID,
		RequestedAt:  o.now().UTC(),
	}
	if err := o.pub.PublishOptimizeRequested(ctx, msg); err != nil {
		o.rec.Failed(metrics.ModeAsync)
		if ferr := o.runs.Fail(ctx, run.ID, "enqueue failed: "+err.Error()); ferr != nil {
			o.log.Error("mark run failed", zap.Uint64("run_id", run.ID), zap.Error(ferr))
		}
		return nil, fmt.Errorf("publish run %d: %w", run.ID, err)
	}
	return run, nil
}

// Process is the worker side of Enqueue.  Runs that already left PENDING are
// skipped so redelivered messages are harmless.
func (o *Optimizer) Process(ctx context.Context, msg queue.OptimizeRequested) error {
	log := o.log.With(zap.Uint64("run_id", msg.RunID), zap.Uint64("event_id", msg.EventID))
	run, err := o.runs.GetByID(ctx, msg.RunID)
	if errors.Is(err, repository.ErrRunNotFound) {
		log.Warn("run vanished before processing")
		return nil
	}
	if err != nil {
		return err
	}
	if run.Status != model.RunPending {
		log.Info("run already processed", zap.String("status", string(run.Status)))
		return nil
	}

	ev, err := o.events.GetByID(ctx, run.EventID)
	switch {
	case errors.Is(err, repository.ErrEventNotFound):
		return o.fail(ctx, log, run.ID, "event no longer exists")
	case err != nil:
		return err
	case ev.Version != run.EventVersion:
		return o.fail(ctx, log, run.ID, "event changed before the run was processed")
	}

	res := o.optimize(metrics.ModeAsync, ev.Document.Snapshot(), run.Budget)
	err = o.runs.Complete(ctx, run.ID, res)
	if errors.Is(err, repository.ErrRunState) {
		log.Info("run left PENDING while computing; result dropped")
		return nil
	}
	return err
}

func (o *Optimizer) fail(ctx context.Context, log *zap.Logger, runID uint64, msg string) error {
	o.rec.Failed(metrics.ModeAsync)
	log.Warn("run failed", zap.String("reason", msg))
	err := o.runs.Fail(ctx, runID, msg)
	if errors.Is(err, repository.ErrRunState) {
		return nil
	}
	return err
}

// Apply writes the proposal of a COMPLETED run into its event.
func (o *Optimizer) Apply(ctx context.Context, runID, ownerID uint64) (*model.Event, error) {
	return o.runs.Apply(ctx, runID, ownerID, func(ev *model.Event, run *model.OptimizationRun) (model.EventDocument, error) {
		return ApplyProposal(ev.Document, run.Result.ProposedAssignments), nil
	})
}

// ApplyProposal returns a copy of doc with every guest moved to its proposed
// table.  Guests missing from proposed keep their table.  Seat indices are
// renumbered 0..n-1 per table in guest order; unassigned guests lose theirs.
func ApplyProposal(doc model.EventDocument, proposed seating.Assignment) model.EventDocument {
	out := model.EventDocument{
		Guests:      make([]seating.Guest, len(doc.Guests)),
		Tables:      append([]seating.Table(nil), doc.Tables...),
		Constraints: append([]seating.Constraint(nil), doc.Constraints...),
	}
	next := map[string]int{}
	for i, g := range doc.Guests {
		if t, ok := proposed[g.ID]; ok {
			g.TableID = t
		}
		g.SeatIndex = nil
		if g.TableID != "" {
			seat := next[g.TableID]
			next[g.TableID] = seat + 1
			g.SeatIndex = &seat
		}
		out.Guests[i] = g
	}
	return out
}

// internal/runner/runner.go
package runner

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/crosscheck/internal/config"
	"github.com/xkilldash9x/crosscheck/internal/consistency"
	"github.com/xkilldash9x/crosscheck/internal/interact"
	"github.com/xkilldash9x/crosscheck/internal/observability"
	"github.com/xkilldash9x/crosscheck/internal/pages"
	"github.com/xkilldash9x/crosscheck/internal/services"
)

// releaseTimeout bounds session teardown and failure screenshots. They run
// on a fresh context because the unit's own context may already be done.
const releaseTimeout = 15 * time.Second

// Dependencies are the collaborators a Runner is built from.
type Dependencies struct {
	Provider  SessionProvider
	Mode      string
	Search    *services.SearchService
	Inventory *services.InventoryService
	Checker   *consistency.Checker
	Metrics   *Metrics
}

// Runner executes units in parallel, each with its own session.
type Runner struct {
	cfg    *config.Config
	deps   Dependencies
	logger *zap.Logger
}

// New validates the dependencies and returns a Runner.
func New(cfg *config.Config, deps Dependencies, logger *zap.Logger) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if deps.Provider == nil {
		return nil, errors.New("session provider cannot be nil")
	}
	if deps.Checker == nil {
		return nil, errors.New("consistency checker cannot be nil")
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics()
	}
	return &Runner{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With(zap.String("component", "runner")),
	}, nil
}

// Metrics returns the collectors the runner records into.
func (r *Runner) Metrics() *Metrics { return r.deps.Metrics }

// Run executes units with at most runner.workers in flight and returns the
// report once all of them finished. Unit failures never stop other units.
func (r *Runner) Run(ctx context.Context, units []Unit) *Report {
	report := &Report{
		RunID:       uuid.NewString(),
		Environment: r.cfg.Target.Environment,
		BrowserMode: r.deps.Mode,
		StartedAt:   time.Now().UTC(),
		Units:       make([]UnitResult, len(units)),
	}

	workers := r.cfg.Runner.Workers
	if workers <= 0 {
		workers = 1
	}
	r.logger.Info("Starting run.",
		zap.String("run_id", report.RunID),
		zap.Int("units", len(units)),
		zap.Int("workers", workers))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, u := range units {
		g.Go(func() error {
			report.Units[i] = r.runUnit(ctx, u)
			return nil
		})
	}
	_ = g.Wait()

	report.FinishedAt = time.Now().UTC()
	report.summarize()
	r.logger.Info("Run finished.",
		zap.String("run_id", report.RunID),
		zap.Int("passed", report.Summary.Passed),
		zap.Int("failed", report.Summary.Failed),
		zap.Int("skipped", report.Summary.Skipped),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)))
	return report
}

// runUnit runs one unit to completion. The session, when one was acquired,
// is released on every path out of here, panics included.
func (r *Runner) runUnit(ctx context.Context, u Unit) (res UnitResult) {
	start := time.Now()
	res.Name = u.Name
	logger := r.logger.With(zap.String("unit", u.Name))

	defer func() {
		res.Duration = time.Since(start)
		r.deps.Metrics.observeUnit(res)
		logger.Info("Unit finished.",
			observability.Event(observability.EventUnitFinished),
			zap.String("outcome", string(res.Outcome)),
			zap.String("kind", res.Kind),
			zap.Duration("duration", res.Duration),
			zap.String("error", res.Error))
	}()

	if u.RequiresAuth && !r.cfg.Runner.AuthEnabled {
		res.Outcome, res.Kind = Skipped, KindSkip
		res.Error = "requires an authenticated session (runner.auth_enabled)"
		return res
	}

	unitCtx := ctx
	if r.cfg.Runner.UnitTimeout > 0 {
		var cancel context.CancelFunc
		unitCtx, cancel = context.WithTimeout(ctx, r.cfg.Runner.UnitTimeout)
		defer cancel()
	}

	env := &Env{
		Config:    r.cfg,
		Logger:    logger,
		Search:    r.deps.Search,
		Inventory: r.deps.Inventory,
		Checker:   r.deps.Checker,
	}

	if u.Browser {
		session, err := r.deps.Provider.CreateSession(unitCtx)
		r.deps.Metrics.observeSession(err)
		if err != nil {
			res.fail(err)
			return res
		}
		defer r.release(session, logger)

		res.SessionID = session.ID()
		env.Session = session
		in := interact.New(session.Driver(), interact.OptionsFromConfig(r.cfg.Interaction), pages.NewOverlayGuard(logger), logger)
		site, err := pages.NewSite(session, in, r.cfg.Target.BaseURL, logger)
		if err != nil {
			res.fail(err)
			return res
		}
		env.Site = site
	}

	err := runSafely(unitCtx, u, env)
	res.Observations, res.Checks = env.snapshot()
	res.fail(err)
	if err != nil {
		if res.Kind == KindPanic {
			logger.Error("Unit panicked.", zap.Error(err))
		}
		if res.Outcome == Failed && env.Session != nil && r.cfg.Runner.ScreenshotOnFailure {
			res.Screenshot = r.capture(env.Session, u.Name, logger)
		}
	}
	return res
}

// runSafely turns a unit panic into a PanicError.
func runSafely(ctx context.Context, u Unit, env *Env) (err error) {
	defer func() {
		if p := recover(); p != nil {
			env.Logger.Debug("Recovered unit panic.", zap.ByteString("stack", debug.Stack()))
			err = &PanicError{Value: p}
		}
	}()
	if u.Run == nil {
		return fmt.Errorf("unit %s has no body", u.Name)
	}
	return u.Run(ctx, env)
}

func (res *UnitResult) fail(err error) {
	res.Outcome, res.Kind = Classify(err)
	if err != nil {
		res.Error = err.Error()
	}
}

func (r *Runner) release(s Session, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if err := s.Close(ctx); err != nil {
		logger.Warn("Failed to close session.", zap.String("session_id", s.ID()), zap.Error(err))
	}
}

func (r *Runner) capture(s Session, name string, logger *zap.Logger) string {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	path, err := s.Screenshot(ctx, r.cfg.Runner.ArtifactDir, name)
	if err != nil {
		logger.Warn("Failed to capture failure screenshot.", zap.Error(err))
		return ""
	}
	logger.Info("Saved failure screenshot.", zap.String("path", path))
	return path
}

// internal/runner/unit.go
package runner

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/crosscheck/internal/browser"
	"github.com/xkilldash9x/crosscheck/internal/config"
	"github.com/xkilldash9x/crosscheck/internal/consistency"
	"github.com/xkilldash9x/crosscheck/internal/interact"
	"github.com/xkilldash9x/crosscheck/internal/pages"
	"github.com/xkilldash9x/crosscheck/internal/services"
)

// -- Sessions --

// Session is the part of a browser session the runner and its units use.
type Session interface {
	ID() string
	Navigate(ctx context.Context, url string) error
	Driver() interact.Driver
	Screenshot(ctx context.Context, dir, name string) (string, error)
	Close(ctx context.Context) error
}

// SessionProvider hands out one fresh session per call.
type SessionProvider interface {
	CreateSession(ctx context.Context) (Session, error)
}

// FactoryProvider adapts a browser.Factory to SessionProvider.
type FactoryProvider struct {
	Factory *browser.Factory
}

func (p FactoryProvider) CreateSession(ctx context.Context) (Session, error) {
	s, err := p.Factory.CreateSession(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// -- Units --

// Unit is one independent test. Units that set Browser get their own session,
// which the runner releases however Run exits.
type Unit struct {
	Name        string
	Description string
	Tags        []string
	// Browser units receive Env.Session and Env.Site.
	Browser bool
	// RequiresAuth units are skipped unless runner.auth_enabled is set.
	RequiresAuth bool
	Run          func(ctx context.Context, env *Env) error
}

// HasTag reports whether the unit carries tag.
func (u Unit) HasTag(tag string) bool {
	for _, t := range u.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Env is what a unit works with. Session and Site are nil for units that do
// not use a browser.
type Env struct {
	Config    *config.Config
	Logger    *zap.Logger
	Session   Session
	Site      *pages.Site
	Search    *services.SearchService
	Inventory *services.InventoryService
	Checker   *consistency.Checker

	mu           sync.Mutex
	observations []consistency.Observation
	checks       []consistency.Result
}

// Observe keeps observations for the report.
func (e *Env) Observe(obs ...consistency.Observation) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observations = append(e.observations, obs...)
}

// Compare runs a cross-layer check and records both sides and the result. A
// divergence becomes a DivergenceError; a skipped check becomes a skip.
func (e *Env) Compare(ui, api consistency.Observation, apiErr error) (consistency.Result, error) {
	e.Observe(ui)
	if !api.IsZero() {
		e.Observe(api)
	}
	res, err := e.Checker.Check(ui, api, apiErr)
	if err != nil {
		return res, err
	}

	e.mu.Lock()
	e.checks = append(e.checks, res)
	e.mu.Unlock()

	switch res.Status {
	case consistency.Divergence:
		return res, &DivergenceError{Result: res}
	case consistency.Skipped:
		if apiErr != nil {
			return res, apiErr
		}
		return res, Skip(res.Reason)
	}
	return res, nil
}

func (e *Env) snapshot() ([]consistency.Observation, []consistency.Result) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]consistency.Observation(nil), e.observations...), append([]consistency.Result(nil), e.checks...)
}

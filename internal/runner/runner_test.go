// internal/runner/runner_test.go
package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/crosscheck/internal/browser"
	"github.com/xkilldash9x/crosscheck/internal/config"
	"github.com/xkilldash9x/crosscheck/internal/consistency"
	"github.com/xkilldash9x/crosscheck/internal/interact"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// -- Test doubles --

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) CreateSession(ctx context.Context) (Session, error) {
	args := m.Called(ctx)
	s, _ := args.Get(0).(Session)
	return s, args.Error(1)
}

type fakeSession struct {
	id          string
	closes      atomic.Int32
	screenshots atomic.Int32
}

func (s *fakeSession) ID() string                             { return s.id }
func (s *fakeSession) Navigate(context.Context, string) error { return nil }
func (s *fakeSession) Driver() interact.Driver                { return nil }
func (s *fakeSession) Close(context.Context) error            { s.closes.Add(1); return nil }

func (s *fakeSession) Screenshot(_ context.Context, dir, name string) (string, error) {
	s.screenshots.Add(1)
	return filepath.Join(dir, name+".png"), nil
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Runner.Workers = 2
	cfg.Runner.UnitTimeout = 2 * time.Second
	cfg.Runner.ArtifactDir = t.TempDir()
	cfg.Runner.ScreenshotOnFailure = true
	return cfg
}

func testChecker(t *testing.T) *consistency.Checker {
	tol, err := consistency.NewTolerance(consistency.Absolute, 1)
	require.NoError(t, err)
	return consistency.NewChecker(tol, consistency.Options{}, zaptest.NewLogger(t))
}

func newTestRunner(t *testing.T, cfg *config.Config, provider SessionProvider) *Runner {
	r, err := New(cfg, Dependencies{Provider: provider, Mode: "local", Checker: testChecker(t)}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return r
}

// sessionSource hands out fresh fake sessions and remembers them.
type sessionSource struct {
	mu       sync.Mutex
	sessions []*fakeSession
}

func (s *sessionSource) CreateSession(context.Context) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fs := &fakeSession{id: "s" + string(rune('a'+len(s.sessions)))}
	s.sessions = append(s.sessions, fs)
	return fs, nil
}

// -- Tests --

func TestNew_ValidatesDependencies(t *testing.T) {
	logger := zaptest.NewLogger(t)
	cfg := config.NewDefaultConfig()

	_, err := New(nil, Dependencies{}, logger)
	assert.Error(t, err)
	_, err = New(cfg, Dependencies{}, logger)
	assert.Error(t, err)
	_, err = New(cfg, Dependencies{Provider: &sessionSource{}}, logger)
	assert.Error(t, err)

	r, err := New(cfg, Dependencies{Provider: &sessionSource{}, Checker: testChecker(t)}, logger)
	require.NoError(t, err)
	assert.NotNil(t, r.Metrics())
}

func TestRun_OutcomesAndGuaranteedRelease(t *testing.T) {
	cfg := testConfig(t)
	source := &sessionSource{}
	r := newTestRunner(t, cfg, source)

	units := []Unit{
		{Name: "pass", Browser: true, Run: func(ctx context.Context, env *Env) error {
			assert.NotNil(t, env.Site)
			return nil
		}},
		{Name: "assert", Browser: true, Run: func(context.Context, *Env) error {
			return Failf("expected products, got %d", 0)
		}},
		{Name: "panic", Browser: true, Run: func(context.Context, *Env) error {
			panic("boom")
		}},
		{Name: "skip", Browser: true, Run: func(context.Context, *Env) error {
			return Skip("term redirected to a category page")
		}},
		{Name: "api-only", Run: func(_ context.Context, env *Env) error {
			assert.Nil(t, env.Session)
			return nil
		}},
		{Name: "cart", Browser: true, RequiresAuth: true, Run: func(context.Context, *Env) error {
			t.Error("auth-required unit must not run")
			return nil
		}},
	}

	report := r.Run(context.Background(), units)
	byName := map[string]UnitResult{}
	for _, u := range report.Units {
		byName[u.Name] = u
	}

	assert.Equal(t, Passed, byName["pass"].Outcome)
	assert.Equal(t, Failed, byName["assert"].Outcome)
	assert.Equal(t, KindAssertion, byName["assert"].Kind)
	assert.NotEmpty(t, byName["assert"].Screenshot)
	assert.Equal(t, Failed, byName["panic"].Outcome)
	assert.Equal(t, KindPanic, byName["panic"].Kind)
	assert.Equal(t, Skipped, byName["skip"].Outcome)
	assert.Empty(t, byName["skip"].Screenshot, "skips are not failures")
	assert.Equal(t, Passed, byName["api-only"].Outcome)
	assert.Equal(t, Skipped, byName["cart"].Outcome)

	assert.Equal(t, Summary{Total: 6, Passed: 2, Failed: 2, Skipped: 2}, report.Summary)
	assert.True(t, report.Failed())
	assert.NotEmpty(t, report.RunID)

	// Four browser units ran; every session was closed exactly once.
	require.Len(t, source.sessions, 4)
	for _, s := range source.sessions {
		assert.Equal(t, int32(1), s.closes.Load(), s.id)
	}
}

func TestRun_SessionCreationFailure(t *testing.T) {
	provider := &mockProvider{}
	createErr := &browser.SessionCreationError{Mode: browser.ModeRemote, Endpoint: "http://pool:4444", Err: context.DeadlineExceeded}
	provider.On("CreateSession", mock.Anything).Return(nil, createErr).Once()

	ran := false
	r := newTestRunner(t, testConfig(t), provider)
	report := r.Run(context.Background(), []Unit{{Name: "search", Browser: true, Run: func(context.Context, *Env) error {
		ran = true
		return nil
	}}})

	require.Len(t, report.Units, 1)
	assert.False(t, ran)
	assert.Equal(t, Failed, report.Units[0].Outcome)
	assert.Equal(t, KindSessionCreation, report.Units[0].Kind)
	provider.AssertExpectations(t)
}

func TestRun_UnitTimeoutReleasesSession(t *testing.T) {
	cfg := testConfig(t)
	cfg.Runner.UnitTimeout = 50 * time.Millisecond
	source := &sessionSource{}
	r := newTestRunner(t, cfg, source)

	report := r.Run(context.Background(), []Unit{{Name: "hang", Browser: true, Run: func(ctx context.Context, _ *Env) error {
		<-ctx.Done()
		return ctx.Err()
	}}})

	assert.Equal(t, KindUnitTimeout, report.Units[0].Kind)
	require.Len(t, source.sessions, 1)
	assert.Equal(t, int32(1), source.sessions[0].closes.Load())
	assert.Equal(t, int32(1), source.sessions[0].screenshots.Load())
}

func TestRun_RespectsWorkerLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.Runner.Workers = 2
	r := newTestRunner(t, cfg, &sessionSource{})

	var inFlight, peak atomic.Int32
	body := func(context.Context, *Env) error {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	}
	units := make([]Unit, 6)
	for i := range units {
		units[i] = Unit{Name: "u", Run: body}
	}

	report := r.Run(context.Background(), units)
	assert.Equal(t, 6, report.Summary.Passed)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRun_WritesMetricsTextfile(t *testing.T) {
	cfg := testConfig(t)
	r := newTestRunner(t, cfg, &sessionSource{})
	r.Run(context.Background(), []Unit{
		{Name: "ok", Run: func(context.Context, *Env) error { return nil }},
		{Name: "bad", Run: func(context.Context, *Env) error { return errors.New("boom") }},
	})

	path := filepath.Join(t.TempDir(), "metrics", "crosscheck.prom")
	require.NoError(t, r.Metrics().WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `crosscheck_unit_outcomes_total{kind="",outcome="passed",unit="ok"} 1`)
	assert.Contains(t, string(data), `crosscheck_unit_outcomes_total{kind="error",outcome="failed",unit="bad"} 1`)
}

// internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/crosscheck/internal/interact"
	"github.com/xkilldash9x/crosscheck/internal/observability"
)

// State is the lifecycle position of a Session.
type State string

const (
	StateCreated State = "created"
	StateActive  State = "active"
	StateClosed  State = "closed"
)

const defaultPageLoadTimeout = 30 * time.Second

// Session is one browser tab owned by exactly one test unit.
type Session struct {
	id      string
	mode    Mode
	profile Profile

	// ctx carries the chromedp target; release tears down tab and allocator.
	ctx     context.Context
	release func()

	pageLoadTimeout time.Duration
	logger          *zap.Logger

	mu    sync.Mutex
	state State

	closeOnce sync.Once
	driver    *cdpDriver
}

func newSession(tabCtx context.Context, release func(), mode Mode, profile Profile, pageLoadTimeout time.Duration, logger *zap.Logger) *Session {
	if pageLoadTimeout <= 0 {
		pageLoadTimeout = defaultPageLoadTimeout
	}
	id := uuid.New().String()
	s := &Session{
		id:              id,
		mode:            mode,
		profile:         profile,
		ctx:             tabCtx,
		release:         release,
		pageLoadTimeout: pageLoadTimeout,
		logger:          logger.With(zap.String("session_id", id), zap.String("mode", string(mode))),
		state:           StateCreated,
	}
	s.driver = &cdpDriver{session: s}
	return s
}

func (s *Session) ID() string          { return s.id }
func (s *Session) Mode() Mode          { return s.mode }
func (s *Session) Profile() Profile    { return s.profile }
func (s *Session) Logger() *zap.Logger { return s.logger }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Driver exposes the session as an interaction driver.
func (s *Session) Driver() interact.Driver { return s.driver }

// run executes actions on the tab, bounded by both the session and ctx.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	if s.State() == StateClosed {
		return ErrSessionClosed
	}
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// Navigate loads url and waits for the load event, bounded by the page
// load timeout.
func (s *Session) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, s.pageLoadTimeout)
	defer cancel()

	if err := s.run(navCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}

	s.mu.Lock()
	if s.state == StateCreated {
		s.state = StateActive
	}
	s.mu.Unlock()
	s.logger.Debug("Navigated.", zap.String("url", url))
	return nil
}

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Screenshot captures the viewport as PNG into dir and returns the file path.
func (s *Session) Screenshot(ctx context.Context, dir, name string) (string, error) {
	var buf []byte
	if err := s.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return "", fmt.Errorf("failed to capture screenshot: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}
	file := fmt.Sprintf("%s_%s.png", unsafeFileChars.ReplaceAllString(name, "_"), time.Now().Format("20060102T150405"))
	path := filepath.Join(dir, file)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}
	return path, nil
}

// Close releases the tab and, through it, the allocator. It is safe to call
// more than once and from a deferred cleanup after the unit already closed it.
func (s *Session) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()

		// Ask the browser to close the tab before dropping the connection.
		if chromedp.FromContext(s.ctx) != nil {
			done := make(chan error, 1)
			go func() { done <- chromedp.Cancel(s.ctx) }()
			select {
			case err = <-done:
			case <-ctx.Done():
				err = ctx.Err()
			}
		}
		if s.release != nil {
			s.release()
		}
		s.logger.Info("Browser session closed.", observability.Event(observability.EventSessionClosed), zap.Error(err))
	})
	return err
}

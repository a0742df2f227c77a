// internal/browser/factory.go
package browser

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/crosscheck/internal/config"
	"github.com/xkilldash9x/crosscheck/internal/observability"
)

// Mode is where sessions come from.
type Mode string

const (
	ModeLocal  Mode = "local"
	ModeRemote Mode = "remote"
)

const defaultCreateTimeout = 45 * time.Second

// Profile is the identity a session presents to the site.
type Profile struct {
	Kind      string
	Headless  bool
	Width     int
	Height    int
	UserAgent string
	Headers   map[string]string
}

// ProfileFromConfig extracts the session profile. Extra identification
// headers are shared with the API client.
func ProfileFromConfig(cfg config.BrowserConfig, headers map[string]string) Profile {
	return Profile{
		Kind:      strings.ToLower(cfg.Kind),
		Headless:  cfg.Headless,
		Width:     cfg.WindowWidth,
		Height:    cfg.WindowHeight,
		UserAgent: cfg.UserAgent,
		Headers:   headers,
	}
}

// Allocator produces the chromedp allocator context for one session and
// knows how to apply the profile on its side of the connection.
type Allocator interface {
	Mode() Mode
	// Endpoint identifies the remote pool; empty for local browsers.
	Endpoint() string
	Allocate(parent context.Context) (context.Context, context.CancelFunc)
	// Prepare returns the tasks that finish applying the profile to a new tab.
	Prepare(p Profile) chromedp.Tasks
}

// -- Local --

type localAllocator struct {
	opts []chromedp.ExecAllocatorOption
}

func newLocalAllocator(cfg config.BrowserConfig, p Profile) *localAllocator {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	for name, value := range launchFlags(cfg, p) {
		opts = append(opts, chromedp.Flag(name, value))
	}
	if p.Width > 0 && p.Height > 0 {
		opts = append(opts, chromedp.WindowSize(p.Width, p.Height))
	}
	if p.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(p.UserAgent))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return &localAllocator{opts: opts}
}

// launchFlags are the command-line switches for a local browser, keyed
// without the leading dashes.
func launchFlags(cfg config.BrowserConfig, p Profile) map[string]interface{} {
	flags := map[string]interface{}{
		"headless":               p.Headless,
		"disable-extensions":     true,
		"disable-blink-features": "AutomationControlled",
		"disable-gpu":            p.Headless,
	}

	for _, arg := range cfg.Args {
		parts := strings.SplitN(arg, "=", 2)
		name := strings.TrimPrefix(parts[0], "--")
		if len(parts) == 2 {
			flags[name] = parts[1]
		} else {
			flags[name] = true
		}
	}

	// Needed inside containers.
	if runtime.GOOS == "linux" {
		flags["no-sandbox"] = true
		flags["disable-dev-shm-usage"] = true
	}
	return flags
}

func (a *localAllocator) Mode() Mode       { return ModeLocal }
func (a *localAllocator) Endpoint() string { return "" }

func (a *localAllocator) Allocate(parent context.Context) (context.Context, context.CancelFunc) {
	return chromedp.NewExecAllocator(parent, a.opts...)
}

// Window size and user agent are launch flags locally; only headers remain.
func (a *localAllocator) Prepare(p Profile) chromedp.Tasks {
	return headerTasks(p)
}

// -- Remote --

type remoteAllocator struct {
	url string
}

func (a *remoteAllocator) Mode() Mode       { return ModeRemote }
func (a *remoteAllocator) Endpoint() string { return a.url }

func (a *remoteAllocator) Allocate(parent context.Context) (context.Context, context.CancelFunc) {
	return chromedp.NewRemoteAllocator(parent, a.url)
}

// A pooled browser was launched by someone else, so the profile is applied
// through protocol overrides instead of flags.
func (a *remoteAllocator) Prepare(p Profile) chromedp.Tasks {
	var tasks chromedp.Tasks
	if p.Width > 0 && p.Height > 0 {
		tasks = append(tasks, emulation.SetDeviceMetricsOverride(int64(p.Width), int64(p.Height), 1, false))
	}
	if p.UserAgent != "" {
		tasks = append(tasks, emulation.SetUserAgentOverride(p.UserAgent))
	}
	return append(tasks, headerTasks(p)...)
}

func headerTasks(p Profile) chromedp.Tasks {
	if len(p.Headers) == 0 {
		return nil
	}
	headers := make(network.Headers, len(p.Headers))
	for k, v := range p.Headers {
		headers[k] = v
	}
	return chromedp.Tasks{network.Enable(), network.SetExtraHTTPHeaders(headers)}
}

// -- Factory --

// Factory creates sessions from a single allocation strategy chosen once,
// from browser.remote_url, at construction.
type Factory struct {
	alloc           Allocator
	profile         Profile
	createTimeout   time.Duration
	pageLoadTimeout time.Duration
	logger          *zap.Logger
}

// NewFactory picks the local or remote strategy. headers are extra
// identification headers sent with every page request.
func NewFactory(cfg config.BrowserConfig, headers map[string]string, logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	profile := ProfileFromConfig(cfg, headers)

	var alloc Allocator
	if cfg.IsRemote() {
		alloc = &remoteAllocator{url: strings.TrimSpace(cfg.RemoteURL)}
	} else {
		alloc = newLocalAllocator(cfg, profile)
	}

	createTimeout := cfg.CreateTimeout
	if createTimeout <= 0 {
		createTimeout = defaultCreateTimeout
	}

	return &Factory{
		alloc:           alloc,
		profile:         profile,
		createTimeout:   createTimeout,
		pageLoadTimeout: cfg.PageLoadTimeout,
		logger:          logger.Named("browser"),
	}
}

// Mode reports the strategy chosen at construction.
func (f *Factory) Mode() Mode { return f.alloc.Mode() }

func (f *Factory) creationError(err error) error {
	return &SessionCreationError{Mode: f.alloc.Mode(), Endpoint: f.alloc.Endpoint(), Err: err}
}

// CreateSession obtains a new tab with the profile applied. It never waits
// longer than the configured creation timeout, so an exhausted pool surfaces
// as a SessionCreationError rather than a hang.
func (f *Factory) CreateSession(ctx context.Context) (*Session, error) {
	if !supportedKind(f.profile.Kind) {
		return nil, f.creationError(fmt.Errorf("%w: %q", ErrUnsupportedBrowser, f.profile.Kind))
	}

	createCtx, cancel := context.WithTimeout(ctx, f.createTimeout)
	defer cancel()

	// The first Run on a tab context launches or connects the browser and
	// ties it to the context it was given, so it must not carry the
	// creation deadline. The deadline is enforced by the select below.
	allocCtx, allocCancel := f.alloc.Allocate(context.WithoutCancel(ctx))
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	release := func() {
		tabCancel()
		allocCancel()
	}

	started := make(chan error, 1)
	go func() { started <- chromedp.Run(tabCtx) }()

	select {
	case err := <-started:
		if err != nil {
			release()
			return nil, f.creationError(err)
		}
	case <-createCtx.Done():
		release()
		return nil, f.creationError(createCtx.Err())
	}

	prepCtx, prepCancel := CombineContext(tabCtx, createCtx)
	defer prepCancel()

	var product, userAgent string
	tasks := chromedp.Tasks{
		chromedp.ActionFunc(func(c context.Context) error {
			var err error
			_, product, _, userAgent, _, err = cdpbrowser.GetVersion().Do(c)
			return err
		}),
	}
	if err := chromedp.Run(prepCtx, tasks); err != nil {
		release()
		return nil, f.creationError(fmt.Errorf("querying browser version: %w", err))
	}
	if err := negotiate(f.profile.Kind, product, userAgent); err != nil {
		release()
		return nil, f.creationError(err)
	}
	if err := chromedp.Run(prepCtx, f.alloc.Prepare(f.profile)); err != nil {
		release()
		return nil, f.creationError(fmt.Errorf("applying browser profile: %w", err))
	}

	s := newSession(tabCtx, release, f.alloc.Mode(), f.profile, f.pageLoadTimeout, f.logger)
	s.logger.Info("Browser session created.",
		observability.Event(observability.EventSessionCreated),
		zap.String("endpoint", f.alloc.Endpoint()),
		zap.String("browser", product))
	return s, nil
}

func supportedKind(kind string) bool {
	switch kind {
	case config.BrowserChrome, config.BrowserChromium, config.BrowserEdge:
		return true
	}
	return false
}

// negotiate checks the connected browser can act as the requested kind.
// Chrome and Chromium are interchangeable; Edge must really be Edge.
func negotiate(kind, product, userAgent string) error {
	isEdge := strings.Contains(product, "Edg") || strings.Contains(userAgent, "Edg/")
	isChromium := strings.Contains(product, "Chrom") || strings.Contains(userAgent, "Chrome")
	switch {
	case kind == config.BrowserEdge && !isEdge:
		return fmt.Errorf("%w: endpoint offers %q, not edge", ErrUnsupportedBrowser, product)
	case kind != config.BrowserEdge && !isChromium:
		return fmt.Errorf("%w: endpoint offers %q, not %s", ErrUnsupportedBrowser, product, kind)
	}
	return nil
}

// File: internal/browser/lifecycle.go
package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/voidhawk9/autoteller/internal/browser/stealth"
	"github.com/voidhawk9/autoteller/internal/config"
)

// Launcher creates ephemeral sessions from the launch configuration. It is
// the only place new Chrome processes are started.
type Launcher struct {
	cfg          config.BrowserConfig
	artifactsDir string
	logger       *zap.Logger
}

// SessionOptions carries the per-invocation knobs of WithSession.
type SessionOptions struct {
	// Headless overrides the config default for this invocation.
	Headless bool
	// CaptureOnFailure writes a best-effort screenshot artifact when the
	// operation fails.
	CaptureOnFailure bool
	// InvocationID names the failure artifact file.
	InvocationID string
}

// NewLauncher builds a launcher from the application configuration.
func NewLauncher(cfg *config.Config, logger *zap.Logger) *Launcher {
	return &Launcher{
		cfg:          cfg.Browser,
		artifactsDir: cfg.Artifacts.Dir,
		logger:       logger.Named("browser"),
	}
}

// NewSession starts a fresh Chrome process with a single tab and applies the
// stealth persona before any navigation. The caller owns the session and
// must Close it.
func (l *Launcher) NewSession(ctx context.Context, headless bool) (*Session, error) {
	id := newSessionID()
	log := l.logger.With(zap.String("session_id", id))

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, AllocatorOptions(l.cfg, headless)...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	s := &Session{
		id:          id,
		ctx:         tabCtx,
		logger:      log,
		cfg:         l.cfg,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
	}

	// Force the browser process to start now so launch failures surface
	// here rather than inside the first command action.
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	if l.cfg.Stealth.Enabled {
		persona := l.persona()
		if err := chromedp.Run(tabCtx, stealth.Apply(persona, log)); err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to apply stealth persona: %w", err)
		}
	}

	log.Debug("Browser session started.", zap.Bool("headless", headless))
	return s, nil
}

// WithSession runs op inside a freshly acquired session and guarantees
// release on every exit path, including panics raised mid-operation. When op
// fails and capture is requested, a screenshot artifact is written on a
// best-effort basis; artifact failures are logged and never mask op's error.
func (l *Launcher) WithSession(ctx context.Context, opts SessionOptions, op func(context.Context, *Session) error) error {
	session, err := l.NewSession(ctx, opts.Headless)
	if err != nil {
		return err
	}
	defer session.Close()

	if err := op(ctx, session); err != nil {
		if opts.CaptureOnFailure {
			l.captureFailure(session, opts.InvocationID)
		}
		return err
	}
	return nil
}

// captureFailure snapshots the page state for post-mortem inspection. Runs
// on an independent context so a dead caller context cannot prevent the
// capture.
func (l *Launcher) captureFailure(session *Session, invocationID string) {
	captureCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	shot, err := session.Screenshot(captureCtx, false, "")
	if err != nil {
		l.logger.Warn("Failed to capture failure screenshot.", zap.Error(err))
		return
	}

	if err := os.MkdirAll(l.artifactsDir, 0o755); err != nil {
		l.logger.Warn("Failed to create artifacts directory.", zap.Error(err))
		return
	}

	name := invocationID
	if name == "" {
		name = session.ID()
	}
	path := filepath.Join(l.artifactsDir, fmt.Sprintf("failure-%s.png", name))
	if err := os.WriteFile(path, shot, 0o644); err != nil {
		l.logger.Warn("Failed to write failure screenshot.", zap.String("path", path), zap.Error(err))
		return
	}

	l.logger.Info("Failure screenshot captured.", zap.String("path", path))
}

// persona maps the stealth configuration onto a persona, falling back to the
// defaults for any field left empty.
func (l *Launcher) persona() stealth.Persona {
	p := stealth.DefaultPersona
	if ua := l.cfg.Stealth.UserAgent; ua != "" {
		p.UserAgent = ua
	}
	if tz := l.cfg.Stealth.Timezone; tz != "" {
		p.Timezone = tz
	}
	if loc := l.cfg.Stealth.Locale; loc != "" {
		p.Locale = loc
	}
	return p
}

// File: internal/command/dispatcher.go
package command

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voidhawk9/autoteller/api/schemas"
	"github.com/voidhawk9/autoteller/internal/browser"
	"github.com/voidhawk9/autoteller/internal/config"
	"github.com/voidhawk9/autoteller/internal/cookies"
	"github.com/voidhawk9/autoteller/internal/retry"
)

// AuditRecorder persists one record per command invocation. Nil disables
// auditing; failures to record are logged and never fail the command.
type AuditRecorder interface {
	RecordInvocation(ctx context.Context, rec InvocationRecord) error
}

// InvocationRecord is the audit row written after every dispatch.
type InvocationRecord struct {
	ID        string
	Command   string
	Succeeded bool
	ErrorKind string
	Duration  time.Duration
	StartedAt time.Time
}

// Dispatcher owns the command catalog and the collaborators every handler
// needs. One dispatcher serves all invocations; each invocation gets its own
// browser session.
type Dispatcher struct {
	logger      *zap.Logger
	launcher    *browser.Launcher
	cookies     *cookies.Store
	audit       AuditRecorder
	retryPolicy retry.Policy
	catalog     map[string]*Spec

	// now is the TOTP clock, replaceable in tests.
	now clock
}

// invocation carries the per-dispatch state threaded through a handler.
type invocation struct {
	id     string
	params Params
	logger *zap.Logger
}

// NewDispatcher wires the dispatcher from the application configuration and
// its collaborators. audit may be nil.
func NewDispatcher(cfg *config.Config, logger *zap.Logger, launcher *browser.Launcher, cookieStore *cookies.Store, audit AuditRecorder) *Dispatcher {
	return &Dispatcher{
		logger:   logger.Named("dispatcher"),
		launcher: launcher,
		cookies:  cookieStore,
		audit:    audit,
		retryPolicy: retry.Policy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay,
		},
		catalog: catalog(),
		now:     time.Now,
	}
}

// Commands lists the catalog's command names.
func (d *Dispatcher) Commands() []string {
	names := make([]string, 0, len(d.catalog))
	for name := range d.catalog {
		names = append(names, name)
	}
	return names
}

// Dispatch validates and executes one named command. Validation, including
// cookie path confinement, completes before any browser resource is
// acquired. The returned error is always one of the taxonomy kinds.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, raw map[string]interface{}) (*schemas.Result, error) {
	start := time.Now()
	inv := &invocation{id: uuid.New().String()}
	inv.logger = d.logger.With(zap.String("invocation_id", inv.id), zap.String("command", name))

	spec, ok := d.catalog[name]
	if !ok {
		err := schemas.NewError(schemas.KindValidation, "unknown command %q", name)
		d.record(ctx, inv, name, start, err)
		return nil, err
	}

	params, err := validateParams(spec.Params, raw)
	if err != nil {
		inv.logger.Warn("Command rejected during validation.", zap.Error(err))
		d.record(ctx, inv, name, start, err)
		return nil, err
	}
	inv.params = params

	inv.logger.Info("Executing command.")
	result, err := spec.Handler(ctx, d, inv)
	if err != nil {
		inv.logger.Warn("Command failed.",
			zap.String("error_kind", string(schemas.KindOf(err))),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		d.record(ctx, inv, name, start, err)
		return nil, err
	}

	inv.logger.Info("Command succeeded.", zap.Duration("duration", time.Since(start)))
	d.record(ctx, inv, name, start, nil)
	return result, nil
}

// record writes the audit row when auditing is enabled. Audit failures never
// affect the command outcome.
func (d *Dispatcher) record(ctx context.Context, inv *invocation, name string, start time.Time, cmdErr error) {
	if d.audit == nil {
		return
	}

	rec := InvocationRecord{
		ID:        inv.id,
		Command:   name,
		Succeeded: cmdErr == nil,
		Duration:  time.Since(start),
		StartedAt: start,
	}
	if cmdErr != nil {
		rec.ErrorKind = string(schemas.KindOf(cmdErr))
	}

	if err := d.audit.RecordInvocation(ctx, rec); err != nil {
		inv.logger.Warn("Failed to record invocation audit row.", zap.Error(err))
	}
}

// resolveCookiesPath confines an optional cookie path before any browser
// work. An empty path means the command does not use cookies.
func (d *Dispatcher) resolveCookiesPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	return d.cookies.ResolvePath(path)
}

// runInSession executes op inside a fresh browser session, restoring the jar
// at cookiesPath (already confinement-checked) before the operation when one
// exists on disk.
func (d *Dispatcher) runInSession(ctx context.Context, inv *invocation, cookiesPath string, op func(context.Context, *browser.Session) error) error {
	opts := browser.SessionOptions{
		Headless:         inv.params.Bool("headless"),
		CaptureOnFailure: inv.params.Bool("screenshotOnError"),
		InvocationID:     inv.id,
	}

	return d.launcher.WithSession(ctx, opts, func(ctx context.Context, s *browser.Session) error {
		if cookiesPath != "" {
			jar, found, err := d.cookies.Load(cookiesPath)
			if err != nil {
				return err
			}
			if found {
				if err := s.SetCookies(ctx, jar); err != nil {
					return err
				}
			}
		}
		return op(ctx, s)
	})
}

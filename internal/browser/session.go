// File: internal/browser/session.go
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voidhawk9/autoteller/api/schemas"
	"github.com/voidhawk9/autoteller/internal/config"
)

// Load-completion strategies for Navigate.
const (
	WaitLoad             = "load"
	WaitDOMContentLoaded = "domcontentloaded"
	WaitNetworkIdle      = "networkidle"
)

// Element states accepted by WaitForSelector.
const (
	StateAttached = "attached"
	StateDetached = "detached"
	StateVisible  = "visible"
	StateHidden   = "hidden"
)

// defaultSelectorWait bounds element lookups for commands that do not carry
// an explicit timeout parameter.
const defaultSelectorWait = 30 * time.Second

// Session owns exactly one Chrome process and one tab. It is created at the
// start of a command invocation and destroyed at its end.
type Session struct {
	id     string
	ctx    context.Context
	logger *zap.Logger
	cfg    config.BrowserConfig

	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	closeOnce   sync.Once
}

// ID returns the session's invocation-unique identifier.
func (s *Session) ID() string { return s.id }

// Close tears the tab and the Chrome process down. Safe to call more than
// once; later calls are no-ops.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.logger.Debug("Closing browser session.")
		// chromedp.Cancel waits for the browser to exit cleanly; fall back
		// to the hard context cancels regardless of its outcome.
		if err := chromedp.Cancel(s.ctx); err != nil {
			s.logger.Debug("Graceful browser shutdown reported an error.", zap.Error(err))
		}
		s.cancelTab()
		s.cancelAlloc()
	})
}

// run executes chromedp actions against the session tab, honoring both the
// session lifecycle and the caller's context.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	opCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	return chromedp.Run(opCtx, actions...)
}

// Navigate loads the target URL and blocks until the requested load state.
// The networkidle strategy additionally waits out the configured quiet
// period after the document is ready.
func (s *Session) Navigate(ctx context.Context, targetURL, waitUntil string) error {
	timeout := s.cfg.NavigationTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s.logger.Debug("Navigating.", zap.String("url", targetURL), zap.String("wait_until", waitUntil))

	actions := []chromedp.Action{
		chromedp.Navigate(targetURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if waitUntil == WaitNetworkIdle {
		quiet := s.cfg.QuietPeriod
		if quiet <= 0 {
			quiet = 1500 * time.Millisecond
		}
		actions = append(actions, chromedp.Sleep(quiet))
	}

	if err := s.run(navCtx, actions...); err != nil {
		return schemas.WrapError(schemas.KindNavigation, err, "failed to load %q", targetURL)
	}
	return nil
}

// Click clicks the first element matching the CSS selector.
func (s *Session) Click(ctx context.Context, selector string) error {
	opCtx, cancel := context.WithTimeout(ctx, defaultSelectorWait)
	defer cancel()

	if err := s.run(opCtx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return selectorError(opCtx, err, selector, "click")
	}
	return nil
}

// Type sends text to the first element matching the CSS selector, optionally
// clearing its current value first.
func (s *Session) Type(ctx context.Context, selector, text string, clearFirst bool) error {
	opCtx, cancel := context.WithTimeout(ctx, defaultSelectorWait)
	defer cancel()

	actions := []chromedp.Action{}
	if clearFirst {
		actions = append(actions, chromedp.Clear(selector, chromedp.ByQuery))
	}
	actions = append(actions, chromedp.SendKeys(selector, text, chromedp.ByQuery))

	if err := s.run(opCtx, actions...); err != nil {
		return selectorError(opCtx, err, selector, "type into")
	}
	return nil
}

// WaitForSelector blocks until the element reaches the requested state or
// the timeout expires.
func (s *Session) WaitForSelector(ctx context.Context, selector, state string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = defaultSelectorWait
	}
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var action chromedp.Action
	switch state {
	case StateAttached, "":
		action = chromedp.WaitReady(selector, chromedp.ByQuery)
	case StateVisible:
		action = chromedp.WaitVisible(selector, chromedp.ByQuery)
	case StateHidden:
		action = chromedp.WaitNotVisible(selector, chromedp.ByQuery)
	case StateDetached:
		action = chromedp.WaitNotPresent(selector, chromedp.ByQuery)
	default:
		return schemas.NewError(schemas.KindValidation, "unknown selector state %q", state)
	}

	if err := s.run(opCtx, action); err != nil {
		return selectorError(opCtx, err, selector, "wait for")
	}
	return nil
}

// Text returns the text content of the first element matching the CSS
// selector. A selector matching nothing is an error; an element with no text
// yields the empty string.
func (s *Session) Text(ctx context.Context, selector string) (string, error) {
	opCtx, cancel := context.WithTimeout(ctx, defaultSelectorWait)
	defer cancel()

	// querySelector distinguishes "no element" (null) from "element with no
	// text" (empty string); chromedp.Text cannot make that distinction
	// without blocking until the element appears.
	script := fmt.Sprintf(`
		(() => {
			const node = document.querySelector(%s);
			return node === null ? null : node.textContent;
		})()`, jsonEncode(selector))

	var res json.RawMessage
	err := s.run(opCtx, chromedp.Evaluate(script, &res, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithReturnByValue(true).WithSilent(true)
	}))
	if err != nil {
		return "", schemas.WrapError(schemas.KindInternal, err, "failed to read text of %q", selector)
	}

	if len(res) == 0 || string(res) == "null" {
		return "", schemas.NewError(schemas.KindElementNotFound, "no element matches selector %q", selector)
	}

	var text string
	if err := json.Unmarshal(res, &text); err != nil {
		return "", schemas.WrapError(schemas.KindInternal, err, "unexpected text payload for %q", selector)
	}
	return text, nil
}

// HTML returns the full serialized document of the current page.
func (s *Session) HTML(ctx context.Context) (string, error) {
	var markup string
	if err := s.run(ctx, chromedp.OuterHTML("html", &markup, chromedp.ByQuery)); err != nil {
		return "", schemas.WrapError(schemas.KindInternal, err, "failed to capture page markup")
	}
	return markup, nil
}

// Screenshot captures the page as a PNG. With a selector it captures that
// element only; otherwise fullPage selects between the whole scrollable page
// and the viewport.
func (s *Session) Screenshot(ctx context.Context, fullPage bool, selector string) ([]byte, error) {
	opCtx, cancel := context.WithTimeout(ctx, defaultSelectorWait)
	defer cancel()

	var buf []byte
	var err error
	switch {
	case selector != "":
		err = s.run(opCtx, chromedp.Screenshot(selector, &buf, chromedp.ByQuery))
		if err != nil {
			return nil, selectorError(opCtx, err, selector, "screenshot")
		}
	case fullPage:
		err = s.run(opCtx, chromedp.FullScreenshot(&buf, 90))
	default:
		err = s.run(opCtx, chromedp.CaptureScreenshot(&buf))
	}
	if err != nil {
		return nil, schemas.WrapError(schemas.KindInternal, err, "failed to capture screenshot")
	}
	return buf, nil
}

// Cookies reads every cookie visible to the browser instance.
func (s *Session) Cookies(ctx context.Context) ([]schemas.CookieRecord, error) {
	var records []schemas.CookieRecord
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := network.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		records = make([]schemas.CookieRecord, 0, len(cookies))
		for _, c := range cookies {
			records = append(records, schemas.CookieRecord{
				Name:     c.Name,
				Value:    c.Value,
				Domain:   c.Domain,
				Path:     c.Path,
				Expires:  c.Expires,
				HTTPOnly: c.HTTPOnly,
				Secure:   c.Secure,
				SameSite: string(c.SameSite),
			})
		}
		return nil
	}))
	if err != nil {
		return nil, schemas.WrapError(schemas.KindInternal, err, "failed to read browser cookies")
	}
	return records, nil
}

// SetCookies installs a jar into the browser before navigation.
func (s *Session) SetCookies(ctx context.Context, jar []schemas.CookieRecord) error {
	if len(jar) == 0 {
		return nil
	}

	params := make([]*network.CookieParam, 0, len(jar))
	for _, r := range jar {
		p := &network.CookieParam{
			Name:     r.Name,
			Value:    r.Value,
			Domain:   r.Domain,
			Path:     r.Path,
			HTTPOnly: r.HTTPOnly,
			Secure:   r.Secure,
		}
		if r.SameSite != "" {
			p.SameSite = network.CookieSameSite(r.SameSite)
		}
		// Expires of zero means a session cookie; leave it unset.
		if r.Expires > 0 {
			ts := cdp.TimeSinceEpoch(time.Unix(int64(r.Expires), 0))
			p.Expires = &ts
		}
		params = append(params, p)
	}

	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return network.SetCookies(params).Do(ctx)
	}))
	if err != nil {
		return schemas.WrapError(schemas.KindInternal, err, "failed to install cookie jar")
	}
	return nil
}

// Sleep pauses for the given duration, used for post-interaction settle
// waits. Respects both the caller's and the session's context.
func (s *Session) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	return s.run(ctx, chromedp.Sleep(d))
}

// selectorError maps a failed element operation to the error taxonomy: a
// deadline hit while waiting for the element means it never appeared.
func selectorError(opCtx context.Context, err error, selector, verb string) error {
	if opCtx.Err() == context.DeadlineExceeded {
		return schemas.WrapError(schemas.KindElementNotFound, err,
			"timed out waiting to %s element %q", verb, selector)
	}
	return schemas.WrapError(schemas.KindInternal, err, "failed to %s element %q", verb, selector)
}

// jsonEncode safely encodes a value for injection into a JS snippet.
func jsonEncode(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `""`
	}
	return string(b)
}

func newSessionID() string {
	return uuid.New().String()
}

// File: internal/command/commands.go
package command

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/voidhawk9/autoteller/api/schemas"
	"github.com/voidhawk9/autoteller/internal/browser"
	"github.com/voidhawk9/autoteller/internal/extract"
	"github.com/voidhawk9/autoteller/internal/retry"
	"github.com/voidhawk9/autoteller/internal/totp"
)

// Spec declares one command: its parameter schema and its handler. The
// handler receives fully validated parameters and never sees raw transport
// values.
type Spec struct {
	Name    string
	Params  []ParamSpec
	Handler func(ctx context.Context, d *Dispatcher, inv *invocation) (*schemas.Result, error)
}

// Shared parameter specs. Every browser-backed command accepts headless.
func urlParam() ParamSpec {
	return ParamSpec{Name: "url", Type: TypeString, Required: true, IsURL: true}
}

func headlessParam() ParamSpec {
	return ParamSpec{Name: "headless", Type: TypeBool, Default: true}
}

func waitUntilParam() ParamSpec {
	return ParamSpec{
		Name: "waitUntil", Type: TypeString, Default: browser.WaitLoad,
		Enum: []string{browser.WaitLoad, browser.WaitDOMContentLoaded, browser.WaitNetworkIdle},
	}
}

// catalog returns the full command set. Built once per dispatcher.
func catalog() map[string]*Spec {
	specs := []*Spec{
		screenshotSpec(),
		navigateSpec(),
		clickSpec(),
		typeSpec(),
		waitForSelectorSpec(),
		getTextSpec(),
		generateTOTPSpec(),
		enterMFASpec(),
		saveCookiesSpec(),
		loadCookiesSpec(),
		extractTableSpec(),
	}

	byName := make(map[string]*Spec, len(specs))
	for _, s := range specs {
		byName[s.Name] = s
	}
	return byName
}

func screenshotSpec() *Spec {
	return &Spec{
		Name: "screenshot",
		Params: []ParamSpec{
			urlParam(),
			{Name: "fullPage", Type: TypeBool, Default: true},
			{Name: "selector", Type: TypeString},
			headlessParam(),
			{Name: "cookiesPath", Type: TypeString},
			{Name: "screenshotOnError", Type: TypeBool, Default: false},
			{Name: "retry", Type: TypeBool, Default: false},
		},
		Handler: func(ctx context.Context, d *Dispatcher, inv *invocation) (*schemas.Result, error) {
			cookiesPath, err := d.resolveCookiesPath(inv.params.String("cookiesPath"))
			if err != nil {
				return nil, err
			}

			var shot []byte
			op := func(ctx context.Context) error {
				return d.runInSession(ctx, inv, cookiesPath, func(ctx context.Context, s *browser.Session) error {
					if err := s.Navigate(ctx, inv.params.String("url"), browser.WaitLoad); err != nil {
						return err
					}
					shot, err = s.Screenshot(ctx, inv.params.Bool("fullPage"), inv.params.String("selector"))
					return err
				})
			}

			if inv.params.Bool("retry") {
				err = retry.Do(ctx, d.retryPolicy, inv.logger, op)
			} else {
				err = op(ctx)
			}
			if err != nil {
				return nil, err
			}
			return schemas.BinaryResult("image/png", shot), nil
		},
	}
}

func navigateSpec() *Spec {
	return &Spec{
		Name:   "navigate",
		Params: []ParamSpec{urlParam(), waitUntilParam(), headlessParam()},
		Handler: func(ctx context.Context, d *Dispatcher, inv *invocation) (*schemas.Result, error) {
			target := inv.params.String("url")
			err := d.runInSession(ctx, inv, "", func(ctx context.Context, s *browser.Session) error {
				return s.Navigate(ctx, target, inv.params.String("waitUntil"))
			})
			if err != nil {
				return nil, err
			}
			return schemas.TextResult(fmt.Sprintf("Navigated to %s", target)), nil
		},
	}
}

func clickSpec() *Spec {
	return &Spec{
		Name: "click",
		Params: []ParamSpec{
			urlParam(),
			{Name: "selector", Type: TypeString, Required: true},
			{Name: "waitAfterClick", Type: TypeInt, Default: 1000, NonNegative: true},
			headlessParam(),
		},
		Handler: func(ctx context.Context, d *Dispatcher, inv *invocation) (*schemas.Result, error) {
			selector := inv.params.String("selector")
			err := d.runInSession(ctx, inv, "", func(ctx context.Context, s *browser.Session) error {
				if err := s.Navigate(ctx, inv.params.String("url"), browser.WaitLoad); err != nil {
					return err
				}
				if err := s.Click(ctx, selector); err != nil {
					return err
				}
				return s.Sleep(ctx, inv.params.Millis("waitAfterClick"))
			})
			if err != nil {
				return nil, err
			}
			return schemas.TextResult(fmt.Sprintf("Clicked %s", selector)), nil
		},
	}
}

func typeSpec() *Spec {
	return &Spec{
		Name: "type",
		Params: []ParamSpec{
			urlParam(),
			{Name: "selector", Type: TypeString, Required: true},
			{Name: "text", Type: TypeString, Required: true},
			{Name: "clearFirst", Type: TypeBool, Default: true},
			headlessParam(),
		},
		Handler: func(ctx context.Context, d *Dispatcher, inv *invocation) (*schemas.Result, error) {
			selector := inv.params.String("selector")
			err := d.runInSession(ctx, inv, "", func(ctx context.Context, s *browser.Session) error {
				if err := s.Navigate(ctx, inv.params.String("url"), browser.WaitLoad); err != nil {
					return err
				}
				return s.Type(ctx, selector, inv.params.String("text"), inv.params.Bool("clearFirst"))
			})
			if err != nil {
				return nil, err
			}
			return schemas.TextResult(fmt.Sprintf("Typed into %s", selector)), nil
		},
	}
}

func waitForSelectorSpec() *Spec {
	return &Spec{
		Name: "waitForSelector",
		Params: []ParamSpec{
			urlParam(),
			{Name: "selector", Type: TypeString, Required: true},
			{Name: "timeout", Type: TypeInt, Default: 30000, NonNegative: true},
			{Name: "state", Type: TypeString, Default: browser.StateAttached,
				Enum: []string{browser.StateAttached, browser.StateDetached, browser.StateVisible, browser.StateHidden}},
			headlessParam(),
		},
		Handler: func(ctx context.Context, d *Dispatcher, inv *invocation) (*schemas.Result, error) {
			selector := inv.params.String("selector")
			state := inv.params.String("state")
			err := d.runInSession(ctx, inv, "", func(ctx context.Context, s *browser.Session) error {
				if err := s.Navigate(ctx, inv.params.String("url"), browser.WaitLoad); err != nil {
					return err
				}
				return s.WaitForSelector(ctx, selector, state, inv.params.Millis("timeout"))
			})
			if err != nil {
				return nil, err
			}
			return schemas.TextResult(fmt.Sprintf("Selector %s reached state %s", selector, state)), nil
		},
	}
}

func getTextSpec() *Spec {
	return &Spec{
		Name: "getText",
		Params: []ParamSpec{
			urlParam(),
			{Name: "selector", Type: TypeString, Required: true},
			headlessParam(),
		},
		Handler: func(ctx context.Context, d *Dispatcher, inv *invocation) (*schemas.Result, error) {
			var text string
			err := d.runInSession(ctx, inv, "", func(ctx context.Context, s *browser.Session) error {
				if err := s.Navigate(ctx, inv.params.String("url"), browser.WaitLoad); err != nil {
					return err
				}
				var err error
				text, err = s.Text(ctx, inv.params.String("selector"))
				return err
			})
			if err != nil {
				return nil, err
			}
			return schemas.TextResult(text), nil
		},
	}
}

func totpParams() []ParamSpec {
	return []ParamSpec{
		{Name: "secret", Type: TypeString},
		{Name: "secretEnvVar", Type: TypeString},
	}
}

// totpParameters resolves the secret-or-env pair and the generation knobs
// into a ready Parameters value. Used by generateTOTP and enterMFA.
func totpParameters(p Params) (totp.Parameters, error) {
	source, err := totp.NewSecretSource(p.String("secret"), p.String("secretEnvVar"))
	if err != nil {
		return totp.Parameters{}, err
	}
	// Fail on unresolvable references at the validation boundary, before
	// any browser resource is acquired.
	if _, err := source.Resolve(); err != nil {
		return totp.Parameters{}, err
	}

	algorithm, err := totp.ParseAlgorithm(p.String("algorithm"))
	if err != nil {
		return totp.Parameters{}, err
	}

	digits, err := positiveIntParam(p, "digits", 6)
	if err != nil {
		return totp.Parameters{}, err
	}
	period, err := positiveIntParam(p, "period", 30)
	if err != nil {
		return totp.Parameters{}, err
	}

	return totp.Parameters{Secret: source, Algorithm: algorithm, Digits: digits, Period: period}, nil
}

// positiveIntParam reads an optional positive integer, distinguishing an
// absent parameter (the fallback applies, as for enterMFA which declares no
// generation knobs) from an explicit zero, which is a validation error
// rather than a silent default.
func positiveIntParam(p Params, name string, fallback int) (int, error) {
	v, ok := p[name]
	if !ok {
		return fallback, nil
	}
	n, _ := v.(int)
	if n < 1 {
		return 0, schemas.NewError(schemas.KindValidation,
			"parameter %q must be positive, got %d", name, n)
	}
	return n, nil
}

func generateTOTPSpec() *Spec {
	params := append(totpParams(),
		ParamSpec{Name: "algorithm", Type: TypeString, Default: "SHA1",
			Enum: []string{"SHA1", "SHA256", "SHA512"}},
		ParamSpec{Name: "digits", Type: TypeInt, Default: 6, NonNegative: true},
		ParamSpec{Name: "period", Type: TypeInt, Default: 30, NonNegative: true},
	)
	return &Spec{
		Name:   "generateTOTP",
		Params: params,
		Handler: func(ctx context.Context, d *Dispatcher, inv *invocation) (*schemas.Result, error) {
			tp, err := totpParameters(inv.params)
			if err != nil {
				return nil, err
			}
			code, err := totp.Generate(tp, d.now())
			if err != nil {
				return nil, err
			}
			return schemas.TextResult(code), nil
		},
	}
}

func enterMFASpec() *Spec {
	params := append(totpParams(),
		urlParam(),
		ParamSpec{Name: "selector", Type: TypeString, Required: true},
		ParamSpec{Name: "submitAfter", Type: TypeBool, Default: false},
		ParamSpec{Name: "submitSelector", Type: TypeString},
		ParamSpec{Name: "waitAfterEnter", Type: TypeInt, Default: 1000, NonNegative: true},
		headlessParam(),
	)
	return &Spec{
		Name:   "enterMFA",
		Params: params,
		Handler: func(ctx context.Context, d *Dispatcher, inv *invocation) (*schemas.Result, error) {
			tp, err := totpParameters(inv.params)
			if err != nil {
				return nil, err
			}
			if inv.params.Bool("submitAfter") && strings.TrimSpace(inv.params.String("submitSelector")) == "" {
				return nil, schemas.NewError(schemas.KindValidation,
					"submitAfter requires a submitSelector")
			}

			selector := inv.params.String("selector")
			err = d.runInSession(ctx, inv, "", func(ctx context.Context, s *browser.Session) error {
				if err := s.Navigate(ctx, inv.params.String("url"), browser.WaitLoad); err != nil {
					return err
				}
				// The code is generated after the page is ready so it is as
				// fresh as possible when entered.
				code, err := totp.Generate(tp, d.now())
				if err != nil {
					return err
				}
				if err := s.Type(ctx, selector, code, true); err != nil {
					return err
				}
				if inv.params.Bool("submitAfter") {
					if err := s.Click(ctx, inv.params.String("submitSelector")); err != nil {
						return err
					}
				}
				return s.Sleep(ctx, inv.params.Millis("waitAfterEnter"))
			})
			if err != nil {
				return nil, err
			}
			return schemas.TextResult(fmt.Sprintf("Entered MFA code into %s", selector)), nil
		},
	}
}

func saveCookiesSpec() *Spec {
	return &Spec{
		Name: "saveCookies",
		Params: []ParamSpec{
			urlParam(),
			{Name: "cookiesPath", Type: TypeString, Required: true},
			waitUntilParam(),
			headlessParam(),
		},
		Handler: func(ctx context.Context, d *Dispatcher, inv *invocation) (*schemas.Result, error) {
			cookiesPath, err := d.resolveCookiesPath(inv.params.String("cookiesPath"))
			if err != nil {
				return nil, err
			}

			var count int
			err = d.runInSession(ctx, inv, "", func(ctx context.Context, s *browser.Session) error {
				if err := s.Navigate(ctx, inv.params.String("url"), inv.params.String("waitUntil")); err != nil {
					return err
				}
				jar, err := s.Cookies(ctx)
				if err != nil {
					return err
				}
				count = len(jar)
				return d.cookies.Save(cookiesPath, jar)
			})
			if err != nil {
				return nil, err
			}
			return schemas.TextResult(fmt.Sprintf("Saved %d cookies to %s", count, inv.params.String("cookiesPath"))), nil
		},
	}
}

func loadCookiesSpec() *Spec {
	return &Spec{
		Name: "loadCookies",
		Params: []ParamSpec{
			urlParam(),
			{Name: "cookiesPath", Type: TypeString, Required: true},
			waitUntilParam(),
			headlessParam(),
		},
		Handler: func(ctx context.Context, d *Dispatcher, inv *invocation) (*schemas.Result, error) {
			cookiesPath, err := d.resolveCookiesPath(inv.params.String("cookiesPath"))
			if err != nil {
				return nil, err
			}

			var loaded int
			err = d.runInSession(ctx, inv, "", func(ctx context.Context, s *browser.Session) error {
				jar, found, err := d.cookies.Load(cookiesPath)
				if err != nil {
					return err
				}
				if found {
					loaded = len(jar)
					if err := s.SetCookies(ctx, jar); err != nil {
						return err
					}
				}
				return s.Navigate(ctx, inv.params.String("url"), inv.params.String("waitUntil"))
			})
			if err != nil {
				return nil, err
			}
			if loaded == 0 {
				return schemas.TextResult("No cookie jar found, navigated with a fresh session"), nil
			}
			return schemas.TextResult(fmt.Sprintf("Loaded %d cookies and navigated", loaded)), nil
		},
	}
}

func extractTableSpec() *Spec {
	return &Spec{
		Name: "extractTable",
		Params: []ParamSpec{
			urlParam(),
			{Name: "tableSelector", Type: TypeString, Default: "table"},
			headlessParam(),
			{Name: "cookiesPath", Type: TypeString},
		},
		Handler: func(ctx context.Context, d *Dispatcher, inv *invocation) (*schemas.Result, error) {
			cookiesPath, err := d.resolveCookiesPath(inv.params.String("cookiesPath"))
			if err != nil {
				return nil, err
			}

			var table *schemas.TableResult
			err = d.runInSession(ctx, inv, cookiesPath, func(ctx context.Context, s *browser.Session) error {
				if err := s.Navigate(ctx, inv.params.String("url"), browser.WaitLoad); err != nil {
					return err
				}
				markup, err := s.HTML(ctx)
				if err != nil {
					return err
				}
				doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
				if err != nil {
					return schemas.WrapError(schemas.KindInternal, err, "failed to parse page markup")
				}
				table, err = extract.Table(doc, inv.params.String("tableSelector"))
				return err
			})
			if err != nil {
				return nil, err
			}

			payload, err := json.Marshal(table)
			if err != nil {
				return nil, schemas.WrapError(schemas.KindInternal, err, "failed to serialize table result")
			}
			return schemas.JSONResult(string(payload)), nil
		},
	}
}

// clock is overridable for TOTP tests.
type clock func() time.Time

// File: internal/browser/stealth/stealth.go
package stealth

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

//go:embed evasions.js
var evasionsScript string

// Persona defines the browser characteristics to emulate.
type Persona struct {
	UserAgent string
	Platform  string
	Languages []string
	Timezone  string
	Locale    string
}

// DefaultPersona provides a realistic default browser profile.
var DefaultPersona = Persona{
	UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	Platform:  "Win32",
	Languages: []string{"en-US", "en"},
	Timezone:  "America/New_York",
	Locale:    "en-US",
}

// Apply constructs a sequence of Chrome DevTools Protocol actions to make the
// headless browser appear like a standard, user-operated browser. The script
// injection must happen before the first navigation so it runs on every new
// document.
func Apply(p Persona, logger *zap.Logger) chromedp.Tasks {
	logger.Debug("Applying browser stealth persona.",
		zap.String("user_agent", p.UserAgent),
		zap.String("timezone", p.Timezone),
	)

	return chromedp.Tasks{
		emulation.SetUserAgentOverride(p.UserAgent),

		// AddScriptToEvaluateOnNewDocument returns two values, so it needs an
		// ActionFunc wrapper to satisfy the chromedp.Action interface.
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(evasionsScript).Do(ctx)
			if err != nil {
				return fmt.Errorf("failed to inject evasions script: %w", err)
			}
			return nil
		}),

		emulation.SetTimezoneOverride(p.Timezone),
		emulation.SetLocaleOverride().WithLocale(p.Locale),

		network.SetExtraHTTPHeaders(network.Headers{
			"Accept-Language": acceptLanguage(p.Languages),
		}),
	}
}

// acceptLanguage renders the persona languages as an Accept-Language header
// value with descending quality factors.
func acceptLanguage(languages []string) string {
	if len(languages) == 0 {
		return "en-US,en;q=0.9"
	}
	parts := make([]string, 0, len(languages))
	for i, lang := range languages {
		if i == 0 {
			parts = append(parts, lang)
			continue
		}
		parts = append(parts, fmt.Sprintf("%s;q=0.%d", lang, 9-(i-1)))
	}
	return strings.Join(parts, ",")
}

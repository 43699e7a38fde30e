// File: internal/browser/allocator.go

// Package browser owns the Chrome process lifecycle. Each command invocation
// gets its own exec allocator and tab; sessions are never reused or shared.
package browser

import (
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/voidhawk9/autoteller/internal/config"
)

// AllocatorOptions translates the launch configuration into chromedp exec
// allocator options. The headless flag is a parameter rather than read from
// the config because individual commands may override it per invocation.
func AllocatorOptions(cfg config.BrowserConfig, headless bool) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		// Required on hardened systems where the Chrome sandbox cannot start.
		chromedp.NoSandbox,
		// Recommended for stability in containers and headless environments.
		chromedp.Flag("disable-dev-shm-usage", true),
	)

	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	if headless {
		opts = append(opts, chromedp.Headless)
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}

	if cfg.DisableGPU {
		opts = append(opts, chromedp.DisableGPU)
	}

	// Additional flags from the config file's 'args' slice. Both boolean
	// flags ("no-zygote") and key=value flags ("window-size=1280,800") are
	// accepted, with or without the leading dashes.
	for _, arg := range cfg.Args {
		if !strings.Contains(arg, "=") {
			opts = append(opts, chromedp.Flag(strings.TrimPrefix(arg, "--"), true))
			continue
		}
		parts := strings.SplitN(arg, "=", 2)
		opts = append(opts, chromedp.Flag(strings.TrimPrefix(parts[0], "--"), parts[1]))
	}
	return opts
}

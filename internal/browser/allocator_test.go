// File: internal/browser/allocator_test.go
package browser

import (
	"testing"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"

	"github.com/voidhawk9/autoteller/internal/config"
)

// chromedp options are opaque closures, so these tests check option counts
// rather than flag contents; flag behavior is covered by integration use.
func TestAllocatorOptions(t *testing.T) {
	base := len(chromedp.DefaultExecAllocatorOptions)

	t.Run("DefaultsIncludeStabilityFlags", func(t *testing.T) {
		opts := AllocatorOptions(config.BrowserConfig{}, true)
		// Defaults + NoSandbox + disable-dev-shm-usage + headless.
		assert.Len(t, opts, base+3)
	})

	t.Run("HeadedStillEmitsAnOverride", func(t *testing.T) {
		headless := AllocatorOptions(config.BrowserConfig{}, true)
		headed := AllocatorOptions(config.BrowserConfig{}, false)
		assert.Len(t, headed, len(headless))
	})

	t.Run("ExecPathAndGPU", func(t *testing.T) {
		cfg := config.BrowserConfig{
			ExecPath:   "/usr/bin/chromium",
			DisableGPU: true,
		}
		opts := AllocatorOptions(cfg, true)
		assert.Len(t, opts, base+5)
	})

	t.Run("CustomArgs", func(t *testing.T) {
		cfg := config.BrowserConfig{
			Args: []string{"--no-zygote", "window-size=1280,800"},
		}
		opts := AllocatorOptions(cfg, true)
		assert.Len(t, opts, base+5)
	})
}

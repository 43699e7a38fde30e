// File: internal/browser/stealth/stealth_test.go
package stealth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEvasionsScriptEmbedded(t *testing.T) {
	require.NotEmpty(t, evasionsScript)
	// The webdriver mask is the one evasion every detector checks first.
	assert.Contains(t, evasionsScript, "webdriver")
}

func TestApplyProducesActionSequence(t *testing.T) {
	tasks := Apply(DefaultPersona, zap.NewNop())
	// UA override, script injection, timezone, locale, headers.
	assert.Len(t, tasks, 5)
}

func TestAcceptLanguage(t *testing.T) {
	assert.Equal(t, "en-US,en;q=0.9", acceptLanguage([]string{"en-US", "en"}))
	assert.Equal(t, "de-DE", acceptLanguage([]string{"de-DE"}))
	assert.Equal(t, "en-US,en;q=0.9", acceptLanguage(nil))

	three := acceptLanguage([]string{"en-US", "en", "fr"})
	assert.True(t, strings.HasSuffix(three, "fr;q=0.8"), three)
}

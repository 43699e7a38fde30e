// File: internal/command/dispatcher_test.go
package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voidhawk9/autoteller/api/schemas"
	"github.com/voidhawk9/autoteller/internal/browser"
	"github.com/voidhawk9/autoteller/internal/config"
	"github.com/voidhawk9/autoteller/internal/cookies"
)

// rfcSecret is the ASCII key "12345678901234567890" in base32, as used by
// the RFC 6238 test vectors.
const rfcSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

type recordingAudit struct {
	records []InvocationRecord
}

func (r *recordingAudit) RecordInvocation(_ context.Context, rec InvocationRecord) error {
	r.records = append(r.records, rec)
	return nil
}

func newTestDispatcher(t *testing.T, audit AuditRecorder) *Dispatcher {
	t.Helper()

	cfg := &config.Config{}
	cfg.Cookies.BaseDir = t.TempDir()
	cfg.Artifacts.Dir = t.TempDir()
	cfg.Retry.MaxAttempts = 3
	cfg.Retry.BaseDelay = time.Millisecond

	logger := zap.NewNop()
	store, err := cookies.NewStore(cfg.Cookies.BaseDir, logger)
	require.NoError(t, err)

	return NewDispatcher(cfg, logger, browser.NewLauncher(cfg, logger), store, audit)
}

func TestDispatchUnknownCommand(t *testing.T) {
	d := newTestDispatcher(t, nil)

	_, err := d.Dispatch(context.Background(), "teleport", nil)
	require.Error(t, err)
	assert.True(t, schemas.IsKind(err, schemas.KindValidation))
}

func TestDispatchCatalogIsComplete(t *testing.T) {
	d := newTestDispatcher(t, nil)
	assert.ElementsMatch(t, []string{
		"screenshot", "navigate", "click", "type", "waitForSelector",
		"getText", "generateTOTP", "enterMFA", "saveCookies", "loadCookies",
		"extractTable",
	}, d.Commands())
}

func TestDispatchValidationPrecedesBrowserAcquisition(t *testing.T) {
	// These rejections must come from validation, before any Chrome process
	// is started; the test environment has no browser at all.
	d := newTestDispatcher(t, nil)

	t.Run("BadURL", func(t *testing.T) {
		_, err := d.Dispatch(context.Background(), "navigate", map[string]interface{}{
			"url": "not a url",
		})
		require.Error(t, err)
		assert.True(t, schemas.IsKind(err, schemas.KindValidation))
	})

	t.Run("EscapingCookiePath", func(t *testing.T) {
		_, err := d.Dispatch(context.Background(), "saveCookies", map[string]interface{}{
			"url":         "https://portal.bank.example",
			"cookiesPath": "../../outside.json",
		})
		require.Error(t, err)
		assert.True(t, schemas.IsKind(err, schemas.KindPathViolation))
	})

	t.Run("MFAWithoutSubmitSelector", func(t *testing.T) {
		_, err := d.Dispatch(context.Background(), "enterMFA", map[string]interface{}{
			"url":         "https://portal.bank.example",
			"selector":    "#mfa",
			"secret":      rfcSecret,
			"submitAfter": true,
		})
		require.Error(t, err)
		assert.True(t, schemas.IsKind(err, schemas.KindValidation))
	})

	t.Run("MFAWithoutAnySecret", func(t *testing.T) {
		_, err := d.Dispatch(context.Background(), "enterMFA", map[string]interface{}{
			"url":      "https://portal.bank.example",
			"selector": "#mfa",
		})
		require.Error(t, err)
		assert.True(t, schemas.IsKind(err, schemas.KindTOTPConfig))
	})
}

func TestDispatchGenerateTOTP(t *testing.T) {
	d := newTestDispatcher(t, nil)
	d.now = func() time.Time { return time.Unix(59, 0).UTC() }

	result, err := d.Dispatch(context.Background(), "generateTOTP", map[string]interface{}{
		"secret": rfcSecret,
		"digits": float64(8),
	})
	require.NoError(t, err)
	assert.Equal(t, "94287082", result.Text)
	assert.Equal(t, "text/plain", result.ContentType)
	assert.False(t, result.IsBinary())
}

func TestDispatchGenerateTOTPFromEnv(t *testing.T) {
	t.Setenv("PORTAL_TOTP_SECRET", rfcSecret)

	d := newTestDispatcher(t, nil)
	d.now = func() time.Time { return time.Unix(59, 0).UTC() }

	result, err := d.Dispatch(context.Background(), "generateTOTP", map[string]interface{}{
		"secretEnvVar": "PORTAL_TOTP_SECRET",
		"digits":       float64(8),
	})
	require.NoError(t, err)
	assert.Equal(t, "94287082", result.Text)
}

func TestDispatchGenerateTOTPConfigErrors(t *testing.T) {
	d := newTestDispatcher(t, nil)

	t.Run("NeitherSecretForm", func(t *testing.T) {
		_, err := d.Dispatch(context.Background(), "generateTOTP", map[string]interface{}{})
		require.Error(t, err)
		assert.True(t, schemas.IsKind(err, schemas.KindTOTPConfig))
	})

	t.Run("BothSecretForms", func(t *testing.T) {
		_, err := d.Dispatch(context.Background(), "generateTOTP", map[string]interface{}{
			"secret":       rfcSecret,
			"secretEnvVar": "SOME_VAR",
		})
		require.Error(t, err)
		assert.True(t, schemas.IsKind(err, schemas.KindTOTPConfig))
	})

	t.Run("UnresolvableReference", func(t *testing.T) {
		_, err := d.Dispatch(context.Background(), "generateTOTP", map[string]interface{}{
			"secretEnvVar": "AUTOTELLER_TEST_SURELY_UNSET",
		})
		require.Error(t, err)
		assert.True(t, schemas.IsKind(err, schemas.KindTOTPConfig))
	})

	t.Run("BadAlgorithm", func(t *testing.T) {
		_, err := d.Dispatch(context.Background(), "generateTOTP", map[string]interface{}{
			"secret":    rfcSecret,
			"algorithm": "MD5",
		})
		require.Error(t, err)
		assert.True(t, schemas.IsKind(err, schemas.KindValidation))
	})

	// An explicit zero is not the same as an absent parameter: absence takes
	// the documented default, zero is rejected.
	t.Run("ExplicitZeroDigits", func(t *testing.T) {
		_, err := d.Dispatch(context.Background(), "generateTOTP", map[string]interface{}{
			"secret": rfcSecret,
			"digits": float64(0),
		})
		require.Error(t, err)
		assert.True(t, schemas.IsKind(err, schemas.KindValidation))
	})

	t.Run("ExplicitZeroPeriod", func(t *testing.T) {
		_, err := d.Dispatch(context.Background(), "generateTOTP", map[string]interface{}{
			"secret": rfcSecret,
			"period": float64(0),
		})
		require.Error(t, err)
		assert.True(t, schemas.IsKind(err, schemas.KindValidation))
	})
}

// TestDispatchGenerateTOTPTenDigits exercises the widest supported code: the
// RFC 4226 truncated value for counter 3 is 1726969429, which a 10 digit
// code must return whole.
func TestDispatchGenerateTOTPTenDigits(t *testing.T) {
	d := newTestDispatcher(t, nil)
	d.now = func() time.Time { return time.Unix(90, 0).UTC() }

	result, err := d.Dispatch(context.Background(), "generateTOTP", map[string]interface{}{
		"secret": rfcSecret,
		"digits": float64(10),
	})
	require.NoError(t, err)
	assert.Equal(t, "1726969429", result.Text)
}

func TestDispatchWritesAuditRecords(t *testing.T) {
	audit := &recordingAudit{}
	d := newTestDispatcher(t, audit)
	d.now = func() time.Time { return time.Unix(59, 0).UTC() }

	_, err := d.Dispatch(context.Background(), "generateTOTP", map[string]interface{}{
		"secret": rfcSecret,
	})
	require.NoError(t, err)

	_, err = d.Dispatch(context.Background(), "generateTOTP", map[string]interface{}{})
	require.Error(t, err)

	require.Len(t, audit.records, 2)

	success := audit.records[0]
	assert.Equal(t, "generateTOTP", success.Command)
	assert.True(t, success.Succeeded)
	assert.Empty(t, success.ErrorKind)
	assert.NotEmpty(t, success.ID)

	failure := audit.records[1]
	assert.False(t, failure.Succeeded)
	assert.Equal(t, string(schemas.KindTOTPConfig), failure.ErrorKind)
	assert.NotEqual(t, success.ID, failure.ID, "each invocation gets its own id")
}

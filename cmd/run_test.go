// File: cmd/run_test.go
package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{
		"url=https://portal.bank.example",
		"headless=false",
		"digits=8",
		"text=\"12345\"",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://portal.bank.example", params["url"])
	assert.Equal(t, false, params["headless"])
	// Numbers match the float64 shape of JSON transports.
	assert.Equal(t, float64(8), params["digits"])
	// Quoting forces a numeric-looking value to stay a string.
	assert.Equal(t, "12345", params["text"])
}

func TestParseParamsRejectsMalformedPairs(t *testing.T) {
	for _, bad := range []string{"noequals", "=value"} {
		_, err := parseParams([]string{bad})
		assert.Error(t, err, "pair %q must be rejected", bad)
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newVersionCommand()
	cmd.SetOut(&out)

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), Version)
}

func TestRootCommandTree(t *testing.T) {
	root := NewRootCommand()

	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "run")
	assert.Contains(t, names, "serve")
	assert.Contains(t, names, "version")
}

// File: internal/totp/totp.go

// Package totp implements RFC 6238 time-based one-time passwords for the
// MFA steps of portal logins. Code generation is a pure function of
// (secret, algorithm, digits, period, now), so it is deterministic and
// testable against the published RFC test vectors.
package totp

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"hash"
	"os"
	"strings"
	"time"

	"github.com/voidhawk9/autoteller/api/schemas"
)

// Algorithm selects the HMAC hash used for code generation.
type Algorithm string

const (
	SHA1   Algorithm = "SHA1"
	SHA256 Algorithm = "SHA256"
	SHA512 Algorithm = "SHA512"
)

// ParseAlgorithm maps a caller-supplied name onto a supported Algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "", "SHA1":
		return SHA1, nil
	case "SHA256":
		return SHA256, nil
	case "SHA512":
		return SHA512, nil
	default:
		return "", schemas.NewError(schemas.KindValidation, "unsupported TOTP algorithm %q", name)
	}
}

func (a Algorithm) newHash() func() hash.Hash {
	switch a {
	case SHA256:
		return sha256.New
	case SHA512:
		return sha512.New
	default:
		return sha1.New
	}
}

// SecretSource is the tagged variant behind the "either secret or
// secretEnvVar" parameter pair. It is resolved exactly once at the
// validation boundary; downstream code never re-checks which form was
// supplied.
type SecretSource struct {
	literal string
	envVar  string
}

// LiteralSecret wraps a base32 secret supplied directly.
func LiteralSecret(secret string) SecretSource {
	return SecretSource{literal: secret}
}

// EnvSecret references a secret held in the named environment variable.
func EnvSecret(name string) SecretSource {
	return SecretSource{envVar: name}
}

// NewSecretSource enforces the exactly-one rule for the two parameter forms.
func NewSecretSource(literal, envVar string) (SecretSource, error) {
	hasLiteral := strings.TrimSpace(literal) != ""
	hasEnv := strings.TrimSpace(envVar) != ""
	switch {
	case hasLiteral && hasEnv:
		return SecretSource{}, schemas.NewError(schemas.KindTOTPConfig,
			"supply either a literal secret or a secret environment variable, not both")
	case hasLiteral:
		return LiteralSecret(strings.TrimSpace(literal)), nil
	case hasEnv:
		return EnvSecret(strings.TrimSpace(envVar)), nil
	default:
		return SecretSource{}, schemas.NewError(schemas.KindTOTPConfig,
			"a TOTP secret is required: supply secret or secretEnvVar")
	}
}

// Resolve returns the base32 secret material. An unresolvable environment
// reference fails before any cryptographic work.
func (s SecretSource) Resolve() (string, error) {
	if s.literal != "" {
		return s.literal, nil
	}
	if s.envVar != "" {
		value, ok := os.LookupEnv(s.envVar)
		if !ok || strings.TrimSpace(value) == "" {
			return "", schemas.NewError(schemas.KindTOTPConfig,
				"environment variable %q is not set or empty", s.envVar)
		}
		return strings.TrimSpace(value), nil
	}
	return "", schemas.NewError(schemas.KindTOTPConfig, "no TOTP secret supplied")
}

// Parameters fully determine a generated code together with the timestamp.
type Parameters struct {
	Secret    SecretSource
	Algorithm Algorithm
	Digits    int
	Period    int // seconds
}

// Generate computes the RFC 6238 code for the period window containing now:
// the 8-byte big-endian counter floor(now/period) is HMACed with the decoded
// secret, dynamically truncated to a 31-bit integer, reduced modulo
// 10^digits and left-padded with zeros.
func Generate(params Parameters, now time.Time) (string, error) {
	if params.Digits < 1 || params.Digits > 10 {
		return "", schemas.NewError(schemas.KindValidation, "TOTP digits must be between 1 and 10, got %d", params.Digits)
	}
	if params.Period < 1 {
		return "", schemas.NewError(schemas.KindValidation, "TOTP period must be at least 1 second, got %d", params.Period)
	}

	secret, err := params.Secret.Resolve()
	if err != nil {
		return "", err
	}

	key, err := decodeSecret(secret)
	if err != nil {
		return "", err
	}

	counter := uint64(now.Unix() / int64(params.Period))
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(params.Algorithm.newHash(), key)
	mac.Write(msg[:])
	digest := mac.Sum(nil)

	// Dynamic truncation: the low nibble of the last byte selects a 4-byte
	// window; the top bit is masked off to keep the value a 31-bit integer.
	offset := digest[len(digest)-1] & 0x0f
	value := uint64(binary.BigEndian.Uint32(digest[offset:offset+4]) & 0x7fffffff)

	// 10^10 exceeds uint32, so the modulus is computed in 64 bits.
	mod := uint64(1)
	for i := 0; i < params.Digits; i++ {
		mod *= 10
	}

	return fmt.Sprintf("%0*d", params.Digits, value%mod), nil
}

// decodeSecret accepts base32 with or without padding, in either case, and
// tolerates embedded spaces as produced by some provisioning UIs.
func decodeSecret(secret string) ([]byte, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(secret, " ", ""))
	normalized = strings.TrimRight(normalized, "=")

	key, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(normalized)
	if err != nil {
		return nil, schemas.WrapError(schemas.KindTOTPConfig, err, "secret is not valid base32")
	}
	if len(key) == 0 {
		return nil, schemas.NewError(schemas.KindTOTPConfig, "secret decodes to zero bytes")
	}
	return key, nil
}

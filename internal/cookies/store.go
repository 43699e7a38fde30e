// File: internal/cookies/store.go

// Package cookies persists a session's cookie jar to disk as an ordered
// JSON array of records. Every caller-supplied path is confined to a
// configured base directory before any filesystem access; this is the sole
// defense against path traversal.
package cookies

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/voidhawk9/autoteller/api/schemas"
)

// Store reads and writes cookie jars under a fixed base directory.
type Store struct {
	baseDir string
	log     *zap.Logger
}

// NewStore resolves the base directory to absolute form once at
// construction. The directory itself is created lazily on first save.
func NewStore(baseDir string, logger *zap.Logger) (*Store, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cookie base directory %q: %w", baseDir, err)
	}
	return &Store{
		baseDir: abs,
		log:     logger.Named("cookies"),
	}, nil
}

// BaseDir returns the resolved confinement directory.
func (s *Store) BaseDir() string { return s.baseDir }

// ResolvePath resolves a caller-supplied path against the base directory and
// rejects anything that escapes it. Relative paths are interpreted relative
// to the base directory.
func (s *Store) ResolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", schemas.NewError(schemas.KindValidation, "cookie path must not be empty")
	}

	resolved := path
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(s.baseDir, resolved)
	}
	resolved = filepath.Clean(resolved)

	rel, err := filepath.Rel(s.baseDir, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", schemas.NewError(schemas.KindPathViolation,
			"cookie path %q resolves outside the base directory %q", path, s.baseDir)
	}
	return resolved, nil
}

// Save serializes the jar as a JSON array, creating parent directories as
// needed and overwriting any existing file wholesale.
func (s *Store) Save(path string, jar []schemas.CookieRecord) error {
	resolved, err := s.ResolvePath(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return schemas.WrapError(schemas.KindCookieIO, err, "failed to create cookie directory")
	}

	data, err := json.MarshalIndent(jar, "", "  ")
	if err != nil {
		return schemas.WrapError(schemas.KindCookieIO, err, "failed to serialize cookie jar")
	}

	if err := os.WriteFile(resolved, data, 0o600); err != nil {
		return schemas.WrapError(schemas.KindCookieIO, err, "failed to write cookie jar to %q", resolved)
	}

	s.log.Debug("Cookie jar saved.", zap.String("path", resolved), zap.Int("count", len(jar)))
	return nil
}

// Load reads and parses the jar file. A non-existent file is not an error:
// it means "no cookies yet" and returns found=false with an empty jar. Any
// other I/O or parse failure propagates as a fatal cookie error.
func (s *Store) Load(path string) (jar []schemas.CookieRecord, found bool, err error) {
	resolved, err := s.ResolvePath(path)
	if err != nil {
		return nil, false, err
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			s.log.Debug("Cookie jar absent, starting a fresh session.", zap.String("path", resolved))
			return nil, false, nil
		}
		return nil, false, schemas.WrapError(schemas.KindCookieIO, err, "failed to read cookie jar %q", resolved)
	}

	if err := json.Unmarshal(data, &jar); err != nil {
		return nil, false, schemas.WrapError(schemas.KindCookieIO, err, "failed to parse cookie jar %q", resolved)
	}

	s.log.Debug("Cookie jar loaded.", zap.String("path", resolved), zap.Int("count", len(jar)))
	return jar, true, nil
}

// Package signatures holds the set of known-malicious content hashes.
package signatures

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"warden/internal/logging"
)

// Set is a read-only set of lowercase hex content hashes.
type Set struct {
	known    map[string]string // hash -> malware family (may be empty)
	source   string
	loadedAt time.Time
	mutex    sync.RWMutex
}

// Option configures Load.
type Option func(*loadOptions)

type loadOptions struct {
	logger  *zap.Logger
	keyring string
}

// WithLogger attaches a logger for load diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(o *loadOptions) { o.logger = l }
}

// WithKeyring requires a detached OpenPGP signature next to the source file,
// verified against the armored or binary keyring at path.
func WithKeyring(path string) Option {
	return func(o *loadOptions) { o.keyring = path }
}

// New returns an empty set.
func New() *Set {
	return &Set{known: make(map[string]string)}
}

// FromHashes builds a set from already-loaded hash strings.
func FromHashes(hashes ...string) *Set {
	s := New()
	for _, h := range hashes {
		if h = normalize(h); isHex(h) {
			s.known[h] = ""
		}
	}
	return s
}

// Load reads a CSV signature file with a "hash" column. Any failure yields an
// empty set; hash matching then becomes a no-op.
func Load(path string, opts ...Option) *Set {
	o := loadOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	logger := logging.WithComponent(o.logger, "signatures")

	s := New()
	s.source = path

	if o.keyring != "" {
		if err := VerifyDetached(path, o.keyring); err != nil {
			logger.Warn("Signature file failed authenticity check, hash matching disabled",
				zap.String("path", path), zap.Error(err))
			return s
		}
	}

	f, err := os.Open(path)
	if err != nil {
		logger.Warn("Signature file unavailable, hash matching disabled",
			zap.String("path", path), zap.Error(err))
		return s
	}
	defer f.Close()

	known, err := parseCSV(f)
	if err != nil {
		logger.Warn("Signature file malformed, hash matching disabled",
			zap.String("path", path), zap.Error(err))
		return s
	}

	s.known = known
	s.loadedAt = time.Now()
	logger.Info("Loaded signature set", zap.String("path", path), zap.Int("hashes", len(known)))
	return s
}

func parseCSV(r io.Reader) (map[string]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	hashCol, nameCol := -1, -1
	for i, h := range header {
		switch normalize(strings.TrimPrefix(h, "\ufeff")) {
		case "hash":
			hashCol = i
		case "name", "family", "signature":
			if nameCol < 0 {
				nameCol = i
			}
		}
	}
	if hashCol < 0 {
		return nil, errors.New(`missing "hash" column`)
	}

	known := make(map[string]string)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}
		if hashCol >= len(record) {
			continue
		}
		h := normalize(record[hashCol])
		if !isHex(h) {
			continue
		}
		name := ""
		if nameCol >= 0 && nameCol < len(record) {
			name = strings.TrimSpace(record[nameCol])
		}
		known[h] = name
	}
	return known, nil
}

// Contains reports whether hash is a known-malicious signature.
func (s *Set) Contains(hash string) bool {
	_, ok := s.Lookup(hash)
	return ok
}

// Lookup returns the malware family recorded for hash, if any.
func (s *Set) Lookup(hash string) (string, bool) {
	if s == nil {
		return "", false
	}
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	name, ok := s.known[normalize(hash)]
	return name, ok
}

// Len returns the number of hashes in the set.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.known)
}

// Stats returns a one-line description of the set.
func (s *Set) Stats() string {
	if s == nil || s.Len() == 0 {
		return "Known Bad: 0 (hash matching disabled)"
	}
	return fmt.Sprintf("Known Bad: %d, Source: %s, Loaded: %s",
		s.Len(), s.source, s.loadedAt.Format("2006-01-02 15:04"))
}

func normalize(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

// isHex accepts MD5 length or longer hex digests.
func isHex(h string) bool {
	if len(h) < 32 || len(h)%2 != 0 {
		return false
	}
	for _, c := range h {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"github.com/raglet/raglet/internal/log"
)

// Store is the single live credential slot. It is process-wide state backed
// by a JSON file under the state directory, so a credential set by one
// command (login) is visible to the next (chat) — the terminal equivalent of
// surviving a page reload.
//
// Writes use a temp file + rename under an advisory file lock so concurrent
// raglet processes never observe a torn credential file.
type Store struct {
	mu     sync.RWMutex
	path   string
	cred   *Credential
	loaded bool
	logger log.Logger
}

// NewStore creates a Store backed by the given credential file path.
// The file is loaded lazily on first read.
func NewStore(path string, logger log.Logger) *Store {
	return &Store{path: path, logger: logger}
}

// Set replaces any existing credential and persists it.
func (s *Store) Set(cred Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.write(cred); err != nil {
		return err
	}
	c := cred
	s.cred = &c
	s.loaded = true
	s.logger.Debug("credential stored", "user_id", cred.UserID, "role", cred.Role)
	return nil
}

// Clear removes the credential and its file. Idempotent: clearing an
// anonymous store is not an error.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fl := flock.New(s.lockPath())
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("locking credential file: %w", err)
	}
	defer func() {
		if err := fl.Unlock(); err != nil {
			s.logger.Warn("failed to release credential lock", "error", err)
		}
	}()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing credential file: %w", err)
	}
	s.cred = nil
	s.loaded = true
	s.logger.Debug("credential cleared")
	return nil
}

// Current returns a snapshot of the live credential. The second return is
// false when the store is anonymous. Callers must not retain the snapshot
// across login/logout boundaries.
func (s *Store) Current() (Credential, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		if err := s.read(); err != nil {
			s.logger.Warn("failed to load credential file", "error", err)
		}
		s.loaded = true
	}
	if s.cred == nil || !s.cred.Valid() {
		return Credential{}, false
	}
	return *s.cred, true
}

// CurrentRole returns the live credential's role, or false when anonymous.
func (s *Store) CurrentRole() (Role, bool) {
	cred, ok := s.Current()
	if !ok {
		return "", false
	}
	return cred.Role, true
}

func (s *Store) lockPath() string {
	return s.path + ".lock"
}

// write persists the credential atomically: marshal, write to a temp file in
// the same directory, then rename over the destination while holding the
// advisory lock.
func (s *Store) write(cred Credential) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	fl := flock.New(s.lockPath())
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("locking credential file: %w", err)
	}
	defer func() {
		if err := fl.Unlock(); err != nil {
			s.logger.Warn("failed to release credential lock", "error", err)
		}
	}()

	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("encoding credential: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "credential-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp credential file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after successful rename

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("restricting credential file mode: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing credential file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing credential file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replacing credential file: %w", err)
	}
	return nil
}

// read loads the credential file into memory. A missing file means
// anonymous, not an error.
func (s *Store) read() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.cred = nil
			return nil
		}
		return fmt.Errorf("reading credential file: %w", err)
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		// A corrupt credential file degrades to anonymous rather than
		// wedging every command behind a parse error.
		s.cred = nil
		return fmt.Errorf("decoding credential file: %w", err)
	}
	s.cred = &cred
	return nil
}

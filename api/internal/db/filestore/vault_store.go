package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/zinevault/zinevault/api/internal/core/domain"
)

var (
	ErrVaultLocked  = errors.New("filestore: vault is locked by another process")
	ErrVaultClosed  = errors.New("filestore: vault is closed")
	ErrCorruptVault = errors.New("filestore: vault file is corrupt")
)

// VaultStore keeps the whole vault as one JSON document on disk.
//
// A single writer mutex serializes UpdateAtomically. Readers work from an
// in-memory snapshot that is only swapped after the new document has been
// renamed into place, so Lookup never observes a half-applied update.
type VaultStore struct {
	path   string
	logger *slog.Logger
	lock   *fileLock

	writeMu sync.Mutex
	mu      sync.RWMutex
	state   domain.VaultState
	closed  bool

	writeFile func(path string, data []byte) error
}

// Open loads the vault at path, creating an empty one if the file does not exist yet.
// A corrupt file is reported rather than overwritten.
func Open(path string, logger *slog.Logger) (*VaultStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("filestore: create vault directory: %w", err)
	}

	lock, err := acquireLock(path + ".lock")
	if err != nil {
		return nil, err
	}

	state, err := readState(path)
	if err != nil {
		_ = lock.release()
		return nil, err
	}

	logger.Info("vault opened", slog.String("path", path), slog.Int("records", len(state)))

	return &VaultStore{
		path:      path,
		logger:    logger,
		lock:      lock,
		state:     state,
		writeFile: atomicWrite,
	}, nil
}

func readState(path string) (domain.VaultState, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return domain.VaultState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("filestore: read vault: %w", err)
	}
	if len(data) == 0 {
		return domain.VaultState{}, nil
	}

	state := domain.VaultState{}
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptVault, err)
	}
	return state, nil
}

func (s *VaultStore) Load(ctx context.Context) (domain.VaultState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrVaultClosed
	}
	return s.state.Clone(), nil
}

func (s *VaultStore) Lookup(ctx context.Context, lookupKey []byte) (domain.VaultRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return domain.VaultRecord{}, ErrVaultClosed
	}

	rec, ok := s.state[domain.LookupID(lookupKey)]
	if !ok {
		return domain.VaultRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

func (s *VaultStore) UpdateAtomically(ctx context.Context, fn domain.VaultMutation) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrVaultClosed
	}
	next := s.state.Clone()
	s.mu.RUnlock()

	if err := fn(next); err != nil {
		return err
	}

	// Last point at which the caller can still back out.
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.persist(next); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
	return nil
}

// Save replaces the entire vault with state.
func (s *VaultStore) Save(ctx context.Context, state domain.VaultState) error {
	return s.UpdateAtomically(ctx, func(current domain.VaultState) error {
		for k := range current {
			delete(current, k)
		}
		for k, rec := range state.Clone() {
			current[k] = rec
		}
		return nil
	})
}

func (s *VaultStore) persist(state domain.VaultState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("filestore: encode vault: %w", err)
	}
	if err := s.writeFile(s.path, data); err != nil {
		s.logger.Error("vault save failed", slog.String("path", s.path), slog.Any("error", err))
		return err
	}
	return nil
}

func (s *VaultStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return ErrVaultClosed
	}
	if _, err := os.Stat(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("filestore: vault directory unavailable: %w", err)
	}
	return nil
}

func (s *VaultStore) Close() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.lock.release()
}

// atomicWrite replaces path with data via a synced temp file and rename.
// On any failure the previous file is left untouched.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("filestore: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if err := tmp.Chmod(0o600); err != nil {
		cleanup()
		return fmt.Errorf("filestore: set permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("filestore: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("filestore: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("filestore: close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("filestore: replace vault: %w", err)
	}

	// Persist the rename itself. Not every platform supports syncing a directory.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

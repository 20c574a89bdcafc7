// Package fsstore persists small pieces of state as JSON files on disk.
package fsstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/helpdesk-labs/concierge-core/internal/core/domain"
	"github.com/helpdesk-labs/concierge-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.FingerprintStore = (*FingerprintStore)(nil)

// FingerprintStore keeps source file fingerprints in a single JSON file.
type FingerprintStore struct {
	path string
}

// NewFingerprintStore creates a store writing to the given path.
func NewFingerprintStore(path string) *FingerprintStore {
	return &FingerprintStore{path: path}
}

// Load returns the persisted fingerprints.
// Returns domain.ErrNotFound when no prior store exists.
func (s *FingerprintStore) Load(ctx context.Context) ([]domain.Fingerprint, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read fingerprints: %w", err)
	}

	var fingerprints []domain.Fingerprint
	if err := json.Unmarshal(data, &fingerprints); err != nil {
		return nil, fmt.Errorf("%w: decode fingerprints: %v", domain.ErrParse, err)
	}
	return fingerprints, nil
}

// Save replaces the persisted fingerprints.
// Writes via a temp file and rename so a crash mid-write never leaves
// a truncated store.
func (s *FingerprintStore) Save(ctx context.Context, fingerprints []domain.Fingerprint) error {
	data, err := json.MarshalIndent(fingerprints, "", "  ")
	if err != nil {
		return fmt.Errorf("encode fingerprints: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "fingerprints-*.json")
	if err != nil {
		return fmt.Errorf("create temp store: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write fingerprints: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close store: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace store: %w", err)
	}
	return nil
}

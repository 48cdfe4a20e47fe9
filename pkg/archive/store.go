// Package archive persists override records in a content-addressed store so
// corrections survive server restarts.
package archive

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/zen-systems/triage/pkg/router"
)

const overrideIndex = "overrides.jsonl"

// Ref addresses a stored object.
type Ref struct {
	Kind   string `json:"kind"`
	SHA256 string `json:"sha256"`
}

// indexEntry is one line of an index file.
type indexEntry struct {
	Ref
	RequestID string `json:"request_id"`
}

// Store manages the archive directory.
type Store struct {
	BasePath string

	mu sync.Mutex
}

// NewStore creates a store under basePath, defaulting to ~/.triage/archive.
func NewStore(basePath string) (*Store, error) {
	if basePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		basePath = filepath.Join(home, ".triage", "archive")
	}

	for _, d := range []string{"objects", "indexes"} {
		if err := os.MkdirAll(filepath.Join(basePath, d), 0o700); err != nil {
			return nil, err
		}
	}
	return &Store{BasePath: basePath}, nil
}

// StoreObject writes obj as JSON under its SHA256, sharded by the first two
// hex characters. Storing the same object twice is a no-op.
func (s *Store) StoreObject(obj any, kind string) (Ref, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return Ref{}, err
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	dir := filepath.Join(s.BasePath, "objects", hash[:2])
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return Ref{}, err
	}
	if err := os.WriteFile(filepath.Join(dir, hash+".json"), data, 0o600); err != nil {
		return Ref{}, err
	}
	return Ref{Kind: kind, SHA256: hash}, nil
}

// LoadObject decodes the object at ref into v.
func (s *Store) LoadObject(ref Ref, v any) error {
	if len(ref.SHA256) < 2 {
		return fmt.Errorf("invalid ref %q", ref.SHA256)
	}
	data, err := os.ReadFile(filepath.Join(s.BasePath, "objects", ref.SHA256[:2], ref.SHA256+".json"))
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// AppendOverride stores rec and appends it to the override index.
func (s *Store) AppendOverride(rec router.OverrideRecord) (Ref, error) {
	ref, err := s.StoreObject(rec, "override")
	if err != nil {
		return Ref{}, err
	}

	line, err := json.Marshal(indexEntry{Ref: ref, RequestID: rec.RequestID})
	if err != nil {
		return Ref{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(filepath.Join(s.BasePath, "indexes", overrideIndex), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return Ref{}, err
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return Ref{}, err
	}
	return ref, f.Close()
}

// Overrides returns every archived override in the order it was appended.
func (s *Store) Overrides() ([]router.OverrideRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(filepath.Join(s.BasePath, "indexes", overrideIndex))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []router.OverrideRecord
	scanner := bufio.NewScanner(f)
	for n := 1; scanner.Scan(); n++ {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var entry indexEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", overrideIndex, n, err)
		}
		var rec router.OverrideRecord
		if err := s.LoadObject(entry.Ref, &rec); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", overrideIndex, n, err)
		}
		out = append(out, rec)
	}
	return out, scanner.Err()
}

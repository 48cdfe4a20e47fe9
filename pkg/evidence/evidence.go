// Package evidence writes batch routing records to disk.
package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zen-systems/triage/pkg/crypto"
	"github.com/zen-systems/triage/pkg/schema"
)

// RunRecord captures batch-level metadata.
type RunRecord struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	InputFile  string    `json:"input_file"`
	InputHash  string    `json:"input_hash"`
	Mode       string    `json:"mode"`
	Requests   int       `json:"requests"`
	Failures   int       `json:"failures"`
	Stats      any       `json:"stats,omitempty"`
	Accuracy   any       `json:"accuracy,omitempty"`
}

// DecisionRecord captures how one input line was routed.
type DecisionRecord struct {
	RequestID string           `json:"request_id"`
	Line      int              `json:"line"`
	Text      string           `json:"text"`
	TextHash  string           `json:"text_hash"`
	Response  *schema.Response `json:"response,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// Writer writes a run directory:
//
//	<base>/<run>/run.json
//	<base>/<run>/decisions/<request-id>.json
//
// Directories are 0700 and files 0600. WriteDecision is safe for concurrent
// use with distinct request ids.
type Writer struct {
	baseDir string
	runDir  string
}

// NewWriter creates a new evidence writer rooted at baseDir/runID.
func NewWriter(baseDir, runID string) (*Writer, error) {
	if baseDir == "" {
		return nil, errors.New("base directory is required")
	}
	if sanitizeName(runID) == "" {
		return nil, errors.New("run ID is required")
	}

	runDir := filepath.Join(baseDir, sanitizeName(runID))
	for _, dir := range []string{runDir, filepath.Join(runDir, "decisions")} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, err
		}
		if err := os.Chmod(dir, 0o700); err != nil {
			return nil, err
		}
	}
	return &Writer{baseDir: baseDir, runDir: runDir}, nil
}

// RunDir returns the run directory path.
func (w *Writer) RunDir() string {
	return w.runDir
}

// WriteRun writes run metadata to run.json.
func (w *Writer) WriteRun(record RunRecord) error {
	return writeJSON(filepath.Join(w.runDir, "run.json"), record)
}

// SignRun signs the bytes of run.json and writes run.sig.json beside it.
func (w *Writer) SignRun(s *crypto.Signer) error {
	data, err := os.ReadFile(filepath.Join(w.runDir, "run.json"))
	if err != nil {
		return fmt.Errorf("read run record: %w", err)
	}
	return writeJSON(filepath.Join(w.runDir, "run.sig.json"), s.Sign(data))
}

// WriteDecision writes decisions/<request-id>.json.
func (w *Writer) WriteDecision(record DecisionRecord) error {
	name := sanitizeName(record.RequestID)
	if name == "" {
		return errors.New("request ID is required")
	}
	if record.TextHash == "" {
		record.TextHash = Hash([]byte(record.Text))
	}
	return writeJSON(filepath.Join(w.runDir, "decisions", name+".json"), record)
}

// Hash returns the hex SHA-256 of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// sanitizeName keeps [a-z0-9_-] so ids cannot escape the run directory.
func sanitizeName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	return os.Chmod(path, 0o600)
}

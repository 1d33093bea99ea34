// Package ledger maintains the append-only file of deleted control numbers.
package ledger

import (
	"fmt"
	"os"
	"path/filepath"
)

// Ledger appends control numbers of deleted records to a flat file, one per
// line. Appending is the only mutation; entries are never rewritten or
// deduplicated, so the same identifier may appear more than once across runs.
type Ledger struct {
	path string
}

// New creates a Ledger writing to path. The file and its parent directory
// are created on first append.
func New(path string) *Ledger {
	return &Ledger{path: path}
}

// Path returns the ledger file path.
func (l *Ledger) Path() string { return l.path }

// Append adds one control number to the ledger. The file is opened, appended
// and closed per call; no lock is held between appends.
func (l *Ledger) Append(controlNo string) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("ledger: create dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("ledger: open: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, controlNo); err != nil {
		return fmt.Errorf("ledger: append %s: %w", controlNo, err)
	}
	return nil
}

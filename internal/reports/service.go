// Package reports exposes harvest run outcomes to the operator surfaces
// (HTTP API and MCP tools).
package reports

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/starford/raido/internal/index"
	"github.com/starford/raido/internal/pipeline"
)

// Runner triggers a harvest run. Implemented by *pipeline.Pipeline.
type Runner interface {
	Run(ctx context.Context) (*pipeline.Summary, error)
}

// Service coordinates run-index queries, ledger reads, and run triggers.
type Service struct {
	db          index.RunIndex
	deletesFile string
	runner      Runner
}

// NewService creates a reports service. runner may be nil for read-only use.
func NewService(db index.RunIndex, deletesFile string, runner Runner) *Service {
	return &Service{db: db, deletesFile: deletesFile, runner: runner}
}

// ListBatches returns batch outcomes newest first, plus the total count.
func (s *Service) ListBatches(_ context.Context, limit, offset int) ([]index.BatchRow, int, error) {
	return s.db.ListBatches(limit, offset)
}

// GetBatch returns one batch outcome by name.
func (s *Service) GetBatch(_ context.Context, name string) (*index.BatchRow, error) {
	return s.db.GetBatch(name)
}

// Quarantine returns the most recent quarantine events.
func (s *Service) Quarantine(_ context.Context, limit int) ([]index.QuarantineRow, error) {
	return s.db.ListQuarantine(limit)
}

// RecentDeletions returns the last limit control numbers appended to the
// deletion ledger, oldest first. A missing ledger file means no deletions
// have been recorded yet.
func (s *Service) RecentDeletions(_ context.Context, limit int) ([]string, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	data, err := os.ReadFile(s.deletesFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reports: read ledger: %w", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return nil, nil
	}
	if len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	return lines, nil
}

// TriggerRun starts a harvest run and waits for it to finish.
func (s *Service) TriggerRun(ctx context.Context) (*pipeline.Summary, error) {
	if s.runner == nil {
		return nil, fmt.Errorf("reports: no runner configured")
	}
	return s.runner.Run(ctx)
}

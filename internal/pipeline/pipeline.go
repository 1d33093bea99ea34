// Package pipeline drives one harvest cycle end to end: expand downloaded
// archives into batch directories, assemble each batch into a collection
// document, and record the outcomes.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/batch"
	"github.com/starford/raido/internal/expand"
	"github.com/starford/raido/internal/index"
	"github.com/starford/raido/internal/ledger"
	"github.com/starford/raido/internal/quarantine"
)

// Config holds the resolved paths the pipeline operates on.
type Config struct {
	Inbox       string // where downloaded archives land
	WorkDir     string // where archives are expanded into batch dirs
	OutputDir   string // where collection documents are written
	ErrorDir    string // quarantine area
	DeletesFile string // deletion ledger path
}

// Summary aggregates one pipeline run.
type Summary struct {
	Archives    int            `json:"archives"`
	Batches     int            `json:"batches"`
	Written     int            `json:"written"`
	Deleted     int            `json:"deleted"`
	Quarantined int            `json:"quarantined"`
	Reports     []batch.Report `json:"reports,omitempty"`
}

// Pipeline processes harvest archives synchronously: one archive, then one
// batch, then one file at a time. Concurrent Run calls are rejected rather
// than queued.
type Pipeline struct {
	cfg    Config
	sink   *quarantine.Sink
	asm    *batch.Assembler
	db     index.RunIndex
	logger *slog.Logger
	notify batch.EventFunc

	mu       sync.Mutex
	curBatch string
}

// New wires a Pipeline. db and notify may be nil.
func New(cfg Config, db index.RunIndex, logger *slog.Logger, notify batch.EventFunc) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		cfg:    cfg,
		sink:   quarantine.NewSink(cfg.ErrorDir, logger),
		db:     db,
		logger: logger,
		notify: notify,
	}
	p.asm = batch.NewAssembler(cfg.OutputDir, ledger.New(cfg.DeletesFile), p.sink, logger, p.onEvent)
	return p
}

// Run executes one full harvest cycle. Per-archive and per-file failures
// are quarantined and never abort the run; only IO errors the pipeline has
// no answer for (quarantine itself failing, output writes failing) do.
// A second Run while one is in flight returns apperr.ErrRunBusy.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	if !p.mu.TryLock() {
		return nil, apperr.ErrRunBusy
	}
	defer p.mu.Unlock()

	summary := &Summary{}

	archives, err := batch.DiscoverArchives(p.cfg.Inbox)
	if err != nil {
		return nil, err
	}
	for _, archive := range archives {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		dest, err := expand.Expand(archive, p.cfg.WorkDir)
		if err != nil {
			stored, qErr := p.sink.Move(err, archive)
			if qErr != nil {
				return summary, qErr
			}
			p.recordQuarantine("", stored, err)
			p.event("archive.quarantined", stored)
			continue
		}
		summary.Archives++
		p.logger.Debug("archive expanded",
			slog.String("archive", archive),
			slog.String("dest", dest))
	}

	dirs, err := batch.Discover(p.cfg.WorkDir)
	if err != nil {
		return summary, err
	}
	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		report, err := p.processBatch(dir)
		if err != nil {
			return summary, err
		}
		summary.Batches++
		summary.Written += report.Written
		summary.Deleted += report.Deleted
		summary.Quarantined += report.Quarantined
		summary.Reports = append(summary.Reports, *report)
	}

	p.logger.Info("harvest run completed",
		slog.Int("archives", summary.Archives),
		slog.Int("batches", summary.Batches),
		slog.Int("written", summary.Written),
		slog.Int("deleted", summary.Deleted),
		slog.Int("quarantined", summary.Quarantined))
	return summary, nil
}

func (p *Pipeline) processBatch(dir string) (*batch.Report, error) {
	p.curBatch = batchName(dir)
	defer func() { p.curBatch = "" }()

	p.event("batch.started", p.curBatch)
	report, err := p.asm.ProcessBatch(dir)
	if err != nil {
		return nil, err
	}
	if p.db != nil {
		if err := p.db.RecordBatch(index.BatchRow{
			Name:           report.Batch,
			OutputPath:     report.OutputPath,
			OutputChecksum: report.OutputChecksum,
			Written:        report.Written,
			Deleted:        report.Deleted,
			Quarantined:    report.Quarantined,
			CompletedAt:    report.CompletedAt,
		}); err != nil {
			return nil, err
		}
	}
	p.event("batch.completed", report.Batch)
	return report, nil
}

// onEvent fans assembler progress out to the run index and the notifier.
func (p *Pipeline) onEvent(kind, detail string) {
	if kind == "record.quarantined" {
		p.recordQuarantine(p.curBatch, detail, nil)
	}
	p.event(kind, detail)
}

func (p *Pipeline) recordQuarantine(batchName, storedPath string, cause error) {
	if p.db == nil {
		return
	}
	reason := "parse failure"
	if cause != nil {
		reason = cause.Error()
	}
	if err := p.db.RecordQuarantine(index.QuarantineRow{
		Batch:      batchName,
		StoredPath: storedPath,
		Reason:     reason,
		OccurredAt: time.Now(),
	}); err != nil {
		p.logger.Warn("record quarantine event failed", slog.String("error", err.Error()))
	}
}

func (p *Pipeline) event(kind, detail string) {
	if p.notify != nil {
		p.notify(kind, detail)
	}
}

func batchName(dir string) string {
	return filepath.Base(dir)
}

// Dirs returns every directory the pipeline needs to exist up front.
func (c Config) Dirs() []string {
	return []string{c.Inbox, c.WorkDir, c.OutputDir, c.ErrorDir}
}

// Validate rejects a config with missing paths.
func (c Config) Validate() error {
	for name, v := range map[string]string{
		"inbox": c.Inbox, "work dir": c.WorkDir, "output dir": c.OutputDir,
		"error dir": c.ErrorDir, "deletes file": c.DeletesFile,
	} {
		if v == "" {
			return fmt.Errorf("pipeline: %s not configured", name)
		}
	}
	return nil
}

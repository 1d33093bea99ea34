// Package batch turns a directory of envelope files into a single MARC
// collection document, routing deletions to the ledger and unparseable
// input to quarantine.
package batch

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/starford/raido/internal/checksum"
	"github.com/starford/raido/internal/ledger"
	"github.com/starford/raido/internal/oai"
	"github.com/starford/raido/internal/quarantine"
)

// OutputExtension is the suffix of assembled collection documents.
const OutputExtension = ".mrx"

// EventFunc is called as the assembler makes progress. kind is one of
// "record.written", "record.deleted", "record.quarantined"; detail is the
// control number or file path.
type EventFunc func(kind, detail string)

// Report summarizes one assembled batch.
type Report struct {
	Batch          string    `json:"batch"`
	OutputPath     string    `json:"output_path,omitempty"`
	OutputChecksum string    `json:"output_checksum,omitempty"`
	Written        int       `json:"written"`
	Deleted        int       `json:"deleted"`
	Quarantined    int       `json:"quarantined"`
	CompletedAt    time.Time `json:"completed_at"`
}

// Assembler processes unpacked batch directories one at a time.
type Assembler struct {
	outDir string
	led    *ledger.Ledger
	sink   *quarantine.Sink
	logger *slog.Logger
	notify EventFunc
}

// NewAssembler creates an Assembler writing collection documents to outDir.
// notify may be nil.
func NewAssembler(outDir string, led *ledger.Ledger, sink *quarantine.Sink, logger *slog.Logger, notify EventFunc) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{outDir: outDir, led: led, sink: sink, logger: logger, notify: notify}
}

type parsedFile struct {
	path string
	rec  *oai.Record
}

// ProcessBatch assembles one batch directory into <outDir>/<batch>.mrx.
//
// Every file is parsed first; files that fail to parse are quarantined and
// excluded without aborting the batch. Parsed records are then ordered by
// their last-modified timestamp (file-name order breaking ties, so exports
// with chronological names keep their relative order) and written into one
// collection document. Deleted records go to the ledger instead of the
// document. Consumed source files are removed, and the batch directory is
// removed once every file has been consumed or quarantined.
//
// An empty batch produces no output document; the directory is still
// removed. The returned error is reserved for IO failures the batch cannot
// absorb (quarantine itself failing, output or ledger writes failing).
func (a *Assembler) ProcessBatch(dir string) (*Report, error) {
	name := filepath.Base(dir)
	report := &Report{Batch: name}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("batch %s: list: %w", name, err)
	}

	var files []string
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if e.IsDir() {
			// Batches are flat; a stray subdirectory would survive the
			// sweep below and block the dir removal, wedging the run.
			dest, qErr := a.sink.Move(fmt.Errorf("unexpected directory in batch %s", name), path)
			if qErr != nil {
				return nil, qErr
			}
			report.Quarantined++
			a.event("record.quarantined", dest)
			continue
		}
		files = append(files, path)
	}

	if len(files) == 0 {
		if err := os.Remove(dir); err != nil {
			return nil, fmt.Errorf("batch %s: remove empty dir: %w", name, err)
		}
		report.CompletedAt = time.Now()
		a.logger.Info("empty batch removed", slog.String("batch", name))
		return report, nil
	}

	// ReadDir returns names in ascending order already; parse in that order
	// so quarantine entries appear in a predictable sequence.
	var parsed []parsedFile
	for _, path := range files {
		rec, err := oai.ReadFile(path)
		if err != nil {
			dest, qErr := a.sink.Move(err, path)
			if qErr != nil {
				return nil, qErr
			}
			report.Quarantined++
			a.event("record.quarantined", dest)
			continue
		}
		parsed = append(parsed, parsedFile{path: path, rec: rec})
	}

	sort.SliceStable(parsed, func(i, j int) bool {
		return parsed[i].rec.LastMod.Before(parsed[j].rec.LastMod)
	})

	outPath, err := a.writeCollection(name, parsed, report)
	if err != nil {
		return nil, err
	}
	report.OutputPath = outPath

	sum, err := checksum.SumFile(outPath)
	if err != nil {
		return nil, err
	}
	report.OutputChecksum = sum

	if err := os.Remove(dir); err != nil {
		return nil, fmt.Errorf("batch %s: remove dir: %w", name, err)
	}
	report.CompletedAt = time.Now()

	a.logger.Info("batch assembled",
		slog.String("batch", name),
		slog.String("output", outPath),
		slog.Int("written", report.Written),
		slog.Int("deleted", report.Deleted),
		slog.Int("quarantined", report.Quarantined))
	return report, nil
}

func (a *Assembler) writeCollection(name string, parsed []parsedFile, report *Report) (string, error) {
	if err := os.MkdirAll(a.outDir, 0o755); err != nil {
		return "", fmt.Errorf("batch %s: create output dir: %w", name, err)
	}
	outPath := filepath.Join(a.outDir, name+OutputExtension)

	f, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("batch %s: create output: %w", name, err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "<collection xmlns=%q>", oai.MarcNamespace); err != nil {
		return "", fmt.Errorf("batch %s: write output: %w", name, err)
	}

	for _, p := range parsed {
		switch p.rec.Status {
		case oai.StatusDeleted:
			if err := a.led.Append(p.rec.ControlNo); err != nil {
				return "", err
			}
			report.Deleted++
			a.logger.Info("record deleted",
				slog.String("control_no", p.rec.ControlNo),
				slog.String("batch", name))
			a.event("record.deleted", p.rec.ControlNo)
		default:
			if _, err := f.WriteString(p.rec.Payload); err != nil {
				return "", fmt.Errorf("batch %s: write record %s: %w", name, p.rec.ControlNo, err)
			}
			report.Written++
			a.logger.Debug("record written",
				slog.String("control_no", p.rec.ControlNo),
				slog.String("output", outPath))
			a.event("record.written", p.rec.ControlNo)
		}
		if err := os.Remove(p.path); err != nil {
			return "", fmt.Errorf("batch %s: remove consumed file: %w", name, err)
		}
	}

	if _, err := f.WriteString("</collection>"); err != nil {
		return "", fmt.Errorf("batch %s: write output: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("batch %s: close output: %w", name, err)
	}
	return outPath, nil
}

func (a *Assembler) event(kind, detail string) {
	if a.notify != nil {
		a.notify(kind, detail)
	}
}

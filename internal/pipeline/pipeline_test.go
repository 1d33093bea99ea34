package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/testutil"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	root := t.TempDir()
	cfg := Config{
		Inbox:       filepath.Join(root, "inbox"),
		WorkDir:     filepath.Join(root, "work"),
		OutputDir:   filepath.Join(root, "final"),
		ErrorDir:    filepath.Join(root, "errs"),
		DeletesFile: filepath.Join(root, "deletes.txt"),
	}
	for _, d := range cfg.Dirs() {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return cfg
}

func TestRun_EndToEnd(t *testing.T) {
	cfg := testConfig(t)
	db := testutil.TestDB(t)

	testutil.WriteArchive(t, cfg.Inbox, "primo.20130228.0.tar.gz", map[string]string{
		"export.01.xml": testutil.EnvelopeXML(testutil.Envelope{
			ControlNo: "100180", Datestamp: "2013-02-28T10:00:02Z", Title: "Alpha",
		}),
		"export.02.xml": testutil.EnvelopeXML(testutil.Envelope{
			ControlNo: "100181", Datestamp: "2013-02-28T10:00:03Z", Status: "deleted",
		}),
	})
	testutil.WriteArchive(t, cfg.Inbox, "primo.20130301.0.tar.gz", map[string]string{
		"export.01.xml": testutil.EnvelopeXML(testutil.Envelope{
			ControlNo: "100182", Datestamp: "2013-03-01T09:00:00Z", Title: "Beta",
		}),
	})

	var events []string
	p := New(cfg, db, testutil.Logger(), func(kind, _ string) { events = append(events, kind) })

	summary, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Archives != 2 || summary.Batches != 2 {
		t.Errorf("summary = %+v", summary)
	}
	if summary.Written != 2 || summary.Deleted != 1 {
		t.Errorf("summary counts = %+v", summary)
	}

	// Older batch assembled first.
	if len(summary.Reports) != 2 || summary.Reports[0].Batch != "primo.20130228.0" {
		t.Errorf("reports = %+v", summary.Reports)
	}

	first, err := os.ReadFile(filepath.Join(cfg.OutputDir, "primo.20130228.0.mrx"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(first), "Alpha") || strings.Contains(string(first), "100181</controlfield>") {
		t.Errorf("first collection = %q", first)
	}
	if _, err := os.Stat(filepath.Join(cfg.OutputDir, "primo.20130301.0.mrx")); err != nil {
		t.Error("second collection missing")
	}

	ids, err := os.ReadFile(cfg.DeletesFile)
	if err != nil {
		t.Fatal(err)
	}
	if string(ids) != "100181\n" {
		t.Errorf("ledger = %q", ids)
	}

	// Inbox and work dir fully consumed.
	if entries, _ := os.ReadDir(cfg.Inbox); len(entries) != 0 {
		t.Error("inbox should be empty after the run")
	}
	if entries, _ := os.ReadDir(cfg.WorkDir); len(entries) != 0 {
		t.Error("work dir should be empty after the run")
	}

	// Outcomes recorded.
	rows, total, err := db.ListBatches(10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || len(rows) != 2 {
		t.Errorf("indexed batches = %d", total)
	}

	started, completed := 0, 0
	for _, e := range events {
		switch e {
		case "batch.started":
			started++
		case "batch.completed":
			completed++
		}
	}
	if started != 2 || completed != 2 {
		t.Errorf("batch events: started=%d completed=%d", started, completed)
	}
}

func TestRun_CorruptArchiveQuarantined(t *testing.T) {
	cfg := testConfig(t)
	db := testutil.TestDB(t)

	if err := os.WriteFile(filepath.Join(cfg.Inbox, "broken.tar.gz"), []byte("junk"), 0o644); err != nil {
		t.Fatal(err)
	}
	testutil.WriteArchive(t, cfg.Inbox, "good.tar.gz", map[string]string{
		"a.xml": testutil.EnvelopeXML(testutil.Envelope{ControlNo: "1", Datestamp: "2013-03-01"}),
	})

	p := New(cfg, db, testutil.Logger(), nil)
	summary, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("corrupt archive must not abort the run: %v", err)
	}
	if summary.Archives != 1 || summary.Batches != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if _, err := os.Stat(filepath.Join(cfg.ErrorDir, "broken.tar.gz")); err != nil {
		t.Error("corrupt archive should be quarantined")
	}
	rows, err := db.ListQuarantine(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("quarantine rows = %d, want 1", len(rows))
	}
	if rows[0].Batch != "" {
		t.Errorf("archive quarantine should carry no batch, got %q", rows[0].Batch)
	}
}

func TestRun_StraySubdirectoryDoesNotStarveLaterBatches(t *testing.T) {
	cfg := testConfig(t)
	db := testutil.TestDB(t)

	// A leftover batch dir with an unexpected subdirectory, as a crashed or
	// foreign producer might leave behind, plus a healthy later batch.
	dirty := filepath.Join(cfg.WorkDir, "a.batch")
	if err := os.MkdirAll(filepath.Join(dirty, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}
	testutil.WriteEnvelope(t, dirty, "good.xml", testutil.Envelope{
		ControlNo: "1", Datestamp: "2013-03-01T00:00:00Z", Title: "Kept",
	})
	healthy := filepath.Join(cfg.WorkDir, "b.batch")
	if err := os.MkdirAll(healthy, 0o755); err != nil {
		t.Fatal(err)
	}
	testutil.WriteEnvelope(t, healthy, "only.xml", testutil.Envelope{
		ControlNo: "2", Datestamp: "2013-03-02T00:00:00Z", Title: "Later",
	})

	p := New(cfg, db, testutil.Logger(), nil)
	summary, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("stray subdirectory must not abort the run: %v", err)
	}
	if summary.Batches != 2 || summary.Written != 2 || summary.Quarantined != 1 {
		t.Errorf("summary = %+v", summary)
	}
	for _, name := range []string{"a.batch.mrx", "b.batch.mrx"} {
		if _, err := os.Stat(filepath.Join(cfg.OutputDir, name)); err != nil {
			t.Errorf("collection %s missing", name)
		}
	}
	if _, err := os.Stat(dirty); !os.IsNotExist(err) {
		t.Error("dirty batch dir should still be removed")
	}
	if _, err := os.Stat(filepath.Join(cfg.ErrorDir, "nested")); err != nil {
		t.Error("stray subdirectory should be quarantined")
	}
}

func TestRun_QuarantineRowCarriesBatch(t *testing.T) {
	cfg := testConfig(t)
	db := testutil.TestDB(t)

	testutil.WriteArchive(t, cfg.Inbox, "b1.tar.gz", map[string]string{
		"bad.xml":  "<OAI-PMH><broken",
		"good.xml": testutil.EnvelopeXML(testutil.Envelope{ControlNo: "1", Datestamp: "2013-03-01"}),
	})

	p := New(cfg, db, testutil.Logger(), nil)
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	rows, err := db.ListQuarantine(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Batch != "b1" {
		t.Errorf("rows = %+v", rows)
	}
}

func TestRun_Busy(t *testing.T) {
	cfg := testConfig(t)
	p := New(cfg, nil, testutil.Logger(), nil)

	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.Run(context.Background())
	if !errors.Is(err, apperr.ErrRunBusy) {
		t.Fatalf("err = %v, want ErrRunBusy", err)
	}
}

func TestRun_EmptyInbox(t *testing.T) {
	cfg := testConfig(t)
	p := New(cfg, nil, testutil.Logger(), nil)

	summary, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Archives != 0 || summary.Batches != 0 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestWatch_TriggersRunOnArrival(t *testing.T) {
	cfg := testConfig(t)
	p := New(cfg, nil, testutil.Logger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = p.Watch(ctx, 50*time.Millisecond)
		close(done)
	}()

	// Let the watcher attach before dropping the archive.
	time.Sleep(100 * time.Millisecond)
	testutil.WriteArchive(t, cfg.Inbox, "w.tar.gz", map[string]string{
		"a.xml": testutil.EnvelopeXML(testutil.Envelope{ControlNo: "9", Datestamp: "2013-03-02"}),
	})

	deadline := time.After(5 * time.Second)
	out := filepath.Join(cfg.OutputDir, "w.mrx")
	for {
		if _, err := os.Stat(out); err == nil {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for watcher-triggered run")
		case <-time.After(20 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop on cancel")
	}
}

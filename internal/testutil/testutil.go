// Package testutil provides shared test helpers for building envelope files
// and harvest directory layouts.
package testutil

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/raido/internal/index"
)

// Logger returns a logger that discards all output.
func Logger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// TestDB creates a temporary run-report database that is cleaned up with
// the test.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "raido-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Envelope describes one test envelope file.
type Envelope struct {
	ControlNo string
	Datestamp string // e.g. "2013-02-28T10:00:02Z"
	Status    string // empty for no status attribute
	Title     string
}

// EnvelopeXML renders the envelope as a complete export file.
func EnvelopeXML(env Envelope) string {
	statusAttr := ""
	if env.Status != "" {
		statusAttr = fmt.Sprintf(" status=%q", env.Status)
	}
	title := env.Title
	if title == "" {
		title = "Untitled"
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<OAI-PMH>
  <ListRecords>
    <record>
      <header%s>
        <identifier>%s</identifier>
        <datestamp>%s</datestamp>
      </header>
      <metadata>
        <record xmlns="http://www.loc.gov/MARC21/slim">
          <controlfield tag="001">%s</controlfield>
          <datafield tag="245" ind1="1" ind2="0">
            <subfield code="a">%s</subfield>
          </datafield>
        </record>
      </metadata>
    </record>
  </ListRecords>
</OAI-PMH>`, statusAttr, env.ControlNo, env.Datestamp, env.ControlNo, title)
}

// WriteEnvelope writes a well-formed envelope file into dir and returns its
// path.
func WriteEnvelope(t *testing.T, dir, name string, env Envelope) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(EnvelopeXML(env)), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// WriteArchive writes a tar.gz archive of the given members into dir and
// returns its path.
func WriteArchive(t *testing.T, dir, name string, members map[string]string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	for member, content := range members {
		if err := tw.WriteHeader(&tar.Header{
			Name:     member,
			Mode:     0o644,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
		}); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

// WriteMalformed writes a file that no envelope parser will accept.
func WriteMalformed(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("<OAI-PMH><broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

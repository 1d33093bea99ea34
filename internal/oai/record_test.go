package oai

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleEnvelope = `<?xml version="1.0" encoding="UTF-8"?>
<OAI-PMH>
  <ListRecords>
    <record>
      <header%s>
        <identifier>100180</identifier>
        <datestamp>2013-02-28T10:00:02Z</datestamp>
      </header>
      <metadata>
        <record xmlns="http://www.loc.gov/MARC21/slim">
          <leader>00000nam a2200000 a 4500</leader>
          <controlfield tag="001">100180</controlfield>
          <datafield tag="245" ind1="1" ind2="0">
            <subfield code="a">A title</subfield>
          </datafield>
        </record>
      </metadata>
    </record>
  </ListRecords>
</OAI-PMH>`

func writeEnvelope(t *testing.T, dir, name, headerAttrs string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	content := strings.Replace(sampleEnvelope, "%s", headerAttrs, 1)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadFile_CreateUpdate(t *testing.T) {
	path := writeEnvelope(t, t.TempDir(), "r1.xml", "")

	rec, err := ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.ControlNo != "100180" {
		t.Errorf("control no = %q, want %q", rec.ControlNo, "100180")
	}
	if rec.Status != StatusCreateUpdate {
		t.Errorf("status = %q, want %q", rec.Status, StatusCreateUpdate)
	}
	want := time.Date(2013, 2, 28, 10, 0, 2, 0, time.UTC)
	if !rec.LastMod.Equal(want) {
		t.Errorf("last mod = %v, want %v", rec.LastMod, want)
	}
	if !strings.HasPrefix(rec.Payload, "<record>") {
		t.Errorf("payload should open with a bare record element, got %q", rec.Payload[:30])
	}
	if strings.Contains(rec.Payload, "xmlns=") {
		t.Errorf("payload retains namespace declaration: %q", rec.Payload)
	}
	if strings.Contains(rec.Payload, "<?") {
		t.Errorf("payload retains processing instruction: %q", rec.Payload)
	}
	if !strings.Contains(rec.Payload, `<subfield code="a">A title</subfield>`) {
		t.Errorf("payload lost content: %q", rec.Payload)
	}
}

func TestReadFile_DeletedStatus(t *testing.T) {
	path := writeEnvelope(t, t.TempDir(), "r2.xml", ` status="deleted"`)

	rec, err := ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Status != StatusDeleted {
		t.Errorf("status = %q, want %q", rec.Status, StatusDeleted)
	}
}

func TestReadFile_UnknownStatusDefaults(t *testing.T) {
	path := writeEnvelope(t, t.TempDir(), "r3.xml", ` status="bogus"`)

	rec, err := ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Status != StatusCreateUpdate {
		t.Errorf("status = %q, want %q", rec.Status, StatusCreateUpdate)
	}
}

func TestReadFile_Malformed(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"not xml", "this is not xml"},
		{"no header", `<OAI-PMH><ListRecords><record/></ListRecords></OAI-PMH>`},
		{"no identifier", `<OAI-PMH><ListRecords><record><header><datestamp>2013-02-28</datestamp></header><metadata><r/></metadata></record></ListRecords></OAI-PMH>`},
		{"no datestamp", `<OAI-PMH><ListRecords><record><header><identifier>1</identifier></header><metadata><r/></metadata></record></ListRecords></OAI-PMH>`},
		{"bad datestamp", `<OAI-PMH><ListRecords><record><header><identifier>1</identifier><datestamp>never</datestamp></header><metadata><r/></metadata></record></ListRecords></OAI-PMH>`},
		{"empty metadata", `<OAI-PMH><ListRecords><record><header><identifier>1</identifier><datestamp>2013-02-28</datestamp></header><metadata/></record></ListRecords></OAI-PMH>`},
		{"two payloads", `<OAI-PMH><ListRecords><record><header><identifier>1</identifier><datestamp>2013-02-28</datestamp></header><metadata><a/><b/></metadata></record></ListRecords></OAI-PMH>`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.xml")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := ReadFile(path)
			if err == nil {
				t.Fatal("expected error")
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Errorf("error is %T, want *ParseError", err)
			}
			if pe.Path != path {
				t.Errorf("error path = %q, want %q", pe.Path, path)
			}
		})
	}
}

func TestStripEnvelope(t *testing.T) {
	in := `<?xml version="1.0"?>` + "\n" + `<record xmlns="http://www.loc.gov/MARC21/slim"><leader/></record>`
	got := StripEnvelope(in)
	want := `<record><leader/></record>`
	if got != want {
		t.Errorf("StripEnvelope = %q, want %q", got, want)
	}
}

// Package oai parses envelope-wrapped MARCXML export files as produced by
// the catalog's OAI-PMH publishing service. Each file carries one record:
// a header (identifier, datestamp, optional status attribute) and a metadata
// block wrapping exactly one MARCXML element.
package oai

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/beevik/etree"
)

// MarcNamespace is the MARC21 slim XML namespace. Payloads have the default
// declaration of this namespace stripped so they can be inlined into a
// collection document that declares it once at the root.
const MarcNamespace = "http://www.loc.gov/MARC21/slim"

// Status is the header status of a harvested record.
type Status string

const (
	// StatusCreateUpdate marks a record that was created or changed.
	// It is the default when the header carries no status attribute.
	StatusCreateUpdate Status = "create_update"
	// StatusDeleted marks a record withdrawn from the catalog.
	StatusDeleted Status = "deleted"
)

// Record is the parsed content of one envelope file. It is transient:
// the assembler consumes it and does not keep it past the batch.
type Record struct {
	ControlNo string
	Status    Status
	LastMod   time.Time
	Payload   string
}

// ParseError reports a malformed or incomplete envelope file. The caller is
// responsible for quarantining the offending file.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("oai: parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ReadFile parses one envelope file into a Record. Any failure is returned
// as a *ParseError carrying the file path; the file itself is not touched.
func ReadFile(path string) (*Record, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	rec, err := fromDocument(doc)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return rec, nil
}

func fromDocument(doc *etree.Document) (*Record, error) {
	root := doc.Root()
	if root == nil {
		return nil, errors.New("no root element")
	}

	header := root.FindElement("./ListRecords/record/header")
	if header == nil {
		return nil, errors.New("missing ListRecords/record/header")
	}

	ident := header.FindElement("identifier")
	if ident == nil || strings.TrimSpace(ident.Text()) == "" {
		return nil, errors.New("header has no identifier")
	}
	controlNo := strings.TrimSpace(ident.Text())

	ds := header.FindElement("datestamp")
	if ds == nil || strings.TrimSpace(ds.Text()) == "" {
		return nil, errors.New("header has no datestamp")
	}
	lastMod, err := dateparse.ParseAny(strings.TrimSpace(ds.Text()))
	if err != nil {
		return nil, fmt.Errorf("bad datestamp %q: %w", ds.Text(), err)
	}

	status := StatusCreateUpdate
	if header.SelectAttrValue("status", "") == string(StatusDeleted) {
		status = StatusDeleted
	}

	payload, err := extractPayload(root)
	if err != nil {
		return nil, err
	}

	return &Record{
		ControlNo: controlNo,
		Status:    status,
		LastMod:   lastMod,
		Payload:   payload,
	}, nil
}

// extractPayload serializes the single element inside the metadata block,
// without an XML prolog and without the default MARC namespace declaration.
func extractPayload(root *etree.Element) (string, error) {
	children := root.FindElements("//metadata/*")
	switch len(children) {
	case 0:
		return "", errors.New("metadata block is empty or missing")
	case 1:
		// ok
	default:
		return "", fmt.Errorf("metadata block has %d elements, want 1", len(children))
	}

	out := etree.NewDocument()
	out.SetRoot(children[0].Copy())
	s, err := out.WriteToString()
	if err != nil {
		return "", fmt.Errorf("serialize payload: %w", err)
	}
	return StripEnvelope(s), nil
}

// StripEnvelope removes a leading processing-instruction prolog and the
// default MARC namespace declaration from a serialized payload fragment.
func StripEnvelope(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "<?") {
		if i := strings.Index(s, "?>"); i >= 0 {
			s = strings.TrimSpace(s[i+2:])
		}
	}
	return strings.Replace(s, fmt.Sprintf(" xmlns=%q", MarcNamespace), "", 1)
}

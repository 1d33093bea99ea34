// Package history tracks the evolution of a single bibliographic record
// across an ordered sequence of payload snapshots: the first version, the
// current version, and one change entry per snapshot in between.
package history

import (
	"fmt"
	"time"

	"github.com/beevik/etree"
	"github.com/pmezard/go-difflib/difflib"
)

// NoDifference is the rendering of a change whose payload was byte-identical
// to the previous version.
const NoDifference = "NO_DIFFERENCE"

// Change is the recorded outcome of adding one snapshot after the first.
// Exactly one of the two cases holds: Unchanged, or a non-empty unified
// diff in Diff.
type Change struct {
	Stamp     time.Time
	Unchanged bool
	Diff      string
}

// String renders the change for human audit.
func (c Change) String() string {
	if c.Unchanged {
		return NoDifference
	}
	return c.Diff
}

// History is the in-memory version history of one record. Snapshots must be
// added in non-decreasing timestamp order; History trusts its caller on the
// ordering but enforces control-number identity.
type History struct {
	ControlNo      string
	LastMod        time.Time
	FirstVersion   string
	CurrentVersion string
	Changes        []Change

	seeded bool
}

// New creates an empty history. The control number is fixed by the first
// snapshot added.
func New() *History {
	return &History{Changes: []Change{}}
}

// AddVersion records one snapshot. The first snapshot seeds the history and
// records no change; every later snapshot appends exactly one Change and
// then becomes the current version, whatever the diff outcome was.
func (h *History) AddVersion(payload string, stamp time.Time, controlNo string) error {
	if !h.seeded {
		h.seeded = true
		h.ControlNo = controlNo
		h.FirstVersion = payload
		h.CurrentVersion = payload
		h.LastMod = stamp
		return nil
	}
	if controlNo != h.ControlNo {
		return fmt.Errorf("history: control number %q does not match %q", controlNo, h.ControlNo)
	}

	change, err := diff(h.CurrentVersion, payload, h.LastMod, stamp)
	if err != nil {
		return err
	}
	h.Changes = append(h.Changes, change)
	h.CurrentVersion = payload
	h.LastMod = stamp
	return nil
}

// diff compares two payloads. Identical payloads yield an Unchanged change;
// otherwise both are rendered into a canonical indented form and a unified
// diff is computed, labelled with the two snapshot timestamps.
func diff(prev, next string, prevStamp, nextStamp time.Time) (Change, error) {
	if prev == next {
		return Change{Stamp: nextStamp, Unchanged: true}, nil
	}

	prettyPrev, err := indent(prev)
	if err != nil {
		return Change{}, fmt.Errorf("history: render previous version: %w", err)
	}
	prettyNext, err := indent(next)
	if err != nil {
		return Change{}, fmt.Errorf("history: render new version: %w", err)
	}

	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(prettyPrev),
		B:        difflib.SplitLines(prettyNext),
		FromDate: prevStamp.Format(time.RFC3339),
		ToDate:   nextStamp.Format(time.RFC3339),
		Context:  3,
	})
	if err != nil {
		return Change{}, fmt.Errorf("history: unified diff: %w", err)
	}
	return Change{Stamp: nextStamp, Diff: text}, nil
}

// indent parses an XML fragment and re-serializes it with stable two-space
// indentation, one element per line, for line-oriented diffing.
func indent(fragment string) (string, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(fragment); err != nil {
		return "", err
	}
	if doc.Root() == nil {
		return "", fmt.Errorf("fragment has no root element")
	}
	doc.Indent(2)
	return doc.WriteToString()
}

package history

import (
	"strings"
	"testing"
	"time"
)

const (
	payloadV1 = `<record><controlfield tag="001">42</controlfield><datafield tag="245"><subfield code="a">First title</subfield></datafield></record>`
	payloadV2 = `<record><controlfield tag="001">42</controlfield><datafield tag="245"><subfield code="a">Second title</subfield></datafield></record>`
)

var (
	stamp1 = time.Date(2013, 2, 28, 10, 0, 2, 0, time.UTC)
	stamp2 = time.Date(2013, 3, 1, 9, 30, 0, 0, time.UTC)
)

func TestAddVersion_First(t *testing.T) {
	h := New()
	if err := h.AddVersion(payloadV1, stamp1, "42"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.ControlNo != "42" {
		t.Errorf("control no = %q, want %q", h.ControlNo, "42")
	}
	if len(h.Changes) != 0 {
		t.Errorf("changes after first snapshot = %d, want 0", len(h.Changes))
	}
	if h.FirstVersion != payloadV1 || h.CurrentVersion != payloadV1 {
		t.Error("first and current version should both equal the snapshot")
	}
	if !h.LastMod.Equal(stamp1) {
		t.Errorf("last mod = %v, want %v", h.LastMod, stamp1)
	}
}

func TestAddVersion_IdenticalSnapshot(t *testing.T) {
	h := New()
	if err := h.AddVersion(payloadV1, stamp1, "42"); err != nil {
		t.Fatal(err)
	}
	if err := h.AddVersion(payloadV1, stamp2, "42"); err != nil {
		t.Fatal(err)
	}
	if len(h.Changes) != 1 {
		t.Fatalf("changes = %d, want 1", len(h.Changes))
	}
	c := h.Changes[0]
	if !c.Unchanged {
		t.Error("identical snapshot should record an unchanged result")
	}
	if c.String() != NoDifference {
		t.Errorf("String() = %q, want %q", c.String(), NoDifference)
	}
	if !c.Stamp.Equal(stamp2) {
		t.Errorf("change stamp = %v, want %v", c.Stamp, stamp2)
	}
	if !h.LastMod.Equal(stamp2) {
		t.Error("last mod must advance even when nothing changed")
	}
}

func TestAddVersion_DifferingSnapshot(t *testing.T) {
	h := New()
	if err := h.AddVersion(payloadV1, stamp1, "42"); err != nil {
		t.Fatal(err)
	}
	if err := h.AddVersion(payloadV2, stamp2, "42"); err != nil {
		t.Fatal(err)
	}
	if len(h.Changes) != 1 {
		t.Fatalf("changes = %d, want 1", len(h.Changes))
	}
	c := h.Changes[0]
	if c.Unchanged || c.Diff == "" {
		t.Fatal("differing snapshot should record a non-empty diff")
	}
	if !strings.Contains(c.Diff, stamp1.Format(time.RFC3339)) {
		t.Errorf("diff missing from-label %s:\n%s", stamp1.Format(time.RFC3339), c.Diff)
	}
	if !strings.Contains(c.Diff, stamp2.Format(time.RFC3339)) {
		t.Errorf("diff missing to-label %s:\n%s", stamp2.Format(time.RFC3339), c.Diff)
	}
	if !strings.Contains(c.Diff, "-") || !strings.Contains(c.Diff, "First title") {
		t.Errorf("diff should mention the removed line:\n%s", c.Diff)
	}
	if !strings.Contains(c.Diff, "Second title") {
		t.Errorf("diff should mention the added line:\n%s", c.Diff)
	}
	if h.FirstVersion != payloadV1 {
		t.Error("first version must be immutable")
	}
	if h.CurrentVersion != payloadV2 {
		t.Error("current version must track the latest snapshot")
	}
}

func TestAddVersion_ThreeSnapshots(t *testing.T) {
	h := New()
	stamps := []time.Time{stamp1, stamp2, stamp2.Add(time.Hour)}
	payloads := []string{payloadV1, payloadV2, payloadV2}
	for i := range payloads {
		if err := h.AddVersion(payloads[i], stamps[i], "42"); err != nil {
			t.Fatal(err)
		}
	}
	if len(h.Changes) != 2 {
		t.Fatalf("changes = %d, want 2 (snapshots - 1)", len(h.Changes))
	}
	if h.Changes[0].Unchanged {
		t.Error("first change should be a diff")
	}
	if !h.Changes[1].Unchanged {
		t.Error("second change should be unchanged")
	}
}

func TestAddVersion_EmptyFirstSnapshotSeeds(t *testing.T) {
	h := New()
	if err := h.AddVersion("", stamp1, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The empty snapshot counts as the first version; the next identical
	// snapshot must diff against it, not seed again.
	if err := h.AddVersion("", stamp2, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(h.Changes) != 1 || !h.Changes[0].Unchanged {
		t.Fatalf("changes = %+v, want one unchanged entry", h.Changes)
	}
	if h.FirstVersion != "" || !h.LastMod.Equal(stamp2) {
		t.Error("first version must stay at the seed while last mod advances")
	}
	// Identity is fixed by the seed even when the control number is empty.
	if err := h.AddVersion("", stamp2, "42"); err == nil {
		t.Error("control number differing from the seed should be rejected")
	}
}

func TestAddVersion_ControlNoMismatch(t *testing.T) {
	h := New()
	if err := h.AddVersion(payloadV1, stamp1, "42"); err != nil {
		t.Fatal(err)
	}
	if err := h.AddVersion(payloadV2, stamp2, "43"); err == nil {
		t.Fatal("expected error for mismatched control number")
	}
	if len(h.Changes) != 0 || h.CurrentVersion != payloadV1 {
		t.Error("rejected snapshot must not mutate the history")
	}
}

func TestAddVersion_MalformedPayloadPropagates(t *testing.T) {
	h := New()
	if err := h.AddVersion(payloadV1, stamp1, "42"); err != nil {
		t.Fatal(err)
	}
	if err := h.AddVersion("<not<valid<", stamp2, "42"); err == nil {
		t.Fatal("expected rendering error to surface")
	}
}

func TestNew_IndependentChangeSlices(t *testing.T) {
	a, b := New(), New()
	if err := a.AddVersion(payloadV1, stamp1, "1"); err != nil {
		t.Fatal(err)
	}
	if err := a.AddVersion(payloadV2, stamp2, "1"); err != nil {
		t.Fatal(err)
	}
	if len(b.Changes) != 0 {
		t.Error("histories must not share change slices")
	}
}

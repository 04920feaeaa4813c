package analyzer

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiffBaseline(t *testing.T) {
	unbounded := Finding{Type: FindingUnboundedArray, Database: "shop", Collection: "orders", Field: "items", Message: "old text"}
	current := []Finding{
		{Type: FindingUnboundedArray, Database: "shop", Collection: "orders", Field: "items", Message: "new text"},
		{Type: FindingLargeDocuments, Database: "shop", Collection: "blobs"},
	}
	baseline := []Finding{
		unbounded,
		{Type: FindingTypePolymorphism, Database: "app", Collection: "users", Field: "age"},
	}

	result := DiffBaseline(current, baseline)
	if len(result) != 3 {
		t.Fatalf("len = %d, want 3", len(result))
	}
	want := []BaselineStatus{StatusUnchanged, StatusNew, StatusResolved}
	for i, s := range want {
		if result[i].Status != s {
			t.Errorf("result[%d] = %s, want %s", i, result[i].Status, s)
		}
	}
	counts := CountBaseline(result)
	if counts[StatusNew] != 1 || counts[StatusResolved] != 1 || counts[StatusUnchanged] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestDiffBaseline_FieldDistinguishesFindings(t *testing.T) {
	current := []Finding{{Type: FindingUnboundedArray, Database: "d", Collection: "c", Field: "a"}}
	baseline := []Finding{{Type: FindingUnboundedArray, Database: "d", Collection: "c", Field: "b"}}
	result := DiffBaseline(current, baseline)
	if len(result) != 2 || result[0].Status != StatusNew || result[1].Status != StatusResolved {
		t.Errorf("result = %+v", result)
	}
}

func TestLoadBaseline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	data := `{"findings":[{"type":"LARGE_DOCUMENTS","severity":"high","database":"shop","collection":"blobs","message":"big"}],"collections":[]}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	findings, err := LoadBaseline(path)
	if err != nil {
		t.Fatalf("LoadBaseline: %v", err)
	}
	if len(findings) != 1 || findings[0].Type != FindingLargeDocuments || findings[0].Severity != SeverityHigh {
		t.Errorf("findings = %+v", findings)
	}
}

func TestLoadBaseline_Errors(t *testing.T) {
	if _, err := LoadBaseline(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadBaseline(path); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

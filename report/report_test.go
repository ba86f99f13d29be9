package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"corp/sysrecon/core"
)

func sampleFindings() []core.Finding {
	mk := func(module, item string, l core.SecurityLevel) core.Finding {
		f := core.NewFinding(item, "desc "+item, l)
		f.Module = module
		f.ScanID = "scan-1"
		return f
	}
	hi := mk("services", "Vendor", core.LevelHigh)
	hi.AddDetail("binary_path", "C:/Program Files/Vendor App/svc.exe").AddDetail("unquoted", true)
	return []core.Finding{
		mk("memory", "evil.exe (pid 7)", core.LevelCritical),
		mk("accounts", "bob", core.LevelLow),
		hi,
		mk("accounts", "Administrator", core.LevelCritical),
		mk("network", "tcp 0.0.0.0:8080", core.LevelMedium),
	}
}

func sampleSummary() core.ScanSummary {
	start := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	return core.ScanSummary{
		ScanID:     "scan-1",
		Mode:       "full",
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Modules:    []core.ModuleResult{{Module: "accounts", Status: core.StatusOK, Findings: 2}},
	}
}

func TestGenerateOrdersAndCounts(t *testing.T) {
	r := Generate(sampleSummary(), sampleFindings(), nil, nil, Metadata{Tool: Tool, Hostname: "host1"}, core.LevelMedium)

	if r.Summary.TotalFindings != 5 || r.Summary.Reported != 4 {
		t.Errorf("total=%d reported=%d", r.Summary.TotalFindings, r.Summary.Reported)
	}
	want := []string{"Administrator", "evil.exe (pid 7)", "Vendor", "tcp 0.0.0.0:8080"}
	for i, f := range r.Findings {
		if f.Item != want[i] {
			t.Errorf("finding %d = %s, want %s", i, f.Item, want[i])
		}
	}
	if r.Summary.BySeverity["critical"] != 2 || r.Summary.BySeverity["low"] != 1 {
		t.Errorf("by severity = %v", r.Summary.BySeverity)
	}
	if r.Summary.ByModule["accounts"] != 2 {
		t.Errorf("by module = %v", r.Summary.ByModule)
	}
	if r.Summary.HighestSeverity != "critical" {
		t.Errorf("highest = %s", r.Summary.HighestSeverity)
	}
	if !r.Complete() || r.Summary.StatusDetail != "complete" {
		t.Errorf("status = %s / %s", r.Summary.Status, r.Summary.StatusDetail)
	}
	if r.Metadata.ScanID != "scan-1" || r.Metadata.Duration != "1.5s" {
		t.Errorf("metadata = %+v", r.Metadata)
	}
}

func TestGeneratePartial(t *testing.T) {
	sum := sampleSummary()
	sum.Failed = 1
	skipped := []core.Skip{
		{Module: "memory", Item: "pid 4", Reason: "access denied"},
		{Module: "services", Item: "WinDefend", Reason: "access denied"},
	}
	r := Generate(sum, nil, nil, skipped, Metadata{}, core.LevelLow)
	if r.Complete() {
		t.Fatal("report with skips must be partial")
	}
	if r.Summary.StatusDetail != "partial due to 2 skipped items, 1 failed modules" {
		t.Errorf("detail = %q", r.Summary.StatusDetail)
	}
	if r.Findings == nil || len(r.Findings) != 0 {
		t.Errorf("findings should be an empty list, got %v", r.Findings)
	}
}

func TestWriteJSON(t *testing.T) {
	r := Generate(sampleSummary(), sampleFindings(), nil, nil, Metadata{Tool: Tool, Hostname: "lab&test"}, core.LevelLow)
	var buf bytes.Buffer
	if err := WriteJSON(&buf, r, true); err != nil {
		t.Fatal(err)
	}
	var decoded struct {
		Summary struct {
			Status string `json:"status"`
		} `json:"summary"`
		Findings []struct {
			Severity string            `json:"severity"`
			Details  map[string]string `json:"details"`
		} `json:"findings"`
		Indicators []any `json:"injection_indicators"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if decoded.Summary.Status != StatusComplete || len(decoded.Findings) != 5 {
		t.Errorf("decoded = %+v", decoded)
	}
	if decoded.Indicators == nil {
		t.Error("indicators should encode as [] not null")
	}
	// "&" tidak di-escape
	if strings.Contains(buf.String(), `\u0026`) {
		t.Error("html escaping must be off")
	}
}

func TestWriteCSV(t *testing.T) {
	r := Generate(sampleSummary(), sampleFindings(), nil, nil, Metadata{}, core.LevelHigh)
	var buf bytes.Buffer
	if err := WriteCSV(&buf, r); err != nil {
		t.Fatal(err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 4 || rows[0][0] != "scan_id" {
		t.Fatalf("rows = %d", len(rows))
	}
	last := rows[3]
	if last[5] != "Vendor" || last[7] != "binary_path=C:/Program Files/Vendor App/svc.exe; unquoted=true" {
		t.Errorf("vendor row = %q", last)
	}
}

func TestWriteHTMLEscapes(t *testing.T) {
	fs := []core.Finding{core.NewFinding(`<script>alert(1)</script>`, "x", core.LevelHigh)}
	r := Generate(sampleSummary(), fs, nil, []core.Skip{{Module: "memory", Item: "pid 9", Reason: "gone"}}, Metadata{Tool: Tool}, core.LevelLow)
	var buf bytes.Buffer
	if err := WriteHTML(&buf, r); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if strings.Contains(out, "<script>alert") {
		t.Error("item was not escaped")
	}
	if !strings.Contains(out, "partial due to 1 skipped items") || !strings.Contains(out, "pid 9") {
		t.Error("partial status or skipped table missing")
	}
}

func TestWriteFiles(t *testing.T) {
	dir := t.TempDir()
	r := Generate(sampleSummary(), sampleFindings(), nil, nil, Metadata{Tool: Tool, Hostname: "host1"}, core.LevelLow)
	paths, err := WriteFiles(dir, r, []string{"json", "CSV", "html"}, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 3 {
		t.Fatalf("paths = %v", paths)
	}
	if want := filepath.Join(dir, "sysrecon_host1_20261019_090000.json"); paths[0] != want {
		t.Errorf("json path = %s, want %s", paths[0], want)
	}
	for _, p := range paths {
		if st, err := os.Stat(p); err != nil || st.Size() == 0 {
			t.Errorf("%s not written: %v", p, err)
		}
	}
	if _, err := WriteFiles(dir, r, []string{"xml"}, false); err == nil {
		t.Error("unknown format should fail")
	}
}

func TestPrintSummary(t *testing.T) {
	r := Generate(sampleSummary(), sampleFindings(), nil, nil, Metadata{}, core.LevelLow)
	var buf bytes.Buffer
	if err := PrintSummary(&buf, r); err != nil {
		t.Fatal(err)
	}
	if err := PrintFindings(&buf, r); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Administrator") || !strings.Contains(buf.String(), "accounts") {
		t.Error("tables missing rows")
	}
}

func TestNewHotfix(t *testing.T) {
	cases := []struct{ raw, want string }{
		{"3/14/2026", "2026-03-14"},
		{"2025-11-02", "2025-11-02"},
		{"20240105", "2024-01-05"},
		{"14.03.2026", "14.03.2026"},
	}
	for _, c := range cases {
		if got := NewHotfix("KB1", c.raw).Date(); got != c.want {
			t.Errorf("NewHotfix(%q).Date() = %q, want %q", c.raw, got, c.want)
		}
	}
}

package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"corp/sysrecon/core"
)

const (
	StatusComplete = "complete"
	StatusPartial  = "partial"
)

// Report adalah laporan lengkap hasil satu scan.
type Report struct {
	Metadata   Metadata                  `json:"metadata"`
	Summary    Summary                   `json:"summary"`
	Findings   []core.Finding            `json:"findings"`
	Indicators []core.InjectionIndicator `json:"injection_indicators"`
	Skipped    []core.Skip               `json:"skipped"`
}

// Metadata informasi scan dan host.
type Metadata struct {
	Tool       string            `json:"tool"`
	Version    string            `json:"version"`
	ScanID     string            `json:"scan_id"`
	Mode       string            `json:"mode"`
	ScanTime   time.Time         `json:"scan_time"`
	Duration   string            `json:"duration"`
	Hostname   string            `json:"hostname,omitempty"`
	Username   string            `json:"username,omitempty"`
	OS         string            `json:"os,omitempty"`
	Arch       string            `json:"arch,omitempty"`
	IsAdmin    bool              `json:"is_admin"`
	Privileges []string          `json:"privileges,omitempty"`
	SystemInfo map[string]string `json:"system_info,omitempty"`
}

// Summary ringkasan hasil scan.
type Summary struct {
	Status          string              `json:"status"`
	StatusDetail    string              `json:"status_detail"`
	TotalFindings   int                 `json:"total_findings"`
	Reported        int                 `json:"reported"`
	MinSeverity     string              `json:"min_severity"`
	HighestSeverity string              `json:"highest_severity,omitempty"`
	BySeverity      map[string]int      `json:"by_severity"`
	ByModule        map[string]int      `json:"by_module"`
	Indicators      int                 `json:"injection_indicators"`
	SkippedItems    int                 `json:"skipped_items"`
	FailedModules   int                 `json:"failed_modules"`
	Modules         []core.ModuleResult `json:"modules"`
}

// Generate builds the report for one scan. Findings below minLevel are counted
// in TotalFindings but left out of the listing; the rest are ordered by
// severity, then module execution order, then item.
func Generate(sum core.ScanSummary, findings []core.Finding, indicators []core.InjectionIndicator, skipped []core.Skip, meta Metadata, minLevel core.SecurityLevel) Report {
	meta.ScanID = sum.ScanID
	meta.Mode = sum.Mode
	if meta.ScanTime.IsZero() {
		meta.ScanTime = sum.StartedAt
	}
	if meta.Duration == "" && !sum.FinishedAt.IsZero() {
		meta.Duration = sum.FinishedAt.Sub(sum.StartedAt).Round(time.Millisecond).String()
	}
	meta.IsAdmin = meta.IsAdmin || sum.Privileged

	summary := Summary{
		TotalFindings: len(findings),
		MinSeverity:   minLevel.String(),
		BySeverity:    map[string]int{},
		ByModule:      map[string]int{},
		Indicators:    len(indicators),
		SkippedItems:  len(skipped),
		FailedModules: sum.Failed,
		Modules:       sum.Modules,
	}

	listed := make([]core.Finding, 0, len(findings))
	highest := core.SecurityLevel(-1)
	for _, f := range findings {
		summary.BySeverity[f.Severity.String()]++
		summary.ByModule[f.Module]++
		if f.Severity > highest {
			highest = f.Severity
		}
		if f.Severity >= minLevel {
			listed = append(listed, f)
		}
	}
	if highest >= core.LevelLow {
		summary.HighestSeverity = highest.String()
	}
	summary.Reported = len(listed)
	SortFindings(listed)

	summary.Status, summary.StatusDetail = status(sum, len(skipped))

	if indicators == nil {
		indicators = []core.InjectionIndicator{}
	}
	if skipped == nil {
		skipped = []core.Skip{}
	}
	return Report{
		Metadata:   meta,
		Summary:    summary,
		Findings:   listed,
		Indicators: indicators,
		Skipped:    skipped,
	}
}

// status: "complete", atau "partial due to N skipped items" plus modul
// yang gagal / timeout / cancel.
func status(sum core.ScanSummary, skipped int) (string, string) {
	if skipped < sum.Skipped {
		skipped = sum.Skipped
	}
	if skipped == 0 && sum.Failed == 0 && !sum.TimedOut && !sum.Cancelled {
		return StatusComplete, StatusComplete
	}
	parts := []string{fmt.Sprintf("partial due to %d skipped items", skipped)}
	if sum.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed modules", sum.Failed))
	}
	if sum.TimedOut {
		parts = append(parts, "scan timed out")
	}
	if sum.Cancelled {
		parts = append(parts, "scan cancelled")
	}
	return StatusPartial, strings.Join(parts, ", ")
}

var moduleOrder = func() map[string]int {
	m := map[string]int{}
	for i, k := range core.AllModules() {
		m[k.String()] = i
	}
	return m
}()

// SortFindings orders by severity (critical first), module execution order
// and item name. Equal findings keep their store order.
func SortFindings(fs []core.Finding) {
	sort.SliceStable(fs, func(i, j int) bool {
		a, b := fs[i], fs[j]
		if a.Severity != b.Severity {
			return a.Severity > b.Severity
		}
		if moduleOrder[a.Module] != moduleOrder[b.Module] {
			return moduleOrder[a.Module] < moduleOrder[b.Module]
		}
		return a.Item < b.Item
	})
}

// Complete reports whether nothing was skipped and every module finished.
func (r Report) Complete() bool { return r.Summary.Status == StatusComplete }

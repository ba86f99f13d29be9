package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/pterm/pterm"

	"corp/sysrecon/core"
)

// MaxTableRows caps the terminal findings table; the files carry the rest.
const MaxTableRows = 50

func severityStyle(l core.SecurityLevel) string {
	switch l {
	case core.LevelCritical:
		return pterm.NewStyle(pterm.BgRed, pterm.FgWhite, pterm.Bold).Sprint(" CRITICAL ")
	case core.LevelHigh:
		return pterm.FgRed.Sprint("HIGH")
	case core.LevelMedium:
		return pterm.FgYellow.Sprint("MEDIUM")
	default:
		return pterm.FgBlue.Sprint("LOW")
	}
}

// PrintFindings mencetak tabel findings ke terminal.
func PrintFindings(w io.Writer, r Report) error {
	if len(r.Findings) == 0 {
		fmt.Fprintln(w, pterm.Success.Sprint("No findings at or above "+r.Summary.MinSeverity))
		return nil
	}
	data := [][]string{{"Severity", "Module", "Item", "Description"}}
	for i, f := range r.Findings {
		if i == MaxTableRows {
			break
		}
		data = append(data, []string{severityStyle(f.Severity), pterm.FgCyan.Sprint(f.Module), f.Item, f.Description})
	}
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(w, out)
	if n := len(r.Findings) - MaxTableRows; n > 0 {
		fmt.Fprintln(w, pterm.FgGray.Sprintf("... %d more in the report files", n))
	}
	return nil
}

// PrintSummary mencetak ringkasan scan (status, severity, modul).
func PrintSummary(w io.Writer, r Report) error {
	s := r.Summary
	if r.Complete() {
		fmt.Fprintln(w, pterm.Success.Sprint("Scan complete"))
	} else {
		fmt.Fprintln(w, pterm.Warning.Sprint("Scan "+s.StatusDetail))
	}

	sev := [][]string{{"Severity", "Findings"}}
	for _, l := range []core.SecurityLevel{core.LevelCritical, core.LevelHigh, core.LevelMedium, core.LevelLow} {
		sev = append(sev, []string{severityStyle(l), strconv.Itoa(s.BySeverity[l.String()])})
	}
	out, err := pterm.DefaultTable.WithHasHeader().WithData(sev).Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(w, out)

	mods := [][]string{{"Module", "Status", "Findings", "Skipped", "Duration"}}
	for _, m := range s.Modules {
		st := m.Status
		switch st {
		case core.StatusOK:
			st = pterm.FgGreen.Sprint(st)
		case core.StatusSkipped:
			st = pterm.FgGray.Sprint(st)
		default:
			st = pterm.FgRed.Sprint(st)
		}
		mods = append(mods, []string{m.Module, st, strconv.Itoa(m.Findings), strconv.Itoa(m.Skipped), m.Duration.Round(time.Millisecond).String()})
	}
	out, err = pterm.DefaultTable.WithHasHeader().WithData(mods).Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(w, out)
	if s.Indicators > 0 {
		fmt.Fprintln(w, pterm.Warning.Sprintf("%d injection indicator(s) recorded", s.Indicators))
	}
	return nil
}

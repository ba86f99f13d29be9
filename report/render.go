package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// WriteJSON menulis report ke JSON.
func WriteJSON(w io.Writer, r Report, pretty bool) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(r)
}

var csvHeader = []string{"scan_id", "timestamp", "module", "severity", "category", "item", "description", "details", "remediation"}

// WriteCSV writes one row per listed finding. Details are flattened as
// "key=value; key=value" in insertion order.
func WriteCSV(w io.Writer, r Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, f := range r.Findings {
		details := make([]string, 0, len(f.Details))
		for _, d := range f.Details {
			details = append(details, d.Key+"="+d.Value)
		}
		row := []string{
			f.ScanID,
			f.Timestamp.Format(time.RFC3339),
			f.Module,
			f.Severity.String(),
			f.Category,
			f.Item,
			f.Description,
			strings.Join(details, "; "),
			f.Remediation,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// FileBase is sysrecon_<host>_<timestamp> under dir, matching the log file.
func FileBase(dir string, r Report) string {
	host := r.Metadata.Hostname
	if host == "" {
		host = "unknown"
	}
	ts := r.Metadata.ScanTime
	if ts.IsZero() {
		ts = time.Now()
	}
	return filepath.Join(dir, fmt.Sprintf("%s_%s_%s", Tool, host, ts.Format("20060102_150405")))
}

// WriteFiles renders every requested format into dir and returns the paths
// written. A failing format does not stop the others.
func WriteFiles(dir string, r Report, formats []string, pretty bool) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report directory: %w", err)
	}
	base := FileBase(dir, r)
	var written []string
	var errs []string
	for _, format := range formats {
		format = strings.ToLower(strings.TrimSpace(format))
		var render func(io.Writer) error
		switch format {
		case "json":
			render = func(w io.Writer) error { return WriteJSON(w, r, pretty) }
		case "csv":
			render = func(w io.Writer) error { return WriteCSV(w, r) }
		case "html":
			render = func(w io.Writer) error { return WriteHTML(w, r) }
		default:
			errs = append(errs, fmt.Sprintf("unknown format %q", format))
			continue
		}
		path := base + "." + format
		if err := writeFile(path, render); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", format, err))
			continue
		}
		written = append(written, path)
	}
	if len(errs) > 0 {
		return written, fmt.Errorf("write reports: %s", strings.Join(errs, "; "))
	}
	return written, nil
}

func writeFile(path string, render func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

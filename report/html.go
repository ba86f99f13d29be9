package report

import (
	"html/template"
	"io"
	"strings"

	"corp/sysrecon/core"
)

var htmlTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"sev":   func(l core.SecurityLevel) string { return l.String() },
	"upper": strings.ToUpper,
	"join":  strings.Join,
	"order": func() []string { return []string{"critical", "high", "medium", "low"} },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Metadata.Tool}} report {{.Metadata.Hostname}}</title>
<style>
body{font-family:Segoe UI,Helvetica,Arial,sans-serif;margin:24px;color:#222}
table{border-collapse:collapse;width:100%;margin-bottom:24px}
th,td{border:1px solid #ccc;padding:4px 8px;text-align:left;vertical-align:top;font-size:13px}
th{background:#f0f0f0}
.critical{background:#7b0000;color:#fff}.high{background:#d9534f;color:#fff}
.medium{background:#f0ad4e}.low{background:#5bc0de}
.partial{color:#b35c00}.complete{color:#2d7d2d}
ul{margin:0;padding-left:16px}
</style>
</head>
<body>
<h1>{{.Metadata.Tool}} security audit</h1>
<p class="{{.Summary.Status}}"><strong>Status:</strong> {{.Summary.StatusDetail}}</p>
<table>
<tr><th>Host</th><td>{{.Metadata.Hostname}}</td><th>User</th><td>{{.Metadata.Username}}</td></tr>
<tr><th>OS</th><td>{{.Metadata.OS}} ({{.Metadata.Arch}})</td><th>Elevated</th><td>{{.Metadata.IsAdmin}}</td></tr>
<tr><th>Scan ID</th><td>{{.Metadata.ScanID}}</td><th>Mode</th><td>{{.Metadata.Mode}}</td></tr>
{{- if .Metadata.Privileges}}
<tr><th>Privileges</th><td colspan="3">{{join .Metadata.Privileges ", "}}</td></tr>
{{- end}}
<tr><th>Started</th><td>{{.Metadata.ScanTime.Format "2006-01-02 15:04:05"}}</td><th>Duration</th><td>{{.Metadata.Duration}}</td></tr>
</table>

<h2>Summary</h2>
<table>
<tr><th>Severity</th><th>Findings</th></tr>
{{- range order}}
<tr><td class="{{.}}">{{upper .}}</td><td>{{index $.Summary.BySeverity .}}</td></tr>
{{- end}}
</table>
<table>
<tr><th>Module</th><th>Status</th><th>Findings</th><th>Skipped</th><th>Duration</th><th>Error</th></tr>
{{- range .Summary.Modules}}
<tr><td>{{.Module}}</td><td>{{.Status}}</td><td>{{.Findings}}</td><td>{{.Skipped}}</td><td>{{.Duration}}</td><td>{{.Error}}</td></tr>
{{- end}}
</table>

<h2>Findings ({{.Summary.Reported}} of {{.Summary.TotalFindings}}, minimum {{.Summary.MinSeverity}})</h2>
<table>
<tr><th>Severity</th><th>Module</th><th>Item</th><th>Description</th><th>Details</th><th>Remediation</th></tr>
{{- range .Findings}}
<tr>
<td class="{{sev .Severity}}">{{upper (sev .Severity)}}</td>
<td>{{.Module}}</td>
<td>{{.Item}}</td>
<td>{{.Description}}</td>
<td><ul>{{range .Details}}<li><strong>{{.Key}}</strong>: {{.Value}}</li>{{end}}</ul></td>
<td>{{.Remediation}}</td>
</tr>
{{- end}}
</table>

{{- if .Indicators}}
<h2>Injection indicators</h2>
<table>
<tr><th>Kind</th><th>Process</th><th>PID</th><th>Address</th><th>Size</th><th>Evidence</th></tr>
{{- range .Indicators}}
<tr><td>{{.Kind}}</td><td>{{.Process}}</td><td>{{.ProcessID}}</td><td>{{printf "0x%x" .Address}}</td><td>{{.Size}}</td><td>{{.Evidence}}</td></tr>
{{- end}}
</table>
{{- end}}

{{- if .Skipped}}
<h2>Skipped items ({{len .Skipped}})</h2>
<table>
<tr><th>Module</th><th>Item</th><th>Reason</th></tr>
{{- range .Skipped}}
<tr><td>{{.Module}}</td><td>{{.Item}}</td><td>{{.Reason}}</td></tr>
{{- end}}
</table>
{{- end}}
</body>
</html>
`))

// WriteHTML renders a standalone HTML page. All values are escaped by
// html/template.
func WriteHTML(w io.Writer, r Report) error {
	return htmlTemplate.Execute(w, r)
}

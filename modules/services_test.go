package modules

import (
	"context"
	"strings"
	"testing"

	"corp/sysrecon/core"
)

func TestAssessService(t *testing.T) {
	wl := core.NewSystemWhitelist()
	cases := []struct {
		name  string
		svc   Service
		probe WriteProbe
		want  core.SecurityLevel
	}{
		{
			name: "system service",
			svc:  Service{Name: "Spooler", BinaryPath: `C:\Windows\System32\spoolsv.exe`, StartMode: "Auto"},
			want: core.LevelLow,
		},
		{
			name: "unquoted",
			svc:  Service{Name: "Vendor", BinaryPath: `C:\Program Files\Vendor App\svc.exe -run`},
			want: core.LevelMedium,
		},
		{
			name:  "unquoted with writable segment",
			svc:   Service{Name: "Vendor", BinaryPath: `C:\Program Files\Vendor App\svc.exe -run`},
			probe: writableDirs{`c:\program files\vendor app`: true},
			want:  core.LevelHigh,
		},
		{
			name: "auto start from temp",
			svc:  Service{Name: "Updater", BinaryPath: `"C:\Users\bob\AppData\Local\Temp\upd.exe"`, StartMode: "Auto"},
			want: core.LevelHigh,
		},
		{
			name: "auto start outside system path",
			svc:  Service{Name: "agent", BinaryPath: "/opt/agent/bin/agentd --foreground", StartMode: "enabled"},
			want: core.LevelMedium,
		},
		{
			name: "config writable",
			svc:  Service{Name: "Quoted", BinaryPath: `"C:\Windows\app.exe"`, ConfigWritable: true},
			want: core.LevelHigh,
		},
	}
	for _, c := range cases {
		a := AssessService(c.svc, wl, c.probe)
		if a.Level != c.want {
			t.Errorf("%s: level %v, want %v (reasons %q)", c.name, a.Level, c.want, a.Reasons)
		}
	}
}

func TestNormalizeImagePath(t *testing.T) {
	cases := map[string]string{
		`\SystemRoot\System32\drivers\acpi.sys`: `%SystemRoot%\System32\drivers\acpi.sys`,
		`\??\C:\Drivers\x.sys`:                  `C:\Drivers\x.sys`,
		`System32\drivers\tcpip.sys`:            `%SystemRoot%\System32\drivers\tcpip.sys`,
		`C:\Program Files\app.exe`:              `C:\Program Files\app.exe`,
	}
	for in, want := range cases {
		if got := NormalizeImagePath(in); got != want {
			t.Errorf("NormalizeImagePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseUnitFile(t *testing.T) {
	unit := `[Unit]
Description=Example agent
# comment

[Service]
User=agent
ExecStart=-/opt/agent/bin/agentd --foreground
ExecStart=/ignored

[Install]
WantedBy=multi-user.target
`
	u, err := ParseUnitFile(strings.NewReader(unit))
	if err != nil {
		t.Fatal(err)
	}
	if u.ExecStart != "/opt/agent/bin/agentd --foreground" {
		t.Errorf("ExecStart = %q", u.ExecStart)
	}
	if u.Description != "Example agent" || u.User != "agent" {
		t.Errorf("unit = %+v", u)
	}
	if len(u.WantedBy) != 1 || u.WantedBy[0] != "multi-user.target" {
		t.Errorf("WantedBy = %q", u.WantedBy)
	}
}

func TestServicesModuleModes(t *testing.T) {
	src := fakeServices{
		{Name: "Vendor", BinaryPath: `C:\Program Files\Vendor App\svc.exe`},
		{Name: "Updater", BinaryPath: `"C:\Tools\upd.exe"`, StartMode: "Auto"},
		{Name: "Spooler", BinaryPath: `C:\Windows\System32\spoolsv.exe`, StartMode: "Auto"},
		{Name: "NoPath"},
	}
	probe := writableDirs{`c:\program files\vendor app`: true}
	m := NewServicesModule(src, nil, probe, true, true, nil)
	m.expand = func(s string) string { return s }

	quick := newCollector("services")
	if err := m.Run(context.Background(), core.ScanQuick, quick); err != nil {
		t.Fatal(err)
	}
	// quick: tanpa probe dan tanpa aturan startup
	if f, ok := findingFor(quick.Findings(), "Vendor"); !ok || f.Severity != core.LevelMedium {
		t.Errorf("quick Vendor = %+v", f)
	}
	if _, ok := findingFor(quick.Findings(), "Updater"); ok {
		t.Error("startup rule must not run in quick mode")
	}

	full := newCollector("services")
	if err := m.Run(context.Background(), core.ScanFull, full); err != nil {
		t.Fatal(err)
	}
	fs := full.Findings()
	vendor, _ := findingFor(fs, "Vendor")
	if vendor.Severity != core.LevelHigh {
		t.Errorf("full Vendor = %v", vendor.Severity)
	}
	if d, _ := vendor.Details.Get("writable_segments"); d != "C:/Program Files/Vendor App" {
		t.Errorf("writable_segments = %q", d)
	}
	if f, ok := findingFor(fs, "Updater"); !ok || f.Severity != core.LevelMedium {
		t.Errorf("full Updater = %+v", f)
	}
	if _, ok := findingFor(fs, "Spooler"); ok {
		t.Error("system service should not be reported")
	}
}

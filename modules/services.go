package modules

import (
	"context"
	"fmt"
	"strings"

	"corp/sysrecon/core"
	"corp/sysrecon/logger"
)

/*
   =========================
   Services: unquoted paths & hijackable binaries
   - Enumerasi service (SCM; fallback Registry) atau unit systemd
   - Unquoted path dengan spasi        → medium (high bila ada segmen writable)
   - Auto-start di luar path sistem    → medium (high bila di lokasi user-writable)
   - Direktori binary writable          → high
   =========================
*/

// Service is one installed service or driver.
type Service struct {
	Name        string
	DisplayName string
	State       string
	StartMode   string
	// BinaryPath is the raw command line (ImagePath / ExecStart).
	BinaryPath string
	Account    string
	Driver     bool
	// ConfigWritable is set by sources that can check the service's own
	// ACL (SERVICE_CHANGE_CONFIG for the current token).
	ConfigWritable bool
}

// AutoStart covers Windows "Auto"/"Boot"/"System" and systemd "enabled".
func (s Service) AutoStart() bool {
	switch strings.ToLower(s.StartMode) {
	case "auto", "automatic", "boot", "system", "enabled":
		return true
	}
	return false
}

type ServiceSource interface {
	Services(ctx context.Context) ([]Service, error)
}

// ServiceAssessment is the outcome of AssessService.
type ServiceAssessment struct {
	Level    core.SecurityLevel
	Exe      string
	Unquoted bool
	Writable []string
	Reasons  []string
}

func (a *ServiceAssessment) raise(level core.SecurityLevel, reason string) {
	a.Level = core.Max(a.Level, level)
	a.Reasons = append(a.Reasons, reason)
}

// AssessService applies the service rules to an already env-expanded
// service. probe may be nil, which skips every permission check.
func AssessService(s Service, wl core.Whitelist, probe WriteProbe) ServiceAssessment {
	exe, unquoted := ParseCommandLine(s.BinaryPath)
	a := ServiceAssessment{Exe: exe, Unquoted: unquoted}
	if exe == "" {
		return a
	}
	a.Writable = WritableSegments(exe, probe)

	if unquoted && !wl.IsSafeUnquotedPath(exe) {
		if len(a.Writable) > 0 {
			a.raise(core.LevelHigh, "unquoted path with writable segment")
		} else {
			a.raise(core.LevelMedium, "unquoted path with spaces")
		}
	}
	dir := DirName(exe)
	if probe != nil && dir != "" && probe.Writable(dir) {
		a.raise(core.LevelHigh, "binary directory writable by current user")
	}
	if s.ConfigWritable {
		a.raise(core.LevelHigh, "service configuration writable by current user")
	}
	if s.AutoStart() && !wl.IsSystemPath(dir) {
		if IsUserWritableLocation(exe) {
			a.raise(core.LevelHigh, "auto-start service runs from a user-writable location")
		} else {
			a.raise(core.LevelMedium, "auto-start service runs from a non-system path")
		}
	}
	return a
}

type ServicesModule struct {
	src       ServiceSource
	wl        core.Whitelist
	probe     WriteProbe
	checkPerm bool
	startup   bool
	expand    func(string) string
	log       *logger.Logger
}

// NewServicesModule: checkPerms enables the write probes, startup the
// auto-start location rule. Both only apply in full scans.
func NewServicesModule(src ServiceSource, wl core.Whitelist, probe WriteProbe, checkPerms, startup bool, log *logger.Logger) *ServicesModule {
	if wl == nil {
		wl = core.NewSystemWhitelist()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ServicesModule{
		src: src, wl: wl, probe: probe, checkPerm: checkPerms, startup: startup,
		expand: expandEnv, log: log,
	}
}

func (m *ServicesModule) Kind() core.ModuleKind { return core.ModuleServices }

func (m *ServicesModule) Initialize(context.Context) error {
	if m.src == nil {
		return fmt.Errorf("%w: services module has no source", core.ErrConfigurationInvalid)
	}
	return nil
}

func (m *ServicesModule) Run(ctx context.Context, mode core.ScanMode, c *core.Collector) error {
	services, err := m.src.Services(ctx)
	if err != nil {
		return fmt.Errorf("enumerate services: %w", err)
	}
	var probe WriteProbe
	if mode == core.ScanFull && m.checkPerm {
		probe = m.probe
	}

	reported := 0
	for _, s := range services {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if s.BinaryPath == "" {
			continue
		}
		expanded := s
		expanded.BinaryPath = m.expand(s.BinaryPath)
		if !m.startup || mode == core.ScanQuick {
			expanded.StartMode = ""
		}
		a := AssessService(expanded, m.wl, probe)
		if a.Level == core.LevelLow {
			continue
		}
		if !core.ShouldReport(a.Level, m.wl.IsSystemService(s.Name)) {
			continue
		}
		c.Report(serviceFinding(s, a))
		reported++
	}
	m.log.Debug("services analyzed", "total", len(services), "reported", reported)
	return nil
}

func serviceFinding(s Service, a ServiceAssessment) core.Finding {
	kind := "Service"
	if s.Driver {
		kind = "Driver"
	}
	f := core.NewFinding(s.Name, kind+" "+strings.Join(a.Reasons, "; "), a.Level)
	f.Category = "service"
	if s.DisplayName != "" && s.DisplayName != s.Name {
		f.AddDetail("display_name", s.DisplayName)
	}
	f.AddDetail("binary_path", ToDisplayPath(s.BinaryPath)).
		AddDetail("exe_path", ToDisplayPath(a.Exe))
	if s.StartMode != "" {
		f.AddDetail("start_mode", s.StartMode)
	}
	if s.State != "" {
		f.AddDetail("state", s.State)
	}
	if s.Account != "" {
		f.AddDetail("account", s.Account)
	}
	if a.Unquoted {
		f.AddDetail("unquoted", true)
	}
	if len(a.Writable) > 0 {
		f.AddDetail("writable_segments", strings.Join(a.Writable, "; "))
	}
	switch {
	case a.Unquoted:
		f.Remediation = "Quote the service binary path"
	case len(a.Writable) > 0 || s.ConfigWritable:
		f.Remediation = "Restrict write access on the service binary directory and configuration"
	}
	return f
}

// NormalizeImagePath rewrites the kernel-style prefixes SCM stores for
// drivers (\SystemRoot\, \??\, bare system32\...) into a form the env
// expansion and path rules understand.
func NormalizeImagePath(p string) string {
	s := strings.TrimSpace(p)
	l := strings.ToLower(s)
	switch {
	case strings.HasPrefix(l, `\systemroot\`):
		return `%SystemRoot%\` + s[len(`\SystemRoot\`):]
	case strings.HasPrefix(l, `\??\`):
		return s[len(`\??\`):]
	case strings.HasPrefix(l, `system32\`):
		return `%SystemRoot%\` + s
	}
	return s
}

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
   Registry: persistence & security policy
   - Run/RunOnce (HKLM/HKCU, WOW6432Node)
   - AlwaysInstallElevated, UAC, LSA/SSP, IFEO/SilentProcessExit
   - scheduled tasks (full scan, bersama scan_startup_keys)
   - Defender exclusions (Paths/Processes/Extensions, termasuk policy)
   - custom_keys dari konfigurasi (inventaris, severity low)
   =========================
*/

// DWORD is an optional registry integer.
type DWORD struct {
	Value uint64
	Set   bool
}

func dword(v uint64) DWORD { return DWORD{Value: v, Set: true} }

func (d DWORD) String() string {
	if !d.Set {
		return "not set"
	}
	return fmt.Sprint(d.Value)
}

// Is reports whether the value is present and equal to v.
func (d DWORD) Is(v uint64) bool { return d.Set && d.Value == v }

type Autorun struct {
	Location string
	Name     string
	Command  string
}

type UACPolicy struct {
	EnableLUA        DWORD
	ConsentAdmin     DWORD
	ConsentUser      DWORD
	SecureDesktop    DWORD
	FilterAdminToken DWORD
}

type LSAConfig struct {
	RunAsPPL                  DWORD
	SecurityPackages          []string
	AuthenticationPackages    []string
	NotificationPackages      []string
	WDigestUseLogonCredential DWORD
}

type IFEOEntry struct {
	Image    string
	Debugger string
}

type SilentExit struct {
	Image          string
	ReportingMode  uint64
	MonitorProcess string
}

// DefenderExclusion is one value under a Windows Defender Exclusions subkey.
type DefenderExclusion struct {
	Kind   string // Path, Process, Extension
	Value  string
	Policy bool
}

type RegValue struct {
	Key   string
	Name  string
	Type  string
	Value string
}

// RegistrySource reads the keys the registry module inspects.
type RegistrySource interface {
	Autoruns(ctx context.Context) ([]Autorun, error)
	InstallElevated() (hklm, hkcu DWORD, err error)
	UAC() (UACPolicy, error)
	LSA() (LSAConfig, error)
	IFEO(ctx context.Context) ([]IFEOEntry, []SilentExit, error)
	DefenderExclusions() ([]DefenderExclusion, error)
	ScheduledTasks(ctx context.Context) ([]ScheduledTask, error)
	Values(key string) ([]RegValue, error)
}

/* ===== risk rules ===== */

// AssessAutorun: unquoted → medium, non-system path → medium, writable
// segment or user-writable location → high. Known persistence entries
// skip the location rules.
func AssessAutorun(a Autorun, wl core.Whitelist, probe WriteProbe) ServiceAssessment {
	exe, unquoted := ParseCommandLine(a.Command)
	res := ServiceAssessment{Exe: exe, Unquoted: unquoted}
	if exe == "" {
		return res
	}
	res.Writable = WritableSegments(exe, probe)
	if unquoted && !wl.IsSafeUnquotedPath(exe) {
		res.raise(core.LevelMedium, "unquoted command path")
	}
	if len(res.Writable) > 0 {
		res.raise(core.LevelHigh, "command path has writable segments")
	}
	if wl.IsKnownPersistence(a.Name) {
		return res
	}
	switch {
	case IsUserWritableLocation(exe):
		res.raise(core.LevelHigh, "runs from a user-writable location")
	case !wl.IsSystemPath(DirName(exe)):
		res.raise(core.LevelMedium, "runs from a non-system path")
	}
	return res
}

// AssessInstallElevated: both hives set → critical, one → high.
func AssessInstallElevated(hklm, hkcu DWORD) (core.SecurityLevel, string) {
	switch {
	case hklm.Is(1) && hkcu.Is(1):
		return core.LevelCritical, "AlwaysInstallElevated is enabled in HKLM and HKCU"
	case hklm.Is(1) || hkcu.Is(1):
		return core.LevelHigh, "AlwaysInstallElevated is enabled in one hive"
	}
	return core.LevelLow, "AlwaysInstallElevated is not enabled"
}

// AssessUAC: UAC off → critical, elevate without prompting → high,
// prompt on the normal desktop → medium.
func AssessUAC(p UACPolicy) (core.SecurityLevel, []string) {
	level := core.LevelLow
	var reasons []string
	if p.EnableLUA.Is(0) {
		level = core.LevelCritical
		reasons = append(reasons, "UAC is disabled (EnableLUA=0)")
	}
	if p.ConsentAdmin.Is(0) {
		level = core.Max(level, core.LevelHigh)
		reasons = append(reasons, "administrators elevate without prompting")
	}
	if p.SecureDesktop.Is(0) {
		level = core.Max(level, core.LevelMedium)
		reasons = append(reasons, "elevation prompt not on the secure desktop")
	}
	return level, reasons
}

var defaultLSAPackages = map[string]bool{
	"kerberos": true, "msv1_0": true, "schannel": true, "wdigest": true, "tspkg": true,
	"pku2u": true, "cloudap": true, "negoexts": true, "scecli": true, "rassfm": true, "": true,
}

// AssessLSA: RunAsPPL off, WDigest UseLogonCredential=1 and non-default
// packages are each high.
func AssessLSA(c LSAConfig) (core.SecurityLevel, []string, []string) {
	level := core.LevelLow
	var reasons, suspicious []string
	if !c.RunAsPPL.Is(1) && !c.RunAsPPL.Is(2) {
		level = core.LevelHigh
		reasons = append(reasons, "LSA protection (RunAsPPL) is disabled")
	}
	if c.WDigestUseLogonCredential.Is(1) {
		level = core.LevelHigh
		reasons = append(reasons, "WDigest stores logon credentials in memory")
	}
	for _, list := range [][]string{c.SecurityPackages, c.AuthenticationPackages, c.NotificationPackages} {
		for _, p := range list {
			if !defaultLSAPackages[strings.ToLower(strings.Trim(p, `"' `))] {
				suspicious = append(suspicious, p)
			}
		}
	}
	if len(suspicious) > 0 {
		level = core.LevelHigh
		reasons = append(reasons, "non-default LSA packages registered")
	}
	return level, reasons, suspicious
}

// AssessDefenderExclusion: any exclusion is medium; Program Files,
// ProgramData or drivers high; a wildcard or the OS root critical.
func AssessDefenderExclusion(e DefenderExclusion) (core.SecurityLevel, string) {
	v := strings.ToLower(strings.ReplaceAll(e.Value, "/", `\`))
	switch {
	case v == "*" || v == `c:\` || v == `c:\*` || strings.Contains(v, `\windows\`) && !strings.Contains(v, `\system32\drivers`):
		return core.LevelCritical, "wildcard or OS root excluded from scanning"
	case strings.Contains(v, `\program files`) || strings.Contains(v, `\programdata`) || strings.Contains(v, `\system32\drivers`):
		return core.LevelHigh, "broad system location excluded from scanning"
	}
	return core.LevelMedium, "excluded from real-time scanning"
}

/* ===== module ===== */

type RegistryModule struct {
	src        RegistrySource
	wl         core.Whitelist
	probe      WriteProbe
	startup    bool
	policies   bool
	customKeys []string
	log        *logger.Logger
}

func NewRegistryModule(src RegistrySource, wl core.Whitelist, probe WriteProbe, startup, policies bool, customKeys []string, log *logger.Logger) *RegistryModule {
	if wl == nil {
		wl = core.NewSystemWhitelist()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RegistryModule{
		src: src, wl: wl, probe: probe, startup: startup, policies: policies,
		customKeys: customKeys, log: log,
	}
}

func (m *RegistryModule) Kind() core.ModuleKind { return core.ModuleRegistry }

// Initialize fails with ErrUnsupported where there is no registry, which
// only disables the module.
func (m *RegistryModule) Initialize(context.Context) error {
	if m.src == nil {
		return fmt.Errorf("registry module: %w", core.ErrUnsupported)
	}
	for _, k := range m.customKeys {
		if _, _, ok := SplitRegistryPath(k); !ok {
			return fmt.Errorf("%w: registry.custom_keys: unknown hive in %q", core.ErrConfigurationInvalid, k)
		}
	}
	return nil
}

func (m *RegistryModule) Run(ctx context.Context, mode core.ScanMode, c *core.Collector) error {
	if m.startup || mode == core.ScanQuick {
		if err := m.runAutoruns(ctx, mode, c); err != nil {
			return err
		}
	}
	if mode == core.ScanQuick {
		return nil
	}
	if m.startup {
		m.runTasks(ctx, c)
	}
	if m.policies {
		m.runPolicies(ctx, c)
	}
	for _, key := range m.customKeys {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		values, err := m.src.Values(key)
		if err != nil {
			c.Skip(key, err)
			continue
		}
		for _, v := range values {
			f := core.NewFinding(v.Key+`\`+v.Name, "Monitored registry value", core.LevelLow)
			f.Category = "registry"
			f.AddDetail("type", v.Type).AddDetail("value", v.Value)
			c.Report(f)
		}
	}
	return ctx.Err()
}

func (m *RegistryModule) runAutoruns(ctx context.Context, mode core.ScanMode, c *core.Collector) error {
	entries, err := m.src.Autoruns(ctx)
	if err != nil {
		return fmt.Errorf("read autoruns: %w", err)
	}
	var probe WriteProbe
	if mode == core.ScanFull {
		probe = m.probe
	}
	for _, a := range entries {
		expanded := a
		expanded.Command = expandEnv(a.Command)
		res := AssessAutorun(expanded, m.wl, probe)
		if !core.ShouldReport(res.Level, m.wl.IsKnownPersistence(a.Name)) {
			continue
		}
		desc := "Autorun entry"
		if len(res.Reasons) > 0 {
			desc += " " + strings.Join(res.Reasons, "; ")
		}
		f := core.NewFinding(a.Location+`\`+a.Name, desc, res.Level)
		f.Category = "persistence"
		f.AddDetail("location", a.Location).
			AddDetail("command", ToDisplayPath(a.Command)).
			AddDetail("exe_path", ToDisplayPath(res.Exe))
		if res.Unquoted {
			f.AddDetail("unquoted", true)
		}
		if len(res.Writable) > 0 {
			f.AddDetail("writable_segments", strings.Join(res.Writable, "; "))
		}
		if res.Level >= core.LevelHigh {
			f.Remediation = "Verify the autorun entry and remove it if it is not expected"
		}
		c.Report(f)
	}
	m.log.Debug("autoruns analyzed", "entries", len(entries))
	return nil
}

// runTasks reports tasks whose action is at least medium risk plus one
// inventory finding with the task count.
func (m *RegistryModule) runTasks(ctx context.Context, c *core.Collector) {
	tasks, err := m.src.ScheduledTasks(ctx)
	if err != nil {
		c.Skip("Scheduled tasks", err)
		return
	}
	risky := 0
	for _, t := range tasks {
		res := AssessAutorun(Autorun{Location: "Task Scheduler", Name: t.Name, Command: expandEnv(t.Command)}, m.wl, m.probe)
		if res.Level < core.LevelMedium {
			continue
		}
		risky++
		f := core.NewFinding("Task "+t.Name, "Scheduled task "+strings.Join(res.Reasons, "; "), res.Level)
		f.Category = "persistence"
		f.AddDetail("command", ToDisplayPath(t.Command)).
			AddDetail("exe_path", ToDisplayPath(res.Exe)).
			AddDetail("source", t.Source)
		if res.Unquoted {
			f.AddDetail("unquoted", true)
		}
		if len(res.Writable) > 0 {
			f.AddDetail("writable_segments", strings.Join(res.Writable, "; "))
			f.Remediation = "Restrict write access to the task's executable directory"
		}
		c.Report(f)
	}
	f := core.NewFinding("Scheduled tasks", fmt.Sprintf("Scheduled tasks collected: %d", len(tasks)), core.LevelLow)
	f.Category = "persistence"
	f.AddDetail("tasks", len(tasks)).AddDetail("flagged", risky)
	c.Report(f)
}

func (m *RegistryModule) runPolicies(ctx context.Context, c *core.Collector) {
	const installerKey = `SOFTWARE\Policies\Microsoft\Windows\Installer`
	if hklm, hkcu, err := m.src.InstallElevated(); err != nil {
		c.Skip("AlwaysInstallElevated", err)
	} else {
		level, desc := AssessInstallElevated(hklm, hkcu)
		f := core.NewFinding("AlwaysInstallElevated", desc, level)
		f.Category = "policy"
		f.AddDetail("key", installerKey).AddDetail("hklm", hklm).AddDetail("hkcu", hkcu)
		if level > core.LevelLow {
			f.Remediation = "Set AlwaysInstallElevated to 0 in both hives"
		}
		c.Report(f)
	}

	if p, err := m.src.UAC(); err != nil {
		c.Skip("UAC policy", err)
	} else {
		level, reasons := AssessUAC(p)
		desc := "UAC policy looks normal"
		if len(reasons) > 0 {
			desc = "UAC " + strings.Join(reasons, "; ")
		}
		f := core.NewFinding("UAC policy", desc, level)
		f.Category = "policy"
		f.AddDetail("EnableLUA", p.EnableLUA).
			AddDetail("ConsentPromptBehaviorAdmin", p.ConsentAdmin).
			AddDetail("ConsentPromptBehaviorUser", p.ConsentUser).
			AddDetail("PromptOnSecureDesktop", p.SecureDesktop).
			AddDetail("FilterAdministratorToken", p.FilterAdminToken)
		if level > core.LevelLow {
			f.Remediation = "Ensure UAC is enabled (EnableLUA=1); use secure desktop (PromptOnSecureDesktop=1); avoid ConsentPromptBehaviorAdmin=0"
		}
		c.Report(f)
	}

	if cfg, err := m.src.LSA(); err != nil {
		c.Skip("LSA configuration", err)
	} else {
		level, reasons, suspicious := AssessLSA(cfg)
		desc := "LSA settings look normal"
		if len(reasons) > 0 {
			desc = "LSA " + strings.Join(reasons, "; ")
		}
		f := core.NewFinding("LSA configuration", desc, level)
		f.Category = "policy"
		f.AddDetail("RunAsPPL", cfg.RunAsPPL).
			AddDetail("WDigest.UseLogonCredential", cfg.WDigestUseLogonCredential).
			AddDetail("security_packages", strings.Join(cfg.SecurityPackages, ", "))
		if len(suspicious) > 0 {
			f.AddDetail("suspicious_packages", strings.Join(suspicious, ", "))
		}
		if level > core.LevelLow {
			f.Remediation = "Enable RunAsPPL, disable WDigest UseLogonCredential and review non-default LSA packages"
		}
		c.Report(f)
	}

	if excl, err := m.src.DefenderExclusions(); err != nil {
		c.Skip("Defender exclusions", err)
	} else {
		for _, e := range excl {
			level, reason := AssessDefenderExclusion(e)
			f := core.NewFinding("Defender exclusion "+e.Value, "Windows Defender "+strings.ToLower(e.Kind)+" "+reason, level)
			f.Category = "policy"
			f.AddDetail("kind", e.Kind).AddDetail("policy", e.Policy)
			if level >= core.LevelHigh {
				f.Remediation = "Remove the exclusion or narrow it to a specific file"
			}
			c.Report(f)
		}
	}

	ifeo, spe, err := m.src.IFEO(ctx)
	if err != nil {
		c.Skip("Image File Execution Options", err)
		return
	}
	for _, e := range ifeo {
		f := core.NewFinding("IFEO "+e.Image, "Image File Execution Options debugger is set", core.LevelHigh)
		f.Category = "persistence"
		f.AddDetail("debugger", e.Debugger)
		f.Remediation = "Remove the Debugger value unless a developer set it deliberately"
		c.Report(f)
	}
	for _, e := range spe {
		f := core.NewFinding("SilentProcessExit "+e.Image, "SilentProcessExit monitor is configured", core.LevelMedium)
		f.Category = "persistence"
		f.AddDetail("reporting_mode", e.ReportingMode)
		if e.MonitorProcess != "" {
			f.AddDetail("monitor_process", e.MonitorProcess)
		}
		c.Report(f)
	}
}

var hiveAliases = map[string]string{
	"HKLM": "HKLM", "HKEY_LOCAL_MACHINE": "HKLM",
	"HKCU": "HKCU", "HKEY_CURRENT_USER": "HKCU",
	"HKU": "HKU", "HKEY_USERS": "HKU",
	"HKCR": "HKCR", "HKEY_CLASSES_ROOT": "HKCR",
}

// SplitRegistryPath splits "HKLM\SOFTWARE\X" into the canonical hive name
// and the subkey.
func SplitRegistryPath(path string) (hive, sub string, ok bool) {
	p := strings.Trim(strings.ReplaceAll(strings.TrimSpace(path), "/", `\`), `\`)
	h, rest, _ := strings.Cut(p, `\`)
	hive, ok = hiveAliases[strings.ToUpper(strings.TrimSuffix(h, ":"))]
	return hive, rest, ok
}

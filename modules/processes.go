package modules

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"corp/sysrecon/core"
	"corp/sysrecon/logger"
	"corp/sysrecon/memory"
)

/*
   =========================
   Processes
   - Nama proses sistem yang jalan di luar path sistem (masquerading) → high
   - Image di temp / downloads / appdata / /tmp                        → medium
   - (full, check_dlls) library non-sistem dari lokasi writable       → high
   =========================
*/

// ProcessInfo is one running process. Path is empty when the image path
// could not be resolved.
type ProcessInfo struct {
	PID         uint32
	PPID        uint32
	Name        string
	Path        string
	CommandLine string
}

func (p ProcessInfo) Label() string {
	return fmt.Sprintf("%s (pid %d)", p.Name, p.PID)
}

// ProcessSource enumerates processes and their loaded libraries.
type ProcessSource interface {
	Processes(ctx context.Context) ([]ProcessInfo, error)
	Modules(ctx context.Context, pid uint32) ([]string, error)
}

// AssessProcess applies the image location rules.
func AssessProcess(p ProcessInfo, wl core.Whitelist) (core.SecurityLevel, []string) {
	if p.Path == "" {
		return core.LevelLow, nil
	}
	level := core.LevelLow
	var reasons []string
	if wl.IsSystemProcess(p.Name) && !wl.IsSystemPath(DirName(p.Path)) {
		level = core.LevelHigh
		reasons = append(reasons, "system process name running outside system directories")
	}
	if IsUserWritableLocation(p.Path) {
		level = core.Max(level, core.LevelMedium)
		reasons = append(reasons, "image runs from a temporary or user download location")
	}
	return level, reasons
}

// SuspiciousModules returns the loaded libraries that are not system DLLs,
// live outside system paths, and sit in a user-writable directory.
func SuspiciousModules(paths []string, wl core.Whitelist, probe WriteProbe) []string {
	var out []string
	for _, p := range paths {
		if wl.IsSystemDLL(BaseName(p)) {
			continue
		}
		dir := DirName(p)
		if wl.IsSystemPath(dir) {
			continue
		}
		if IsUserWritableLocation(p) || (probe != nil && probe.Writable(dir)) {
			out = append(out, p)
		}
	}
	return out
}

type ProcessesModule struct {
	src       ProcessSource
	wl        core.Whitelist
	probe     WriteProbe
	checkDLLs bool
	log       *logger.Logger
}

func NewProcessesModule(src ProcessSource, wl core.Whitelist, probe WriteProbe, checkDLLs bool, log *logger.Logger) *ProcessesModule {
	if wl == nil {
		wl = core.NewSystemWhitelist()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ProcessesModule{src: src, wl: wl, probe: probe, checkDLLs: checkDLLs, log: log}
}

func (m *ProcessesModule) Kind() core.ModuleKind { return core.ModuleProcesses }

func (m *ProcessesModule) Initialize(context.Context) error {
	if m.src == nil {
		return fmt.Errorf("%w: processes module has no source", core.ErrConfigurationInvalid)
	}
	return nil
}

func (m *ProcessesModule) Run(ctx context.Context, mode core.ScanMode, c *core.Collector) error {
	procs, err := m.src.Processes(ctx)
	if err != nil {
		return fmt.Errorf("enumerate processes: %w", err)
	}
	self := uint32(os.Getpid())
	for _, p := range procs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if p.PID == 0 || p.PID == self {
			continue
		}
		whitelisted := m.wl.IsSystemProcess(p.Name) && m.wl.IsSystemPath(DirName(p.Path))

		if level, reasons := AssessProcess(p, m.wl); level > core.LevelLow && core.ShouldReport(level, whitelisted) {
			f := core.NewFinding(p.Label(), "Process "+strings.Join(reasons, "; "), level)
			f.Category = "process"
			addProcessDetails(&f, p)
			c.Report(f)
		}

		if mode != core.ScanFull || !m.checkDLLs {
			continue
		}
		mods, err := m.src.Modules(ctx, p.PID)
		if err != nil {
			c.Skip(p.Label()+" modules", err)
			continue
		}
		if bad := SuspiciousModules(mods, m.wl, m.probe); len(bad) > 0 {
			f := core.NewFinding(p.Label(), "Non-system library loaded from a user-writable location", core.LevelHigh)
			f.Category = "dll"
			addProcessDetails(&f, p)
			f.AddDetail("libraries", strings.Join(bad, "; "))
			f.Remediation = "Verify the library origin; remove write access for non-admin users on its directory"
			c.Report(f)
		}
	}
	m.log.Debug("processes analyzed", "total", len(procs))
	return nil
}

func addProcessDetails(f *core.Finding, p ProcessInfo) {
	f.AddDetail("pid", p.PID).AddDetail("ppid", p.PPID)
	if p.Path != "" {
		f.AddDetail("path", ToDisplayPath(p.Path))
	}
	if p.CommandLine != "" {
		f.AddDetail("command_line", p.CommandLine)
	}
}

// Targets turns a process source into the memory analyzer's target list,
// ordered by pid.
func Targets(src ProcessSource) memory.TargetLister {
	return func(ctx context.Context) ([]memory.Target, error) {
		procs, err := src.Processes(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]memory.Target, 0, len(procs))
		for _, p := range procs {
			out = append(out, memory.Target{PID: p.PID, Name: p.Name})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })
		return out, nil
	}
}

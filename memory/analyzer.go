package memory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"corp/sysrecon/core"
	"corp/sysrecon/logger"
)

// headSize is how much of a region is read for the PE header check.
const headSize = 4096

// Target is one process to analyze.
type Target struct {
	PID  uint32
	Name string
}

// TargetLister supplies the process id stream, normally the process
// enumerator.
type TargetLister func(ctx context.Context) ([]Target, error)

// Config is the memory section of the scan configuration.
type Config struct {
	DetectInjection bool
	ScanForMalware  bool
	CreateDumps     bool
	DumpDir         string
	// MaxDumpSize caps dumps and single region reads, in bytes.
	MaxDumpSize uint64
	Workers     int
}

// Analyzer is the memory module: it walks every target process, reports
// suspicious regions and injection indicators, and optionally dumps
// high-risk processes.
type Analyzer struct {
	cfg     Config
	scanner *RegionScanner
	sigs    *SignatureSet
	list    TargetLister
	wl      core.Whitelist
	log     *logger.Logger

	mu        sync.Mutex
	snapshots map[uint32]*ProcessMemorySnapshot
	dumps     []DumpResult
}

// NewAnalyzer wires the module. sigs and wl may be nil.
func NewAnalyzer(cfg Config, scanner *RegionScanner, sigs *SignatureSet, list TargetLister, wl core.Whitelist, log *logger.Logger) *Analyzer {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if scanner == nil {
		scanner = NewRegionScanner(nil, cfg.MaxDumpSize)
	}
	if sigs == nil {
		sigs, _ = NewSignatureSet()
	}
	if wl == nil {
		wl = core.NewSystemWhitelist()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Analyzer{
		cfg:       cfg,
		scanner:   scanner,
		sigs:      sigs,
		list:      list,
		wl:        wl,
		log:       log,
		snapshots: map[uint32]*ProcessMemorySnapshot{},
	}
}

func (a *Analyzer) Kind() core.ModuleKind { return core.ModuleMemory }

func (a *Analyzer) Initialize(ctx context.Context) error {
	if a.list == nil {
		return fmt.Errorf("%w: memory analyzer has no process source", core.ErrConfigurationInvalid)
	}
	if a.cfg.CreateDumps {
		if a.cfg.DumpDir == "" {
			return fmt.Errorf("%w: memory dumps enabled without a dump directory", core.ErrConfigurationInvalid)
		}
		if err := os.MkdirAll(a.cfg.DumpDir, 0o755); err != nil {
			a.log.Warn("memory dumps disabled", "dir", a.cfg.DumpDir, "reason", err)
			a.cfg.CreateDumps = false
		}
	}
	a.log.Debug("memory analyzer ready", "signatures", a.sigs.Len(), "workers", a.cfg.Workers)
	return nil
}

// Run analyzes every target with a bounded worker pool. Per-process
// failures are skips; only ctx ends the module early.
func (a *Analyzer) Run(ctx context.Context, mode core.ScanMode, c *core.Collector) error {
	targets, err := a.list(ctx)
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}
	self := uint32(os.Getpid())

	var g errgroup.Group
	g.SetLimit(a.cfg.Workers)
	for _, t := range targets {
		if t.PID == 0 || t.PID == self {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			if err := a.analyze(ctx, t, mode, c); err != nil && ctx.Err() == nil {
				c.Skip(targetLabel(t), err)
			}
			return nil
		})
	}
	g.Wait()
	a.log.Debug("memory scan statistics", "stats", fmt.Sprintf("%+v", a.scanner.Stats()))
	return ctx.Err()
}

// AnalyzeProcess runs the full per-process analysis outside a scan.
func (a *Analyzer) AnalyzeProcess(ctx context.Context, pid uint32, name string, mode core.ScanMode) (*ProcessMemorySnapshot, []core.Finding, []core.InjectionIndicator, error) {
	c := core.NewCollector(core.ModuleMemory.String(), "", a.log)
	t := Target{PID: pid, Name: name}
	if err := a.analyze(ctx, t, mode, c); err != nil {
		return nil, nil, nil, err
	}
	return a.Snapshot(pid), c.Findings(), c.IndicatorList(), nil
}

// Dump writes pid's readable memory to path, capped at MaxDumpSize.
func (a *Analyzer) Dump(ctx context.Context, pid uint32, path string) (DumpResult, error) {
	return a.scanner.CreateMemoryDump(ctx, pid, path, a.cfg.MaxDumpSize)
}

// Snapshot is the latest snapshot of pid, or nil.
func (a *Analyzer) Snapshot(pid uint32) *ProcessMemorySnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshots[pid]
}

func (a *Analyzer) Dumps() []DumpResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]DumpResult, len(a.dumps))
	copy(out, a.dumps)
	return out
}

func (a *Analyzer) Stats() Stats { return a.scanner.Stats() }

func targetLabel(t Target) string {
	if t.Name == "" {
		return fmt.Sprintf("pid %d", t.PID)
	}
	return fmt.Sprintf("%s (pid %d)", t.Name, t.PID)
}

/* ===== per-process analysis ===== */

func (a *Analyzer) analyze(ctx context.Context, t Target, mode core.ScanMode, c *core.Collector) error {
	pm, err := a.scanner.Open(t.PID)
	if err != nil {
		return err
	}
	defer pm.Close()

	snap, err := a.scanner.Snapshot(ctx, pm, t.PID, t.Name)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.snapshots[t.PID] = snap
	a.mu.Unlock()

	var (
		findings   []core.Finding
		indicators []core.InjectionIndicator
	)
	if a.cfg.DetectInjection {
		indicators = DetectInjection(snap)
	}

	// content inspection only in full mode
	if mode == core.ScanFull {
		f, ind := a.inspectContent(ctx, pm, snap)
		findings = append(findings, f...)
		indicators = append(indicators, ind...)
	}

	covered := map[uint64]bool{}
	for _, ind := range indicators {
		covered[ind.Address] = true
		findings = append(findings, indicatorFinding(snap, ind))
	}
	for _, sr := range snap.SuspiciousRegions() {
		if covered[sr.Region.BaseAddress] {
			continue
		}
		findings = append(findings, regionFinding(snap, sr))
	}
	if len(snap.SuspiciousRegions()) == 0 && snap.OverallRisk() >= core.LevelMedium {
		f := core.NewFinding(snap.Label(), "Unusually large executable memory footprint", snap.OverallRisk())
		f.Category = "memory"
		f.AddDetail("pid", snap.ProcessID).
			AddDetail("executable_bytes", snap.ExecutableBytes()).
			AddDetail("regions", len(snap.Regions))
		findings = append(findings, f)
	}

	whitelisted := a.wl.IsSystemProcess(strings.ToLower(t.Name))
	kept := findings[:0]
	for _, f := range findings {
		if core.ShouldReport(f.Severity, whitelisted) {
			kept = append(kept, f)
		}
	}
	findings = kept

	if mode == core.ScanFull && a.cfg.CreateDumps && snap.OverallRisk() >= core.LevelHigh {
		path := DumpFileName(a.cfg.DumpDir, t.PID, t.Name)
		res, err := a.scanner.WriteDump(ctx, pm, snap.Regions, path, a.cfg.MaxDumpSize)
		if err != nil {
			a.log.Warn("memory dump failed", "pid", t.PID, "path", path, "reason", err)
		} else {
			a.mu.Lock()
			a.dumps = append(a.dumps, res)
			a.mu.Unlock()
			for i := range findings {
				findings[i].AddDetail("dump", res.Path)
			}
		}
	}

	for _, ind := range indicators {
		c.Indicate(ind)
	}
	for _, f := range findings {
		c.Report(f)
	}
	return nil
}

// inspectContent reads non-image executable regions and looks for loaded
// PE images and shellcode idioms. Reads above the cap are skipped; short
// reads are analyzed as far as they go.
func (a *Analyzer) inspectContent(ctx context.Context, pm ProcessMemory, snap *ProcessMemorySnapshot) ([]core.Finding, []core.InjectionIndicator) {
	var (
		findings   []core.Finding
		indicators []core.InjectionIndicator
	)
	for _, r := range snap.Regions {
		if ctx.Err() != nil {
			break
		}
		if !r.IsExecutable() || r.AllocationType == AllocImage || !r.IsReadable() {
			continue
		}

		if a.cfg.DetectInjection {
			head, err := a.scanner.ReadHead(pm, r, headSize)
			if err == nil || errors.Is(err, core.ErrTruncated) {
				if ind, ok := DetectLoadedImage(snap, r, head); ok {
					indicators = append(indicators, ind)
				}
			}
		}
		if !a.cfg.ScanForMalware {
			continue
		}
		buf, err := a.scanner.ReadRegion(pm, r)
		if err != nil {
			if errors.Is(err, ErrRegionTooLarge) {
				a.log.Debug("region too large for content scan", "pid", snap.ProcessID, "region", r.String())
				continue
			}
			if !errors.Is(err, core.ErrTruncated) {
				a.log.Debug("region read failed", "pid", snap.ProcessID, "region", r.String(), "reason", err)
				continue
			}
		}
		matches := append(a.sigs.Shellcode(buf), a.sigs.Malware(buf)...)
		if len(matches) == 0 {
			continue
		}
		findings = append(findings, matchFinding(snap, r, matches))
	}
	return findings, indicators
}

/* ===== finding builders ===== */

var injectionTitles = map[core.InjectionKind]string{
	core.DllInjection:     "Possible code injection",
	core.ProcessHollowing: "Possible process hollowing",
	core.ManualMap:        "Manually mapped PE image",
	core.ReflectiveLoad:   "Reflectively loaded PE image",
}

func indicatorFinding(s *ProcessMemorySnapshot, ind core.InjectionIndicator) core.Finding {
	f := core.NewFinding(s.Label(), injectionTitles[ind.Kind], ind.Severity)
	f.Category = "injection"
	f.Remediation = "Investigate the process; compare with the on-disk image and capture a memory dump"
	f.AddDetail("pid", ind.ProcessID).
		AddDetail("kind", ind.Kind).
		AddDetail("address", fmt.Sprintf("0x%x", ind.Address)).
		AddDetail("size", ind.Size).
		AddDetail("evidence", ind.Evidence)
	if r, ok := s.RegionAt(ind.Address); ok {
		f.AddDetail("protection", r.Protection).AddDetail("allocation", r.AllocationType)
	}
	return f
}

func regionFinding(s *ProcessMemorySnapshot, sr SuspiciousRegion) core.Finding {
	r := sr.Region
	desc := "Executable private memory region"
	if r.IsWritable() {
		desc = "Writable and executable (RWX) memory region"
	}
	f := core.NewFinding(s.Label(), desc, sr.Level)
	f.Category = "memory"
	f.AddDetail("pid", s.ProcessID).
		AddDetail("address", fmt.Sprintf("0x%x", r.BaseAddress)).
		AddDetail("size", r.Size).
		AddDetail("protection", r.Protection).
		AddDetail("allocation", r.AllocationType)
	if r.Path != "" {
		f.AddDetail("path", r.Path)
	}
	return f
}

func matchFinding(s *ProcessMemorySnapshot, r MemoryRegion, matches []Match) core.Finding {
	sort.Slice(matches, func(i, j int) bool { return matches[i].Offset < matches[j].Offset })
	names := make([]string, 0, len(matches))
	sev := core.LevelLow
	for _, m := range matches {
		names = append(names, m.Signature)
		sev = core.Max(sev, m.Severity)
	}
	f := core.NewFinding(s.Label(), "Shellcode or malware pattern in executable memory", sev)
	f.Category = "signature"
	f.AddDetail("pid", s.ProcessID).
		AddDetail("address", fmt.Sprintf("0x%x", r.BaseAddress)).
		AddDetail("first_offset", fmt.Sprintf("0x%x", matches[0].Offset)).
		AddDetail("signatures", strings.Join(names, ","))
	return f
}

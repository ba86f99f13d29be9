package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"corp/sysrecon/core"
	"corp/sysrecon/logger"
)

func listOf(targets ...Target) TargetLister {
	return func(context.Context) ([]Target, error) { return targets, nil }
}

func fullConfig() Config {
	return Config{DetectInjection: true, ScanForMalware: true, Workers: 2}
}

func runAnalyzer(t *testing.T, a *Analyzer, mode core.ScanMode) *core.Collector {
	t.Helper()
	if err := a.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	c := core.NewCollector("memory", "scan-1", logger.Nop())
	if err := a.Run(context.Background(), mode, c); err != nil {
		t.Fatal(err)
	}
	return c
}

func TestAnalyzerSingleRWXRegionGivesOneCriticalFinding(t *testing.T) {
	p := newFake(region(0x10000, 4096, rwx, AllocPrivate))
	a := NewAnalyzer(fullConfig(), NewRegionScanner(fakeOpener{100: p}, 0), nil,
		listOf(Target{PID: 100, Name: "victim.exe"}), nil, logger.Nop())

	c := runAnalyzer(t, a, core.ScanFull)
	findings := c.Findings()
	if len(findings) != 1 {
		t.Fatalf("findings = %+v", findings)
	}
	if findings[0].Severity != core.LevelCritical || findings[0].Module != "memory" {
		t.Errorf("finding = %+v", findings[0])
	}
	if got := a.Snapshot(100).OverallRisk(); got < core.LevelHigh {
		t.Errorf("overall risk = %v", got)
	}
	if inds := c.IndicatorList(); len(inds) != 1 || inds[0].Kind != core.DllInjection {
		t.Errorf("indicators = %+v", inds)
	}
}

func TestAnalyzerWithoutInjectionReportsSuspiciousRegion(t *testing.T) {
	p := newFake(region(0x10000, 4096, rwx, AllocPrivate), region(0x20000, 4096, rx, AllocImage))
	cfg := fullConfig()
	cfg.DetectInjection = false
	a := NewAnalyzer(cfg, NewRegionScanner(fakeOpener{100: p}, 0), nil, listOf(Target{PID: 100, Name: "x"}), nil, nil)

	findings := runAnalyzer(t, a, core.ScanFull).Findings()
	if len(findings) != 1 || findings[0].Severity != core.LevelCritical {
		t.Fatalf("findings = %+v", findings)
	}
	if v, _ := findings[0].Details.Get("protection"); v != "rwx" {
		t.Errorf("protection detail = %q", v)
	}
}

func TestAnalyzerContentInspection(t *testing.T) {
	shell := region(0x10000, 0x1000, rx, AllocMapped)
	loaded := region(0x20000, 0x1000, rx, AllocPrivate)
	p := newFake(shell, loaded)
	sc := make([]byte, 0x1000)
	copy(sc[0x100:], []byte{0x64, 0xA1, 0x30, 0x00, 0x00, 0x00})
	p.data[shell.BaseAddress] = sc
	p.data[loaded.BaseAddress] = minimalPE(0x1000, true)

	a := NewAnalyzer(fullConfig(), NewRegionScanner(fakeOpener{9: p}, 0), nil, listOf(Target{PID: 9, Name: "host.exe"}), nil, nil)
	c := runAnalyzer(t, a, core.ScanFull)

	var sawSig, sawManual bool
	for _, f := range c.Findings() {
		if f.Category == "signature" {
			sawSig = true
			if v, _ := f.Details.Get("signatures"); v != "peb_access_x86" {
				t.Errorf("signatures = %q", v)
			}
		}
		if k, _ := f.Details.Get("kind"); k == "manual_map" {
			sawManual = true
		}
	}
	if !sawSig || !sawManual {
		t.Errorf("signature=%v manual_map=%v findings=%+v", sawSig, sawManual, c.Findings())
	}
}

func TestAnalyzerQuickModeReadsNoContent(t *testing.T) {
	p := newFake(region(0x10000, 0x1000, rx, AllocPrivate))
	p.data[0x10000] = minimalPE(0x1000, false)
	a := NewAnalyzer(fullConfig(), NewRegionScanner(fakeOpener{9: p}, 0), nil, listOf(Target{PID: 9}), nil, nil)
	c := runAnalyzer(t, a, core.ScanQuick)
	if p.readCount() != 0 {
		t.Errorf("quick mode read content %d times", p.readCount())
	}
	if len(c.Findings()) != 1 {
		t.Errorf("findings = %+v", c.Findings())
	}
}

func TestAnalyzerSkipsInaccessibleProcesses(t *testing.T) {
	p := newFake(region(0x10000, 0x1000, rx, AllocImage))
	log := logger.Nop()
	a := NewAnalyzer(fullConfig(), NewRegionScanner(fakeOpener{2: p}, 0), nil,
		listOf(Target{PID: 0, Name: "idle"}, Target{PID: 4, Name: "System"}, Target{PID: 2, Name: "ok"}), nil, log)
	if err := a.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	c := core.NewCollector("memory", "scan-1", log)
	if err := a.Run(context.Background(), core.ScanFull, c); err != nil {
		t.Fatal(err)
	}
	skipped := c.SkippedItems()
	if len(skipped) != 1 || skipped[0].Item != "System (pid 4)" {
		t.Errorf("skipped = %+v", skipped)
	}
	if log.Count(logger.LevelWarn) != 0 {
		t.Error("access denied should not warn")
	}
}

func TestAnalyzerListFailureFailsModule(t *testing.T) {
	a := NewAnalyzer(fullConfig(), nil, nil, func(context.Context) ([]Target, error) {
		return nil, errors.New("snapshot failed")
	}, nil, nil)
	c := core.NewCollector("memory", "", nil)
	if err := a.Run(context.Background(), core.ScanFull, c); err == nil {
		t.Error("expected error")
	}
}

func TestAnalyzerInitializeRequiresSource(t *testing.T) {
	a := NewAnalyzer(fullConfig(), nil, nil, nil, nil, nil)
	if err := a.Initialize(context.Background()); !errors.Is(err, core.ErrConfigurationInvalid) {
		t.Errorf("err = %v", err)
	}
}

func TestAnalyzerDumpsHighRiskProcesses(t *testing.T) {
	dir := t.TempDir()
	p := newFake(region(0x10000, 0x1000, rwx, AllocPrivate), region(0x20000, 0x1000, ProtRead, AllocImage))
	cfg := fullConfig()
	cfg.CreateDumps = true
	cfg.DumpDir = dir
	cfg.MaxDumpSize = 0x1800
	a := NewAnalyzer(cfg, NewRegionScanner(fakeOpener{77: p}, 0), nil, listOf(Target{PID: 77, Name: "evil.exe"}), nil, nil)
	c := runAnalyzer(t, a, core.ScanFull)

	dumps := a.Dumps()
	if len(dumps) != 1 {
		t.Fatalf("dumps = %+v", dumps)
	}
	d := dumps[0]
	if d.Path != filepath.Join(dir, "77_evil.exe.dmp") || d.Bytes != 0x1800 || !d.Truncated || d.Regions != 2 {
		t.Errorf("dump = %+v", d)
	}
	info, err := os.Stat(d.Path)
	if err != nil || info.Size() != int64(0x1800+2*16) {
		t.Errorf("dump file: %v, %v", info, err)
	}
	if v, ok := c.Findings()[0].Details.Get("dump"); !ok || v != d.Path {
		t.Errorf("finding not linked to dump: %+v", c.Findings()[0])
	}
}

func TestCreateMemoryDump(t *testing.T) {
	p := newFake(region(0x10000, 0x10, rw, AllocPrivate), region(0x20000, 0x10, ProtExecute, AllocImage))
	p.data[0x10000] = []byte("0123456789abcdef")
	s := NewRegionScanner(fakeOpener{3: p}, 0)
	path := filepath.Join(t.TempDir(), "sub", DumpFileName("", 3, `C:\x y.exe`))
	res, err := s.CreateMemoryDump(context.Background(), 3, path, 0)
	if err != nil {
		t.Fatal(err)
	}
	// the execute-only region is not readable
	if res.Regions != 1 || res.Bytes != 16 || res.Truncated {
		t.Errorf("res = %+v", res)
	}
	data, _ := os.ReadFile(path)
	if len(data) != 32 || string(data[16:]) != "0123456789abcdef" {
		t.Errorf("dump content = %q", data)
	}
	if filepath.Base(path) != "3_C__x_y.exe.dmp" {
		t.Errorf("name = %s", filepath.Base(path))
	}
}

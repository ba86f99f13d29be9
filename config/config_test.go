package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"corp/sysrecon/core"
	"corp/sysrecon/logger"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Timeout() != 300*time.Second {
		t.Errorf("timeout = %v", cfg.Timeout())
	}
	if cfg.MemoryEnabled() {
		t.Error("memory module should be off by default")
	}
	want := []core.ModuleKind{core.ModuleAccounts, core.ModuleServices, core.ModuleProcesses, core.ModuleNetwork, core.ModuleRegistry}
	got := cfg.EnabledModules()
	if len(got) != len(want) {
		t.Fatalf("enabled = %v", got)
	}
	if cfg.MaxDumpBytes() != 100<<20 {
		t.Errorf("max dump = %d", cfg.MaxDumpBytes())
	}
}

func TestParseOverridesDefaults(t *testing.T) {
	doc := `
general:
  workers: 8
  timeout_seconds: 60
memory:
  enabled: true
  max_dump_size_mb: 512
output:
  formats: [json]
  min_severity: high
registry:
  custom_keys:
    - HKLM\SOFTWARE\Vendor\Agent
whitelist:
  processes: [agent.exe]
log:
  level: debug
`
	cfg, err := Parse([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.General.Workers != 8 || cfg.Timeout() != time.Minute {
		t.Errorf("general = %+v", cfg.General)
	}
	if !cfg.ModuleEnabled(core.ModuleMemory) || cfg.MaxDumpBytes() != 512<<20 {
		t.Errorf("memory = %+v", cfg.Memory)
	}
	// untouched keys keep their defaults
	if !cfg.Accounts.Enabled || !cfg.Memory.ScanForMalware {
		t.Error("defaults lost")
	}
	if cfg.MinSeverity() != core.LevelHigh || cfg.LogLevel() != logger.LevelDebug {
		t.Errorf("min=%v log=%v", cfg.MinSeverity(), cfg.LogLevel())
	}
	if len(cfg.Registry.CustomKeys) != 1 {
		t.Errorf("custom keys = %v", cfg.Registry.CustomKeys)
	}
	if !cfg.NewWhitelist().IsSystemProcess("agent.exe") {
		t.Error("whitelist extension not applied")
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Default()
	cfg.General.Workers = 0
	cfg.General.TimeoutSeconds = 5
	cfg.Memory.MaxDumpSizeMB = 4096
	cfg.Output.Directory = " "
	cfg.Output.Formats = []string{"pdf"}
	cfg.Output.MinSeverity = "severe"
	cfg.Log.Level = "loud"
	cfg.Network.BackdoorPorts = []int{70000}

	err := cfg.Validate()
	if !errors.Is(err, core.ErrConfigurationInvalid) {
		t.Fatalf("err = %v", err)
	}
	for _, want := range []string{"workers", "timeout_seconds", "max_dump_size_mb", "directory", "pdf", "min_severity", "log.level", "70000"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}
}

func TestValidateNeedsModuleAndFormat(t *testing.T) {
	cfg := Default()
	cfg.EnableOnly()
	cfg.Output.Formats = nil
	err := cfg.Validate()
	if !errors.Is(err, core.ErrConfigurationInvalid) {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(err.Error(), "module") || !strings.Contains(err.Error(), "format") {
		t.Errorf("err = %v", err)
	}
}

func TestEnableOnly(t *testing.T) {
	cfg := Default()
	cfg.Processes.AnalyzeMemory = true
	cfg.EnableOnly(core.ModuleNetwork)
	got := cfg.EnabledModules()
	if len(got) != 1 || got[0] != core.ModuleNetwork {
		t.Errorf("enabled = %v", got)
	}
	cfg.EnableOnly(core.ModuleMemory, core.ModuleAccounts)
	if got := cfg.EnabledModules(); len(got) != 2 || got[1] != core.ModuleMemory {
		t.Errorf("enabled = %v", got)
	}
}

func TestLoadAndSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", DefaultFile)
	cfg := Default()
	cfg.General.Workers = 2
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}
	back, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if back.General.Workers != 2 {
		t.Errorf("workers = %d", back.General.Workers)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); !errors.Is(err, core.ErrConfigurationInvalid) {
		t.Errorf("missing file err = %v", err)
	}
	if err := os.WriteFile(path, []byte("general: ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.Is(err, core.ErrConfigurationInvalid) {
		t.Errorf("bad yaml err = %v", err)
	}
}

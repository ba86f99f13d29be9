package modules

import (
	"errors"
	"path/filepath"
	"testing"

	"corp/sysrecon/config"
	"corp/sysrecon/core"
)

func TestFactoriesFollowConfig(t *testing.T) {
	cfg := config.Default()
	f := Factories(cfg, core.NewSystemWhitelist(), nil)
	for _, k := range []core.ModuleKind{core.ModuleAccounts, core.ModuleServices, core.ModuleProcesses, core.ModuleNetwork, core.ModuleRegistry} {
		if f[k] == nil {
			t.Errorf("%s factory missing", k)
		}
	}
	if f[core.ModuleMemory] != nil {
		t.Error("memory is off by default")
	}

	cfg.EnableOnly(core.ModuleProcesses)
	cfg.Processes.AnalyzeMemory = true
	f = Factories(cfg, nil, nil)
	if len(f) != 2 || f[core.ModuleMemory] == nil {
		t.Errorf("processes.analyze_memory should enable memory, got %d factories", len(f))
	}
	m, err := f[core.ModuleMemory]()
	if err != nil || m.Kind() != core.ModuleMemory {
		t.Errorf("memory factory = %v, %v", m, err)
	}
}

func TestMemoryFactoryBadSignatures(t *testing.T) {
	cfg := config.Default()
	cfg.Memory.Enabled = true
	cfg.Memory.SignaturesFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := Factories(cfg, nil, nil)[core.ModuleMemory]()
	if !errors.Is(err, core.ErrConfigurationInvalid) {
		t.Errorf("missing signatures file: %v", err)
	}
}

package modules

import (
	"fmt"
	"path/filepath"

	"corp/sysrecon/config"
	"corp/sysrecon/core"
	"corp/sysrecon/logger"
	"corp/sysrecon/memory"
)

// Factories builds one factory per module enabled in cfg, backed by the
// platform sources. The scanner calls them during Initialize.
func Factories(cfg *config.Config, wl core.Whitelist, log *logger.Logger) map[core.ModuleKind]core.ModuleFactory {
	if log == nil {
		log = logger.Nop()
	}
	out := map[core.ModuleKind]core.ModuleFactory{}
	if cfg.Accounts.Enabled {
		out[core.ModuleAccounts] = func() (core.Module, error) {
			return NewAccountsModule(DefaultAccountSource(), cfg.Accounts.EnumerateGroups, log), nil
		}
	}
	if cfg.Services.Enabled {
		out[core.ModuleServices] = func() (core.Module, error) {
			return NewServicesModule(DefaultServiceSource(), wl, DefaultProbe(),
				cfg.Services.CheckPermissions, cfg.Services.AnalyzeStartup, log), nil
		}
	}
	if cfg.Processes.Enabled {
		out[core.ModuleProcesses] = func() (core.Module, error) {
			return NewProcessesModule(DefaultProcessSource(), wl, DefaultProbe(),
				cfg.Processes.CheckDLLs, log), nil
		}
	}
	if cfg.Network.Enabled {
		out[core.ModuleNetwork] = func() (core.Module, error) {
			return NewNetworkModule(DefaultNetworkSource(), wl, cfg.Network.BackdoorPorts,
				cfg.Network.ScanListeningPorts, cfg.Network.AnalyzeConnections, log), nil
		}
	}
	if cfg.Registry.Enabled {
		out[core.ModuleRegistry] = func() (core.Module, error) {
			return NewRegistryModule(DefaultRegistrySource(), wl, DefaultProbe(),
				cfg.Registry.ScanStartupKeys, cfg.Registry.AnalyzePolicies, cfg.Registry.CustomKeys,
				log), nil
		}
	}
	if cfg.MemoryEnabled() {
		out[core.ModuleMemory] = func() (core.Module, error) {
			a, err := NewMemoryAnalyzer(cfg, wl, log)
			if err != nil {
				return nil, err
			}
			return a, nil
		}
	}
	return out
}

// NewMemoryAnalyzer wires the memory analyzer to the process enumerator.
// Injection detection is on when either the memory or the processes
// section asks for it.
func NewMemoryAnalyzer(cfg *config.Config, wl core.Whitelist, log *logger.Logger) (*memory.Analyzer, error) {
	var extra []memory.Signature
	if cfg.Memory.SignaturesFile != "" {
		sigs, err := memory.LoadSignatures(cfg.Memory.SignaturesFile)
		if err != nil {
			return nil, err
		}
		extra = sigs
	}
	set, err := memory.NewSignatureSet(extra...)
	if err != nil {
		return nil, fmt.Errorf("signatures: %w", err)
	}
	mc := memory.Config{
		DetectInjection: cfg.Memory.DetectInjection || cfg.Processes.DetectInjection,
		ScanForMalware:  cfg.Memory.ScanForMalware,
		CreateDumps:     cfg.Memory.CreateDumps,
		DumpDir:         filepath.Join(cfg.Output.Directory, "dumps"),
		MaxDumpSize:     cfg.MaxDumpBytes(),
		Workers:         cfg.General.Workers,
	}
	scanner := memory.NewRegionScanner(memory.DefaultOpener(), mc.MaxDumpSize)
	return memory.NewAnalyzer(mc, scanner, set, Targets(DefaultProcessSource()), wl, log), nil
}

package core

import (
	"context"
	"fmt"
	"strings"
)

// ModuleKind identifies an enumerator. The numeric order is the execution
// order within a scan.
type ModuleKind int

const (
	ModuleAccounts ModuleKind = iota
	ModuleServices
	ModuleProcesses
	ModuleNetwork
	ModuleRegistry
	ModuleMemory
)

var moduleNames = [...]string{"accounts", "services", "processes", "network", "registry", "memory"}

func (k ModuleKind) String() string {
	if k < ModuleAccounts || k > ModuleMemory {
		return fmt.Sprintf("module(%d)", int(k))
	}
	return moduleNames[k]
}

// AllModules returns every kind in execution order.
func AllModules() []ModuleKind {
	return []ModuleKind{ModuleAccounts, ModuleServices, ModuleProcesses, ModuleNetwork, ModuleRegistry, ModuleMemory}
}

func ParseModuleKind(s string) (ModuleKind, error) {
	n := strings.ToLower(strings.TrimSpace(s))
	for i, name := range moduleNames {
		if n == name {
			return ModuleKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown module %q", s)
}

// ScanMode selects the per-module workload. Quick mode runs only the
// cheapest enumeration call of each module.
type ScanMode int

const (
	ScanFull ScanMode = iota
	ScanQuick
)

func (m ScanMode) String() string {
	if m == ScanQuick {
		return "quick"
	}
	return "full"
}

// Module is one enumerator. Run must honour ctx and report through c;
// per-artifact failures go to c.Skip, and a returned error marks the whole
// module as failed.
type Module interface {
	Kind() ModuleKind
	Initialize(ctx context.Context) error
	Run(ctx context.Context, mode ScanMode, c *Collector) error
}

// ModuleFactory builds a module during Initialize. Returning an error that
// wraps ErrConfigurationInvalid aborts initialization; any other error only
// disables that module.
type ModuleFactory func() (Module, error)

package memory

import (
	"fmt"

	"corp/sysrecon/core"
)

// Injection heuristics are approximate (no on-disk image diffing). False
// positives are expected and every positive carries its evidence.

const (
	evidenceUnbacked  = "unbacked executable memory"
	evidenceHollowing = "image base is private executable memory instead of an image mapping"
)

func indicator(s *ProcessMemorySnapshot, kind core.InjectionKind, r MemoryRegion, sev core.SecurityLevel, evidence string) core.InjectionIndicator {
	return core.InjectionIndicator{
		Kind:      kind,
		ProcessID: s.ProcessID,
		Process:   s.ProcessName,
		Address:   r.BaseAddress,
		Size:      r.Size,
		Evidence:  evidence,
		Severity:  sev,
	}
}

// DetectHollowing flags a process whose region at the nominal image base
// is private and executable.
func DetectHollowing(s *ProcessMemorySnapshot) (core.InjectionIndicator, bool) {
	if s.ImageBase == 0 {
		return core.InjectionIndicator{}, false
	}
	r, ok := s.RegionAt(s.ImageBase)
	if !ok || r.State != StateCommitted {
		return core.InjectionIndicator{}, false
	}
	if r.AllocationType != AllocPrivate || !r.IsExecutable() {
		return core.InjectionIndicator{}, false
	}
	return indicator(s, core.ProcessHollowing, r, core.LevelCritical,
		fmt.Sprintf("%s (0x%x)", evidenceHollowing, s.ImageBase)), true
}

// DetectDllInjection flags every committed, executable, private region.
// A region already reported as hollowing is not reported twice.
func DetectDllInjection(s *ProcessMemorySnapshot) []core.InjectionIndicator {
	var out []core.InjectionIndicator
	hollow, isHollow := DetectHollowing(s)
	for _, r := range s.Regions {
		if r.State != StateCommitted || !r.IsExecutable() || r.AllocationType != AllocPrivate {
			continue
		}
		if isHollow && r.BaseAddress == hollow.Address {
			continue
		}
		out = append(out, indicator(s, core.DllInjection, r, core.LevelCritical, evidenceUnbacked))
	}
	return out
}

// DetectInjection runs both structural heuristics.
func DetectInjection(s *ProcessMemorySnapshot) []core.InjectionIndicator {
	var out []core.InjectionIndicator
	if ind, ok := DetectHollowing(s); ok {
		out = append(out, ind)
	}
	return append(out, DetectDllInjection(s)...)
}

// DetectLoadedImage looks at the first bytes of a non-image executable
// region. A PE header there means a module was loaded without the loader:
// ReflectiveLoad when the region is also writable, ManualMap otherwise.
func DetectLoadedImage(s *ProcessMemorySnapshot, r MemoryRegion, head []byte) (core.InjectionIndicator, bool) {
	if !r.IsExecutable() || r.AllocationType == AllocImage {
		return core.InjectionIndicator{}, false
	}
	h, ok := ParsePEHeader(head)
	if !ok {
		return core.InjectionIndicator{}, false
	}
	what := "PE image"
	if h.IsDLL() {
		what = "PE DLL image"
	}
	if r.IsWritable() {
		return indicator(s, core.ReflectiveLoad, r, core.LevelCritical,
			fmt.Sprintf("%s header in unbacked RWX memory", what)), true
	}
	return indicator(s, core.ManualMap, r, core.LevelHigh,
		fmt.Sprintf("%s header in unbacked executable memory", what)), true
}

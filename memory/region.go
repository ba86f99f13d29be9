// Package memory walks a foreign process's address space, classifies each
// committed region and inspects region contents for injected code.
//
// Addresses are plain uint64 values. Contents are always copied into a
// buffer owned by the caller; nothing here hands out a pointer into the
// target process.
package memory

import (
	"fmt"
	"strings"
	"time"

	"corp/sysrecon/core"
)

// Protection is a platform-neutral protection bitset.
type Protection uint8

const (
	ProtRead Protection = 1 << iota
	ProtWrite
	ProtExecute
	ProtCopyOnWrite
	ProtGuard
)

// String renders the bitset like a /proc maps perms field ("rwx", "r-x").
func (p Protection) String() string {
	b := []byte("---")
	if p&ProtRead != 0 {
		b[0] = 'r'
	}
	if p&ProtWrite != 0 {
		b[1] = 'w'
	}
	if p&ProtExecute != 0 {
		b[2] = 'x'
	}
	s := string(b)
	if p&ProtCopyOnWrite != 0 {
		s += "c"
	}
	if p&ProtGuard != 0 {
		s += "g"
	}
	return s
}

// AllocationType says what backs a region.
type AllocationType int

const (
	AllocPrivate AllocationType = iota
	AllocImage
	AllocMapped
)

func (a AllocationType) String() string {
	switch a {
	case AllocImage:
		return "image"
	case AllocMapped:
		return "mapped"
	default:
		return "private"
	}
}

// RegionState mirrors MEM_COMMIT / MEM_RESERVE / MEM_FREE.
type RegionState int

const (
	StateFree RegionState = iota
	StateReserved
	StateCommitted
)

func (s RegionState) String() string {
	switch s {
	case StateCommitted:
		return "committed"
	case StateReserved:
		return "reserved"
	default:
		return "free"
	}
}

// MemoryRegion is one contiguous, uniformly protected span.
type MemoryRegion struct {
	BaseAddress    uint64         `json:"base_address"`
	Size           uint64         `json:"size"`
	Protection     Protection     `json:"-"`
	AllocationType AllocationType `json:"-"`
	State          RegionState    `json:"-"`
	// AllocationBase groups regions from one VirtualAlloc / one mapping.
	AllocationBase uint64 `json:"allocation_base,omitempty"`
	// Path of the backing file, when the platform knows it.
	Path string `json:"path,omitempty"`
}

func (r MemoryRegion) IsExecutable() bool { return r.Protection&ProtExecute != 0 }

// IsWritable counts copy-on-write as writable.
func (r MemoryRegion) IsWritable() bool {
	return r.Protection&(ProtWrite|ProtCopyOnWrite) != 0
}

func (r MemoryRegion) IsReadable() bool {
	return r.Protection&ProtRead != 0 && r.Protection&ProtGuard == 0
}

func (r MemoryRegion) ContainsCode() bool { return r.IsExecutable() }

// End is the first address past the region.
func (r MemoryRegion) End() uint64 { return r.BaseAddress + r.Size }

// Overlaps reports whether the two half-open ranges intersect.
func (r MemoryRegion) Overlaps(o MemoryRegion) bool {
	return r.BaseAddress < o.End() && o.BaseAddress < r.End()
}

func (r MemoryRegion) String() string {
	s := fmt.Sprintf("0x%x-0x%x %s %s", r.BaseAddress, r.End(), r.Protection, r.AllocationType)
	if r.Path != "" {
		s += " " + r.Path
	}
	return s
}

// ProcessCounters are the aggregate counters of a snapshot.
type ProcessCounters struct {
	WorkingSet   uint64 `json:"working_set"`
	PrivateBytes uint64 `json:"private_bytes"`
}

// SuspiciousRegion is a region whose own classification is High or above.
type SuspiciousRegion struct {
	Region MemoryRegion
	Level  core.SecurityLevel
}

// ProcessMemorySnapshot is the immutable result of one process walk.
// A later scan of the same process builds a new snapshot.
type ProcessMemorySnapshot struct {
	ProcessID   uint32
	ProcessName string
	ImageBase   uint64
	Regions     []MemoryRegion
	Counters    ProcessCounters
	TakenAt     time.Time

	suspicious      []SuspiciousRegion
	executableBytes uint64
	overall         core.SecurityLevel
}

// NewSnapshot classifies every region and derives the overall risk.
// Regions must already be address ordered.
func NewSnapshot(pid uint32, name string, imageBase uint64, regions []MemoryRegion, counters ProcessCounters) *ProcessMemorySnapshot {
	s := &ProcessMemorySnapshot{
		ProcessID:   pid,
		ProcessName: name,
		ImageBase:   imageBase,
		Regions:     regions,
		Counters:    counters,
		TakenAt:     time.Now(),
	}
	for _, r := range regions {
		if r.IsExecutable() {
			s.executableBytes += r.Size
		}
		if lvl := ClassifyRegion(r); IsSuspicious(lvl) {
			s.suspicious = append(s.suspicious, SuspiciousRegion{Region: r, Level: lvl})
		}
	}
	s.overall = OverallRisk(s.suspicious, s.executableBytes)
	return s
}

// SuspiciousRegions returns a copy of the flagged regions.
func (s *ProcessMemorySnapshot) SuspiciousRegions() []SuspiciousRegion {
	out := make([]SuspiciousRegion, len(s.suspicious))
	copy(out, s.suspicious)
	return out
}

func (s *ProcessMemorySnapshot) ExecutableBytes() uint64 { return s.executableBytes }

func (s *ProcessMemorySnapshot) OverallRisk() core.SecurityLevel { return s.overall }

// RegionAt returns the region containing addr.
func (s *ProcessMemorySnapshot) RegionAt(addr uint64) (MemoryRegion, bool) {
	for _, r := range s.Regions {
		if addr >= r.BaseAddress && addr < r.End() {
			return r, true
		}
		if r.BaseAddress > addr {
			break
		}
	}
	return MemoryRegion{}, false
}

// Label is "name (pid N)" for findings and logs.
func (s *ProcessMemorySnapshot) Label() string {
	name := strings.TrimSpace(s.ProcessName)
	if name == "" {
		return fmt.Sprintf("pid %d", s.ProcessID)
	}
	return fmt.Sprintf("%s (pid %d)", name, s.ProcessID)
}

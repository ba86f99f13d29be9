package memory

import "corp/sysrecon/core"

const (
	// LargeCodeRegion: executable regions above this are unusual.
	LargeCodeRegion = 10 << 20
	// LargeExecutableTotal: per-process executable total above this is Medium.
	LargeExecutableTotal = 50 << 20
)

// ClassifyRegion maps one region to a severity. Rules are evaluated per
// region; the most severe matching rule wins.
func ClassifyRegion(r MemoryRegion) core.SecurityLevel {
	if !r.IsExecutable() {
		return core.LevelLow
	}
	switch {
	case r.IsWritable():
		// RWX
		return core.LevelCritical
	case r.AllocationType == AllocPrivate:
		return core.LevelHigh
	case r.Size > LargeCodeRegion:
		return core.LevelMedium
	}
	return core.LevelLow
}

// IsSuspicious is true for High and Critical regions.
func IsSuspicious(level core.SecurityLevel) bool {
	return level >= core.LevelHigh
}

// OverallRisk is never lower than any suspicious region: a non-empty list
// gives at least High, and a Critical region lifts it to Critical. Without
// suspicious regions a large executable total gives Medium.
func OverallRisk(suspicious []SuspiciousRegion, executableBytes uint64) core.SecurityLevel {
	out := core.LevelLow
	if len(suspicious) > 0 {
		out = core.LevelHigh
		for _, s := range suspicious {
			out = core.Max(out, s.Level)
		}
	}
	if executableBytes > LargeExecutableTotal {
		out = core.Max(out, core.LevelMedium)
	}
	return out
}

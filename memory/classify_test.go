package memory

import (
	"testing"

	"corp/sysrecon/core"
)

func TestClassifyRegion(t *testing.T) {
	cases := []struct {
		name string
		r    MemoryRegion
		want core.SecurityLevel
	}{
		{"rwx private", region(0x1000, 4096, rwx, AllocPrivate), core.LevelCritical},
		{"rwx image", region(0x1000, 4096, rwx, AllocImage), core.LevelCritical},
		{"exec writecopy", region(0x1000, 4096, FromWindowsProtect(pageExecuteWriteCopy), AllocImage), core.LevelCritical},
		{"rx private", region(0x1000, 4096, rx, AllocPrivate), core.LevelHigh},
		{"rx mapped large", region(0x1000, 11<<20, rx, AllocMapped), core.LevelMedium},
		{"rx image exactly 10MB", region(0x1000, 10<<20, rx, AllocImage), core.LevelLow},
		{"rx image", region(0x1000, 4096, rx, AllocImage), core.LevelLow},
		{"rw private", region(0x1000, 64<<20, rw, AllocPrivate), core.LevelLow},
	}
	for _, tc := range cases {
		if got := ClassifyRegion(tc.r); got != tc.want {
			t.Errorf("%s: ClassifyRegion = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestClassifyCriticalIffRWX(t *testing.T) {
	allocs := []AllocationType{AllocPrivate, AllocImage, AllocMapped}
	sizes := []uint64{4096, 20 << 20}
	for prot := Protection(0); prot < 1<<5; prot++ {
		for _, a := range allocs {
			for _, sz := range sizes {
				r := region(0x1000, sz, prot, a)
				critical := ClassifyRegion(r) == core.LevelCritical
				if critical != (r.IsExecutable() && r.IsWritable()) {
					t.Fatalf("prot=%s alloc=%s size=%d: critical=%v", prot, a, sz, critical)
				}
			}
		}
	}
}

func TestOverallRisk(t *testing.T) {
	if got := OverallRisk(nil, 0); got != core.LevelLow {
		t.Errorf("empty = %v", got)
	}
	if got := OverallRisk(nil, 60<<20); got != core.LevelMedium {
		t.Errorf("large exec total = %v", got)
	}
	high := []SuspiciousRegion{{Level: core.LevelHigh}}
	if got := OverallRisk(high, 0); got != core.LevelHigh {
		t.Errorf("one high = %v", got)
	}
	crit := []SuspiciousRegion{{Level: core.LevelHigh}, {Level: core.LevelCritical}}
	if got := OverallRisk(crit, 60<<20); got != core.LevelCritical {
		t.Errorf("critical present = %v", got)
	}
}

func TestSnapshotOverallNeverBelowSuspicious(t *testing.T) {
	sets := [][]MemoryRegion{
		{region(0x10000, 4096, rwx, AllocPrivate)},
		{region(0x10000, 4096, rx, AllocPrivate), region(0x20000, 4096, rx, AllocImage)},
		{region(0x10000, 30<<20, rx, AllocImage), region(0x10000+30<<20, 30<<20, rx, AllocImage)},
		{region(0x10000, 4096, rw, AllocPrivate)},
	}
	for i, regions := range sets {
		s := NewSnapshot(1, "p", 0, regions, ProcessCounters{})
		for _, sr := range s.SuspiciousRegions() {
			if s.OverallRisk() < sr.Level {
				t.Errorf("set %d: overall %v below region %v", i, s.OverallRisk(), sr.Level)
			}
		}
	}
}

func TestSnapshotSingleRWXRegion(t *testing.T) {
	s := NewSnapshot(42, "victim.exe", 0, []MemoryRegion{region(0x10000, 4096, rwx, AllocPrivate)}, ProcessCounters{})
	if len(s.SuspiciousRegions()) != 1 {
		t.Fatalf("suspicious = %d", len(s.SuspiciousRegions()))
	}
	if s.OverallRisk() < core.LevelHigh {
		t.Errorf("overall = %v", s.OverallRisk())
	}
	if s.ExecutableBytes() != 4096 {
		t.Errorf("exec bytes = %d", s.ExecutableBytes())
	}
	if s.Label() != "victim.exe (pid 42)" {
		t.Errorf("label = %q", s.Label())
	}
}

func TestProtectionMapping(t *testing.T) {
	if p := FromWindowsProtect(pageExecuteReadWrite | pageGuard); p&ProtGuard == 0 || p&ProtWrite == 0 {
		t.Errorf("guard rwx = %s", p)
	}
	if p := FromWindowsProtect(pageNoAccess); p != 0 {
		t.Errorf("noaccess = %s", p)
	}
	if FromMapsPerms("r-xp") != rx || FromMapsPerms("rwxp") != rwx || FromMapsPerms("") != 0 {
		t.Error("maps perms mapping")
	}
	if FromWindowsType(memImage) != AllocImage || FromWindowsType(memMapped) != AllocMapped || FromWindowsType(memPrivate) != AllocPrivate {
		t.Error("type mapping")
	}
	if FromWindowsState(memCommit) != StateCommitted || FromWindowsState(memReserve) != StateReserved || FromWindowsState(memFree) != StateFree {
		t.Error("state mapping")
	}
	if rwx.String() != "rwx" {
		t.Errorf("String = %q", rwx.String())
	}
}

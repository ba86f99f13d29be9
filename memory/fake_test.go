package memory

import (
	"fmt"
	"sort"
	"sync"

	"corp/sysrecon/core"
)

// fakeProcess serves regions and contents from memory.
type fakeProcess struct {
	regions []MemoryRegion
	data    map[uint64][]byte // keyed by region base
	image   uint64
	lo, hi  uint64
	// failAt makes Query fail at or above this address (0 = never).
	failAt   uint64
	counters ProcessCounters

	mu     sync.Mutex
	reads  int
	closed bool
}

func newFake(regions ...MemoryRegion) *fakeProcess {
	sort.Slice(regions, func(i, j int) bool { return regions[i].BaseAddress < regions[j].BaseAddress })
	return &fakeProcess{regions: regions, data: map[uint64][]byte{}, lo: 0x10000, hi: 0x7FFFFFFEFFFF}
}

func (p *fakeProcess) Bounds() (uint64, uint64) { return p.lo, p.hi }

func (p *fakeProcess) Query(addr uint64) (MemoryRegion, error) {
	if p.failAt != 0 && addr >= p.failAt {
		return MemoryRegion{}, fmt.Errorf("query 0x%x: %w", addr, core.ErrAccessDenied)
	}
	return queryRegions(p.regions, addr, p.hi)
}

func (p *fakeProcess) ReadAt(buf []byte, addr uint64) (int, error) {
	p.mu.Lock()
	p.reads++
	p.mu.Unlock()
	for _, r := range p.regions {
		if addr < r.BaseAddress || addr >= r.End() {
			continue
		}
		content := p.data[r.BaseAddress]
		off := addr - r.BaseAddress
		if content == nil {
			// unset regions read as zeros
			content = make([]byte, r.Size)
		}
		if off >= uint64(len(content)) {
			return 0, fmt.Errorf("%w: nothing at 0x%x", core.ErrTruncated, addr)
		}
		n := copy(buf, content[off:])
		if n < len(buf) {
			return n, fmt.Errorf("%w: %d of %d", core.ErrTruncated, n, len(buf))
		}
		return n, nil
	}
	return 0, fmt.Errorf("0x%x: %w", addr, core.ErrAccessDenied)
}

func (p *fakeProcess) ImageBase() (uint64, error) {
	if p.image == 0 {
		return 0, core.ErrNotFound
	}
	return p.image, nil
}

func (p *fakeProcess) Counters() (ProcessCounters, error) { return p.counters, nil }

func (p *fakeProcess) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

func (p *fakeProcess) readCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reads
}

// fakeOpener maps pids to fake processes; unknown pids are access denied.
type fakeOpener map[uint32]*fakeProcess

func (o fakeOpener) Open(pid uint32) (ProcessMemory, error) {
	p, ok := o[pid]
	if !ok {
		return nil, fmt.Errorf("open pid %d: %w", pid, core.ErrAccessDenied)
	}
	return p, nil
}

func region(base, size uint64, prot Protection, alloc AllocationType) MemoryRegion {
	return MemoryRegion{BaseAddress: base, Size: size, Protection: prot, AllocationType: alloc, State: StateCommitted, AllocationBase: base}
}

const (
	rx  = ProtRead | ProtExecute
	rw  = ProtRead | ProtWrite
	rwx = ProtRead | ProtWrite | ProtExecute
)

// minimalPE builds a DOS stub with e_lfanew=0x80 and a PE signature there.
func minimalPE(size int, dll bool) []byte {
	b := make([]byte, size)
	b[0], b[1] = 'M', 'Z'
	b[0x3c] = 0x80
	copy(b[0x80:], "PE\x00\x00")
	b[0x84], b[0x85] = 0x64, 0x86 // amd64
	if dll {
		b[0x84+18+1] = 0x20 // IMAGE_FILE_DLL (0x2000)
	}
	b[0x84+20], b[0x84+21] = 0x0b, 0x02
	return b
}

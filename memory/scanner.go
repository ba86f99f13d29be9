package memory

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

// DefaultMaxRead caps a single region read or dump (100 MB).
const DefaultMaxRead = 100 << 20

// ErrRegionTooLarge: the region is reported structurally but its content
// is not read.
var ErrRegionTooLarge = errors.New("region exceeds read cap")

// Stats are running totals across every walk made by one RegionScanner.
// They are for operator display only.
type Stats struct {
	Processes       uint64 `json:"processes"`
	Regions         uint64 `json:"regions"`
	BytesEnumerated uint64 `json:"bytes_enumerated"`
	BytesRead       uint64 `json:"bytes_read"`
	ReadFailures    uint64 `json:"read_failures"`
}

// RegionScanner walks address spaces and reads region contents.
type RegionScanner struct {
	opener  Opener
	maxRead uint64

	processes    atomic.Uint64
	regions      atomic.Uint64
	bytesEnum    atomic.Uint64
	bytesRead    atomic.Uint64
	readFailures atomic.Uint64
}

// NewRegionScanner uses DefaultOpener when opener is nil and DefaultMaxRead
// when maxRead is zero.
func NewRegionScanner(opener Opener, maxRead uint64) *RegionScanner {
	if opener == nil {
		opener = DefaultOpener()
	}
	if maxRead == 0 {
		maxRead = DefaultMaxRead
	}
	return &RegionScanner{opener: opener, maxRead: maxRead}
}

func (s *RegionScanner) MaxRead() uint64 { return s.maxRead }

// Open opens pid through the scanner's Opener.
func (s *RegionScanner) Open(pid uint32) (ProcessMemory, error) {
	return s.opener.Open(pid)
}

// EnumerateRegions opens pid, walks it and closes the handle.
func (s *RegionScanner) EnumerateRegions(ctx context.Context, pid uint32) ([]MemoryRegion, error) {
	pm, err := s.opener.Open(pid)
	if err != nil {
		return nil, err
	}
	defer pm.Close()
	return s.Walk(ctx, pm)
}

// Walk returns the committed regions of pm in address order. A failing
// query ends the walk without an error; the regions collected so far are
// returned. Only ctx cancellation is reported, together with the partial
// list.
func (s *RegionScanner) Walk(ctx context.Context, pm ProcessMemory) ([]MemoryRegion, error) {
	lo, hi := pm.Bounds()
	var out []MemoryRegion
	s.processes.Add(1)

	for cursor := lo; cursor < hi; {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		r, err := pm.Query(cursor)
		if err != nil {
			break
		}
		end := r.End()
		// size 0, wrap-around, or a region behind the cursor: no progress
		if r.Size == 0 || end <= cursor {
			break
		}
		if r.State == StateCommitted {
			if r.BaseAddress < cursor {
				r.Size -= cursor - r.BaseAddress
				r.BaseAddress = cursor
			}
			if r.End() > hi {
				r.Size = hi - r.BaseAddress
			}
			out = append(out, r)
			s.regions.Add(1)
			s.bytesEnum.Add(r.Size)
		}
		cursor = end
	}
	return out, nil
}

// Snapshot walks pm and classifies the result. Missing image base or
// counters leave those fields zero.
func (s *RegionScanner) Snapshot(ctx context.Context, pm ProcessMemory, pid uint32, name string) (*ProcessMemorySnapshot, error) {
	regions, err := s.Walk(ctx, pm)
	if err != nil {
		return nil, err
	}
	base, _ := pm.ImageBase()
	counters, _ := pm.Counters()
	return NewSnapshot(pid, name, base, regions, counters), nil
}

// ReadRegion copies r's content. Regions above the cap return
// ErrRegionTooLarge; a short read returns the partial buffer together with
// an error wrapping core.ErrTruncated.
func (s *RegionScanner) ReadRegion(pm ProcessMemory, r MemoryRegion) ([]byte, error) {
	if r.Size > s.maxRead {
		return nil, fmt.Errorf("%w: %d bytes at 0x%x", ErrRegionTooLarge, r.Size, r.BaseAddress)
	}
	return s.read(pm, r.BaseAddress, r.Size)
}

// ReadHead reads at most n bytes from the start of r.
func (s *RegionScanner) ReadHead(pm ProcessMemory, r MemoryRegion, n uint64) ([]byte, error) {
	if r.Size < n {
		n = r.Size
	}
	return s.read(pm, r.BaseAddress, n)
}

func (s *RegionScanner) read(pm ProcessMemory, addr, size uint64) ([]byte, error) {
	buf := make([]byte, size)
	n, err := pm.ReadAt(buf, addr)
	if n > 0 {
		s.bytesRead.Add(uint64(n))
	}
	if err != nil {
		s.readFailures.Add(1)
		if n > 0 {
			return buf[:n], err
		}
		return nil, err
	}
	return buf[:n], nil
}

func (s *RegionScanner) Stats() Stats {
	return Stats{
		Processes:       s.processes.Load(),
		Regions:         s.regions.Load(),
		BytesEnumerated: s.bytesEnum.Load(),
		BytesRead:       s.bytesRead.Load(),
		ReadFailures:    s.readFailures.Load(),
	}
}

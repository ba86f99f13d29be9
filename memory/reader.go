package memory

// ProcessMemory is an open handle on one target process. Implementations
// copy contents into caller buffers only.
type ProcessMemory interface {
	// Query describes the region containing addr, or the next region above
	// it when addr falls in a gap (which is then returned as StateFree).
	Query(addr uint64) (MemoryRegion, error)
	// ReadAt copies up to len(buf) bytes from addr. A short read returns
	// n < len(buf) with an error wrapping core.ErrTruncated.
	ReadAt(buf []byte, addr uint64) (int, error)
	// ImageBase is the nominal load address of the main executable.
	ImageBase() (uint64, error)
	Counters() (ProcessCounters, error)
	// Bounds is the user-space address range to walk: [min, max).
	Bounds() (min, max uint64)
	Close() error
}

// Opener opens a process for memory inspection. Failures wrap
// core.ErrAccessDenied or core.ErrNotFound where the platform says so.
type Opener interface {
	Open(pid uint32) (ProcessMemory, error)
}

// OpenFunc adapts a function to Opener.
type OpenFunc func(pid uint32) (ProcessMemory, error)

func (f OpenFunc) Open(pid uint32) (ProcessMemory, error) { return f(pid) }

// DefaultOpener uses the platform backend.
func DefaultOpener() Opener { return OpenFunc(openProcess) }

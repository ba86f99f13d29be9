//go:build linux

package memory

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"corp/sysrecon/core"
)

const (
	minUserAddress = 0
	// x86-64 canonical user space
	maxUserAddress = 0x7FFFFFFFFFFF
)

// linuxProcess walks a maps snapshot taken at open time and reads through
// /proc/<pid>/mem.
type linuxProcess struct {
	pid     uint32
	regions []MemoryRegion
	exe     string
	mem     *os.File
}

func openProcess(pid uint32) (ProcessMemory, error) {
	dir := filepath.Join("/proc", strconv.FormatUint(uint64(pid), 10))
	f, err := os.Open(filepath.Join(dir, "maps"))
	if err != nil {
		return nil, fmt.Errorf("open pid %d: %w", pid, mapFsErr(err))
	}
	regions, err := ParseMaps(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("parse maps of pid %d: %w", pid, err)
	}
	p := &linuxProcess{pid: pid, regions: regions}
	p.exe, _ = os.Readlink(filepath.Join(dir, "exe"))
	// mem bisa ditolak walau maps terbaca (ptrace scope); baca konten jadi skip
	if m, err := os.Open(filepath.Join(dir, "mem")); err == nil {
		p.mem = m
	}
	return p, nil
}

func mapFsErr(err error) error {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %v", core.ErrAccessDenied, err)
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %v", core.ErrNotFound, err)
	}
	return err
}

func (p *linuxProcess) Bounds() (uint64, uint64) { return minUserAddress, maxUserAddress }

func (p *linuxProcess) Query(addr uint64) (MemoryRegion, error) {
	return queryRegions(p.regions, addr, maxUserAddress)
}

func (p *linuxProcess) ReadAt(buf []byte, addr uint64) (int, error) {
	if p.mem == nil {
		return 0, fmt.Errorf("read pid %d memory: %w", p.pid, core.ErrAccessDenied)
	}
	n, err := p.mem.ReadAt(buf, int64(addr))
	if err != nil {
		if n > 0 || errors.Is(err, io.EOF) {
			return n, fmt.Errorf("%w: read %d of %d bytes at 0x%x", core.ErrTruncated, n, len(buf), addr)
		}
		return 0, mapFsErr(err)
	}
	return n, nil
}

// ImageBase is the lowest mapping of the main executable.
func (p *linuxProcess) ImageBase() (uint64, error) {
	if p.exe == "" {
		return 0, fmt.Errorf("pid %d exe: %w", p.pid, core.ErrAccessDenied)
	}
	for _, r := range p.regions {
		if r.Path == p.exe {
			return r.BaseAddress, nil
		}
	}
	return 0, fmt.Errorf("pid %d: image mapping: %w", p.pid, core.ErrNotFound)
}

func (p *linuxProcess) Counters() (ProcessCounters, error) {
	f, err := os.Open(filepath.Join("/proc", strconv.FormatUint(uint64(p.pid), 10), "status"))
	if err != nil {
		return ProcessCounters{}, mapFsErr(err)
	}
	defer f.Close()
	return ParseStatusCounters(f)
}

func (p *linuxProcess) Close() error {
	if p.mem == nil {
		return nil
	}
	err := p.mem.Close()
	p.mem = nil
	return err
}

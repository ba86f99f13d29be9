package memory

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// errEndOfSpace is what a backend returns past the last mappable address.
var errEndOfSpace = errors.New("end of address space")

// ParseMaps parses /proc/<pid>/maps. Every listed mapping is committed.
//
//	00400000-00452000 r-xp 00000000 08:02 173521  /usr/bin/dbus-daemon
func ParseMaps(r io.Reader) ([]MemoryRegion, error) {
	var out []MemoryRegion
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 5 {
			continue
		}
		lo, hi, ok := strings.Cut(fields[0], "-")
		if !ok {
			return nil, fmt.Errorf("bad address range %q", fields[0])
		}
		start, err := strconv.ParseUint(lo, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("bad address %q: %w", lo, err)
		}
		end, err := strconv.ParseUint(hi, 16, 64)
		if err != nil || end < start {
			return nil, fmt.Errorf("bad address range %q", fields[0])
		}
		inode, _ := strconv.ParseUint(fields[4], 10, 64)
		path := ""
		if len(fields) > 5 {
			path = strings.Join(fields[5:], " ")
		}
		out = append(out, MemoryRegion{
			BaseAddress:    start,
			Size:           end - start,
			Protection:     FromMapsPerms(fields[1]),
			AllocationType: AllocationFromMaps(inode, path),
			State:          StateCommitted,
			AllocationBase: start,
			Path:           path,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BaseAddress < out[j].BaseAddress })
	return out, nil
}

// queryRegions answers a Query over a sorted region list the way
// VirtualQueryEx does: gaps come back as free regions.
func queryRegions(regions []MemoryRegion, addr, limit uint64) (MemoryRegion, error) {
	if addr >= limit {
		return MemoryRegion{}, errEndOfSpace
	}
	i := sort.Search(len(regions), func(i int) bool { return regions[i].End() > addr })
	if i == len(regions) {
		return MemoryRegion{BaseAddress: addr, Size: limit - addr, State: StateFree}, nil
	}
	r := regions[i]
	if r.BaseAddress > addr {
		return MemoryRegion{BaseAddress: addr, Size: r.BaseAddress - addr, State: StateFree}, nil
	}
	return r, nil
}

// ParseStatusCounters reads VmRSS and RssAnon (kB) from /proc/<pid>/status.
func ParseStatusCounters(r io.Reader) (ProcessCounters, error) {
	var c ProcessCounters
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		key, val, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		var dst *uint64
		switch key {
		case "VmRSS":
			dst = &c.WorkingSet
		case "RssAnon":
			dst = &c.PrivateBytes
		default:
			continue
		}
		f := strings.Fields(val)
		if len(f) == 0 {
			continue
		}
		kb, err := strconv.ParseUint(f[0], 10, 64)
		if err != nil {
			return c, fmt.Errorf("bad %s value %q", key, val)
		}
		*dst = kb * 1024
	}
	return c, sc.Err()
}

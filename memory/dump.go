package memory

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"corp/sysrecon/core"
)

// DumpResult describes a written dump.
type DumpResult struct {
	Path      string `json:"path"`
	Regions   int    `json:"regions"`
	Bytes     uint64 `json:"bytes"`
	Truncated bool   `json:"truncated"`
}

// CreateMemoryDump opens pid and writes its readable committed regions to
// path. See WriteDump for the format.
func (s *RegionScanner) CreateMemoryDump(ctx context.Context, pid uint32, path string, limit uint64) (DumpResult, error) {
	pm, err := s.opener.Open(pid)
	if err != nil {
		return DumpResult{}, err
	}
	defer pm.Close()
	regions, err := s.Walk(ctx, pm)
	if err != nil {
		return DumpResult{}, err
	}
	return s.WriteDump(ctx, pm, regions, path, limit)
}

// WriteDump writes each readable region as base (u64 LE), length (u64 LE)
// and the bytes actually read. Writing stops once limit content bytes
// have been written; zero means the scanner's read cap.
func (s *RegionScanner) WriteDump(ctx context.Context, pm ProcessMemory, regions []MemoryRegion, path string, limit uint64) (DumpResult, error) {
	if limit == 0 {
		limit = s.maxRead
	}
	res := DumpResult{Path: path}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return res, fmt.Errorf("create dump directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return res, fmt.Errorf("create dump: %w", err)
	}
	w := bufio.NewWriter(f)

	var hdr [16]byte
	for _, r := range regions {
		if err := ctx.Err(); err != nil {
			break
		}
		if r.State != StateCommitted || !r.IsReadable() {
			continue
		}
		if res.Bytes >= limit {
			res.Truncated = true
			break
		}
		want := r.Size
		if rest := limit - res.Bytes; want > rest {
			want = rest
			res.Truncated = true
		}
		data, err := s.read(pm, r.BaseAddress, want)
		if err != nil && !errors.Is(err, core.ErrTruncated) {
			continue
		}
		if len(data) == 0 {
			continue
		}
		binary.LittleEndian.PutUint64(hdr[:8], r.BaseAddress)
		binary.LittleEndian.PutUint64(hdr[8:], uint64(len(data)))
		if _, err := w.Write(hdr[:]); err != nil {
			f.Close()
			return res, fmt.Errorf("write dump: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			f.Close()
			return res, fmt.Errorf("write dump: %w", err)
		}
		res.Regions++
		res.Bytes += uint64(len(data))
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return res, fmt.Errorf("write dump: %w", err)
	}
	if err := f.Close(); err != nil {
		return res, err
	}
	return res, ctx.Err()
}

// DumpFileName is <dir>/<pid>_<name>.dmp with path separators removed.
func DumpFileName(dir string, pid uint32, name string) string {
	clean := []rune{}
	for _, r := range name {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			clean = append(clean, '_')
		default:
			clean = append(clean, r)
		}
	}
	if len(clean) == 0 {
		return filepath.Join(dir, fmt.Sprintf("%d.dmp", pid))
	}
	return filepath.Join(dir, fmt.Sprintf("%d_%s.dmp", pid, string(clean)))
}

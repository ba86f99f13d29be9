//go:build !windows

package modules

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"corp/sysrecon/memory"
)

// procProcesses walks a procfs mount.
type procProcesses struct {
	root string
}

func DefaultProcessSource() ProcessSource { return procProcesses{root: "/proc"} }

func (s procProcesses) Processes(ctx context.Context) ([]ProcessInfo, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.root, mapFsErr(err))
	}
	var out []ProcessInfo
	for _, e := range entries {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		pid, err := strconv.ParseUint(e.Name(), 10, 32)
		if err != nil || !e.IsDir() {
			continue
		}
		p, ok := s.process(uint32(pid))
		if ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s procProcesses) process(pid uint32) (ProcessInfo, bool) {
	dir := filepath.Join(s.root, strconv.FormatUint(uint64(pid), 10))
	p := ProcessInfo{PID: pid}
	f, err := os.Open(filepath.Join(dir, "status"))
	if err != nil {
		// proses sudah exit
		return p, false
	}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		key, val, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		val = strings.TrimSpace(val)
		switch key {
		case "Name":
			p.Name = val
		case "PPid":
			if n, err := strconv.ParseUint(val, 10, 32); err == nil {
				p.PPID = uint32(n)
			}
		}
	}
	f.Close()

	if exe, err := os.Readlink(filepath.Join(dir, "exe")); err == nil {
		p.Path = strings.TrimSuffix(exe, " (deleted)")
		// comm terpotong 15 karakter; nama file exe lebih akurat
		p.Name = BaseName(p.Path)
	}
	if raw, err := os.ReadFile(filepath.Join(dir, "cmdline")); err == nil {
		p.CommandLine = strings.TrimSpace(strings.ReplaceAll(string(raw), "\x00", " "))
	}
	return p, true
}

// Modules lists the file-backed shared objects mapped into pid.
func (s procProcesses) Modules(ctx context.Context, pid uint32) ([]string, error) {
	f, err := os.Open(filepath.Join(s.root, strconv.FormatUint(uint64(pid), 10), "maps"))
	if err != nil {
		return nil, mapFsErr(err)
	}
	defer f.Close()
	regions, err := memory.ParseMaps(f)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []string
	for _, r := range regions {
		if r.AllocationType != memory.AllocImage || !strings.Contains(r.Path, ".so") || seen[r.Path] {
			continue
		}
		seen[r.Path] = true
		out = append(out, r.Path)
	}
	return out, ctx.Err()
}

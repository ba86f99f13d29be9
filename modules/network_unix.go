//go:build !windows

package modules

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type procNetwork struct {
	root string
}

// DefaultNetworkSource reads /proc/net and maps socket inodes to pids via
// /proc/<pid>/fd. Sockets owned by processes we cannot inspect keep pid 0.
func DefaultNetworkSource() NetworkSource { return procNetwork{root: "/proc"} }

func (s procNetwork) Sockets(ctx context.Context) ([]Socket, error) {
	var all []procSocket
	var firstErr error
	for _, proto := range []string{"tcp", "tcp6", "udp", "udp6"} {
		f, err := os.Open(filepath.Join(s.root, "net", proto))
		if err != nil {
			if firstErr == nil {
				firstErr = mapFsErr(err)
			}
			continue
		}
		socks, err := ParseProcNet(f, proto)
		f.Close()
		if err != nil {
			return nil, err
		}
		all = append(all, socks...)
	}
	if len(all) == 0 && firstErr != nil {
		return nil, firstErr
	}

	owners := s.socketOwners(ctx)
	procs := procProcesses{root: s.root}
	names := map[uint32]string{}
	out := make([]Socket, 0, len(all))
	for _, ps := range all {
		sock := ps.Socket
		if pid, ok := owners[ps.Inode]; ok {
			sock.PID = pid
			name, ok := names[pid]
			if !ok {
				if p, found := procs.process(pid); found {
					name = p.Name
				}
				names[pid] = name
			}
			sock.Process = name
		}
		out = append(out, sock)
	}
	return out, ctx.Err()
}

// socketOwners maps socket inode → pid.
func (s procNetwork) socketOwners(ctx context.Context) map[uint64]uint32 {
	owners := map[uint64]uint32{}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return owners
	}
	for _, e := range entries {
		if ctx.Err() != nil {
			break
		}
		pid, err := strconv.ParseUint(e.Name(), 10, 32)
		if err != nil {
			continue
		}
		fdDir := filepath.Join(s.root, e.Name(), "fd")
		fds, err := os.ReadDir(fdDir)
		if err != nil {
			continue
		}
		for _, fd := range fds {
			link, err := os.Readlink(filepath.Join(fdDir, fd.Name()))
			if err != nil || !strings.HasPrefix(link, "socket:[") {
				continue
			}
			inode, err := strconv.ParseUint(strings.TrimSuffix(strings.TrimPrefix(link, "socket:["), "]"), 10, 64)
			if err == nil {
				owners[inode] = uint32(pid)
			}
		}
	}
	return owners
}

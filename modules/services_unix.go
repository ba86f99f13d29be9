//go:build !windows

package modules

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

var unitDirs = []string{"/etc/systemd/system", "/run/systemd/system", "/usr/lib/systemd/system", "/lib/systemd/system"}

type systemdServices struct {
	dirs []string
}

// DefaultServiceSource reads systemd unit files. A unit is auto-start when
// it is linked from a *.wants directory under /etc/systemd/system.
func DefaultServiceSource() ServiceSource { return systemdServices{dirs: unitDirs} }

func (s systemdServices) Services(ctx context.Context) ([]Service, error) {
	enabled := map[string]bool{}
	if len(s.dirs) > 0 {
		wants, _ := filepath.Glob(filepath.Join(s.dirs[0], "*.wants", "*.service"))
		for _, w := range wants {
			enabled[filepath.Base(w)] = true
		}
	}

	seen := map[string]bool{}
	var out []Service
	for _, dir := range s.dirs {
		units, err := filepath.Glob(filepath.Join(dir, "*.service"))
		if err != nil {
			continue
		}
		for _, path := range units {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			name := filepath.Base(path)
			// direktori lebih awal menimpa yang belakangan
			if seen[name] || strings.Contains(name, "@") {
				continue
			}
			seen[name] = true
			f, err := os.Open(path)
			if err != nil {
				continue
			}
			u, err := ParseUnitFile(f)
			f.Close()
			if err != nil || u.ExecStart == "" {
				continue
			}
			mode := "disabled"
			if enabled[name] {
				mode = "enabled"
			}
			out = append(out, Service{
				Name:        strings.TrimSuffix(name, ".service"),
				DisplayName: u.Description,
				StartMode:   mode,
				BinaryPath:  u.ExecStart,
				Account:     u.User,
			})
		}
	}
	return out, nil
}

package modules

import (
	"bufio"
	"io"
	"strings"
)

// UnitFile is the [Service] part of a systemd unit that matters here.
type UnitFile struct {
	Description string
	ExecStart   string
	User        string
	WantedBy    []string
}

// ParseUnitFile reads a systemd unit. Only the first ExecStart is kept and
// its exec prefixes (-, @, +, !) are dropped.
func ParseUnitFile(r io.Reader) (UnitFile, error) {
	var u UnitFile
	section := ""
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = line[1 : len(line)-1]
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key, val = strings.TrimSpace(key), strings.TrimSpace(val)
		switch section + "." + key {
		case "Unit.Description":
			u.Description = val
		case "Service.ExecStart":
			if u.ExecStart == "" && val != "" {
				u.ExecStart = strings.TrimLeft(val, "-@+!:")
			}
		case "Service.User":
			u.User = val
		case "Install.WantedBy":
			u.WantedBy = append(u.WantedBy, strings.Fields(val)...)
		}
	}
	return u, sc.Err()
}

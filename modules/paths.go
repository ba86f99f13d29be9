package modules

import "strings"

/* ===== path helpers (pure, dipakai services/processes/registry) ===== */

// WriteProbe reports whether the current user can create files in dir.
type WriteProbe interface {
	Writable(dir string) bool
}

// WriteProbeFunc adapts a function to WriteProbe.
type WriteProbeFunc func(dir string) bool

func (f WriteProbeFunc) Writable(dir string) bool { return f(dir) }

// DefaultProbe opens the directory for write on Windows and uses access(2)
// elsewhere. Nothing is written.
func DefaultProbe() WriteProbe { return WriteProbeFunc(dirIsWritable) }

// ToDisplayPath mengubah "\" menjadi "/" supaya tidak di-escape di JSON.
func ToDisplayPath(p string) string {
	return strings.ReplaceAll(p, `\`, `/`)
}

// ParseCommandLine splits a service ImagePath, Run value or ExecStart line
// into the executable path. unquoted is set when the executable part
// contains a space and is not enclosed in quotes.
func ParseCommandLine(raw string) (exe string, unquoted bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	if strings.HasPrefix(s, `"`) {
		if end := strings.Index(s[1:], `"`); end >= 0 {
			return s[1 : 1+end], false
		}
		return strings.Trim(s, `"`), false
	}
	// sampai ".exe" pertama, sisanya argumen
	if idx := strings.Index(strings.ToLower(s), ".exe"); idx != -1 {
		exe = s[:idx+4]
		return exe, strings.Contains(exe, " ")
	}
	if f := strings.Fields(s); len(f) > 0 {
		return f[0], false
	}
	return s, false
}

// IsUnquotedExecutablePath: segmen sampai ".exe" mengandung spasi dan tidak
// diawali kutip.
func IsUnquotedExecutablePath(path string) bool {
	_, unquoted := ParseCommandLine(path)
	return unquoted
}

func isWindowsPath(p string) bool {
	return strings.Contains(p, `\`) || (len(p) >= 2 && p[1] == ':')
}

// BaseName works on both separator styles regardless of the host OS.
func BaseName(p string) string {
	p = strings.TrimRight(p, `\/`)
	if i := strings.LastIndexAny(p, `\/`); i >= 0 {
		return p[i+1:]
	}
	return p
}

// DirName is the parent of p, keeping p's separator style.
func DirName(p string) string {
	p = strings.TrimRight(p, `\/`)
	i := strings.LastIndexAny(p, `\/`)
	switch {
	case i < 0:
		return ""
	case i == 0:
		return p[:1]
	case i == 2 && p[1] == ':':
		return p[:3]
	}
	return p[:i]
}

// SplitPathSegments returns every ancestor of dir from the root down:
// C:\A\B gives C:\, C:\A, C:\A\B.
func SplitPathSegments(dir string) []string {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil
	}
	sep := "/"
	root := "/"
	rest := dir
	if isWindowsPath(dir) {
		sep = `\`
		dir = strings.ReplaceAll(dir, "/", `\`)
		rest = dir
		root = `\`
		if len(dir) >= 2 && dir[1] == ':' {
			root = dir[:2] + `\`
			rest = dir[2:]
		}
	}
	segments := []string{root}
	curr := root
	for _, part := range strings.Split(strings.Trim(rest, sep), sep) {
		if part == "" {
			continue
		}
		if !strings.HasSuffix(curr, sep) {
			curr += sep
		}
		curr += part
		segments = append(segments, curr)
	}
	return segments
}

// WritableSegments lists the directories on the way to exe that probe
// reports writable, in display form.
func WritableSegments(exe string, probe WriteProbe) []string {
	if exe == "" || probe == nil {
		return nil
	}
	var out []string
	for _, seg := range SplitPathSegments(DirName(exe)) {
		if probe.Writable(seg) {
			out = append(out, ToDisplayPath(seg))
		}
	}
	return out
}

var userWritableMarkers = []string{
	`\temp\`, `\tmp\`, `\downloads\`, `\appdata\`, `\users\public\`, `\programdata\`, `\$recycle.bin\`,
	"/tmp/", "/var/tmp/", "/dev/shm/", "/downloads/", "/run/user/",
}

// IsUserWritableLocation: lokasi yang lazim dipakai dropper (temp,
// downloads, appdata, /tmp, /dev/shm).
func IsUserWritableLocation(p string) bool {
	l := strings.ToLower(p)
	if !strings.HasSuffix(l, `\`) && !strings.HasSuffix(l, "/") {
		if isWindowsPath(l) {
			l += `\`
		} else {
			l += "/"
		}
	}
	for _, m := range userWritableMarkers {
		if strings.Contains(l, m) {
			return true
		}
	}
	return false
}

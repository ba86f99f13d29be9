//go:build unix

package core

import "golang.org/x/sys/unix"

// IsElevated reports whether the effective uid is root.
func IsElevated() bool {
	return unix.Geteuid() == 0
}

// EnableDebugPrivilege is a no-op: ptrace access is governed by uid and
// yama, not a per-token privilege.
func EnableDebugPrivilege() error { return nil }

// EnabledPrivileges reports "root" for uid 0 and nothing otherwise.
func EnabledPrivileges() []string {
	if IsElevated() {
		return []string{"root"}
	}
	return nil
}

//go:build !windows && !unix

package core

func IsElevated() bool { return false }

func EnableDebugPrivilege() error { return ErrUnsupported }

func EnabledPrivileges() []string { return nil }

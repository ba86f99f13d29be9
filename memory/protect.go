package memory

import "strings"

// Windows MEMORY_BASIC_INFORMATION values. Kept here (not behind a build
// tag) so the mapping is usable and testable on every platform.
const (
	memCommit  = 0x1000
	memReserve = 0x2000
	memFree    = 0x10000

	memPrivate = 0x20000
	memMapped  = 0x40000
	memImage   = 0x1000000

	pageNoAccess         = 0x01
	pageReadOnly         = 0x02
	pageReadWrite        = 0x04
	pageWriteCopy        = 0x08
	pageExecute          = 0x10
	pageExecuteRead      = 0x20
	pageExecuteReadWrite = 0x40
	pageExecuteWriteCopy = 0x80
	pageGuard            = 0x100
)

// FromWindowsProtect maps a PAGE_* value (modifier bits included).
func FromWindowsProtect(protect uint32) Protection {
	var p Protection
	switch protect & 0xff {
	case pageReadOnly:
		p = ProtRead
	case pageReadWrite:
		p = ProtRead | ProtWrite
	case pageWriteCopy:
		p = ProtRead | ProtCopyOnWrite
	case pageExecute:
		p = ProtExecute
	case pageExecuteRead:
		p = ProtRead | ProtExecute
	case pageExecuteReadWrite:
		p = ProtRead | ProtWrite | ProtExecute
	case pageExecuteWriteCopy:
		// loader uses this transiently; still counts as RWX
		p = ProtRead | ProtExecute | ProtCopyOnWrite
	}
	if protect&pageGuard != 0 {
		p |= ProtGuard
	}
	return p
}

func FromWindowsType(t uint32) AllocationType {
	switch t {
	case memImage:
		return AllocImage
	case memMapped:
		return AllocMapped
	default:
		return AllocPrivate
	}
}

func FromWindowsState(s uint32) RegionState {
	switch s {
	case memCommit:
		return StateCommitted
	case memReserve:
		return StateReserved
	default:
		return StateFree
	}
}

// FromMapsPerms maps the perms column of /proc/<pid>/maps ("rwxp").
func FromMapsPerms(perms string) Protection {
	var p Protection
	if len(perms) < 3 {
		return p
	}
	if perms[0] == 'r' {
		p |= ProtRead
	}
	if perms[1] == 'w' {
		p |= ProtWrite
	}
	if perms[2] == 'x' {
		p |= ProtExecute
	}
	return p
}

// AllocationFromMaps decides what backs a maps line. Anonymous memory,
// [heap], [stack] and memfd mappings count as private (unbacked).
func AllocationFromMaps(inode uint64, path string) AllocationType {
	switch {
	case path == "[vdso]" || path == "[vsyscall]" || path == "[vvar]":
		// kernel-provided code pages
		return AllocImage
	case path == "" || inode == 0:
		return AllocPrivate
	case strings.HasPrefix(path, "/memfd:"), strings.HasSuffix(path, " (deleted)"):
		return AllocPrivate
	case strings.HasPrefix(path, "/"):
		return AllocImage
	}
	return AllocMapped
}

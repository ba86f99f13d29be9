//go:build windows
// +build windows

package core

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// IsElevated reports whether the current process token is elevated.
func IsElevated() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}

// EnableDebugPrivilege turns on SeDebugPrivilege so protected processes can
// be opened for VM_READ. It fails quietly for non-admin tokens.
func EnableDebugPrivilege() error {
	var tok windows.Token
	if err := windows.OpenProcessToken(windows.CurrentProcess(), windows.TOKEN_ADJUST_PRIVILEGES|windows.TOKEN_QUERY, &tok); err != nil {
		return fmt.Errorf("open process token: %w", err)
	}
	defer tok.Close()

	var luid windows.LUID
	name, _ := windows.UTF16PtrFromString("SeDebugPrivilege")
	if err := windows.LookupPrivilegeValue(nil, name, &luid); err != nil {
		return fmt.Errorf("lookup SeDebugPrivilege: %w", err)
	}
	tp := windows.Tokenprivileges{PrivilegeCount: 1}
	tp.Privileges[0] = windows.LUIDAndAttributes{Luid: luid, Attributes: windows.SE_PRIVILEGE_ENABLED}
	if err := windows.AdjustTokenPrivileges(tok, false, &tp, 0, nil, nil); err != nil {
		return fmt.Errorf("adjust token privileges: %w", err)
	}
	// AdjustTokenPrivileges sukses walau privilege tidak di-assign
	if windows.GetLastError() == windows.ERROR_NOT_ALL_ASSIGNED {
		return fmt.Errorf("SeDebugPrivilege: %w", ErrAccessDenied)
	}
	return nil
}

// EnabledPrivileges lists the Se* privileges currently enabled on the
// process token.
func EnabledPrivileges() []string {
	tok, err := windows.OpenCurrentProcessToken()
	if err != nil {
		return nil
	}
	defer tok.Close()

	var needed uint32
	_ = windows.GetTokenInformation(tok, windows.TokenPrivileges, nil, 0, &needed)
	if needed == 0 {
		return nil
	}
	buf := make([]byte, needed)
	if err := windows.GetTokenInformation(tok, windows.TokenPrivileges, &buf[0], uint32(len(buf)), &needed); err != nil {
		return nil
	}

	// TOKEN_PRIVILEGES: { DWORD PrivilegeCount; LUID_AND_ATTRIBUTES Privileges[]; }
	count := *(*uint32)(unsafe.Pointer(&buf[0]))
	base := uintptr(unsafe.Pointer(&buf[0])) + unsafe.Sizeof(count)
	step := unsafe.Sizeof(windows.LUIDAndAttributes{})

	var out []string
	for i := uint32(0); i < count; i++ {
		la := *(*windows.LUIDAndAttributes)(unsafe.Pointer(base + uintptr(i)*step))
		if la.Attributes&windows.SE_PRIVILEGE_ENABLED == 0 {
			continue
		}
		out = append(out, privilegeName(la.Luid))
	}
	return out
}

var procLookupPrivilegeNameW = windows.NewLazySystemDLL("advapi32.dll").NewProc("LookupPrivilegeNameW")

// privilegeName resolves a LUID to its "Se*" name.
func privilegeName(luid windows.LUID) string {
	var n uint32
	_, _, _ = procLookupPrivilegeNameW.Call(0, uintptr(unsafe.Pointer(&luid)), 0, uintptr(unsafe.Pointer(&n)))
	if n == 0 {
		return fmt.Sprintf("LUID(%d,%d)", luid.HighPart, luid.LowPart)
	}
	buf := make([]uint16, n+1)
	r1, _, _ := procLookupPrivilegeNameW.Call(
		0,
		uintptr(unsafe.Pointer(&luid)),
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(unsafe.Pointer(&n)),
	)
	if r1 == 0 {
		return fmt.Sprintf("LUID(%d,%d)", luid.HighPart, luid.LowPart)
	}
	return windows.UTF16ToString(buf)
}

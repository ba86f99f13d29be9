//go:build windows

package modules

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows"

	"corp/sysrecon/core"
)

func mapWinErr(err error) error {
	switch {
	case errors.Is(err, windows.ERROR_ACCESS_DENIED):
		return fmt.Errorf("%w: %v", core.ErrAccessDenied, err)
	case errors.Is(err, windows.ERROR_FILE_NOT_FOUND),
		errors.Is(err, windows.ERROR_INVALID_PARAMETER),
		errors.Is(err, windows.ERROR_SERVICE_DOES_NOT_EXIST):
		return fmt.Errorf("%w: %v", core.ErrNotFound, err)
	}
	return err
}

// dirIsWritable: buka handle direktori dengan FILE_GENERIC_WRITE tanpa
// menulis apa pun. Sukses open berarti writable oleh user saat ini.
func dirIsWritable(path string) bool {
	p16, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return false
	}
	h, err := windows.CreateFile(
		p16,
		windows.FILE_GENERIC_WRITE,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_FLAG_BACKUP_SEMANTICS, // supaya bisa open directory
		0,
	)
	if err != nil {
		return false
	}
	windows.CloseHandle(h)
	return true
}

// expandEnv memanggil ExpandEnvironmentStringsW (%SystemRoot% dll.).
func expandEnv(s string) string {
	ptr, err := windows.UTF16PtrFromString(s)
	if err != nil {
		return s
	}
	n, _ := windows.ExpandEnvironmentStrings(ptr, nil, 0)
	if n == 0 {
		return s
	}
	buf := make([]uint16, n)
	if _, err := windows.ExpandEnvironmentStrings(ptr, &buf[0], uint32(len(buf))); err != nil {
		return s
	}
	return windows.UTF16ToString(buf)
}

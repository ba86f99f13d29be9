//go:build !windows && !linux

package memory

import (
	"fmt"

	"corp/sysrecon/core"
)

func openProcess(pid uint32) (ProcessMemory, error) {
	return nil, fmt.Errorf("open pid %d: %w", pid, core.ErrUnsupported)
}

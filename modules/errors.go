package modules

import (
	"errors"
	"fmt"
	"io/fs"

	"corp/sysrecon/core"
)

// mapFsErr maps permission and not-exist errors onto the core taxonomy so
// collectors log them quietly.
func mapFsErr(err error) error {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %v", core.ErrAccessDenied, err)
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %v", core.ErrNotFound, err)
	}
	return err
}

//go:build unix

package modules

import (
	"os"

	"golang.org/x/sys/unix"
)

func dirIsWritable(path string) bool {
	return unix.Access(path, unix.W_OK) == nil
}

func expandEnv(s string) string { return os.ExpandEnv(s) }

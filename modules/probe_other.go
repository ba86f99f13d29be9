//go:build !windows && !unix

package modules

import "os"

func dirIsWritable(string) bool { return false }

func expandEnv(s string) string { return os.ExpandEnv(s) }

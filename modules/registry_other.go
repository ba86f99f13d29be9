//go:build !windows

package modules

// DefaultRegistrySource returns nil: there is no registry here, so the
// module reports ErrUnsupported from Initialize and stays disabled.
func DefaultRegistrySource() RegistrySource { return nil }

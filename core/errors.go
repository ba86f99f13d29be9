package core

import "errors"

// Error taxonomy. Platform errors are wrapped with %w so callers can use
// errors.Is against these sentinels.
var (
	// ErrAccessDenied: caller lacks rights on a process, key or object.
	ErrAccessDenied = errors.New("access denied")
	// ErrNotFound: the artifact vanished between enumeration and analysis.
	ErrNotFound = errors.New("not found")
	// ErrTruncated: a read returned fewer bytes than requested.
	ErrTruncated = errors.New("truncated read")
	// ErrTimeout: a module exceeded the scan time budget.
	ErrTimeout = errors.New("timeout")
	// ErrConfigurationInvalid aborts Initialize.
	ErrConfigurationInvalid = errors.New("configuration invalid")

	ErrScanInProgress = errors.New("scan already running")
	ErrNotInitialized = errors.New("scanner not initialized")
	ErrEngineFailed   = errors.New("scanner in failed state")
	ErrUnsupported    = errors.New("not supported on this platform")
)

// IsExpected reports whether err is a routine per-item failure
// (protected process, exited process) that is logged quietly.
func IsExpected(err error) bool {
	return errors.Is(err, ErrAccessDenied) || errors.Is(err, ErrNotFound)
}

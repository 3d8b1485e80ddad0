package gdtcpus

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure classes callers branch on. Wrapped
// errors carry detail; match with errors.Is.
var (
	// ErrInvalidInput reports a core id out of range, an empty affinity
	// mask, or a mask naming logical processors that are offline.
	ErrInvalidInput = errors.New("invalid input")

	// ErrPermissionDenied reports that the OS refused a scheduling
	// request for privilege reasons (e.g. real-time priority without
	// the required rights).
	ErrPermissionDenied = errors.New("permission denied")

	// ErrUnsupported reports an operation the current platform does not
	// support at all, as opposed to one that merely failed.
	ErrUnsupported = errors.New("not supported on this platform")

	// ErrUnsupportedPlatform reports that the library has no detector
	// for the current operating system.
	ErrUnsupportedPlatform = errors.New("unsupported platform")
)

// DetectionError wraps whatever went wrong while building the topology
// on the current platform. The facade caches it: every later call to
// [Info] observes the same value.
type DetectionError struct {
	// Platform is the GOOS the detector ran on.
	Platform string

	// Err is the underlying cause.
	Err error
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("cpu topology detection failed on %s: %v", e.Platform, e.Err)
}

func (e *DetectionError) Unwrap() error { return e.Err }

// SysCallError carries the operation name and the native error code of
// a failed OS call so callers can log something actionable.
type SysCallError struct {
	// Op is the native call that failed, e.g. "sched_setaffinity".
	Op string

	// Err is the platform error value (an errno on Unix, a Windows
	// error code on Windows).
	Err error
}

func (e *SysCallError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *SysCallError) Unwrap() error { return e.Err }

// ParseError reports malformed platform data (a sysfs file, a sysctl
// value, a processor-information record) encountered during detection.
type ParseError struct {
	// Source names what was being parsed, e.g. a sysfs path.
	Source string

	// Detail describes the problem.
	Detail string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s", e.Source, e.Detail)
}

func invalidInputf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

//go:build windows

package gdtcpus

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Native priority levels and the background-mode pseudo priorities.
// https://learn.microsoft.com/en-us/windows/win32/api/processthreadsapi/nf-processthreadsapi-setthreadpriority
const (
	threadPriorityIdle         = -15
	threadPriorityLowest       = -2
	threadPriorityBelowNormal  = -1
	threadPriorityNormal       = 0
	threadPriorityAboveNormal  = 1
	threadPriorityHighest      = 2
	threadPriorityTimeCritical = 15

	threadModeBackgroundBegin = 0x00010000
	threadModeBackgroundEnd   = 0x00020000
)

type groupAffinity struct {
	Mask     uintptr
	Group    uint16
	Reserved [3]uint16
}

func nativePriority(p ThreadPriority) int32 {
	switch p {
	case Background:
		return threadPriorityIdle
	case Lowest:
		return threadPriorityLowest
	case BelowNormal:
		return threadPriorityBelowNormal
	case AboveNormal:
		return threadPriorityAboveNormal
	case Highest:
		return threadPriorityHighest
	case TimeCritical:
		return threadPriorityTimeCritical
	default:
		return threadPriorityNormal
	}
}

func mapWinError(op string, err error) error {
	if errors.Is(err, windows.ERROR_ACCESS_DENIED) {
		return fmt.Errorf("%w: %s", ErrPermissionDenied, op)
	}
	if errors.Is(err, windows.ERROR_INVALID_PARAMETER) {
		return fmt.Errorf("%w: %s", ErrInvalidInput, op)
	}
	return &SysCallError{Op: op, Err: err}
}

// setThreadPriorityOS applies the priority to the calling thread.
// Background additionally enters background processing mode, which
// also lowers I/O and memory priority; any other level leaves it.
func setThreadPriorityOS(p ThreadPriority) error {
	h := uintptr(windows.CurrentThread())

	if p != Background {
		// Leaving background mode fails harmlessly when the thread
		// never entered it.
		procSetThreadPriority.Call(h, uintptr(threadModeBackgroundEnd))
	}

	r1, _, err := procSetThreadPriority.Call(h, uintptr(nativePriority(p)))
	if r1 == 0 {
		return mapWinError("SetThreadPriority", err)
	}
	if p == Background {
		if r1, _, err := procSetThreadPriority.Call(h, uintptr(threadModeBackgroundBegin)); r1 == 0 {
			return mapWinError("SetThreadPriority(background)", err)
		}
	}
	return nil
}

// setThreadAffinityOS pins the calling thread. A thread's affinity is
// confined to one processor group; masks inside group 0 go through
// SetThreadAffinityMask, higher groups through SetThreadGroupAffinity.
func setThreadAffinityOS(mask AffinityMask) error {
	h := uintptr(windows.CurrentThread())

	ids := mask.Indices()
	group := ids[0] / winGroupBits
	for _, id := range ids[1:] {
		if id/winGroupBits != group {
			return invalidInputf("mask %q spans multiple processor groups", mask)
		}
	}
	word := mask.Words()[group]

	if group == 0 {
		if r1, _, err := procSetThreadAffinityMask.Call(h, uintptr(word)); r1 == 0 {
			return mapWinError("SetThreadAffinityMask", err)
		}
		return nil
	}
	ga := groupAffinity{Mask: uintptr(word), Group: uint16(group)}
	if r1, _, err := procSetThreadGroupAffinity.Call(h, uintptr(unsafe.Pointer(&ga)), 0); r1 == 0 {
		return mapWinError("SetThreadGroupAffinity", err)
	}
	return nil
}

//go:build linux

package gdtcpus

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Scheduling policies; x/sys/unix does not export SCHED_OTHER.
const (
	schedOther = 0
	schedFIFO  = 1

	// fifoPriority is the real-time priority used for TimeCritical.
	// High but below the kernel's own threads (which run at 99).
	fifoPriority = 80
)

type schedParam struct {
	Priority int32
}

// niceFor maps the uniform priority dial to nice values. AboveNormal
// stays a plain nice -5: switching policy for it has shown no
// reproducible latency win.
func niceFor(p ThreadPriority) int {
	switch p {
	case Background:
		return 19
	case Lowest:
		return 10
	case BelowNormal:
		return 5
	case AboveNormal:
		return -5
	case Highest:
		return -10
	case TimeCritical:
		return -20
	default:
		return 0
	}
}

func setScheduler(policy int, prio int32) unix.Errno {
	param := schedParam{Priority: prio}
	// pid 0 addresses the calling thread for the sched_* family.
	_, _, errno := unix.RawSyscall(unix.SYS_SCHED_SETSCHEDULER,
		0, uintptr(policy), uintptr(unsafe.Pointer(&param)))
	return errno
}

// setThreadPriorityOS applies the priority to the calling thread. On
// Linux nice is per-thread, so setpriority with the thread id does
// exactly what the API promises.
func setThreadPriorityOS(p ThreadPriority) error {
	if p == TimeCritical {
		switch errno := setScheduler(schedFIFO, fifoPriority); errno {
		case 0:
			return nil
		case unix.EPERM:
			// Real-time policy needs privilege; fall back to the
			// strongest nice value below.
		default:
			return &SysCallError{Op: "sched_setscheduler", Err: errno}
		}
	} else {
		// Leave any earlier real-time policy. Lowering to SCHED_OTHER
		// never needs privilege; ignore the result when there was
		// nothing to lower.
		setScheduler(schedOther, 0)
	}

	if err := unix.Setpriority(unix.PRIO_PROCESS, unix.Gettid(), niceFor(p)); err != nil {
		if errors.Is(err, unix.EACCES) || errors.Is(err, unix.EPERM) {
			return fmt.Errorf("%w: setting nice %d", ErrPermissionDenied, niceFor(p))
		}
		return &SysCallError{Op: "setpriority", Err: err}
	}
	return nil
}

// setThreadAffinityOS pins the calling thread to the mask. The word
// vector is handed to the kernel directly, so masks wider than a
// machine word work unchanged.
func setThreadAffinityOS(mask AffinityMask) error {
	words := mask.Words()
	_, _, errno := unix.RawSyscall(unix.SYS_SCHED_SETAFFINITY,
		0, uintptr(len(words)*8), uintptr(unsafe.Pointer(&words[0])))
	switch errno {
	case 0:
		return nil
	case unix.EINVAL:
		return invalidInputf("no usable logical processor in mask %q", mask)
	case unix.EPERM:
		return fmt.Errorf("%w: sched_setaffinity", ErrPermissionDenied)
	default:
		return &SysCallError{Op: "sched_setaffinity", Err: errno}
	}
}

//go:build darwin

package gdtcpus

/*
#include <errno.h>
#include <pthread.h>
#include <pthread/qos.h>
#include <sys/qos.h>
#include <mach/mach.h>
#include <mach/mach_time.h>
#include <mach/thread_policy.h>

static int gdt_set_qos(qos_class_t qc, int relative) {
	return pthread_set_qos_class_self_np(qc, relative);
}

// gdt_set_time_constraint marks the calling thread real-time: a 10 ms
// cycle with 5 ms of guaranteed computation, the shape the audio
// frameworks use.
static int gdt_set_time_constraint(void) {
	mach_timebase_info_data_t tb;
	mach_timebase_info(&tb);
	double ms = ((double)tb.denom / (double)tb.numer) * 1000000.0;
	thread_time_constraint_policy_data_t policy;
	policy.period      = (uint32_t)(10 * ms);
	policy.computation = (uint32_t)(5 * ms);
	policy.constraint  = (uint32_t)(10 * ms);
	policy.preemptible = 0;
	return thread_policy_set(mach_thread_self(), THREAD_TIME_CONSTRAINT_POLICY,
		(thread_policy_t)&policy, THREAD_TIME_CONSTRAINT_POLICY_COUNT);
}

static int gdt_set_affinity_tag(int tag) {
	thread_affinity_policy_data_t policy = { tag };
	return thread_policy_set(mach_thread_self(), THREAD_AFFINITY_POLICY,
		(thread_policy_t)&policy, THREAD_AFFINITY_POLICY_COUNT);
}
*/
import "C"

import (
	"fmt"
	"runtime"
)

// setThreadPriorityOS maps the dial onto QoS classes, the scheduling
// vocabulary XNU actually honors. TimeCritical additionally installs
// the Mach time-constraint policy.
func setThreadPriorityOS(p ThreadPriority) error {
	var (
		class C.qos_class_t
		rel   C.int
	)
	switch p {
	case Background:
		class = C.QOS_CLASS_BACKGROUND
	case Lowest:
		class, rel = C.QOS_CLASS_UTILITY, -8
	case BelowNormal:
		class = C.QOS_CLASS_UTILITY
	case Normal:
		class = C.QOS_CLASS_DEFAULT
	case AboveNormal:
		class, rel = C.QOS_CLASS_USER_INITIATED, -4
	case Highest:
		class = C.QOS_CLASS_USER_INITIATED
	case TimeCritical:
		class = C.QOS_CLASS_USER_INTERACTIVE
	}

	if rc := C.gdt_set_qos(class, rel); rc != 0 {
		if rc == C.EPERM {
			return fmt.Errorf("%w: pthread_set_qos_class_self_np", ErrPermissionDenied)
		}
		return &SysCallError{Op: "pthread_set_qos_class_self_np", Err: fmt.Errorf("errno %d", int(rc))}
	}
	if p == TimeCritical {
		if kr := C.gdt_set_time_constraint(); kr != C.KERN_SUCCESS {
			return &SysCallError{Op: "thread_policy_set(time constraint)", Err: fmt.Errorf("kern_return %d", int(kr))}
		}
	}
	return nil
}

// setThreadAffinityOS refuses on every ARM macOS host: XNU does not
// implement thread affinity there. On x86 it installs an L2 affinity
// tag, which the kernel treats as a placement hint, not a guarantee.
func setThreadAffinityOS(mask AffinityMask) error {
	if runtime.GOARCH != "amd64" {
		return fmt.Errorf("%w: thread affinity is unavailable on ARM macOS; use SetThreadPriority instead", ErrUnsupported)
	}
	// The affinity-tag namespace groups threads by tag; derive the tag
	// from the first logical processor so one core maps to one tag.
	tag := C.int(mask.Indices()[0] + 1)
	switch kr := C.gdt_set_affinity_tag(tag); kr {
	case C.KERN_SUCCESS:
		return nil
	case C.KERN_NOT_SUPPORTED:
		return fmt.Errorf("%w: thread affinity is unavailable on this macOS host; use SetThreadPriority instead", ErrUnsupported)
	default:
		return &SysCallError{Op: "thread_policy_set(affinity)", Err: fmt.Errorf("kern_return %d", int(kr))}
	}
}

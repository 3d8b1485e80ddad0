package gdtcpus

import "sync"

// The topology is detected once and published through a sync.Once;
// every reader — including every thread-control call that validates
// its input — observes the same immutable instance. A detection
// failure is cached the same way: retrying would only repeat the same
// platform answer.
var (
	detectOnce sync.Once
	detected   *CpuInfo
	detectErr  error
)

// Info returns the process-wide CPU topology, detecting it on first
// use.
func Info() (*CpuInfo, error) {
	detectOnce.Do(func() {
		detected, detectErr = detect()
	})
	return detected, detectErr
}

// NumPhysicalCores returns the number of physical cores, or 0 when
// detection failed.
func NumPhysicalCores() int {
	ci, err := Info()
	if err != nil {
		return 0
	}
	return ci.TotalPhysicalCores
}

// NumLogicalCores returns the number of logical processors, or 0 when
// detection failed.
func NumLogicalCores() int {
	ci, err := Info()
	if err != nil {
		return 0
	}
	return ci.TotalLogicalProcessors
}

// NumPerformanceCores returns the number of performance cores, or 0
// when detection failed.
func NumPerformanceCores() int {
	ci, err := Info()
	if err != nil {
		return 0
	}
	return ci.TotalPerformanceCores
}

// NumEfficiencyCores returns the number of efficiency cores. Zero on
// non-hybrid hosts and when detection failed.
func NumEfficiencyCores() int {
	ci, err := Info()
	if err != nil {
		return 0
	}
	return ci.TotalEfficiencyCores
}

// IsHybrid reports whether the host carries both performance and
// efficiency cores.
func IsHybrid() bool {
	ci, err := Info()
	return err == nil && ci.Hybrid
}

// PerformanceCoreIDs returns the global core indices of the
// performance cores, in the numbering PinThreadToCore uses.
func PerformanceCoreIDs() []int {
	ci, err := Info()
	if err != nil {
		return nil
	}
	return ci.coreIDsOfKind(KindPerformance)
}

// EfficiencyCoreIDs returns the global core indices of the efficiency
// cores.
func EfficiencyCoreIDs() []int {
	ci, err := Info()
	if err != nil {
		return nil
	}
	return ci.coreIDsOfKind(KindEfficiency)
}

// PinThreadToCore pins the calling OS thread to every logical
// processor of one physical core. coreID counts cores across sockets
// in socket order, 0 ≤ coreID < NumPhysicalCores. The caller must
// hold the thread with runtime.LockOSThread.
func PinThreadToCore(coreID int) error {
	ci, err := Info()
	if err != nil {
		return err
	}
	core, ok := ci.CoreAt(coreID)
	if !ok {
		return invalidInputf("core id %d out of range [0, %d)", coreID, ci.TotalPhysicalCores)
	}
	return setThreadAffinityOS(NewAffinityMask(core.LogicalProcessors...))
}

// SetThreadAffinity pins the calling OS thread to the logical
// processors in mask. Every index must name a logical processor that
// exists in the detected topology — which, on Linux, is the online set
// visible to this process, not the bare hardware. The caller must hold
// the thread with runtime.LockOSThread.
func SetThreadAffinity(mask AffinityMask) error {
	ci, err := Info()
	if err != nil {
		return err
	}
	if err := validateAffinityMask(ci, mask); err != nil {
		return err
	}
	return setThreadAffinityOS(mask)
}

func validateAffinityMask(ci *CpuInfo, mask AffinityMask) error {
	if mask.IsEmpty() {
		return invalidInputf("affinity mask has no set bits")
	}
	if stray := mask.Difference(ci.LogicalProcessorMask()); !stray.IsEmpty() {
		return invalidInputf("mask names offline or nonexistent logical processors: %s", stray)
	}
	return nil
}

// SetThreadPriority applies the priority to the calling OS thread. The
// caller must hold the thread with runtime.LockOSThread. Affinity and
// priority are independent axes; each call overwrites only its own.
func SetThreadPriority(p ThreadPriority) error {
	if !p.valid() {
		return invalidInputf("unknown priority %d", int(p))
	}
	return setThreadPriorityOS(p)
}

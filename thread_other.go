//go:build !linux && !windows && !darwin

package gdtcpus

func setThreadPriorityOS(ThreadPriority) error { return ErrUnsupportedPlatform }
func setThreadAffinityOS(AffinityMask) error   { return ErrUnsupportedPlatform }

//go:build !linux && !windows && !darwin

package gdtcpus

import "runtime"

func detect() (*CpuInfo, error) {
	return nil, &DetectionError{Platform: runtime.GOOS, Err: ErrUnsupportedPlatform}
}

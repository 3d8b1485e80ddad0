//go:build darwin

package gdtcpus

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// detect is the macOS implementation: everything comes from sysctl.
func detect() (*CpuInfo, error) {
	sc := sysctlFns{
		Str: unix.Sysctl,
		U64: unix.SysctlUint64,
		Raw: func(name string) ([]byte, error) { return unix.SysctlRaw(name) },
	}
	ci, err := buildDarwinTopology(sc, runtime.GOARCH == "arm64")
	if err != nil {
		return nil, &DetectionError{Platform: "darwin", Err: err}
	}
	ci.Features |= archFeatures()
	vendor, model := archVendorModel()
	if ci.Vendor == "" {
		ci.Vendor = vendor
	}
	if ci.ModelName == "" {
		ci.ModelName = model
	}
	return ci, nil
}

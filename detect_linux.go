//go:build linux

package gdtcpus

import "os"

// detect is the Linux implementation: sysfs and /proc/cpuinfo for the
// topology, CPUID/HWCAP for the feature set. The online-cpu set is the
// universe — inside a cgroup or namespace this reports what the
// process can actually use, not the bare host.
func detect() (*CpuInfo, error) {
	ci, err := buildLinuxTopology(os.ReadFile, archHybridHint())
	if err != nil {
		return nil, &DetectionError{Platform: "linux", Err: err}
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

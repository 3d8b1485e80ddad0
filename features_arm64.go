//go:build arm64

package gdtcpus

import "golang.org/x/sys/cpu"

// Feature probing for AArch64 from HWCAP (Linux); the macOS detector
// supplements these with sysctl hw.optional probes, which is where
// this information lives on Apple hosts.
func archFeatures() Features {
	var fs Features
	// NEON (AdvSIMD) is mandatory on ARMv8-A.
	fs.setIf(true, NEON)
	fs.setIf(cpu.ARM64.HasAES, AES)
	fs.setIf(cpu.ARM64.HasSHA2, SHA)
	fs.setIf(cpu.ARM64.HasCRC32, CRC32)
	fs.setIf(cpu.ARM64.HasSVE, SVE)
	return fs
}

func archVendorModel() (vendor, model string) { return "", "" }

// archHybridHint is always false on AArch64: heterogeneity shows up as
// distinct MIDR part numbers, which the Linux builder reads itself.
func archHybridHint() bool { return false }

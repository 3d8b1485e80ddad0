//go:build amd64

package gdtcpus

import (
	"github.com/klauspost/cpuid/v2"
	"golang.org/x/sys/cpu"
)

// Feature probing for x86-64 via the CPUID instruction. Each feature
// is probed individually; absence of a flag means absent, never a
// guess.
func archFeatures() Features {
	var fs Features
	fs.setIf(cpuid.CPU.Supports(cpuid.SSE), SSE)
	fs.setIf(cpu.X86.HasSSE2, SSE2)
	fs.setIf(cpu.X86.HasSSE3, SSE3)
	fs.setIf(cpu.X86.HasSSSE3, SSSE3)
	fs.setIf(cpu.X86.HasSSE41, SSE41)
	fs.setIf(cpu.X86.HasSSE42, SSE42)
	fs.setIf(cpu.X86.HasFMA, FMA3)
	fs.setIf(cpu.X86.HasAVX, AVX)
	fs.setIf(cpu.X86.HasAVX2, AVX2)
	fs.setIf(cpu.X86.HasAVX512F, AVX512F)
	fs.setIf(cpu.X86.HasAES, AES)
	fs.setIf(cpuid.CPU.Supports(cpuid.SHA), SHA)
	return fs
}

// archVendorModel returns the CPUID vendor and brand strings, used
// when the OS-level source does not provide them.
func archVendorModel() (vendor, model string) {
	return cpuid.CPU.VendorString, cpuid.CPU.BrandName
}

// archHybridHint reports whether CPUID declares the package hybrid
// (Intel leaf 7 HYBRID bit). It gates frequency-based core
// classification so uniform hosts are never split.
func archHybridHint() bool {
	return cpuid.CPU.Supports(cpuid.HYBRID_CPU)
}

//go:build windows

package gdtcpus

import (
	"errors"
	"unsafe"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"
)

var (
	modkernel32                          = windows.NewLazySystemDLL("kernel32.dll")
	procGetLogicalProcessorInformation   = modkernel32.NewProc("GetLogicalProcessorInformation")
	procGetLogicalProcessorInformationEx = modkernel32.NewProc("GetLogicalProcessorInformationEx")
	procSetThreadAffinityMask            = modkernel32.NewProc("SetThreadAffinityMask")
	procSetThreadGroupAffinity           = modkernel32.NewProc("SetThreadGroupAffinity")
	procSetThreadPriority                = modkernel32.NewProc("SetThreadPriority")
)

// relationAll asks GetLogicalProcessorInformationEx for every record
// class in one blob.
const relationAll = 0xffff

const centralProcessorKey = `HARDWARE\DESCRIPTION\System\CentralProcessor\0`

// detect is the Windows implementation: the processor-information blob
// for the structure, the registry for the identification strings,
// CPUID for the feature set.
func detect() (*CpuInfo, error) {
	buf, err := logicalProcessorInformationEx()
	if err != nil {
		return nil, &DetectionError{Platform: "windows", Err: err}
	}
	info, err := decodeProcessorInfoEx(buf)
	if err != nil {
		return nil, &DetectionError{Platform: "windows", Err: err}
	}
	if len(info.Caches) == 0 {
		// Some hosts (notably under virtualization) omit cache records
		// from the Ex call; the older API still has them.
		if legacy, err := logicalProcessorInformation(); err == nil {
			info.Caches = decodeLegacyCacheRecords(legacy)
		}
	}

	vendor, model := registryVendorModel()
	cpuidVendor, cpuidModel := archVendorModel()
	if vendor == "" {
		vendor = cpuidVendor
	}
	if model == "" {
		model = cpuidModel
	}

	ci, err := buildWindowsTopology(info, vendor, model)
	if err != nil {
		return nil, &DetectionError{Platform: "windows", Err: err}
	}
	ci.Features |= archFeatures()
	return ci, nil
}

// logicalProcessorInformationEx performs the two-call size dance: the
// first call fails with ERROR_INSUFFICIENT_BUFFER and reports the
// required length.
func logicalProcessorInformationEx() ([]byte, error) {
	var length uint32
	r1, _, err := procGetLogicalProcessorInformationEx.Call(
		uintptr(relationAll), 0, uintptr(unsafe.Pointer(&length)))
	if r1 != 0 || !errors.Is(err, windows.ERROR_INSUFFICIENT_BUFFER) {
		return nil, &SysCallError{Op: "GetLogicalProcessorInformationEx", Err: err}
	}
	buf := make([]byte, length)
	r1, _, err = procGetLogicalProcessorInformationEx.Call(
		uintptr(relationAll), uintptr(unsafe.Pointer(&buf[0])), uintptr(unsafe.Pointer(&length)))
	if r1 == 0 {
		return nil, &SysCallError{Op: "GetLogicalProcessorInformationEx", Err: err}
	}
	return buf[:length], nil
}

func logicalProcessorInformation() ([]byte, error) {
	var length uint32
	r1, _, err := procGetLogicalProcessorInformation.Call(
		0, uintptr(unsafe.Pointer(&length)))
	if r1 != 0 || !errors.Is(err, windows.ERROR_INSUFFICIENT_BUFFER) {
		return nil, &SysCallError{Op: "GetLogicalProcessorInformation", Err: err}
	}
	buf := make([]byte, length)
	r1, _, err = procGetLogicalProcessorInformation.Call(
		uintptr(unsafe.Pointer(&buf[0])), uintptr(unsafe.Pointer(&length)))
	if r1 == 0 {
		return nil, &SysCallError{Op: "GetLogicalProcessorInformation", Err: err}
	}
	return buf[:length], nil
}

// registryVendorModel reads the identification strings the kernel
// publishes for processor 0.
func registryVendorModel() (vendor, model string) {
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, centralProcessorKey, registry.QUERY_VALUE)
	if err != nil {
		return "", ""
	}
	defer k.Close()
	vendor, _, _ = k.GetStringValue("VendorIdentifier")
	model, _, _ = k.GetStringValue("ProcessorNameString")
	return vendor, model
}

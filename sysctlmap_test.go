package gdtcpus

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/shoenig/test/must"
)

// fakeSysctl serves a recorded sysctl key space.
type fakeSysctl struct {
	strs map[string]string
	u64s map[string]uint64
	raws map[string][]byte
}

var errNoSuchKey = errors.New("no such sysctl key")

func (f fakeSysctl) fns() sysctlFns {
	return sysctlFns{
		Str: func(name string) (string, error) {
			v, ok := f.strs[name]
			if !ok {
				return "", errNoSuchKey
			}
			return v, nil
		},
		U64: func(name string) (uint64, error) {
			v, ok := f.u64s[name]
			if !ok {
				return 0, errNoSuchKey
			}
			return v, nil
		},
		Raw: func(name string) ([]byte, error) {
			v, ok := f.raws[name]
			if !ok {
				return nil, errNoSuchKey
			}
			return v, nil
		},
	}
}

func u64le(values ...uint64) []byte {
	out := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(out[i*8:], v)
	}
	return out
}

// m3max is the recorded key space of an Apple M3 Max: 12 performance
// and 4 efficiency cores, no SMT, no L3 (the SoC uses a system-level
// cache which sysctl does not report as L3).
func m3max() fakeSysctl {
	return fakeSysctl{
		strs: map[string]string{
			"machdep.cpu.brand_string": "Apple M3 Max",
		},
		u64s: map[string]uint64{
			"hw.packages":                 1,
			"hw.physicalcpu":              16,
			"hw.logicalcpu":               16,
			"hw.cachelinesize":            128,
			"hw.perflevel0.physicalcpu":   12,
			"hw.perflevel0.logicalcpu":    12,
			"hw.perflevel0.l1icachesize":  192 * 1024,
			"hw.perflevel0.l1dcachesize":  128 * 1024,
			"hw.perflevel0.l2cachesize":   16384 * 1024,
			"hw.perflevel1.physicalcpu":   4,
			"hw.perflevel1.logicalcpu":    4,
			"hw.perflevel1.l1icachesize":  128 * 1024,
			"hw.perflevel1.l1dcachesize":  64 * 1024,
			"hw.perflevel1.l2cachesize":   4096 * 1024,
			"hw.optional.arm.FEAT_AES":    1,
			"hw.optional.arm.FEAT_SHA256": 1,
			"hw.optional.FEAT_CRC32":      0,
			"hw.optional.armv8_crc32":     1,
		},
		raws: map[string][]byte{
			"hw.cacheconfig": u64le(16, 1, 4, 0),
		},
	}
}

func TestBuildDarwinTopology_M3Max(t *testing.T) {
	ci, err := buildDarwinTopology(m3max().fns(), true)
	must.NoError(t, err)

	must.Eq(t, "Apple", ci.Vendor)
	must.Eq(t, "Apple M3 Max", ci.ModelName)
	must.Eq(t, 16, ci.TotalPhysicalCores)
	must.Eq(t, 16, ci.TotalLogicalProcessors)
	must.Eq(t, 12, ci.TotalPerformanceCores)
	must.Eq(t, 4, ci.TotalEfficiencyCores)
	must.True(t, ci.Hybrid)

	must.Len(t, 1, ci.Sockets)
	socket := ci.Sockets[0]
	must.Nil(t, socket.L3)
	must.Len(t, 16, socket.Cores)

	// Performance cores come first and are numbered densely.
	for i := 0; i < 12; i++ {
		core := socket.Cores[i]
		must.Eq(t, i, core.ID)
		must.Eq(t, KindPerformance, core.Kind)
		must.Eq(t, []int{i}, core.LogicalProcessors)
		must.Eq(t, uint64(192*1024), core.L1i.SizeBytes)
		must.Eq(t, uint64(128*1024), core.L1d.SizeBytes)
		must.Eq(t, uint64(16384*1024), core.L2.SizeBytes)
	}
	for i := 12; i < 16; i++ {
		core := socket.Cores[i]
		must.Eq(t, KindEfficiency, core.Kind)
		must.Eq(t, []int{i}, core.LogicalProcessors)
		must.Eq(t, uint64(128*1024), core.L1i.SizeBytes)
		must.Eq(t, uint64(64*1024), core.L1d.SizeBytes)
		must.Eq(t, uint64(4096*1024), core.L2.SizeBytes)
	}

	must.True(t, ci.Features.Has(NEON))
	must.True(t, ci.Features.Has(AES))
	must.True(t, ci.Features.Has(SHA))
	must.True(t, ci.Features.Has(CRC32))
	must.False(t, ci.Features.Has(SVE))
	must.False(t, ci.Features.Has(AVX))
}

// intelMac is an x86 Mac: no perflevels, SMT-2, a real L3.
func intelMac() fakeSysctl {
	return fakeSysctl{
		strs: map[string]string{
			"machdep.cpu.brand_string": "Intel(R) Core(TM) i7-8700B CPU @ 3.20GHz",
			"machdep.cpu.vendor":       "GenuineIntel",
		},
		u64s: map[string]uint64{
			"hw.packages":      1,
			"hw.physicalcpu":   6,
			"hw.logicalcpu":    12,
			"hw.cachelinesize": 64,
			"hw.l1icachesize":  32 * 1024,
			"hw.l1dcachesize":  32 * 1024,
			"hw.l2cachesize":   256 * 1024,
			"hw.l3cachesize":   12 * 1024 * 1024,
		},
		raws: map[string][]byte{
			"hw.cacheconfig": u64le(12, 2, 2, 12),
		},
	}
}

func TestBuildDarwinTopology_IntelMac(t *testing.T) {
	ci, err := buildDarwinTopology(intelMac().fns(), false)
	must.NoError(t, err)

	must.Eq(t, "GenuineIntel", ci.Vendor)
	must.Eq(t, 6, ci.TotalPhysicalCores)
	must.Eq(t, 12, ci.TotalLogicalProcessors)
	must.Eq(t, 6, ci.TotalPerformanceCores)
	must.Eq(t, 0, ci.TotalEfficiencyCores)
	must.False(t, ci.Hybrid)

	socket := ci.Sockets[0]
	must.NotNil(t, socket.L3)
	must.Eq(t, uint64(12*1024*1024), socket.L3.SizeBytes)
	for _, core := range socket.Cores {
		must.True(t, core.SMT())
		must.Len(t, 2, core.LogicalProcessors)
	}

	// AArch64 features never appear on x86.
	must.False(t, ci.Features.Has(NEON))
}

func TestBuildDarwinTopology_MissingCounts(t *testing.T) {
	_, err := buildDarwinTopology(fakeSysctl{}.fns(), true)
	must.Error(t, err)
}

func TestParseCacheConfig(t *testing.T) {
	must.Eq(t, []uint64{16, 1, 4, 0}, parseCacheConfig(u64le(16, 1, 4, 0)))
	must.Len(t, 0, parseCacheConfig(nil))
	// Trailing partial words are dropped.
	must.Eq(t, []uint64{7}, parseCacheConfig(append(u64le(7), 0xAA)))
}

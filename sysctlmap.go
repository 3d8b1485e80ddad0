package gdtcpus

import (
	"encoding/binary"
	"strings"
)

// macOS publishes its topology through sysctl. The builder consumes a
// small set of getter functions so the mapping runs against recorded
// key/value fixtures on any host; detect_darwin.go supplies the live
// getters.

// sysctlFns are the three sysctl access shapes the builder needs.
// Getters return an error for unknown keys; the builder treats every
// key as optional except the core counts.
type sysctlFns struct {
	Str func(name string) (string, error)
	U64 func(name string) (uint64, error)
	Raw func(name string) ([]byte, error)
}

func (sc sysctlFns) str(name string) string {
	v, err := sc.Str(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(v)
}

func (sc sysctlFns) u64(name string, fallback uint64) uint64 {
	v, err := sc.U64(name)
	if err != nil || v == 0 {
		return fallback
	}
	return v
}

func (sc sysctlFns) flag(name string) bool {
	v, err := sc.U64(name)
	return err == nil && v != 0
}

// perfLevel is one hw.perflevelN.* group: Apple Silicon exposes
// performance cores as level 0 and efficiency cores as level 1.
type perfLevel struct {
	kind     CoreKind
	physical int
	logical  int
	l1i, l1d uint64
	l2       uint64
}

func readPerfLevel(sc sysctlFns, n int, kind CoreKind) (perfLevel, bool) {
	prefix := "hw.perflevel" + string(rune('0'+n)) + "."
	phys := sc.u64(prefix+"physicalcpu", 0)
	if phys == 0 {
		return perfLevel{}, false
	}
	return perfLevel{
		kind:     kind,
		physical: int(phys),
		logical:  int(sc.u64(prefix+"logicalcpu", phys)),
		l1i:      sc.u64(prefix+"l1icachesize", sc.u64("hw.l1icachesize", 0)),
		l1d:      sc.u64(prefix+"l1dcachesize", sc.u64("hw.l1dcachesize", 0)),
		l2:       sc.u64(prefix+"l2cachesize", sc.u64("hw.l2cachesize", 0)),
	}, true
}

// parseCacheConfig decodes hw.cacheconfig, an array of uint64 indexed
// by cache level whose entries count the logical processors sharing
// each level (entry 0 covers memory).
func parseCacheConfig(raw []byte) []uint64 {
	out := make([]uint64, 0, len(raw)/8)
	for i := 0; i+8 <= len(raw); i += 8 {
		out = append(out, binary.LittleEndian.Uint64(raw[i:]))
	}
	return out
}

// buildDarwinTopology synthesizes the canonical model from sysctl.
// Sockets come from hw.packages (virtually always one); cores are
// ordered performance-first with logical processors numbered densely
// in that order, which is how XNU itself numbers them.
func buildDarwinTopology(sc sysctlFns, arm bool) (*CpuInfo, error) {
	physical := int(sc.u64("hw.physicalcpu", 0))
	logical := int(sc.u64("hw.logicalcpu", uint64(physical)))
	if physical == 0 {
		return nil, &ParseError{Source: "hw.physicalcpu", Detail: "missing or zero"}
	}

	brand := sc.str("machdep.cpu.brand_string")
	vendor := sc.str("machdep.cpu.vendor")
	if vendor == "" {
		if arm {
			vendor = "Apple"
		} else if fields := strings.Fields(brand); len(fields) > 0 {
			vendor = fields[0]
		}
	}

	// Performance cores first, efficiency second. Hosts without
	// perflevels (x86 Macs) get a single synthetic level covering
	// every core.
	var levels []perfLevel
	if p0, ok := readPerfLevel(sc, 0, KindPerformance); ok {
		levels = append(levels, p0)
		if p1, ok := readPerfLevel(sc, 1, KindEfficiency); ok {
			levels = append(levels, p1)
		}
	} else {
		levels = append(levels, perfLevel{
			kind:     KindPerformance,
			physical: physical,
			logical:  logical,
			l1i:      sc.u64("hw.l1icachesize", 0),
			l1d:      sc.u64("hw.l1dcachesize", 0),
			l2:       sc.u64("hw.l2cachesize", 0),
		})
	}

	lineSize := uint16(sc.u64("hw.cachelinesize", 0))
	l3Size := sc.u64("hw.l3cachesize", 0)
	var cacheConfig []uint64
	if raw, err := sc.Raw("hw.cacheconfig"); err == nil {
		cacheConfig = parseCacheConfig(raw)
	}
	hasL3 := l3Size > 0 && (len(cacheConfig) < 4 || cacheConfig[3] > 0)

	packages := int(sc.u64("hw.packages", 1))
	if packages < 1 {
		packages = 1
	}

	ci := &CpuInfo{Vendor: vendor, ModelName: brand}
	nextLP := 0
	for socketID := 0; socketID < packages; socketID++ {
		socket := SocketInfo{ID: socketID}
		if hasL3 {
			socket.L3 = &CacheInfo{Level: 3, Kind: CacheUnified, SizeBytes: l3Size, LineSizeBytes: lineSize}
		}
		coreID := 0
		for _, level := range levels {
			coresHere := level.physical / packages
			threads := 1
			if level.physical > 0 {
				threads = max(1, level.logical/level.physical)
			}
			for n := 0; n < coresHere; n++ {
				core := CoreInfo{
					ID:       coreID,
					SocketID: socketID,
					Kind:     level.kind,
				}
				for t := 0; t < threads; t++ {
					core.LogicalProcessors = append(core.LogicalProcessors, nextLP)
					nextLP++
				}
				if level.l1i > 0 {
					core.L1i = &CacheInfo{Level: 1, Kind: CacheInstruction, SizeBytes: level.l1i, LineSizeBytes: lineSize}
				}
				if level.l1d > 0 {
					core.L1d = &CacheInfo{Level: 1, Kind: CacheData, SizeBytes: level.l1d, LineSizeBytes: lineSize}
				}
				if level.l2 > 0 {
					core.L2 = &CacheInfo{Level: 2, Kind: CacheUnified, SizeBytes: level.l2, LineSizeBytes: lineSize}
				}
				socket.Cores = append(socket.Cores, core)
				coreID++
			}
		}
		ci.Sockets = append(ci.Sockets, socket)
	}

	if arm {
		ci.Features = darwinARMFeatures(sc)
	}

	ci.finalize()
	return ci, nil
}

// darwinARMFeatures probes hw.optional.* the way Apple documents the
// ARM feature names, with the older pre-FEAT_* spellings as fallback.
func darwinARMFeatures(sc sysctlFns) Features {
	var fs Features
	// NEON (AdvSIMD) is architecturally mandatory on ARMv8-A.
	fs.setIf(true, NEON)
	fs.setIf(sc.flag("hw.optional.arm.FEAT_AES"), AES)
	fs.setIf(sc.flag("hw.optional.arm.FEAT_SHA256") || sc.flag("hw.optional.armv8_2_sha512"), SHA)
	fs.setIf(sc.flag("hw.optional.arm.FEAT_CRC32") || sc.flag("hw.optional.armv8_crc32"), CRC32)
	fs.setIf(sc.flag("hw.optional.arm.FEAT_SVE"), SVE)
	return fs
}

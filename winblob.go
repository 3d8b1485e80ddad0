package gdtcpus

import (
	"encoding/binary"
	"sort"
)

// Decoding of the variable-length SYSTEM_LOGICAL_PROCESSOR_INFORMATION_EX
// blob returned by GetLogicalProcessorInformationEx(RelationAll). The
// decoder works on a plain byte buffer so it runs against captured
// fixtures on any host; only the call that produces the buffer is
// Windows-specific.
//
// https://learn.microsoft.com/en-us/windows/win32/api/winnt/ns-winnt-system_logical_processor_information_ex

const (
	relationProcessorCore    = 0
	relationNumaNode         = 1
	relationCache            = 2
	relationProcessorPackage = 3
	relationGroup            = 4

	// KAFFINITY is a 64-bit word; a logical processor is addressed as
	// group*64 + bit.
	winGroupBits = 64
)

// winGroupAffinity is one GROUP_AFFINITY: a 64-bit mask within a
// processor group.
type winGroupAffinity struct {
	Mask  uint64
	Group uint16
}

func (g winGroupAffinity) logicalProcessors() []int {
	base := int(g.Group) * winGroupBits
	mask := MaskFromWords([]uint64{g.Mask})
	lps := mask.Indices()
	for i := range lps {
		lps[i] += base
	}
	return lps
}

// winCoreRecord is one RelationProcessorCore record.
type winCoreRecord struct {
	EfficiencyClass uint8
	Groups          []winGroupAffinity
}

// winCacheRecord is one RelationCache record.
type winCacheRecord struct {
	Level    uint8
	Kind     CacheKind
	SizeB    uint32
	LineSize uint16
	Groups   []winGroupAffinity
}

// winPackageRecord is one RelationProcessorPackage record.
type winPackageRecord struct {
	Groups []winGroupAffinity
}

// winProcessorInfo is the decoded blob.
type winProcessorInfo struct {
	Cores    []winCoreRecord
	Caches   []winCacheRecord
	Packages []winPackageRecord
}

func decodeGroupAffinities(buf []byte, offset int, count int) ([]winGroupAffinity, bool) {
	const groupAffinitySize = 16
	groups := make([]winGroupAffinity, 0, count)
	for i := 0; i < count; i++ {
		at := offset + i*groupAffinitySize
		if at+groupAffinitySize > len(buf) {
			return nil, false
		}
		groups = append(groups, winGroupAffinity{
			Mask:  binary.LittleEndian.Uint64(buf[at:]),
			Group: binary.LittleEndian.Uint16(buf[at+8:]),
		})
	}
	return groups, true
}

// decodeProcessorInfoEx walks the tagged records of the blob. NUMA and
// group records are skipped: the model keeps NUMA identity only at the
// socket level, and group geometry is implicit in the affinities.
func decodeProcessorInfoEx(buf []byte) (*winProcessorInfo, error) {
	info := &winProcessorInfo{}
	offset := 0
	for offset < len(buf) {
		if offset+8 > len(buf) {
			return nil, &ParseError{Source: "logical processor information", Detail: "truncated record header"}
		}
		relationship := binary.LittleEndian.Uint32(buf[offset:])
		size := int(binary.LittleEndian.Uint32(buf[offset+4:]))
		if size < 8 || offset+size > len(buf) {
			return nil, &ParseError{Source: "logical processor information", Detail: "bad record size"}
		}
		body := buf[offset : offset+size]

		switch relationship {
		case relationProcessorCore, relationProcessorPackage:
			// PROCESSOR_RELATIONSHIP: Flags, EfficiencyClass,
			// Reserved[20], GroupCount, GROUP_AFFINITY[GroupCount].
			if len(body) < 32 {
				return nil, &ParseError{Source: "processor relationship", Detail: "record too short"}
			}
			count := int(binary.LittleEndian.Uint16(body[30:]))
			if count == 0 {
				count = 1
			}
			groups, ok := decodeGroupAffinities(body, 32, count)
			if !ok {
				return nil, &ParseError{Source: "processor relationship", Detail: "truncated group masks"}
			}
			if relationship == relationProcessorCore {
				info.Cores = append(info.Cores, winCoreRecord{
					EfficiencyClass: body[9],
					Groups:          groups,
				})
			} else {
				info.Packages = append(info.Packages, winPackageRecord{Groups: groups})
			}

		case relationCache:
			// CACHE_RELATIONSHIP: Level, Associativity, LineSize,
			// CacheSize, Type, then GroupCount at offset 38 with the
			// masks at 40 (the pre-20H2 layout leaves 38 zeroed and
			// stores a single GROUP_AFFINITY at the same offset).
			if len(body) < 56 {
				return nil, &ParseError{Source: "cache relationship", Detail: "record too short"}
			}
			count := int(binary.LittleEndian.Uint16(body[38:]))
			if count == 0 {
				count = 1
			}
			groups, ok := decodeGroupAffinities(body, 40, count)
			if !ok {
				return nil, &ParseError{Source: "cache relationship", Detail: "truncated group masks"}
			}
			kind := CacheUnified
			switch binary.LittleEndian.Uint32(body[16:]) {
			case 1:
				kind = CacheInstruction
			case 2:
				kind = CacheData
			case 3:
				// Trace caches have no slot in the model.
				offset += size
				continue
			}
			info.Caches = append(info.Caches, winCacheRecord{
				Level:    body[8],
				Kind:     kind,
				SizeB:    binary.LittleEndian.Uint32(body[12:]),
				LineSize: binary.LittleEndian.Uint16(body[10:]),
				Groups:   groups,
			})

		case relationNumaNode, relationGroup:
			// Skipped by design; see above.
		}
		offset += size
	}
	return info, nil
}

// decodeLegacyCacheRecords reads RelationCache entries out of the
// fixed-size SYSTEM_LOGICAL_PROCESSOR_INFORMATION array returned by
// the older GetLogicalProcessorInformation call. Used only when the
// Ex blob carries no cache records; group is always zero there.
func decodeLegacyCacheRecords(buf []byte) []winCacheRecord {
	// 64-bit layout: ProcessorMask (8), Relationship (4, padded to 8),
	// CACHE_DESCRIPTOR union: Level, Associativity, LineSize, Size,
	// Type.
	const recordSize = 32
	var caches []winCacheRecord
	for offset := 0; offset+recordSize <= len(buf); offset += recordSize {
		if binary.LittleEndian.Uint32(buf[offset+8:]) != relationCache {
			continue
		}
		kind := CacheUnified
		switch binary.LittleEndian.Uint32(buf[offset+24:]) {
		case 1:
			kind = CacheInstruction
		case 2:
			kind = CacheData
		case 3:
			continue
		}
		caches = append(caches, winCacheRecord{
			Level:    buf[offset+16],
			Kind:     kind,
			SizeB:    binary.LittleEndian.Uint32(buf[offset+20:]),
			LineSize: binary.LittleEndian.Uint16(buf[offset+18:]),
			Groups:   []winGroupAffinity{{Mask: binary.LittleEndian.Uint64(buf[offset:])}},
		})
	}
	return caches
}

func groupsToMask(groups []winGroupAffinity) AffinityMask {
	var m AffinityMask
	for _, g := range groups {
		for _, lp := range g.logicalProcessors() {
			m.Insert(lp)
		}
	}
	return m
}

// buildWindowsTopology maps the decoded records to the canonical
// model. Cores carrying the maximum efficiency class observed on the
// host are performance cores; strictly lower classes are efficiency.
// When every record carries the same class the host is not hybrid and
// all cores are performance — classifying by "class > 0" would
// misreport uniform hosts whose firmware reports a nonzero class.
func buildWindowsTopology(info *winProcessorInfo, vendor, model string) (*CpuInfo, error) {
	if len(info.Cores) == 0 {
		return nil, &ParseError{Source: "logical processor information", Detail: "no processor core records"}
	}

	// Synthesize a single all-covering package when the blob carries
	// no package records (seen on some virtualized hosts).
	packages := info.Packages
	if len(packages) == 0 {
		var all []winGroupAffinity
		for _, core := range info.Cores {
			all = append(all, core.Groups...)
		}
		packages = []winPackageRecord{{Groups: all}}
	}

	maxClass := uint8(0)
	for _, core := range info.Cores {
		maxClass = max(maxClass, core.EfficiencyClass)
	}
	hybrid := false
	for _, core := range info.Cores {
		if core.EfficiencyClass != maxClass {
			hybrid = true
			break
		}
	}

	type pkgView struct {
		mask AffinityMask
		rec  winPackageRecord
	}
	views := make([]pkgView, 0, len(packages))
	for _, pkg := range packages {
		views = append(views, pkgView{mask: groupsToMask(pkg.Groups), rec: pkg})
	}
	sort.Slice(views, func(i, j int) bool {
		return firstIndex(views[i].mask) < firstIndex(views[j].mask)
	})

	ci := &CpuInfo{Vendor: vendor, ModelName: model}
	for socketID, view := range views {
		socket := SocketInfo{ID: socketID}

		type coreView struct {
			mask AffinityMask
			rec  winCoreRecord
		}
		var cores []coreView
		for _, core := range info.Cores {
			m := groupsToMask(core.Groups)
			if !m.Intersect(view.mask).IsEmpty() {
				cores = append(cores, coreView{mask: m, rec: core})
			}
		}
		sort.Slice(cores, func(i, j int) bool {
			return firstIndex(cores[i].mask) < firstIndex(cores[j].mask)
		})

		for denseID, cv := range cores {
			kind := KindPerformance
			if hybrid && cv.rec.EfficiencyClass < maxClass {
				kind = KindEfficiency
			}
			core := CoreInfo{
				ID:                denseID,
				SocketID:          socketID,
				Kind:              kind,
				LogicalProcessors: cv.mask.Indices(),
			}
			attachWindowsCoreCaches(info.Caches, &core, cv.mask)
			socket.Cores = append(socket.Cores, core)
		}

		for _, cache := range info.Caches {
			if cache.Level == 3 && !groupsToMask(cache.Groups).Intersect(view.mask).IsEmpty() {
				socket.L3 = &CacheInfo{
					Level:         3,
					Kind:          cache.Kind,
					SizeBytes:     uint64(cache.SizeB),
					LineSizeBytes: cache.LineSize,
				}
				break
			}
		}
		ci.Sockets = append(ci.Sockets, socket)
	}

	ci.finalize()
	return ci, nil
}

// attachWindowsCoreCaches attaches L1/L2 records covering the core's
// mask. A record spanning several cores attaches to each of them.
func attachWindowsCoreCaches(caches []winCacheRecord, core *CoreInfo, coreMask AffinityMask) {
	for _, cache := range caches {
		if cache.Level != 1 && cache.Level != 2 {
			continue
		}
		if groupsToMask(cache.Groups).Intersect(coreMask).IsEmpty() {
			continue
		}
		ci := &CacheInfo{
			Level:         cache.Level,
			Kind:          cache.Kind,
			SizeBytes:     uint64(cache.SizeB),
			LineSizeBytes: cache.LineSize,
		}
		switch {
		case cache.Level == 1 && cache.Kind == CacheInstruction:
			core.L1i = ci
		case cache.Level == 1 && cache.Kind != CacheInstruction:
			core.L1d = ci
		case cache.Level == 2:
			core.L2 = ci
		}
	}
}

func firstIndex(m AffinityMask) int {
	ids := m.Indices()
	if len(ids) == 0 {
		return int(^uint(0) >> 1)
	}
	return ids[0]
}

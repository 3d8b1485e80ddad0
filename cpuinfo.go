package gdtcpus

import (
	"fmt"
	"strings"
)

// CacheKind distinguishes data, instruction, and unified caches.
type CacheKind uint8

const (
	CacheData CacheKind = iota
	CacheInstruction
	CacheUnified
)

func (k CacheKind) String() string {
	switch k {
	case CacheData:
		return "data"
	case CacheInstruction:
		return "instruction"
	default:
		return "unified"
	}
}

// CacheInfo describes one cache. A nil *CacheInfo on the owning core
// or socket means the platform did not report that cache at all; a
// zero SizeBytes or LineSizeBytes inside a present cache means the
// specific attribute was not reported.
type CacheInfo struct {
	// Level is 1, 2 or 3.
	Level uint8

	// Kind is data, instruction or unified.
	Kind CacheKind

	// SizeBytes is the total capacity.
	SizeBytes uint64

	// LineSizeBytes is the cache-line length.
	LineSizeBytes uint16
}

// CoreKind classifies a core on hybrid CPUs. Efficiency only ever
// appears on platforms that expose hybrid classification; everything
// else is Performance.
type CoreKind uint8

const (
	KindPerformance CoreKind = iota
	KindEfficiency
	KindUnknown
)

func (k CoreKind) String() string {
	switch k {
	case KindPerformance:
		return "Performance"
	case KindEfficiency:
		return "Efficiency"
	default:
		return "Unknown"
	}
}

// CoreInfo describes one physical core. The back-reference to its
// socket is an identifier, not a pointer; resolve through [CpuInfo].
type CoreInfo struct {
	// ID is dense within the owning socket, starting at zero.
	ID int

	// SocketID identifies the owning socket.
	SocketID int

	// Kind is the hybrid classification of this core.
	Kind CoreKind

	// LogicalProcessors are the OS indices of the hardware threads on
	// this core, ascending, at least one entry. More than one entry
	// means SMT.
	LogicalProcessors []int

	// Per-core caches, nil when not reported.
	L1d *CacheInfo
	L1i *CacheInfo
	L2  *CacheInfo
}

// SMT reports whether this core runs more than one hardware thread.
func (c *CoreInfo) SMT() bool { return len(c.LogicalProcessors) > 1 }

// SocketInfo describes one physical package. Socket ids are dense and
// start at zero.
type SocketInfo struct {
	ID    int
	Cores []CoreInfo

	// L3 is the package-level cache, nil when not reported.
	L3 *CacheInfo
}

// coreRef locates a core inside CpuInfo.Sockets by slice positions.
type coreRef struct {
	socket int
	core   int
}

// CpuInfo is the root of the canonical topology model. It is built
// once by the platform detector and never mutated afterwards; the
// totals are derived from Sockets during construction.
type CpuInfo struct {
	// Vendor is the CPU vendor string, e.g. "GenuineIntel",
	// "AuthenticAMD", "Apple".
	Vendor string

	// ModelName is the human-readable model string.
	ModelName string

	// Sockets lists the physical packages, socket id ascending.
	Sockets []SocketInfo

	// Features is the detected instruction-set capability bitset.
	Features Features

	// Derived totals; always consistent with Sockets.
	TotalPhysicalCores     int
	TotalLogicalProcessors int
	TotalPerformanceCores  int
	TotalEfficiencyCores   int

	// Hybrid is true iff both performance and efficiency cores are
	// present.
	Hybrid bool

	byLogical map[int]coreRef
	flatCores []coreRef
}

// finalize derives the totals, the hybrid flag and the lookup indexes.
// Detectors call it exactly once, before publication.
func (ci *CpuInfo) finalize() {
	ci.TotalPhysicalCores = 0
	ci.TotalLogicalProcessors = 0
	ci.TotalPerformanceCores = 0
	ci.TotalEfficiencyCores = 0
	ci.byLogical = make(map[int]coreRef)
	ci.flatCores = ci.flatCores[:0]
	for si := range ci.Sockets {
		for cj := range ci.Sockets[si].Cores {
			core := &ci.Sockets[si].Cores[cj]
			ref := coreRef{socket: si, core: cj}
			ci.flatCores = append(ci.flatCores, ref)
			ci.TotalPhysicalCores++
			ci.TotalLogicalProcessors += len(core.LogicalProcessors)
			switch core.Kind {
			case KindEfficiency:
				ci.TotalEfficiencyCores++
			default:
				ci.TotalPerformanceCores++
			}
			for _, lp := range core.LogicalProcessors {
				ci.byLogical[lp] = ref
			}
		}
	}
	ci.Hybrid = ci.TotalPerformanceCores > 0 && ci.TotalEfficiencyCores > 0
}

// Socket returns the socket with the given id.
func (ci *CpuInfo) Socket(id int) (*SocketInfo, bool) {
	for i := range ci.Sockets {
		if ci.Sockets[i].ID == id {
			return &ci.Sockets[i], true
		}
	}
	return nil, false
}

// Core returns the core with the given socket-local id.
func (ci *CpuInfo) Core(socketID, coreID int) (*CoreInfo, bool) {
	s, ok := ci.Socket(socketID)
	if !ok {
		return nil, false
	}
	for i := range s.Cores {
		if s.Cores[i].ID == coreID {
			return &s.Cores[i], true
		}
	}
	return nil, false
}

// CoreAt returns the core with the given global index, counting cores
// across sockets in socket order. This is the numbering the affinity
// API uses.
func (ci *CpuInfo) CoreAt(global int) (*CoreInfo, bool) {
	if global < 0 || global >= len(ci.flatCores) {
		return nil, false
	}
	ref := ci.flatCores[global]
	return &ci.Sockets[ref.socket].Cores[ref.core], true
}

// LocationOf maps a logical-processor index back to its owning socket
// and socket-local core id.
func (ci *CpuInfo) LocationOf(lp int) (socketID, coreID int, ok bool) {
	ref, found := ci.byLogical[lp]
	if !found {
		return 0, 0, false
	}
	core := &ci.Sockets[ref.socket].Cores[ref.core]
	return core.SocketID, core.ID, true
}

// LogicalProcessorMask returns the set of every logical processor in
// the topology — the universe affinity masks are validated against.
func (ci *CpuInfo) LogicalProcessorMask() AffinityMask {
	var m AffinityMask
	for _, ref := range ci.flatCores {
		for _, lp := range ci.Sockets[ref.socket].Cores[ref.core].LogicalProcessors {
			m.Insert(lp)
		}
	}
	return m
}

// coreIDsOfKind returns global core indices of the given kind.
func (ci *CpuInfo) coreIDsOfKind(kind CoreKind) []int {
	var out []int
	for i, ref := range ci.flatCores {
		if ci.Sockets[ref.socket].Cores[ref.core].Kind == kind {
			out = append(out, i)
		}
	}
	return out
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func cacheLine(prefix string, label string, c *CacheInfo) string {
	return fmt.Sprintf("%s%s Cache: %d KB\n", prefix, label, c.SizeBytes/1024)
}

// String renders the topology in the stable pretty text form.
func (ci *CpuInfo) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Vendor: %s\n", ci.Vendor)
	fmt.Fprintf(&sb, "Model: %s\n", ci.ModelName)
	fmt.Fprintf(&sb, "Physical cores: %d\n", ci.TotalPhysicalCores)
	fmt.Fprintf(&sb, "Logical processors: %d\n", ci.TotalLogicalProcessors)
	fmt.Fprintf(&sb, "Performance cores: %d\n", ci.TotalPerformanceCores)
	fmt.Fprintf(&sb, "Efficiency cores: %d\n", ci.TotalEfficiencyCores)
	fmt.Fprintf(&sb, "Hybrid: %s\n", yesNo(ci.Hybrid))
	for i := range ci.Sockets {
		s := &ci.Sockets[i]
		fmt.Fprintf(&sb, "Processor #%d (Socket ID: %d)\n", i, s.ID)
		if s.L3 != nil {
			sb.WriteString(cacheLine("  ", "L3", s.L3))
		}
		for j := range s.Cores {
			core := &s.Cores[j]
			kind := core.Kind
			if kind == KindUnknown {
				kind = KindPerformance
			}
			fmt.Fprintf(&sb, "  Core #%d: %s core with %d threads\n",
				core.ID, kind, len(core.LogicalProcessors))
			if core.L1i != nil {
				sb.WriteString(cacheLine("    ", "L1i", core.L1i))
			}
			if core.L1d != nil {
				sb.WriteString(cacheLine("    ", "L1d", core.L1d))
			}
			if core.L2 != nil {
				sb.WriteString(cacheLine("    ", "L2", core.L2))
			}
		}
	}
	fmt.Fprintf(&sb, "CPU Features: %s\n", ci.Features)
	return sb.String()
}

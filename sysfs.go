package gdtcpus

import (
	"bufio"
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Linux topology is read out of sysfs, with /proc/cpuinfo supplying
// the identification strings. All readers go through an injected
// function so the builder runs against fixture data on any host.

const (
	sysCPURoot  = "/sys/devices/system/cpu"
	procCPUInfo = "/proc/cpuinfo"

	cpuOnlinePath   = sysCPURoot + "/online"
	cpuTopologyPath = sysCPURoot + "/cpu%d/topology/%s"
	cpuCapacityPath = sysCPURoot + "/cpu%d/cpu_capacity"
	cpuMaxFreqPath  = sysCPURoot + "/cpu%d/cpufreq/cpuinfo_max_freq"
	cpuCachePath    = sysCPURoot + "/cpu%d/cache/index%d/%s"
)

type readFileFn func(string) ([]byte, error)

// lpRecord is the raw per-logical-processor view of sysfs, before
// grouping into sockets and cores.
type lpRecord struct {
	id       int
	pkg      int
	coreID   int
	siblings []int
	capacity int64 // -1 when the kernel does not expose cpu_capacity
	maxFreq  int64 // -1 when cpufreq is absent
	part     int64 // MIDR part number on AArch64, -1 elsewhere
}

// readCPUList reads a sysfs file in list form ("0-3,8-11").
func readCPUList(readFile readFileFn, path string) ([]int, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	m, err := ParseMask(string(bytes.TrimSpace(data)))
	if err != nil {
		return nil, &ParseError{Source: path, Detail: err.Error()}
	}
	return m.Indices(), nil
}

func readInt(readFile readFileFn, path string) (int64, error) {
	data, err := readFile(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, &ParseError{Source: path, Detail: err.Error()}
	}
	return v, nil
}

// parseCacheSize converts sysfs cache sizes like "512K" or "32M" to
// bytes.
func parseCacheSize(s string) (uint64, bool) {
	s = strings.TrimSpace(s)
	mult := uint64(1)
	switch {
	case strings.HasSuffix(s, "K"):
		mult, s = 1024, strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		mult, s = 1024*1024, strings.TrimSuffix(s, "M")
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v * mult, true
}

// readCache reads one cache/indexN directory for a logical processor.
// Returns nil when the index does not exist.
func readCache(readFile readFileFn, lp, index int) *CacheInfo {
	levelData, err := readFile(fmt.Sprintf(cpuCachePath, lp, index, "level"))
	if err != nil {
		return nil
	}
	level, err := strconv.Atoi(strings.TrimSpace(string(levelData)))
	if err != nil || level < 1 || level > 3 {
		return nil
	}
	c := &CacheInfo{Level: uint8(level), Kind: CacheUnified}
	if t, err := readFile(fmt.Sprintf(cpuCachePath, lp, index, "type")); err == nil {
		switch strings.TrimSpace(string(t)) {
		case "Data":
			c.Kind = CacheData
		case "Instruction":
			c.Kind = CacheInstruction
		}
	}
	if s, err := readFile(fmt.Sprintf(cpuCachePath, lp, index, "size")); err == nil {
		if sz, ok := parseCacheSize(string(s)); ok {
			c.SizeBytes = sz
		}
	}
	if l, err := readInt(readFile, fmt.Sprintf(cpuCachePath, lp, index, "coherency_line_size")); err == nil && l > 0 {
		c.LineSizeBytes = uint16(l)
	}
	return c
}

// cpuinfoIdentity is what /proc/cpuinfo contributes: identification
// strings plus the AArch64 per-processor part numbers.
type cpuinfoIdentity struct {
	vendor string
	model  string
	parts  map[int]int64 // processor index -> CPU part
}

// armImplementers maps MIDR implementer codes to vendor names.
var armImplementers = map[int64]string{
	0x41: "ARM",
	0x42: "Broadcom",
	0x43: "Cavium",
	0x46: "Fujitsu",
	0x48: "HiSilicon",
	0x4e: "NVIDIA",
	0x51: "Qualcomm",
	0x53: "Samsung",
	0x61: "Apple",
}

func parseProcCPUInfo(data []byte) cpuinfoIdentity {
	id := cpuinfoIdentity{parts: make(map[int]int64)}
	proc := -1
	s := bufio.NewScanner(bytes.NewReader(data))
	for s.Scan() {
		key, val, ok := strings.Cut(s.Text(), ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		switch key {
		case "processor":
			if n, err := strconv.Atoi(val); err == nil {
				proc = n
			}
		case "vendor_id":
			if id.vendor == "" {
				id.vendor = val
			}
		case "model name":
			if id.model == "" {
				id.model = val
			}
		case "CPU implementer":
			if id.vendor == "" {
				if code, err := strconv.ParseInt(val, 0, 64); err == nil {
					if name, ok := armImplementers[code]; ok {
						id.vendor = name
					}
				}
			}
		case "CPU part":
			if code, err := strconv.ParseInt(val, 0, 64); err == nil && proc >= 0 {
				id.parts[proc] = code
			}
		}
	}
	return id
}

// buildLinuxTopology assembles the canonical model from sysfs and
// /proc/cpuinfo. The online set is the universe: logical processors
// removed by cgroup or hotplug simply do not exist here, and affinity
// validation inherits that view.
//
// hybridHint is the package-level hybrid signal (CPUID on x86); it
// gates the frequency-bucket fallback so non-hybrid hosts are never
// split into fictitious core classes.
func buildLinuxTopology(readFile readFileFn, hybridHint bool) (*CpuInfo, error) {
	online, err := readCPUList(readFile, cpuOnlinePath)
	if err != nil {
		return nil, fmt.Errorf("reading online cpus: %w", err)
	}
	if len(online) == 0 {
		return nil, &ParseError{Source: cpuOnlinePath, Detail: "no online cpus"}
	}
	onlineSet := NewAffinityMask(online...)

	var identity cpuinfoIdentity
	if data, err := readFile(procCPUInfo); err == nil {
		identity = parseProcCPUInfo(data)
	}

	records := make([]lpRecord, 0, len(online))
	for _, lp := range online {
		rec := lpRecord{id: lp, capacity: -1, maxFreq: -1, part: -1}
		if v, err := readInt(readFile, fmt.Sprintf(cpuTopologyPath, lp, "physical_package_id")); err == nil && v >= 0 {
			rec.pkg = int(v)
		}
		if v, err := readInt(readFile, fmt.Sprintf(cpuTopologyPath, lp, "core_id")); err == nil && v >= 0 {
			rec.coreID = int(v)
		}
		if sibs, err := readCPUList(readFile, fmt.Sprintf(cpuTopologyPath, lp, "thread_siblings_list")); err == nil {
			for _, s := range sibs {
				if onlineSet.Contains(s) {
					rec.siblings = append(rec.siblings, s)
				}
			}
		}
		if len(rec.siblings) == 0 {
			rec.siblings = []int{lp}
		}
		if v, err := readInt(readFile, fmt.Sprintf(cpuCapacityPath, lp)); err == nil {
			rec.capacity = v
		}
		if v, err := readInt(readFile, fmt.Sprintf(cpuMaxFreqPath, lp)); err == nil {
			rec.maxFreq = v
		}
		if part, ok := identity.parts[lp]; ok {
			rec.part = part
		}
		records = append(records, rec)
	}

	classify := linuxCoreClassifier(records, hybridHint)

	// Group by package, then by kernel core id within the package.
	byPkg := make(map[int][]lpRecord)
	for _, rec := range records {
		byPkg[rec.pkg] = append(byPkg[rec.pkg], rec)
	}
	pkgIDs := make([]int, 0, len(byPkg))
	for pkg := range byPkg {
		pkgIDs = append(pkgIDs, pkg)
	}
	sort.Ints(pkgIDs)

	ci := &CpuInfo{Vendor: identity.vendor, ModelName: identity.model}
	for socketID, pkg := range pkgIDs {
		socket := SocketInfo{ID: socketID}

		byCore := make(map[int]AffinityMask)
		for _, rec := range byPkg[pkg] {
			mask := byCore[rec.coreID]
			mask.Insert(rec.id)
			for _, s := range rec.siblings {
				mask.Insert(s)
			}
			byCore[rec.coreID] = mask
		}
		kernelCoreIDs := make([]int, 0, len(byCore))
		for id := range byCore {
			kernelCoreIDs = append(kernelCoreIDs, id)
		}
		sort.Ints(kernelCoreIDs)

		for denseID, kernelID := range kernelCoreIDs {
			lps := byCore[kernelID].Indices()
			core := CoreInfo{
				ID:                denseID,
				SocketID:          socketID,
				Kind:              classify(lps[0]),
				LogicalProcessors: lps,
			}
			attachLinuxCoreCaches(readFile, &core)
			socket.Cores = append(socket.Cores, core)
			if socket.L3 == nil {
				if l3 := findLinuxCache(readFile, lps[0], 3, CacheUnified); l3 != nil {
					socket.L3 = l3
				}
			}
		}
		ci.Sockets = append(ci.Sockets, socket)
	}

	ci.finalize()
	return ci, nil
}

// attachLinuxCoreCaches fills L1i/L1d/L2 from the cache indices of the
// core's first logical processor. sysfs repeats shared caches under
// every covered cpu, so reading one member covers the core.
func attachLinuxCoreCaches(readFile readFileFn, core *CoreInfo) {
	lp := core.LogicalProcessors[0]
	for index := 0; index < 10; index++ {
		c := readCache(readFile, lp, index)
		if c == nil {
			continue
		}
		switch {
		case c.Level == 1 && c.Kind == CacheInstruction:
			core.L1i = c
		case c.Level == 1 && c.Kind != CacheInstruction:
			core.L1d = c
		case c.Level == 2:
			core.L2 = c
		}
	}
}

func findLinuxCache(readFile readFileFn, lp int, level uint8, kind CacheKind) *CacheInfo {
	for index := 0; index < 10; index++ {
		c := readCache(readFile, lp, index)
		if c != nil && c.Level == level && c.Kind == kind {
			return c
		}
	}
	return nil
}

// linuxCoreClassifier picks the hybrid classification signal in order
// of trustworthiness: sysfs cpu_capacity buckets (the kernel's own
// heterogeneity statement), then cpufreq max-frequency buckets, used
// only when hybridHint is set or the AArch64 MIDR part numbers differ.
// Cores in the top bucket are performance; strictly lower buckets are
// efficiency. A single bucket means a non-hybrid host and everything
// is performance.
func linuxCoreClassifier(records []lpRecord, hybridHint bool) func(lp int) CoreKind {
	capacity := make(map[int]int64, len(records))
	freq := make(map[int]int64, len(records))
	capValues := make(map[int64]struct{})
	freqValues := make(map[int64]struct{})
	partValues := make(map[int64]struct{})
	var maxCap, maxFreq int64
	for _, rec := range records {
		if rec.capacity >= 0 {
			capacity[rec.id] = rec.capacity
			capValues[rec.capacity] = struct{}{}
			maxCap = max(maxCap, rec.capacity)
		}
		if rec.maxFreq >= 0 {
			freq[rec.id] = rec.maxFreq
			freqValues[rec.maxFreq] = struct{}{}
			maxFreq = max(maxFreq, rec.maxFreq)
		}
		if rec.part >= 0 {
			partValues[rec.part] = struct{}{}
		}
	}

	switch {
	case len(capValues) > 1:
		return func(lp int) CoreKind {
			if c, ok := capacity[lp]; ok && c < maxCap {
				return KindEfficiency
			}
			return KindPerformance
		}
	case (hybridHint || len(partValues) > 1) && len(freqValues) > 1:
		return func(lp int) CoreKind {
			if f, ok := freq[lp]; ok && f < maxFreq {
				return KindEfficiency
			}
			return KindPerformance
		}
	default:
		return func(int) CoreKind { return KindPerformance }
	}
}

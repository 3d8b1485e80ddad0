package gdtcpus

import (
	"testing"

	"github.com/shoenig/test/must"
)

func TestInfo_Memoized(t *testing.T) {
	a, errA := Info()
	b, errB := Info()
	must.True(t, errA == errB)
	must.True(t, a == b)
}

// TestInfo_HostInvariants checks the universal invariants against
// whatever machine runs the tests.
func TestInfo_HostInvariants(t *testing.T) {
	ci, err := Info()
	if err != nil {
		t.Skipf("detection unavailable here: %v", err)
	}

	must.Greater(t, 0, ci.TotalPhysicalCores)
	must.GreaterEq(t, ci.TotalPhysicalCores, ci.TotalLogicalProcessors)
	must.Eq(t, ci.TotalPhysicalCores, ci.TotalPerformanceCores+ci.TotalEfficiencyCores)
	must.Eq(t, ci.Hybrid, ci.TotalPerformanceCores > 0 && ci.TotalEfficiencyCores > 0)

	must.Eq(t, ci.TotalPhysicalCores, NumPhysicalCores())
	must.Eq(t, ci.TotalLogicalProcessors, NumLogicalCores())
	must.Eq(t, ci.TotalPerformanceCores, NumPerformanceCores())
	must.Eq(t, ci.TotalEfficiencyCores, NumEfficiencyCores())
	must.Eq(t, ci.Hybrid, IsHybrid())
	must.Eq(t, ci.TotalPhysicalCores, len(PerformanceCoreIDs())+len(EfficiencyCoreIDs()))

	// Every logical processor appears exactly once.
	seen := map[int]bool{}
	for _, s := range ci.Sockets {
		for _, c := range s.Cores {
			must.GreaterEq(t, 1, len(c.LogicalProcessors))
			for _, lp := range c.LogicalProcessors {
				must.False(t, seen[lp])
				seen[lp] = true
			}
		}
	}
	must.Eq(t, ci.TotalLogicalProcessors, len(seen))

	// Socket and core ids are dense from zero.
	for i, s := range ci.Sockets {
		must.Eq(t, i, s.ID)
		for j, c := range s.Cores {
			must.Eq(t, j, c.ID)
			must.Eq(t, s.ID, c.SocketID)
		}
	}

	// The pretty form is non-empty and mentions the feature line.
	must.StrContains(t, ci.String(), "CPU Features:")
}

func TestInfo_FeatureImplications(t *testing.T) {
	ci, err := Info()
	if err != nil {
		t.Skipf("detection unavailable here: %v", err)
	}
	// Architectural implication chains; a violation means broken
	// probing, not exotic hardware.
	if ci.Features.Has(AVX2) {
		must.True(t, ci.Features.Has(AVX))
	}
	if ci.Features.Has(AVX) {
		must.True(t, ci.Features.Has(SSE2))
	}
	if ci.Features.Has(SVE) {
		must.True(t, ci.Features.Has(NEON))
	}
}

func TestSetThreadPriority_RejectsUnknown(t *testing.T) {
	must.ErrorIs(t, SetThreadPriority(ThreadPriority(42)), ErrInvalidInput)
	must.ErrorIs(t, SetThreadPriority(ThreadPriority(-1)), ErrInvalidInput)
}

func TestPinThreadToCore_RejectsOutOfRange(t *testing.T) {
	ci, err := Info()
	if err != nil {
		t.Skipf("detection unavailable here: %v", err)
	}
	must.ErrorIs(t, PinThreadToCore(-1), ErrInvalidInput)
	must.ErrorIs(t, PinThreadToCore(ci.TotalPhysicalCores), ErrInvalidInput)
}

func TestSetThreadAffinity_RejectsBadMasks(t *testing.T) {
	if _, err := Info(); err != nil {
		t.Skipf("detection unavailable here: %v", err)
	}
	must.ErrorIs(t, SetThreadAffinity(NewAffinityMask()), ErrInvalidInput)
	// Far beyond any real host.
	must.ErrorIs(t, SetThreadAffinity(NewAffinityMask(1<<20)), ErrInvalidInput)
}

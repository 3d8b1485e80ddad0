//go:build windows

package gdtcpus

import (
	"runtime"
	"testing"

	"github.com/shoenig/test/must"
	"golang.org/x/sys/windows"
)

var procGetThreadPriority = modkernel32.NewProc("GetThreadPriority")

func TestNativePriority(t *testing.T) {
	tests := []struct {
		priority ThreadPriority
		native   int32
	}{
		{Background, threadPriorityIdle},
		{Lowest, threadPriorityLowest},
		{BelowNormal, threadPriorityBelowNormal},
		{Normal, threadPriorityNormal},
		{AboveNormal, threadPriorityAboveNormal},
		{Highest, threadPriorityHighest},
		{TimeCritical, threadPriorityTimeCritical},
	}
	for _, tt := range tests {
		must.Eq(t, tt.native, nativePriority(tt.priority))
	}
}

// TestSetThreadPriority_RoundTrip sets AboveNormal, Highest, Lowest and
// Normal in turn and reads each back through GetThreadPriority.
func TestSetThreadPriority_RoundTrip(t *testing.T) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		runtime.LockOSThread()
		// The exiting goroutine takes the altered thread with it.

		for _, p := range []ThreadPriority{AboveNormal, Highest, Lowest, Normal} {
			must.NoError(t, SetThreadPriority(p))
			got, _, _ := procGetThreadPriority.Call(uintptr(windows.CurrentThread()))
			must.Eq(t, nativePriority(p), int32(got))
		}
	}()
	<-done
}

func TestPinThreadToCore_Live(t *testing.T) {
	ci, err := Info()
	if err != nil {
		t.Skipf("detection unavailable here: %v", err)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		runtime.LockOSThread()

		must.NoError(t, PinThreadToCore(0))
		must.ErrorIs(t, PinThreadToCore(ci.TotalPhysicalCores), ErrInvalidInput)
	}()
	<-done
}

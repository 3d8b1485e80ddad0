//go:build darwin

package gdtcpus

import (
	"runtime"
	"testing"

	"github.com/shoenig/test/must"
)

// TestAffinity_RefusedOnARM pins down the documented refusal: ARM
// macOS has no thread affinity, and callers get a first-class
// ErrUnsupported rather than a fake success.
func TestAffinity_RefusedOnARM(t *testing.T) {
	if runtime.GOARCH != "arm64" {
		t.Skip("refusal is specific to ARM macOS")
	}
	if _, err := Info(); err != nil {
		t.Skipf("detection unavailable here: %v", err)
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	must.ErrorIs(t, PinThreadToCore(0), ErrUnsupported)
	must.ErrorIs(t, SetThreadAffinity(NewAffinityMask(0)), ErrUnsupported)
}

func TestSetThreadPriority_QoS(t *testing.T) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		runtime.LockOSThread()
		// The exiting goroutine takes the altered thread with it.

		for _, p := range []ThreadPriority{Background, BelowNormal, Normal, AboveNormal, Highest} {
			must.NoError(t, SetThreadPriority(p))
		}
	}()
	<-done
}

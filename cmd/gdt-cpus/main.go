// gdt-cpus — inspect the host CPU topology and try out scheduling
// hints.
//
// Usage:
//
//	gdt-cpus info
//	gdt-cpus features
//	gdt-cpus pin --core 2 --priority Highest --duration 3s
package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	gdtcpus "github.com/WildPixelGames/gdt-cpus"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "gdt-cpus",
		Short: "gdt-cpus — CPU topology and thread scheduling hints",
	}

	info := &cobra.Command{
		Use:   "info",
		Short: "Print the detected CPU topology",
		RunE: func(cmd *cobra.Command, args []string) error {
			ci, err := gdtcpus.Info()
			if err != nil {
				return err
			}
			fmt.Print(ci)
			return nil
		},
	}

	features := &cobra.Command{
		Use:   "features",
		Short: "Print the detected CPU feature set",
		RunE: func(cmd *cobra.Command, args []string) error {
			ci, err := gdtcpus.Info()
			if err != nil {
				return err
			}
			fmt.Println(ci.Features)
			return nil
		},
	}

	var (
		core     int
		priority string
		duration time.Duration
	)
	pin := &cobra.Command{
		Use:   "pin",
		Short: "Pin the calling thread to a core, set a priority, and spin",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPin(core, priority, duration)
		},
	}
	f := pin.Flags()
	f.IntVar(&core, "core", 0, "Global core index to pin to")
	f.StringVar(&priority, "priority", "Normal", "Thread priority (Background..TimeCritical)")
	f.DurationVar(&duration, "duration", time.Second, "How long to keep the pinned thread busy")

	root.AddCommand(info, features, pin)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runPin(core int, priority string, duration time.Duration) error {
	p, err := parsePriority(priority)
	if err != nil {
		return err
	}

	// The hints attach to the OS thread, so the goroutine must own one.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := gdtcpus.SetThreadPriority(p); err != nil {
		return fmt.Errorf("set priority: %w", err)
	}
	fmt.Printf("priority: %s\n", p)

	if err := gdtcpus.PinThreadToCore(core); err != nil {
		return fmt.Errorf("pin to core %d: %w", core, err)
	}
	fmt.Printf("pinned to core %d, spinning for %s\n", core, duration)

	for deadline := time.Now().Add(duration); time.Now().Before(deadline); {
	}
	return nil
}

func parsePriority(name string) (gdtcpus.ThreadPriority, error) {
	for p := gdtcpus.Background; p <= gdtcpus.TimeCritical; p++ {
		if strings.EqualFold(p.String(), name) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown priority %q", name)
}

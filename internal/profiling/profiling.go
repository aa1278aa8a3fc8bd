// Package profiling captures pprof profiles around a CLI run.
package profiling

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
)

// Options names the profile files to write. Empty paths are skipped.
type Options struct {
	CPUPath  string
	HeapPath string
}

// Start begins CPU profiling when requested and returns a stop function
// that ends it and writes the heap snapshot. Call stop once.
func Start(opts Options) (stop func() error, err error) {
	var cpu *os.File
	if opts.CPUPath != "" {
		cpu, err = os.Create(opts.CPUPath)
		if err != nil {
			return nil, fmt.Errorf("create CPU profile: %w", err)
		}
		if err := pprof.StartCPUProfile(cpu); err != nil {
			_ = cpu.Close()
			return nil, fmt.Errorf("start CPU profile: %w", err)
		}
	}

	return func() error {
		var errs []error
		if cpu != nil {
			pprof.StopCPUProfile()
			errs = append(errs, cpu.Close())
		}
		if opts.HeapPath != "" {
			errs = append(errs, writeHeap(opts.HeapPath))
		}
		return errors.Join(errs...)
	}, nil
}

func writeHeap(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create heap profile: %w", err)
	}
	defer func() { _ = f.Close() }()

	// Collect first so the snapshot shows live objects only.
	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("write heap profile: %w", err)
	}
	return nil
}

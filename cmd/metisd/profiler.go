package main

import (
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/icn-metis/metisd/internal/core"
)

// Profiler wraps the standard pprof CPU/memory/block profile lifecycle
// behind the daemon's config, grounded on fw/cmd/profiler.go.
type Profiler struct {
	config  *core.Config
	cpuFile *os.File
	block   *pprof.Profile
}

// NewProfiler constructs a Profiler bound to config's profile output paths.
func NewProfiler(config *core.Config) *Profiler {
	return &Profiler{config: config}
}

func (p *Profiler) String() string { return "profiler" }

// Start opens the CPU profile file and begins sampling, and arms block
// profiling, for whichever outputs config names.
func (p *Profiler) Start() error {
	if p.config.Core.CpuProfile != "" {
		f, err := os.Create(p.config.Core.CpuProfile)
		if err != nil {
			return err
		}
		p.cpuFile = f
		core.Log.Info(p, "profiling cpu", "out", p.config.Core.CpuProfile)
		pprof.StartCPUProfile(p.cpuFile)
	}

	if p.config.Core.BlockProfile != "" {
		core.Log.Info(p, "profiling blocking operations", "out", p.config.Core.BlockProfile)
		runtime.SetBlockProfileRate(1)
		p.block = pprof.Lookup("block")
	}

	return nil
}

// Stop flushes every requested profile to disk.
func (p *Profiler) Stop() {
	if p.block != nil {
		f, err := os.Create(p.config.Core.BlockProfile)
		if err != nil {
			core.Log.Error(p, "unable to open block profile output", "err", err)
		} else {
			if err := p.block.WriteTo(f, 0); err != nil {
				core.Log.Error(p, "unable to write block profile", "err", err)
			}
			f.Close()
		}
	}

	if p.config.Core.MemProfile != "" {
		f, err := os.Create(p.config.Core.MemProfile)
		if err != nil {
			core.Log.Error(p, "unable to open memory profile output", "err", err)
		} else {
			runtime.GC()
			if err := pprof.WriteHeapProfile(f); err != nil {
				core.Log.Error(p, "unable to write memory profile", "err", err)
			}
			f.Close()
		}
	}

	if p.cpuFile != nil {
		pprof.StopCPUProfile()
		p.cpuFile.Close()
	}
}

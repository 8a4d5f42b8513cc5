// Package performance provides CPU and heap profiling for long simulation
// runs.
package performance

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"sync/atomic"
	"time"

	"github.com/rzzdr/option-hedging-sim/pkg/utils/logger"
)

// ProfilerConfig holds configuration for the profiler
type ProfilerConfig struct {
	EnableCPU    bool
	EnableMemory bool
	OutputDir    string
}

// Profiler writes pprof profiles covering the span between Start and Stop
type Profiler struct {
	config    ProfilerConfig
	cpuFile   *os.File
	running   int64
	startTime time.Time
	stamp     string
	log       *logger.Logger
}

// NewProfiler creates a new performance profiler
func NewProfiler(config ProfilerConfig) *Profiler {
	if config.OutputDir == "" {
		config.OutputDir = "./profiles"
	}

	return &Profiler{
		config: config,
		log:    logger.GetLogger("performance.profiler"),
	}
}

// Start creates the output directory and starts CPU profiling
func (p *Profiler) Start() error {
	if !atomic.CompareAndSwapInt64(&p.running, 0, 1) {
		return fmt.Errorf("profiler is already running")
	}

	if err := os.MkdirAll(p.config.OutputDir, 0o755); err != nil {
		atomic.StoreInt64(&p.running, 0)
		return fmt.Errorf("failed to create profile directory: %w", err)
	}

	p.startTime = time.Now()
	p.stamp = p.startTime.Format("20060102_150405")

	if p.config.EnableCPU {
		name := filepath.Join(p.config.OutputDir, fmt.Sprintf("cpu_%s.prof", p.stamp))
		f, err := os.Create(name)
		if err != nil {
			atomic.StoreInt64(&p.running, 0)
			return fmt.Errorf("failed to create CPU profile file: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			atomic.StoreInt64(&p.running, 0)
			return fmt.Errorf("failed to start CPU profiling: %w", err)
		}
		p.cpuFile = f
		p.log.Infof("Started CPU profiling to %s", name)
	}

	return nil
}

// Stop ends CPU profiling and writes the final heap profile
func (p *Profiler) Stop() error {
	if !atomic.CompareAndSwapInt64(&p.running, 1, 0) {
		return fmt.Errorf("profiler is not running")
	}

	if p.cpuFile != nil {
		pprof.StopCPUProfile()
		p.cpuFile.Close()
		p.cpuFile = nil
	}

	if p.config.EnableMemory {
		if err := p.saveMemoryProfile(); err != nil {
			return err
		}
	}

	p.log.Infof("Profiler stopped after %v", time.Since(p.startTime))
	return nil
}

// IsRunning returns true if the profiler is running
func (p *Profiler) IsRunning() bool {
	return atomic.LoadInt64(&p.running) == 1
}

func (p *Profiler) saveMemoryProfile() error {
	name := filepath.Join(p.config.OutputDir, fmt.Sprintf("memory_%s_final.prof", p.stamp))
	file, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create memory profile file: %w", err)
	}
	defer file.Close()

	runtime.GC()
	if err := pprof.WriteHeapProfile(file); err != nil {
		return fmt.Errorf("failed to write memory profile: %w", err)
	}

	p.log.Infof("Saved memory profile to %s", name)
	return nil
}

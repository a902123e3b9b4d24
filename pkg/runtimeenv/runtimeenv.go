// Package runtimeenv pins the thread count of numeric libraries used by the
// dispersion providers and reports what the host offers.
package runtimeenv

import (
	"os"
	"runtime"
	"sync"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// ThreadVars are set to DefaultThreads unless already present in the environment
var ThreadVars = []string{
	"OMP_NUM_THREADS",
	"OPENBLAS_NUM_THREADS",
	"MKL_NUM_THREADS",
	"VECLIB_MAXIMUM_THREADS",
	"NUMEXPR_NUM_THREADS",
}

// DefaultThreads is the value applied to unset thread variables
const DefaultThreads = "1"

// Setting is one thread variable and where its value came from
type Setting struct {
	Name   string `json:"name" yaml:"name"`
	Value  string `json:"value" yaml:"value"`
	Source string `json:"source" yaml:"source"` // "environment" or "default"
}

var (
	applyOnce sync.Once
	applied   []Setting
)

// Apply sets every unset thread variable in the process environment.
// Only the first call has an effect; later calls return the same settings.
func Apply() []Setting {
	applyOnce.Do(func() {
		applied = resolve(os.LookupEnv)
		for _, s := range applied {
			if s.Source == "default" {
				os.Setenv(s.Name, s.Value)
			}
		}
	})
	return append([]Setting(nil), applied...)
}

// Current reports the thread settings without changing the environment
func Current() []Setting {
	return resolve(os.LookupEnv)
}

// Env renders settings as KEY=VALUE pairs for a subprocess environment
func Env(settings []Setting) []string {
	out := make([]string, len(settings))
	for i, s := range settings {
		out[i] = s.Name + "=" + s.Value
	}
	return out
}

func resolve(lookup func(string) (string, bool)) []Setting {
	out := make([]Setting, 0, len(ThreadVars))
	for _, name := range ThreadVars {
		if v, ok := lookup(name); ok && v != "" {
			out = append(out, Setting{Name: name, Value: v, Source: "environment"})
			continue
		}
		out = append(out, Setting{Name: name, Value: DefaultThreads, Source: "default"})
	}
	return out
}

// Host describes the machine a run executes on
type Host struct {
	OS           string `json:"os" yaml:"os"`
	Architecture string `json:"architecture" yaml:"architecture"`
	CPUModel     string `json:"cpu_model,omitempty" yaml:"cpu_model,omitempty"`
	LogicalCPUs  int    `json:"logical_cpus" yaml:"logical_cpus"`
	MemoryTotal  uint64 `json:"memory_total_bytes" yaml:"memory_total_bytes"`
	MemoryAvail  uint64 `json:"memory_available_bytes" yaml:"memory_available_bytes"`
	GOMAXPROCS   int    `json:"gomaxprocs" yaml:"gomaxprocs"`
}

// DetectHost gathers the host inventory. Fields gopsutil cannot read are left zero.
func DetectHost() Host {
	h := Host{
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		LogicalCPUs:  runtime.NumCPU(),
		GOMAXPROCS:   runtime.GOMAXPROCS(0),
	}
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		h.LogicalCPUs = n
	}
	if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
		h.CPUModel = infos[0].ModelName
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		h.MemoryTotal = vm.Total
		h.MemoryAvail = vm.Available
	}
	return h
}

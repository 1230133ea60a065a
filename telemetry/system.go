package telemetry

import (
	"fmt"
	"git.gammaspectra.live/P2Pool/gupax/utils"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	gopsprocess "github.com/shirou/gopsutil/v3/process"
	"os"
	"time"
)

// System is the resource snapshot of the host and of this process.
type System struct {
	GupaxUptime     utils.HumanTime `json:"gupax_uptime"`
	GupaxCpuUsage   string          `json:"gupax_cpu_usage"`
	GupaxMemoryUsed string          `json:"gupax_memory_used"`
	SystemCpuUsage  string          `json:"system_cpu_usage"`
	SystemMemory    string          `json:"system_memory"`
	SystemCpuModel  string          `json:"system_cpu_model"`
}

func NewSystem() System {
	return System{
		GupaxUptime:     utils.UnknownTime,
		GupaxCpuUsage:   utils.Unknown,
		GupaxMemoryUsed: utils.Unknown,
		SystemCpuUsage:  utils.Unknown,
		SystemMemory:    utils.Unknown,
		SystemCpuModel:  utils.Unknown,
	}
}

// Sampler measures CPU and memory. Percentages are relative to the previous call.
type Sampler struct {
	self    *gopsprocess.Process
	threads int
	model   string
	start   time.Time
}

func NewSampler(start time.Time) *Sampler {
	log := utils.Logger("Helper")
	s := &Sampler{
		threads: 1,
		model:   utils.Unknown,
		start:   start,
	}

	var err error
	if s.self, err = gopsprocess.NewProcess(int32(os.Getpid())); err != nil {
		log.Errorf("could not open own process for sampling: %s", err)
	}
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		s.threads = n
	}
	if info, err := cpu.Info(); err == nil && len(info) > 0 {
		s.model = info[0].ModelName
	}

	// first readings establish the baseline
	_, _ = cpu.Percent(0, false)
	if s.self != nil {
		_, _ = s.self.Percent(0)
	}
	return s
}

// Sample refreshes every field. Readings that fail keep the previous value.
func (s *Sampler) Sample(previous System) System {
	result := previous
	result.GupaxUptime = utils.NewHumanTime(time.Since(s.start))
	result.SystemCpuModel = s.model

	if s.self != nil {
		if percent, err := s.self.Percent(0); err == nil {
			result.GupaxCpuUsage = fmt.Sprintf("%.2f%%", percent/float64(s.threads))
		}
		if info, err := s.self.MemoryInfo(); err == nil {
			result.GupaxMemoryUsed = utils.SiBytes(info.RSS)
		}
	}
	if percent, err := cpu.Percent(0, false); err == nil && len(percent) > 0 {
		result.SystemCpuUsage = fmt.Sprintf("%.2f%%", percent[0])
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		result.SystemMemory = utils.SiBytes(vm.Used) + "/" + utils.SiBytes(vm.Total)
	}
	return result
}

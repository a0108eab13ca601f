// Package sysinfo captures an environment fingerprint for a discovery
// batch. Triggering-test evidence is only as trustworthy as the machine it
// was produced on, so the fingerprint is stored next to the artifacts.
package sysinfo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/fault-lab/triggeroor/pkg/fsutil"
)

// Info is the environment fingerprint written once per batch.
type Info struct {
	CollectedAt     time.Time `json:"collected_at"`
	Hostname        string    `json:"hostname"`
	OS              string    `json:"os"`
	Platform        string    `json:"platform"`
	PlatformVersion string    `json:"platform_version"`
	KernelVersion   string    `json:"kernel_version"`
	CPUModel        string    `json:"cpu_model"`
	CPUCores        int       `json:"cpu_cores"`
	MemoryTotal     uint64    `json:"memory_total"`
}

// Collect gathers the fingerprint. Partial data is acceptable; only a
// totally failed host probe is an error.
func Collect(ctx context.Context) (*Info, error) {
	hostInfo, err := host.InfoWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading host info: %w", err)
	}

	info := &Info{
		CollectedAt:     time.Now().UTC(),
		Hostname:        hostInfo.Hostname,
		OS:              hostInfo.OS,
		Platform:        hostInfo.Platform,
		PlatformVersion: hostInfo.PlatformVersion,
		KernelVersion:   hostInfo.KernelVersion,
	}

	if cpuInfo, err := cpu.InfoWithContext(ctx); err == nil && len(cpuInfo) > 0 {
		info.CPUModel = cpuInfo[0].ModelName
	}

	if cores, err := cpu.CountsWithContext(ctx, true); err == nil {
		info.CPUCores = cores
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info.MemoryTotal = vm.Total
	}

	return info, nil
}

// Write stores the fingerprint as indented JSON at path.
func Write(path string, info *Info, owner *fsutil.OwnerConfig) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling system info: %w", err)
	}

	if err := fsutil.WriteFile(path, data, 0644, owner); err != nil {
		return fmt.Errorf("writing system info: %w", err)
	}

	return nil
}

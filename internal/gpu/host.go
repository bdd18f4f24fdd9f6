package gpu

import (
	"fmt"
	"runtime"

	"github.com/klauspost/cpuid/v2"
)

func hostDeviceName() string {
	if cpuid.CPU.BrandName == "" {
		return fmt.Sprintf("CPU (%s)", runtime.GOARCH)
	}
	return fmt.Sprintf("CPU (%s, %s)", runtime.GOARCH, cpuid.CPU.BrandName)
}

func hostCores() int {
	if cpuid.CPU.LogicalCores > 0 {
		return cpuid.CPU.LogicalCores
	}
	return runtime.NumCPU()
}

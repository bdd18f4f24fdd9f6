//go:build !linux

package gpu

// systemMemory returns fixed estimates where sysinfo(2) is unavailable.
func systemMemory() (total, available int64) {
	return defaultTotalMemory, defaultAvailableMemory
}

package ps

import (
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/disk"
)

// DiskUsage reports usage of the filesystem holding path. Long runs fill
// the output disk; the collector surfaces this in its status endpoint.
func DiskUsage(path string) (used, total uint64, usedPercent float64, err error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return
	}
	return usage.Used, usage.Total, usage.UsedPercent, nil
}

// DirSize returns the total size in bytes of all files under path.
func DirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return size, nil
}

package preflight

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/docker/go-units"
)

const (
	// minDiskFree is the headroom the store, its WAL sidecars, and the
	// screenshot folder need to keep growing.
	minDiskFree = 200 << 20
	// minFileLimit covers the worker pool, SQLite handles, and one
	// fsnotify watch descriptor per watched directory.
	minFileLimit = 4096
	// minInotifyWatches is a floor for watching large sync directories.
	minInotifyWatches = 65536
	// minMemAvailable keeps an embedding batch from thrashing.
	minMemAvailable = 512 << 20
)

func checkDataDirWritable(_ context.Context, dataDir string) (bool, string) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return false, fmt.Sprintf("cannot create %s: %v", dataDir, err)
	}
	probe, err := os.CreateTemp(dataDir, ".preflight-*")
	if err != nil {
		return false, fmt.Sprintf("cannot write to %s: %v", dataDir, err)
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)
	return true, dataDir
}

func checkDiskSpace(_ context.Context, dataDir string) (bool, string) {
	var fs syscall.Statfs_t
	if err := syscall.Statfs(dataDir, &fs); err != nil {
		// Can't measure: let the writability check carry the verdict.
		return true, fmt.Sprintf("statfs unavailable: %v", err)
	}
	free := int64(fs.Bavail) * int64(fs.Bsize)
	detail := fmt.Sprintf("%s free, %s required",
		units.BytesSize(float64(free)), units.BytesSize(float64(minDiskFree)))
	return free >= minDiskFree, detail
}

func checkFileLimit(_ context.Context, _ string) (bool, string) {
	var lim syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &lim); err != nil {
		return true, fmt.Sprintf("getrlimit unavailable: %v", err)
	}
	detail := fmt.Sprintf("soft limit %d, want >= %d", lim.Cur, minFileLimit)
	return lim.Cur >= minFileLimit, detail
}

func checkInotifyWatches(_ context.Context, _ string) (bool, string) {
	data, err := os.ReadFile(filepath.Join("/proc/sys/fs/inotify", "max_user_watches"))
	if err != nil {
		// Not Linux, or /proc unavailable; fsnotify uses another facility.
		return true, "inotify not in use on this platform"
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return true, "unreadable max_user_watches"
	}
	detail := fmt.Sprintf("max_user_watches=%d, want >= %d", n, minInotifyWatches)
	return n >= minInotifyWatches, detail
}

func checkMemory(_ context.Context, _ string) (bool, string) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return true, "meminfo unavailable on this platform"
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "MemAvailable:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			break
		}
		kb, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			break
		}
		avail := kb << 10
		detail := fmt.Sprintf("%s available, %s recommended",
			units.BytesSize(float64(avail)), units.BytesSize(float64(minMemAvailable)))
		return avail >= minMemAvailable, detail
	}
	return true, "MemAvailable not reported"
}

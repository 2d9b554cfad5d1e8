// Package coalesce implements the lock-file mechanism that collapses
// repeated refresh requests for the same target path into a single
// scheduled refresh.
//
// One lock file exists per distinct target path, named by the SHA-1 of
// the cleaned path string, containing a single plain-text floating-point
// UNIX timestamp: the scheduled run time. A future timestamp means a
// previously scheduled refresh is still pending and new requests for
// the same path should be dropped. A stale or absent lock is overwritten
// by the next request, which then owns the schedule.
//
// The read-check-write sequence is deliberately not protected by any
// cross-process or cross-thread mutual exclusion: two invocations racing
// on the same path may both win and both proceed. This is a known,
// tolerated race inherited from the design this mechanism preserves;
// adding locking would change observable timing behavior.
package coalesce

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// LockDirName is the directory under the data dir holding lock files.
const LockDirName = "media_refresh_lock"

// Guard manages scheduled-run lock files under a lock directory.
type Guard struct {
	dir string
	now func() time.Time
}

// NewGuard creates a guard writing lock files under dir.
func NewGuard(dir string) *Guard {
	return &Guard{dir: dir, now: time.Now}
}

// Dir returns the lock directory.
func (g *Guard) Dir() string { return g.dir }

// LockPath returns the lock file path for a target path.
func (g *Guard) LockPath(targetPath string) string {
	sum := sha1.Sum([]byte(filepath.Clean(targetPath)))
	return filepath.Join(g.dir, hex.EncodeToString(sum[:])+".lock")
}

// Pending reports whether a still-valid scheduled refresh exists for the
// target path, and when it will run. An absent, empty, or expired lock
// is not pending. An unreadable or unparseable lock is reported as not
// pending together with the error; callers are expected to log it and
// proceed (fail-open).
func (g *Guard) Pending(targetPath string) (time.Time, bool, error) {
	data, err := os.ReadFile(g.LockPath(targetPath))
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("read lock: %w", err)
	}

	content := strings.TrimSpace(string(data))
	if content == "" {
		return time.Time{}, false, nil
	}

	ts, err := strconv.ParseFloat(content, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse lock timestamp: %w", err)
	}

	runTime := unixFloat(ts)
	if g.now().Before(runTime) {
		return runTime, true, nil
	}
	return runTime, false, nil
}

// Arm writes runTime into the lock file for the target path, creating
// the lock directory as needed and superseding any existing lock.
func (g *Guard) Arm(targetPath string, runTime time.Time) error {
	if err := os.MkdirAll(g.dir, 0755); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}

	content := strconv.FormatFloat(toUnixFloat(runTime), 'f', -1, 64)
	if err := os.WriteFile(g.LockPath(targetPath), []byte(content), 0644); err != nil {
		return fmt.Errorf("write lock: %w", err)
	}
	return nil
}

// toUnixFloat converts a time to fractional UNIX seconds.
func toUnixFloat(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// unixFloat converts fractional UNIX seconds to a time.
func unixFloat(ts float64) time.Time {
	return time.Unix(0, int64(ts*float64(time.Second)))
}

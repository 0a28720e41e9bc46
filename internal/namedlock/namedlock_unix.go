//go:build !windows

package namedlock

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// sysLock backs Lock with flock on a file derived from the lock name. The
// kernel drops the flock when the holding process exits for any reason.
type sysLock struct {
	file *os.File
}

// lockPath maps a lock name to a file in the system temp dir. Hashing keeps
// the file name legal regardless of what characters the name contains while
// staying deterministic across processes.
func lockPath(name string) string {
	sum := sha256.Sum256([]byte(name))
	return filepath.Join(os.TempDir(), "hotc-"+hex.EncodeToString(sum[:8])+".lock")
}

func (s *sysLock) tryAcquire(name string) bool {
	f, err := os.OpenFile(lockPath(name), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return false
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		return false
	}
	s.file = f
	return true
}

func (s *sysLock) waitFor(name string, timeout time.Duration) bool {
	// flock has no native timed wait; poll the non-blocking form.
	deadline := time.Now().Add(timeout)
	for {
		if s.tryAcquire(name) {
			return true
		}
		if time.Until(deadline) <= 0 {
			return false
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func (s *sysLock) release() {
	if s.file == nil {
		return
	}
	_ = unix.Flock(int(s.file.Fd()), unix.LOCK_UN)
	_ = s.file.Close()
	s.file = nil
}

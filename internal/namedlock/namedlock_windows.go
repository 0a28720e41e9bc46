//go:build windows

package namedlock

import (
	"time"

	"golang.org/x/sys/windows"
)

// sysLock backs Lock with a named Windows mutex. The object namespace keeps
// the name session-local; an abandoned mutex (holder died) is treated as
// acquired, matching kernel semantics.
type sysLock struct {
	handle windows.Handle
}

func mutexName(name string) *uint16 {
	// Lock names are '/'-normalized upstream; '\' would denote a namespace.
	p, _ := windows.UTF16PtrFromString(`Local\` + name)
	return p
}

func (s *sysLock) tryAcquire(name string) bool {
	if s.handle != 0 {
		ev, err := windows.WaitForSingleObject(s.handle, 0)
		return err == nil && (ev == windows.WAIT_OBJECT_0 || ev == windows.WAIT_ABANDONED)
	}
	h, err := windows.CreateMutex(nil, true, mutexName(name))
	if h == 0 {
		return false
	}
	if err == windows.ERROR_ALREADY_EXISTS {
		// The mutex exists and someone else may hold it; keep the handle for
		// a later timed wait but do not claim ownership yet.
		s.handle = h
		return false
	}
	s.handle = h
	return true
}

func (s *sysLock) waitFor(name string, timeout time.Duration) bool {
	if s.handle == 0 {
		h, err := windows.CreateMutex(nil, false, mutexName(name))
		if h == 0 || err != nil && err != windows.ERROR_ALREADY_EXISTS {
			return false
		}
		s.handle = h
	}
	ev, err := windows.WaitForSingleObject(s.handle, uint32(timeout/time.Millisecond))
	if err != nil {
		return false
	}
	// WAIT_ABANDONED means the previous holder died while owning the mutex;
	// ownership transfers to us.
	return ev == windows.WAIT_OBJECT_0 || ev == windows.WAIT_ABANDONED
}

func (s *sysLock) release() {
	if s.handle == 0 {
		return
	}
	_ = windows.ReleaseMutex(s.handle)
	_ = windows.CloseHandle(s.handle)
	s.handle = 0
}

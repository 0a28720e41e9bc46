// Package namedlock provides a named, machine-wide mutual exclusion
// primitive. At most one process holds a given name at a time; waiters block
// with an explicit timeout, never unbounded. Ownership is released by the
// operating system when the holder dies, so a crashed holder cannot deadlock
// the remaining waiters.
package namedlock

import "time"

// Lock is a handle on one named mutual exclusion slot. It is not safe for
// concurrent use within a process; each client session owns its own Lock.
type Lock struct {
	name string
	held bool
	sys  sysLock
}

// New returns an unacquired lock handle for name.
func New(name string) *Lock {
	return &Lock{name: name}
}

// Name returns the lock name this handle contends on.
func (l *Lock) Name() string { return l.name }

// Held reports whether this handle currently owns the lock.
func (l *Lock) Held() bool { return l.held }

// TryAcquire attempts non-blocking ownership.
func (l *Lock) TryAcquire() bool {
	if l.held {
		return true
	}
	l.held = l.sys.tryAcquire(l.name)
	return l.held
}

// WaitFor blocks up to timeout for the current holder to release or die.
func (l *Lock) WaitFor(timeout time.Duration) bool {
	if l.held {
		return true
	}
	l.held = l.sys.waitFor(l.name, timeout)
	return l.held
}

// Release relinquishes ownership. Idempotent: calling it without ownership,
// or twice, is a no-op.
func (l *Lock) Release() {
	if !l.held {
		return
	}
	l.sys.release()
	l.held = false
}

package storage

import (
	"os"
	"syscall"
)

// Advisory flock helpers. Locks are held for at most a single file operation;
// nothing in this package holds a lock across a blocking call.

func lockExclusive(f *os.File) error {
	return syscall.Flock(int(f.Fd()), syscall.LOCK_EX)
}

func lockShared(f *os.File) error {
	return syscall.Flock(int(f.Fd()), syscall.LOCK_SH)
}

func unlock(f *os.File) {
	syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
}

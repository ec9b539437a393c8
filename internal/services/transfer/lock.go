package transfer

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

const lockFileName = ".branchsnap.lock"

// AcquireLock takes an exclusive advisory lock scoped to the dump folder so
// concurrent hook invocations cannot interleave their dump/restore sequences.
// Blocks until the lock is free. The returned release func unlocks and closes
// the lock file.
func AcquireLock(dumpDir string) (func(), error) {
	path := filepath.Join(dumpDir, lockFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	return func() {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		_ = f.Close()
	}, nil
}

package display

import (
	"errors"
	"time"

	"golang.org/x/sys/unix"
)

const lockPollInterval = time.Millisecond

// tryLock takes an exclusive advisory lock on fd, retrying every
// millisecond until timeout. It returns false without error when the lock
// stayed contended. A zero timeout makes exactly one attempt.
func tryLock(fd int, timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB)
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, unix.EINTR):
			continue
		case !errors.Is(err, unix.EWOULDBLOCK):
			return false, err
		}
		if !time.Now().Before(deadline) {
			return false, nil
		}
		time.Sleep(lockPollInterval)
	}
}

func unlock(fd int) error {
	return unix.Flock(fd, unix.LOCK_UN)
}

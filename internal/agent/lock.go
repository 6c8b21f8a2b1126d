package agent

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// ErrLockHeld means another orchestrator instance owns the run. Callers
// treat it as a no-op success, not a failure.
var ErrLockHeld = errors.New("run lock held by another instance")

const lockFileName = ".agente.lock"

func lockBody() string {
	host, _ := os.Hostname()
	return fmt.Sprintf("pid=%d\nhost=%s\ntimestamp=%s\n",
		os.Getpid(), host, time.Now().Format(time.RFC3339))
}

func tryCreateLock(path string) (bool, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("create lock %s: %w", path, err)
	}
	_, werr := f.WriteString(lockBody())
	cerr := f.Close()
	if werr != nil {
		return true, fmt.Errorf("write lock %s: %w", path, werr)
	}
	if cerr != nil {
		return true, fmt.Errorf("close lock %s: %w", path, cerr)
	}
	return true, nil
}

// AcquireLock takes the advisory run lock via exclusive create. A lock file
// older than maxAge is presumed abandoned: it is removed and acquisition is
// retried once. Returns a release func; release failures are swallowed.
func AcquireLock(path string, maxAge time.Duration, log zerolog.Logger) (func(), error) {
	ok, err := tryCreateLock(path)
	if err != nil {
		return nil, fmt.Errorf("AcquireLock: %w", err)
	}
	if !ok {
		info, statErr := os.Stat(path)
		if statErr == nil && time.Since(info.ModTime()) > maxAge {
			log.Warn().Str("lock", path).Time("mtime", info.ModTime()).
				Msg("removing stale run lock")
			_ = os.Remove(path)
			ok, err = tryCreateLock(path)
			if err != nil {
				return nil, fmt.Errorf("AcquireLock: %w", err)
			}
		}
		if !ok {
			return nil, ErrLockHeld
		}
	}

	release := func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("lock", path).Msg("could not release run lock")
		}
	}
	return release, nil
}

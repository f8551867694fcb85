package socket

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// pidPathFor derives the sibling PID-file path for a socket path: the same
// directory, same base name, extension ".pid" (spec.md §6).
func pidPathFor(socketPath string) string {
	ext := filepath.Ext(socketPath)
	base := strings.TrimSuffix(socketPath, ext)
	return base + ".pid"
}

// pidAlive reports whether the PID recorded at pidPath belongs to a live
// process. A missing or malformed PID file is treated as "not alive" (stale),
// matching S6's "PID file refers to a dead PID" case.
func pidAlive(pidPath string) (bool, error) {
	data, err := os.ReadFile(pidPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return false, nil
	}

	switch err := syscall.Kill(pid, 0); {
	case err == nil:
		return true, nil
	case errors.Is(err, syscall.ESRCH):
		return false, nil
	case errors.Is(err, syscall.EPERM):
		// Owned by another user but running: treat as alive.
		return true, nil
	default:
		return false, err
	}
}

// acquireSocketPath prepares socketPath for listening: if a socket file
// already exists there, it is removed only when pidPath names a dead process
// (or no PID file exists at all). If the PID file names a live process,
// acquisition fails without touching the existing socket.
func acquireSocketPath(socketPath, pidPath string) error {
	if _, err := os.Stat(socketPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("socket: stat %s: %w", socketPath, err)
	}

	alive, err := pidAlive(pidPath)
	if err != nil {
		return fmt.Errorf("socket: check pid file %s: %w", pidPath, err)
	}
	if alive {
		return fmt.Errorf("socket: %s is in use by a running daemon (see %s)", socketPath, pidPath)
	}

	if err := os.Remove(socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("socket: remove stale socket %s: %w", socketPath, err)
	}
	return nil
}

// writePIDFile records the current process's PID at pidPath, user-only
// readable/writable.
func writePIDFile(pidPath string) error {
	content := strconv.Itoa(os.Getpid()) + "\n"
	if err := os.WriteFile(pidPath, []byte(content), 0o600); err != nil {
		return fmt.Errorf("socket: write pid file %s: %w", pidPath, err)
	}
	return nil
}

// removeIfExists removes path, ignoring a not-exist error.
func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

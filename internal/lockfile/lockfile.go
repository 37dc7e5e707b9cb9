// Package lockfile guards the state directory so only one triagebot process
// owns the store and the WhatsApp session at a time.
//
// The lock is an flock on a file in the state directory; the kernel drops it
// when the process exits, so a crash never leaves the directory locked.
package lockfile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// LockFileName is the name of the lock file created in the state directory
const LockFileName = "triagebot.lock"

// Lock is a held state directory lock.
type Lock struct {
	file *os.File
	path string
}

// Owner describes the process holding the lock.
type Owner struct {
	PID     int
	Channel string
	Started time.Time
}

func (o Owner) String() string {
	return fmt.Sprintf("pid=%d channel=%s started=%s\n", o.PID, o.Channel, o.Started.UTC().Format(time.RFC3339))
}

// AcquireLock takes the lock on stateDir for a process serving channel.
// It fails fast with a *LockError when another process holds it.
func AcquireLock(stateDir, channel string) (*Lock, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", stateDir, err)
	}
	lockPath := filepath.Join(stateDir, LockFileName)

	// Open without truncating so a failed attempt does not wipe the owner's info.
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", lockPath, err)
	}
	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		holder := readOwner(lockPath)
		slog.Error("lockfile.AcquireLock: state directory in use", "lock_path", lockPath, "holder", holder)
		return nil, &LockError{LockPath: lockPath, Holder: holder, Cause: err}
	}

	owner := Owner{PID: os.Getpid(), Channel: channel, Started: time.Now()}
	if err := writeOwner(file, owner); err != nil {
		syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		file.Close()
		return nil, fmt.Errorf("failed to write lock information to %s: %w", lockPath, err)
	}

	slog.Info("lockfile.AcquireLock: acquired", "lock_path", lockPath, "pid", owner.PID, "channel", channel)
	return &Lock{file: file, path: lockPath}, nil
}

func writeOwner(file *os.File, owner Owner) error {
	if err := file.Truncate(0); err != nil {
		return err
	}
	if _, err := file.WriteAt([]byte(owner.String()), 0); err != nil {
		return err
	}
	if err := file.Sync(); err != nil {
		slog.Warn("lockfile.AcquireLock: sync failed", "error", err)
	}
	return nil
}

// Release drops the lock and removes the lock file. Safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		slog.Warn("lockfile.Release: unlock failed", "error", err, "lock_path", l.path)
	}
	closeErr := l.file.Close()
	l.file = nil
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		slog.Warn("lockfile.Release: remove failed", "error", err, "lock_path", l.path)
	}
	slog.Info("lockfile.Release: released", "lock_path", l.path)
	return closeErr
}

// LockError reports a state directory held by another process.
type LockError struct {
	LockPath string
	Holder   string
	Cause    error
}

func (e *LockError) Error() string {
	var b strings.Builder
	b.WriteString("Another triagebot instance is already running using the same state directory.\n\n")
	fmt.Fprintf(&b, "Lock file: %s\n", e.LockPath)
	if e.Holder != "" {
		fmt.Fprintf(&b, "Held by: %s\n", e.Holder)
	}
	fmt.Fprintf(&b, "\nIf that process is gone the lock is stale and can be removed with:\n  rm %s\n", e.LockPath)
	b.WriteString("Two processes sharing one WhatsApp session or SQLite file will corrupt both.")
	return b.String()
}

func (e *LockError) Unwrap() error {
	return e.Cause
}

// readOwner describes the current holder for error messages.
func readOwner(lockPath string) string {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return "unknown (lock file unreadable)"
	}
	content := strings.TrimSpace(string(data))
	if content == "" {
		return "unknown (lock file empty)"
	}
	owner := parseOwner(content)
	if owner.PID <= 0 {
		return content
	}
	state := "running"
	if !isProcessRunning(owner.PID) {
		state = "not running, stale lock"
	}
	desc := fmt.Sprintf("PID %d (%s)", owner.PID, state)
	if owner.Channel != "" {
		desc += ", channel " + owner.Channel
	}
	if !owner.Started.IsZero() {
		desc += ", since " + owner.Started.Format(time.RFC3339)
	}
	return desc
}

// parseOwner reads the key=value fields written by Owner.String.
func parseOwner(content string) Owner {
	var o Owner
	for _, field := range strings.Fields(content) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch key {
		case "pid":
			o.PID, _ = strconv.Atoi(value)
		case "channel":
			o.Channel = value
		case "started":
			o.Started, _ = time.Parse(time.RFC3339, value)
		}
	}
	return o
}

// isProcessRunning sends signal 0, which checks existence without delivering anything.
func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

package lock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// LockFileName is created inside the snapshot store directory
	LockFileName = ".snapdiff.lock"
	// DefaultStaleTimeout applies only to holders on another host
	DefaultStaleTimeout = 30 * time.Minute

	corruptGrace = 5 * time.Second
)

var errCorrupt = errors.New("invalid lock file format")

// LockInfo describes the process writing to the store
type LockInfo struct {
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartTime time.Time `json:"start_time"`
	Operation string    `json:"operation,omitempty"`
}

// StoreLock serializes writers of one snapshot store across processes
type StoreLock struct {
	lockPath     string
	staleTimeout time.Duration
	info         *LockInfo
}

// New returns a lock for the store directory dir, creating dir if needed
func New(dir string) (*StoreLock, error) {
	if dir == "" {
		return nil, errors.New("lock directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	return &StoreLock{
		lockPath:     filepath.Join(dir, LockFileName),
		staleTimeout: DefaultStaleTimeout,
	}, nil
}

// Path returns the lock file path
func (l *StoreLock) Path() string {
	return l.lockPath
}

// SetStaleTimeout changes how long a remote holder is trusted
func (l *StoreLock) SetStaleTimeout(d time.Duration) {
	l.staleTimeout = d
}

// Acquire takes the lock for operation. Re-acquiring from the same instance
// only relabels the holder.
func (l *StoreLock) Acquire(operation string) error {
	if l.info != nil {
		current, err := l.readInfo()
		if err == nil && l.ownedBy(current) {
			current.Operation = operation
			if err := l.writeInfo(current); err != nil {
				return err
			}
			l.info.Operation = operation
			return nil
		}
	}

	existing, err := l.readInfo()
	switch {
	case err == nil:
		if !l.isStale(existing) {
			return &LockError{Holder: existing, Reason: "store is in use by another process"}
		}
		if err := l.removeStale(); err != nil {
			return err
		}
	case errors.Is(err, errCorrupt):
		// A holder writes its info right after creating the file, so only
		// a file that stays unparseable past corruptGrace is stale.
		if time.Since(l.modTime()) < corruptGrace {
			return &LockError{Reason: "lock file is being written by another process"}
		}
		if err := l.removeStale(); err != nil {
			return err
		}
	}

	hostname, _ := os.Hostname()
	info := &LockInfo{
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartTime: time.Now(),
		Operation: operation,
	}

	f, err := os.OpenFile(l.lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			holder, readErr := l.readInfo()
			if readErr != nil {
				return fmt.Errorf("lock acquisition race: %w", err)
			}
			return &LockError{Holder: holder, Reason: "store was locked during acquisition"}
		}
		return fmt.Errorf("failed to create lock file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(info); err != nil {
		os.Remove(l.lockPath)
		return fmt.Errorf("failed to write lock info: %w", err)
	}

	l.info = info
	return nil
}

// Release drops the lock if this instance holds it
func (l *StoreLock) Release() error {
	if l.info == nil {
		return nil
	}
	current, err := l.readInfo()
	if err != nil {
		l.info = nil
		return nil
	}
	if !l.ownedBy(current) {
		l.info = nil
		return errors.New("lock was taken over by another process")
	}
	if err := os.Remove(l.lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	l.info = nil
	return nil
}

// IsLocked reports whether a live holder exists
func (l *StoreLock) IsLocked() bool {
	info, err := l.readInfo()
	if err != nil {
		return false
	}
	return !l.isStale(info)
}

// Holder returns the live holder
func (l *StoreLock) Holder() (*LockInfo, error) {
	info, err := l.readInfo()
	if err != nil {
		return nil, err
	}
	if l.isStale(info) {
		return nil, errors.New("lock is stale")
	}
	return info, nil
}

// ForceRelease removes the lock file regardless of holder
func (l *StoreLock) ForceRelease() error {
	if err := os.Remove(l.lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to force remove lock: %w", err)
	}
	l.info = nil
	return nil
}

func (l *StoreLock) readInfo() (*LockInfo, error) {
	data, err := os.ReadFile(l.lockPath)
	if err != nil {
		return nil, err
	}
	var info LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("%w: %v", errCorrupt, err)
	}
	return &info, nil
}

func (l *StoreLock) modTime() time.Time {
	fi, err := os.Stat(l.lockPath)
	if err != nil {
		return time.Time{}
	}
	return fi.ModTime()
}

func (l *StoreLock) removeStale() error {
	if err := os.Remove(l.lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale lock: %w", err)
	}
	return nil
}

func (l *StoreLock) writeInfo(info *LockInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(l.lockPath, data, 0644)
}

// isStale: a same-host holder is stale only when its process is gone; a
// remote holder after staleTimeout.
func (l *StoreLock) isStale(info *LockInfo) bool {
	hostname, _ := os.Hostname()
	if info.Hostname == hostname {
		return !processExists(info.PID)
	}
	return time.Since(info.StartTime) > l.staleTimeout
}

func (l *StoreLock) ownedBy(info *LockInfo) bool {
	if l.info == nil {
		return false
	}
	hostname, _ := os.Hostname()
	return info.PID == os.Getpid() &&
		info.Hostname == hostname &&
		l.info.StartTime.Equal(info.StartTime) &&
		l.info.Operation == info.Operation
}

// LockError is returned when another live process holds the lock
type LockError struct {
	Holder *LockInfo
	Reason string
}

func (e *LockError) Error() string {
	if e.Holder != nil {
		return fmt.Sprintf("cannot lock store: %s (pid %d on %s since %s, %s)",
			e.Reason,
			e.Holder.PID,
			e.Holder.Hostname,
			e.Holder.StartTime.Format(time.RFC3339),
			e.Holder.Operation,
		)
	}
	return fmt.Sprintf("cannot lock store: %s", e.Reason)
}

// IsLockError reports whether err is or wraps a LockError
func IsLockError(err error) bool {
	var le *LockError
	return errors.As(err, &le)
}

//go:build !windows

package lock

import (
	"errors"
	"os"
	"syscall"
)

// processExists probes pid with signal 0; EPERM still means alive
func processExists(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = p.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

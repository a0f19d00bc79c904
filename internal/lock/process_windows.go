//go:build windows

package lock

import (
	"errors"

	"golang.org/x/sys/windows"
)

// processExists opens pid for query; access denied still means alive
func processExists(pid int) bool {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return errors.Is(err, windows.ERROR_ACCESS_DENIED)
	}
	windows.CloseHandle(h)
	return true
}

//go:build windows

// Package hiddenattr sets the OS-level hidden attribute on a
// repository's metadata directory. It is a best-effort, optional
// post-init step: failure never aborts repository initialization.
package hiddenattr

import (
	"golang.org/x/sys/windows"
)

const fileAttributeHidden = 0x2

// Set marks path as hidden. Errors are returned to the caller, who is
// expected to log and ignore them rather than fail initialization.
func Set(path string) error {
	pathPtr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return err
	}
	attrs, err := windows.GetFileAttributes(pathPtr)
	if err != nil {
		return err
	}
	return windows.SetFileAttributes(pathPtr, attrs|fileAttributeHidden)
}

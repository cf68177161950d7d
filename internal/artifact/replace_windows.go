//go:build windows

package artifact

import "golang.org/x/sys/windows"

// replaceFile uses MoveFileEx with write-through so the replacement is
// flushed before it returns.
func replaceFile(tmpPath, dest string) error {
	from, err := windows.UTF16PtrFromString(tmpPath)
	if err != nil {
		return err
	}
	to, err := windows.UTF16PtrFromString(dest)
	if err != nil {
		return err
	}
	return windows.MoveFileEx(from, to, windows.MOVEFILE_REPLACE_EXISTING|windows.MOVEFILE_WRITE_THROUGH)
}

// syncDir is a no-op on Windows; directories cannot be fsynced.
func syncDir(string) error { return nil }

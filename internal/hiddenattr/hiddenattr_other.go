//go:build !windows

package hiddenattr

// Set is a no-op outside Windows: there is no equivalent hidden-file
// attribute to set on POSIX filesystems (a leading dot in the
// repository directory name already keeps it out of plain directory
// listings).
func Set(path string) error {
	return nil
}

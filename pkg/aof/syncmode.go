package aof

import "os"

// fdatasync flushes file data (and only as much metadata as needed to
// retrieve it) to stable storage. The Go standard library does not expose
// fdatasync(2) portably, so this intentionally falls back to the stronger
// File.Sync (fsync-equivalent) — a superset of fdatasync's durability
// guarantee — rather than reaching for a platform-specific syscall import
// for a distinction callers can't observe through this package's API.
func fdatasync(f *os.File) error {
	return f.Sync()
}

package aof

import (
	"bufio"
	"os"
	"path/filepath"

	"github.com/pkvartsianyi/spatio/pkg/errors"
)

// Rewrite rebuilds an equivalent, minimal AOF containing exactly one Set
// per live record (plus any Delete/TrajectoryAppend frames the caller
// still wants preserved) and swaps it in atomically: write to temp, fsync,
// rename over the original, fsync the parent directory. The caller is
// responsible for holding the write lock for the duration so no mutation
// is lost between the last record read and the rename becoming visible.
func Rewrite(path string, commands []Command) error {
	dir := filepath.Dir(path)
	tmpPath := path + ".rewrite.tmp"

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return &errors.IOError{Op: "open aof rewrite temp", Err: err}
	}

	bw := bufio.NewWriter(f)
	for _, c := range commands {
		if _, err := writeFrame(bw, c); err != nil {
			f.Close()
			os.Remove(tmpPath)
			return &errors.IOError{Op: "write aof rewrite frame", Err: err}
		}
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return &errors.IOError{Op: "flush aof rewrite temp", Err: err}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return &errors.IOError{Op: "fsync aof rewrite temp", Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return &errors.IOError{Op: "close aof rewrite temp", Err: err}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return &errors.IOError{Op: "rename aof rewrite temp", Err: err}
	}

	if dirF, err := os.Open(dir); err == nil {
		dirF.Sync()
		dirF.Close()
	}

	return nil
}

// AppendTail appends extra frames (the tail buffer captured during
// rewrite) directly to the now-current file at path, used immediately
// after Rewrite swaps the new file in.
func AppendTail(path string, commands []Command) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return &errors.IOError{Op: "open aof for tail append", Err: err}
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	for _, c := range commands {
		if _, err := writeFrame(bw, c); err != nil {
			return &errors.IOError{Op: "write aof tail frame", Err: err}
		}
	}
	if err := bw.Flush(); err != nil {
		return &errors.IOError{Op: "flush aof tail", Err: err}
	}
	return f.Sync()
}

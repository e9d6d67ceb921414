package aof

import (
	"bufio"
	"io"
	"os"

	"github.com/pkvartsianyi/spatio/pkg/errors"
)

// Reader reads commands from an AOF file sequentially.
type Reader struct {
	file *os.File
	br   *bufio.Reader
}

// NewReader opens an existing AOF file for replay.
func NewReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &errors.IOError{Op: "open aof for replay", Err: err}
	}
	return &Reader{file: f, br: bufio.NewReader(f)}, nil
}

// ReadCommand reads the next command, returning io.EOF once the file is
// cleanly exhausted.
func (r *Reader) ReadCommand() (Command, error) {
	return readFrame(r.br)
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.file.Close()
}

// ReadAll replays every command in the file in order. A truncated final
// frame (tail I/O from a crash mid-write) is discarded silently and
// replay stops there; everything read before it remains authoritative.
// Any other decode error (bad tag, CRC mismatch, oversized frame) is
// fatal and aborts the whole replay.
func ReadAll(path string) ([]Command, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &errors.IOError{Op: "stat aof", Err: err}
	}

	r, err := NewReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var cmds []Command
	for {
		c, err := r.ReadCommand()
		if err == io.EOF {
			break
		}
		if err == io.ErrUnexpectedEOF {
			// Truncated final frame from a crash mid-append; discard and
			// stop, keeping everything read so far.
			break
		}
		if err != nil {
			if _, ok := err.(*errors.CorruptFormatError); ok {
				return nil, err
			}
			return nil, &errors.IOError{Op: "aof replay", Err: err}
		}
		cmds = append(cmds, c)
	}
	return cmds, nil
}

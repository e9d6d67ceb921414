package aof

import (
	"encoding/binary"
	"io"

	"github.com/pkvartsianyi/spatio/pkg/errors"
)

// writeFrame writes one self-delimiting frame: 1-byte tag, 4-byte
// little-endian length, then length-many payload bytes (a 4-byte CRC32
// followed by the encoded command body).
func writeFrame(w io.Writer, c Command) (int64, error) {
	body, err := encodeBody(c)
	if err != nil {
		return 0, err
	}
	if len(body) > MaxFrameSize {
		return 0, &errors.CorruptFormatError{Reason: "encoded frame exceeds max frame size"}
	}

	crc := calculateCRC32(body)
	payload := make([]byte, 4+len(body))
	binary.LittleEndian.PutUint32(payload[0:4], crc)
	copy(payload[4:], body)

	var header [FrameHeaderSize]byte
	header[0] = byte(c.Tag)
	binary.LittleEndian.PutUint32(header[1:5], uint32(len(payload)))

	n1, err := w.Write(header[:])
	if err != nil {
		return int64(n1), err
	}
	n2, err := w.Write(payload)
	return int64(n1 + n2), err
}

// readFrame reads and validates one frame. It returns io.EOF when the
// stream is cleanly exhausted before a new frame begins, and
// io.ErrUnexpectedEOF when a frame starts but its body is truncated — the
// caller (ReadAll) treats the latter as "discard the partial tail frame
// and stop", the tolerant half of crash recovery.
func readFrame(r io.Reader) (Command, error) {
	var header [FrameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return Command{}, io.ErrUnexpectedEOF
		}
		return Command{}, err // io.EOF or a real read error
	}

	tag := Tag(header[0])
	length := binary.LittleEndian.Uint32(header[1:5])
	if length > MaxFrameSize+4 {
		return Command{}, &errors.CorruptFormatError{Reason: "frame length exceeds max frame size"}
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return Command{}, io.ErrUnexpectedEOF
		}
		return Command{}, err
	}

	if len(payload) < 4 {
		return Command{}, &errors.CorruptFormatError{Reason: "frame payload shorter than its crc32 prefix"}
	}
	crc := binary.LittleEndian.Uint32(payload[0:4])
	body := payload[4:]
	if !validateCRC32(body, crc) {
		return Command{}, &errors.CorruptFormatError{Reason: "crc32 mismatch"}
	}

	return decodeBody(tag, body)
}

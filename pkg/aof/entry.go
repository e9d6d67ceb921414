// Package aof implements the append-only persistence log: self-delimiting
// frames of {Set, Delete, TrajectoryAppend} commands, written under a
// configurable sync policy and replayed on open.
package aof

import (
	"encoding/binary"
	"io"
	"time"

	"github.com/pkvartsianyi/spatio/pkg/errors"
	"github.com/pkvartsianyi/spatio/pkg/geo"
)

// Tag identifies the kind of command a frame carries.
type Tag uint8

const (
	TagSet Tag = iota + 1
	TagDelete
	TagTrajectoryAppend
)

// MaxFrameSize is the largest payload replay will accept; larger frames
// are a fatal corruption error.
const MaxFrameSize = 10 * 1024 * 1024

// FrameHeaderSize is the tag byte plus the 4-byte little-endian length.
const FrameHeaderSize = 1 + 4

// Command is the decoded form of one AOF frame.
type Command struct {
	Tag Tag

	// Set / Delete fields.
	Namespace string
	ID        string
	Point     geo.Point3D
	Metadata  []byte
	CreatedAt time.Time
	ExpiresAt *time.Time

	// TrajectoryAppend fields.
	TrajectoryPoints []TrajectoryPointEntry
}

// TrajectoryPointEntry is one (timestamp, point, metadata) tuple within a
// TagTrajectoryAppend command.
type TrajectoryPointEntry struct {
	Timestamp time.Time
	Point     geo.Point3D
	Metadata  []byte
}

// SetCommand builds a Command for an upsert.
func SetCommand(ns, id string, p geo.Point3D, metadata []byte, createdAt time.Time, expiresAt *time.Time) Command {
	return Command{
		Tag: TagSet, Namespace: ns, ID: id, Point: p, Metadata: metadata,
		CreatedAt: createdAt, ExpiresAt: expiresAt,
	}
}

// DeleteCommand builds a Command for a delete.
func DeleteCommand(ns, id string) Command {
	return Command{Tag: TagDelete, Namespace: ns, ID: id}
}

// TrajectoryAppendCommand builds a Command for a trajectory insert.
func TrajectoryAppendCommand(ns, id string, points []TrajectoryPointEntry) Command {
	return Command{Tag: TagTrajectoryAppend, Namespace: ns, ID: id, TrajectoryPoints: points}
}

func writeLenPrefixed(w io.Writer, b []byte) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(b)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func writeTimestamp(w io.Writer, t time.Time) error {
	var buf [12]byte
	secs := t.Unix()
	nanos := uint32(t.Nanosecond())
	binary.LittleEndian.PutUint64(buf[0:8], uint64(secs))
	binary.LittleEndian.PutUint32(buf[8:12], nanos)
	_, err := w.Write(buf[:])
	return err
}

// encodeBody renders the command's type-specific payload, excluding the
// frame header and CRC, which writeFrame adds around it.
func encodeBody(c Command) ([]byte, error) {
	buf := newByteBuffer()

	switch c.Tag {
	case TagSet:
		if err := writeLenPrefixed(buf, []byte(c.Namespace)); err != nil {
			return nil, err
		}
		if err := writeLenPrefixed(buf, []byte(c.ID)); err != nil {
			return nil, err
		}
		var ptBuf [24]byte
		binary.LittleEndian.PutUint64(ptBuf[0:8], floatBits(c.Point.X))
		binary.LittleEndian.PutUint64(ptBuf[8:16], floatBits(c.Point.Y))
		binary.LittleEndian.PutUint64(ptBuf[16:24], floatBits(c.Point.Z))
		buf.Write(ptBuf[:])
		if err := writeLenPrefixed(buf, c.Metadata); err != nil {
			return nil, err
		}
		if err := writeTimestamp(buf, c.CreatedAt); err != nil {
			return nil, err
		}
		if c.ExpiresAt != nil {
			buf.WriteByte(1)
			if err := writeTimestamp(buf, *c.ExpiresAt); err != nil {
				return nil, err
			}
		} else {
			buf.WriteByte(0)
		}

	case TagDelete:
		if err := writeLenPrefixed(buf, []byte(c.Namespace)); err != nil {
			return nil, err
		}
		if err := writeLenPrefixed(buf, []byte(c.ID)); err != nil {
			return nil, err
		}

	case TagTrajectoryAppend:
		if err := writeLenPrefixed(buf, []byte(c.Namespace)); err != nil {
			return nil, err
		}
		if err := writeLenPrefixed(buf, []byte(c.ID)); err != nil {
			return nil, err
		}
		var countBuf [4]byte
		binary.LittleEndian.PutUint32(countBuf[:], uint32(len(c.TrajectoryPoints)))
		buf.Write(countBuf[:])
		for _, tp := range c.TrajectoryPoints {
			if err := writeTimestamp(buf, tp.Timestamp); err != nil {
				return nil, err
			}
			var ptBuf [24]byte
			binary.LittleEndian.PutUint64(ptBuf[0:8], floatBits(tp.Point.X))
			binary.LittleEndian.PutUint64(ptBuf[8:16], floatBits(tp.Point.Y))
			binary.LittleEndian.PutUint64(ptBuf[16:24], floatBits(tp.Point.Z))
			buf.Write(ptBuf[:])
			if err := writeLenPrefixed(buf, tp.Metadata); err != nil {
				return nil, err
			}
		}

	default:
		return nil, &errors.CorruptFormatError{Reason: "unknown command tag during encode"}
	}

	return buf.Bytes(), nil
}

func readLenPrefixed(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n > MaxFrameSize {
		return nil, &errors.CorruptFormatError{Reason: "length-prefixed field exceeds max frame size"}
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func readTimestamp(r io.Reader) (time.Time, error) {
	var buf [12]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return time.Time{}, err
	}
	secs := int64(binary.LittleEndian.Uint64(buf[0:8]))
	nanos := int64(binary.LittleEndian.Uint32(buf[8:12]))
	return time.Unix(secs, nanos).UTC(), nil
}

func readPoint(r io.Reader) (geo.Point3D, error) {
	var buf [24]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return geo.Point3D{}, err
	}
	return geo.Point3D{
		X: floatFromBits(binary.LittleEndian.Uint64(buf[0:8])),
		Y: floatFromBits(binary.LittleEndian.Uint64(buf[8:16])),
		Z: floatFromBits(binary.LittleEndian.Uint64(buf[16:24])),
	}, nil
}

// decodeBody parses a command body given its tag, the inverse of
// encodeBody.
func decodeBody(tag Tag, body []byte) (Command, error) {
	r := newByteReader(body)
	c := Command{Tag: tag}

	switch tag {
	case TagSet:
		ns, err := readLenPrefixed(r)
		if err != nil {
			return c, err
		}
		id, err := readLenPrefixed(r)
		if err != nil {
			return c, err
		}
		pt, err := readPoint(r)
		if err != nil {
			return c, err
		}
		metadata, err := readLenPrefixed(r)
		if err != nil {
			return c, err
		}
		created, err := readTimestamp(r)
		if err != nil {
			return c, err
		}
		hasExpires, err := r.ReadByte()
		if err != nil {
			return c, err
		}
		c.Namespace = string(ns)
		c.ID = string(id)
		c.Point = pt
		c.Metadata = metadata
		c.CreatedAt = created
		if hasExpires == 1 {
			exp, err := readTimestamp(r)
			if err != nil {
				return c, err
			}
			c.ExpiresAt = &exp
		}
		return c, nil

	case TagDelete:
		ns, err := readLenPrefixed(r)
		if err != nil {
			return c, err
		}
		id, err := readLenPrefixed(r)
		if err != nil {
			return c, err
		}
		c.Namespace = string(ns)
		c.ID = string(id)
		return c, nil

	case TagTrajectoryAppend:
		ns, err := readLenPrefixed(r)
		if err != nil {
			return c, err
		}
		id, err := readLenPrefixed(r)
		if err != nil {
			return c, err
		}
		var countBuf [4]byte
		if _, err := io.ReadFull(r, countBuf[:]); err != nil {
			return c, err
		}
		count := binary.LittleEndian.Uint32(countBuf[:])
		points := make([]TrajectoryPointEntry, 0, count)
		for i := uint32(0); i < count; i++ {
			ts, err := readTimestamp(r)
			if err != nil {
				return c, err
			}
			pt, err := readPoint(r)
			if err != nil {
				return c, err
			}
			meta, err := readLenPrefixed(r)
			if err != nil {
				return c, err
			}
			points = append(points, TrajectoryPointEntry{Timestamp: ts, Point: pt, Metadata: meta})
		}
		c.Namespace = string(ns)
		c.ID = string(id)
		c.TrajectoryPoints = points
		return c, nil

	default:
		return c, &errors.CorruptFormatError{Reason: "unknown command tag during decode"}
	}
}

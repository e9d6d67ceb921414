// Package snapshot implements a point-in-time dump file format: a magic
// header, timestamp, and a sequence of binary-encoded records, written
// via the same write-temp/fsync/rename-over pattern used for checkpoint
// files throughout this module.
package snapshot

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkvartsianyi/spatio/pkg/errors"
	"github.com/pkvartsianyi/spatio/pkg/geo"
)

// Magic is the 15-byte file signature every snapshot starts with.
const Magic = "SPATIO_SNAPSHOT"

// Version is the only format version this package writes or accepts.
const Version uint8 = 1

// Entry is one record captured in a snapshot.
type Entry struct {
	Namespace string
	ID        string
	Point     geo.Point3D
	Metadata  []byte
	CreatedAt time.Time
	ExpiresAt *time.Time
}

// Save writes entries to path atomically: encode to a temp file in the
// same directory, fsync, then rename over the target.
func Save(path string, entries []Entry, timestamp time.Time) error {
	dir := filepath.Dir(path)
	tmpPath := filepath.Join(dir, ".snapshot-"+uuid.NewString()+".tmp")

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return &errors.IOError{Op: "open snapshot temp", Err: err}
	}

	bw := bufio.NewWriter(f)
	if err := writeHeader(bw, timestamp, uint64(len(entries))); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return &errors.IOError{Op: "write snapshot header", Err: err}
	}
	for _, e := range entries {
		if err := writeEntry(bw, e); err != nil {
			f.Close()
			os.Remove(tmpPath)
			return &errors.IOError{Op: "write snapshot entry", Err: err}
		}
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return &errors.IOError{Op: "flush snapshot temp", Err: err}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return &errors.IOError{Op: "fsync snapshot temp", Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return &errors.IOError{Op: "close snapshot temp", Err: err}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return &errors.IOError{Op: "rename snapshot temp", Err: err}
	}
	if dirF, err := os.Open(dir); err == nil {
		dirF.Sync()
		dirF.Close()
	}
	return nil
}

// Load reads a snapshot file. A bad magic or unsupported version is
// fatal, returned as *errors.CorruptFormatError.
func Load(path string) ([]Entry, time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, time.Time{}, nil
		}
		return nil, time.Time{}, &errors.IOError{Op: "open snapshot", Err: err}
	}
	defer f.Close()

	br := bufio.NewReader(f)
	ts, count, err := readHeader(br, path)
	if err != nil {
		return nil, time.Time{}, err
	}

	entries := make([]Entry, 0, count)
	for i := uint64(0); i < count; i++ {
		e, err := readEntry(br)
		if err != nil {
			return nil, time.Time{}, &errors.CorruptFormatError{Path: path, Reason: "truncated or malformed entry: " + err.Error()}
		}
		entries = append(entries, e)
	}
	return entries, ts, nil
}

// Exists reports whether a snapshot file is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func writeHeader(w io.Writer, timestamp time.Time, count uint64) error {
	if _, err := w.Write([]byte(Magic)); err != nil {
		return err
	}
	if _, err := w.Write([]byte{Version}); err != nil {
		return err
	}
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(timestamp.Unix()))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(timestamp.Nanosecond()))
	// buf[12:16] reserved, left zero.
	if _, err := w.Write(buf[:]); err != nil {
		return err
	}
	var countBuf [8]byte
	binary.LittleEndian.PutUint64(countBuf[:], count)
	_, err := w.Write(countBuf[:])
	return err
}

func readHeader(r io.Reader, path string) (time.Time, uint64, error) {
	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return time.Time{}, 0, &errors.CorruptFormatError{Path: path, Reason: "truncated magic"}
	}
	if string(magic) != Magic {
		return time.Time{}, 0, &errors.CorruptFormatError{Path: path, Reason: "bad magic"}
	}

	var versionBuf [1]byte
	if _, err := io.ReadFull(r, versionBuf[:]); err != nil {
		return time.Time{}, 0, &errors.CorruptFormatError{Path: path, Reason: "truncated version"}
	}
	if versionBuf[0] != Version {
		return time.Time{}, 0, &errors.CorruptFormatError{Path: path, Reason: "unsupported version"}
	}

	var tsBuf [16]byte
	if _, err := io.ReadFull(r, tsBuf[:]); err != nil {
		return time.Time{}, 0, &errors.CorruptFormatError{Path: path, Reason: "truncated timestamp"}
	}
	secs := int64(binary.LittleEndian.Uint64(tsBuf[0:8]))
	nanos := int64(binary.LittleEndian.Uint32(tsBuf[8:12]))
	ts := time.Unix(secs, nanos).UTC()

	var countBuf [8]byte
	if _, err := io.ReadFull(r, countBuf[:]); err != nil {
		return time.Time{}, 0, &errors.CorruptFormatError{Path: path, Reason: "truncated count"}
	}
	count := binary.LittleEndian.Uint64(countBuf[:])

	return ts, count, nil
}

// keyBytes composes the snapshot's opaque "key" field from a namespace and
// id: a 4-byte namespace length, the namespace bytes, then the id bytes.
func keyBytes(namespace, id string) []byte {
	buf := make([]byte, 4+len(namespace)+len(id))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(namespace)))
	copy(buf[4:], namespace)
	copy(buf[4+len(namespace):], id)
	return buf
}

func parseKeyBytes(b []byte) (namespace, id string, ok bool) {
	if len(b) < 4 {
		return "", "", false
	}
	nsLen := binary.LittleEndian.Uint32(b[0:4])
	if uint32(len(b)-4) < nsLen {
		return "", "", false
	}
	ns := string(b[4 : 4+nsLen])
	id = string(b[4+nsLen:])
	return ns, id, true
}

// valueBytes composes the snapshot's opaque "value" field: the point's
// three float64 axes followed by the opaque metadata bytes.
func valueBytes(p geo.Point3D, metadata []byte) []byte {
	buf := make([]byte, 24+len(metadata))
	binary.LittleEndian.PutUint64(buf[0:8], math.Float64bits(p.X))
	binary.LittleEndian.PutUint64(buf[8:16], math.Float64bits(p.Y))
	binary.LittleEndian.PutUint64(buf[16:24], math.Float64bits(p.Z))
	copy(buf[24:], metadata)
	return buf
}

func parseValueBytes(b []byte) (geo.Point3D, []byte, bool) {
	if len(b) < 24 {
		return geo.Point3D{}, nil, false
	}
	p := geo.Point3D{
		X: math.Float64frombits(binary.LittleEndian.Uint64(b[0:8])),
		Y: math.Float64frombits(binary.LittleEndian.Uint64(b[8:16])),
		Z: math.Float64frombits(binary.LittleEndian.Uint64(b[16:24])),
	}
	metadata := append([]byte(nil), b[24:]...)
	return p, metadata, true
}

func writeEntry(w io.Writer, e Entry) error {
	key := keyBytes(e.Namespace, e.ID)
	value := valueBytes(e.Point, e.Metadata)

	if err := writeUint64Prefixed(w, key); err != nil {
		return err
	}
	if err := writeUint64Prefixed(w, value); err != nil {
		return err
	}

	var tsBuf [12]byte
	binary.LittleEndian.PutUint64(tsBuf[0:8], uint64(e.CreatedAt.Unix()))
	binary.LittleEndian.PutUint32(tsBuf[8:12], uint32(e.CreatedAt.Nanosecond()))
	if _, err := w.Write(tsBuf[:]); err != nil {
		return err
	}

	if e.ExpiresAt != nil {
		if _, err := w.Write([]byte{1}); err != nil {
			return err
		}
		var expBuf [12]byte
		binary.LittleEndian.PutUint64(expBuf[0:8], uint64(e.ExpiresAt.Unix()))
		binary.LittleEndian.PutUint32(expBuf[8:12], uint32(e.ExpiresAt.Nanosecond()))
		if _, err := w.Write(expBuf[:]); err != nil {
			return err
		}
	} else {
		if _, err := w.Write([]byte{0}); err != nil {
			return err
		}
	}
	return nil
}

func readEntry(r io.Reader) (Entry, error) {
	key, err := readUint64Prefixed(r)
	if err != nil {
		return Entry{}, err
	}
	value, err := readUint64Prefixed(r)
	if err != nil {
		return Entry{}, err
	}

	var tsBuf [12]byte
	if _, err := io.ReadFull(r, tsBuf[:]); err != nil {
		return Entry{}, err
	}
	created := time.Unix(int64(binary.LittleEndian.Uint64(tsBuf[0:8])), int64(binary.LittleEndian.Uint32(tsBuf[8:12]))).UTC()

	var hasExpBuf [1]byte
	if _, err := io.ReadFull(r, hasExpBuf[:]); err != nil {
		return Entry{}, err
	}

	var expiresAt *time.Time
	if hasExpBuf[0] == 1 {
		var expBuf [12]byte
		if _, err := io.ReadFull(r, expBuf[:]); err != nil {
			return Entry{}, err
		}
		t := time.Unix(int64(binary.LittleEndian.Uint64(expBuf[0:8])), int64(binary.LittleEndian.Uint32(expBuf[8:12]))).UTC()
		expiresAt = &t
	}

	ns, id, ok := parseKeyBytes(key)
	if !ok {
		return Entry{}, &errors.CorruptFormatError{Reason: "malformed snapshot key"}
	}
	point, metadata, ok := parseValueBytes(value)
	if !ok {
		return Entry{}, &errors.CorruptFormatError{Reason: "malformed snapshot value"}
	}

	return Entry{
		Namespace: ns, ID: id, Point: point, Metadata: metadata,
		CreatedAt: created, ExpiresAt: expiresAt,
	}, nil
}

func writeUint64Prefixed(w io.Writer, b []byte) error {
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(b)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readUint64Prefixed(r io.Reader) ([]byte, error) {
	var lenBuf [8]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint64(lenBuf[:])
	const maxReasonable = 64 * 1024 * 1024
	if n > maxReasonable {
		return nil, &errors.CorruptFormatError{Reason: "snapshot field length unreasonably large"}
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

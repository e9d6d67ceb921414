package errors

import "testing"

func TestErrors_ErrorMethod(t *testing.T) {
	errs := []error{
		&ValidationError{Field: "point.x", Reason: "out of range"},
		&NotFoundError{Namespace: "cities", ID: "nyc"},
		&DatabaseClosedError{},
		&IOError{Op: "aof append", Err: errSentinel},
		&CorruptFormatError{Path: "data.aof", Reason: "bad magic"},
		&InvalidTimestampError{Reason: "before epoch"},
		&InternalError{Reason: "index/store divergence"},
		&NamespaceAlreadyExistsError{Name: "cities"},
		&UnknownConfigKeyError{Key: "bogus_option"},
	}

	for _, e := range errs {
		if e.Error() == "" {
			t.Errorf("Error() returned empty string for %T", e)
		}
	}
}

func TestIOError_Unwrap(t *testing.T) {
	ioErr := &IOError{Op: "fsync", Err: errSentinel}
	if ioErr.Unwrap() != errSentinel {
		t.Errorf("Unwrap() = %v, want %v", ioErr.Unwrap(), errSentinel)
	}
}

var errSentinel = &CorruptFormatError{Path: "x", Reason: "y"}

// Package config parses the engine's recognized configuration keys into
// a typed Config, following the same Options/DefaultOptions pattern used
// for configuring persistence elsewhere in this module.
package config

import (
	"strconv"
	"time"

	"github.com/pkvartsianyi/spatio/pkg/errors"
)

// SyncPolicy controls when the AOF is flushed to disk.
type SyncPolicy int

const (
	// SyncNever never calls fsync; durability across a host crash is
	// best-effort only.
	SyncNever SyncPolicy = iota
	// SyncEverySecond batches writes and fsyncs at least once per second;
	// a final fsync happens on Close.
	SyncEverySecond
	// SyncAlways fsyncs after every frame, or after every SyncBatchSize
	// frames when that is configured >= 1.
	SyncAlways
)

func (p SyncPolicy) String() string {
	switch p {
	case SyncNever:
		return "never"
	case SyncEverySecond:
		return "every_second"
	case SyncAlways:
		return "always"
	default:
		return "unknown"
	}
}

// SyncMode distinguishes fdatasync-equivalent from fsync-equivalent
// durability where the host supports the distinction.
type SyncMode int

const (
	SyncModeData SyncMode = iota
	SyncModeAll
)

func (m SyncMode) String() string {
	if m == SyncModeAll {
		return "all"
	}
	return "data"
}

// Config holds every recognized option.
type Config struct {
	SyncPolicy SyncPolicy
	SyncMode   SyncMode

	// SyncBatchSize groups N >= 1 writes before fsync under SyncAlways.
	SyncBatchSize int

	// BufferCapacity is parsed and validated, but nothing in the engine
	// reads it: trajectory series and the history log are not sized by it.
	BufferCapacity int

	// PersistenceBufferSize is the in-memory write batch (bytes) kept
	// before a forced AOF flush.
	PersistenceBufferSize int

	// SnapshotAutoOps triggers a snapshot save after N mutations since the
	// last snapshot. Zero disables auto-snapshotting.
	SnapshotAutoOps uint64

	// HistoryCapacity bounds the history log; zero or less selects the
	// engine's default capacity.
	HistoryCapacity int

	// RewriteThresholdBytes is the AOF size past which a rewrite is
	// triggered.
	RewriteThresholdBytes int64

	// SyncIntervalDuration paces the background fsync under
	// SyncEverySecond.
	SyncIntervalDuration time.Duration
}

// Default returns a safe, balanced configuration.
func Default() Config {
	return Config{
		SyncPolicy:            SyncEverySecond,
		SyncMode:              SyncModeAll,
		SyncBatchSize:         1,
		BufferCapacity:        256,
		PersistenceBufferSize: 64 * 1024,
		SnapshotAutoOps:       0,
		HistoryCapacity:       0,
		RewriteThresholdBytes: 64 * 1024 * 1024,
		SyncIntervalDuration:  time.Second,
	}
}

// recognizedKeys lists every key ParseOptions accepts; anything outside
// this set is rejected.
var recognizedKeys = map[string]bool{
	"sync_policy":               true,
	"sync_mode":                 true,
	"sync_batch_size":           true,
	"buffer_capacity":           true,
	"persistence.buffer_size":   true,
	"snapshot.auto_snapshot_ops": true,
	"history_capacity":          true,
	"rewrite_threshold_bytes":   true,
	"sync_interval_ms":          true,
}

// ParseOptions applies string-keyed overrides onto Default(), rejecting
// any key not in recognizedKeys.
func ParseOptions(opts map[string]string) (Config, error) {
	cfg := Default()

	for k, v := range opts {
		if !recognizedKeys[k] {
			return Config{}, &errors.UnknownConfigKeyError{Key: k}
		}

		switch k {
		case "sync_policy":
			switch v {
			case "never", "Never":
				cfg.SyncPolicy = SyncNever
			case "every_second", "EverySecond":
				cfg.SyncPolicy = SyncEverySecond
			case "always", "Always":
				cfg.SyncPolicy = SyncAlways
			default:
				return Config{}, &errors.ValidationError{Field: k, Reason: "must be one of never, every_second, always"}
			}
		case "sync_mode":
			switch v {
			case "data", "Data":
				cfg.SyncMode = SyncModeData
			case "all", "All":
				cfg.SyncMode = SyncModeAll
			default:
				return Config{}, &errors.ValidationError{Field: k, Reason: "must be one of data, all"}
			}
		case "sync_batch_size":
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				return Config{}, &errors.ValidationError{Field: k, Reason: "must be an integer >= 1"}
			}
			cfg.SyncBatchSize = n
		case "buffer_capacity":
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return Config{}, &errors.ValidationError{Field: k, Reason: "must be a non-negative integer"}
			}
			cfg.BufferCapacity = n
		case "persistence.buffer_size":
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return Config{}, &errors.ValidationError{Field: k, Reason: "must be a non-negative integer"}
			}
			cfg.PersistenceBufferSize = n
		case "snapshot.auto_snapshot_ops":
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return Config{}, &errors.ValidationError{Field: k, Reason: "must be a non-negative integer"}
			}
			cfg.SnapshotAutoOps = n
		case "history_capacity":
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return Config{}, &errors.ValidationError{Field: k, Reason: "must be a non-negative integer"}
			}
			cfg.HistoryCapacity = n
		case "rewrite_threshold_bytes":
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil || n < 0 {
				return Config{}, &errors.ValidationError{Field: k, Reason: "must be a non-negative integer"}
			}
			cfg.RewriteThresholdBytes = n
		case "sync_interval_ms":
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return Config{}, &errors.ValidationError{Field: k, Reason: "must be a non-negative integer"}
			}
			cfg.SyncIntervalDuration = time.Duration(n) * time.Millisecond
		}
	}

	return cfg, nil
}

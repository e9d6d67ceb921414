package engine

import "sync/atomic"

// opsCounter is the canonical operations_count accumulator: a single
// atomic counter rather than a hand-summed tally scattered across
// Upsert/Delete/Atomic, so Stats() always reports exactly what actually
// ran.
type opsCounter struct {
	count uint64
}

func (c *opsCounter) next() uint64 {
	return atomic.AddUint64(&c.count, 1)
}

func (c *opsCounter) current() uint64 {
	return atomic.LoadUint64(&c.count)
}

// Stats summarizes the engine's current state.
type Stats struct {
	Namespaces      int
	Records         int
	OperationsCount uint64
}

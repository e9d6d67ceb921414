package aof

import (
	"bytes"
	"math"
)

func newByteBuffer() *bytes.Buffer {
	return bytes.NewBuffer(make([]byte, 0, 256))
}

func newByteReader(b []byte) *bytes.Reader {
	return bytes.NewReader(b)
}

func floatBits(f float64) uint64 {
	return math.Float64bits(f)
}

func floatFromBits(b uint64) float64 {
	return math.Float64frombits(b)
}

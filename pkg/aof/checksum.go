package aof

import "hash/crc32"

// castagnoliTable is the hardware-accelerated CRC32 variant used to guard
// every frame against torn writes.
var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

func calculateCRC32(data []byte) uint32 {
	return crc32.Checksum(data, castagnoliTable)
}

func validateCRC32(data []byte, expected uint32) bool {
	return calculateCRC32(data) == expected
}

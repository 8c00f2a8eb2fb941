package plc

import (
	"encoding/binary"
	"math"
)

// encodeReal packs v as a 4-byte IEEE-754 big-endian REAL.
func encodeReal(v float64) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, math.Float32bits(float32(v)))
	return b
}

func decodeReal(b []byte) float64 {
	return float64(math.Float32frombits(binary.BigEndian.Uint32(b[:4])))
}

// setBit returns b with exactly one bit changed.
func setBit(b byte, bit int, v bool) byte {
	mask := byte(1) << uint(bit)
	if v {
		return b | mask
	}
	return b &^ mask
}

func getBit(b byte, bit int) bool {
	return b&(byte(1)<<uint(bit)) != 0
}

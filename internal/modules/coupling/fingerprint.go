package coupling

import (
	"crypto/sha256"
	"encoding/binary"
	"math"

	"github.com/taoeli/maxlink/internal/domain"
)

// Fingerprint is a content key over an atomic geometry. Two geometries share
// a fingerprint iff positions, cell, and species numbers are byte-identical,
// so any coordinate change invalidates results keyed on it.
type Fingerprint [sha256.Size]byte

// FingerprintOf hashes positions, cell, and atomic numbers. Floats are
// hashed as raw IEEE-754 bits: the key is exact, not tolerance-based.
func FingerprintOf(g domain.Geometry) Fingerprint {
	h := sha256.New()
	var buf [8]byte

	binary.LittleEndian.PutUint64(buf[:], uint64(len(g.Positions)))
	h.Write(buf[:])
	for _, v := range g.Positions {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		h.Write(buf[:])
	}
	for _, v := range g.Cell {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		h.Write(buf[:])
	}
	for _, n := range g.Numbers {
		binary.LittleEndian.PutUint64(buf[:], uint64(int64(n)))
		h.Write(buf[:])
	}

	var fp Fingerprint
	h.Sum(fp[:0])
	return fp
}

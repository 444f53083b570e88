package utils

import (
	"encoding/binary"
	"github.com/twmb/murmur3"
	"hash"
	"math"
)

// Hasher accumulates typed values into one murmur3 digest. Strings are length
// prefixed so that ("ab","c") and ("a","bc") never collide.
type Hasher struct {
	buf [8]byte
	sum hash.Hash64
}

func NewHasher() *Hasher {
	return &Hasher{sum: murmur3.New64()}
}

func (h *Hasher) Uint64(v uint64) {
	binary.LittleEndian.PutUint64(h.buf[:], v)
	_, _ = h.sum.Write(h.buf[:])
}

func (h *Hasher) Float64(v float64) {
	h.Uint64(math.Float64bits(v))
}

func (h *Hasher) String(s string) {
	h.Uint64(uint64(len(s)))
	_, _ = h.sum.Write([]byte(s))
}

func (h *Hasher) Sum64() uint64 {
	return h.sum.Sum64()
}

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

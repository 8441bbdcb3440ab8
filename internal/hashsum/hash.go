// Package hashsum computes the fixed-format deletion-proof hash: a 128-bit
// XXH3 digest over the big-endian upload length followed by a bounded
// prefix sample of the upload bytes. The format is frozen: changing it
// invalidates every outstanding deletion URL.
package hashsum

import (
	"encoding/binary"

	"github.com/zeebo/xxh3"
)

// SampleWantedBytes is the maximum number of leading bytes of an upload
// that contribute to its deletion hash.
const SampleWantedBytes = 32768

// Hash is a 128-bit digest, stored big-endian.
type Hash [16]byte

// Calculate computes XXH3_128(BE64(length) || sample).
func Calculate(length uint64, sample []byte) Hash {
	buf := make([]byte, 8, 8+len(sample))
	binary.BigEndian.PutUint64(buf, length)
	buf = append(buf, sample...)

	sum := xxh3.Hash128(buf)

	var out Hash
	binary.BigEndian.PutUint64(out[0:8], sum.Hi)
	binary.BigEndian.PutUint64(out[8:16], sum.Lo)
	return out
}

// Sample accumulates the leading SampleWantedBytes of a streamed upload,
// taking from each appended chunk only as many bytes as are still needed.
type Sample struct {
	buf []byte
}

// NewSample returns an empty sample accumulator.
func NewSample() *Sample {
	return &Sample{buf: make([]byte, 0, SampleWantedBytes)}
}

// Append folds in as much of chunk as still fits within SampleWantedBytes.
func (s *Sample) Append(chunk []byte) {
	need := SampleWantedBytes - len(s.buf)
	if need <= 0 {
		return
	}
	if len(chunk) > need {
		chunk = chunk[:need]
	}
	s.buf = append(s.buf, chunk...)
}

// Bytes returns the accumulated sample.
func (s *Sample) Bytes() []byte {
	return s.buf
}

// SampleLen returns min(SampleWantedBytes, length): how much of an upload of
// the given total length would contribute to its sample.
func SampleLen(length int64) int64 {
	if length > SampleWantedBytes {
		return SampleWantedBytes
	}
	return length
}

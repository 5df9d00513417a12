package sim

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"
)

// RandomSource produces every random decision a simulation makes. All
// implementations MUST be deterministic: the same construction arguments
// produce the same draw sequence, bit for bit.
//
// Random01 returns a uniform value in the unit interval. RandomInt returns a
// uniform value in [min, maxPlusOne). Exhausted reports whether a byte-backed
// source has run out of input; draws on an exhausted source raise the
// end-of-run condition that CatchExhaustion and actor boundaries convert to
// ErrSourceExhausted.
type RandomSource interface {
	Random01() float64
	RandomInt(min, maxPlusOne int) int
	Exhausted() bool
}

// checkRange validates a RandomInt request.
func checkRange(min, maxPlusOne int) {
	if maxPlusOne <= min {
		panic(fmt.Sprintf("RandomInt: empty range [%d, %d)", min, maxPlusOne))
	}
}

// FairRandom draws from a seeded PRNG and never exhausts. It is the source
// behind ordinary seeded runs and the delegate behind recordings.
type FairRandom struct {
	rng *rand.Rand
}

// NewFairRandom returns a fair source for the given seed.
func NewFairRandom(seed int64) *FairRandom {
	return &FairRandom{rng: rand.New(rand.NewSource(seed))}
}

func (f *FairRandom) Random01() float64 {
	return f.rng.Float64()
}

func (f *FairRandom) RandomInt(min, maxPlusOne int) int {
	checkRange(min, maxPlusOne)
	return min + f.rng.Intn(maxPlusOne-min)
}

func (f *FairRandom) Exhausted() bool { return false }

// Byte encoding shared by fuzz, recording and replay sources:
//
//   - Random01 consumes 4 bytes little-endian as a uint32 u; the value is
//     u / MaxUint32.
//   - RandomInt over a span n = maxPlusOne-min consumes bytesRequired(n)
//     bytes little-endian, clamped to n-1; a span of 1 consumes nothing.
//
// Recording quantizes the delegate's draw through the same encoding before
// returning it, so a replay of the log reproduces the run bit for bit.

// bytesRequired returns the smallest k with 256^k >= span; eight bytes cover
// any int span, so k never exceeds 8 (the shifted limit would wrap past it).
func bytesRequired(span int) int {
	k := 1
	for limit := uint64(256); k < 8 && limit < uint64(span); limit <<= 8 {
		k++
	}
	return k
}

// byteCursor walks an input buffer and raises the end-of-run condition when
// a draw would run past the end.
type byteCursor struct {
	data      []byte
	pos       int
	exhausted bool
}

func (c *byteCursor) take(n int) []byte {
	if c.exhausted || c.pos+n > len(c.data) {
		c.exhausted = true
		panic(sourceExhausted{})
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b
}

func (c *byteCursor) random01() float64 {
	u := binary.LittleEndian.Uint32(c.take(4))
	return float64(u) / float64(math.MaxUint32)
}

func (c *byteCursor) randomInt(min, maxPlusOne int) int {
	checkRange(min, maxPlusOne)
	span := maxPlusOne - min
	if span == 1 {
		return min
	}
	var v uint64
	for i, b := range c.take(bytesRequired(span)) {
		v |= uint64(b) << (8 * i)
	}
	if v > uint64(span-1) {
		v = uint64(span - 1)
	}
	return min + int(v)
}

// FuzzRandom consumes an externally supplied buffer, typically a fuzzer's
// input. Exhaustion ends the run cleanly, so every prefix of a buffer is a
// valid (if short) simulation.
type FuzzRandom struct {
	cur byteCursor
}

// NewFuzzRandom returns a source over data. The buffer is not copied.
func NewFuzzRandom(data []byte) *FuzzRandom {
	return &FuzzRandom{cur: byteCursor{data: data}}
}

func (f *FuzzRandom) Random01() float64 {
	return f.cur.random01()
}

func (f *FuzzRandom) RandomInt(min, maxPlusOne int) int {
	return f.cur.randomInt(min, maxPlusOne)
}

func (f *FuzzRandom) Exhausted() bool { return f.cur.exhausted }

// ReplayRandom reconstructs the draw sequence captured by a RecordingRandom.
// Decoding is identical to FuzzRandom; a complete log replays the run exactly
// and then exhausts.
type ReplayRandom struct {
	cur byteCursor
}

// NewReplayRandom returns a source over a recorded log.
func NewReplayRandom(log []byte) *ReplayRandom {
	return &ReplayRandom{cur: byteCursor{data: log}}
}

func (r *ReplayRandom) Random01() float64 {
	return r.cur.random01()
}

func (r *ReplayRandom) RandomInt(min, maxPlusOne int) int {
	return r.cur.randomInt(min, maxPlusOne)
}

func (r *ReplayRandom) Exhausted() bool { return r.cur.exhausted }

// RecordingRandom wraps a delegate and logs every draw in the shared byte
// encoding. The value returned is the log's decoding of the draw, not the
// delegate's raw value, which is what makes the replay bit-identical.
type RecordingRandom struct {
	delegate RandomSource
	log      []byte
}

// NewRecordingRandom returns a recording wrapper around delegate.
func NewRecordingRandom(delegate RandomSource) *RecordingRandom {
	return &RecordingRandom{delegate: delegate}
}

func (r *RecordingRandom) Random01() float64 {
	v := r.delegate.Random01()
	u := uint32(v * float64(math.MaxUint32))
	r.log = binary.LittleEndian.AppendUint32(r.log, u)
	return float64(u) / float64(math.MaxUint32)
}

func (r *RecordingRandom) RandomInt(min, maxPlusOne int) int {
	x := r.delegate.RandomInt(min, maxPlusOne)
	span := maxPlusOne - min
	if span == 1 {
		return x
	}
	u := uint64(x - min)
	for i := 0; i < bytesRequired(span); i++ {
		r.log = append(r.log, byte(u>>(8*i)))
	}
	return x
}

func (r *RecordingRandom) Exhausted() bool { return r.delegate.Exhausted() }

// Bytes returns the draw log accumulated so far.
func (r *RecordingRandom) Bytes() []byte {
	return r.log
}

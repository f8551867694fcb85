package engine

import (
	"math"
	"sync/atomic"

	"github.com/jwulff/stenod/pkg/audio"
)

// atomicFloat holds a float64 peak level updated from the forwarding
// goroutine in [teeLevel] and read (and reset) by the level ticker.
type atomicFloat struct {
	bits atomic.Uint64
}

func (f *atomicFloat) storeMax(v float64) {
	next := math.Float64bits(v)
	for {
		cur := f.bits.Load()
		if v <= math.Float64frombits(cur) {
			return
		}
		if f.bits.CompareAndSwap(cur, next) {
			return
		}
	}
}

// Swap returns the current value and resets it to v.
func (f *atomicFloat) Swap(v float64) float64 {
	return math.Float64frombits(f.bits.Swap(math.Float64bits(v)))
}

// teeLevel forwards every buffer from in to the returned channel unchanged,
// while updating level with the highest peak observed since the last
// reset. The returned channel closes when in closes.
func teeLevel(in <-chan audio.Buffer, bitDepth int, level *atomicFloat) <-chan audio.Buffer {
	out := make(chan audio.Buffer)
	go func() {
		defer close(out)
		for b := range in {
			level.storeMax(peak(b, bitDepth))
			out <- b
		}
	}()
	return out
}

// peak returns the highest-magnitude sample in b, normalized to [0, 1].
// Only 16-bit signed PCM is interpreted meaningfully; any other bit depth
// yields 0, since this daemon does not decode arbitrary sample formats.
func peak(b audio.Buffer, bitDepth int) float64 {
	if bitDepth != 16 || len(b.Data) < 2 {
		return 0
	}
	var max int32
	for i := 0; i+1 < len(b.Data); i += 2 {
		sample := int32(int16(uint16(b.Data[i]) | uint16(b.Data[i+1])<<8))
		if sample < 0 {
			sample = -sample
		}
		if sample > max {
			max = sample
		}
	}
	if max > math.MaxInt16 {
		max = math.MaxInt16
	}
	return float64(max) / float64(math.MaxInt16)
}

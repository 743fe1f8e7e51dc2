package engine

import (
	"math"
	"time"
)

// Clock produces modification timestamps: seconds since epoch with
// two-decimal precision. Fractional on purpose; the validator rejects
// integer-typed modified fields. Not strictly monotonic across concurrent
// writers, so equal stamps within one burst are expected and time-range
// predicates treat modified as a non-unique ordering key.
type Clock interface {
	Now() float64
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() float64 {
	sec := float64(time.Now().UnixNano()) / 1e9
	return math.Round(sec*100) / 100
}

package auth

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// FailureDelay pads failed login responses to a floor plus random jitter so
// response time does not reveal which check rejected the attempt
type FailureDelay struct {
	base   time.Duration
	jitter time.Duration
	sleep  func(time.Duration)
}

// NewFailureDelay creates a FailureDelay. A zero base and jitter disables padding.
func NewFailureDelay(base, jitter time.Duration) *FailureDelay {
	return &FailureDelay{base: base, jitter: jitter, sleep: time.Sleep}
}

// Pad sleeps until at least base+jitter has elapsed since start
func (d *FailureDelay) Pad(start time.Time) {
	if d == nil {
		return
	}
	target := d.base + cryptoJitter(d.jitter)
	if elapsed := time.Since(start); elapsed < target {
		d.sleep(target - elapsed)
	}
}

// cryptoJitter returns a uniformly random duration in [0, max)
func cryptoJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0
	}
	return time.Duration(binary.BigEndian.Uint64(buf[:]) % uint64(max))
}

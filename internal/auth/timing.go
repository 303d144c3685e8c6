package auth

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"time"
)

// TimingConfig holds configuration for login response padding
type TimingConfig struct {
	MinDuration    time.Duration // Minimum time a failed login takes
	Jitter         time.Duration // Random extra delay in [0, Jitter)
	DelayOnSuccess bool
}

// TimingDelay pads failed logins so that unknown accounts, bad passwords and
// lockout denials are indistinguishable by response time
type TimingDelay struct {
	config TimingConfig
}

// NewTimingDelay creates a new TimingDelay instance
func NewTimingDelay(config TimingConfig) *TimingDelay {
	return &TimingDelay{
		config: config,
	}
}

// cryptoRandDuration returns a uniformly random duration in [0, max)
func cryptoRandDuration(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0
	}
	return time.Duration(binary.BigEndian.Uint64(buf[:]) % uint64(max))
}

// WaitFrom blocks until at least MinDuration plus jitter has elapsed since
// start. It returns early if ctx is cancelled. A nil TimingDelay never waits.
func (td *TimingDelay) WaitFrom(ctx context.Context, start time.Time, success bool) {
	if td == nil || (success && !td.config.DelayOnSuccess) {
		return
	}

	target := td.config.MinDuration + cryptoRandDuration(td.config.Jitter)
	remaining := target - time.Since(start)
	if remaining <= 0 {
		return
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

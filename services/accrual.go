package services

import (
	"time"

	"pall-network-service/models"
)

// DefaultSessionDuration is the fixed mining window length.
const DefaultSessionDuration = 24 * time.Hour

// DefaultBaseRewardMicro is the reward for one full session at 1.0x speed.
const DefaultBaseRewardMicro = 1 * models.MicroPerToken

// AccrualEstimator maps elapsed session time to an accrued amount. It is a
// pure value type: the server uses it for settlement, the client uses the
// same math for optimistic display, and both stay in integer micro-tokens so
// a second-by-second readout never drifts from the settled total.
type AccrualEstimator struct {
	Duration        time.Duration
	BaseRewardMicro int64
}

func NewAccrualEstimator(duration time.Duration, baseRewardMicro int64) AccrualEstimator {
	if duration <= 0 {
		duration = DefaultSessionDuration
	}
	if baseRewardMicro <= 0 {
		baseRewardMicro = DefaultBaseRewardMicro
	}
	return AccrualEstimator{Duration: duration, BaseRewardMicro: baseRewardMicro}
}

// Accrued returns the micro-token amount earned after elapsed time at the
// given multiplier. Linear in elapsed, clamped to [0, Duration].
func (e AccrualEstimator) Accrued(elapsed time.Duration, multiplierBp int64) int64 {
	if elapsed <= 0 {
		return 0
	}
	if elapsed > e.Duration {
		elapsed = e.Duration
	}
	if multiplierBp <= 0 {
		multiplierBp = models.MultiplierBaseBp
	}
	elapsedMs := elapsed.Milliseconds()
	durationMs := e.Duration.Milliseconds()
	// base*elapsedMs tops out around 8.6e13 for a day-long session, so the
	// intermediate product fits int64 comfortably. Dividing by durationMs
	// before applying the multiplier keeps the second product bounded too.
	return e.BaseRewardMicro * elapsedMs / durationMs * multiplierBp / models.MultiplierBaseBp
}

// FullReward is the amount settled for a complete session.
func (e AccrualEstimator) FullReward(multiplierBp int64) int64 {
	return e.Accrued(e.Duration, multiplierBp)
}

// Remaining returns how much of the session is left at now, clamped at zero.
func (e AccrualEstimator) Remaining(sessionStart, now time.Time) time.Duration {
	left := e.Duration - now.Sub(sessionStart)
	if left < 0 {
		return 0
	}
	return left
}

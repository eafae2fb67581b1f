package session

import (
	"math/rand"
	"time"
)

// NextBackoffDelay returns the pause after failed probe attempt N (1-based).
// The delay grows by Multiplier per attempt up to MaxDelay; jitter spreads it
// over [0.5, 1.5) of that value.
func NextBackoffDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	if cfg.InitialDelay <= 0 {
		return 0
	}
	mult := max(cfg.Multiplier, 1.0)
	delay := float64(cfg.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= mult
		if cfg.MaxDelay > 0 && delay >= float64(cfg.MaxDelay) {
			delay = float64(cfg.MaxDelay)
			break
		}
	}
	if cfg.Jitter && rng != nil {
		delay *= 0.5 + rng.Float64()
	}
	return time.Duration(delay)
}

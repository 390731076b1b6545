package retry

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// DefaultKafkaPolicy is used for publishing trust change events.
func DefaultKafkaPolicy(log *zap.Logger) Policy {
	return Policy{
		Name:     "kafka_publish",
		Attempts: 6,
		Backoff:  ExpoJitter{Base: 200 * time.Millisecond, Max: 30 * time.Second, Jitter: 0.2},
		Retryable: func(err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		},
		OnAttempt: func(i int, err error) {
			if log != nil {
				log.Warn("publish retry", zap.Int("attempt", i+1), zap.Error(err))
			}
		},
		OnExhaust: func(err error) {
			if log != nil && !errors.Is(err, context.Canceled) {
				log.Error("publish retries exhausted", zap.Error(err))
			}
		},
	}
}

// DefaultResultPolicy retries check result writes a few times with short waits.
func DefaultResultPolicy(log *zap.Logger, attempts int) Policy {
	if attempts <= 0 {
		attempts = 3
	}
	return Policy{
		Name:     "check_results",
		Attempts: attempts,
		Backoff:  ExpoJitter{Base: 50 * time.Millisecond, Max: 2 * time.Second, Jitter: 0.2},
		OnAttempt: func(i int, err error) {
			if log != nil {
				log.Debug("store result retry", zap.Int("attempt", i+1), zap.Error(err))
			}
		},
	}
}

package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/loykin/latter/internal/common"
)

// Config holds configuration for connection retries
type Config struct {
	MaxRetries      int           // Maximum number of retry attempts after the first try
	InitialDelay    time.Duration // Delay before the first retry
	MaxDelay        time.Duration // Upper bound for any single delay
	BackoffFactor   float64       // Multiplier for exponential backoff
	RetryableErrors []string      // Lower-case substrings that make an error retryable
}

// DefaultRetryConfig returns the policy used by the wait command and connect_retries.
func DefaultRetryConfig() *Config {
	return &Config{
		MaxRetries:    3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		RetryableErrors: []string{
			"connection refused",
			"connection reset",
			"timeout",
			"temporary failure",
			"no such host",
			"database is locked",
			"the database system is starting up",
			"too many connections",
			"bad connection",
			"broken pipe",
			"eof",
		},
	}
}

func (rc *Config) isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	errStr := strings.ToLower(err.Error())
	for _, s := range rc.RetryableErrors {
		if strings.Contains(errStr, s) {
			return true
		}
	}
	return false
}

func (rc *Config) calculateDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return rc.InitialDelay
	}
	factor := rc.BackoffFactor
	if factor < 1 {
		factor = 1
	}
	delay := time.Duration(float64(rc.InitialDelay) * math.Pow(factor, float64(attempt)))
	if rc.MaxDelay > 0 && delay > rc.MaxDelay {
		delay = rc.MaxDelay
	}
	return delay
}

// Operation is a unit of work that may be retried.
type Operation func(ctx context.Context) error

// WithRetry runs op until it succeeds, fails with a non-retryable error, runs
// out of attempts, or ctx is done. A nil config means a single attempt.
func WithRetry(ctx context.Context, config *Config, logger *common.Logger, op Operation) error {
	if config == nil {
		return op(ctx)
	}
	logger = common.OrDefault(logger).WithComponent("retry")

	var lastErr error
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		err := op(ctx)
		if err == nil {
			if attempt > 0 {
				logger.Info("operation succeeded after retry", "attempt", attempt+1)
			}
			return nil
		}
		lastErr = err

		if attempt == config.MaxRetries {
			break
		}
		if !config.isRetryableError(err) {
			logger.Debug("operation failed with non-retryable error", "error", err, "attempt", attempt+1)
			return err
		}

		delay := config.calculateDelay(attempt)
		logger.Warn("operation failed, retrying",
			"error", err,
			"attempt", attempt+1,
			"max_attempts", config.MaxRetries+1,
			"retry_delay", delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("operation cancelled during retry: %w", ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", config.MaxRetries+1, lastErr)
}

// internal/fallback/selector.go
package fallback

import (
	"context"
	"time"

	"content-scheduler/internal/common/errors"
	"content-scheduler/internal/common/logger"
	"content-scheduler/internal/common/retry"
	"content-scheduler/internal/generator"
)

// Generator produces fresh content on demand.
type Generator interface {
	Generate(ctx context.Context, req generator.Request) (string, error)
}

// Selector obtains a content reference for an allocation: live generation
// first, with retries on transient failures, then the standing pool. It runs
// entirely outside the ledger's client lock; sourcing content is slow and
// must never block other mutations for the client.
type Selector struct {
	generator Generator
	pool      Pool
	policy    retry.Policy
	logger    logger.Logger
}

// NewSelector builds a selector around the given retry policy. Zero policy
// fields fall back to 3 attempts, 1s base delay, doubling backoff; the
// retryable predicate is always the shared error classification.
func NewSelector(gen Generator, pool Pool, policy retry.Policy, log logger.Logger) *Selector {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 3
	}
	if policy.BaseDelay == 0 {
		policy.BaseDelay = time.Second
	}
	if policy.Multiplier < 1 {
		policy.Multiplier = 2
	}
	policy.RetryIf = errors.IsRetryable

	return &Selector{
		generator: gen,
		pool:      pool,
		policy:    policy,
		logger:    log.WithFields(map[string]interface{}{"component": "fallback-selector"}),
	}
}

// ObtainContent returns a content reference and whether it came from the
// fallback pool. A permanent generation failure skips straight to the pool;
// transient failures are retried first. When both sources fail, the
// generation error is returned so callers see the root cause.
func (s *Selector) ObtainContent(ctx context.Context, clientID, topic string) (ref string, fromPool bool, err error) {
	genErr := s.policy.Do(ctx, func(ctx context.Context) error {
		var attemptErr error
		ref, attemptErr = s.generator.Generate(ctx, generator.Request{ClientID: clientID, Topic: topic})
		return attemptErr
	})
	if genErr == nil {
		return ref, false, nil
	}

	s.logger.Warn("generation exhausted, falling back to pool", map[string]interface{}{
		"clientId": clientID,
		"error":    genErr.Error(),
	})

	ref, poolErr := s.pool.Take(ctx, clientID)
	if poolErr == nil {
		return ref, true, nil
	}
	if errors.IsCode(poolErr, errors.ErrCodePoolEmpty) {
		s.logger.Error("fallback pool empty", map[string]interface{}{"clientId": clientID})
		return "", false, genErr
	}
	return "", false, poolErr
}

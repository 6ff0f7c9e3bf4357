package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sethvargo/go-retry"
)

// ReadRetry настройки повторов для читающих запросов. Мутации не повторяются
type ReadRetry struct {
	MaxRetries uint64
	Base       time.Duration
}

// DefaultReadRetry два повтора с экспоненциальной паузой от 50мс
var DefaultReadRetry = ReadRetry{MaxRetries: 2, Base: 50 * time.Millisecond}

// isTransient сообщает, можно ли безопасно повторить запрос
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return pgconn.SafeToRetry(err) || pgconn.Timeout(err)
}

func readWithRetry[T any](ctx context.Context, policy ReadRetry, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	if policy.Base <= 0 {
		policy.Base = DefaultReadRetry.Base
	}
	backoff := retry.WithMaxRetries(policy.MaxRetries, retry.NewExponential(policy.Base))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			if isTransient(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		result = v
		return nil
	})

	return result, err
}

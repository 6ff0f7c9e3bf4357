package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// ConnectDB открывает пул и ждёт, пока база ответит на ping. Между
// попытками пауза растёт от 500мс до 10с
func ConnectDB(ctx context.Context, dsn string, attempts uint64, logger *zap.Logger) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse db dsn: %w", err)
	}
	cfg.MaxConnLifetime = time.Hour
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if attempts == 0 {
		attempts = 1
	}
	backoff := retry.NewExponential(500 * time.Millisecond)
	backoff = retry.WithCappedDuration(10*time.Second, backoff)
	backoff = retry.WithMaxRetries(attempts-1, backoff)

	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if err := pool.Ping(pingCtx); err != nil {
			logger.Warn("Database is not ready",
				zap.Int("attempt", attempt),
				zap.Uint64("max_attempts", attempts),
				zap.Error(err))
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("Connected to database",
		zap.String("host", cfg.ConnConfig.Host),
		zap.String("database", cfg.ConnConfig.Database),
		zap.Int("attempts", attempt))
	return pool, nil
}

//go:build integration

// Package testinfra поднимает инфраструктуру для интеграционных тестов
package testinfra

import (
	"context"
	"fmt"
	"os/exec"
	"testing"
	"time"

	"github.com/Freeeeeet/homeconnect/internal/app"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

const postgresImage = "postgres:16-alpine"

// Postgres контейнер с базой и пулом, на котором уже применены миграции
type Postgres struct {
	Container testcontainers.Container
	Pool      *pgxpool.Pool
}

// IsDockerAvailable проверяет, что docker daemon доступен
func IsDockerAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return exec.CommandContext(ctx, "docker", "info").Run() == nil
}

// SkipIfNoDocker пропускает тест, если docker недоступен
func SkipIfNoDocker(t *testing.T) {
	t.Helper()

	if !IsDockerAvailable() {
		t.Skip("Skipping test: Docker not available")
	}
}

// StartPostgres запускает контейнер, подключается к нему и накатывает миграции
func StartPostgres(ctx context.Context) (*Postgres, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        postgresImage,
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "homeconnect",
				"POSTGRES_PASSWORD": "homeconnect",
				"POSTGRES_DB":       "homeconnect",
			},
			WaitingFor: wait.ForAll(
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
				wait.ForListeningPort("5432/tcp"),
			).WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("start postgres container: %w", err)
	}

	pg := &Postgres{Container: container}
	if err := pg.connect(ctx); err != nil {
		_ = pg.Terminate(ctx)
		return nil, err
	}

	return pg, nil
}

func (p *Postgres) connect(ctx context.Context) error {
	host, err := p.Container.Host(ctx)
	if err != nil {
		return fmt.Errorf("get container host: %w", err)
	}
	port, err := p.Container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return fmt.Errorf("get mapped port: %w", err)
	}

	dsn := fmt.Sprintf("postgres://homeconnect:homeconnect@%s:%s/homeconnect?sslmode=disable", host, port.Port())
	logger := zap.NewNop()

	p.Pool, err = app.ConnectDB(ctx, dsn, 10, logger)
	if err != nil {
		return err
	}

	migrator, err := app.NewMigrator(p.Pool, logger)
	if err != nil {
		return err
	}
	defer migrator.Close()

	return migrator.Run(ctx)
}

// Terminate закрывает пул и останавливает контейнер
func (p *Postgres) Terminate(ctx context.Context) error {
	if p.Pool != nil {
		p.Pool.Close()
	}
	return p.Container.Terminate(ctx)
}

// Reset очищает все таблицы между тестами
func (p *Postgres) Reset(t *testing.T) {
	t.Helper()

	_, err := p.Pool.Exec(context.Background(),
		`TRUNCATE reviews, bookings, provider_time_slots, providers, locations, users RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("reset database: %v", err)
	}
}

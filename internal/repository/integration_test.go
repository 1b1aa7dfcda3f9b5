package repository

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/nordqvist/hnfweb/internal/config"
	"github.com/nordqvist/hnfweb/internal/database"
	"github.com/nordqvist/hnfweb/internal/domain/model"
)

// setupIntegrationDB поднимает PostgreSQL, применяет миграции и возвращает TxRunner.
func setupIntegrationDB(t *testing.T) *TxRunner {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("hnf_test"),
		postgres.WithUsername("hnf"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	t.Setenv("HNF_SESSION_SECRET", "test-secret")
	t.Setenv("HNF_DB_HOST", host)
	t.Setenv("HNF_DB_PORT", port.Port())
	t.Setenv("HNF_DB_NAME", "hnf_test")
	t.Setenv("HNF_DB_USER", "hnf")
	t.Setenv("HNF_DB_PASSWORD", "test-password")

	cfg, err := config.Load()
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, database.Migrate(cfg, logger))

	db, err := database.Connect(ctx, cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewTxRunner(db, logger)
}

func TestIntegration_Users(t *testing.T) {
	runner := setupIntegrationDB(t)
	repo := NewUserRepository(runner)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, "admin@example.com", "hash"))

	// Источник истины: ограничение UNIQUE
	err := repo.Create(ctx, "admin@example.com", "other")
	assert.ErrorIs(t, err, ErrConflict)

	exists, err := repo.Exists(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = repo.FindByEmail(ctx, "ghost@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIntegration_Images(t *testing.T) {
	runner := setupIntegrationDB(t)
	repo := NewImageRepository(runner)
	ctx := context.Background()

	first := &model.Image{Filename: "a.jpg", ObjectKey: "inspiration/a.jpg", URL: "u/a"}
	require.NoError(t, repo.Create(ctx, first))
	time.Sleep(10 * time.Millisecond)
	alt := "b"
	second := &model.Image{Filename: "b.jpg", ObjectKey: "inspiration/b.jpg", URL: "u/b", AltText: &alt}
	require.NoError(t, repo.Create(ctx, second))

	require.NoError(t, repo.SetActive(ctx, first.ID, false))

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID, "новые изображения первыми")

	require.NoError(t, repo.Delete(ctx, first.ID))
	assert.ErrorIs(t, repo.Delete(ctx, first.ID), ErrNotFound)

	keys, err := repo.ListObjectKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"inspiration/b.jpg"}, keys)
}

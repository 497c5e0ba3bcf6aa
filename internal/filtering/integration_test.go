//go:build integration

package filtering

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	postgresmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	redismodule "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"sieve/internal/config"
	"sieve/internal/logger"
	pkgerrors "sieve/pkg/errors"
	"sieve/pkg/filter"
	"sieve/pkg/migrations"
)

const containerStartupTimeout = 60 * time.Second

func setupPostgres(t *testing.T) *sqlx.DB {
	t.Helper()
	ctx := context.Background()

	if os.Getenv("TESTCONTAINERS_RYUK_DISABLED") == "" {
		os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
	}

	container, err := postgresmodule.Run(ctx, "postgres:15",
		postgresmodule.WithDatabase("test_db"),
		postgresmodule.WithUsername("test_user"),
		postgresmodule.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("5432/tcp").WithStartupTimeout(containerStartupTimeout),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		container.Terminate(ctx)
	})

	conn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	var db *sqlx.DB
	require.Eventually(t, func() bool {
		db, err = sqlx.Open("postgres", conn)
		if err != nil {
			return false
		}
		if err = db.PingContext(ctx); err != nil {
			db.Close()
			return false
		}
		return true
	}, 30*time.Second, 500*time.Millisecond, "postgres never became reachable")
	t.Cleanup(func() {
		db.Close()
	})

	require.NoError(t, migrations.UpPostgres(db.DB))
	return db
}

func setupRedis(t *testing.T) *redisclient.Client {
	t.Helper()
	ctx := context.Background()

	container, err := redismodule.Run(ctx, "redis:8.4.0-alpine")
	require.NoError(t, err, "failed to start redis container")
	t.Cleanup(func() {
		container.Terminate(ctx)
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	opt, err := redisclient.ParseURL(uri)
	require.NoError(t, err)

	client := redisclient.NewClient(opt)
	require.NoError(t, client.Ping(ctx).Err())
	t.Cleanup(func() {
		client.Close()
	})
	return client
}

func newSaved(name string, f filter.Filter, stream, enabled bool) *SavedFilter {
	return &SavedFilter{
		Name:       name,
		Definition: filter.Definition{Filter: f},
		Strict:     true,
		Stream:     stream,
		Enabled:    enabled,
	}
}

func TestPostgresRepository(t *testing.T) {
	db := setupPostgres(t)
	repo := NewRepository(db)
	ctx := context.Background()

	adults := newSaved("adults", filter.And(
		filter.Number("age", filter.OpGte, 18),
		filter.Date("createdAt", filter.OpAfter, "2024-01-01"),
	), true, true)
	require.NoError(t, repo.Create(ctx, adults))
	require.NotEmpty(t, adults.ID)

	got, err := repo.Get(ctx, adults.ID)
	require.NoError(t, err)
	assert.Equal(t, "adults", got.Name)
	require.IsType(t, &filter.AndFilter{}, got.Definition.Filter)
	assert.NoError(t, filter.Validate(got.Definition.Filter))

	ok, err := filter.Match(filter.Message{"age": 20, "createdAt": "2024-05-01"}, got.Definition.Filter)
	require.NoError(t, err)
	assert.True(t, ok)

	err = repo.Create(ctx, newSaved("adults", filter.Or(), false, true))
	assert.True(t, pkgerrors.IsConflict(err))

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, repo.Create(ctx, newSaved("disabled", filter.Or(), true, false)))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, repo.Create(ctx, newSaved("api", filter.Or(), false, true)))
	time.Sleep(10 * time.Millisecond)
	second := newSaved("second", filter.Boolean("active", filter.OpEq, true), true, true)
	require.NoError(t, repo.Create(ctx, second))

	stream, err := repo.ListStreamFilters(ctx)
	require.NoError(t, err)
	require.Len(t, stream, 2)
	assert.Equal(t, adults.ID, stream[0].ID)
	assert.Equal(t, second.ID, stream[1].ID)

	page, err := repo.List(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "second", page[0].Name)

	got.Description = "updated"
	got.Enabled = false
	require.NoError(t, repo.Update(ctx, got))

	stream, err = repo.ListStreamFilters(ctx)
	require.NoError(t, err)
	assert.Len(t, stream, 1)

	require.NoError(t, repo.Delete(ctx, got.ID))
	_, err = repo.Get(ctx, got.ID)
	assert.True(t, pkgerrors.IsNotFound(err))
	assert.True(t, pkgerrors.IsNotFound(repo.Delete(ctx, got.ID)))
	assert.True(t, pkgerrors.IsNotFound(repo.Update(ctx, got)))

	_, err = repo.Get(ctx, "not-a-uuid")
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestCachedRepository(t *testing.T) {
	db := setupPostgres(t)
	client := setupRedis(t)
	ctx := context.Background()

	repo := NewCachedRepository(NewRepository(db), client, time.Minute, logger.NopLogger())

	saved := newSaved("cached", filter.String("name", filter.OpStartsWith, "al"), false, true)
	require.NoError(t, repo.Create(ctx, saved))

	_, err := repo.Get(ctx, saved.ID)
	require.NoError(t, err)

	cached, err := client.Exists(ctx, cacheKey(saved.ID)).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, cached)

	hit, err := repo.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "cached", hit.Name)
	assert.IsType(t, &filter.StringFilter{}, hit.Definition.Filter)

	hit.Description = "changed"
	require.NoError(t, repo.Update(ctx, hit))

	cached, err = client.Exists(ctx, cacheKey(saved.ID)).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 0, cached)

	fresh, err := repo.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "changed", fresh.Description)

	require.NoError(t, repo.Delete(ctx, saved.ID))
	_, err = repo.Get(ctx, saved.ID)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestServiceOverPostgres(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()

	repo := NewCircuitBreakerRepository(NewRepository(db), config.CircuitBreakerConfig{
		Enabled:      true,
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		FailureRatio: 0.5,
		MinRequests:  3,
	})
	svc := NewService(testConfig(), logger.NopLogger(), WithRepository(repo))

	_, err := svc.CreateFilter(ctx, CreateFilterRequest{
		Name:       "adults",
		Definition: filter.Definition{Filter: filter.Number("age", filter.OpGte, 18)},
		Stream:     ptr(true),
	})
	require.NoError(t, err)

	// not found errors must not trip the breaker
	for i := 0; i < 5; i++ {
		_, err := svc.GetFilter(ctx, "00000000-0000-0000-0000-000000000000")
		require.True(t, pkgerrors.IsNotFound(err))
	}

	require.NoError(t, svc.ReloadFilters(ctx, true))
	decision, err := svc.Filter(ctx, envelope(map[string]interface{}{"age": 21}))
	require.NoError(t, err)
	assert.True(t, decision.Passed)
}

func TestMigrationsDownAndUp(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()

	require.NoError(t, migrations.DownPostgres(db.DB))

	var exists bool
	require.NoError(t, db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'saved_filters')`))
	assert.False(t, exists)

	require.NoError(t, migrations.UpPostgres(db.DB))
	require.NoError(t, migrations.UpPostgres(db.DB))

	require.NoError(t, db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'saved_filters')`))
	assert.True(t, exists)
}

//go:build integration

package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Sternrassler/fssp-client/internal/testutil"
	"github.com/Sternrassler/fssp-client/pkg/batch"
	"github.com/Sternrassler/fssp-client/pkg/cache"
	"github.com/Sternrassler/fssp-client/pkg/client"
	"github.com/Sternrassler/fssp-client/pkg/collect"
	"github.com/Sternrassler/fssp-client/pkg/fssp"
	"github.com/Sternrassler/fssp-client/pkg/ratelimit"
	"github.com/Sternrassler/fssp-client/pkg/region"
	"github.com/Sternrassler/fssp-client/pkg/store"
	"github.com/Sternrassler/fssp-client/pkg/submit"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	t.Cleanup(func() {
		rdb.Close()
		container.Terminate(ctx)
	})
	return rdb
}

// newRedisOrchestrator wires every Redis-backed component the way the CLI does.
func newRedisOrchestrator(t *testing.T, rdb *redis.Client, mock *testutil.MockFSSP, clock *testutil.FakeClock) *Orchestrator {
	t.Helper()

	api, err := client.New(client.Config{
		BaseURL:   mock.URL(),
		Token:     "secret",
		UserAgent: "integration-test",
		Timeout:   5 * time.Second,
	})
	require.NoError(t, err)

	logger := zerolog.Nop()
	pacer := ratelimit.NewPacer(5*time.Second, clock, logger).
		WithStore(ratelimit.NewTracker(rdb, "it", time.Hour, logger))
	sub := submit.New(api, pacer, submit.DefaultConfig(), logger).
		WithClock(clock).
		WithJournal(cache.NewJournal(rdb, "it", time.Hour))

	opts := Options{
		Clock: clock,
		NewPending: func(runID string) store.PendingSet {
			return store.NewRedis(rdb, "it", runID, time.Hour)
		},
	}
	return New(batch.NewBatcher(region.Default(), batch.MaxItems, logger), sub, api, collect.New(api, logger), opts, logger)
}

func TestRun_RedisBackedRerunUsesJournal(t *testing.T) {
	rdb := setupRedis(t)
	clock := testutil.NewFakeClock(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	mock := testutil.NewMockFSSP(clock.Now)
	defer mock.Close()
	mock.SetResult("T1", []testutil.MockMatch{{Name: "Smith John A.", ExeProduction: "1/24/77001-IP"}})

	orch := newRedisOrchestrator(t, rdb, mock, clock)
	persons := []fssp.Person{{
		LastName:   "Smith",
		FirstName:  "John",
		Patronymic: "A.",
		BirthDate:  time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
	}}
	ctx := context.Background()

	first, err := orch.Run(ctx, persons)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Stats.Submitted)
	require.Len(t, first.Records, 1)

	second, err := orch.Run(ctx, persons)
	require.NoError(t, err)
	assert.Zero(t, second.Stats.Submitted)
	assert.Equal(t, 2, second.Stats.JournalHits)
	assert.Equal(t, first.Records, second.Records)
	assert.NotEqual(t, first.RunID, second.RunID)

	assert.Equal(t, 2, mock.SubmissionCount(), "rerun must not resubmit")

	for _, runID := range []string{first.RunID, second.RunID} {
		n, err := store.NewRedis(rdb, "it", runID, time.Hour).Len(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	}
}

func TestRun_SharedPacingAcrossOrchestrators(t *testing.T) {
	rdb := setupRedis(t)
	clock := testutil.NewFakeClock(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	mock := testutil.NewMockFSSP(clock.Now)
	defer mock.Close()

	a := newRedisOrchestrator(t, rdb, mock, clock)
	b := newRedisOrchestrator(t, rdb, mock, clock)
	ctx := context.Background()

	_, err := a.Run(ctx, []fssp.Person{{LastName: "Smith", FirstName: "John"}})
	require.NoError(t, err)
	_, err = b.Run(ctx, []fssp.Person{{LastName: "Jones", FirstName: "Mary"}})
	require.NoError(t, err)

	times := mock.SubmissionTimes()
	require.Len(t, times, 4)
	for i := 1; i < len(times); i++ {
		assert.GreaterOrEqual(t, times[i].Sub(times[i-1]), 5*time.Second)
	}
}

package checkpoint_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infraredis "github.com/jonesrussell/north-cloud/problemsync/infrastructure/redis"
	"github.com/jonesrussell/north-cloud/problemsync/internal/checkpoint"
	"github.com/jonesrussell/north-cloud/problemsync/internal/domain"
)

var attemptTime = time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC)

func sampleEntry(id string, status domain.CheckpointStatus) domain.CheckpointEntry {
	return domain.CheckpointEntry{
		ItemID: id,
		Record: domain.ExtractedRecord{
			Item: domain.WorkItem{
				ID:         id,
				Title:      "Problem " + id,
				URL:        "https://leetcode.com/problems/p" + id + "/",
				Difficulty: domain.DifficultyMedium,
			},
			Description: "statement",
			Topics:      []string{"Array"},
			Related:     []domain.RelatedItem{{Title: "3Sum", URL: "https://leetcode.com/problems/3sum/"}},
			Missing:     []string{domain.FieldHints},
			ExtractedAt: attemptTime,
		},
		LastAttempt: attemptTime,
		Status:      status,
		Attempts:    1,
	}
}

func sampleState(id string) domain.PublishState {
	return domain.PublishState{
		ItemID:      id,
		DocumentID:  "page-" + id,
		ContentHash: "abc",
		TotalChunks: 3,
		NextChunk:   2,
		FailedChunk: 2,
		UpdatedAt:   attemptTime,
	}
}

// exerciseStore runs the behavior every Store implementation shares.
func exerciseStore(t *testing.T, store checkpoint.Store) {
	t.Helper()
	ctx := context.Background()

	got, err := store.Get(ctx, "1")
	require.NoError(t, err)
	assert.Nil(t, got, "absent entry")

	first := sampleEntry("1", domain.StatusFailed)
	require.NoError(t, store.Put(ctx, first))

	second := sampleEntry("1", domain.StatusSuccess)
	second.Attempts = 2
	require.NoError(t, store.Put(ctx, second))
	require.NoError(t, store.Put(ctx, sampleEntry("2", domain.StatusAccessRestricted)))

	got, err = store.Get(ctx, "1")
	require.NoError(t, err)
	if diff := cmp.Diff(&second, got); diff != "" {
		t.Errorf("entry mismatch (-want +got):\n%s", diff)
	}

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "1", list[0].ItemID)
	assert.Equal(t, domain.StatusAccessRestricted, list[1].Status)

	require.NoError(t, store.Delete(ctx, "2"))
	got, err = store.Get(ctx, "2")
	require.NoError(t, err)
	assert.Nil(t, got)

	state, err := store.LoadState(ctx, "1")
	require.NoError(t, err)
	assert.Nil(t, state)

	want := sampleState("1")
	require.NoError(t, store.SaveState(ctx, want))
	state, err = store.LoadState(ctx, "1")
	require.NoError(t, err)
	if diff := cmp.Diff(&want, state); diff != "" {
		t.Errorf("state mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, store.DeleteState(ctx, "1"))
	state, err = store.LoadState(ctx, "1")
	require.NoError(t, err)
	assert.Nil(t, state)

	require.NoError(t, store.Ping(ctx))
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	exerciseStore(t, checkpoint.NewMemoryStore())
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	store := checkpoint.NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entry := sampleEntry("1", domain.StatusSuccess)
			entry.Attempts = i
			_ = store.Put(ctx, entry)
			_, _ = store.Get(ctx, "1")
			_, _ = store.List(ctx)
		}()
	}
	wg.Wait()

	got, err := store.Get(ctx, "1")
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestSQLStore_SQLite(t *testing.T) {
	t.Parallel()

	store, err := checkpoint.OpenSQL(context.Background(), checkpoint.DriverSQLite, filepath.Join(t.TempDir(), "cp.db"))
	require.NoError(t, err)
	defer store.Close()

	exerciseStore(t, store)
}

func TestSQLStore_SurvivesReopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cp.db")
	want := sampleEntry("42", domain.StatusSuccess)

	store, err := checkpoint.OpenSQL(ctx, checkpoint.DriverSQLite, path)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, want))
	require.NoError(t, store.SaveState(ctx, sampleState("42")))
	require.NoError(t, store.Close())

	reopened, err := checkpoint.OpenSQL(ctx, checkpoint.DriverSQLite, path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "42")
	require.NoError(t, err)
	if diff := cmp.Diff(&want, got); diff != "" {
		t.Errorf("entry after reopen mismatch (-want +got):\n%s", diff)
	}

	state, err := reopened.LoadState(ctx, "42")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, 2, state.NextChunk)
}

func TestSQLStore_ErrorsWrapStoreUnavailable(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := checkpoint.NewSQLStore(sqlx.NewDb(db, "postgres"))
	ctx := context.Background()

	mock.ExpectQuery(`SELECT data FROM checkpoints WHERE item_id = \$1`).
		WithArgs("1").
		WillReturnError(sql.ErrConnDone)
	mock.ExpectExec(`INSERT INTO checkpoints`).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectQuery(`SELECT data FROM checkpoints ORDER BY item_id`).
		WillReturnError(sql.ErrConnDone)

	_, err = store.Get(ctx, "1")
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)

	err = store.Put(ctx, sampleEntry("1", domain.StatusSuccess))
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)

	_, err = store.List(ctx)
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_CorruptRowIsNotFatal(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := checkpoint.NewSQLStore(sqlx.NewDb(db, "postgres"))

	mock.ExpectQuery(`SELECT data FROM checkpoints WHERE item_id`).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow("{not json"))

	_, err = store.Get(context.Background(), "1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestRedisStore(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := checkpoint.NewRedisStore(client)
	defer store.Close()

	exerciseStore(t, store)

	require.NoError(t, store.Put(context.Background(), sampleEntry("7", domain.StatusSuccess)))
	assert.True(t, mr.Exists("checkpoint:entry:7"))
	assert.Zero(t, mr.TTL("checkpoint:entry:7"))
}

func TestRedisStore_Unavailable(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := checkpoint.NewRedisStore(client)
	defer store.Close()

	mr.Close()

	_, err := store.Get(context.Background(), "1")
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestOpen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	mem, err := checkpoint.Open(ctx, checkpoint.Config{Driver: checkpoint.DriverMemory})
	require.NoError(t, err)
	assert.IsType(t, &checkpoint.MemoryStore{}, mem)

	sqlite, err := checkpoint.Open(ctx, checkpoint.Config{
		Driver: checkpoint.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "open.db"),
	})
	require.NoError(t, err)
	assert.IsType(t, &checkpoint.SQLStore{}, sqlite)
	require.NoError(t, sqlite.Close())

	mr := miniredis.RunT(t)
	rs, err := checkpoint.Open(ctx, checkpoint.Config{
		Driver: checkpoint.DriverRedis,
		Redis:  infraredis.Config{Address: mr.Addr()},
	})
	require.NoError(t, err)
	assert.IsType(t, &checkpoint.RedisStore{}, rs)
	require.NoError(t, rs.Close())

	_, err = checkpoint.Open(ctx, checkpoint.Config{Driver: checkpoint.DriverRedis})
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)

	_, err = checkpoint.Open(ctx, checkpoint.Config{Driver: "mongo"})
	require.Error(t, err)
}

func TestConfig_SetDefaults(t *testing.T) {
	t.Parallel()

	var cfg checkpoint.Config
	cfg.SetDefaults()

	assert.Equal(t, checkpoint.DriverSQLite, cfg.Driver)
	assert.Equal(t, checkpoint.DefaultSQLiteDSN, cfg.DSN)
}

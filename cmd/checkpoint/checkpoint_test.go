package checkpoint_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cmdcheckpoint "github.com/jonesrussell/north-cloud/problemsync/cmd/checkpoint"
	"github.com/jonesrussell/north-cloud/problemsync/internal/checkpoint"
	"github.com/jonesrussell/north-cloud/problemsync/internal/domain"
)

func seed(t *testing.T) *checkpoint.MemoryStore {
	t.Helper()

	ctx := context.Background()
	s := checkpoint.NewMemoryStore()
	at := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, s.Put(ctx, domain.CheckpointEntry{
		ItemID:      "1",
		Record:      domain.ExtractedRecord{Item: domain.WorkItem{ID: "1", Title: "Two Sum"}, Topics: []string{"Array"}},
		Status:      domain.StatusSuccess,
		Attempts:    1,
		LastAttempt: at,
	}))
	require.NoError(t, s.Put(ctx, domain.CheckpointEntry{
		ItemID:      "2",
		Record:      domain.ExtractedRecord{Item: domain.WorkItem{ID: "2", Title: "Add Two Numbers"}},
		Status:      domain.StatusFailed,
		Attempts:    4,
		LastAttempt: at,
		Error:       "fetch: transient (status 503)",
	}))
	require.NoError(t, s.SaveState(ctx, domain.PublishState{
		ItemID:      "1",
		DocumentID:  "page-abc",
		ContentHash: "0123456789abcdef0123",
		TotalChunks: 2,
		NextChunk:   2,
		FailedChunk: domain.NoChunk,
		Complete:    true,
		UpdatedAt:   at,
	}))
	return s
}

func TestList(t *testing.T) {
	t.Parallel()

	s := seed(t)

	var buf bytes.Buffer
	require.NoError(t, cmdcheckpoint.List(context.Background(), s, "", &buf))
	out := buf.String()
	assert.Contains(t, out, "Two Sum")
	assert.Contains(t, out, "Add Two Numbers")
	assert.Contains(t, out, "status 503")

	buf.Reset()
	require.NoError(t, cmdcheckpoint.List(context.Background(), s, domain.StatusFailed, &buf))
	assert.NotContains(t, buf.String(), "Two Sum")
	assert.Contains(t, buf.String(), "Add Two Numbers")
}

func TestShow(t *testing.T) {
	t.Parallel()

	s := seed(t)

	var buf bytes.Buffer
	require.NoError(t, cmdcheckpoint.Show(context.Background(), s, "1", &buf))
	out := buf.String()
	assert.Contains(t, out, "1. Two Sum")
	assert.Contains(t, out, "page-abc")
	assert.Contains(t, out, "0123456789ab")
	assert.Contains(t, out, "2 / 2")

	err := cmdcheckpoint.Show(context.Background(), s, "404", &buf)
	require.ErrorIs(t, err, cmdcheckpoint.ErrNotFound)
}

func TestReset(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := seed(t)

	require.NoError(t, cmdcheckpoint.Reset(ctx, s, "1", true))
	state, err := s.LoadState(ctx, "1")
	require.NoError(t, err)
	assert.Nil(t, state)
	entry, err := s.Get(ctx, "1")
	require.NoError(t, err)
	assert.NotNil(t, entry)

	require.NoError(t, cmdcheckpoint.Reset(ctx, s, "1", false))
	entry, err = s.Get(ctx, "1")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

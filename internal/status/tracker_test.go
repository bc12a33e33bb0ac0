package status

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_Lifecycle(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	assert.Equal(t, SyncPhaseIdle, tr.Get().Phase)

	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	tr.MarkSyncing(start)
	got := tr.Get()
	assert.Equal(t, SyncPhaseSyncing, got.Phase)
	require.NotNil(t, got.LastAttempt)
	assert.Equal(t, start, *got.LastAttempt)

	tr.MarkFailed(errors.New("postgres unavailable"))
	tr.MarkFailed(errors.New("postgres unavailable"))
	got = tr.Get()
	assert.Equal(t, SyncPhaseFailed, got.Phase)
	assert.Equal(t, 2, got.AttemptCount)
	assert.Equal(t, "postgres unavailable", got.Message)

	end := start.Add(time.Second)
	tr.MarkComplete(end, start, CycleSummary{ChangedRows: 3, MoviesLoaded: 2})
	got = tr.Get()
	assert.Equal(t, SyncPhaseComplete, got.Phase)
	assert.Zero(t, got.AttemptCount)
	require.NotNil(t, got.Watermark)
	assert.Equal(t, start, *got.Watermark)
	require.NotNil(t, got.LastResult)
	assert.Equal(t, 2, got.LastResult.MoviesLoaded)

	tr.MarkNoUpdates(end.Add(time.Minute))
	got = tr.Get()
	assert.Equal(t, "No updates found", got.Message)
	assert.Equal(t, 2, got.LastResult.MoviesLoaded, "summary of the last productive cycle is kept")
}

func TestTracker_GetReturnsCopy(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	tr.MarkComplete(time.Now(), time.Now(), CycleSummary{MoviesLoaded: 1})

	got := tr.Get()
	got.LastResult.MoviesLoaded = 99

	assert.Equal(t, 1, tr.Get().LastResult.MoviesLoaded)
}

func TestTracker_SetWatermarkIgnoresZero(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	tr.SetWatermark(time.Time{})
	assert.Nil(t, tr.Get().Watermark)

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tr.SetWatermark(ts)
	assert.Equal(t, ts, *tr.Get().Watermark)
}

func TestTracker_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			tr.SetPending(int64(i))
		}()
		go func() {
			defer wg.Done()
			_ = tr.Get()
		}()
	}
	wg.Wait()
	assert.GreaterOrEqual(t, tr.Get().PendingIDs, int64(0))
}

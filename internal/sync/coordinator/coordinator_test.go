package coordinator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/pgsearch-sync/internal/extract"
	"github.com/stacklok/pgsearch-sync/internal/state"
	"github.com/stacklok/pgsearch-sync/internal/status"
	"github.com/stacklok/pgsearch-sync/internal/sync"
	syncmocks "github.com/stacklok/pgsearch-sync/internal/sync/mocks"
)

var testNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time {
	return testNow
}

func TestCoordinator_New(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	mockManager := syncmocks.NewMockManager(ctrl)

	c := New(mockManager, WithInterval(0)).(*defaultCoordinator)
	require.NotNil(t, c)
	assert.Equal(t, DefaultInterval, c.interval)
	assert.NotNil(t, c.tracker)

	c = New(mockManager, WithInterval(5*time.Second)).(*defaultCoordinator)
	assert.Equal(t, 5*time.Second, c.interval)
}

func TestCoordinator_Stop_BeforeStart(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	coordinator := New(syncmocks.NewMockManager(ctrl))

	// Stop should not panic if called before Start
	assert.NoError(t, coordinator.Stop())
}

func TestCoordinator_RunOnce(t *testing.T) {
	t.Parallel()

	watermark := testNow.Add(-time.Second)
	transient := errors.New("connection refused")

	tests := []struct {
		name         string
		result       *sync.Result
		err          error
		wantErr      error
		wantPhase    status.SyncPhase
		wantMessage  string
		wantAttempts int
		wantSummary  *status.CycleSummary
	}{
		{
			name: "successful cycle",
			result: &sync.Result{
				Watermark:    watermark,
				ChangedRows:  map[extract.Relation]int{extract.FilmWork: 3, extract.Person: 2},
				AffectedIDs:  4,
				Pages:        1,
				MoviesLoaded: 4,
				Duration:     2 * time.Second,
			},
			wantPhase:   status.SyncPhaseComplete,
			wantMessage: "Sync completed successfully",
			wantSummary: &status.CycleSummary{
				ChangedRows:  5,
				AffectedIDs:  4,
				Pages:        1,
				MoviesLoaded: 4,
				Duration:     "2s",
			},
		},
		{
			name:        "no updates",
			err:         extract.ErrNoUpdatesFound,
			wantPhase:   status.SyncPhaseComplete,
			wantMessage: "No updates found",
		},
		{
			name:         "failure",
			err:          &sync.Error{Stage: sync.StageDrain, Err: transient},
			wantErr:      transient,
			wantPhase:    status.SyncPhaseFailed,
			wantMessage:  "drain: connection refused",
			wantAttempts: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			mockManager := syncmocks.NewMockManager(ctrl)
			mockManager.EXPECT().RunCycle(gomock.Any()).Return(tt.result, tt.err)

			tracker := status.NewTracker()
			c := New(mockManager,
				WithTracker(tracker),
				WithClock(fixedClock),
				WithPendingCounter(func(context.Context) (int64, error) { return 7, nil }))

			err := c.RunOnce(context.Background())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}

			got := tracker.Get()
			assert.Equal(t, tt.wantPhase, got.Phase)
			assert.Equal(t, tt.wantMessage, got.Message)
			assert.Equal(t, tt.wantAttempts, got.AttemptCount)
			assert.Equal(t, tt.wantSummary, got.LastResult)
			assert.Equal(t, int64(7), got.PendingIDs)
			require.NotNil(t, got.LastAttempt)
			assert.Equal(t, testNow, *got.LastAttempt)
			if tt.result != nil {
				require.NotNil(t, got.Watermark)
				assert.Equal(t, watermark, *got.Watermark)
			}
		})
	}
}

func TestCoordinator_RunOnce_PendingCounterFailure(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	mockManager := syncmocks.NewMockManager(ctrl)
	mockManager.EXPECT().RunCycle(gomock.Any()).Return(nil, extract.ErrNoUpdatesFound)

	tracker := status.NewTracker()
	tracker.SetPending(3)
	c := New(mockManager,
		WithTracker(tracker),
		WithPendingCounter(func(context.Context) (int64, error) { return 0, errors.New("redis down") }))

	require.NoError(t, c.RunOnce(context.Background()))
	assert.Equal(t, int64(3), tracker.Get().PendingIDs)
}

func TestCoordinator_Start_RunsImmediatelyAndRepeats(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	mockManager := syncmocks.NewMockManager(ctrl)

	cycles := make(chan struct{}, 10)
	mockManager.EXPECT().RunCycle(gomock.Any()).
		DoAndReturn(func(context.Context) (*sync.Result, error) {
			cycles <- struct{}{}
			return nil, errors.New("elasticsearch unavailable")
		}).MinTimes(2)

	c := New(mockManager, WithInterval(10*time.Millisecond))

	errCh := make(chan error, 1)
	go func() { errCh <- c.Start(context.Background()) }()

	for range 2 {
		select {
		case <-cycles:
		case <-time.After(5 * time.Second):
			t.Fatal("cycle did not run")
		}
	}

	require.NoError(t, c.Stop())
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
}

func TestCoordinator_Start_FatalStoreError(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	mockManager := syncmocks.NewMockManager(ctrl)
	storeErr := &sync.Error{Stage: sync.StageAdvance, Err: fmt.Errorf("%w: disk full", state.ErrStore)}
	mockManager.EXPECT().RunCycle(gomock.Any()).Return(nil, storeErr)

	tracker := status.NewTracker()
	c := New(mockManager, WithTracker(tracker), WithInterval(time.Hour))

	err := c.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, state.ErrStore)
	assert.Equal(t, status.SyncPhaseFailed, tracker.Get().Phase)
}

func TestCoordinator_Start_ContextCancelled(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	mockManager := syncmocks.NewMockManager(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	mockManager.EXPECT().RunCycle(gomock.Any()).
		DoAndReturn(func(ctx context.Context) (*sync.Result, error) {
			cancel()
			<-ctx.Done()
			return nil, &sync.Error{Stage: sync.StageDrain, Err: ctx.Err()}
		})

	c := New(mockManager, WithInterval(time.Hour))
	assert.NoError(t, c.Start(ctx))
}

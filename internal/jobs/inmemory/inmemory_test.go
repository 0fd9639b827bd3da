package inmemory_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/rfm-segmentation/internal/domain"
	"github.com/dvloznov/rfm-segmentation/internal/jobs"
	"github.com/dvloznov/rfm-segmentation/internal/jobs/inmemory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewStore()

	want := time.Now()
	started := want
	job := &jobs.AnalysisJob{JobID: "a", SourceURI: "gs://b/o.csv", Status: jobs.JobStatusRunning, StartedAt: &started}
	require.NoError(t, store.SaveJob(ctx, job))

	// Mutating the caller's copy must not leak into the store.
	job.Status = jobs.JobStatusFailed
	*job.StartedAt = want.Add(time.Hour)

	got, err := store.GetJob(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusRunning, got.Status)
	assert.True(t, got.StartedAt.Equal(want))

	_, err = store.GetJob(ctx, "missing")
	var notFound *jobs.ErrJobNotFound
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "missing", notFound.JobID)

	assert.Error(t, store.SaveJob(ctx, &jobs.AnalysisJob{}))
}

func TestStore_ListJobs(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		status := jobs.JobStatusCompleted
		if i%2 == 1 {
			status = jobs.JobStatusFailed
		}
		require.NoError(t, store.SaveJob(ctx, &jobs.AnalysisJob{
			JobID:     fmt.Sprintf("job-%d", i),
			SourceURI: fmt.Sprintf("src-%d", i%2),
			Status:    status,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	ids := func(list []*jobs.AnalysisJob) []string {
		out := make([]string, len(list))
		for i, j := range list {
			out[i] = j.JobID
		}
		return out
	}

	tests := []struct {
		name   string
		filter jobs.JobFilter
		want   []string
	}{
		{"all newest first", jobs.JobFilter{}, []string{"job-4", "job-3", "job-2", "job-1", "job-0"}},
		{"by status", jobs.JobFilter{Status: jobs.JobStatusFailed}, []string{"job-3", "job-1"}},
		{"by source", jobs.JobFilter{SourceURI: "src-0"}, []string{"job-4", "job-2", "job-0"}},
		{"limit", jobs.JobFilter{Limit: 2}, []string{"job-4", "job-3"}},
		{"offset and limit", jobs.JobFilter{Offset: 1, Limit: 2}, []string{"job-3", "job-2"}},
		{"offset past end", jobs.JobFilter{Offset: 10}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListJobs(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestStore_UpdateJobStatus(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewStore()
	require.NoError(t, store.SaveJob(ctx, &jobs.AnalysisJob{JobID: "a", Status: jobs.JobStatusPending}))

	require.NoError(t, store.UpdateJobStatus(ctx, "a", jobs.JobStatusFailed, "boom"))
	got, err := store.GetJob(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)

	assert.Error(t, store.UpdateJobStatus(ctx, "missing", jobs.JobStatusFailed, ""))
}

func newTestQueue(t *testing.T, store jobs.JobStore, handler jobs.JobHandler) *inmemory.Queue {
	t.Helper()
	q := inmemory.NewQueueWithConfig(inmemory.QueueConfig{
		BufferSize:   10,
		Workers:      2,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	}, store)
	require.NoError(t, q.Start(context.Background(), handler))
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func waitForStatus(t *testing.T, store jobs.JobStore, jobID string, status jobs.JobStatus) *jobs.AnalysisJob {
	t.Helper()
	var last *jobs.AnalysisJob
	require.Eventually(t, func() bool {
		job, err := store.GetJob(context.Background(), jobID)
		if err != nil {
			return false
		}
		last = job
		return job.Status == status
	}, 2*time.Second, 5*time.Millisecond)
	return last
}

func TestQueue_CompletesJob(t *testing.T) {
	store := inmemory.NewStore()
	q := newTestQueue(t, store, func(ctx context.Context, job jobs.Job) error {
		j := job.(*jobs.AnalysisJob)
		j.CustomerCount = 42
		j.RunID = "run-1"
		return nil
	})

	job := &jobs.AnalysisJob{SourceURI: "data.csv"}
	require.NoError(t, q.PublishAnalysis(context.Background(), job))
	require.NotEmpty(t, job.JobID)

	got := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	assert.Equal(t, 42, got.CustomerCount)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, 2, got.MaxRetries)
	assert.NotNil(t, got.StartedAt)
	assert.NotNil(t, got.CompletedAt)
	assert.Empty(t, got.Error)
}

func TestQueue_RetriesTransientErrors(t *testing.T) {
	store := inmemory.NewStore()
	var calls int32
	q := newTestQueue(t, store, func(ctx context.Context, job jobs.Job) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("bigquery: backend error")
		}
		return nil
	})

	job := &jobs.AnalysisJob{SourceURI: "bq://p.d.t"}
	require.NoError(t, q.PublishAnalysis(context.Background(), job))

	got := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	assert.Equal(t, 2, got.RetryCount)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestQueue_RetryRunsOnFreshJob(t *testing.T) {
	store := inmemory.NewStore()
	var (
		mu   sync.Mutex
		seen []*jobs.AnalysisJob
	)
	q := newTestQueue(t, store, func(ctx context.Context, job jobs.Job) error {
		j := job.(*jobs.AnalysisJob)
		j.RunID = fmt.Sprintf("run-%d", j.RetryCount)

		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, j)
		if len(seen) == 1 {
			return errors.New("transient")
		}
		return nil
	})

	for i := 0; i < 5; i++ {
		job := &jobs.AnalysisJob{JobID: fmt.Sprintf("r-%d", i), SourceURI: "gs://b/o.csv"}
		require.NoError(t, q.PublishAnalysis(context.Background(), job))
	}

	for i := 0; i < 5; i++ {
		waitForStatus(t, store, fmt.Sprintf("r-%d", i), jobs.JobStatusCompleted)
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 6)
	retried := seen[0].JobID
	attempts := 0
	for _, j := range seen[1:] {
		if j.JobID == retried {
			attempts++
			assert.NotSame(t, seen[0], j)
			assert.Equal(t, 1, j.RetryCount)
			assert.Equal(t, "run-1", j.RunID)
		}
	}
	assert.Equal(t, 1, attempts)
}

func TestQueue_GivesUpAfterMaxRetries(t *testing.T) {
	store := inmemory.NewStore()
	var calls int32
	q := newTestQueue(t, store, func(ctx context.Context, job jobs.Job) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("storage unavailable")
	})

	job := &jobs.AnalysisJob{SourceURI: "gs://b/o.csv"}
	require.NoError(t, q.PublishAnalysis(context.Background(), job))

	got := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	assert.Equal(t, 2, got.RetryCount)
	assert.Equal(t, "storage unavailable", got.Error)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestQueue_DoesNotRetryTaxonomyErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"io", &domain.IOError{Source: "x.csv", Op: "open", Err: errors.New("no such file")}},
		{"format", &domain.FormatError{Line: 3, Err: errors.New("bad quote")}},
		{"schema", fmt.Errorf("pipeline step 3 (validate_schema) failed: %w", &domain.SchemaError{Missing: []string{"customer_id"}})},
		{"score", &domain.ScoreComputationError{Metric: domain.MetricRecency, Reason: "too few"}},
		{"permanent", &jobs.PermanentError{Err: errors.New("ExporterFor: empty output")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := inmemory.NewStore()
			var calls int32
			q := newTestQueue(t, store, func(ctx context.Context, job jobs.Job) error {
				atomic.AddInt32(&calls, 1)
				return tt.err
			})

			job := &jobs.AnalysisJob{SourceURI: "x.csv"}
			require.NoError(t, q.PublishAnalysis(context.Background(), job))

			got := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
			assert.Equal(t, 0, got.RetryCount)
			assert.Equal(t, tt.err.Error(), got.Error)
			assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
		})
	}
}

func TestQueue_RecoversHandlerPanic(t *testing.T) {
	store := inmemory.NewStore()
	q := inmemory.NewQueueWithConfig(inmemory.QueueConfig{Workers: 1, MaxRetries: 1, RetryBackoff: time.Millisecond}, store)
	require.NoError(t, q.Start(context.Background(), func(ctx context.Context, job jobs.Job) error {
		panic("nil table")
	}))
	defer q.Close()

	job := &jobs.AnalysisJob{JobID: "p", SourceURI: "x.csv"}
	require.NoError(t, q.PublishAnalysis(context.Background(), job))

	got := waitForStatus(t, store, "p", jobs.JobStatusFailed)
	assert.Contains(t, got.Error, "job handler panic: nil table")
}

func TestQueue_JobTimeout(t *testing.T) {
	store := inmemory.NewStore()
	q := inmemory.NewQueueWithConfig(inmemory.QueueConfig{Workers: 1, MaxRetries: 1, RetryBackoff: time.Millisecond, JobTimeout: 10 * time.Millisecond}, store)
	require.NoError(t, q.Start(context.Background(), func(ctx context.Context, job jobs.Job) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	defer q.Close()

	job := &jobs.AnalysisJob{JobID: "slow", SourceURI: "x.csv", MaxRetries: 1}
	require.NoError(t, q.PublishAnalysis(context.Background(), job))

	got := waitForStatus(t, store, "slow", jobs.JobStatusFailed)
	assert.Equal(t, context.DeadlineExceeded.Error(), got.Error)
	assert.Equal(t, 1, got.RetryCount)
}

func TestQueue_ClosedQueueRejectsJobs(t *testing.T) {
	q := inmemory.NewQueue(1, nil)
	require.NoError(t, q.Stop(context.Background()))
	require.NoError(t, q.Stop(context.Background()))

	err := q.PublishAnalysis(context.Background(), &jobs.AnalysisJob{SourceURI: "x.csv"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue is closed")
	assert.Error(t, q.Start(context.Background(), func(ctx context.Context, job jobs.Job) error { return nil }))
}

package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/rfm-segmentation/internal/jobs"
	"github.com/dvloznov/rfm-segmentation/internal/logger"
	"github.com/google/uuid"
)

// QueueConfig tunes an in-memory queue. Zero fields take the defaults below.
type QueueConfig struct {
	BufferSize   int           // default 100
	Workers      int           // default 2
	MaxRetries   int           // default 3, applied to jobs that carry none
	RetryBackoff time.Duration // default 1s, multiplied by the retry count
	JobTimeout   time.Duration // 0 means no per-job timeout
}

func (c QueueConfig) withDefaults() QueueConfig {
	if c.BufferSize <= 0 {
		c.BufferSize = 100
	}
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = time.Second
	}
	return c
}

// Queue is an in-memory implementation of job publisher and consumer.
// It uses Go channels for job distribution and is safe for concurrent use.
// This implementation is suitable for single-instance deployments and testing.
type Queue struct {
	cfg       QueueConfig
	jobChan   chan *jobs.AnalysisJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	closed    bool
}

// NewQueue creates a new in-memory job queue with default settings.
// bufferSize determines how many jobs can be queued before PublishAnalysis blocks.
func NewQueue(bufferSize int, store jobs.JobStore) *Queue {
	return NewQueueWithConfig(QueueConfig{BufferSize: bufferSize}, store)
}

// NewQueueWithConfig creates a new in-memory job queue.
func NewQueueWithConfig(cfg QueueConfig, store jobs.JobStore) *Queue {
	cfg = cfg.withDefaults()
	return &Queue{
		cfg:       cfg,
		jobChan:   make(chan *jobs.AnalysisJob, cfg.BufferSize),
		closeChan: make(chan struct{}),
		store:     store,
	}
}

// PublishAnalysis implements the Publisher interface.
// It enqueues an analysis job for asynchronous processing.
func (q *Queue) PublishAnalysis(ctx context.Context, job *jobs.AnalysisJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("queue is closed")
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = q.cfg.MaxRetries
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
	}

	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return fmt.Errorf("queue is closed")
	}
}

// Start implements the Consumer interface.
// It starts cfg.Workers goroutines that call handler for each job.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return fmt.Errorf("queue is closed")
	}
	q.mu.RUnlock()

	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}
	return nil
}

// worker processes jobs from the queue.
func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}
			q.processJob(ctx, job, handler)
		}
	}
}

// processJob executes a single job with retry logic. Taxonomy and
// permanent errors are final; anything else is retried with a linearly
// growing delay.
func (q *Queue) processJob(ctx context.Context, job *jobs.AnalysisJob, handler jobs.JobHandler) {
	log := logger.WithFields(logger.FromContext(ctx), map[string]interface{}{
		"job_id": job.JobID,
		"source": job.SourceURI,
	})

	job.Status = jobs.JobStatusRunning
	now := time.Now()
	job.StartedAt = &now
	job.Error = ""
	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}

	jobCtx := logger.WithContext(ctx, log)
	if q.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(jobCtx, q.cfg.JobTimeout)
		defer cancel()
	}

	err := q.runHandler(jobCtx, job, handler)

	completedAt := time.Now()
	job.CompletedAt = &completedAt

	switch {
	case err == nil:
		job.Status = jobs.JobStatusCompleted
		log.Info().Int("customers", job.CustomerCount).Msg("Job completed")

	case !jobs.IsRetryable(err) || job.RetryCount >= job.MaxRetries:
		job.Status = jobs.JobStatusFailed
		job.Error = err.Error()
		log.Error().Err(err).Int("retry_count", job.RetryCount).Msg("Job failed")

	default:
		job.Error = err.Error()
		job.RetryCount++
		job.Status = jobs.JobStatusRetrying
		backoff := time.Duration(job.RetryCount) * q.cfg.RetryBackoff
		log.Warn().Err(err).Int("retry_count", job.RetryCount).Dur("backoff", backoff).Msg("Job failed, retrying")

		if q.store != nil {
			_ = q.store.SaveJob(ctx, job)
		}

		// The timer owns next; job stays with this worker.
		next := *job
		next.Status = jobs.JobStatusPending
		next.StartedAt = nil
		next.CompletedAt = nil
		time.AfterFunc(backoff, func() {
			if err := q.PublishAnalysis(ctx, &next); err != nil {
				next.Status = jobs.JobStatusFailed
				next.Error = fmt.Sprintf("re-enqueue failed: %v", err)
				if q.store != nil {
					_ = q.store.SaveJob(context.Background(), &next)
				}
			}
		})
		return
	}

	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}
}

// runHandler calls handler, turning a panic into an error.
func (q *Queue) runHandler(ctx context.Context, job *jobs.AnalysisJob, handler jobs.JobHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job handler panic: %v", r)
		}
	}()
	return handler(ctx, job)
}

// Stop implements the Consumer interface.
// It stops the queue and waits for all in-flight jobs to complete.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)

package features

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"entrevia/internal/service"
)

type PrewarmJob struct {
	Text       string
	Language   string
	Voice      string
	EnqueuedAt time.Time
}

// PrewarmPool renders question audio into the TTS cache in the background so
// that plan questions play instantly when the interview reaches them.
type PrewarmPool struct {
	jobQueue    chan PrewarmJob
	workerCount int
	jobTimeout  time.Duration
	synth       *service.Synthesizer
	logger      *zap.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	// Metrics
	totalJobsEnqueued  int64
	totalJobsProcessed int64
	totalJobsDropped   int64
	activeWorkers      int64
}

func NewPrewarmPool(size, queueCapacity, jobTimeoutSeconds int, synth *service.Synthesizer, logger *zap.Logger) *PrewarmPool {
	ctx, cancel := context.WithCancel(context.Background())
	return &PrewarmPool{
		jobQueue:    make(chan PrewarmJob, queueCapacity),
		workerCount: size,
		jobTimeout:  time.Duration(jobTimeoutSeconds) * time.Second,
		synth:       synth,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (wp *PrewarmPool) Start() {
	wp.logger.Info("Starting tts prewarm pool",
		zap.Int("workerCount", wp.workerCount),
		zap.Int("queueCapacity", cap(wp.jobQueue)))

	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

func (wp *PrewarmPool) Stop() {
	wp.cancel()
	close(wp.jobQueue)
	wp.wg.Wait()
	wp.logger.Info("Prewarm pool stopped", zap.Any("metrics", wp.GetMetrics()))
}

func (wp *PrewarmPool) worker(workerID int) {
	defer wp.wg.Done()
	atomic.AddInt64(&wp.activeWorkers, 1)
	defer atomic.AddInt64(&wp.activeWorkers, -1)

	for {
		select {
		case job, ok := <-wp.jobQueue:
			if !ok {
				wp.logger.Info("Prewarm worker stopping - job queue closed",
					zap.Int("workerID", workerID))
				return
			}

			ctx, cancel := context.WithTimeout(wp.ctx, wp.jobTimeout)
			startTime := time.Now()
			if err := wp.synth.Prewarm(ctx, job.Text, job.Language, job.Voice); err != nil {
				wp.logger.Warn("Prewarm job failed",
					zap.Int("workerID", workerID),
					zap.Error(err))
			}
			cancel()

			atomic.AddInt64(&wp.totalJobsProcessed, 1)
			wp.logger.Debug("Prewarm worker completed job",
				zap.Int("workerID", workerID),
				zap.Duration("processingTime", time.Since(startTime)),
				zap.Duration("totalTime", time.Since(job.EnqueuedAt)))

		case <-wp.ctx.Done():
			wp.logger.Info("Prewarm worker stopping - context cancelled",
				zap.Int("workerID", workerID))
			return
		}
	}
}

// Enqueue schedules background synthesis for a batch of question prompts.
// The queue never blocks plan generation; overflow jobs are dropped.
func (wp *PrewarmPool) Enqueue(texts []string, language, voice string) {
	for _, text := range texts {
		job := PrewarmJob{Text: text, Language: language, Voice: voice, EnqueuedAt: time.Now()}
		select {
		case wp.jobQueue <- job:
			atomic.AddInt64(&wp.totalJobsEnqueued, 1)
		default:
			atomic.AddInt64(&wp.totalJobsDropped, 1)
			wp.logger.Warn("Prewarm queue is full, dropping job",
				zap.Int("queueSize", len(wp.jobQueue)),
				zap.Int("queueCapacity", cap(wp.jobQueue)),
				zap.Int64("activeWorkers", atomic.LoadInt64(&wp.activeWorkers)))
		}
	}
}

// GetMetrics returns worker pool metrics
func (wp *PrewarmPool) GetMetrics() map[string]interface{} {
	return map[string]interface{}{
		"total_jobs_enqueued":  atomic.LoadInt64(&wp.totalJobsEnqueued),
		"total_jobs_processed": atomic.LoadInt64(&wp.totalJobsProcessed),
		"total_jobs_dropped":   atomic.LoadInt64(&wp.totalJobsDropped),
		"active_workers":       atomic.LoadInt64(&wp.activeWorkers),
		"queue_size":           len(wp.jobQueue),
		"queue_capacity":       cap(wp.jobQueue),
	}
}

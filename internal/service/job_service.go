package service

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/threaded-comments-api/internal/models"
	"github.com/threaded-comments-api/internal/repository"
)

const (
	jobPollInterval = 2 * time.Second
	jobErrorPreview = 100
)

// ImportProcessor runs one claimed import job
type ImportProcessor interface {
	ProcessImport(ctx context.Context, job *models.Job) error
}

// jobService is the concrete implementation of JobService
type jobService struct {
	jobRepo   repository.JobRepository
	processor ImportProcessor
	interval  time.Duration
	log       zerolog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	running   bool
	mu        sync.Mutex
	// sem bounds the number of jobs processed at once
	sem chan struct{}
}

// newJobService creates a job service whose worker pool is sized for I/O-bound imports
func newJobService(jobRepo repository.JobRepository, processor ImportProcessor, log zerolog.Logger) *jobService {
	maxWorkers := runtime.NumCPU() * 4
	if maxWorkers < 4 {
		maxWorkers = 4
	}
	if maxWorkers > 32 {
		maxWorkers = 32
	}

	log.Info().Int("max_workers", maxWorkers).Msg("Initializing import worker pool")

	return &jobService{
		jobRepo:   jobRepo,
		processor: processor,
		interval:  jobPollInterval,
		log:       log.With().Str("service", "job").Logger(),
		sem:       make(chan struct{}, maxWorkers),
	}
}

// StartProcessor polls for pending jobs until ctx is cancelled or StopProcessor is called
func (s *jobService) StartProcessor(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.log.Info().Dur("interval", s.interval).Msg("Job processor started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.log.Info().Msg("Job processor stopping")
			return
		case <-ticker.C:
			s.processPendingJobs()
		}
	}
}

// StopProcessor cancels the poll loop and waits for running jobs
func (s *jobService) StopProcessor() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.cancel()
	s.wg.Wait()
	s.running = false
	s.log.Info().Msg("Job processor stopped")
}

func (s *jobService) processPendingJobs() {
	jobs, err := s.jobRepo.GetPendingJobs(s.ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to get pending jobs")
		return
	}

	for _, job := range jobs {
		// Blocks while every worker is busy
		select {
		case s.sem <- struct{}{}:
		case <-s.ctx.Done():
			return
		}

		marked, err := s.jobRepo.MarkJobAsProcessing(s.ctx, job.ID)
		if err != nil || !marked {
			<-s.sem
			continue // claimed elsewhere
		}

		s.wg.Add(1)
		go func(j *models.Job) {
			defer s.wg.Done()
			defer func() { <-s.sem }()

			defer func() {
				if r := recover(); r != nil {
					s.log.Error().
						Interface("panic", r).
						Str("job_id", j.ID).
						Msg("Job processing panicked - recovered")
					j.Status = models.JobStatusFailed
					if err := s.jobRepo.Update(context.Background(), j); err != nil {
						s.log.Error().Err(err).Str("job_id", j.ID).Msg("Failed to mark job as failed")
					}
				}
			}()
			s.processJob(j)
		}(job)
	}
}

func (s *jobService) processJob(job *models.Job) {
	select {
	case <-s.ctx.Done():
		s.log.Warn().Str("job_id", job.ID).Msg("Job processing cancelled due to shutdown")
		return
	default:
	}

	s.log.Info().Str("job_id", job.ID).Str("type", string(job.Type)).Msg("Processing job")

	switch job.Type {
	case models.JobTypeImport:
		if err := s.processor.ProcessImport(s.ctx, job); err != nil {
			s.log.Error().Err(err).Str("job_id", job.ID).Msg("Import processing failed")
		}
	default:
		s.log.Warn().Str("job_id", job.ID).Str("type", string(job.Type)).Msg("Unknown job type skipped")
	}
}

// GetJob returns a job with its first validation errors
func (s *jobService) GetJob(ctx context.Context, caller Identity, id string) (*models.JobResponse, error) {
	if !caller.IsAdmin() {
		return nil, ErrUnauthorized
	}

	job, err := s.jobRepo.GetByID(ctx, id)
	if err != nil {
		return nil, upstream("find job", err)
	}
	if job == nil {
		return nil, ErrNotFound
	}

	errors, err := s.jobRepo.GetErrors(ctx, id, jobErrorPreview)
	if err != nil {
		s.log.Error().Err(err).Str("job_id", id).Msg("Failed to get job errors")
	}

	return &models.JobResponse{
		Job:        *job,
		Errors:     errors,
		ErrorCount: job.FailedCount,
	}, nil
}

// GetJobByIdempotencyKey returns the job created with key, nil when none was
func (s *jobService) GetJobByIdempotencyKey(ctx context.Context, key string) (*models.Job, error) {
	job, err := s.jobRepo.GetByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, upstream("find job", err)
	}
	return job, nil
}

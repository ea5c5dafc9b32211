package service

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/threaded-comments-api/internal/config"
	"github.com/threaded-comments-api/internal/models"
	"github.com/threaded-comments-api/internal/repository"
	"github.com/threaded-comments-api/internal/validation"
)

// errorFlushThreshold bounds the rejected rows held in memory before they
// are written to job_errors
const errorFlushThreshold = 1000

// dataService is the concrete implementation of DataService
type dataService struct {
	repos *repository.Repositories
	cfg   config.ImportConfig
	now   func() time.Time
	log   zerolog.Logger
}

func newDataService(repos *repository.Repositories, deps Dependencies, cfg config.ImportConfig, log zerolog.Logger) *dataService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	return &dataService{
		repos: repos,
		cfg:   cfg,
		now:   deps.clock(),
		log:   log.With().Str("service", "data").Logger(),
	}
}

// Export streams every table as a Waline backup document
func (s *dataService) Export(ctx context.Context, caller Identity, w io.Writer) error {
	if !caller.IsAdmin() {
		return ErrUnauthorized
	}

	bw := bufio.NewWriter(w)
	header, err := json.Marshal(models.WalineTables)
	if err != nil {
		return err
	}
	fmt.Fprintf(bw, `{"type":"waline","version":1,"time":%d,"tables":%s,"data":{`, s.now().UnixMilli(), header)

	counts := make(map[string]int, len(models.WalineTables))
	section := func(name string, first bool, stream func(emit func(v interface{}) error) error) error {
		if !first {
			bw.WriteByte(',')
		}
		fmt.Fprintf(bw, "%q:[", name)
		n := 0
		err := stream(func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			if n > 0 {
				bw.WriteByte(',')
			}
			bw.Write(data)
			n++
			return nil
		})
		bw.WriteByte(']')
		counts[name] = n
		return err
	}

	err = section(models.TableComment, true, func(emit func(v interface{}) error) error {
		return s.repos.Comment.StreamAll(ctx, func(c *models.Comment) error {
			return emit(models.ToWalineComment(c))
		})
	})
	if err != nil {
		return upstream("export comments", err)
	}
	err = section(models.TableCounter, false, func(emit func(v interface{}) error) error {
		return s.repos.Counter.StreamAll(ctx, func(c *models.Counter) error {
			return emit(models.ToWalineCounter(c))
		})
	})
	if err != nil {
		return upstream("export counters", err)
	}
	err = section(models.TableUsers, false, func(emit func(v interface{}) error) error {
		return s.repos.User.StreamAll(ctx, func(u *models.User) error {
			return emit(models.ToWalineUser(u))
		})
	})
	if err != nil {
		return upstream("export users", err)
	}

	bw.WriteString("}}")
	if err := bw.Flush(); err != nil {
		return err
	}

	s.log.Info().
		Int("comments", counts[models.TableComment]).
		Int("counters", counts[models.TableCounter]).
		Int("users", counts[models.TableUsers]).
		Msg("Export completed")
	return nil
}

// DeleteTable empties one table. Users is accepted and left untouched so the
// administrator keeps access.
func (s *dataService) DeleteTable(ctx context.Context, caller Identity, table string) error {
	if !caller.IsAdmin() {
		return ErrUnauthorized
	}

	var err error
	switch table {
	case models.TableComment:
		err = s.repos.Comment.DeleteAll(ctx)
	case models.TableCounter:
		err = s.repos.Counter.DeleteAll(ctx)
	case models.TableUsers:
		s.log.Info().Msg("Users table kept on delete request")
		return nil
	default:
		return validationf("unknown table %q", table)
	}
	if err != nil {
		return upstream("delete "+table, err)
	}

	s.log.Warn().Str("table", table).Msg("Table deleted")
	return nil
}

// CreateImportJob records an uploaded export document for background import
func (s *dataService) CreateImportJob(ctx context.Context, caller Identity, req *models.ImportRequest, filePath string) (*models.Job, error) {
	if !caller.IsAdmin() {
		return nil, ErrUnauthorized
	}

	job := &models.Job{
		ID:             uuid.New().String(),
		Type:           models.JobTypeImport,
		Resource:       req.Resource,
		Status:         models.JobStatusPending,
		IdempotencyKey: req.IdempotencyKey,
		FilePath:       filePath,
		CreatedAt:      s.now(),
	}

	if err := s.repos.Job.Create(ctx, job); err != nil {
		return nil, upstream("create job", err)
	}

	s.log.Info().
		Str("job_id", job.ID).
		Str("resource", job.Resource).
		Str("file", filePath).
		Msg("Import job created")

	return job, nil
}

// ProcessImport loads the job's document, inserting every valid row and
// recording the rest as job errors
func (s *dataService) ProcessImport(ctx context.Context, job *models.Job) error {
	startTime := time.Now()
	job.Status = models.JobStatusProcessing
	if job.StartedAt == nil {
		job.StartedAt = &startTime
	}
	if err := s.repos.Job.Update(ctx, job); err != nil {
		s.log.Error().Err(err).Str("job_id", job.ID).Msg("Failed to mark job as processing")
	}

	s.log.Info().
		Str("job_id", job.ID).
		Str("resource", job.Resource).
		Msg("Starting import processing")

	var err error
	switch job.Resource {
	case models.ResourceWaline:
		err = s.importWaline(ctx, job)
	default:
		err = fmt.Errorf("unknown resource type: %s", job.Resource)
	}

	duration := time.Since(startTime)
	job.DurationMs = duration.Milliseconds()
	if job.ProcessedCount > 0 && duration.Seconds() > 0 {
		job.RowsPerSec = float64(job.ProcessedCount) / duration.Seconds()
	}
	completedAt := time.Now()
	job.CompletedAt = &completedAt

	var errorRate float64
	if job.TotalRecords > 0 {
		errorRate = float64(job.FailedCount) / float64(job.TotalRecords) * 100
	}

	if err != nil {
		job.Status = models.JobStatusFailed
		s.log.Error().Err(err).Str("job_id", job.ID).Msg("Import failed")
	} else {
		job.Status = models.JobStatusCompleted
		s.log.Info().
			Str("job_id", job.ID).
			Int("total", job.TotalRecords).
			Int("successful", job.SuccessfulCount).
			Int("failed", job.FailedCount).
			Float64("error_rate_pct", errorRate).
			Int64("duration_ms", job.DurationMs).
			Float64("rows_per_sec", job.RowsPerSec).
			Msg("Import completed")
	}

	if uerr := s.repos.Job.Update(ctx, job); uerr != nil {
		s.log.Error().Err(uerr).Str("job_id", job.ID).Msg("Failed to save job result")
	}
	return err
}

// importRun carries the state of one document import
type importRun struct {
	s         *dataService
	job       *models.Job
	validator *validation.Validator
	errors    []models.ValidationError
	userIDs   map[int64]int64 // exported objectId to stored id
}

func (s *dataService) importWaline(ctx context.Context, job *models.Job) error {
	file, err := os.Open(job.FilePath)
	if err != nil {
		return err
	}
	defer file.Close()

	var doc models.WalineExport
	if err := json.NewDecoder(bufio.NewReader(file)).Decode(&doc); err != nil {
		return fmt.Errorf("invalid export document: %w", err)
	}

	job.TotalRecords = len(doc.Data.Users) + len(doc.Data.Comment) + len(doc.Data.Counter)

	run := &importRun{
		s:         s,
		job:       job,
		validator: validation.NewValidator(),
		userIDs:   make(map[int64]int64),
	}

	// Users first so comment user_id references can be remapped
	if err := run.users(ctx, doc.Data.Users); err != nil {
		return err
	}

	ids := make([]int64, 0, len(doc.Data.Comment))
	for _, c := range doc.Data.Comment {
		ids = append(ids, c.ObjectID)
	}
	run.validator.SetCommentIDs(ids)

	if err := run.comments(ctx, doc.Data.Comment); err != nil {
		return err
	}
	if err := run.counters(ctx, doc.Data.Counter); err != nil {
		return err
	}

	run.flush(ctx)
	return nil
}

func (r *importRun) users(ctx context.Context, rows []models.WalineUser) error {
	now := r.s.now()
	for i := range rows {
		if err := checkCancelled(ctx, i); err != nil {
			return err
		}
		row := &rows[i]
		r.job.ProcessedCount++

		if errs := r.validator.ValidateUser(row); len(errs) > 0 {
			r.reject(ctx, models.TableUsers, i+1, errs)
			continue
		}
		r.validator.AddUser(row)

		u := row.ToUser(now)
		if err := r.s.repos.User.Upsert(ctx, u); err != nil {
			r.s.log.Error().Err(err).Str("email", u.Email).Msg("User upsert failed")
			r.job.FailedCount++
			continue
		}
		r.userIDs[row.ObjectID] = u.ID
		r.job.SuccessfulCount++
	}
	return nil
}

func (r *importRun) comments(ctx context.Context, rows []models.WalineComment) error {
	now := r.s.now()
	batch := make([]*models.Comment, 0, r.s.cfg.BatchSize)

	for i := range rows {
		if err := checkCancelled(ctx, i); err != nil {
			return err
		}
		row := &rows[i]

		if errs := r.validator.ValidateComment(row); len(errs) > 0 {
			r.job.ProcessedCount++
			r.reject(ctx, models.TableComment, i+1, errs)
			continue
		}
		r.validator.AddCommentID(row.ObjectID)

		c := row.ToComment(now)
		if c.UserID != nil {
			if id, ok := r.userIDs[*c.UserID]; ok {
				c.UserID = &id
			}
		}
		batch = append(batch, c)

		if len(batch) >= r.s.cfg.BatchSize {
			r.insertComments(ctx, batch)
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		r.insertComments(ctx, batch)
	}
	return nil
}

func (r *importRun) insertComments(ctx context.Context, batch []*models.Comment) {
	inserted, err := r.s.repos.Comment.BatchInsert(ctx, batch)
	r.record(err, len(batch), inserted)
}

func (r *importRun) counters(ctx context.Context, rows []models.WalineCounter) error {
	now := r.s.now()
	batch := make([]*models.Counter, 0, r.s.cfg.BatchSize)

	for i := range rows {
		if err := checkCancelled(ctx, i); err != nil {
			return err
		}
		row := &rows[i]

		if errs := r.validator.ValidateCounter(row); len(errs) > 0 {
			r.job.ProcessedCount++
			r.reject(ctx, models.TableCounter, i+1, errs)
			continue
		}
		r.validator.AddCounterID(row.ObjectID)
		batch = append(batch, row.ToCounter(now))

		if len(batch) >= r.s.cfg.BatchSize {
			inserted, err := r.s.repos.Counter.BatchInsert(ctx, batch)
			r.record(err, len(batch), inserted)
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		inserted, err := r.s.repos.Counter.BatchInsert(ctx, batch)
		r.record(err, len(batch), inserted)
	}
	return nil
}

// record books the outcome of one batch insert
func (r *importRun) record(err error, size, inserted int) {
	if err != nil {
		r.s.log.Error().Err(err).Int("batch_size", size).Msg("Batch insert failed")
		r.job.FailedCount += size
	} else {
		r.job.SuccessfulCount += inserted
		r.job.FailedCount += size - inserted
	}
	r.job.ProcessedCount += size

	r.s.log.Debug().
		Str("job_id", r.job.ID).
		Int("processed", r.job.ProcessedCount).
		Msg("Batch processed")
}

func (r *importRun) reject(ctx context.Context, table string, line int, errs []validation.ValidationError) {
	r.job.FailedCount++
	for _, e := range errs {
		r.errors = append(r.errors, models.ValidationError{
			Table:   table,
			Line:    line,
			Field:   e.Field,
			Message: e.Message,
			Value:   e.Value,
		})
	}
	if len(r.errors) >= errorFlushThreshold {
		r.flush(ctx)
	}
}

func (r *importRun) flush(ctx context.Context) {
	if len(r.errors) == 0 {
		return
	}
	if err := r.s.repos.Job.AddErrors(ctx, r.job.ID, r.errors); err != nil {
		r.s.log.Error().Err(err).Int("count", len(r.errors)).Msg("Failed to flush validation errors")
	}
	r.errors = r.errors[:0]
}

func checkCancelled(ctx context.Context, i int) error {
	if i%10000 != 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

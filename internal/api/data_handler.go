package api

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/threaded-comments-api/internal/config"
	"github.com/threaded-comments-api/internal/models"
	"github.com/threaded-comments-api/internal/service"
)

// DataHandler handles the backup endpoints under /api/db
type DataHandler struct {
	services *service.Services
	cfg      *config.Config
	log      zerolog.Logger
}

// NewDataHandler creates a new DataHandler
func NewDataHandler(services *service.Services, cfg *config.Config, log zerolog.Logger) *DataHandler {
	return &DataHandler{
		services: services,
		cfg:      cfg,
		log:      log.With().Str("handler", "data").Logger(),
	}
}

// Export handles GET /api/db
// Streams the Waline document directly to the response
func (h *DataHandler) Export(c *gin.Context) {
	caller := identityFrom(c)
	if !caller.IsAdmin() {
		fail(c, h.log, service.ErrUnauthorized)
		return
	}

	filename := fmt.Sprintf("waline_%s.json", time.Now().Format("20060102_150405"))
	c.Header("Content-Type", "application/json")
	c.Header("Content-Disposition", "attachment; filename="+filename)

	h.log.Info().Int64("user_id", caller.User.ID).Msg("Starting streaming export")

	if err := h.services.Data.Export(c.Request.Context(), caller, c.Writer); err != nil {
		// Can't return an envelope after streaming has started
		h.log.Error().Err(err).Msg("Export failed")
	}
}

// CreateImport handles POST /api/db
// Accepts a multipart upload of a Waline export file
func (h *DataHandler) CreateImport(c *gin.Context) {
	ctx := c.Request.Context()
	caller := identityFrom(c)
	if !caller.IsAdmin() {
		fail(c, h.log, service.ErrUnauthorized)
		return
	}

	// Get idempotency key from header
	idempotencyKey := c.GetHeader("Idempotency-Key")

	// Check for existing job with same idempotency key
	if idempotencyKey != "" {
		existingJob, err := h.services.Job.GetJobByIdempotencyKey(ctx, idempotencyKey)
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to check idempotency key")
		}
		if existingJob != nil {
			h.log.Info().Str("job_id", existingJob.ID).Msg("Returning existing job for idempotency key")
			respond(c, existingJob)
			return
		}
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		badRequest(c, "file upload is required")
		return
	}
	defer file.Close()

	if header.Size > h.cfg.Import.MaxUploadSize {
		badRequest(c, fmt.Sprintf("file too large, max size is %d MB", h.cfg.Import.MaxUploadSize/(1024*1024)))
		return
	}

	filePath, err := h.save(file)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	req := &models.ImportRequest{
		Resource:       models.ResourceWaline,
		IdempotencyKey: idempotencyKey,
	}

	job, err := h.services.Data.CreateImportJob(ctx, caller, req, filePath)
	if err != nil {
		os.Remove(filePath)
		fail(c, h.log, err)
		return
	}

	h.log.Info().
		Str("job_id", job.ID).
		Str("file", header.Filename).
		Int64("size_bytes", header.Size).
		Msg("Import job queued")

	respond(c, gin.H{
		"job_id":  job.ID,
		"status":  job.Status,
		"message": "Import job created and queued for processing",
	})
}

// save copies the upload into the upload directory under a fresh name
func (h *DataHandler) save(src io.Reader) (string, error) {
	uploadDir := h.cfg.Import.UploadDir
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	filePath := filepath.Join(uploadDir, fmt.Sprintf("waline_%s.json", uuid.New().String()[:8]))
	dst, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(filePath)
		return "", fmt.Errorf("failed to copy upload: %w", err)
	}
	return filePath, nil
}

// GetImportStatus handles GET /api/db/jobs/:job_id
func (h *DataHandler) GetImportStatus(c *gin.Context) {
	jobID := c.Param("job_id")

	job, err := h.services.Job.GetJob(c.Request.Context(), identityFrom(c), jobID)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, job)
}

// DeleteTable handles DELETE /api/db?table=
func (h *DataHandler) DeleteTable(c *gin.Context) {
	table := c.Query("table")
	if table == "" {
		badRequest(c, "table is required")
		return
	}

	if err := h.services.Data.DeleteTable(c.Request.Context(), identityFrom(c), table); err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, nil)
}

package service_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/threaded-comments-api/internal/models"
	"github.com/threaded-comments-api/internal/service"
)

const importDocument = `{
  "type": "waline",
  "version": 1,
  "time": 1709294400000,
  "tables": ["Comment", "Counter", "Users"],
  "data": {
    "Comment": [
      {"objectId": 100, "url": "/a", "comment": "hi", "status": "approved", "nick": "imp", "mail": "imp@example.com", "user_id": 50,
       "insertedAt": "2023-01-01T00:00:00Z", "createdAt": "2023-01-01T00:00:00Z", "updatedAt": "2023-01-02T00:00:00Z"},
      {"objectId": 101, "url": "/a", "comment": "re", "status": "approved", "pid": 100, "rid": 100},
      {"objectId": 102, "url": "", "comment": "x", "status": "approved"},
      {"objectId": 103, "url": "/a", "comment": "y", "status": "deleted"},
      {"objectId": 104, "url": "/a", "comment": "z", "status": "waiting", "user_id": 51}
    ],
    "Counter": [
      {"objectId": 1, "url": "/a", "time": 3, "reaction0": 2},
      {"objectId": 2, "url": "", "time": 1}
    ],
    "Users": [
      {"objectId": 50, "email": "imp@example.com", "display_name": "Imported", "password": "hash", "type": "guest"},
      {"objectId": 51, "email": "bad", "type": "guest"},
      {"objectId": 52, "email": "guest@example.com", "display_name": "Renamed", "type": "administrator"}
    ]
  }
}`

func writeImportFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "backup.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write import file: %v", err)
	}
	return path
}

func TestExport_WalineDocument(t *testing.T) {
	h := newHarness(t)
	root := h.seedComment(1, nil, models.StatusApproved, "ann", 0)
	h.seedComment(2, int64p(root.ID), models.StatusSpam, "bot", time.Minute)

	var buf bytes.Buffer
	if err := h.services.Data.Export(ctx, h.admin, &buf); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	var doc models.WalineExport
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("Export is not valid JSON: %v\n%s", err, buf.String())
	}
	if doc.Type != "waline" || doc.Version != 1 || doc.Time != h.clock.Now().UnixMilli() {
		t.Errorf("Unexpected header: %+v", doc)
	}
	if len(doc.Tables) != 3 {
		t.Errorf("Expected 3 tables, got %v", doc.Tables)
	}
	if len(doc.Data.Comment) != 2 || len(doc.Data.Users) != 3 || len(doc.Data.Counter) != 0 {
		t.Errorf("Unexpected row counts: %d comments, %d users, %d counters",
			len(doc.Data.Comment), len(doc.Data.Users), len(doc.Data.Counter))
	}
	reply := doc.Data.Comment[1]
	if reply.ObjectID != 2 || reply.PID == nil || *reply.PID != 1 || reply.Status != "spam" {
		t.Errorf("Unexpected reply row: %+v", reply)
	}

	// the raw document uses Waline column names
	for _, key := range []string{`"objectId"`, `"insertedAt"`, `"display_name"`, `"Counter":[]`} {
		if !bytes.Contains(buf.Bytes(), []byte(key)) {
			t.Errorf("Export should contain %s", key)
		}
	}

	err := h.services.Data.Export(ctx, h.guest, &bytes.Buffer{})
	expectErr(t, err, service.ErrUnauthorized)
}

func TestProcessImport_WalineDocument(t *testing.T) {
	h := newHarness(t)
	path := writeImportFile(t, importDocument)

	job, err := h.services.Data.CreateImportJob(ctx, h.admin, &models.ImportRequest{Resource: models.ResourceWaline}, path)
	if err != nil {
		t.Fatalf("CreateImportJob failed: %v", err)
	}
	if err := h.services.Data.ProcessImport(ctx, job); err != nil {
		t.Fatalf("ProcessImport failed: %v", err)
	}

	if job.Status != models.JobStatusCompleted {
		t.Errorf("Expected completed, got %s", job.Status)
	}
	if job.TotalRecords != 10 || job.ProcessedCount != 10 {
		t.Errorf("Expected 10 total and processed, got %d / %d", job.TotalRecords, job.ProcessedCount)
	}
	if job.SuccessfulCount != 5 || job.FailedCount != 5 {
		t.Errorf("Expected 5 successful and 5 failed, got %d / %d", job.SuccessfulCount, job.FailedCount)
	}
	if job.CompletedAt == nil {
		t.Errorf("CompletedAt should be set")
	}

	imported, _ := h.users.GetByEmail(ctx, "imp@example.com")
	if imported == nil || imported.DisplayName != "Imported" {
		t.Fatalf("Imported user missing")
	}
	merged, _ := h.users.GetByEmail(ctx, "guest@example.com")
	if merged.ID != h.guest.User.ID || merged.DisplayName != "Renamed" {
		t.Errorf("Existing user should be updated in place, got %+v", merged)
	}

	c, _ := h.comments.GetByID(ctx, 100)
	if c == nil {
		t.Fatalf("Comment 100 should be imported with its id")
	}
	if c.UserID == nil || *c.UserID != imported.ID {
		t.Errorf("user_id should be remapped to %d, got %v", imported.ID, c.UserID)
	}
	if !c.UpdatedAt.Equal(time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Timestamps should be kept, got %v", c.UpdatedAt)
	}
	if r, _ := h.comments.GetByID(ctx, 101); r == nil || r.ParentID == nil || *r.ParentID != 100 {
		t.Errorf("Reply 101 should keep its parent")
	}
	if n, _ := h.repos.Counter.Count(ctx); n != 1 {
		t.Errorf("Expected 1 counter, got %d", n)
	}

	resp, err := h.services.Job.GetJob(ctx, h.admin, job.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if resp.ErrorCount != 5 {
		t.Errorf("Expected error count 5, got %d", resp.ErrorCount)
	}

	byTable := map[string][]models.ValidationError{}
	for _, e := range resp.Errors {
		byTable[e.Table] = append(byTable[e.Table], e)
	}
	if len(byTable[models.TableUsers]) != 1 || len(byTable[models.TableCounter]) != 1 || len(byTable[models.TableComment]) != 3 {
		t.Errorf("Unexpected errors: %+v", resp.Errors)
	}
	if first := byTable[models.TableComment][0]; first.Line != 3 || first.Field != "url" {
		t.Errorf("First comment error should be line 3 url, got %+v", first)
	}
}

func TestProcessImport_BrokenDocumentFailsJob(t *testing.T) {
	h := newHarness(t)
	path := writeImportFile(t, `{"type": "waline", "data": [`)

	job, _ := h.services.Data.CreateImportJob(ctx, h.admin, &models.ImportRequest{Resource: models.ResourceWaline}, path)
	if err := h.services.Data.ProcessImport(ctx, job); err == nil {
		t.Fatal("Expected an error for a truncated document")
	}
	stored, _ := h.jobs.GetByID(ctx, job.ID)
	if stored.Status != models.JobStatusFailed {
		t.Errorf("Expected failed job, got %s", stored.Status)
	}
}

func TestCreateImportJob_AdminOnly(t *testing.T) {
	h := newHarness(t)

	_, err := h.services.Data.CreateImportJob(ctx, h.guest, &models.ImportRequest{Resource: models.ResourceWaline}, "x.json")
	expectErr(t, err, service.ErrUnauthorized)

	job, err := h.services.Data.CreateImportJob(ctx, h.admin, &models.ImportRequest{Resource: models.ResourceWaline, IdempotencyKey: "backup-1"}, "x.json")
	if err != nil {
		t.Fatalf("CreateImportJob failed: %v", err)
	}
	found, err := h.services.Job.GetJobByIdempotencyKey(ctx, "backup-1")
	if err != nil || found == nil || found.ID != job.ID {
		t.Errorf("Job should be found by idempotency key, got %v %v", found, err)
	}

	_, err = h.services.Job.GetJob(ctx, h.admin, "missing")
	expectErr(t, err, service.ErrNotFound)
	_, err = h.services.Job.GetJob(ctx, h.guest, job.ID)
	expectErr(t, err, service.ErrUnauthorized)
}

func TestJobProcessor_RunsPendingImports(t *testing.T) {
	h := newHarness(t)
	path := writeImportFile(t, importDocument)

	job, err := h.services.Data.CreateImportJob(ctx, h.admin, &models.ImportRequest{Resource: models.ResourceWaline}, path)
	if err != nil {
		t.Fatalf("CreateImportJob failed: %v", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.services.Job.StartProcessor(runCtx)

	deadline := time.Now().Add(10 * time.Second)
	for {
		stored, _ := h.jobs.GetByID(ctx, job.ID)
		if stored.Status == models.JobStatusCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Job not processed, status %s", stored.Status)
		}
		time.Sleep(50 * time.Millisecond)
	}
	h.services.Job.StopProcessor()

	if n, _ := h.comments.Count(ctx); n != 2 {
		t.Errorf("Expected 2 imported comments, got %d", n)
	}
}

func TestDeleteTable(t *testing.T) {
	h := newHarness(t)
	h.seedComment(1, nil, models.StatusApproved, "ann", 0)

	expectErr(t, h.services.Data.DeleteTable(ctx, h.guest, models.TableComment), service.ErrUnauthorized)
	expectErr(t, h.services.Data.DeleteTable(ctx, h.admin, "Sessions"), service.ErrValidation)

	if err := h.services.Data.DeleteTable(ctx, h.admin, models.TableUsers); err != nil {
		t.Fatalf("Deleting Users should be accepted: %v", err)
	}
	if n, _ := h.users.Count(ctx); n != 3 {
		t.Errorf("Users must be kept, got %d", n)
	}

	if err := h.services.Data.DeleteTable(ctx, h.admin, models.TableComment); err != nil {
		t.Fatalf("DeleteTable failed: %v", err)
	}
	if n, _ := h.comments.Count(ctx); n != 0 {
		t.Errorf("Comments should be gone, got %d", n)
	}
	if err := h.services.Data.DeleteTable(ctx, h.admin, models.TableCounter); err != nil {
		t.Errorf("DeleteTable Counter failed: %v", err)
	}
}

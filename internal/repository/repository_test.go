package repository_test

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/threaded-comments-api/internal/database"
	"github.com/threaded-comments-api/internal/models"
	"github.com/threaded-comments-api/internal/repository"
)

var commentCols = []string{
	"id", "user_id", "pid", "rid", "status", "sticky", "like", "comment", "nick", "mail", "link", "ua", "ip", "url",
	"inserted_at", "created_at", "updated_at",
}

func newMockDB(t *testing.T) (*database.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return database.Wrap(db, zerolog.Nop()), mock
}

func commentRow(rows *sqlmock.Rows, id int64, pid interface{}, status, nick, content string, at time.Time) *sqlmock.Rows {
	return rows.AddRow(id, nil, pid, pid, status, false, 0, content, nick, nick+"@example.com", "",
		"Mozilla/5.0", "127.0.0.1", "/post/1", at, at, at)
}

func TestCommentRepo_CreateAssignsID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewCommentRepo(db)
	now := time.Now()

	mock.ExpectQuery("INSERT INTO comments").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	c := &models.Comment{Status: models.StatusApproved, Content: "hi", Nick: "a", URL: "/p", InsertedAt: now, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.Create(context.Background(), c))
	assert.Equal(t, int64(42), c.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentRepo_GetByIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewCommentRepo(db)

	mock.ExpectQuery("FROM comments WHERE id = \\$1").
		WithArgs(int64(7)).
		WillReturnError(sql.ErrNoRows)

	c, err := repo.GetByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestCommentRepo_GetByIDScansNullableIDs(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewCommentRepo(db)
	now := time.Now()

	rows := sqlmock.NewRows(commentCols)
	commentRow(rows, 3, int64(1), "waiting", "bob", "reply", now)
	mock.ExpectQuery("FROM comments WHERE id = \\$1").WithArgs(int64(3)).WillReturnRows(rows)

	c, err := repo.GetByID(context.Background(), 3)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, models.StatusWaiting, c.Status)
	require.NotNil(t, c.ParentID)
	assert.Equal(t, int64(1), *c.ParentID)
	assert.Nil(t, c.UserID)
	assert.False(t, c.IsRoot())
}

func TestCommentRepo_FindRootsFiltersAndPaginates(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewCommentRepo(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM comments WHERE url LIKE $1 AND pid IS NULL AND status = ANY($2)")).
		WithArgs("%/post/1%", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	rows := sqlmock.NewRows(commentCols)
	commentRow(rows, 12, nil, "approved", "ann", "newest", now)
	commentRow(rows, 11, nil, "approved", "ann", "older", now.Add(-time.Minute))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY inserted_at DESC, id DESC LIMIT $3 OFFSET $4")).
		WithArgs("%/post/1%", sqlmock.AnyArg(), 10, 10).
		WillReturnRows(rows)

	roots, total, err := repo.FindRoots(context.Background(), models.RootFilter{
		URL:      "/post/1",
		Statuses: []models.CommentStatus{models.StatusApproved},
		Sort:     models.SortInsertedDesc,
		Page:     2,
		PageSize: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 12, total)
	require.Len(t, roots, 2)
	assert.Equal(t, int64(12), roots[0].ID)
	assert.True(t, roots[0].IsRoot())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentRepo_FindRootsEscapesLikePattern(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewCommentRepo(db)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(`%100\%\_off%`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("LIMIT").
		WithArgs(`%100\%\_off%`, 10, 0).
		WillReturnRows(sqlmock.NewRows(commentCols))

	roots, total, err := repo.FindRoots(context.Background(), models.RootFilter{URL: "100%_off", Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, roots)
}

func TestCommentRepo_FindRepliesOldestFirst(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewCommentRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("pid = $2 ORDER BY inserted_at ASC, id ASC")).
		WithArgs("%/post/1%", int64(5)).
		WillReturnRows(sqlmock.NewRows(commentCols))

	_, err := repo.FindReplies(context.Background(), "/post/1", 5, nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentRepo_HasIdentical(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewCommentRepo(db)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("/p", "a@b.c", "ann", "", "same text").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	dup, err := repo.HasIdentical(context.Background(), "/p", "a@b.c", "ann", "", "same text")
	require.NoError(t, err)
	assert.True(t, dup)
}

func TestCommentRepo_ListForAdminWithOwner(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewCommentRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = $1 AND comment LIKE $2 AND mail = $3")).
		WithArgs(models.StatusSpam, "%buy%", "admin@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("LIMIT $4 OFFSET $5")).
		WithArgs(models.StatusSpam, "%buy%", "admin@example.com", 10, 0).
		WillReturnRows(sqlmock.NewRows(commentCols))

	_, total, err := repo.ListForAdmin(context.Background(), models.AdminFilter{
		Mail: "admin@example.com", Status: models.StatusSpam, Keyword: "buy", Page: 1, PageSize: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentRepo_BatchInsertRealignsSequence(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewCommentRepo(db)
	now := time.Now()

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("COPY")
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("setval").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	n, err := repo.BatchInsert(context.Background(), []*models.Comment{
		{ID: 1, Status: models.StatusApproved, InsertedAt: now, CreatedAt: now, UpdatedAt: now},
		{ID: 2, Status: models.StatusApproved, InsertedAt: now, CreatedAt: now, UpdatedAt: now},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_GetByEmail(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewUserRepo(db)
	now := time.Now()

	mock.ExpectQuery("FROM users WHERE email = \\$1").
		WithArgs("admin@example.com").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "email", "display_name", "password", "type", "label", "url", "avatar", "created_at", "updated_at",
		}).AddRow(int64(1), "admin@example.com", "Admin", "hash", "administrator", "", "", "", now, now))

	u, err := repo.GetByEmail(context.Background(), "admin@example.com")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.True(t, u.IsAdmin())
	assert.Equal(t, "hash", u.PasswordHash)
}

func TestUserRepo_UpsertReturnsID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewUserRepo(db)

	mock.ExpectQuery("ON CONFLICT \\(email\\) DO UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(9)))

	u := &models.User{Email: "g@example.com", Type: models.AccountGuest}
	require.NoError(t, repo.Upsert(context.Background(), u))
	assert.Equal(t, int64(9), u.ID)
}

func TestJobRepo_MarkJobAsProcessingOnlyOnce(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewJobRepo(db)

	mock.ExpectExec("UPDATE jobs SET status = 'processing'").
		WithArgs(sqlmock.AnyArg(), "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE jobs SET status = 'processing'").
		WithArgs(sqlmock.AnyArg(), "job-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.MarkJobAsProcessing(context.Background(), "job-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkJobAsProcessing(context.Background(), "job-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestJobRepo_GetErrorsWithLimit(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewJobRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY id LIMIT $2")).
		WithArgs("job-1", 5).
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "line", "field", "message", "value"}).
			AddRow("Comment", 3, "url", "url is required", "").
			AddRow("Users", 7, "email", "invalid email format", "nope"))

	errs, err := repo.GetErrors(context.Background(), "job-1", 5)
	require.NoError(t, err)
	require.Len(t, errs, 2)
	assert.Equal(t, "Comment", errs[0].Table)
	assert.Nil(t, errs[0].Value)
	assert.Equal(t, "nope", errs[1].Value)
}

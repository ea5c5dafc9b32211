package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/threaded-comments-api/internal/database"
	"github.com/threaded-comments-api/internal/models"
)

const commentColumns = `id, user_id, pid, rid, status, sticky, "like", comment, nick, mail, link, ua, ip, url,
	inserted_at, created_at, updated_at`

// commentRepo is the concrete implementation of CommentRepository
type commentRepo struct {
	db *database.DB
}

// NewCommentRepo creates a new comment repository
func NewCommentRepo(db *database.DB) CommentRepository {
	return &commentRepo{db: db}
}

// Create inserts a new comment and assigns its id
func (r *commentRepo) Create(ctx context.Context, c *models.Comment) error {
	query := `
		INSERT INTO comments (user_id, pid, rid, status, sticky, "like", comment, nick, mail, link, ua, ip, url,
			inserted_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id
	`
	return r.db.QueryRowContext(ctx, query,
		nullInt64(c.UserID), nullInt64(c.ParentID), nullInt64(c.ReplyToID), c.Status, c.Sticky, c.Like,
		c.Content, c.Nick, c.Mail, c.Link, c.UserAgent, c.IP, c.URL,
		c.InsertedAt, c.CreatedAt, c.UpdatedAt,
	).Scan(&c.ID)
}

// Update writes every mutable field of a comment
func (r *commentRepo) Update(ctx context.Context, c *models.Comment) error {
	query := `
		UPDATE comments SET
			status = $1, sticky = $2, "like" = $3, comment = $4, nick = $5, mail = $6,
			link = $7, ua = $8, url = $9, updated_at = $10
		WHERE id = $11
	`
	_, err := r.db.ExecContext(ctx, query,
		c.Status, c.Sticky, c.Like, c.Content, c.Nick, c.Mail,
		c.Link, c.UserAgent, c.URL, c.UpdatedAt, c.ID,
	)
	return err
}

// Delete removes a comment by ID
func (r *commentRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM comments WHERE id = $1", id)
	return err
}

// GetByID retrieves a comment by ID
func (r *commentRepo) GetByID(ctx context.Context, id int64) (*models.Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM comments WHERE id = $1`

	comment, err := scanComment(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return comment, nil
}

// FindRoots returns a page of root comments whose url contains filter.URL
func (r *commentRepo) FindRoots(ctx context.Context, filter models.RootFilter) ([]*models.Comment, int, error) {
	where := []string{"url LIKE $1", "pid IS NULL"}
	args := []interface{}{likeContains(filter.URL)}
	if len(filter.Statuses) > 0 {
		args = append(args, pq.Array(statusStrings(filter.Statuses)))
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM comments WHERE "+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM comments WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		commentColumns, clause, rootOrder(filter.Sort), len(args)+1, len(args)+2)
	args = append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)

	comments, err := r.queryComments(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return comments, total, nil
}

// FindReplies returns every reply to a root comment, oldest first
func (r *commentRepo) FindReplies(ctx context.Context, url string, parentID int64, statuses []models.CommentStatus) ([]*models.Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM comments WHERE url LIKE $1 AND pid = $2`
	args := []interface{}{likeContains(url), parentID}
	if len(statuses) > 0 {
		query += " AND status = ANY($3)"
		args = append(args, pq.Array(statusStrings(statuses)))
	}
	query += " ORDER BY inserted_at ASC, id ASC"

	return r.queryComments(ctx, query, args...)
}

// CountByAuthor counts every comment written under the same nick and mail
func (r *commentRepo) CountByAuthor(ctx context.Context, nick, mail string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM comments WHERE nick = $1 AND mail = $2", nick, mail,
	).Scan(&count)
	return count, err
}

// HasIdentical checks for a comment matching all five submission fields exactly
func (r *commentRepo) HasIdentical(ctx context.Context, url, mail, nick, link, content string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM comments
			WHERE url = $1 AND mail = $2 AND nick = $3 AND link = $4 AND comment = $5
		)
	`
	var exists bool
	err := r.db.QueryRowContext(ctx, query, url, mail, nick, link, content).Scan(&exists)
	return exists, err
}

// ListForAdmin returns a page of comments for the moderation listing
func (r *commentRepo) ListForAdmin(ctx context.Context, filter models.AdminFilter) ([]*models.Comment, int, error) {
	clause, args := adminWhere(filter.Mail, filter.Keyword, filter.Status)

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM comments WHERE "+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM comments WHERE %s ORDER BY inserted_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		commentColumns, clause, len(args)+1, len(args)+2)
	args = append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)

	comments, err := r.queryComments(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return comments, total, nil
}

// CountByStatus counts comments in one status under the admin listing filter
func (r *commentRepo) CountByStatus(ctx context.Context, mail, keyword string, status models.CommentStatus) (int, error) {
	clause, args := adminWhere(mail, keyword, status)
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM comments WHERE "+clause, args...).Scan(&count)
	return count, err
}

// BatchInsert inserts comments with their original ids using PostgreSQL COPY
func (r *commentRepo) BatchInsert(ctx context.Context, comments []*models.Comment) (int, error) {
	if len(comments) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("comments",
		"id", "user_id", "pid", "rid", "status", "sticky", "like", "comment", "nick", "mail",
		"link", "ua", "ip", "url", "inserted_at", "created_at", "updated_at",
	))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, c := range comments {
		_, err := stmt.ExecContext(ctx,
			c.ID, nullInt64(c.UserID), nullInt64(c.ParentID), nullInt64(c.ReplyToID), c.Status, c.Sticky,
			c.Like, c.Content, c.Nick, c.Mail, c.Link, c.UserAgent, c.IP, c.URL,
			c.InsertedAt, c.CreatedAt, c.UpdatedAt,
		)
		if err != nil {
			continue
		}
		inserted++
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		return 0, err
	}

	if err := realignSequence(ctx, tx, "comments"); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	return inserted, nil
}

// DeleteAll removes every comment
func (r *commentRepo) DeleteAll(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM comments")
	return err
}

// Count returns the total number of comments
func (r *commentRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM comments").Scan(&count)
	return count, err
}

// StreamAll streams all comments for export
func (r *commentRepo) StreamAll(ctx context.Context, callback func(*models.Comment) error) error {
	rows, err := r.db.QueryContext(ctx, `SELECT `+commentColumns+` FROM comments ORDER BY id`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return err
		}

		if err := callback(comment); err != nil {
			return err
		}
	}

	return rows.Err()
}

func (r *commentRepo) queryComments(ctx context.Context, query string, args ...interface{}) ([]*models.Comment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []*models.Comment
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}
	return comments, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanComment(row rowScanner) (*models.Comment, error) {
	var c models.Comment
	var userID, pid, rid sql.NullInt64
	err := row.Scan(
		&c.ID, &userID, &pid, &rid, &c.Status, &c.Sticky, &c.Like, &c.Content,
		&c.Nick, &c.Mail, &c.Link, &c.UserAgent, &c.IP, &c.URL,
		&c.InsertedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.UserID = int64Ptr(userID)
	c.ParentID = int64Ptr(pid)
	c.ReplyToID = int64Ptr(rid)
	return &c, nil
}

func rootOrder(sort models.CommentSort) string {
	switch sort {
	case models.SortInsertedAsc:
		return "inserted_at ASC, id ASC"
	case models.SortLikeDesc:
		return `"like" DESC, inserted_at DESC, id DESC`
	default:
		return "inserted_at DESC, id DESC"
	}
}

func adminWhere(mail, keyword string, status models.CommentStatus) (string, []interface{}) {
	where := []string{"status = $1", "comment LIKE $2"}
	args := []interface{}{status, likeContains(keyword)}
	if mail != "" {
		args = append(args, mail)
		where = append(where, fmt.Sprintf("mail = $%d", len(args)))
	}
	return strings.Join(where, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likeContains builds a LIKE pattern matching s as a literal substring
func likeContains(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

func statusStrings(statuses []models.CommentStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// realignSequence moves the id sequence past ids inserted explicitly
func realignSequence(ctx context.Context, tx *sql.Tx, table string) error {
	query := fmt.Sprintf(
		`SELECT setval(pg_get_serial_sequence('%[1]s', 'id'), GREATEST((SELECT COALESCE(MAX(id), 0) FROM %[1]s), 1))`,
		table,
	)
	_, err := tx.ExecContext(ctx, query)
	return err
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

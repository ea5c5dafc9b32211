package repository

import (
	"context"

	"github.com/threaded-comments-api/internal/database"
	"github.com/threaded-comments-api/internal/models"
)

// CommentRepository defines the interface for comment data operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	Update(ctx context.Context, comment *models.Comment) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*models.Comment, error)
	// FindRoots returns one page of root comments and the total number of matching roots
	FindRoots(ctx context.Context, filter models.RootFilter) ([]*models.Comment, int, error)
	// FindReplies returns every reply to parentID in insertion order
	FindReplies(ctx context.Context, url string, parentID int64, statuses []models.CommentStatus) ([]*models.Comment, error)
	CountByAuthor(ctx context.Context, nick, mail string) (int, error)
	HasIdentical(ctx context.Context, url, mail, nick, link, content string) (bool, error)
	ListForAdmin(ctx context.Context, filter models.AdminFilter) ([]*models.Comment, int, error)
	CountByStatus(ctx context.Context, mail, keyword string, status models.CommentStatus) (int, error)
	BatchInsert(ctx context.Context, comments []*models.Comment) (int, error)
	DeleteAll(ctx context.Context) error
	Count(ctx context.Context) (int, error)
	StreamAll(ctx context.Context, callback func(*models.Comment) error) error
}

// UserRepository defines the interface for user data operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Upsert(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, page, pageSize int) ([]*models.User, int, error)
	Count(ctx context.Context) (int, error)
	StreamAll(ctx context.Context, callback func(*models.User) error) error
}

// CounterRepository defines the interface for counter data operations
type CounterRepository interface {
	BatchInsert(ctx context.Context, counters []*models.Counter) (int, error)
	DeleteAll(ctx context.Context) error
	Count(ctx context.Context) (int, error)
	StreamAll(ctx context.Context, callback func(*models.Counter) error) error
}

// JobRepository defines the interface for job data operations
type JobRepository interface {
	Create(ctx context.Context, job *models.Job) error
	Update(ctx context.Context, job *models.Job) error
	GetByID(ctx context.Context, id string) (*models.Job, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*models.Job, error)
	GetPendingJobs(ctx context.Context) ([]*models.Job, error)
	MarkJobAsProcessing(ctx context.Context, jobID string) (bool, error)
	AddErrors(ctx context.Context, jobID string, errors []models.ValidationError) error
	GetErrors(ctx context.Context, jobID string, limit int) ([]models.ValidationError, error)
}

// Repositories holds all repository interfaces
type Repositories struct {
	User    UserRepository
	Comment CommentRepository
	Counter CounterRepository
	Job     JobRepository
}

// New creates all repositories with the given database connection
func New(db *database.DB) *Repositories {
	return &Repositories{
		User:    NewUserRepo(db),
		Comment: NewCommentRepo(db),
		Counter: NewCounterRepo(db),
		Job:     NewJobRepo(db),
	}
}

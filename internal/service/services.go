package service

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/threaded-comments-api/internal/config"
	"github.com/threaded-comments-api/internal/level"
	"github.com/threaded-comments-api/internal/models"
	"github.com/threaded-comments-api/internal/notify"
	"github.com/threaded-comments-api/internal/ratelimit"
	"github.com/threaded-comments-api/internal/repository"
	"github.com/threaded-comments-api/internal/spam"
)

// CommentService defines the comment submission and moderation operations
type CommentService interface {
	Create(ctx context.Context, caller Identity, req *models.CommentRequest) (*models.CommentView, error)
	Update(ctx context.Context, caller Identity, id int64, patch *models.CommentPatch) (*models.CommentView, error)
	Delete(ctx context.Context, caller Identity, id int64) error
	ListForAdmin(ctx context.Context, caller Identity, q models.AdminQuery) (*models.AdminPage, error)
}

// ThreadService defines the public thread listing
type ThreadService interface {
	List(ctx context.Context, caller Identity, q models.ThreadQuery) (*models.ThreadPage, error)
}

// UserService defines the account operations
type UserService interface {
	Register(ctx context.Context, req *models.RegisterRequest) (verify bool, err error)
	Login(ctx context.Context, email, password string) (*models.UserProfile, error)
	Profile(ctx context.Context, caller Identity) (*models.UserProfile, error)
	UpdateProfile(ctx context.Context, caller Identity, patch *models.UserPatch) (*models.UserProfile, error)
	Verify(ctx context.Context, email, token string) error
	SetType(ctx context.Context, caller Identity, userID int64, accountType string) error
	List(ctx context.Context, caller Identity, page int) (*models.UserPage, error)
}

// DataService defines export, import and table deletion
type DataService interface {
	Export(ctx context.Context, caller Identity, w io.Writer) error
	DeleteTable(ctx context.Context, caller Identity, table string) error
	CreateImportJob(ctx context.Context, caller Identity, req *models.ImportRequest, filePath string) (*models.Job, error)
	ImportProcessor
}

// JobService defines import job management
type JobService interface {
	StartProcessor(ctx context.Context)
	StopProcessor()
	GetJob(ctx context.Context, caller Identity, id string) (*models.JobResponse, error)
	GetJobByIdempotencyKey(ctx context.Context, key string) (*models.Job, error)
}

// StatsService reports row counts and limiter state for /metrics
type StatsService interface {
	Snapshot(ctx context.Context) (*models.Stats, error)
}

// Dependencies are the collaborators built outside the service layer.
// Nil fields get in-process defaults.
type Dependencies struct {
	Limiter    *ratelimit.Limiter
	Classifier *spam.Classifier
	Notifier   notify.Notifier
	Now        func() time.Time
}

func (d Dependencies) clock() func() time.Time {
	if d.Now != nil {
		return d.Now
	}
	return time.Now
}

// Services holds all service interfaces
type Services struct {
	Comment CommentService
	Thread  ThreadService
	User    UserService
	Data    DataService
	Job     JobService
	Stats   StatsService
	Policy  *Policy
}

// NewServices creates all services
func NewServices(repos *repository.Repositories, cfg *config.Config, deps Dependencies, log zerolog.Logger) *Services {
	if deps.Limiter == nil {
		deps.Limiter = ratelimit.New()
	}
	if deps.Classifier == nil {
		deps.Classifier = spam.NewClassifier(cfg.Moderation.Audit, cfg.Moderation.ForbiddenWords, nil)
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.NewLogNotifier(log)
	}

	dataSvc := newDataService(repos, deps, cfg.Import, log)

	return &Services{
		Comment: newCommentService(repos, deps, cfg.Moderation, log),
		Thread:  newThreadService(repos, level.ParseThresholds(cfg.Moderation.Levels), log),
		User:    newUserService(repos, deps, cfg, log),
		Data:    dataSvc,
		Job:     newJobService(repos.Job, dataSvc, log),
		Stats:   newStatsService(repos, deps.Limiter, log),
		Policy:  NewPolicy(repos.User, cfg.Auth.JWTKey, log),
	}
}

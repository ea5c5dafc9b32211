package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/threaded-comments-api/internal/config"
	"github.com/threaded-comments-api/internal/models"
	"github.com/threaded-comments-api/internal/notify"
	"github.com/threaded-comments-api/internal/ratelimit"
	"github.com/threaded-comments-api/internal/repository"
	"github.com/threaded-comments-api/internal/spam"
	"github.com/threaded-comments-api/internal/validation"
)

const (
	adminPageSize = 10
	notifyTimeout = 10 * time.Second
)

// commentService is the concrete implementation of CommentService
type commentService struct {
	comments   repository.CommentRepository
	users      repository.UserRepository
	limiter    *ratelimit.Limiter
	classifier *spam.Classifier
	notifier   notify.Notifier
	cfg        config.ModerationConfig
	now        func() time.Time
	log        zerolog.Logger
}

func newCommentService(repos *repository.Repositories, deps Dependencies, cfg config.ModerationConfig, log zerolog.Logger) *commentService {
	return &commentService{
		comments:   repos.Comment,
		users:      repos.User,
		limiter:    deps.Limiter,
		classifier: deps.Classifier,
		notifier:   deps.Notifier,
		cfg:        cfg,
		now:        deps.clock(),
		log:        log.With().Str("service", "moderation").Logger(),
	}
}

// Create moderates and stores a new comment.
//
// Administrators are approved without limits or duplicate checks. Signed in
// guests skip the rate limiter. Anonymous callers are rejected when login is
// forced and are otherwise rate limited by ip.
func (s *commentService) Create(ctx context.Context, caller Identity, req *models.CommentRequest) (*models.CommentView, error) {
	if errs := validation.ValidateSubmission(validation.Submission{
		URL: req.URL, Content: req.Comment, Mail: req.Mail, Nick: req.Nick,
	}); len(errs) > 0 {
		return nil, validationf("%s", validation.Join(errs))
	}

	var parent *models.Comment
	if req.PID != nil {
		p, err := s.comments.GetByID(ctx, *req.PID)
		if err != nil {
			return nil, upstream("find parent", err)
		}
		if p == nil {
			return nil, ErrNotFound
		}
		if p.URL != req.URL {
			return nil, validationf("parent comment belongs to another url")
		}
		parent = p
	}

	rid := req.RID
	if rid == nil && req.PID != nil {
		rid = req.PID
	}

	c := &models.Comment{
		ParentID:  req.PID,
		ReplyToID: rid,
		Content:   req.Comment,
		Nick:      req.Nick,
		Mail:      req.Mail,
		Link:      req.Link,
		UserAgent: req.UA,
		IP:        req.IP,
		URL:       req.URL,
	}
	if caller.Authenticated() {
		id := caller.User.ID
		c.UserID = &id
	}

	status, err := s.moderate(ctx, caller, c)
	if err != nil {
		return nil, err
	}
	c.Status = status

	now := s.now()
	c.InsertedAt, c.CreatedAt, c.UpdatedAt = now, now, now

	if err := s.comments.Create(ctx, c); err != nil {
		return nil, upstream("insert comment", err)
	}

	s.log.Info().
		Int64("comment_id", c.ID).
		Str("url", c.URL).
		Str("status", string(c.Status)).
		Str("role", caller.Role.String()).
		Msg("Comment created")

	s.notifyAsync(notify.CommentCreated(c, parent))

	view := commentView(c, caller.IsAdmin())
	withUser(&view, caller.User)
	return &view, nil
}

// moderate resolves the initial status of c for caller
func (s *commentService) moderate(ctx context.Context, caller Identity, c *models.Comment) (models.CommentStatus, error) {
	if caller.IsAdmin() {
		return models.StatusApproved, nil
	}

	if !caller.Authenticated() {
		if s.cfg.ForceLogin {
			return "", ErrUnauthorized
		}
		if s.cfg.RateWindow > 0 && !s.limiter.Allow(c.IP, s.cfg.RateWindow, s.cfg.RateMax) {
			s.log.Warn().Str("ip", c.IP).Msg("Comment rate limited")
			return "", ErrFrequencyLimited
		}
	}

	dup, err := s.comments.HasIdentical(ctx, c.URL, c.Mail, c.Nick, c.Link, c.Content)
	if err != nil {
		return "", upstream("duplicate check", err)
	}
	if dup {
		return "", ErrDuplicateContent
	}

	verdict, err := s.classifier.Classify(ctx, false, spam.Submission{
		Author:    c.Nick,
		Email:     c.Mail,
		IP:        c.IP,
		UserAgent: c.UserAgent,
		Content:   c.Content,
		URL:       c.URL,
	})
	if err != nil {
		return "", upstream("spam check", err)
	}
	return verdict.Status(), nil
}

// notifyAsync delivers event in the background; failures are only logged
func (s *commentService) notifyAsync(event notify.Event) {
	if s.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := s.notifier.Notify(ctx, event); err != nil {
			s.log.Error().Err(err).Str("event", event.Type).Msg("Failed to send notification")
		}
	}()
}

// Update applies patch to a comment owned by caller, or any comment for administrators
func (s *commentService) Update(ctx context.Context, caller Identity, id int64, patch *models.CommentPatch) (*models.CommentView, error) {
	c, err := s.authorizeMutation(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	if patch.Status != nil && !patch.Status.Valid() {
		return nil, validationf("invalid status %q", *patch.Status)
	}
	if patch.Content != nil {
		if errs := validation.ValidateSubmission(validation.Submission{URL: c.URL, Content: *patch.Content}); len(errs) > 0 {
			return nil, validationf("%s", validation.Join(errs))
		}
	}

	patch.Apply(c)
	c.UpdatedAt = s.now()

	if err := s.comments.Update(ctx, c); err != nil {
		return nil, upstream("update comment", err)
	}

	s.log.Info().Int64("comment_id", c.ID).Str("status", string(c.Status)).Msg("Comment updated")

	view := commentView(c, caller.IsAdmin())
	if c.UserID != nil {
		author, err := s.users.GetByID(ctx, *c.UserID)
		if err != nil {
			return nil, upstream("find user", err)
		}
		withUser(&view, author)
	}
	return &view, nil
}

// Delete removes a comment owned by caller, or any comment for administrators
func (s *commentService) Delete(ctx context.Context, caller Identity, id int64) error {
	if _, err := s.authorizeMutation(ctx, caller, id); err != nil {
		return err
	}
	if err := s.comments.Delete(ctx, id); err != nil {
		return upstream("delete comment", err)
	}
	s.log.Info().Int64("comment_id", id).Str("role", caller.Role.String()).Msg("Comment deleted")
	return nil
}

func (s *commentService) authorizeMutation(ctx context.Context, caller Identity, id int64) (*models.Comment, error) {
	if !caller.Authenticated() {
		return nil, ErrUnauthorized
	}
	c, err := s.comments.GetByID(ctx, id)
	if err != nil {
		return nil, upstream("find comment", err)
	}
	if c == nil {
		return nil, ErrNotFound
	}
	if !caller.IsAdmin() && !c.OwnedBy(caller.User.ID) {
		return nil, ErrForbidden
	}
	return c, nil
}

// ListForAdmin returns a page of the moderation queue
func (s *commentService) ListForAdmin(ctx context.Context, caller Identity, q models.AdminQuery) (*models.AdminPage, error) {
	if !caller.IsAdmin() {
		return nil, ErrUnauthorized
	}

	var mail string
	switch q.Owner {
	case "mine":
		mail = caller.Email()
	case "all":
	default:
		return nil, validationf("owner must be mine or all")
	}

	status := models.CommentStatus(q.Status)
	if !status.Valid() {
		return nil, validationf("invalid status %q", q.Status)
	}

	page, _ := normalizePage(q.Page, adminPageSize)
	comments, total, err := s.comments.ListForAdmin(ctx, models.AdminFilter{
		Mail:     mail,
		Status:   status,
		Keyword:  q.Keyword,
		Page:     page,
		PageSize: adminPageSize,
	})
	if err != nil {
		return nil, upstream("list comments", err)
	}

	spamCount, err := s.comments.CountByStatus(ctx, mail, q.Keyword, models.StatusSpam)
	if err != nil {
		return nil, upstream("count spam", err)
	}
	waitingCount, err := s.comments.CountByStatus(ctx, mail, q.Keyword, models.StatusWaiting)
	if err != nil {
		return nil, upstream("count waiting", err)
	}

	users := make(map[int64]*models.User)
	data := make([]models.CommentView, 0, len(comments))
	for _, c := range comments {
		view := commentView(c, true)
		if c.UserID != nil {
			u, ok := users[*c.UserID]
			if !ok {
				if u, err = s.users.GetByID(ctx, *c.UserID); err != nil {
					return nil, upstream("find user", err)
				}
				users[*c.UserID] = u
			}
			withUser(&view, u)
		}
		data = append(data, view)
	}

	return &models.AdminPage{
		Data:         data,
		Page:         page,
		PageSize:     adminPageSize,
		TotalPages:   models.TotalPages(total, adminPageSize),
		SpamCount:    spamCount,
		WaitingCount: waitingCount,
	}, nil
}

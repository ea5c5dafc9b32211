package service

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/threaded-comments-api/internal/level"
	"github.com/threaded-comments-api/internal/models"
	"github.com/threaded-comments-api/internal/repository"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// threadService is the concrete implementation of ThreadService
type threadService struct {
	comments   repository.CommentRepository
	users      repository.UserRepository
	thresholds []int
	log        zerolog.Logger
}

func newThreadService(repos *repository.Repositories, thresholds []int, log zerolog.Logger) *threadService {
	return &threadService{
		comments:   repos.Comment,
		users:      repos.User,
		thresholds: thresholds,
		log:        log.With().Str("service", "thread").Logger(),
	}
}

// List returns one page of root comments for q.Path with every reply attached.
// Count covers the roots on this page plus their replies; TotalPages counts roots only.
func (s *threadService) List(ctx context.Context, caller Identity, q models.ThreadQuery) (*models.ThreadPage, error) {
	page, pageSize := normalizePage(q.Page, q.PageSize)
	statuses := caller.visibleStatuses()

	roots, total, err := s.comments.FindRoots(ctx, models.RootFilter{
		URL:      q.Path,
		Statuses: statuses,
		Sort:     models.ParseCommentSort(q.SortBy),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return nil, upstream("find roots", err)
	}

	a := s.newAnnotator(caller.IsAdmin())
	data := make([]models.CommentView, 0, len(roots))
	count := len(roots)

	for _, root := range roots {
		view, err := a.view(ctx, root)
		if err != nil {
			return nil, err
		}

		replies, err := s.comments.FindReplies(ctx, q.Path, root.ID, statuses)
		if err != nil {
			return nil, upstream("find replies", err)
		}
		count += len(replies)

		for _, reply := range replies {
			child, err := a.view(ctx, reply)
			if err != nil {
				return nil, err
			}
			child.ReplyUser = &models.ReplyUser{
				Avatar: Avatar(root.Mail),
				Link:   root.Link,
				Nick:   root.Nick,
			}
			view.Children = append(view.Children, child)
		}
		data = append(data, view)
	}

	s.log.Debug().
		Str("path", q.Path).
		Int("page", page).
		Int("roots", len(roots)).
		Int("count", count).
		Bool("admin", caller.IsAdmin()).
		Msg("Thread assembled")

	return &models.ThreadPage{
		Count:      count,
		Data:       data,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: models.TotalPages(total, pageSize),
	}, nil
}

// annotator renders comments for one request, memoising author lookups
type annotator struct {
	s      *threadService
	admin  bool
	users  map[int64]*models.User
	levels map[[2]string]int
}

func (s *threadService) newAnnotator(admin bool) *annotator {
	return &annotator{
		s:      s,
		admin:  admin,
		users:  make(map[int64]*models.User),
		levels: make(map[[2]string]int),
	}
}

func (a *annotator) view(ctx context.Context, c *models.Comment) (models.CommentView, error) {
	v := commentView(c, a.admin)

	lvl, err := a.level(ctx, c.Nick, c.Mail)
	if err != nil {
		return v, err
	}
	v.Level = lvl

	if c.UserID != nil {
		u, err := a.user(ctx, *c.UserID)
		if err != nil {
			return v, err
		}
		withUser(&v, u)
	}
	return v, nil
}

func (a *annotator) level(ctx context.Context, nick, mail string) (int, error) {
	key := [2]string{nick, mail}
	if lvl, ok := a.levels[key]; ok {
		return lvl, nil
	}
	n, err := a.s.comments.CountByAuthor(ctx, nick, mail)
	if err != nil {
		return 0, upstream("count by author", err)
	}
	lvl := level.Level(n, a.s.thresholds)
	a.levels[key] = lvl
	return lvl, nil
}

func (a *annotator) user(ctx context.Context, id int64) (*models.User, error) {
	if u, ok := a.users[id]; ok {
		return u, nil
	}
	u, err := a.s.users.GetByID(ctx, id)
	if err != nil {
		return nil, upstream("find user", err)
	}
	a.users[id] = u
	return u, nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

package mocks

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/threaded-comments-api/internal/models"
	"github.com/threaded-comments-api/internal/repository"
)

// ErrDuplicateEmail mirrors the unique violation the users table raises
var ErrDuplicateEmail = errors.New("duplicate email")

// Verify interface compliance
var (
	_ repository.CommentRepository = (*MockCommentRepository)(nil)
	_ repository.UserRepository    = (*MockUserRepository)(nil)
	_ repository.CounterRepository = (*MockCounterRepository)(nil)
	_ repository.JobRepository     = (*MockJobRepository)(nil)
)

// NewRepositories bundles fresh in-memory repositories
func NewRepositories() (*repository.Repositories, *MockCommentRepository, *MockUserRepository) {
	comments := NewMockCommentRepository()
	users := NewMockUserRepository()
	return &repository.Repositories{
		Comment: comments,
		User:    users,
		Counter: NewMockCounterRepository(),
		Job:     NewMockJobRepository(),
	}, comments, users
}

// MockCommentRepository is an in-memory CommentRepository with the
// filtering, ordering and paging of the SQL implementation
type MockCommentRepository struct {
	mu       sync.Mutex
	Comments map[int64]*models.Comment
	nextID   int64

	InsertError      error
	QueryError       error
	BatchInsertFunc  func(ctx context.Context, comments []*models.Comment) (int, error)
	BatchInsertCalls int
	CountCalls       int
}

func NewMockCommentRepository() *MockCommentRepository {
	return &MockCommentRepository{Comments: make(map[int64]*models.Comment)}
}

// Seed stores c as is, keeping its id
func (m *MockCommentRepository) Seed(comments ...*models.Comment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range comments {
		cp := *c
		m.Comments[c.ID] = &cp
		if c.ID > m.nextID {
			m.nextID = c.ID
		}
	}
}

func (m *MockCommentRepository) Create(ctx context.Context, c *models.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertError != nil {
		return m.InsertError
	}
	m.nextID++
	c.ID = m.nextID
	cp := *c
	m.Comments[c.ID] = &cp
	return nil
}

func (m *MockCommentRepository) Update(ctx context.Context, c *models.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertError != nil {
		return m.InsertError
	}
	cp := *c
	m.Comments[c.ID] = &cp
	return nil
}

func (m *MockCommentRepository) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertError != nil {
		return m.InsertError
	}
	delete(m.Comments, id)
	return nil
}

func (m *MockCommentRepository) GetByID(ctx context.Context, id int64) (*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueryError != nil {
		return nil, m.QueryError
	}
	c, ok := m.Comments[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *MockCommentRepository) FindRoots(ctx context.Context, f models.RootFilter) ([]*models.Comment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueryError != nil {
		return nil, 0, m.QueryError
	}

	roots := m.filter(func(c *models.Comment) bool {
		return c.IsRoot() && strings.Contains(c.URL, f.URL) && statusIn(c.Status, f.Statuses)
	})
	sort.SliceStable(roots, func(i, j int) bool {
		a, b := roots[i], roots[j]
		switch f.Sort {
		case models.SortInsertedAsc:
			return before(a, b)
		case models.SortLikeDesc:
			if a.Like != b.Like {
				return a.Like > b.Like
			}
			return before(b, a)
		default:
			return before(b, a)
		}
	})
	return paginate(roots, f.Page, f.PageSize), len(roots), nil
}

func (m *MockCommentRepository) FindReplies(ctx context.Context, url string, parentID int64, statuses []models.CommentStatus) ([]*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueryError != nil {
		return nil, m.QueryError
	}

	replies := m.filter(func(c *models.Comment) bool {
		return c.ParentID != nil && *c.ParentID == parentID &&
			strings.Contains(c.URL, url) && statusIn(c.Status, statuses)
	})
	sort.SliceStable(replies, func(i, j int) bool { return before(replies[i], replies[j]) })
	return replies, nil
}

func (m *MockCommentRepository) CountByAuthor(ctx context.Context, nick, mail string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CountCalls++
	if m.QueryError != nil {
		return 0, m.QueryError
	}
	n := 0
	for _, c := range m.Comments {
		if c.Nick == nick && c.Mail == mail {
			n++
		}
	}
	return n, nil
}

func (m *MockCommentRepository) HasIdentical(ctx context.Context, url, mail, nick, link, content string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueryError != nil {
		return false, m.QueryError
	}
	for _, c := range m.Comments {
		if c.URL == url && c.Mail == mail && c.Nick == nick && c.Link == link && c.Content == content {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockCommentRepository) ListForAdmin(ctx context.Context, f models.AdminFilter) ([]*models.Comment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueryError != nil {
		return nil, 0, m.QueryError
	}

	matched := m.filter(func(c *models.Comment) bool {
		return adminMatch(c, f.Mail, f.Keyword, f.Status)
	})
	sort.SliceStable(matched, func(i, j int) bool { return before(matched[j], matched[i]) })
	return paginate(matched, f.Page, f.PageSize), len(matched), nil
}

func (m *MockCommentRepository) CountByStatus(ctx context.Context, mail, keyword string, status models.CommentStatus) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueryError != nil {
		return 0, m.QueryError
	}
	n := 0
	for _, c := range m.Comments {
		if adminMatch(c, mail, keyword, status) {
			n++
		}
	}
	return n, nil
}

func (m *MockCommentRepository) BatchInsert(ctx context.Context, comments []*models.Comment) (int, error) {
	m.mu.Lock()
	m.BatchInsertCalls++
	fn := m.BatchInsertFunc
	insertErr := m.InsertError
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, comments)
	}
	if insertErr != nil {
		return 0, insertErr
	}
	m.Seed(comments...)
	return len(comments), nil
}

func (m *MockCommentRepository) DeleteAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertError != nil {
		return m.InsertError
	}
	m.Comments = make(map[int64]*models.Comment)
	return nil
}

func (m *MockCommentRepository) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueryError != nil {
		return 0, m.QueryError
	}
	return len(m.Comments), nil
}

func (m *MockCommentRepository) StreamAll(ctx context.Context, callback func(*models.Comment) error) error {
	m.mu.Lock()
	all := m.filter(func(*models.Comment) bool { return true })
	m.mu.Unlock()

	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	for _, c := range all {
		if err := callback(c); err != nil {
			return err
		}
	}
	return nil
}

// filter returns copies of the matching comments; callers hold mu
func (m *MockCommentRepository) filter(keep func(*models.Comment) bool) []*models.Comment {
	var out []*models.Comment
	for _, c := range m.Comments {
		if keep(c) {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out
}

func before(a, b *models.Comment) bool {
	if !a.InsertedAt.Equal(b.InsertedAt) {
		return a.InsertedAt.Before(b.InsertedAt)
	}
	return a.ID < b.ID
}

func statusIn(s models.CommentStatus, statuses []models.CommentStatus) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}

func adminMatch(c *models.Comment, mail, keyword string, status models.CommentStatus) bool {
	return c.Status == status &&
		(mail == "" || c.Mail == mail) &&
		(keyword == "" || strings.Contains(c.Content, keyword))
}

func paginate[T any](items []T, page, pageSize int) []T {
	if page < 1 {
		page = 1
	}
	start := (page - 1) * pageSize
	if pageSize <= 0 || start >= len(items) {
		return []T{}
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// MockUserRepository is an in-memory UserRepository
type MockUserRepository struct {
	mu     sync.Mutex
	Users  map[int64]*models.User
	nextID int64

	InsertError error
	QueryError  error
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{Users: make(map[int64]*models.User)}
}

// Seed stores users as they are, keeping their ids
func (m *MockUserRepository) Seed(users ...*models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range users {
		cp := *u
		m.Users[u.ID] = &cp
		if u.ID > m.nextID {
			m.nextID = u.ID
		}
	}
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertError != nil {
		return m.InsertError
	}
	if m.byEmail(user.Email) != nil {
		return ErrDuplicateEmail
	}
	m.nextID++
	user.ID = m.nextID
	cp := *user
	m.Users[user.ID] = &cp
	return nil
}

func (m *MockUserRepository) Update(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertError != nil {
		return m.InsertError
	}
	cp := *user
	m.Users[user.ID] = &cp
	return nil
}

func (m *MockUserRepository) Upsert(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertError != nil {
		return m.InsertError
	}
	if existing := m.byEmail(user.Email); existing != nil {
		user.ID = existing.ID
		user.CreatedAt = existing.CreatedAt
	} else {
		m.nextID++
		user.ID = m.nextID
	}
	cp := *user
	m.Users[user.ID] = &cp
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueryError != nil {
		return nil, m.QueryError
	}
	u, ok := m.Users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueryError != nil {
		return nil, m.QueryError
	}
	u := m.byEmail(email)
	if u == nil {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *MockUserRepository) List(ctx context.Context, page, pageSize int) ([]*models.User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueryError != nil {
		return nil, 0, m.QueryError
	}
	all := m.sorted()
	return paginate(all, page, pageSize), len(all), nil
}

func (m *MockUserRepository) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueryError != nil {
		return 0, m.QueryError
	}
	return len(m.Users), nil
}

func (m *MockUserRepository) StreamAll(ctx context.Context, callback func(*models.User) error) error {
	m.mu.Lock()
	all := m.sorted()
	m.mu.Unlock()

	for _, u := range all {
		if err := callback(u); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockUserRepository) byEmail(email string) *models.User {
	for _, u := range m.Users {
		if u.Email == email {
			return u
		}
	}
	return nil
}

func (m *MockUserRepository) sorted() []*models.User {
	out := make([]*models.User, 0, len(m.Users))
	for _, u := range m.Users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// MockCounterRepository is an in-memory CounterRepository
type MockCounterRepository struct {
	mu       sync.Mutex
	Counters map[int64]*models.Counter

	InsertError error
}

func NewMockCounterRepository() *MockCounterRepository {
	return &MockCounterRepository{Counters: make(map[int64]*models.Counter)}
}

func (m *MockCounterRepository) BatchInsert(ctx context.Context, counters []*models.Counter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertError != nil {
		return 0, m.InsertError
	}
	for _, c := range counters {
		cp := *c
		m.Counters[c.ID] = &cp
	}
	return len(counters), nil
}

func (m *MockCounterRepository) DeleteAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Counters = make(map[int64]*models.Counter)
	return nil
}

func (m *MockCounterRepository) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Counters), nil
}

func (m *MockCounterRepository) StreamAll(ctx context.Context, callback func(*models.Counter) error) error {
	m.mu.Lock()
	all := make([]*models.Counter, 0, len(m.Counters))
	for _, c := range m.Counters {
		cp := *c
		all = append(all, &cp)
	}
	m.mu.Unlock()

	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	for _, c := range all {
		if err := callback(c); err != nil {
			return err
		}
	}
	return nil
}

// MockJobRepository is an in-memory JobRepository
type MockJobRepository struct {
	mu              sync.Mutex
	Jobs            map[string]*models.Job
	IdempotencyJobs map[string]*models.Job
	Errors          map[string][]models.ValidationError
	CreateError     error
	UpdateError     error
}

func NewMockJobRepository() *MockJobRepository {
	return &MockJobRepository{
		Jobs:            make(map[string]*models.Job),
		IdempotencyJobs: make(map[string]*models.Job),
		Errors:          make(map[string][]models.ValidationError),
	}
}

func (m *MockJobRepository) Create(ctx context.Context, job *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateError != nil {
		return m.CreateError
	}
	cp := *job
	m.Jobs[job.ID] = &cp
	if job.IdempotencyKey != "" {
		m.IdempotencyJobs[job.IdempotencyKey] = &cp
	}
	return nil
}

func (m *MockJobRepository) Update(ctx context.Context, job *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateError != nil {
		return m.UpdateError
	}
	cp := *job
	m.Jobs[job.ID] = &cp
	return nil
}

func (m *MockJobRepository) GetByID(ctx context.Context, id string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.Jobs[id]
	if !ok {
		return nil, nil
	}
	cp := *job
	return &cp, nil
}

func (m *MockJobRepository) GetByIdempotencyKey(ctx context.Context, key string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.IdempotencyJobs[key]
	if !ok {
		return nil, nil
	}
	cp := *job
	return &cp, nil
}

func (m *MockJobRepository) GetPendingJobs(ctx context.Context) ([]*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var pending []*models.Job
	for _, job := range m.Jobs {
		if job.Status == models.JobStatusPending {
			cp := *job
			pending = append(pending, &cp)
		}
	}
	return pending, nil
}

func (m *MockJobRepository) MarkJobAsProcessing(ctx context.Context, jobID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, exists := m.Jobs[jobID]
	if !exists || job.Status != models.JobStatusPending {
		return false, nil
	}
	job.Status = models.JobStatusProcessing
	return true, nil
}

func (m *MockJobRepository) AddErrors(ctx context.Context, jobID string, errors []models.ValidationError) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors[jobID] = append(m.Errors[jobID], errors...)
	return nil
}

func (m *MockJobRepository) GetErrors(ctx context.Context, jobID string, limit int) ([]models.ValidationError, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	errors := m.Errors[jobID]
	if limit > 0 && len(errors) > limit {
		errors = errors[:limit]
	}
	return append([]models.ValidationError(nil), errors...), nil
}

package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/threaded-comments-api/internal/config"
	"github.com/threaded-comments-api/internal/mocks"
	"github.com/threaded-comments-api/internal/models"
	"github.com/threaded-comments-api/internal/notify"
	"github.com/threaded-comments-api/internal/ratelimit"
	"github.com/threaded-comments-api/internal/repository"
	"github.com/threaded-comments-api/internal/service"
	"github.com/threaded-comments-api/internal/spam"
)

const testKey = "test-signing-key"

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type testHarness struct {
	services *service.Services
	repos    *repository.Repositories
	comments *mocks.MockCommentRepository
	users    *mocks.MockUserRepository
	jobs     *mocks.MockJobRepository
	notifier *mocks.MockNotifier
	checker  *mocks.MockChecker
	clock    *fakeClock
	cfg      *config.Config

	admin Identity
	guest Identity
	other Identity
}

// Identity is shortened for table readability
type Identity = service.Identity

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{JWTKey: testKey, TokenTTL: time.Hour},
		Site: config.SiteConfig{Name: "Test", URL: "http://comments.test/"},
		Moderation: config.ModerationConfig{
			ForbiddenWords: []string{"viagra"},
			RateWindow:     60,
			RateMax:        1,
		},
		Import: config.ImportConfig{BatchSize: 2},
	}
}

func newHarness(t *testing.T, configure ...func(*config.Config)) *testHarness {
	t.Helper()

	cfg := testConfig()
	for _, fn := range configure {
		fn(cfg)
	}

	repos, comments, users := mocks.NewRepositories()
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	notifier := mocks.NewMockNotifier()
	checker := &mocks.MockChecker{Result: spam.Ham}

	deps := service.Dependencies{
		Limiter:    ratelimit.NewWithClock(clock.Now),
		Classifier: spam.NewClassifier(cfg.Moderation.Audit, cfg.Moderation.ForbiddenWords, checker),
		Notifier:   notifier,
		Now:        clock.Now,
	}

	h := &testHarness{
		services: service.NewServices(repos, cfg, deps, zerolog.Nop()),
		repos:    repos,
		comments: comments,
		users:    users,
		jobs:     repos.Job.(*mocks.MockJobRepository),
		notifier: notifier,
		checker:  checker,
		clock:    clock,
		cfg:      cfg,
	}

	adminUser := &models.User{ID: 1, Email: "admin@example.com", DisplayName: "Admin", Type: models.AccountAdministrator}
	guestUser := &models.User{ID: 2, Email: "guest@example.com", DisplayName: "Guest", Type: models.AccountGuest, Label: "friend"}
	otherUser := &models.User{ID: 3, Email: "other@example.com", DisplayName: "Other", Type: models.AccountGuest}
	users.Seed(adminUser, guestUser, otherUser)

	h.admin = Identity{Role: service.RoleAdministrator, User: adminUser}
	h.guest = Identity{Role: service.RoleGuest, User: guestUser}
	h.other = Identity{Role: service.RoleGuest, User: otherUser}
	return h
}

// seedComment stores a comment inserted offset after the harness clock
func (h *testHarness) seedComment(id int64, pid *int64, status models.CommentStatus, nick string, offset time.Duration) *models.Comment {
	at := h.clock.Now().Add(offset)
	c := &models.Comment{
		ID:         id,
		ParentID:   pid,
		ReplyToID:  pid,
		Status:     status,
		Content:    "comment " + nick,
		Nick:       nick,
		Mail:       nick + "@example.com",
		Link:       "https://" + nick + ".example.com",
		IP:         "10.0.0.1",
		URL:        "/post/1",
		InsertedAt: at,
		CreatedAt:  at,
		UpdatedAt:  at,
	}
	h.comments.Seed(c)
	return c
}

func request(content string) *models.CommentRequest {
	return &models.CommentRequest{
		Comment: content,
		Nick:    "ann",
		Mail:    "ann@example.com",
		Link:    "https://ann.example.com",
		UA:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		URL:     "/post/1",
		IP:      "203.0.113.7",
	}
}

func int64p(n int64) *int64 { return &n }

func expectErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("Expected %v, got %v", target, err)
	}
}

func waitForEvent(t *testing.T, n *mocks.MockNotifier, eventType string) notify.Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case e := <-n.Delivered:
			if e.Type == eventType {
				return e
			}
		case <-timeout:
			t.Fatalf("No %s notification delivered", eventType)
			return notify.Event{}
		}
	}
}

var ctx = context.Background()

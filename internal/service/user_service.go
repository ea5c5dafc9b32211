package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/threaded-comments-api/internal/auth"
	"github.com/threaded-comments-api/internal/config"
	"github.com/threaded-comments-api/internal/models"
	"github.com/threaded-comments-api/internal/notify"
	"github.com/threaded-comments-api/internal/repository"
	"github.com/threaded-comments-api/internal/validation"
)

const (
	userPageSize    = 10
	verifyTokenTTL  = time.Hour
	verifyTokenSize = 4
)

// userService is the concrete implementation of UserService
type userService struct {
	users    repository.UserRepository
	notifier notify.Notifier
	auth     config.AuthConfig
	siteURL  string
	now      func() time.Time
	log      zerolog.Logger

	// serializes the lookup, count and insert of Register
	registerMu sync.Mutex
}

func newUserService(repos *repository.Repositories, deps Dependencies, cfg *config.Config, log zerolog.Logger) *userService {
	return &userService{
		users:    repos.User,
		notifier: deps.Notifier,
		auth:     cfg.Auth,
		siteURL:  strings.TrimRight(cfg.Site.URL, "/"),
		now:      deps.clock(),
		log:      log.With().Str("service", "user").Logger(),
	}
}

// Register creates an account. The first account becomes the administrator;
// every later one waits for email verification and verify is true.
func (s *userService) Register(ctx context.Context, req *models.RegisterRequest) (bool, error) {
	if errs := validation.ValidateRegistration(req); len(errs) > 0 {
		return false, validationf("%s", validation.Join(errs))
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}

	s.registerMu.Lock()
	defer s.registerMu.Unlock()

	existing, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		return false, upstream("find user", err)
	}
	now := s.now()

	if existing != nil {
		if !existing.PendingVerification() {
			return false, ErrUserRegistered
		}
		existing.DisplayName = req.DisplayName
		existing.URL = req.URL
		existing.PasswordHash = hash
		token, err := s.startVerification(existing, now)
		if err != nil {
			return false, err
		}
		if err := s.users.Update(ctx, existing); err != nil {
			return false, upstream("update user", err)
		}
		s.log.Info().Int64("user_id", existing.ID).Msg("Verification refreshed")
		s.sendVerification(existing, token)
		return true, nil
	}

	count, err := s.users.Count(ctx)
	if err != nil {
		return false, upstream("count users", err)
	}

	user := &models.User{
		Email:        req.Email,
		DisplayName:  req.DisplayName,
		PasswordHash: hash,
		URL:          req.URL,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var token string
	if count == 0 {
		user.Type = models.AccountAdministrator
	} else if token, err = s.startVerification(user, now); err != nil {
		return false, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		return false, upstream("insert user", err)
	}

	s.log.Info().Int64("user_id", user.ID).Str("type", user.Type).Msg("User registered")

	if token == "" {
		return false, nil
	}
	s.sendVerification(user, token)
	return true, nil
}

// startVerification stores a fresh verification token in the account type
func (s *userService) startVerification(u *models.User, now time.Time) (string, error) {
	token, err := randomDigits(verifyTokenSize)
	if err != nil {
		return "", fmt.Errorf("generate verification token: %w", err)
	}
	u.Type = models.VerifyType(token, now.Add(verifyTokenTTL))
	u.UpdatedAt = now
	return token, nil
}

func (s *userService) sendVerification(u *models.User, token string) {
	if s.notifier == nil {
		return
	}
	q := url.Values{}
	q.Set("token", token)
	q.Set("email", u.Email)
	link := s.siteURL + "/api/verification?" + q.Encode()

	event := notify.UserVerify(u.Email, u.DisplayName, link)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := s.notifier.Notify(ctx, event); err != nil {
			s.log.Error().Err(err).Str("event", event.Type).Msg("Failed to send notification")
		}
	}()
}

// Login checks credentials and returns the profile with a signed token
func (s *userService) Login(ctx context.Context, email, password string) (*models.UserProfile, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, upstream("find user", err)
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, password) {
		return nil, ErrUnauthorized
	}
	if user.PendingVerification() {
		return nil, ErrUnauthorized
	}

	token, err := auth.Sign(user.Email, s.auth.JWTKey, s.auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	profile := userProfile(user)
	profile.Token = token
	s.log.Info().Int64("user_id", user.ID).Msg("User logged in")
	return &profile, nil
}

// Profile returns the caller's own account
func (s *userService) Profile(_ context.Context, caller Identity) (*models.UserProfile, error) {
	if !caller.Authenticated() {
		return nil, ErrUnauthorized
	}
	profile := userProfile(caller.User)
	return &profile, nil
}

// UpdateProfile applies patch to the caller's account
func (s *userService) UpdateProfile(ctx context.Context, caller Identity, patch *models.UserPatch) (*models.UserProfile, error) {
	if !caller.Authenticated() {
		return nil, ErrUnauthorized
	}
	u := *caller.User

	if patch.DisplayName != nil {
		u.DisplayName = *patch.DisplayName
	}
	if patch.Label != nil {
		u.Label = *patch.Label
	}
	if patch.URL != nil {
		u.URL = *patch.URL
	}
	if patch.Password != nil {
		if len([]rune(*patch.Password)) < models.MinPasswordLength {
			return nil, validationf("password must be at least %d characters", models.MinPasswordLength)
		}
		hash, err := auth.HashPassword(*patch.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = hash
	}
	u.UpdatedAt = s.now()

	if err := s.users.Update(ctx, &u); err != nil {
		return nil, upstream("update user", err)
	}
	profile := userProfile(&u)
	return &profile, nil
}

// Verify confirms an email address with the token sent at registration
func (s *userService) Verify(ctx context.Context, email, token string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return upstream("find user", err)
	}
	if user == nil {
		return ErrNotFound
	}

	expected, expiresAt, ok := models.ParseVerifyType(user.Type)
	if !ok || token != expected || !s.now().Before(expiresAt) {
		return ErrTokenExpired
	}

	user.Type = models.AccountGuest
	user.UpdatedAt = s.now()
	if err := s.users.Update(ctx, user); err != nil {
		return upstream("update user", err)
	}
	s.log.Info().Int64("user_id", user.ID).Msg("User verified")
	return nil
}

// SetType changes the account type of another user
func (s *userService) SetType(ctx context.Context, caller Identity, userID int64, accountType string) error {
	if !caller.IsAdmin() {
		return ErrUnauthorized
	}
	if !models.ValidAccountTypes[accountType] {
		return validationf("type must be administrator or guest")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return upstream("find user", err)
	}
	if user == nil {
		return ErrNotFound
	}

	user.Type = accountType
	user.UpdatedAt = s.now()
	if err := s.users.Update(ctx, user); err != nil {
		return upstream("update user", err)
	}
	s.log.Info().Int64("user_id", userID).Str("type", accountType).Msg("User type changed")
	return nil
}

// List returns a page of accounts
func (s *userService) List(ctx context.Context, caller Identity, page int) (*models.UserPage, error) {
	if !caller.IsAdmin() {
		return nil, ErrUnauthorized
	}
	page, _ = normalizePage(page, userPageSize)

	users, total, err := s.users.List(ctx, page, userPageSize)
	if err != nil {
		return nil, upstream("list users", err)
	}

	data := make([]models.UserProfile, 0, len(users))
	for _, u := range users {
		data = append(data, userProfile(u))
	}
	return &models.UserPage{
		Data:       data,
		Page:       page,
		PageSize:   userPageSize,
		TotalPages: models.TotalPages(total, userPageSize),
	}, nil
}

func randomDigits(n int) (string, error) {
	var b strings.Builder
	ten := big.NewInt(10)
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}

package service

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/threaded-comments-api/internal/auth"
	"github.com/threaded-comments-api/internal/models"
)

// Role is the privilege a caller authenticates with
type Role int

const (
	RoleAnonymous Role = iota
	RoleGuest
	RoleAdministrator
)

func (r Role) String() string {
	switch r {
	case RoleAdministrator:
		return models.AccountAdministrator
	case RoleGuest:
		return models.AccountGuest
	default:
		return "anonymous"
	}
}

// Identity is the resolved caller of an operation. User is nil for anonymous callers.
type Identity struct {
	Role Role
	User *models.User
}

// Anonymous is the identity of a caller without a usable token
var Anonymous = Identity{Role: RoleAnonymous}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdministrator
}

func (i Identity) Authenticated() bool {
	return i.Role != RoleAnonymous && i.User != nil
}

// Email returns the account email, empty for anonymous callers
func (i Identity) Email() string {
	if i.User == nil {
		return ""
	}
	return i.User.Email
}

// visibleStatuses is the status filter applied to listings for this caller
func (i Identity) visibleStatuses() []models.CommentStatus {
	if i.IsAdmin() {
		return nil
	}
	return []models.CommentStatus{models.StatusApproved}
}

// UserFinder looks up accounts by email
type UserFinder interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// Policy resolves bearer tokens into identities
type Policy struct {
	users UserFinder
	key   string
	log   zerolog.Logger
}

// NewPolicy creates a Policy verifying tokens with key
func NewPolicy(users UserFinder, key string, log zerolog.Logger) *Policy {
	return &Policy{
		users: users,
		key:   key,
		log:   log.With().Str("service", "policy").Logger(),
	}
}

// Authorize maps a token to an identity. A missing, invalid or expired
// token, an unknown account and an account pending verification all
// resolve to Anonymous. Only a failing user lookup is an error.
func (p *Policy) Authorize(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Anonymous, nil
	}

	email, err := auth.Verify(token, p.key)
	if err != nil {
		p.log.Debug().Err(err).Msg("Token rejected, treating caller as anonymous")
		return Anonymous, nil
	}

	user, err := p.users.GetByEmail(ctx, email)
	if err != nil {
		return Anonymous, upstream("find user", err)
	}
	if user == nil || user.PendingVerification() {
		return Anonymous, nil
	}

	if user.IsAdmin() {
		return Identity{Role: RoleAdministrator, User: user}, nil
	}
	return Identity{Role: RoleGuest, User: user}, nil
}

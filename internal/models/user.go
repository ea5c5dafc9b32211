package models

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	AccountAdministrator = "administrator"
	AccountGuest         = "guest"

	verifyPrefix = "verify:"
)

// ValidAccountTypes defines the account types an administrator may assign
var ValidAccountTypes = map[string]bool{
	AccountAdministrator: true,
	AccountGuest:         true,
}

var verifyPattern = regexp.MustCompile(`^verify:(\d{4}):(\d+)$`)

// User represents a registered account
type User struct {
	ID           int64     `json:"objectId" db:"id"`
	Email        string    `json:"email" db:"email"`
	DisplayName  string    `json:"display_name" db:"display_name"`
	PasswordHash string    `json:"-" db:"password"`
	Type         string    `json:"type" db:"type"`
	Label        string    `json:"label" db:"label"`
	URL          string    `json:"url" db:"url"`
	Avatar       string    `json:"avatar" db:"avatar"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// IsAdmin reports whether the account holds the administrator type
func (u *User) IsAdmin() bool {
	return u.Type == AccountAdministrator
}

// PendingVerification reports whether the account still waits for email confirmation
func (u *User) PendingVerification() bool {
	return strings.HasPrefix(u.Type, verifyPrefix)
}

// VerifyType builds the transient account type holding a verification token
func VerifyType(token string, expiresAt time.Time) string {
	return fmt.Sprintf("%s%s:%d", verifyPrefix, token, expiresAt.UnixMilli())
}

// ParseVerifyType extracts the token and expiry from a verify account type
func ParseVerifyType(accountType string) (token string, expiresAt time.Time, ok bool) {
	m := verifyPattern.FindStringSubmatch(accountType)
	if m == nil {
		return "", time.Time{}, false
	}
	ms, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return "", time.Time{}, false
	}
	return m[1], time.UnixMilli(ms), true
}

// UserPatch holds the optional fields of a profile update
type UserPatch struct {
	DisplayName *string `json:"display_name,omitempty"`
	Label       *string `json:"label,omitempty"`
	URL         *string `json:"url,omitempty"`
	Password    *string `json:"password,omitempty"`
}

// RegisterRequest is the body of a registration
type RegisterRequest struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	URL         string `json:"url"`
}

// MinPasswordLength is the shortest accepted password
const MinPasswordLength = 6

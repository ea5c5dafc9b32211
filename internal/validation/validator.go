package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/threaded-comments-api/internal/models"
)

var (
	emailRegex  = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	verifyRegex = regexp.MustCompile(`^verify:\d{4}:\d+$`)
)

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Join renders a list of errors as one message
func Join(errs []ValidationError) string {
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

// IsEmail reports whether s looks like an email address
func IsEmail(s string) bool {
	return emailRegex.MatchString(s)
}

// Submission is the part of a new comment checked before moderation
type Submission struct {
	URL     string
	Content string
	Mail    string
	Nick    string
}

// ValidateSubmission checks a comment posted through the API
func ValidateSubmission(s Submission) []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(s.URL) == "" {
		errors = append(errors, ValidationError{Field: "url", Message: "url is required"})
	}
	errors = append(errors, validateContent(s.Content)...)
	if s.Mail != "" && !IsEmail(s.Mail) {
		errors = append(errors, ValidationError{Field: "mail", Message: "invalid email format", Value: s.Mail})
	}

	return errors
}

// ValidateRegistration checks a new account request
func ValidateRegistration(req *models.RegisterRequest) []ValidationError {
	var errors []ValidationError

	if req.Email == "" {
		errors = append(errors, ValidationError{Field: "email", Message: "email is required"})
	} else if !IsEmail(req.Email) {
		errors = append(errors, ValidationError{Field: "email", Message: "invalid email format", Value: req.Email})
	}
	if utf8.RuneCountInString(req.Password) < models.MinPasswordLength {
		errors = append(errors, ValidationError{
			Field:   "password",
			Message: fmt.Sprintf("password must be at least %d characters", models.MinPasswordLength),
		})
	}

	return errors
}

// Validator checks the rows of a Waline import document and tracks
// identifiers seen so far for uniqueness and reference checks
type Validator struct {
	userEmailCache map[string]bool
	userIDCache    map[int64]bool
	commentIDCache map[int64]bool
	counterIDCache map[int64]bool
	knownComments  map[int64]bool
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{
		userEmailCache: make(map[string]bool),
		userIDCache:    make(map[int64]bool),
		commentIDCache: make(map[int64]bool),
		counterIDCache: make(map[int64]bool),
		knownComments:  make(map[int64]bool),
	}
}

// SetCommentIDs registers every comment id present in the document so
// replies may reference parents that appear later
func (v *Validator) SetCommentIDs(ids []int64) {
	for _, id := range ids {
		v.knownComments[id] = true
	}
}

// AddUser records an accepted user for duplicate and reference checks
func (v *Validator) AddUser(u *models.WalineUser) {
	v.userEmailCache[strings.ToLower(u.Email)] = true
	v.userIDCache[u.ObjectID] = true
}

// AddCommentID records an accepted comment id
func (v *Validator) AddCommentID(id int64) {
	v.commentIDCache[id] = true
}

// AddCounterID records an accepted counter id
func (v *Validator) AddCounterID(id int64) {
	v.counterIDCache[id] = true
}

// ValidateUser validates a user row
func (v *Validator) ValidateUser(u *models.WalineUser) []ValidationError {
	var errors []ValidationError

	if u.ObjectID <= 0 {
		errors = append(errors, ValidationError{Field: "objectId", Message: "objectId must be a positive integer", Value: u.ObjectID})
	} else if v.userIDCache[u.ObjectID] {
		errors = append(errors, ValidationError{Field: "objectId", Message: "duplicate objectId", Value: u.ObjectID})
	}

	if u.Email == "" {
		errors = append(errors, ValidationError{Field: "email", Message: "email is required"})
	} else if !IsEmail(u.Email) {
		errors = append(errors, ValidationError{Field: "email", Message: "invalid email format", Value: u.Email})
	} else if v.userEmailCache[strings.ToLower(u.Email)] {
		errors = append(errors, ValidationError{Field: "email", Message: "duplicate email", Value: u.Email})
	}

	if !models.ValidAccountTypes[u.Type] && !verifyRegex.MatchString(u.Type) {
		errors = append(errors, ValidationError{
			Field:   "type",
			Message: "invalid type, must be one of: administrator, guest",
			Value:   u.Type,
		})
	}

	return errors
}

// ValidateComment validates a comment row
func (v *Validator) ValidateComment(c *models.WalineComment) []ValidationError {
	var errors []ValidationError

	if c.ObjectID <= 0 {
		errors = append(errors, ValidationError{Field: "objectId", Message: "objectId must be a positive integer", Value: c.ObjectID})
	} else if v.commentIDCache[c.ObjectID] {
		errors = append(errors, ValidationError{Field: "objectId", Message: "duplicate objectId", Value: c.ObjectID})
	}

	if strings.TrimSpace(c.URL) == "" {
		errors = append(errors, ValidationError{Field: "url", Message: "url is required"})
	}
	errors = append(errors, validateContent(c.Comment)...)

	if !models.CommentStatus(c.Status).Valid() {
		errors = append(errors, ValidationError{
			Field:   "status",
			Message: "invalid status, must be one of: waiting, approved, spam",
			Value:   c.Status,
		})
	}

	if c.Mail != "" && !IsEmail(c.Mail) {
		errors = append(errors, ValidationError{Field: "mail", Message: "invalid email format", Value: c.Mail})
	}

	if c.PID != nil {
		if *c.PID == c.ObjectID {
			errors = append(errors, ValidationError{Field: "pid", Message: "comment cannot reply to itself", Value: *c.PID})
		} else if len(v.knownComments) > 0 && !v.knownComments[*c.PID] {
			errors = append(errors, ValidationError{Field: "pid", Message: "referenced comment does not exist", Value: *c.PID})
		}
	}

	if c.UserID != nil && len(v.userIDCache) > 0 && !v.userIDCache[*c.UserID] {
		errors = append(errors, ValidationError{Field: "user_id", Message: "referenced user does not exist", Value: *c.UserID})
	}

	return errors
}

// ValidateCounter validates a counter row
func (v *Validator) ValidateCounter(c *models.WalineCounter) []ValidationError {
	var errors []ValidationError

	if c.ObjectID <= 0 {
		errors = append(errors, ValidationError{Field: "objectId", Message: "objectId must be a positive integer", Value: c.ObjectID})
	} else if v.counterIDCache[c.ObjectID] {
		errors = append(errors, ValidationError{Field: "objectId", Message: "duplicate objectId", Value: c.ObjectID})
	}
	if strings.TrimSpace(c.URL) == "" {
		errors = append(errors, ValidationError{Field: "url", Message: "url is required"})
	}
	if c.Time < 0 {
		errors = append(errors, ValidationError{Field: "time", Message: "time must not be negative", Value: c.Time})
	}

	return errors
}

func validateContent(content string) []ValidationError {
	if strings.TrimSpace(content) == "" {
		return []ValidationError{{Field: "comment", Message: "comment is required"}}
	}
	if n := utf8.RuneCountInString(content); n > models.MaxCommentLength {
		return []ValidationError{{
			Field:   "comment",
			Message: fmt.Sprintf("comment exceeds maximum of %d characters (has %d)", models.MaxCommentLength, n),
		}}
	}
	return nil
}

package validation

import (
	"strings"
	"testing"

	"github.com/threaded-comments-api/internal/models"
)

func int64p(n int64) *int64 { return &n }

func fields(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Field
	}
	return out
}

func TestValidateUser(t *testing.T) {
	validator := NewValidator()

	tests := []struct {
		name       string
		user       *models.WalineUser
		wantFields []string
	}{
		{
			name: "valid administrator",
			user: &models.WalineUser{ObjectID: 1, Email: "admin@example.com", Type: "administrator"},
		},
		{
			name: "pending verification type is accepted",
			user: &models.WalineUser{ObjectID: 2, Email: "g@example.com", Type: "verify:1234:1700000000000"},
		},
		{
			name:       "missing id",
			user:       &models.WalineUser{Email: "a@example.com", Type: "guest"},
			wantFields: []string{"objectId"},
		},
		{
			name:       "invalid email format",
			user:       &models.WalineUser{ObjectID: 3, Email: "not-an-email", Type: "guest"},
			wantFields: []string{"email"},
		},
		{
			name:       "unknown type",
			user:       &models.WalineUser{ObjectID: 4, Email: "b@example.com", Type: "root"},
			wantFields: []string{"type"},
		},
		{
			name:       "everything wrong",
			user:       &models.WalineUser{},
			wantFields: []string{"objectId", "email", "type"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := validator.ValidateUser(tt.user)
			got := fields(errs)
			if strings.Join(got, ",") != strings.Join(tt.wantFields, ",") {
				t.Errorf("expected errors on %v, got %v", tt.wantFields, errs)
			}
		})
	}
}

func TestValidateUser_DuplicateEmail(t *testing.T) {
	validator := NewValidator()
	first := &models.WalineUser{ObjectID: 1, Email: "Dup@Example.com", Type: "guest"}
	if errs := validator.ValidateUser(first); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	validator.AddUser(first)

	errs := validator.ValidateUser(&models.WalineUser{ObjectID: 2, Email: "dup@example.com", Type: "guest"})
	if len(errs) != 1 || errs[0].Message != "duplicate email" {
		t.Errorf("expected duplicate email error, got %v", errs)
	}
}

func TestValidateComment(t *testing.T) {
	validator := NewValidator()
	validator.SetCommentIDs([]int64{1, 2, 3})
	validator.AddUser(&models.WalineUser{ObjectID: 10, Email: "u@example.com"})

	tests := []struct {
		name       string
		comment    *models.WalineComment
		wantFields []string
	}{
		{
			name:    "valid root",
			comment: &models.WalineComment{ObjectID: 1, URL: "/post/1", Comment: "hello", Status: "approved"},
		},
		{
			name:    "valid reply by user",
			comment: &models.WalineComment{ObjectID: 2, URL: "/post/1", Comment: "hi", Status: "waiting", PID: int64p(1), UserID: int64p(10)},
		},
		{
			name:       "missing url and content",
			comment:    &models.WalineComment{ObjectID: 3, Status: "spam"},
			wantFields: []string{"url", "comment"},
		},
		{
			name:       "unknown status",
			comment:    &models.WalineComment{ObjectID: 3, URL: "/a", Comment: "x", Status: "deleted"},
			wantFields: []string{"status"},
		},
		{
			name:       "parent missing from document",
			comment:    &models.WalineComment{ObjectID: 3, URL: "/a", Comment: "x", Status: "approved", PID: int64p(99)},
			wantFields: []string{"pid"},
		},
		{
			name:       "self reply",
			comment:    &models.WalineComment{ObjectID: 3, URL: "/a", Comment: "x", Status: "approved", PID: int64p(3)},
			wantFields: []string{"pid"},
		},
		{
			name:       "unknown user",
			comment:    &models.WalineComment{ObjectID: 3, URL: "/a", Comment: "x", Status: "approved", UserID: int64p(77)},
			wantFields: []string{"user_id"},
		},
		{
			name:       "bad mail",
			comment:    &models.WalineComment{ObjectID: 3, URL: "/a", Comment: "x", Status: "approved", Mail: "nope"},
			wantFields: []string{"mail"},
		},
		{
			name:       "too long",
			comment:    &models.WalineComment{ObjectID: 3, URL: "/a", Comment: strings.Repeat("a", models.MaxCommentLength+1), Status: "approved"},
			wantFields: []string{"comment"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := validator.ValidateComment(tt.comment)
			got := fields(errs)
			if strings.Join(got, ",") != strings.Join(tt.wantFields, ",") {
				t.Errorf("expected errors on %v, got %v", tt.wantFields, errs)
			}
		})
	}
}

func TestValidateComment_DuplicateID(t *testing.T) {
	validator := NewValidator()
	c := &models.WalineComment{ObjectID: 5, URL: "/a", Comment: "x", Status: "approved"}
	if errs := validator.ValidateComment(c); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	validator.AddCommentID(5)

	if errs := validator.ValidateComment(c); len(errs) != 1 || errs[0].Field != "objectId" {
		t.Errorf("expected duplicate objectId, got %v", errs)
	}
}

func TestValidateCounter(t *testing.T) {
	validator := NewValidator()
	if errs := validator.ValidateCounter(&models.WalineCounter{ObjectID: 1, URL: "/a", Time: 3}); len(errs) != 0 {
		t.Errorf("unexpected errors: %v", errs)
	}
	errs := validator.ValidateCounter(&models.WalineCounter{Time: -1})
	if strings.Join(fields(errs), ",") != "objectId,url,time" {
		t.Errorf("unexpected errors: %v", errs)
	}
}

func TestValidateSubmission(t *testing.T) {
	if errs := ValidateSubmission(Submission{URL: "/a", Content: "hi"}); len(errs) != 0 {
		t.Errorf("unexpected errors: %v", errs)
	}
	errs := ValidateSubmission(Submission{Content: "  ", Mail: "x"})
	if strings.Join(fields(errs), ",") != "url,comment,mail" {
		t.Errorf("unexpected errors: %v", errs)
	}
}

func TestValidateRegistration(t *testing.T) {
	ok := &models.RegisterRequest{Email: "a@example.com", Password: "123456"}
	if errs := ValidateRegistration(ok); len(errs) != 0 {
		t.Errorf("unexpected errors: %v", errs)
	}

	errs := ValidateRegistration(&models.RegisterRequest{Email: "bad", Password: "12345"})
	if strings.Join(fields(errs), ",") != "email,password" {
		t.Errorf("unexpected errors: %v", errs)
	}
}

func TestJoin(t *testing.T) {
	msg := Join([]ValidationError{{Field: "url", Message: "url is required"}, {Field: "mail", Message: "bad"}})
	if msg != "url: url is required; mail: bad" {
		t.Errorf("unexpected message %q", msg)
	}
}

package spam_test

import (
	"context"
	"errors"
	"testing"

	"github.com/threaded-comments-api/internal/models"
	"github.com/threaded-comments-api/internal/spam"
)

type stubChecker struct {
	result spam.Result
	err    error
	calls  int
}

func (s *stubChecker) CheckComment(context.Context, spam.Submission) (spam.Result, error) {
	s.calls++
	return s.result, s.err
}

func TestClassify(t *testing.T) {
	forbidden := []string{"casino", "Viagra"}
	tests := []struct {
		name    string
		audit   bool
		admin   bool
		content string
		checker *stubChecker
		want    spam.Verdict
		calls   int
	}{
		{"admin with forbidden word", false, true, "best casino", &stubChecker{result: spam.Junk}, spam.Approved, 0},
		{"admin in audit mode", true, true, "hello", &stubChecker{}, spam.Approved, 0},
		{"audit mode", true, false, "hello", &stubChecker{}, spam.Pending, 0},
		{"audit mode beats forbidden word", true, false, "casino", &stubChecker{}, spam.Pending, 0},
		{"forbidden word", false, false, "visit my casino", &stubChecker{}, spam.Spam, 0},
		{"forbidden word is case sensitive", false, false, "viagra", &stubChecker{result: spam.Ham}, spam.Approved, 1},
		{"remote ham", false, false, "nice post", &stubChecker{result: spam.Ham}, spam.Approved, 1},
		{"remote spam", false, false, "nice post", &stubChecker{result: spam.Junk}, spam.Spam, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := spam.NewClassifier(tt.audit, forbidden, tt.checker)
			got, err := c.Classify(context.Background(), tt.admin, spam.Submission{Content: tt.content})
			if err != nil {
				t.Fatalf("Classify returned error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
			if tt.checker.calls != tt.calls {
				t.Errorf("expected %d remote calls, got %d", tt.calls, tt.checker.calls)
			}
		})
	}
}

func TestClassify_RemoteFailurePropagates(t *testing.T) {
	remoteErr := errors.New("connection refused")
	c := spam.NewClassifier(false, nil, &stubChecker{err: remoteErr})

	_, err := c.Classify(context.Background(), false, spam.Submission{Content: "hi"})
	if !errors.Is(err, remoteErr) {
		t.Errorf("expected wrapped remote error, got %v", err)
	}
}

func TestClassify_NilCheckerApproves(t *testing.T) {
	c := spam.NewClassifier(false, nil, nil)
	got, err := c.Classify(context.Background(), false, spam.Submission{Content: "hi"})
	if err != nil || got != spam.Approved {
		t.Errorf("expected approved, got %s (%v)", got, err)
	}
}

func TestVerdictStatus(t *testing.T) {
	if spam.Approved.Status() != models.StatusApproved {
		t.Error("approved should map to approved")
	}
	if spam.Pending.Status() != models.StatusWaiting {
		t.Error("pending should map to waiting")
	}
	if spam.Spam.Status() != models.StatusSpam {
		t.Error("spam should map to spam")
	}
}

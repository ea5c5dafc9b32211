// Package spam decides the initial moderation status of a new comment.
package spam

import (
	"context"
	"fmt"
	"strings"

	"github.com/threaded-comments-api/internal/models"
)

// Verdict is the outcome of classifying a submission
type Verdict int

const (
	Approved Verdict = iota
	Spam
	Pending
)

// Status maps a verdict onto the stored comment status
func (v Verdict) Status() models.CommentStatus {
	switch v {
	case Approved:
		return models.StatusApproved
	case Pending:
		return models.StatusWaiting
	default:
		return models.StatusSpam
	}
}

func (v Verdict) String() string {
	return string(v.Status())
}

// Result is the answer of a remote reputation service
type Result int

const (
	Ham Result = iota
	Junk
)

// Submission carries the fields sent to the reputation service
type Submission struct {
	Author    string
	Email     string
	IP        string
	UserAgent string
	Content   string
	URL       string
}

// Checker is a remote comment reputation service
type Checker interface {
	CheckComment(ctx context.Context, sub Submission) (Result, error)
}

// HamChecker accepts every comment, used when no remote service is configured
type HamChecker struct{}

func (HamChecker) CheckComment(context.Context, Submission) (Result, error) {
	return Ham, nil
}

// Classifier combines audit mode, the forbidden word list and a remote Checker
type Classifier struct {
	audit     bool
	forbidden []string
	checker   Checker
}

// NewClassifier creates a Classifier; a nil checker behaves like HamChecker
func NewClassifier(audit bool, forbidden []string, checker Checker) *Classifier {
	if checker == nil {
		checker = HamChecker{}
	}
	return &Classifier{audit: audit, forbidden: forbidden, checker: checker}
}

// Classify returns the verdict for sub. Administrators are always approved.
// A failing remote check is returned as an error and never as a verdict.
func (c *Classifier) Classify(ctx context.Context, admin bool, sub Submission) (Verdict, error) {
	if admin {
		return Approved, nil
	}
	if c.audit {
		return Pending, nil
	}
	if c.ContainsForbidden(sub.Content) {
		return Spam, nil
	}

	result, err := c.checker.CheckComment(ctx, sub)
	if err != nil {
		return Spam, fmt.Errorf("reputation check: %w", err)
	}
	if result == Ham {
		return Approved, nil
	}
	return Spam, nil
}

// ContainsForbidden reports whether content holds any forbidden word, case-sensitively
func (c *Classifier) ContainsForbidden(content string) bool {
	for _, word := range c.forbidden {
		if word != "" && strings.Contains(content, word) {
			return true
		}
	}
	return false
}

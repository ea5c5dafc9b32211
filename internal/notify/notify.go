// Package notify delivers comment and account events to mail or webhook workers.
package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/threaded-comments-api/internal/models"
)

// Event types
const (
	EventCommentCreated = "comment.created"
	EventUserVerify     = "user.verify"
)

// Event is the message body handed to a Notifier
type Event struct {
	Type    string          `json:"type"`
	Time    time.Time       `json:"time"`
	Comment *models.Comment `json:"comment,omitempty"`
	Parent  *models.Comment `json:"parent,omitempty"`
	Verify  *Verification   `json:"verify,omitempty"`
}

// Verification addresses an account confirmation mail
type Verification struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Link        string `json:"link"`
}

// CommentCreated builds the event sent after a comment is stored.
// parent is nil for root comments.
func CommentCreated(comment, parent *models.Comment) Event {
	return Event{Type: EventCommentCreated, Time: time.Now(), Comment: comment, Parent: parent}
}

// UserVerify builds the event carrying an account verification link
func UserVerify(email, displayName, link string) Event {
	return Event{
		Type:   EventUserVerify,
		Time:   time.Now(),
		Verify: &Verification{Email: email, DisplayName: displayName, Link: link},
	}
}

// Notifier delivers events; callers treat failures as non-fatal
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// LogNotifier only logs events, used when no broker is configured
type LogNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier creates a LogNotifier
func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log.With().Str("component", "notifier").Logger()}
}

func (n *LogNotifier) Notify(_ context.Context, event Event) error {
	e := n.log.Info().Str("event", event.Type)
	if event.Comment != nil {
		e = e.Int64("comment_id", event.Comment.ID).Str("url", event.Comment.URL)
	}
	if event.Verify != nil {
		e = e.Str("email", event.Verify.Email)
	}
	e.Msg("Notification skipped, no broker configured")
	return nil
}

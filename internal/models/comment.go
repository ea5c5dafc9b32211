package models

import (
	"time"
)

// CommentStatus is the moderation state of a comment
type CommentStatus string

const (
	StatusWaiting  CommentStatus = "waiting"
	StatusApproved CommentStatus = "approved"
	StatusSpam     CommentStatus = "spam"
)

// ValidStatuses defines allowed comment statuses
var ValidStatuses = map[CommentStatus]bool{
	StatusWaiting:  true,
	StatusApproved: true,
	StatusSpam:     true,
}

// Valid reports whether s is one of the known statuses
func (s CommentStatus) Valid() bool {
	return ValidStatuses[s]
}

// Comment represents a comment attached to a page url
type Comment struct {
	ID         int64         `json:"objectId" db:"id"`
	UserID     *int64        `json:"user_id,omitempty" db:"user_id"`
	ParentID   *int64        `json:"pid,omitempty" db:"pid"`
	ReplyToID  *int64        `json:"rid,omitempty" db:"rid"`
	Status     CommentStatus `json:"status" db:"status"`
	Sticky     bool          `json:"sticky" db:"sticky"`
	Like       int           `json:"like" db:"like"`
	Content    string        `json:"comment" db:"comment"`
	Nick       string        `json:"nick" db:"nick"`
	Mail       string        `json:"mail" db:"mail"`
	Link       string        `json:"link" db:"link"`
	UserAgent  string        `json:"ua" db:"ua"`
	IP         string        `json:"ip" db:"ip"`
	URL        string        `json:"url" db:"url"`
	InsertedAt time.Time     `json:"insertedAt" db:"inserted_at"`
	CreatedAt  time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time     `json:"updatedAt" db:"updated_at"`
}

// IsRoot reports whether the comment anchors a thread
func (c *Comment) IsRoot() bool {
	return c.ParentID == nil
}

// OwnedBy reports whether the comment was written by the given account
func (c *Comment) OwnedBy(userID int64) bool {
	return c.UserID != nil && *c.UserID == userID
}

// CommentSort selects the ordering of root comments
type CommentSort string

const (
	SortInsertedDesc CommentSort = "insertedAt_desc"
	SortInsertedAsc  CommentSort = "insertedAt_asc"
	SortLikeDesc     CommentSort = "like_desc"
)

// ParseCommentSort maps the sortBy query value, defaulting to newest first
func ParseCommentSort(s string) CommentSort {
	switch CommentSort(s) {
	case SortInsertedAsc:
		return SortInsertedAsc
	case SortLikeDesc:
		return SortLikeDesc
	default:
		return SortInsertedDesc
	}
}

// RootFilter selects root comments for a thread page
type RootFilter struct {
	URL      string
	Statuses []CommentStatus // empty means every status
	Sort     CommentSort
	Page     int
	PageSize int
}

// AdminFilter selects comments for the moderation listing
type AdminFilter struct {
	Mail     string // empty means every author
	Status   CommentStatus
	Keyword  string
	Page     int
	PageSize int
}

// CommentPatch holds the optional fields of a comment update
type CommentPatch struct {
	Status    *CommentStatus `json:"status,omitempty"`
	Like      *bool          `json:"like,omitempty"`
	Sticky    *bool          `json:"sticky,omitempty"`
	Content   *string        `json:"comment,omitempty"`
	Link      *string        `json:"link,omitempty"`
	Mail      *string        `json:"mail,omitempty"`
	Nick      *string        `json:"nick,omitempty"`
	UserAgent *string        `json:"ua,omitempty"`
	URL       *string        `json:"url,omitempty"`
}

// Apply copies the set fields onto c
func (p *CommentPatch) Apply(c *Comment) {
	if p.Status != nil {
		c.Status = *p.Status
	}
	if p.Like != nil {
		if *p.Like {
			c.Like++
		} else {
			c.Like--
		}
	}
	if p.Sticky != nil {
		c.Sticky = *p.Sticky
	}
	if p.Content != nil {
		c.Content = *p.Content
	}
	if p.Link != nil {
		c.Link = *p.Link
	}
	if p.Mail != nil {
		c.Mail = *p.Mail
	}
	if p.Nick != nil {
		c.Nick = *p.Nick
	}
	if p.UserAgent != nil {
		c.UserAgent = *p.UserAgent
	}
	if p.URL != nil {
		c.URL = *p.URL
	}
}

// CommentRequest is the body of a new comment submission
type CommentRequest struct {
	Comment string `json:"comment"`
	Link    string `json:"link"`
	Mail    string `json:"mail"`
	Nick    string `json:"nick"`
	UA      string `json:"ua"`
	URL     string `json:"url"`
	PID     *int64 `json:"pid,omitempty"`
	RID     *int64 `json:"rid,omitempty"`
	IP      string `json:"-"`
}

// MaxCommentLength is the maximum allowed characters in a comment body
const MaxCommentLength = 10000

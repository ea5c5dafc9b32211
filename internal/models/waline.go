package models

import (
	"time"
)

// Waline export tables, in document order
const (
	TableComment = "Comment"
	TableCounter = "Counter"
	TableUsers   = "Users"
)

// WalineTables lists the tables carried by an export document
var WalineTables = []string{TableComment, TableCounter, TableUsers}

// WalineExport is the Waline backup document
type WalineExport struct {
	Type    string     `json:"type"`
	Version int        `json:"version"`
	Time    int64      `json:"time"`
	Tables  []string   `json:"tables"`
	Data    WalineData `json:"data"`
}

// WalineData holds the rows of each table
type WalineData struct {
	Comment []WalineComment `json:"Comment"`
	Counter []WalineCounter `json:"Counter"`
	Users   []WalineUser    `json:"Users"`
}

// WalineComment is a comment row as Waline serialises it
type WalineComment struct {
	ObjectID   int64      `json:"objectId"`
	UserID     *int64     `json:"user_id"`
	Comment    string     `json:"comment"`
	InsertedAt *time.Time `json:"insertedAt"`
	IP         string     `json:"ip"`
	Link       string     `json:"link"`
	Mail       string     `json:"mail"`
	Nick       string     `json:"nick"`
	PID        *int64     `json:"pid"`
	RID        *int64     `json:"rid"`
	Sticky     bool       `json:"sticky"`
	Status     string     `json:"status"`
	Like       int        `json:"like"`
	UA         string     `json:"ua"`
	URL        string     `json:"url"`
	CreatedAt  *time.Time `json:"createdAt"`
	UpdatedAt  *time.Time `json:"updatedAt"`
}

// WalineCounter is a counter row as Waline serialises it
type WalineCounter struct {
	ObjectID  int64      `json:"objectId"`
	Time      int        `json:"time"`
	Reaction0 int        `json:"reaction0"`
	Reaction1 int        `json:"reaction1"`
	Reaction2 int        `json:"reaction2"`
	Reaction3 int        `json:"reaction3"`
	Reaction4 int        `json:"reaction4"`
	Reaction5 int        `json:"reaction5"`
	Reaction6 int        `json:"reaction6"`
	Reaction7 int        `json:"reaction7"`
	Reaction8 int        `json:"reaction8"`
	URL       string     `json:"url"`
	CreatedAt *time.Time `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt"`
}

// WalineUser is a user row as Waline serialises it
type WalineUser struct {
	ObjectID    int64      `json:"objectId"`
	DisplayName string     `json:"display_name"`
	Email       string     `json:"email"`
	Password    string     `json:"password"`
	Type        string     `json:"type"`
	Label       string     `json:"label"`
	URL         string     `json:"url"`
	Avatar      string     `json:"avatar"`
	CreatedAt   *time.Time `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt"`
}

// ToWalineComment converts a stored comment to its export row
func ToWalineComment(c *Comment) WalineComment {
	return WalineComment{
		ObjectID:   c.ID,
		UserID:     c.UserID,
		Comment:    c.Content,
		InsertedAt: timePtr(c.InsertedAt),
		IP:         c.IP,
		Link:       c.Link,
		Mail:       c.Mail,
		Nick:       c.Nick,
		PID:        c.ParentID,
		RID:        c.ReplyToID,
		Sticky:     c.Sticky,
		Status:     string(c.Status),
		Like:       c.Like,
		UA:         c.UserAgent,
		URL:        c.URL,
		CreatedAt:  timePtr(c.CreatedAt),
		UpdatedAt:  timePtr(c.UpdatedAt),
	}
}

// ToComment converts an export row back to a comment, filling missing timestamps with now
func (w *WalineComment) ToComment(now time.Time) *Comment {
	created := timeOr(w.CreatedAt, now)
	return &Comment{
		ID:         w.ObjectID,
		UserID:     w.UserID,
		ParentID:   w.PID,
		ReplyToID:  w.RID,
		Status:     CommentStatus(w.Status),
		Sticky:     w.Sticky,
		Like:       w.Like,
		Content:    w.Comment,
		Nick:       w.Nick,
		Mail:       w.Mail,
		Link:       w.Link,
		UserAgent:  w.UA,
		IP:         w.IP,
		URL:        w.URL,
		InsertedAt: timeOr(w.InsertedAt, created),
		CreatedAt:  created,
		UpdatedAt:  timeOr(w.UpdatedAt, created),
	}
}

// ToWalineCounter converts a stored counter to its export row
func ToWalineCounter(c *Counter) WalineCounter {
	r := c.Reactions
	return WalineCounter{
		ObjectID:  c.ID,
		Time:      c.Time,
		Reaction0: r[0],
		Reaction1: r[1],
		Reaction2: r[2],
		Reaction3: r[3],
		Reaction4: r[4],
		Reaction5: r[5],
		Reaction6: r[6],
		Reaction7: r[7],
		Reaction8: r[8],
		URL:       c.URL,
		CreatedAt: timePtr(c.CreatedAt),
		UpdatedAt: timePtr(c.UpdatedAt),
	}
}

// ToCounter converts an export row back to a counter
func (w *WalineCounter) ToCounter(now time.Time) *Counter {
	created := timeOr(w.CreatedAt, now)
	return &Counter{
		ID:   w.ObjectID,
		URL:  w.URL,
		Time: w.Time,
		Reactions: [9]int{
			w.Reaction0, w.Reaction1, w.Reaction2, w.Reaction3, w.Reaction4,
			w.Reaction5, w.Reaction6, w.Reaction7, w.Reaction8,
		},
		CreatedAt: created,
		UpdatedAt: timeOr(w.UpdatedAt, created),
	}
}

// ToWalineUser converts a stored user to its export row, password hash included
func ToWalineUser(u *User) WalineUser {
	return WalineUser{
		ObjectID:    u.ID,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		Password:    u.PasswordHash,
		Type:        u.Type,
		Label:       u.Label,
		URL:         u.URL,
		Avatar:      u.Avatar,
		CreatedAt:   timePtr(u.CreatedAt),
		UpdatedAt:   timePtr(u.UpdatedAt),
	}
}

// ToUser converts an export row back to a user
func (w *WalineUser) ToUser(now time.Time) *User {
	created := timeOr(w.CreatedAt, now)
	return &User{
		ID:           w.ObjectID,
		Email:        w.Email,
		DisplayName:  w.DisplayName,
		PasswordHash: w.Password,
		Type:         w.Type,
		Label:        w.Label,
		URL:          w.URL,
		Avatar:       w.Avatar,
		CreatedAt:    created,
		UpdatedAt:    timeOr(w.UpdatedAt, created),
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func timeOr(t *time.Time, fallback time.Time) time.Time {
	if t == nil || t.IsZero() {
		return fallback
	}
	return *t
}

package models

import (
	"time"
)

// Counter holds the per-page view and reaction tallies
type Counter struct {
	ID        int64     `json:"objectId" db:"id"`
	URL       string    `json:"url" db:"url"`
	Time      int       `json:"time" db:"time"`
	Reactions [9]int    `json:"-" db:"-"` // reaction0..reaction8
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

package models

import "time"

// Announcement is a parish notice shown on the announcements page
type Announcement struct {
	ID          int64     `json:"id,string"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        string    `json:"date"`
	Time        string    `json:"time,omitempty"`
	Venue       string    `json:"venue,omitempty"`
	CreatedByID int64     `json:"-"`
	CreatedBy   string    `json:"created_by"` // username of the author
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

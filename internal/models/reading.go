package models

import "time"

// Reading is the scripture set for one Sunday
type Reading struct {
	ID           int64     `json:"id,string"`
	Title        string    `json:"title"`
	ReadingText  string    `json:"reading_text"`
	SundayDate   string    `json:"sunday_date"` // YYYY-MM-DD, unique
	UploadedByID int64     `json:"-"`
	UploadedBy   string    `json:"uploaded_by"` // username of the uploader
	CreatedAt    time.Time `json:"created_at"`
}

package model

import "time"

// ObjectRef points to an object in a storage bucket.
type ObjectRef struct {
	Bucket string `json:"bucket"`
	Path   string `json:"path"`
}

// Document is an identity document uploaded by a user.
type Document struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Filename  string    `json:"filename"`
	MIMEType  string    `json:"mime_type"`
	Size      int64     `json:"size"`
	Ref       ObjectRef `json:"ref"`
	CreatedAt time.Time `json:"created_at"`
}

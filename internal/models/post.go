package models

import "time"

type Post struct {
	ID        int64     `json:"id,string"`
	AuthorID  string    `json:"author_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type CreatePostRequest struct {
	Title    string `json:"title" binding:"required,max=200"`
	Body     string `json:"body" binding:"required"`
	ImageURL string `json:"image_url"`
}

type UploadURLRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
}

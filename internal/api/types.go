package api

import (
	"time"

	"github.com/trossachsgroup/site-backend/internal/posts"
	"github.com/trossachsgroup/site-backend/internal/site"
)

// Error codes
const (
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeInvalidPostID   = "INVALID_POST_ID"
	CodePostNotFound    = "POST_NOT_FOUND"
	CodeServiceNotFound = "SERVICE_NOT_FOUND"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeRateLimited     = "RATE_LIMITED"
	CodeInternal        = "INTERNAL_ERROR"
)

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PostRequest is the body of create and update. id and date are ignored:
// the store assigns them.
type PostRequest struct {
	Title   string `json:"title"`
	Excerpt string `json:"excerpt"`
	Content string `json:"content"`
	Author  string `json:"author"`
	Image   string `json:"image"`
}

func (r PostRequest) Fields() posts.Fields {
	return posts.Fields{
		Title:   r.Title,
		Excerpt: r.Excerpt,
		Content: r.Content,
		Author:  r.Author,
		Image:   r.Image,
	}
}

type PostListResponse struct {
	Posts []posts.Post `json:"posts"`
	Count int          `json:"count"`
}

type ServiceListResponse struct {
	Services []site.Service `json:"services"`
}

type StatsResponse struct {
	Stats []site.Stat `json:"stats"`
}

type ContactAccepted struct {
	ID         string    `json:"id"`
	ReceivedAt time.Time `json:"receivedAt"`
}

type ContactListResponse struct {
	Messages []site.ContactMessage `json:"messages"`
	Count    int                   `json:"count"`
}

type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

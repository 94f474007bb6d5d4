// Package posts holds the blog content store: the post model, the in-memory
// store, id sequences, the draft editor and the service that fronts a store
// with a list cache and change events.
package posts

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DateLayout is the calendar date format of Post.Date
const DateLayout = "2006-01-02"

var (
	// ErrNotFound is returned when no post has the requested id
	ErrNotFound = errors.New("post not found")
	// ErrInvalidSeed is returned when seed posts are malformed
	ErrInvalidSeed = errors.New("invalid seed")
)

// Post is a single blog entry. ID and Date are assigned by the store on
// create and never change afterwards.
type Post struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Excerpt string `json:"excerpt"`
	Content string `json:"content"`
	Author  string `json:"author"`
	Image   string `json:"image"`
	Date    string `json:"date"`
}

// Fields is the editable part of a post. Updates replace all of them.
type Fields struct {
	Title   string `json:"title"`
	Excerpt string `json:"excerpt"`
	Content string `json:"content"`
	Author  string `json:"author"`
	Image   string `json:"image"`
}

// Fields returns the editable fields of p
func (p Post) Fields() Fields {
	return Fields{
		Title:   p.Title,
		Excerpt: p.Excerpt,
		Content: p.Content,
		Author:  p.Author,
		Image:   p.Image,
	}
}

func (p *Post) apply(f Fields) {
	p.Title = f.Title
	p.Excerpt = f.Excerpt
	p.Content = f.Content
	p.Author = f.Author
	p.Image = f.Image
}

// NewPost builds a post from fields with the given id and creation time
func NewPost(id int64, f Fields, created time.Time) Post {
	p := Post{ID: id, Date: created.Format(DateLayout)}
	p.apply(f)
	return p
}

// Repository is the content store contract shared by the in-memory store and
// the SQL repository. List returns posts in listing order: seeded posts in
// seed order, each created post ahead of everything older.
type Repository interface {
	List(ctx context.Context) ([]Post, error)
	Get(ctx context.Context, id int64) (Post, error)
	Create(ctx context.Context, f Fields) (Post, error)
	Update(ctx context.Context, id int64, f Fields) (Post, error)
	Delete(ctx context.Context, id int64) error
}

// ValidateSeed checks that seed posts have positive unique ids and dates in
// DateLayout. It returns the largest id.
func ValidateSeed(seed []Post) (int64, error) {
	var maxID int64
	seen := make(map[int64]struct{}, len(seed))
	for i, p := range seed {
		if p.ID <= 0 {
			return 0, fmt.Errorf("%w: post %d has non-positive id %d", ErrInvalidSeed, i, p.ID)
		}
		if _, dup := seen[p.ID]; dup {
			return 0, fmt.Errorf("%w: duplicate id %d", ErrInvalidSeed, p.ID)
		}
		seen[p.ID] = struct{}{}
		if _, err := time.Parse(DateLayout, p.Date); err != nil {
			return 0, fmt.Errorf("%w: post %d has date %q: %v", ErrInvalidSeed, p.ID, p.Date, err)
		}
		if p.ID > maxID {
			maxID = p.ID
		}
	}
	return maxID, nil
}

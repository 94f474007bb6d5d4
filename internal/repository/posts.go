package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/trossachsgroup/site-backend/internal/posts"
	"go.uber.org/zap"
)

const sequenceName = "posts"

// PostRepository stores posts in PostgreSQL or SQLite. Listing order is kept
// in sort_key: seeds take 0..n-1 and each create goes below the current
// minimum. Ids come from the post_sequence row, so they are never reused.
type PostRepository struct {
	db      *sql.DB
	dialect string
	logger  *zap.SugaredLogger
	now     func() time.Time
}

var _ posts.Repository = (*PostRepository)(nil)

type Option func(*PostRepository)

// WithClock sets the clock used to date new posts
func WithClock(now func() time.Time) Option {
	return func(r *PostRepository) {
		r.now = now
	}
}

func NewPostRepository(db *sql.DB, dialect string, logger *zap.SugaredLogger, opts ...Option) *PostRepository {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	r := &PostRepository{
		db:      db,
		dialect: dialect,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *PostRepository) q(query string) string {
	return rebind(r.dialect, query)
}

const postColumns = `id, title, excerpt, content, author, image, created_on`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (posts.Post, error) {
	var p posts.Post
	err := row.Scan(&p.ID, &p.Title, &p.Excerpt, &p.Content, &p.Author, &p.Image, &p.Date)
	return p, err
}

func (r *PostRepository) List(ctx context.Context) ([]posts.Post, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+postColumns+` FROM posts ORDER BY sort_key ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	list := []posts.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return list, nil
}

func (r *PostRepository) Get(ctx context.Context, id int64) (posts.Post, error) {
	row := r.db.QueryRowContext(ctx, r.q(`SELECT `+postColumns+` FROM posts WHERE id = ?`), id)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return posts.Post{}, posts.ErrNotFound
	}
	if err != nil {
		return posts.Post{}, fmt.Errorf("failed to get post %d: %w", id, err)
	}
	return p, nil
}

func (r *PostRepository) Create(ctx context.Context, f posts.Fields) (posts.Post, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return posts.Post{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Row lock on the sequence serializes concurrent creates
	var id int64
	err = tx.QueryRowContext(ctx,
		r.q(`UPDATE post_sequence SET value = value + 1 WHERE name = ? RETURNING value`),
		sequenceName,
	).Scan(&id)
	if err != nil {
		return posts.Post{}, fmt.Errorf("failed to allocate post id: %w", err)
	}

	var sortKey int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MIN(sort_key), 0) - 1 FROM posts`).Scan(&sortKey); err != nil {
		return posts.Post{}, fmt.Errorf("failed to read listing order: %w", err)
	}

	p := posts.NewPost(id, f, r.now())
	if err := r.insert(ctx, tx, p, sortKey); err != nil {
		return posts.Post{}, err
	}

	if err := tx.Commit(); err != nil {
		return posts.Post{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.logger.Debugw("Stored post", "id", p.ID)
	return p, nil
}

func (r *PostRepository) insert(ctx context.Context, tx *sql.Tx, p posts.Post, sortKey int64) error {
	_, err := tx.ExecContext(ctx, r.q(`
		INSERT INTO posts (id, sort_key, title, excerpt, content, author, image, created_on)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`),
		p.ID,
		sortKey,
		p.Title,
		p.Excerpt,
		p.Content,
		p.Author,
		p.Image,
		p.Date,
	)
	if err != nil {
		return fmt.Errorf("failed to store post %d: %w", p.ID, err)
	}
	return nil
}

func (r *PostRepository) Update(ctx context.Context, id int64, f posts.Fields) (posts.Post, error) {
	row := r.db.QueryRowContext(ctx, r.q(`
		UPDATE posts SET title = ?, excerpt = ?, content = ?, author = ?, image = ?
		WHERE id = ?
		RETURNING `+postColumns),
		f.Title,
		f.Excerpt,
		f.Content,
		f.Author,
		f.Image,
		id,
	)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return posts.Post{}, posts.ErrNotFound
	}
	if err != nil {
		return posts.Post{}, fmt.Errorf("failed to update post %d: %w", id, err)
	}
	return p, nil
}

func (r *PostRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.q(`DELETE FROM posts WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete post %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete post %d: %w", id, err)
	}
	if n == 0 {
		return posts.ErrNotFound
	}
	return nil
}

// Seed loads seed into an empty table, in order, and moves the id sequence
// past the largest seeded id. It reports whether anything was written.
func (r *PostRepository) Seed(ctx context.Context, seed []posts.Post) (bool, error) {
	maxID, err := posts.ValidateSeed(seed)
	if err != nil {
		return false, err
	}
	if len(seed) == 0 {
		return false, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var count int64
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to count posts: %w", err)
	}
	if count > 0 {
		r.logger.Infow("Posts table not empty; skipping seed", "count", count)
		return false, nil
	}

	for i, p := range seed {
		if err := r.insert(ctx, tx, p, int64(i)); err != nil {
			return false, err
		}
	}

	_, err = tx.ExecContext(ctx,
		r.q(`UPDATE post_sequence SET value = ? WHERE name = ? AND value < ?`),
		maxID, sequenceName, maxID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to advance post sequence: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.logger.Infow("Seeded posts", "count", len(seed))
	return true, nil
}

func (r *PostRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

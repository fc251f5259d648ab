package post

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresRepository implements Repository using PostgreSQL.
// Likes live in a post_likes join table; LikeIDs is hydrated with an
// aggregated array per post.
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{
		db:     db,
		logger: logger,
	}
}

const postSelect = `
	SELECT p.id, p.author_id, p.track_id, p.track_title, p.track_artist,
	       p.caption, p.created_at,
	       COALESCE(ARRAY_AGG(l.user_id) FILTER (WHERE l.user_id IS NOT NULL), '{}')
	FROM posts p
	LEFT JOIN post_likes l ON l.post_id = p.id`

// Create inserts a new post with a generated UUID.
func (r *PostgresRepository) Create(ctx context.Context, p *Post) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO posts (id, author_id, track_id, track_title, track_artist, caption, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.AuthorID, p.TrackID, p.TrackTitle, p.TrackArtist, p.Caption, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}

	return nil
}

// GetByID retrieves a post by its UUID.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Post, error) {
	query := postSelect + `
	WHERE p.id = $1
	GROUP BY p.id`

	row := r.db.QueryRowContext(ctx, query, id)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPostNotFound
	}
	return p, err
}

// Delete removes a post if authorID matches the post author.
func (r *PostgresRepository) Delete(ctx context.Context, id, authorID string) error {
	var dbAuthorID string
	if err := r.db.QueryRowContext(ctx, `SELECT author_id FROM posts WHERE id = $1`, id).Scan(&dbAuthorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPostNotFound
		}
		return fmt.Errorf("failed to look up post author: %w", err)
	}
	if dbAuthorID != authorID {
		return ErrNotAuthor
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}

	return nil
}

// Like records a like from the given user.
func (r *PostgresRepository) Like(ctx context.Context, postID, userID string) error {
	if err := r.checkExists(ctx, postID); err != nil {
		return err
	}

	query := `
		INSERT INTO post_likes (post_id, user_id, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (post_id, user_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, postID, userID); err != nil {
		return fmt.Errorf("failed to insert like: %w", err)
	}

	return nil
}

// Unlike removes a like from the given user.
func (r *PostgresRepository) Unlike(ctx context.Context, postID, userID string) error {
	if err := r.checkExists(ctx, postID); err != nil {
		return err
	}

	query := `DELETE FROM post_likes WHERE post_id = $1 AND user_id = $2`
	if _, err := r.db.ExecContext(ctx, query, postID, userID); err != nil {
		return fmt.Errorf("failed to delete like: %w", err)
	}

	return nil
}

// ListRecentExcluding retrieves posts whose author is not in the excluded set.
func (r *PostgresRepository) ListRecentExcluding(ctx context.Context, excluded map[string]struct{}, cap int) ([]*Post, error) {
	query := postSelect + `
	WHERE NOT (p.author_id = ANY($1))
	GROUP BY p.id
	ORDER BY p.created_at DESC, p.id ASC
	LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(setToSlice(excluded)), cap)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidate posts: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Warn("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	return scanPosts(rows)
}

// CountExcluding counts all posts whose author is not in the excluded set.
func (r *PostgresRepository) CountExcluding(ctx context.Context, excluded map[string]struct{}) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM posts WHERE NOT (author_id = ANY($1))`
	if err := r.db.QueryRowContext(ctx, query, pq.Array(setToSlice(excluded))).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count candidate posts: %w", err)
	}
	return count, nil
}

// ListByAuthors retrieves posts authored by the given users with offset pagination.
func (r *PostgresRepository) ListByAuthors(ctx context.Context, authorIDs []string, limit, offset int) ([]*Post, int, error) {
	if len(authorIDs) == 0 {
		return []*Post{}, 0, nil
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM posts WHERE author_id = ANY($1)`
	if err := r.db.QueryRowContext(ctx, countQuery, pq.Array(authorIDs)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count posts by authors: %w", err)
	}

	query := postSelect + `
	WHERE p.author_id = ANY($1)
	GROUP BY p.id
	ORDER BY p.created_at DESC, p.id ASC
	LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(authorIDs), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query posts by authors: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Warn("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	posts, err := scanPosts(rows)
	if err != nil {
		return nil, 0, err
	}

	return posts, total, nil
}

// checkExists verifies that a post row exists.
func (r *PostgresRepository) checkExists(ctx context.Context, postID string) error {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM posts WHERE id = $1)`
	if err := r.db.QueryRowContext(ctx, query, postID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check post existence: %w", err)
	}
	if !exists {
		return ErrPostNotFound
	}
	return nil
}

// rowScanner abstracts sql.Row and sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*Post, error) {
	var p Post
	var caption sql.NullString
	var likeIDs pq.StringArray
	err := row.Scan(&p.ID, &p.AuthorID, &p.TrackID, &p.TrackTitle, &p.TrackArtist,
		&caption, &p.CreatedAt, &likeIDs)
	if err != nil {
		return nil, err
	}
	p.Caption = caption.String
	p.LikeIDs = []string(likeIDs)
	return &p, nil
}

func scanPosts(rows *sql.Rows) ([]*Post, error) {
	var posts []*Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func setToSlice(set map[string]struct{}) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

package user

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

// Create inserts a new user with a generated UUID.
func (r *PostgresRepository) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO users (id, provider_id, handle, display_name, avatar_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.ExecContext(ctx, query,
		u.ID, u.ProviderID, u.Handle, u.DisplayName, u.AvatarURL, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by its UUID.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*User, error) {
	query := `
		SELECT id, provider_id, handle, display_name, avatar_url, created_at
		FROM users WHERE id = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, id))
}

// GetByProviderID retrieves a user by the music-provider account ID.
func (r *PostgresRepository) GetByProviderID(ctx context.Context, providerID string) (*User, error) {
	query := `
		SELECT id, provider_id, handle, display_name, avatar_url, created_at
		FROM users WHERE provider_id = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, providerID))
}

func (r *PostgresRepository) scanUser(row *sql.Row) (*User, error) {
	var u User
	var avatarURL sql.NullString
	err := row.Scan(&u.ID, &u.ProviderID, &u.Handle, &u.DisplayName, &avatarURL, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	u.AvatarURL = avatarURL.String
	return &u, nil
}

// Follow creates a follow edge from follower to followee.
func (r *PostgresRepository) Follow(ctx context.Context, followerID, followeeID string) error {
	if followerID == followeeID {
		return ErrSelfFollow
	}

	if err := r.checkExists(ctx, followerID); err != nil {
		return err
	}
	if err := r.checkExists(ctx, followeeID); err != nil {
		return err
	}

	query := `
		INSERT INTO follows (follower_id, followee_id, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (follower_id, followee_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, followerID, followeeID); err != nil {
		return fmt.Errorf("failed to insert follow edge: %w", err)
	}

	return nil
}

// Unfollow removes a follow edge.
func (r *PostgresRepository) Unfollow(ctx context.Context, followerID, followeeID string) error {
	if err := r.checkExists(ctx, followerID); err != nil {
		return err
	}

	query := `DELETE FROM follows WHERE follower_id = $1 AND followee_id = $2`
	if _, err := r.db.ExecContext(ctx, query, followerID, followeeID); err != nil {
		return fmt.Errorf("failed to delete follow edge: %w", err)
	}

	return nil
}

// GetFollowedIDs resolves the outgoing follow edges of a user.
func (r *PostgresRepository) GetFollowedIDs(ctx context.Context, userID string) ([]string, error) {
	if err := r.checkExists(ctx, userID); err != nil {
		return nil, err
	}

	query := `SELECT followee_id FROM follows WHERE follower_id = $1`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query follow edges: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Warn("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan follow edge: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// GetFollowerCount returns the number of users following the given user.
func (r *PostgresRepository) GetFollowerCount(ctx context.Context, userID string) (int, error) {
	if err := r.checkExists(ctx, userID); err != nil {
		return 0, err
	}

	var count int
	query := `SELECT COUNT(*) FROM follows WHERE followee_id = $1`
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count followers: %w", err)
	}

	return count, nil
}

// GetFollowerCounts batches follower-count lookups over a set of user IDs.
func (r *PostgresRepository) GetFollowerCounts(ctx context.Context, userIDs []string) (map[string]int, error) {
	if len(userIDs) == 0 {
		return map[string]int{}, nil
	}

	query := `
		SELECT u.id, COUNT(f.follower_id)
		FROM users u
		LEFT JOIN follows f ON f.followee_id = u.id
		WHERE u.id = ANY($1)
		GROUP BY u.id`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(userIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query follower counts: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Warn("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	counts := make(map[string]int, len(userIDs))
	for rows.Next() {
		var id string
		var count int
		if err := rows.Scan(&id, &count); err != nil {
			return nil, fmt.Errorf("failed to scan follower count: %w", err)
		}
		counts[id] = count
	}

	return counts, rows.Err()
}

// GetDisplays resolves display metadata for a set of user IDs.
func (r *PostgresRepository) GetDisplays(ctx context.Context, userIDs []string) (map[string]Display, error) {
	if len(userIDs) == 0 {
		return map[string]Display{}, nil
	}

	query := `SELECT id, display_name, avatar_url FROM users WHERE id = ANY($1)`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(userIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query user displays: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Warn("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	displays := make(map[string]Display, len(userIDs))
	for rows.Next() {
		var id, displayName string
		var avatarURL sql.NullString
		if err := rows.Scan(&id, &displayName, &avatarURL); err != nil {
			return nil, fmt.Errorf("failed to scan user display: %w", err)
		}
		displays[id] = Display{
			DisplayName: displayName,
			AvatarURL:   avatarURL.String,
		}
	}

	return displays, rows.Err()
}

// checkExists verifies that a user row exists.
func (r *PostgresRepository) checkExists(ctx context.Context, userID string) error {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check user existence: %w", err)
	}
	if !exists {
		return ErrUserNotFound
	}
	return nil
}

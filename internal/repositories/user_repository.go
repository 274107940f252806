package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/readmodel"
)

// UserRepository defines the data access contract for users.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindPublicByID(ctx context.Context, id string) (models.User, error)
	FindByLogin(ctx context.Context, userName, email string) (models.User, error)
	ExistsByUserNameOrEmail(ctx context.Context, userName, email string) (bool, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error
	UpdateAccount(ctx context.Context, id, fullName, email string, at time.Time) (models.User, error)
	UpdateAvatar(ctx context.Context, id string, avatar models.Asset, at time.Time) (models.User, error)
	UpdateCoverImage(ctx context.Context, id string, cover models.Asset, at time.Time) (models.User, error)
	ChannelProfile(ctx context.Context, userName, viewerID string) (models.ChannelProfile, error)
	WatchHistory(ctx context.Context, userID string) ([]models.HistoryEntry, error)
	AddToHistory(ctx context.Context, userID, videoID string, at time.Time) error
}

const publicUserColumns = `id, user_name, email, full_name, avatar_url, avatar_id, cover_image_url, cover_image_id, created_at, updated_at`

func userDest(u *models.User, extra ...any) []any {
	dest := []any{
		&u.ID, &u.UserName, &u.Email, &u.FullName,
		&u.Avatar.URL, &u.Avatar.PublicID, &u.CoverImage.URL, &u.CoverImage.PublicID,
		&u.CreatedAt, &u.UpdatedAt,
	}
	return append(dest, extra...)
}

func normalizeIdentity(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create persists a new user record. userName and email are stored lowercase.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	return withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		_, err := conn.Exec(ctx, `
            INSERT INTO users (id, user_name, email, password_hash, full_name, avatar_url, avatar_id,
                               cover_image_url, cover_image_id, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        `, user.ID, normalizeIdentity(user.UserName), normalizeIdentity(user.Email), user.Password, user.FullName,
			user.Avatar.URL, user.Avatar.PublicID, user.CoverImage.URL, user.CoverImage.PublicID,
			user.CreatedAt, user.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrConflict
			}
			return fmt.Errorf("insert user: %w", err)
		}
		return nil
	})
}

// FindByID loads a user including the password hash.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	return r.findOne(ctx, `WHERE id = $1`, id)
}

// FindPublicByID loads a user without credential material.
func (r *PostgresUserRepository) FindPublicByID(ctx context.Context, id string) (models.User, error) {
	var user models.User
	err := withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		row := conn.QueryRow(ctx, `SELECT `+publicUserColumns+` FROM users WHERE id = $1`, id)
		if err := row.Scan(userDest(&user)...); err != nil {
			return notFound(err, "select public user")
		}
		return nil
	})
	return user, err
}

// FindByLogin matches either the user name or the email, case-insensitively.
func (r *PostgresUserRepository) FindByLogin(ctx context.Context, userName, email string) (models.User, error) {
	return r.findOne(ctx, `WHERE user_name = $1 OR email = $2 ORDER BY created_at LIMIT 1`,
		normalizeIdentity(userName), normalizeIdentity(email))
}

func (r *PostgresUserRepository) findOne(ctx context.Context, where string, args ...any) (models.User, error) {
	var user models.User
	err := withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		row := conn.QueryRow(ctx, `SELECT `+publicUserColumns+`, password_hash FROM users `+where, args...)
		if err := row.Scan(userDest(&user, &user.Password)...); err != nil {
			return notFound(err, "select user")
		}
		return nil
	})
	return user, err
}

// ExistsByUserNameOrEmail reports whether either identity is already taken.
func (r *PostgresUserRepository) ExistsByUserNameOrEmail(ctx context.Context, userName, email string) (bool, error) {
	var exists bool
	err := withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		row := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE user_name = $1 OR email = $2)`,
			normalizeIdentity(userName), normalizeIdentity(email))
		if err := row.Scan(&exists); err != nil {
			return fmt.Errorf("check user exists: %w", err)
		}
		return nil
	})
	return exists, err
}

// UpdatePassword stores a new password hash.
func (r *PostgresUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error {
	return withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		tag, err := conn.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`, id, passwordHash, at)
		if err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// UpdateAccount changes the display name and email.
func (r *PostgresUserRepository) UpdateAccount(ctx context.Context, id, fullName, email string, at time.Time) (models.User, error) {
	return r.updateReturning(ctx, `full_name = $2, email = $3, updated_at = $4`, id, fullName, normalizeIdentity(email), at)
}

// UpdateAvatar points the user at a new avatar asset.
func (r *PostgresUserRepository) UpdateAvatar(ctx context.Context, id string, avatar models.Asset, at time.Time) (models.User, error) {
	return r.updateReturning(ctx, `avatar_url = $2, avatar_id = $3, updated_at = $4`, id, avatar.URL, avatar.PublicID, at)
}

// UpdateCoverImage points the user at a new cover image asset.
func (r *PostgresUserRepository) UpdateCoverImage(ctx context.Context, id string, cover models.Asset, at time.Time) (models.User, error) {
	return r.updateReturning(ctx, `cover_image_url = $2, cover_image_id = $3, updated_at = $4`, id, cover.URL, cover.PublicID, at)
}

func (r *PostgresUserRepository) updateReturning(ctx context.Context, set string, args ...any) (models.User, error) {
	var user models.User
	err := withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		row := conn.QueryRow(ctx, `UPDATE users SET `+set+` WHERE id = $1 RETURNING `+publicUserColumns, args...)
		if err := row.Scan(userDest(&user)...); err != nil {
			if isUniqueViolation(err) {
				return ErrConflict
			}
			return notFound(err, "update user")
		}
		return nil
	})
	return user, err
}

// ChannelProfile assembles the public channel page of userName as seen by viewerID.
func (r *PostgresUserRepository) ChannelProfile(ctx context.Context, userName, viewerID string) (models.ChannelProfile, error) {
	sql, args := readmodel.From("users u").
		Match("u.user_name = ?", normalizeIdentity(userName)).
		Project(
			readmodel.ColAs("u.id", "_id"),
			readmodel.ColAs("u.user_name", "userName"),
			readmodel.ColAs("u.full_name", "fullName"),
			readmodel.ColAs("u.email", "email"),
			readmodel.ColAs("u.avatar_url", "avatar"),
			readmodel.ColAs("u.cover_image_url", "coverImage"),
		).
		AddField("subscribersCount", "(SELECT COUNT(*) FROM subscriptions s WHERE s.channel_id = u.id)").
		AddField("channelsSubscribedToCount", "(SELECT COUNT(*) FROM subscriptions s WHERE s.subscriber_id = u.id)").
		AddField("isSubscribed", "EXISTS (SELECT 1 FROM subscriptions s WHERE s.channel_id = u.id AND s.subscriber_id = ?)", viewerID).
		Build()

	var p models.ChannelProfile
	err := withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		err := conn.QueryRow(ctx, sql, args...).Scan(
			&p.ID, &p.UserName, &p.FullName, &p.Email, &p.Avatar, &p.CoverImage,
			&p.SubscribersCount, &p.ChannelsSubscribedToCount, &p.IsSubscribed,
		)
		if err != nil {
			return notFound(err, "select channel profile")
		}
		return nil
	})
	return p, err
}

// WatchHistory lists the videos userID watched, most recent first.
func (r *PostgresUserRepository) WatchHistory(ctx context.Context, userID string) ([]models.HistoryEntry, error) {
	p := readmodel.From("watch_history h").
		Lookup("JOIN videos v ON v.id = h.video_id").
		Lookup("JOIN users o ON o.id = v.owner_id").
		Match("h.user_id = ?", userID).
		Project(readmodel.ColAs("h.watched_at", "watchedAt")).
		Project(videoSummaryColumns()...).
		Sort(readmodel.Desc("h.watched_at"))

	return queryAll(ctx, r.pool, p, func(rows pgx.Rows) (models.HistoryEntry, error) {
		var e models.HistoryEntry
		err := rows.Scan(append([]any{&e.WatchedAt}, videoSummaryDest(&e.Video)...)...)
		return e, err
	})
}

// AddToHistory records that userID watched videoID at the given time.
// Re-watching moves the entry to the front.
func (r *PostgresUserRepository) AddToHistory(ctx context.Context, userID, videoID string, at time.Time) error {
	return withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		_, err := conn.Exec(ctx, `
            INSERT INTO watch_history (user_id, video_id, watched_at)
            VALUES ($1, $2, $3)
            ON CONFLICT (user_id, video_id) DO UPDATE SET watched_at = EXCLUDED.watched_at
        `, userID, videoID, at)
		if err != nil {
			return fmt.Errorf("upsert watch history: %w", err)
		}
		return nil
	})
}

var _ UserRepository = (*PostgresUserRepository)(nil)

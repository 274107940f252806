package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/readmodel"
)

// TweetRepository exposes data access for channel posts.
type TweetRepository interface {
	Create(ctx context.Context, tweet models.Tweet) error
	FindByID(ctx context.Context, id string) (models.Tweet, error)
	ListByOwner(ctx context.Context, ownerID, viewerID string) ([]models.TweetView, error)
	Update(ctx context.Context, id, content string, at time.Time) (models.Tweet, error)
	Delete(ctx context.Context, id string) error
}

const tweetColumns = `id, owner_id, content, created_at, updated_at`

func tweetDest(t *models.Tweet) []any {
	return []any{&t.ID, &t.OwnerID, &t.Content, &t.CreatedAt, &t.UpdatedAt}
}

// PostgresTweetRepository provides PostgreSQL-backed persistence for tweets.
type PostgresTweetRepository struct {
	pool db.Pool
}

// NewPostgresTweetRepository constructs a tweet repository backed by PostgreSQL.
func NewPostgresTweetRepository(pool db.Pool) *PostgresTweetRepository {
	return &PostgresTweetRepository{pool: pool}
}

// Create stores a new tweet.
func (r *PostgresTweetRepository) Create(ctx context.Context, tweet models.Tweet) error {
	return withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		_, err := conn.Exec(ctx, `INSERT INTO tweets (`+tweetColumns+`) VALUES ($1, $2, $3, $4, $5)`,
			tweet.ID, tweet.OwnerID, tweet.Content, tweet.CreatedAt, tweet.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrConflict
			}
			return fmt.Errorf("insert tweet: %w", err)
		}
		return nil
	})
}

// FindByID loads a tweet.
func (r *PostgresTweetRepository) FindByID(ctx context.Context, id string) (models.Tweet, error) {
	var tweet models.Tweet
	err := withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		row := conn.QueryRow(ctx, `SELECT `+tweetColumns+` FROM tweets WHERE id = $1`, id)
		if err := row.Scan(tweetDest(&tweet)...); err != nil {
			return notFound(err, "select tweet")
		}
		return nil
	})
	return tweet, err
}

// ListByOwner returns ownerID's tweets, newest first, with like figures
// relative to viewerID.
func (r *PostgresTweetRepository) ListByOwner(ctx context.Context, ownerID, viewerID string) ([]models.TweetView, error) {
	p := readmodel.From("tweets t").
		Lookup("JOIN users o ON o.id = t.owner_id").
		Match("t.owner_id = ?", ownerID).
		Project(
			readmodel.ColAs("t.id", "_id"),
			readmodel.ColAs("t.content", "content"),
			readmodel.ColAs("t.created_at", "createdAt"),
			readmodel.ColAs("t.updated_at", "updatedAt"),
		).
		Project(ownerColumns("o")...).
		AddField("likesCount", "(SELECT COUNT(*) FROM likes l WHERE l.tweet_id = t.id)").
		AddField("isLiked", "EXISTS (SELECT 1 FROM likes l WHERE l.tweet_id = t.id AND l.liked_by = ?)", viewerID).
		Sort(readmodel.Desc("t.created_at"), readmodel.Desc("t.id"))

	return queryAll(ctx, r.pool, p, func(rows pgx.Rows) (models.TweetView, error) {
		var t models.TweetView
		err := rows.Scan(
			&t.ID, &t.Content, &t.CreatedAt, &t.UpdatedAt,
			&t.Owner.ID, &t.Owner.UserName, &t.Owner.FullName, &t.Owner.Avatar,
			&t.LikesCount, &t.IsLiked,
		)
		return t, err
	})
}

// Update replaces the content of a tweet.
func (r *PostgresTweetRepository) Update(ctx context.Context, id, content string, at time.Time) (models.Tweet, error) {
	var tweet models.Tweet
	err := withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		row := conn.QueryRow(ctx, `UPDATE tweets SET content = $2, updated_at = $3 WHERE id = $1 RETURNING `+tweetColumns,
			id, content, at)
		if err := row.Scan(tweetDest(&tweet)...); err != nil {
			return notFound(err, "update tweet")
		}
		return nil
	})
	return tweet, err
}

// Delete removes a tweet and the likes pointing at it.
func (r *PostgresTweetRepository) Delete(ctx context.Context, id string) error {
	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM likes WHERE tweet_id = $1`, id); err != nil {
			return fmt.Errorf("delete tweet likes: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM tweets WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete tweet: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

var _ TweetRepository = (*PostgresTweetRepository)(nil)

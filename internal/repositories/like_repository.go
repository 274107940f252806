package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/readmodel"
)

// LikeRepository exposes data access for likes.
type LikeRepository interface {
	Toggle(ctx context.Context, like models.Like) (bool, error)
	LikedVideos(ctx context.Context, userID string) ([]models.LikedVideo, error)
}

var likeTargetColumns = map[models.LikeTarget]string{
	models.LikeTargetVideo:   "video_id",
	models.LikeTargetComment: "comment_id",
	models.LikeTargetTweet:   "tweet_id",
}

// PostgresLikeRepository provides PostgreSQL-backed persistence for likes.
type PostgresLikeRepository struct {
	pool db.Pool
}

// NewPostgresLikeRepository constructs a like repository backed by PostgreSQL.
func NewPostgresLikeRepository(pool db.Pool) *PostgresLikeRepository {
	return &PostgresLikeRepository{pool: pool}
}

// Toggle removes like.LikedBy's like on the target if one exists, otherwise
// inserts like. It reports whether the target is liked afterwards. The partial
// unique indexes on likes keep concurrent toggles to at most one row.
func (r *PostgresLikeRepository) Toggle(ctx context.Context, like models.Like) (bool, error) {
	column, ok := likeTargetColumns[like.Target]
	if !ok {
		return false, fmt.Errorf("unknown like target %q", like.Target)
	}

	var liked bool
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM likes WHERE liked_by = $1 AND `+column+` = $2`, like.LikedBy, like.TargetID)
		if err != nil {
			return fmt.Errorf("delete like: %w", err)
		}
		if tag.RowsAffected() > 0 {
			liked = false
			return nil
		}

		_, err = tx.Exec(ctx, `
            INSERT INTO likes (id, liked_by, `+column+`, created_at)
            VALUES ($1, $2, $3, $4)
            ON CONFLICT DO NOTHING
        `, like.ID, like.LikedBy, like.TargetID, like.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert like: %w", err)
		}
		// A concurrent toggle may have inserted first; either way a like exists.
		liked = true
		return nil
	})
	return liked, err
}

// LikedVideos lists the published videos userID liked, most recent like first.
func (r *PostgresLikeRepository) LikedVideos(ctx context.Context, userID string) ([]models.LikedVideo, error) {
	p := readmodel.From("likes l").
		Lookup("JOIN videos v ON v.id = l.video_id").
		Lookup("JOIN users o ON o.id = v.owner_id").
		Match("l.liked_by = ?", userID).
		Match("v.is_published").
		Project(readmodel.ColAs("l.created_at", "likedAt")).
		Project(videoSummaryColumns()...).
		Sort(readmodel.Desc("l.created_at"))

	return queryAll(ctx, r.pool, p, func(rows pgx.Rows) (models.LikedVideo, error) {
		var lv models.LikedVideo
		err := rows.Scan(append([]any{&lv.LikedAt}, videoSummaryDest(&lv.Video)...)...)
		return lv, err
	})
}

var _ LikeRepository = (*PostgresLikeRepository)(nil)

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

// VideoRepository exposes data access for uploaded videos.
type VideoRepository interface {
	Create(ctx context.Context, video models.Video) error
	FindByID(ctx context.Context, id string) (models.Video, error)
	Feed(ctx context.Context, q FeedQuery) (models.Page[models.VideoSummary], error)
	Detail(ctx context.Context, id, viewerID string) (models.VideoDetail, error)
	Update(ctx context.Context, video models.Video) (models.Video, error)
	SetPublished(ctx context.Context, id string, published bool, at time.Time) (models.Video, error)
	Delete(ctx context.Context, id string) error
}

// FeedQuery filters and orders the public video feed.
type FeedQuery struct {
	Text     string
	OwnerID  string
	SortBy   string
	SortType string
	Page     readmodel.Page
}

var videoSortFields = map[string]string{
	"createdAt": "v.created_at",
	"updatedAt": "v.updated_at",
	"views":     "v.views",
	"duration":  "v.duration",
	"title":     "v.title",
}

const videoColumns = `id, owner_id, video_url, video_id, thumbnail_url, thumbnail_id, title, description,
    duration, views, is_published, created_at, updated_at`

func videoDest(v *models.Video) []any {
	return []any{
		&v.ID, &v.OwnerID, &v.VideoFile.URL, &v.VideoFile.PublicID, &v.Thumbnail.URL, &v.Thumbnail.PublicID,
		&v.Title, &v.Description, &v.Duration, &v.Views, &v.IsPublished, &v.CreatedAt, &v.UpdatedAt,
	}
}

// PostgresVideoRepository provides PostgreSQL-backed persistence for videos.
type PostgresVideoRepository struct {
	pool db.Pool
}

// NewPostgresVideoRepository constructs a video repository backed by PostgreSQL.
func NewPostgresVideoRepository(pool db.Pool) *PostgresVideoRepository {
	return &PostgresVideoRepository{pool: pool}
}

// Create stores a new video record.
func (r *PostgresVideoRepository) Create(ctx context.Context, video models.Video) error {
	return withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		_, err := conn.Exec(ctx, `
            INSERT INTO videos (`+videoColumns+`)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
        `, video.ID, video.OwnerID, video.VideoFile.URL, video.VideoFile.PublicID, video.Thumbnail.URL,
			video.Thumbnail.PublicID, video.Title, video.Description, video.Duration, video.Views,
			video.IsPublished, video.CreatedAt, video.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrConflict
			}
			return fmt.Errorf("insert video: %w", err)
		}
		return nil
	})
}

// FindByID loads the stored video record.
func (r *PostgresVideoRepository) FindByID(ctx context.Context, id string) (models.Video, error) {
	var video models.Video
	err := withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		row := conn.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, id)
		if err := row.Scan(videoDest(&video)...); err != nil {
			return notFound(err, "select video")
		}
		return nil
	})
	return video, err
}

// Feed pages through published videos, optionally narrowed to one owner and
// to titles or descriptions containing q.Text.
func (r *PostgresVideoRepository) Feed(ctx context.Context, q FeedQuery) (models.Page[models.VideoSummary], error) {
	text := strings.TrimSpace(q.Text)
	order := readmodel.ParseSort(q.SortBy, q.SortType, videoSortFields)
	p := readmodel.From("videos v").
		Lookup("JOIN users o ON o.id = v.owner_id").
		Match("v.is_published").
		MatchIf(q.OwnerID != "", "v.owner_id = ?", q.OwnerID).
		MatchIf(text != "", "v.title ILIKE ? OR v.description ILIKE ?", readmodel.Contains(text), readmodel.Contains(text)).
		Project(videoSummaryColumns()...).
		Sort(order, readmodel.Sort{Column: "v.id", Desc: order.Desc})

	return queryPage(ctx, r.pool, p, q.Page, func(rows pgx.Rows) (models.VideoSummary, error) {
		var v models.VideoSummary
		err := rows.Scan(videoSummaryDest(&v)...)
		return v, err
	})
}

// Detail assembles a video page for viewerID. Unpublished videos are only
// visible to their owner.
func (r *PostgresVideoRepository) Detail(ctx context.Context, id, viewerID string) (models.VideoDetail, error) {
	sql, args := readmodel.From("videos v").
		Lookup("JOIN users o ON o.id = v.owner_id").
		Match("v.id = ?", id).
		Match("v.is_published OR v.owner_id = ?", viewerID).
		Project(
			readmodel.ColAs("v.id", "_id"),
			readmodel.ColAs("v.video_url", "videoFile"),
			readmodel.ColAs("v.thumbnail_url", "thumbnail"),
			readmodel.ColAs("v.title", "title"),
			readmodel.ColAs("v.description", "description"),
			readmodel.ColAs("v.duration", "duration"),
			readmodel.ColAs("v.views", "views"),
			readmodel.ColAs("v.is_published", "isPublished"),
			readmodel.ColAs("v.created_at", "createdAt"),
		).
		Project(ownerColumns("o")...).
		AddField("owner.subscribersCount", "(SELECT COUNT(*) FROM subscriptions s WHERE s.channel_id = o.id)").
		AddField("owner.isSubscribed", "EXISTS (SELECT 1 FROM subscriptions s WHERE s.channel_id = o.id AND s.subscriber_id = ?)", viewerID).
		AddField("likesCount", likesOnVideo).
		AddField("isLiked", "EXISTS (SELECT 1 FROM likes l WHERE l.video_id = v.id AND l.liked_by = ?)", viewerID).
		Build()

	var d models.VideoDetail
	err := withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		err := conn.QueryRow(ctx, sql, args...).Scan(
			&d.ID, &d.VideoFile, &d.Thumbnail, &d.Title, &d.Description, &d.Duration, &d.Views,
			&d.IsPublished, &d.CreatedAt,
			&d.Owner.ID, &d.Owner.UserName, &d.Owner.FullName, &d.Owner.Avatar,
			&d.Owner.SubscribersCount, &d.Owner.IsSubscribed, &d.LikesCount, &d.IsLiked,
		)
		if err != nil {
			return notFound(err, "select video detail")
		}
		return nil
	})
	return d, err
}

// Update writes the editable fields of video: title, description and thumbnail.
func (r *PostgresVideoRepository) Update(ctx context.Context, video models.Video) (models.Video, error) {
	return r.updateReturning(ctx, `title = $2, description = $3, thumbnail_url = $4, thumbnail_id = $5, updated_at = $6`,
		video.ID, video.Title, video.Description, video.Thumbnail.URL, video.Thumbnail.PublicID, video.UpdatedAt)
}

// SetPublished flips the visibility of a video.
func (r *PostgresVideoRepository) SetPublished(ctx context.Context, id string, published bool, at time.Time) (models.Video, error) {
	return r.updateReturning(ctx, `is_published = $2, updated_at = $3`, id, published, at)
}

func (r *PostgresVideoRepository) updateReturning(ctx context.Context, set string, args ...any) (models.Video, error) {
	var video models.Video
	err := withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		row := conn.QueryRow(ctx, `UPDATE videos SET `+set+` WHERE id = $1 RETURNING `+videoColumns, args...)
		if err := row.Scan(videoDest(&video)...); err != nil {
			return notFound(err, "update video")
		}
		return nil
	})
	return video, err
}

// Delete removes a video together with its comments, likes, playlist entries
// and watch history rows in one transaction.
func (r *PostgresVideoRepository) Delete(ctx context.Context, id string) error {
	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		cascade := []string{
			`DELETE FROM likes WHERE comment_id IN (SELECT id FROM comments WHERE video_id = $1)`,
			`DELETE FROM likes WHERE video_id = $1`,
			`DELETE FROM comments WHERE video_id = $1`,
			`DELETE FROM playlist_videos WHERE video_id = $1`,
			`DELETE FROM watch_history WHERE video_id = $1`,
		}
		for _, stmt := range cascade {
			if _, err := tx.Exec(ctx, stmt, id); err != nil {
				return fmt.Errorf("delete video dependents: %w", err)
			}
		}

		tag, err := tx.Exec(ctx, `DELETE FROM videos WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete video: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

var _ VideoRepository = (*PostgresVideoRepository)(nil)

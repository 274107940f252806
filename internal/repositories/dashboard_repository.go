package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/readmodel"
)

// DashboardRepository exposes channel-wide aggregates for the owner.
type DashboardRepository interface {
	Stats(ctx context.Context, channelID string) (models.ChannelStats, error)
	Videos(ctx context.Context, channelID string) ([]models.ChannelVideo, error)
}

// PostgresDashboardRepository computes dashboard figures with PostgreSQL.
type PostgresDashboardRepository struct {
	pool db.Pool
}

// NewPostgresDashboardRepository constructs a dashboard repository backed by PostgreSQL.
func NewPostgresDashboardRepository(pool db.Pool) *PostgresDashboardRepository {
	return &PostgresDashboardRepository{pool: pool}
}

// Stats totals subscribers, likes across the channel's videos, views and videos.
func (r *PostgresDashboardRepository) Stats(ctx context.Context, channelID string) (models.ChannelStats, error) {
	sql, args := readmodel.From("users u").
		Match("u.id = ?", channelID).
		AddField("totalSubscribers", "(SELECT COUNT(*) FROM subscriptions s WHERE s.channel_id = u.id)").
		AddField("totalLikes", "(SELECT COUNT(*) FROM likes l JOIN videos v ON v.id = l.video_id WHERE v.owner_id = u.id)").
		AddField("totalViews", "(SELECT COALESCE(SUM(v.views), 0)::BIGINT FROM videos v WHERE v.owner_id = u.id)").
		AddField("totalVideos", "(SELECT COUNT(*) FROM videos v WHERE v.owner_id = u.id)").
		Build()

	var s models.ChannelStats
	err := withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		err := conn.QueryRow(ctx, sql, args...).Scan(&s.TotalSubscribers, &s.TotalLikes, &s.TotalViews, &s.TotalVideos)
		if err != nil {
			return notFound(err, "select channel stats")
		}
		return nil
	})
	return s, err
}

// Videos lists every video of the channel, published or not, newest first.
func (r *PostgresDashboardRepository) Videos(ctx context.Context, channelID string) ([]models.ChannelVideo, error) {
	p := readmodel.From("videos v").
		Match("v.owner_id = ?", channelID).
		Project(
			readmodel.ColAs("v.id", "_id"),
			readmodel.ColAs("v.video_url", "videoFile"),
			readmodel.ColAs("v.thumbnail_url", "thumbnail"),
			readmodel.ColAs("v.title", "title"),
			readmodel.ColAs("v.description", "description"),
			readmodel.ColAs("v.is_published", "isPublished"),
			readmodel.ColAs("v.views", "views"),
		).
		AddField("likesCount", likesOnVideo).
		AddField("createdAt", "v.created_at").
		Sort(readmodel.Desc("v.created_at"), readmodel.Desc("v.id"))

	return queryAll(ctx, r.pool, p, func(rows pgx.Rows) (models.ChannelVideo, error) {
		var v models.ChannelVideo
		err := rows.Scan(&v.ID, &v.VideoFile, &v.Thumbnail, &v.Title, &v.Description, &v.IsPublished, &v.Views, &v.LikesCount, &v.CreatedAt)
		return v, err
	})
}

var _ DashboardRepository = (*PostgresDashboardRepository)(nil)

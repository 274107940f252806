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

// PlaylistRepository exposes data access for playlists.
type PlaylistRepository interface {
	Create(ctx context.Context, playlist models.Playlist) error
	FindByID(ctx context.Context, id string) (models.Playlist, error)
	Detail(ctx context.Context, id string) (models.PlaylistDetail, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.PlaylistSummary, error)
	Update(ctx context.Context, id, name, description string, at time.Time) (models.Playlist, error)
	Delete(ctx context.Context, id string) error
	AddVideo(ctx context.Context, playlistID, videoID string, at time.Time) (models.Playlist, error)
	RemoveVideo(ctx context.Context, playlistID, videoID string, at time.Time) (models.Playlist, error)
}

const playlistColumns = `id, owner_id, name, description, created_at, updated_at`

// PostgresPlaylistRepository provides PostgreSQL-backed persistence for playlists.
type PostgresPlaylistRepository struct {
	pool db.Pool
}

// NewPostgresPlaylistRepository constructs a playlist repository backed by PostgreSQL.
func NewPostgresPlaylistRepository(pool db.Pool) *PostgresPlaylistRepository {
	return &PostgresPlaylistRepository{pool: pool}
}

// Create stores a new, empty playlist.
func (r *PostgresPlaylistRepository) Create(ctx context.Context, playlist models.Playlist) error {
	return withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		_, err := conn.Exec(ctx, `INSERT INTO playlists (`+playlistColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
			playlist.ID, playlist.OwnerID, playlist.Name, playlist.Description, playlist.CreatedAt, playlist.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrConflict
			}
			return fmt.Errorf("insert playlist: %w", err)
		}
		return nil
	})
}

// FindByID loads a playlist and its video ids in insertion order.
func (r *PostgresPlaylistRepository) FindByID(ctx context.Context, id string) (models.Playlist, error) {
	var playlist models.Playlist
	err := withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		row := conn.QueryRow(ctx, `SELECT `+playlistColumns+` FROM playlists WHERE id = $1`, id)
		if err := row.Scan(&playlist.ID, &playlist.OwnerID, &playlist.Name, &playlist.Description,
			&playlist.CreatedAt, &playlist.UpdatedAt); err != nil {
			return notFound(err, "select playlist")
		}

		rows, err := conn.Query(ctx, `SELECT video_id FROM playlist_videos WHERE playlist_id = $1 ORDER BY added_at, video_id`, id)
		if err != nil {
			return fmt.Errorf("query playlist videos: %w", err)
		}
		playlist.Videos, err = pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return fmt.Errorf("collect playlist videos: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Playlist{}, err
	}
	if playlist.Videos == nil {
		playlist.Videos = []string{}
	}
	return playlist, nil
}

// Detail expands a playlist with its published videos, its owner and totals
// over those videos.
func (r *PostgresPlaylistRepository) Detail(ctx context.Context, id string) (models.PlaylistDetail, error) {
	published := "FROM playlist_videos pv JOIN videos v ON v.id = pv.video_id WHERE pv.playlist_id = p.id AND v.is_published"
	headSQL, headArgs := readmodel.From("playlists p").
		Lookup("JOIN users o ON o.id = p.owner_id").
		Match("p.id = ?", id).
		Project(
			readmodel.ColAs("p.id", "_id"),
			readmodel.ColAs("p.name", "name"),
			readmodel.ColAs("p.description", "description"),
			readmodel.ColAs("p.created_at", "createdAt"),
			readmodel.ColAs("p.updated_at", "updatedAt"),
		).
		Project(ownerColumns("o")...).
		AddField("totalVideos", "(SELECT COUNT(*) "+published+")").
		AddField("totalViews", "(SELECT COALESCE(SUM(v.views), 0)::BIGINT "+published+")").
		Build()

	videos := readmodel.From("playlist_videos pv").
		Lookup("JOIN videos v ON v.id = pv.video_id").
		Lookup("JOIN users o ON o.id = v.owner_id").
		Match("pv.playlist_id = ?", id).
		Match("v.is_published").
		Project(videoSummaryColumns()...).
		Sort(readmodel.Asc("pv.added_at"), readmodel.Asc("v.id"))

	var d models.PlaylistDetail
	err := withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		err := conn.QueryRow(ctx, headSQL, headArgs...).Scan(
			&d.ID, &d.Name, &d.Description, &d.CreatedAt, &d.UpdatedAt,
			&d.Owner.ID, &d.Owner.UserName, &d.Owner.FullName, &d.Owner.Avatar,
			&d.TotalVideos, &d.TotalViews,
		)
		if err != nil {
			return notFound(err, "select playlist detail")
		}
		return nil
	})
	if err != nil {
		return models.PlaylistDetail{}, err
	}

	d.Videos, err = queryAll(ctx, r.pool, videos, func(rows pgx.Rows) (models.VideoSummary, error) {
		var v models.VideoSummary
		err := rows.Scan(videoSummaryDest(&v)...)
		return v, err
	})
	if err != nil {
		return models.PlaylistDetail{}, err
	}
	return d, nil
}

// ListByOwner summarises every playlist ownerID created, most recently
// updated first.
func (r *PostgresPlaylistRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.PlaylistSummary, error) {
	entries := "FROM playlist_videos pv JOIN videos v ON v.id = pv.video_id WHERE pv.playlist_id = p.id"
	p := readmodel.From("playlists p").
		Match("p.owner_id = ?", ownerID).
		Project(
			readmodel.ColAs("p.id", "_id"),
			readmodel.ColAs("p.name", "name"),
			readmodel.ColAs("p.description", "description"),
		).
		AddField("totalVideos", "(SELECT COUNT(*) "+entries+")").
		AddField("totalViews", "(SELECT COALESCE(SUM(v.views), 0)::BIGINT "+entries+")").
		AddField("updatedAt", "p.updated_at").
		Sort(readmodel.Desc("p.updated_at"), readmodel.Desc("p.id"))

	return queryAll(ctx, r.pool, p, func(rows pgx.Rows) (models.PlaylistSummary, error) {
		var s models.PlaylistSummary
		err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.TotalVideos, &s.TotalViews, &s.UpdatedAt)
		return s, err
	})
}

// Update renames a playlist.
func (r *PostgresPlaylistRepository) Update(ctx context.Context, id, name, description string, at time.Time) (models.Playlist, error) {
	err := withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		tag, err := conn.Exec(ctx, `UPDATE playlists SET name = $2, description = $3, updated_at = $4 WHERE id = $1`,
			id, name, description, at)
		if err != nil {
			return fmt.Errorf("update playlist: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return models.Playlist{}, err
	}
	return r.FindByID(ctx, id)
}

// Delete removes a playlist and its entries.
func (r *PostgresPlaylistRepository) Delete(ctx context.Context, id string) error {
	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM playlist_videos WHERE playlist_id = $1`, id); err != nil {
			return fmt.Errorf("delete playlist entries: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM playlists WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete playlist: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// AddVideo appends videoID to the playlist. Adding a video already present
// leaves the playlist unchanged.
func (r *PostgresPlaylistRepository) AddVideo(ctx context.Context, playlistID, videoID string, at time.Time) (models.Playlist, error) {
	return r.changeEntries(ctx, playlistID, at, `
        INSERT INTO playlist_videos (playlist_id, video_id, added_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (playlist_id, video_id) DO NOTHING
    `, playlistID, videoID, at)
}

// RemoveVideo drops videoID from the playlist.
func (r *PostgresPlaylistRepository) RemoveVideo(ctx context.Context, playlistID, videoID string, at time.Time) (models.Playlist, error) {
	return r.changeEntries(ctx, playlistID, at,
		`DELETE FROM playlist_videos WHERE playlist_id = $1 AND video_id = $2`, playlistID, videoID)
}

func (r *PostgresPlaylistRepository) changeEntries(ctx context.Context, playlistID string, at time.Time, stmt string, args ...any) (models.Playlist, error) {
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE playlists SET updated_at = $2 WHERE id = $1`, playlistID, at)
		if err != nil {
			return fmt.Errorf("touch playlist: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		if _, err := tx.Exec(ctx, stmt, args...); err != nil {
			return fmt.Errorf("change playlist entries: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Playlist{}, err
	}
	return r.FindByID(ctx, playlistID)
}

var _ PlaylistRepository = (*PostgresPlaylistRepository)(nil)

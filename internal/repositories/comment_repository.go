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

// CommentRepository exposes data access for video comments.
type CommentRepository interface {
	Create(ctx context.Context, comment models.Comment) error
	FindByID(ctx context.Context, id string) (models.Comment, error)
	ListForVideo(ctx context.Context, videoID, viewerID string, page readmodel.Page) (models.Page[models.CommentView], error)
	Update(ctx context.Context, id, content string, at time.Time) (models.Comment, error)
	Delete(ctx context.Context, id string) error
}

const commentColumns = `id, video_id, owner_id, content, created_at, updated_at`

func commentDest(c *models.Comment) []any {
	return []any{&c.ID, &c.VideoID, &c.OwnerID, &c.Content, &c.CreatedAt, &c.UpdatedAt}
}

// PostgresCommentRepository provides PostgreSQL-backed persistence for comments.
type PostgresCommentRepository struct {
	pool db.Pool
}

// NewPostgresCommentRepository constructs a comment repository backed by PostgreSQL.
func NewPostgresCommentRepository(pool db.Pool) *PostgresCommentRepository {
	return &PostgresCommentRepository{pool: pool}
}

// Create stores a new comment.
func (r *PostgresCommentRepository) Create(ctx context.Context, comment models.Comment) error {
	return withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		_, err := conn.Exec(ctx, `INSERT INTO comments (`+commentColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
			comment.ID, comment.VideoID, comment.OwnerID, comment.Content, comment.CreatedAt, comment.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrConflict
			}
			return fmt.Errorf("insert comment: %w", err)
		}
		return nil
	})
}

// FindByID loads a comment.
func (r *PostgresCommentRepository) FindByID(ctx context.Context, id string) (models.Comment, error) {
	var comment models.Comment
	err := withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		row := conn.QueryRow(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = $1`, id)
		if err := row.Scan(commentDest(&comment)...); err != nil {
			return notFound(err, "select comment")
		}
		return nil
	})
	return comment, err
}

// ListForVideo pages through the comments on videoID, newest first, with like
// figures relative to viewerID.
func (r *PostgresCommentRepository) ListForVideo(ctx context.Context, videoID, viewerID string, page readmodel.Page) (models.Page[models.CommentView], error) {
	p := readmodel.From("comments c").
		Lookup("JOIN users o ON o.id = c.owner_id").
		Match("c.video_id = ?", videoID).
		Project(
			readmodel.ColAs("c.id", "_id"),
			readmodel.ColAs("c.content", "content"),
			readmodel.ColAs("c.created_at", "createdAt"),
			readmodel.ColAs("c.updated_at", "updatedAt"),
		).
		Project(ownerColumns("o")...).
		AddField("likesCount", "(SELECT COUNT(*) FROM likes l WHERE l.comment_id = c.id)").
		AddField("isLiked", "EXISTS (SELECT 1 FROM likes l WHERE l.comment_id = c.id AND l.liked_by = ?)", viewerID).
		Sort(readmodel.Desc("c.created_at"), readmodel.Desc("c.id"))

	return queryPage(ctx, r.pool, p, page, func(rows pgx.Rows) (models.CommentView, error) {
		var c models.CommentView
		err := rows.Scan(
			&c.ID, &c.Content, &c.CreatedAt, &c.UpdatedAt,
			&c.Owner.ID, &c.Owner.UserName, &c.Owner.FullName, &c.Owner.Avatar,
			&c.LikesCount, &c.IsLiked,
		)
		return c, err
	})
}

// Update replaces the content of a comment.
func (r *PostgresCommentRepository) Update(ctx context.Context, id, content string, at time.Time) (models.Comment, error) {
	var comment models.Comment
	err := withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		row := conn.QueryRow(ctx, `UPDATE comments SET content = $2, updated_at = $3 WHERE id = $1 RETURNING `+commentColumns,
			id, content, at)
		if err := row.Scan(commentDest(&comment)...); err != nil {
			return notFound(err, "update comment")
		}
		return nil
	})
	return comment, err
}

// Delete removes a comment and the likes pointing at it.
func (r *PostgresCommentRepository) Delete(ctx context.Context, id string) error {
	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM likes WHERE comment_id = $1`, id); err != nil {
			return fmt.Errorf("delete comment likes: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete comment: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

var _ CommentRepository = (*PostgresCommentRepository)(nil)

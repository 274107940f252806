package repositories

import (
	"context"
	"errors"
	"fmt"

	crdbpgx "github.com/cockroachdb/cockroach-go/v2/crdb/crdbpgxv5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/readmodel"
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// withConn acquires a pooled connection for the duration of fn.
func withConn(ctx context.Context, pool db.Pool, fn func(conn *pgxpool.Conn) error) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()
	return fn(conn)
}

// withTx runs fn inside a transaction, retrying it on serialization failures.
func withTx(ctx context.Context, pool db.Pool, fn func(tx pgx.Tx) error) error {
	return withConn(ctx, pool, func(conn *pgxpool.Conn) error {
		return crdbpgx.ExecuteTx(ctx, conn, pgx.TxOptions{}, fn)
	})
}

// queryPage counts every row p matches, then loads one page of them.
func queryPage[T any](ctx context.Context, pool db.Pool, p *readmodel.Pipeline, page readmodel.Page, scan func(pgx.Rows) (T, error)) (models.Page[T], error) {
	countSQL, countArgs := p.BuildCount()
	p.Paginate(page)
	pageSQL, pageArgs := p.Build()

	var (
		total int64
		docs  []T
	)
	err := withConn(ctx, pool, func(conn *pgxpool.Conn) error {
		if err := conn.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
			return fmt.Errorf("count rows: %w", err)
		}
		var err error
		docs, err = collect(ctx, conn, pageSQL, pageArgs, scan)
		return err
	})
	if err != nil {
		return models.Page[T]{}, err
	}
	return models.NewPage(docs, page.Number, page.Limit, total), nil
}

// queryAll loads every row of p.
func queryAll[T any](ctx context.Context, pool db.Pool, p *readmodel.Pipeline, scan func(pgx.Rows) (T, error)) ([]T, error) {
	sql, args := p.Build()
	var docs []T
	err := withConn(ctx, pool, func(conn *pgxpool.Conn) error {
		var err error
		docs, err = collect(ctx, conn, sql, args, scan)
		return err
	})
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []T{}
	}
	return docs, nil
}

func collect[T any](ctx context.Context, conn *pgxpool.Conn, sql string, args []any, scan func(pgx.Rows) (T, error)) ([]T, error) {
	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	var docs []T
	for rows.Next() {
		doc, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return docs, nil
}

// notFound maps pgx.ErrNoRows to ErrNotFound and wraps anything else.
func notFound(err error, action string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", action, err)
}

// ownerColumns projects the public owner summary of the user aliased as alias.
func ownerColumns(alias string) []readmodel.Column {
	return []readmodel.Column{
		readmodel.ColAs(alias+".id", "owner._id"),
		readmodel.ColAs(alias+".user_name", "owner.userName"),
		readmodel.ColAs(alias+".full_name", "owner.fullName"),
		readmodel.ColAs(alias+".avatar_url", "owner.avatar"),
	}
}

// videoSummaryColumns projects a feed entry of the video aliased v with owner o.
func videoSummaryColumns() []readmodel.Column {
	cols := []readmodel.Column{
		readmodel.ColAs("v.id", "_id"),
		readmodel.ColAs("v.video_url", "videoFile"),
		readmodel.ColAs("v.thumbnail_url", "thumbnail"),
		readmodel.ColAs("v.title", "title"),
		readmodel.ColAs("v.description", "description"),
		readmodel.ColAs("v.duration", "duration"),
		readmodel.ColAs("v.views", "views"),
		readmodel.ColAs("v.is_published", "isPublished"),
		readmodel.ColAs("v.created_at", "createdAt"),
	}
	return append(cols, ownerColumns("o")...)
}

func videoSummaryDest(v *models.VideoSummary) []any {
	return []any{
		&v.ID, &v.VideoFile, &v.Thumbnail, &v.Title, &v.Description, &v.Duration,
		&v.Views, &v.IsPublished, &v.CreatedAt,
		&v.Owner.ID, &v.Owner.UserName, &v.Owner.FullName, &v.Owner.Avatar,
	}
}

const likesOnVideo = "(SELECT COUNT(*) FROM likes l WHERE l.video_id = v.id)"

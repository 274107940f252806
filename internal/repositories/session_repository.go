package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/models"
)

// PostgresSessionStore keeps each user's single valid refresh token in the
// users table. Its writes touch only the refresh_token column.
type PostgresSessionStore struct {
	pool db.Pool
}

// NewPostgresSessionStore constructs a session store backed by PostgreSQL.
func NewPostgresSessionStore(pool db.Pool) *PostgresSessionStore {
	return &PostgresSessionStore{pool: pool}
}

// SaveRefreshToken overwrites the stored refresh token for userID.
func (s *PostgresSessionStore) SaveRefreshToken(ctx context.Context, userID, token string) error {
	return s.setToken(ctx, userID, &token)
}

// ClearRefreshToken removes the stored refresh token for userID.
func (s *PostgresSessionStore) ClearRefreshToken(ctx context.Context, userID string) error {
	return s.setToken(ctx, userID, nil)
}

func (s *PostgresSessionStore) setToken(ctx context.Context, userID string, token *string) error {
	return withConn(ctx, s.pool, func(conn *pgxpool.Conn) error {
		tag, err := conn.Exec(ctx, `UPDATE users SET refresh_token = $2 WHERE id = $1`, userID, token)
		if err != nil {
			return fmt.Errorf("update refresh token: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// FindSession loads the public user together with the stored refresh token.
func (s *PostgresSessionStore) FindSession(ctx context.Context, userID string) (models.User, error) {
	var user models.User
	err := withConn(ctx, s.pool, func(conn *pgxpool.Conn) error {
		row := conn.QueryRow(ctx, `SELECT `+publicUserColumns+`, COALESCE(refresh_token, '') FROM users WHERE id = $1`, userID)
		if err := row.Scan(userDest(&user, &user.RefreshToken)...); err != nil {
			return notFound(err, "select session")
		}
		return nil
	})
	return user, err
}

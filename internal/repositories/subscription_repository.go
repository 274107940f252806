package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/readmodel"
)

// SubscriptionRepository exposes data access for channel subscriptions.
type SubscriptionRepository interface {
	Toggle(ctx context.Context, sub models.Subscription) (bool, error)
	Subscribers(ctx context.Context, channelID string) ([]models.Subscriber, error)
	SubscribedChannels(ctx context.Context, subscriberID string) ([]models.SubscribedChannel, error)
}

// PostgresSubscriptionRepository provides PostgreSQL-backed persistence for subscriptions.
type PostgresSubscriptionRepository struct {
	pool db.Pool
}

// NewPostgresSubscriptionRepository constructs a subscription repository backed by PostgreSQL.
func NewPostgresSubscriptionRepository(pool db.Pool) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{pool: pool}
}

// Toggle unsubscribes sub.SubscriberID from sub.ChannelID when subscribed and
// subscribes otherwise. It reports whether the subscription exists afterwards.
func (r *PostgresSubscriptionRepository) Toggle(ctx context.Context, sub models.Subscription) (bool, error) {
	var subscribed bool
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM subscriptions WHERE subscriber_id = $1 AND channel_id = $2`,
			sub.SubscriberID, sub.ChannelID)
		if err != nil {
			return fmt.Errorf("delete subscription: %w", err)
		}
		if tag.RowsAffected() > 0 {
			subscribed = false
			return nil
		}

		_, err = tx.Exec(ctx, `
            INSERT INTO subscriptions (id, subscriber_id, channel_id, created_at)
            VALUES ($1, $2, $3, $4)
            ON CONFLICT (subscriber_id, channel_id) DO NOTHING
        `, sub.ID, sub.SubscriberID, sub.ChannelID, sub.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert subscription: %w", err)
		}
		subscribed = true
		return nil
	})
	return subscribed, err
}

// Subscribers lists the users following channelID, newest first. Each entry
// reports whether the channel follows that subscriber back.
func (r *PostgresSubscriptionRepository) Subscribers(ctx context.Context, channelID string) ([]models.Subscriber, error) {
	p := readmodel.From("subscriptions s").
		Lookup("JOIN users u ON u.id = s.subscriber_id").
		Match("s.channel_id = ?", channelID).
		Project(
			readmodel.ColAs("u.id", "_id"),
			readmodel.ColAs("u.user_name", "userName"),
			readmodel.ColAs("u.full_name", "fullName"),
			readmodel.ColAs("u.avatar_url", "avatar"),
		).
		AddField("subscribersCount", "(SELECT COUNT(*) FROM subscriptions x WHERE x.channel_id = u.id)").
		AddField("subscribedToSubscriber", "EXISTS (SELECT 1 FROM subscriptions x WHERE x.channel_id = u.id AND x.subscriber_id = s.channel_id)").
		AddField("subscribedAt", "s.created_at").
		Sort(readmodel.Desc("s.created_at"))

	return queryAll(ctx, r.pool, p, func(rows pgx.Rows) (models.Subscriber, error) {
		var s models.Subscriber
		err := rows.Scan(&s.ID, &s.UserName, &s.FullName, &s.Avatar, &s.SubscribersCount, &s.SubscribedToSubscriber, &s.SubscribedAt)
		return s, err
	})
}

// SubscribedChannels lists the channels subscriberID follows, newest first.
func (r *PostgresSubscriptionRepository) SubscribedChannels(ctx context.Context, subscriberID string) ([]models.SubscribedChannel, error) {
	p := readmodel.From("subscriptions s").
		Lookup("JOIN users c ON c.id = s.channel_id").
		Match("s.subscriber_id = ?", subscriberID).
		Project(
			readmodel.ColAs("c.id", "_id"),
			readmodel.ColAs("c.user_name", "userName"),
			readmodel.ColAs("c.full_name", "fullName"),
			readmodel.ColAs("c.avatar_url", "avatar"),
			readmodel.ColAs("s.created_at", "subscribedAt"),
		).
		Sort(readmodel.Desc("s.created_at"))

	return queryAll(ctx, r.pool, p, func(rows pgx.Rows) (models.SubscribedChannel, error) {
		var c models.SubscribedChannel
		err := rows.Scan(&c.ID, &c.UserName, &c.FullName, &c.Avatar, &c.SubscribedAt)
		return c, err
	})
}

var _ SubscriptionRepository = (*PostgresSubscriptionRepository)(nil)

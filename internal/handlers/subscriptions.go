package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vidtube/backend/internal/apierror"
	"github.com/vidtube/backend/internal/authz"
	"github.com/vidtube/backend/internal/ids"
	"github.com/vidtube/backend/internal/metrics"
	"github.com/vidtube/backend/internal/models"
)

// SubscriptionHandler lets users follow channels.
type SubscriptionHandler struct {
	Subscriptions SubscriptionStore
	Users         UserStore
	NowFunc       func() time.Time
}

type subscriptionState struct {
	IsSubscribed bool `json:"isSubscribed"`
}

// Toggle handles POST /api/v1/subscriptions/channel/{channelId}.
func (h SubscriptionHandler) Toggle(w http.ResponseWriter, r *http.Request, caller models.User) error {
	ctx := r.Context()

	channelID := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "channelId")))
	if ids.Valid(channelID) && authz.SameID(channelID, caller.ID) {
		return apierror.BadRequest("You cannot subscribe to your own channel")
	}
	channel, err := authz.Load(ctx, "channel", channelID, h.Users.FindPublicByID)
	if err != nil {
		return err
	}

	now := nowFrom(h.NowFunc)
	subscribed, err := h.Subscriptions.Toggle(ctx, models.Subscription{
		ID:           ids.NewAt(now),
		SubscriberID: caller.ID,
		ChannelID:    channel.ID,
		CreatedAt:    now,
	})
	if err != nil {
		return apierror.Internal("Failed to toggle subscription", err)
	}
	metrics.RecordToggle("subscription", subscribed)

	if subscribed {
		return respond(ctx, w, http.StatusCreated, subscriptionState{IsSubscribed: true}, "Subscribed successfully")
	}
	return respond(ctx, w, http.StatusOK, subscriptionState{IsSubscribed: false}, "Unsubscribed successfully")
}

// Subscribers handles GET /api/v1/subscriptions/subscribers/{channelId}.
func (h SubscriptionHandler) Subscribers(w http.ResponseWriter, r *http.Request, _ models.User) error {
	ctx := r.Context()

	channelID := strings.TrimSpace(chi.URLParam(r, "channelId"))
	if !ids.Valid(channelID) {
		return apierror.BadRequest("Invalid channel id")
	}

	subscribers, err := h.Subscriptions.Subscribers(ctx, strings.ToLower(channelID))
	if err != nil {
		return apierror.Internal("Failed to load subscribers", err)
	}
	return respond(ctx, w, http.StatusOK, subscribers, "Subscribers fetched successfully")
}

// SubscribedChannels handles GET /api/v1/subscriptions/subscribed-channels.
func (h SubscriptionHandler) SubscribedChannels(w http.ResponseWriter, r *http.Request, caller models.User) error {
	ctx := r.Context()
	channels, err := h.Subscriptions.SubscribedChannels(ctx, caller.ID)
	if err != nil {
		return apierror.Internal("Failed to load subscribed channels", err)
	}
	return respond(ctx, w, http.StatusOK, channels, "Subscribed channels fetched successfully")
}

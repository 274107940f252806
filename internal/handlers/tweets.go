package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vidtube/backend/internal/apierror"
	"github.com/vidtube/backend/internal/authz"
	"github.com/vidtube/backend/internal/ids"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
)

// TweetHandler serves short text posts.
type TweetHandler struct {
	Tweets  TweetStore
	NowFunc func() time.Time
}

type tweetRequest struct {
	Content string `json:"content" validate:"required,max=280"`
}

// Create handles POST /api/v1/tweets/create.
func (h TweetHandler) Create(w http.ResponseWriter, r *http.Request, caller models.User) error {
	ctx := r.Context()

	var req tweetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return apierror.BadRequest("content is required")
	}

	now := nowFrom(h.NowFunc)
	tweet := models.Tweet{
		ID:        ids.NewAt(now),
		OwnerID:   caller.ID,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.Tweets.Create(ctx, tweet); err != nil {
		return apierror.Internal("Failed to create tweet", err)
	}
	return respond(ctx, w, http.StatusCreated, tweet, "Tweet created successfully")
}

// Mine handles GET /api/v1/tweets/get-tweets.
func (h TweetHandler) Mine(w http.ResponseWriter, r *http.Request, caller models.User) error {
	return h.list(w, r, caller.ID, caller)
}

// ByUser handles GET /api/v1/tweets/user/{userId}.
func (h TweetHandler) ByUser(w http.ResponseWriter, r *http.Request, caller models.User) error {
	userID := strings.TrimSpace(chi.URLParam(r, "userId"))
	if !ids.Valid(userID) {
		return apierror.BadRequest("Invalid user id")
	}
	return h.list(w, r, strings.ToLower(userID), caller)
}

func (h TweetHandler) list(w http.ResponseWriter, r *http.Request, ownerID string, caller models.User) error {
	ctx := r.Context()
	tweets, err := h.Tweets.ListByOwner(ctx, ownerID, caller.ID)
	if err != nil {
		return apierror.Internal("Failed to load tweets", err)
	}
	return respond(ctx, w, http.StatusOK, tweets, "Tweets fetched successfully")
}

// Update handles PATCH /api/v1/tweets/update-tweets/{tweetId}.
func (h TweetHandler) Update(w http.ResponseWriter, r *http.Request, caller models.User) error {
	ctx := r.Context()

	tweet, err := authz.Load(ctx, "tweet", chi.URLParam(r, "tweetId"), h.Tweets.FindByID)
	if err != nil {
		return err
	}
	if err := authz.RequireOwner(caller, tweet.OwnerID, "edit this tweet"); err != nil {
		return err
	}

	var req tweetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return apierror.BadRequest("content is required")
	}

	updated, err := h.Tweets.Update(ctx, tweet.ID, content, nowFrom(h.NowFunc))
	if err != nil {
		return tweetWriteError(err, "Failed to update tweet")
	}
	return respond(ctx, w, http.StatusOK, updated, "Tweet updated successfully")
}

// Delete handles DELETE /api/v1/tweets/delete-tweet/{tweetId}.
func (h TweetHandler) Delete(w http.ResponseWriter, r *http.Request, caller models.User) error {
	ctx := r.Context()

	tweet, err := authz.Load(ctx, "tweet", chi.URLParam(r, "tweetId"), h.Tweets.FindByID)
	if err != nil {
		return err
	}
	if err := authz.RequireOwner(caller, tweet.OwnerID, "delete this tweet"); err != nil {
		return err
	}

	if err := h.Tweets.Delete(ctx, tweet.ID); err != nil {
		return tweetWriteError(err, "Failed to delete tweet")
	}
	return respond(ctx, w, http.StatusOK, nil, "Tweet deleted successfully")
}

func tweetWriteError(err error, message string) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return apierror.NotFound("Tweet not found")
	}
	return apierror.Internal(message, err)
}

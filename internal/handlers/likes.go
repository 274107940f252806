package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vidtube/backend/internal/apierror"
	"github.com/vidtube/backend/internal/authz"
	"github.com/vidtube/backend/internal/ids"
	"github.com/vidtube/backend/internal/metrics"
	"github.com/vidtube/backend/internal/models"
)

// LikeHandler toggles likes on videos, comments and tweets.
type LikeHandler struct {
	Likes    LikeStore
	Videos   VideoStore
	Comments CommentStore
	Tweets   TweetStore
	NowFunc  func() time.Time
}

type likeState struct {
	IsLiked bool `json:"isLiked"`
}

// ToggleVideo handles POST /api/v1/likes/toggle/v/{videoId}.
func (h LikeHandler) ToggleVideo(w http.ResponseWriter, r *http.Request, caller models.User) error {
	video, err := loadVisibleVideo(r.Context(), h.Videos, chi.URLParam(r, "videoId"), caller)
	if err != nil {
		return err
	}
	return h.toggle(w, r, caller, models.LikeTargetVideo, video.ID)
}

// ToggleComment handles POST /api/v1/likes/toggle/c/{commentId}.
func (h LikeHandler) ToggleComment(w http.ResponseWriter, r *http.Request, caller models.User) error {
	comment, err := authz.Load(r.Context(), "comment", chi.URLParam(r, "commentId"), h.Comments.FindByID)
	if err != nil {
		return err
	}
	return h.toggle(w, r, caller, models.LikeTargetComment, comment.ID)
}

// ToggleTweet handles POST /api/v1/likes/toggle/t/{tweetId}.
func (h LikeHandler) ToggleTweet(w http.ResponseWriter, r *http.Request, caller models.User) error {
	tweet, err := authz.Load(r.Context(), "tweet", chi.URLParam(r, "tweetId"), h.Tweets.FindByID)
	if err != nil {
		return err
	}
	return h.toggle(w, r, caller, models.LikeTargetTweet, tweet.ID)
}

func (h LikeHandler) toggle(w http.ResponseWriter, r *http.Request, caller models.User, target models.LikeTarget, targetID string) error {
	ctx := r.Context()
	now := nowFrom(h.NowFunc)

	liked, err := h.Likes.Toggle(ctx, models.Like{
		ID:        ids.NewAt(now),
		LikedBy:   caller.ID,
		Target:    target,
		TargetID:  targetID,
		CreatedAt: now,
	})
	if err != nil {
		return apierror.Internal("Failed to toggle like", err)
	}
	metrics.RecordToggle(string(target), liked)
	return respondLike(ctx, w, liked)
}

func respondLike(ctx context.Context, w http.ResponseWriter, liked bool) error {
	if liked {
		return respond(ctx, w, http.StatusCreated, likeState{IsLiked: true}, "Like added")
	}
	return respond(ctx, w, http.StatusOK, likeState{IsLiked: false}, "Like removed")
}

// LikedVideos handles GET /api/v1/likes/videos.
func (h LikeHandler) LikedVideos(w http.ResponseWriter, r *http.Request, caller models.User) error {
	ctx := r.Context()
	videos, err := h.Likes.LikedVideos(ctx, caller.ID)
	if err != nil {
		return apierror.Internal("Failed to load liked videos", err)
	}
	return respond(ctx, w, http.StatusOK, videos, "Liked videos fetched successfully")
}

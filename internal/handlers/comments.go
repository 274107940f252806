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
	"github.com/vidtube/backend/internal/readmodel"
	"github.com/vidtube/backend/internal/repositories"
)

// CommentHandler serves the comment thread of a video.
type CommentHandler struct {
	Comments CommentStore
	Videos   VideoStore
	NowFunc  func() time.Time
}

type commentRequest struct {
	Content string `json:"content" validate:"required,max=280"`
}

// List handles GET /api/v1/comments/{videoId}.
func (h CommentHandler) List(w http.ResponseWriter, r *http.Request, caller models.User) error {
	ctx := r.Context()

	video, err := loadVisibleVideo(ctx, h.Videos, chi.URLParam(r, "videoId"), caller)
	if err != nil {
		return err
	}

	page, err := h.Comments.ListForVideo(ctx, video.ID, caller.ID, readmodel.ParsePage(r.URL.Query()))
	if err != nil {
		return apierror.Internal("Failed to load comments", err)
	}
	return respond(ctx, w, http.StatusOK, page, "Comments fetched successfully")
}

// Add handles POST /api/v1/comments/{videoId}.
func (h CommentHandler) Add(w http.ResponseWriter, r *http.Request, caller models.User) error {
	ctx := r.Context()

	video, err := loadVisibleVideo(ctx, h.Videos, chi.URLParam(r, "videoId"), caller)
	if err != nil {
		return err
	}

	var req commentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return apierror.BadRequest("content is required")
	}

	now := nowFrom(h.NowFunc)
	comment := models.Comment{
		ID:        ids.NewAt(now),
		VideoID:   video.ID,
		OwnerID:   caller.ID,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.Comments.Create(ctx, comment); err != nil {
		return apierror.Internal("Failed to add comment", err)
	}
	return respond(ctx, w, http.StatusCreated, comment, "Comment added successfully")
}

// Update handles PATCH /api/v1/comments/c/{commentId}.
func (h CommentHandler) Update(w http.ResponseWriter, r *http.Request, caller models.User) error {
	ctx := r.Context()

	comment, err := authz.Load(ctx, "comment", chi.URLParam(r, "commentId"), h.Comments.FindByID)
	if err != nil {
		return err
	}
	if err := authz.RequireOwner(caller, comment.OwnerID, "edit this comment"); err != nil {
		return err
	}

	var req commentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return apierror.BadRequest("content is required")
	}

	updated, err := h.Comments.Update(ctx, comment.ID, content, nowFrom(h.NowFunc))
	if err != nil {
		return commentWriteError(err, "Failed to update comment")
	}
	return respond(ctx, w, http.StatusOK, updated, "Comment updated successfully")
}

// Delete handles DELETE /api/v1/comments/c/{commentId}.
func (h CommentHandler) Delete(w http.ResponseWriter, r *http.Request, caller models.User) error {
	ctx := r.Context()

	comment, err := authz.Load(ctx, "comment", chi.URLParam(r, "commentId"), h.Comments.FindByID)
	if err != nil {
		return err
	}
	if err := authz.RequireOwner(caller, comment.OwnerID, "delete this comment"); err != nil {
		return err
	}

	if err := h.Comments.Delete(ctx, comment.ID); err != nil {
		return commentWriteError(err, "Failed to delete comment")
	}
	return respond(ctx, w, http.StatusOK, nil, "Comment deleted successfully")
}

func commentWriteError(err error, message string) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return apierror.NotFound("Comment not found")
	}
	return apierror.Internal(message, err)
}

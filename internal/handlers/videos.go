package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vidtube/backend/internal/apierror"
	"github.com/vidtube/backend/internal/authz"
	"github.com/vidtube/backend/internal/ids"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/media"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/readmodel"
	"github.com/vidtube/backend/internal/repositories"
)

// VideoHandler provides HTTP handlers for uploading and browsing videos.
type VideoHandler struct {
	Videos         VideoStore
	History        HistoryRecorder
	Media          MediaCoordinator
	Stager         FileStager
	MaxUploadBytes int64
	NowFunc        func() time.Time
}

type publishVideoRequest struct {
	Title       string `json:"title" validate:"required,min=3,max=100"`
	Description string `json:"description" validate:"omitempty,min=3,max=300"`
}

type updateVideoRequest struct {
	Title       string `json:"title" validate:"omitempty,min=3,max=100"`
	Description string `json:"description" validate:"omitempty,min=3,max=300"`
}

// List handles GET /api/v1/videos.
func (h VideoHandler) List(w http.ResponseWriter, r *http.Request, _ models.User) error {
	ctx := r.Context()
	values := r.URL.Query()

	ownerID := strings.TrimSpace(values.Get("userId"))
	if ownerID != "" && !ids.Valid(ownerID) {
		return apierror.BadRequest("Invalid user id")
	}

	page, err := h.Videos.Feed(ctx, repositories.FeedQuery{
		Text:     strings.TrimSpace(values.Get("query")),
		OwnerID:  strings.ToLower(ownerID),
		SortBy:   values.Get("sortBy"),
		SortType: values.Get("sortType"),
		Page:     readmodel.ParsePage(values),
	})
	if err != nil {
		return apierror.Internal("Failed to load videos", err)
	}
	return respond(ctx, w, http.StatusOK, page, "Videos fetched successfully")
}

// Publish handles POST /api/v1/videos.
func (h VideoHandler) Publish(w http.ResponseWriter, r *http.Request, caller models.User) error {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if err := parseMultipart(w, r, h.MaxUploadBytes); err != nil {
		return err
	}
	defer releaseMultipart(r)

	req := publishVideoRequest{
		Title:       formValue(r, "title"),
		Description: formValue(r, "description"),
	}
	if err := validate(&req); err != nil {
		return err
	}
	if formFile(r, "videoFile") == nil {
		return apierror.BadRequest("Video file is missing")
	}
	if formFile(r, "thumbnail") == nil {
		return apierror.BadRequest("Thumbnail file is missing")
	}

	staged, err := stageFiles(ctx, h.Stager, h.Media, r, "videoFile", "thumbnail")
	if err != nil {
		return err
	}

	videoFile, meta, err := h.Media.Store(ctx, staged["videoFile"], media.KindVideo)
	if err != nil {
		h.Media.Discard(ctx, staged["thumbnail"])
		return apierror.Internal("Failed to upload video", err)
	}
	thumbnail, _, err := h.Media.Store(ctx, staged["thumbnail"], media.KindThumbnail)
	if err != nil {
		h.Media.Remove(ctx, videoFile, media.KindVideo)
		return apierror.Internal("Failed to upload thumbnail", err)
	}

	now := nowFrom(h.NowFunc)
	video := models.Video{
		ID:          ids.NewAt(now),
		OwnerID:     caller.ID,
		VideoFile:   videoFile,
		Thumbnail:   thumbnail,
		Title:       req.Title,
		Description: req.Description,
		Duration:    meta.Duration,
		IsPublished: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.Videos.Create(ctx, video); err != nil {
		h.Media.Remove(ctx, videoFile, media.KindVideo)
		h.Media.Remove(ctx, thumbnail, media.KindThumbnail)
		return apierror.Internal("Failed to publish video", err)
	}

	logger.Info("video published", "videoId", video.ID, "duration", video.Duration)
	return respond(ctx, w, http.StatusCreated, video, "Video published successfully")
}

// Get handles GET /api/v1/videos/{videoId} and records the view in the
// caller's watch history.
func (h VideoHandler) Get(w http.ResponseWriter, r *http.Request, caller models.User) error {
	ctx := r.Context()

	detail, err := authz.Load(ctx, "video", chi.URLParam(r, "videoId"), func(ctx context.Context, id string) (models.VideoDetail, error) {
		return h.Videos.Detail(ctx, id, caller.ID)
	})
	if err != nil {
		return err
	}

	if h.History != nil {
		if err := h.History.AddToHistory(ctx, caller.ID, detail.ID, nowFrom(h.NowFunc)); err != nil {
			logging.FromContext(ctx).Warn("record watch history", "videoId", detail.ID, "error", err)
		}
	}
	return respond(ctx, w, http.StatusOK, detail, "Video fetched successfully")
}

// Update handles PATCH /api/v1/videos/{videoId}. The body is JSON, or
// multipart when a new thumbnail is attached.
func (h VideoHandler) Update(w http.ResponseWriter, r *http.Request, caller models.User) error {
	ctx := r.Context()

	video, err := authz.Load(ctx, "video", chi.URLParam(r, "videoId"), h.Videos.FindByID)
	if err != nil {
		return err
	}
	if err := authz.RequireOwner(caller, video.OwnerID, "update this video"); err != nil {
		return err
	}

	var req updateVideoRequest
	hasThumbnail := false
	if isMultipart(r) {
		if err := parseMultipart(w, r, h.MaxUploadBytes); err != nil {
			return err
		}
		defer releaseMultipart(r)
		req = updateVideoRequest{Title: formValue(r, "title"), Description: formValue(r, "description")}
		if err := validate(&req); err != nil {
			return err
		}
		hasThumbnail = formFile(r, "thumbnail") != nil
	} else if err := decodeJSON(w, r, &req); err != nil {
		return err
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if req.Title == "" && req.Description == "" && !hasThumbnail {
		return apierror.BadRequest("title, description or thumbnail is required")
	}
	if req.Title != "" {
		video.Title = req.Title
	}
	if req.Description != "" {
		video.Description = req.Description
	}
	video.UpdatedAt = nowFrom(h.NowFunc)

	var updated models.Video
	if hasThumbnail {
		staged, err := stageFiles(ctx, h.Stager, h.Media, r, "thumbnail")
		if err != nil {
			return err
		}
		_, err = h.Media.Replace(ctx, staged["thumbnail"], media.KindThumbnail, video.Thumbnail, func(ctx context.Context, asset models.Asset) error {
			video.Thumbnail = asset
			var err error
			updated, err = h.Videos.Update(ctx, video)
			return err
		})
		if err != nil {
			return videoWriteError(err, "Failed to update video")
		}
	} else {
		updated, err = h.Videos.Update(ctx, video)
		if err != nil {
			return videoWriteError(err, "Failed to update video")
		}
	}

	return respond(ctx, w, http.StatusOK, updated, "Video updated successfully")
}

// Delete handles DELETE /api/v1/videos/{videoId}. Rows go first; remote
// assets are removed afterwards on a best-effort basis.
func (h VideoHandler) Delete(w http.ResponseWriter, r *http.Request, caller models.User) error {
	ctx := r.Context()

	video, err := authz.Load(ctx, "video", chi.URLParam(r, "videoId"), h.Videos.FindByID)
	if err != nil {
		return err
	}
	if err := authz.RequireOwner(caller, video.OwnerID, "delete this video"); err != nil {
		return err
	}

	if err := h.Videos.Delete(ctx, video.ID); err != nil {
		return videoWriteError(err, "Failed to delete video")
	}
	h.Media.Remove(ctx, video.VideoFile, media.KindVideo)
	h.Media.Remove(ctx, video.Thumbnail, media.KindThumbnail)

	logging.FromContext(ctx).Info("video deleted", "videoId", video.ID)
	return respond(ctx, w, http.StatusOK, nil, "Video deleted successfully")
}

// TogglePublish handles PATCH /api/v1/videos/toggle/publish/{videoId}.
func (h VideoHandler) TogglePublish(w http.ResponseWriter, r *http.Request, caller models.User) error {
	ctx := r.Context()

	video, err := authz.Load(ctx, "video", chi.URLParam(r, "videoId"), h.Videos.FindByID)
	if err != nil {
		return err
	}
	if err := authz.RequireOwner(caller, video.OwnerID, "change the publish status of this video"); err != nil {
		return err
	}

	updated, err := h.Videos.SetPublished(ctx, video.ID, !video.IsPublished, nowFrom(h.NowFunc))
	if err != nil {
		return videoWriteError(err, "Failed to toggle publish status")
	}
	return respond(ctx, w, http.StatusOK, updated, "Publish status toggled successfully")
}

func videoWriteError(err error, message string) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return apierror.NotFound("Video not found")
	}
	return apierror.Internal(message, err)
}

// loadVisibleVideo loads the video named by rawID as seen by caller.
// Unpublished videos exist only for their owner and are 404 to everyone else.
func loadVisibleVideo(ctx context.Context, videos VideoStore, rawID string, caller models.User) (models.Video, error) {
	video, err := authz.Load(ctx, "video", rawID, videos.FindByID)
	if err != nil {
		return models.Video{}, err
	}
	if !video.IsPublished && !authz.SameID(video.OwnerID, caller.ID) {
		return models.Video{}, apierror.NotFound("Video not found")
	}
	return video, nil
}

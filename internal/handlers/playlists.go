package handlers

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vidtube/backend/internal/apierror"
	"github.com/vidtube/backend/internal/authz"
	"github.com/vidtube/backend/internal/ids"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
)

// PlaylistHandler manages user playlists.
type PlaylistHandler struct {
	Playlists PlaylistStore
	Videos    VideoStore
	NowFunc   func() time.Time
}

type createPlaylistRequest struct {
	Name        string `json:"name" validate:"required,min=3,max=50"`
	Description string `json:"description" validate:"omitempty,max=300"`
}

type updatePlaylistRequest struct {
	Name        string `json:"name" validate:"omitempty,min=3,max=50"`
	Description string `json:"description" validate:"omitempty,max=300"`
}

// Create handles POST /api/v1/playlists.
func (h PlaylistHandler) Create(w http.ResponseWriter, r *http.Request, caller models.User) error {
	ctx := r.Context()

	var req createPlaylistRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}

	now := nowFrom(h.NowFunc)
	playlist := models.Playlist{
		ID:          ids.NewAt(now),
		OwnerID:     caller.ID,
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Videos:      []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if playlist.Name == "" {
		return apierror.BadRequest("name is required")
	}
	if err := h.Playlists.Create(ctx, playlist); err != nil {
		return apierror.Internal("Failed to create playlist", err)
	}
	return respond(ctx, w, http.StatusCreated, playlist, "Playlist created successfully")
}

// Get handles GET /api/v1/playlists/{playlistId}.
func (h PlaylistHandler) Get(w http.ResponseWriter, r *http.Request, _ models.User) error {
	ctx := r.Context()
	detail, err := authz.Load(ctx, "playlist", chi.URLParam(r, "playlistId"), h.Playlists.Detail)
	if err != nil {
		return err
	}
	return respond(ctx, w, http.StatusOK, detail, "Playlist fetched successfully")
}

// Update handles PATCH /api/v1/playlists/{playlistId}.
func (h PlaylistHandler) Update(w http.ResponseWriter, r *http.Request, caller models.User) error {
	ctx := r.Context()

	playlist, err := authz.Load(ctx, "playlist", chi.URLParam(r, "playlistId"), h.Playlists.FindByID)
	if err != nil {
		return err
	}
	if err := authz.RequireOwner(caller, playlist.OwnerID, "edit this playlist"); err != nil {
		return err
	}

	var req updatePlaylistRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	name := strings.TrimSpace(req.Name)
	description := strings.TrimSpace(req.Description)
	if name == "" && description == "" {
		return apierror.BadRequest("name or description is required")
	}
	if name == "" {
		name = playlist.Name
	}
	if description == "" {
		description = playlist.Description
	}

	updated, err := h.Playlists.Update(ctx, playlist.ID, name, description, nowFrom(h.NowFunc))
	if err != nil {
		return playlistWriteError(err, "Failed to update playlist")
	}
	return respond(ctx, w, http.StatusOK, updated, "Playlist updated successfully")
}

// Delete handles DELETE /api/v1/playlists/{playlistId}.
func (h PlaylistHandler) Delete(w http.ResponseWriter, r *http.Request, caller models.User) error {
	ctx := r.Context()

	playlist, err := authz.Load(ctx, "playlist", chi.URLParam(r, "playlistId"), h.Playlists.FindByID)
	if err != nil {
		return err
	}
	if err := authz.RequireOwner(caller, playlist.OwnerID, "delete this playlist"); err != nil {
		return err
	}

	if err := h.Playlists.Delete(ctx, playlist.ID); err != nil {
		return playlistWriteError(err, "Failed to delete playlist")
	}
	return respond(ctx, w, http.StatusOK, nil, "Playlist deleted successfully")
}

// AddVideo handles PATCH /api/v1/playlists/add/{videoId}/{playlistId}.
func (h PlaylistHandler) AddVideo(w http.ResponseWriter, r *http.Request, caller models.User) error {
	return h.changeEntries(w, r, caller, h.Playlists.AddVideo, "Video added to playlist successfully")
}

// RemoveVideo handles PATCH /api/v1/playlists/remove/{videoId}/{playlistId}.
func (h PlaylistHandler) RemoveVideo(w http.ResponseWriter, r *http.Request, caller models.User) error {
	return h.changeEntries(w, r, caller, h.Playlists.RemoveVideo, "Video removed from playlist successfully")
}

type entryChange func(ctx context.Context, playlistID, videoID string, at time.Time) (models.Playlist, error)

func (h PlaylistHandler) changeEntries(w http.ResponseWriter, r *http.Request, caller models.User, change entryChange, message string) error {
	ctx := r.Context()

	playlist, err := authz.Load(ctx, "playlist", chi.URLParam(r, "playlistId"), h.Playlists.FindByID)
	if err != nil {
		return err
	}
	if err := authz.RequireOwner(caller, playlist.OwnerID, "modify this playlist"); err != nil {
		return err
	}
	videoID := chi.URLParam(r, "videoId")
	video, err := loadVisibleVideo(ctx, h.Videos, videoID, caller)
	if err != nil {
		// Entries already in the playlist stay removable after their video is unpublished.
		listed := slices.ContainsFunc(playlist.Videos, func(id string) bool { return authz.SameID(id, videoID) })
		if apierror.StatusOf(err) != http.StatusNotFound || !listed {
			return err
		}
		video.ID = strings.ToLower(strings.TrimSpace(videoID))
	}

	updated, err := change(ctx, playlist.ID, video.ID, nowFrom(h.NowFunc))
	if err != nil {
		return playlistWriteError(err, "Failed to update playlist")
	}
	return respond(ctx, w, http.StatusOK, updated, message)
}

// UserPlaylists handles GET /api/v1/playlists/user/{userId}.
func (h PlaylistHandler) UserPlaylists(w http.ResponseWriter, r *http.Request, _ models.User) error {
	ctx := r.Context()

	userID := strings.TrimSpace(chi.URLParam(r, "userId"))
	if !ids.Valid(userID) {
		return apierror.BadRequest("Invalid user id")
	}

	playlists, err := h.Playlists.ListByOwner(ctx, strings.ToLower(userID))
	if err != nil {
		return apierror.Internal("Failed to load playlists", err)
	}
	return respond(ctx, w, http.StatusOK, playlists, "User playlists fetched successfully")
}

func playlistWriteError(err error, message string) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return apierror.NotFound("Playlist not found")
	}
	return apierror.Internal(message, err)
}

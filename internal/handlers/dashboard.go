package handlers

import (
	"net/http"

	"github.com/vidtube/backend/internal/apierror"
	"github.com/vidtube/backend/internal/models"
)

// DashboardHandler reports on the caller's own channel.
type DashboardHandler struct {
	Dashboard DashboardStore
}

// Stats handles GET /api/v1/dashboard/stats.
func (h DashboardHandler) Stats(w http.ResponseWriter, r *http.Request, caller models.User) error {
	ctx := r.Context()
	stats, err := h.Dashboard.Stats(ctx, caller.ID)
	if err != nil {
		return apierror.Internal("Failed to load channel stats", err)
	}
	return respond(ctx, w, http.StatusOK, stats, "Channel stats fetched successfully")
}

// Videos handles GET /api/v1/dashboard/videos.
func (h DashboardHandler) Videos(w http.ResponseWriter, r *http.Request, caller models.User) error {
	ctx := r.Context()
	videos, err := h.Dashboard.Videos(ctx, caller.ID)
	if err != nil {
		return apierror.Internal("Failed to load channel videos", err)
	}
	return respond(ctx, w, http.StatusOK, videos, "Videos fetched successfully")
}

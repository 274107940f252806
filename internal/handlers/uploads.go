package handlers

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/vidtube/backend/internal/apierror"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/media"
)

// multipartMemory is the part of a multipart body kept in memory before
// spilling to temporary files.
const multipartMemory = 8 << 20

// parseMultipart bounds and parses a multipart/form-data body. Callers must
// release the parsed form with releaseMultipart.
func parseMultipart(w http.ResponseWriter, r *http.Request, limit int64) error {
	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return apierror.Wrap(http.StatusRequestEntityTooLarge, "Upload too large", err)
		case errors.Is(err, http.ErrNotMultipart):
			return apierror.Wrap(http.StatusBadRequest, "Request must be multipart/form-data", err)
		default:
			return apierror.Wrap(http.StatusBadRequest, "Invalid multipart body", err)
		}
	}
	return nil
}

func releaseMultipart(r *http.Request) {
	if r.MultipartForm == nil {
		return
	}
	if err := r.MultipartForm.RemoveAll(); err != nil {
		logging.FromContext(r.Context()).Warn("remove multipart temp files", "error", err)
	}
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "multipart/form-data")
}

// formFile returns the first file posted under field, or nil.
func formFile(r *http.Request, field string) *multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	files := r.MultipartForm.File[field]
	if len(files) == 0 {
		return nil
	}
	return files[0]
}

func formValue(r *http.Request, field string) string {
	return strings.TrimSpace(r.FormValue(field))
}

// stageFiles copies the named uploads to the staging area. Missing optional
// fields are skipped; on failure everything already staged is discarded.
func stageFiles(ctx context.Context, stager FileStager, coordinator MediaCoordinator, r *http.Request, fields ...string) (map[string]media.StagedFile, error) {
	staged := make(map[string]media.StagedFile, len(fields))
	for _, field := range fields {
		header := formFile(r, field)
		if header == nil {
			continue
		}
		file, err := stager.Stage(field, header)
		if err != nil {
			discardStaged(ctx, coordinator, staged)
			return nil, apierror.Internal("Failed to read "+field, err)
		}
		staged[field] = file
	}
	return staged, nil
}

func discardStaged(ctx context.Context, coordinator MediaCoordinator, staged map[string]media.StagedFile) {
	if len(staged) == 0 {
		return
	}
	files := make([]media.StagedFile, 0, len(staged))
	for _, f := range staged {
		files = append(files, f)
	}
	coordinator.Discard(ctx, files...)
}

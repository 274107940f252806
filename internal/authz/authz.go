// Package authz guards mutations of owned resources: the resource must exist
// and belong to the authenticated caller.
package authz

import (
	"context"
	"errors"
	"strings"

	"github.com/vidtube/backend/internal/apierror"
	"github.com/vidtube/backend/internal/ids"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
)

// Finder loads a resource by id.
type Finder[T any] func(ctx context.Context, id string) (T, error)

// Load validates id, then fetches the resource. Malformed ids are 400, missing
// resources 404.
func Load[T any](ctx context.Context, kind, id string, find Finder[T]) (T, error) {
	var zero T
	id = strings.TrimSpace(id)
	if !ids.Valid(id) {
		return zero, apierror.BadRequest("Invalid " + kind + " id")
	}

	resource, err := find(ctx, strings.ToLower(id))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return zero, apierror.NotFound(title(kind) + " not found")
		}
		return zero, apierror.Internal("Failed to load "+kind, err)
	}
	return resource, nil
}

// RequireOwner rejects the action with 403 unless caller owns the resource.
func RequireOwner(caller models.User, ownerID, action string) error {
	if caller.ID == "" || !SameID(caller.ID, ownerID) {
		return apierror.Forbidden("You are not allowed to " + action)
	}
	return nil
}

// SameID compares identifiers ignoring case and surrounding whitespace.
func SameID(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

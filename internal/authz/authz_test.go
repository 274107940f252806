package authz

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/vidtube/backend/internal/apierror"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
)

const (
	ownerID    = "65f1c0a2b3c4d5e6f7a8b9c0"
	strangerID = "65f1c0a2b3c4d5e6f7a8b9c1"
	commentID  = "65f1c0a2b3c4d5e6f7a8b9d0"
)

func findComment(_ context.Context, id string) (models.Comment, error) {
	if id != commentID {
		return models.Comment{}, repositories.ErrNotFound
	}
	return models.Comment{ID: id, OwnerID: ownerID, Content: "hello"}, nil
}

func TestLoad(t *testing.T) {
	cases := []struct {
		name        string
		id          string
		find        Finder[models.Comment]
		wantStatus  int
		wantMessage string
	}{
		{name: "malformed id", id: "123", find: findComment, wantStatus: http.StatusBadRequest, wantMessage: "Invalid comment id"},
		{name: "missing", id: "65f1c0a2b3c4d5e6f7a8ffff", find: findComment, wantStatus: http.StatusNotFound, wantMessage: "Comment not found"},
		{name: "store failure", id: commentID, find: func(context.Context, string) (models.Comment, error) {
			return models.Comment{}, errors.New("connection reset")
		}, wantStatus: http.StatusInternalServerError},
		{name: "found", id: commentID, find: findComment},
		{name: "found upper-case id", id: "65F1C0A2B3C4D5E6F7A8B9D0", find: findComment},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			comment, err := Load(context.Background(), "comment", tc.id, tc.find)
			if tc.wantStatus == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if comment.ID != commentID {
					t.Fatalf("unexpected comment %+v", comment)
				}
				return
			}
			if got := apierror.StatusOf(err); got != tc.wantStatus {
				t.Fatalf("status = %d want %d (%v)", got, tc.wantStatus, err)
			}
			if tc.wantMessage != "" && apierror.MessageOf(err) != tc.wantMessage {
				t.Fatalf("message = %q want %q", apierror.MessageOf(err), tc.wantMessage)
			}
		})
	}
}

func TestRequireOwnerComparesAgainstCaller(t *testing.T) {
	if err := RequireOwner(models.User{ID: ownerID}, ownerID, "edit this comment"); err != nil {
		t.Fatalf("owner rejected: %v", err)
	}
	if err := RequireOwner(models.User{ID: "65F1C0A2B3C4D5E6F7A8B9C0"}, ownerID, "edit this comment"); err != nil {
		t.Fatalf("owner with different case rejected: %v", err)
	}

	err := RequireOwner(models.User{ID: strangerID}, ownerID, "edit this comment")
	if apierror.StatusOf(err) != http.StatusForbidden {
		t.Fatalf("expected 403 for stranger, got %v", err)
	}
	if err := RequireOwner(models.User{}, "", "edit this comment"); apierror.StatusOf(err) != http.StatusForbidden {
		t.Fatalf("expected anonymous caller rejected even for empty owner, got %v", err)
	}
}

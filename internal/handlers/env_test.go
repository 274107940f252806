package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/config"
	"github.com/vidtube/backend/internal/ids"
	"github.com/vidtube/backend/internal/models"
)

type testEnv struct {
	t         *testing.T
	router    http.Handler
	users     *memUsers
	videos    *memVideos
	comments  *memComments
	likes     *memLikes
	playlists *memPlaylists
	subs      *memSubscriptions
	tweets    *memTweets
	media     *fakeMedia
	sessions  *auth.Manager
}

func newTestEnv(t *testing.T, overrides ...func(*Dependencies)) *testEnv {
	t.Helper()

	tokens, err := auth.NewTokenService(config.TokenConfig{
		AccessSecret:  "test-access-secret",
		AccessExpiry:  time.Minute,
		RefreshSecret: "test-refresh-secret",
		RefreshExpiry: time.Hour,
	})
	if err != nil {
		t.Fatalf("new token service: %v", err)
	}

	env := &testEnv{
		t:         t,
		users:     newMemUsers(),
		videos:    newMemVideos(),
		comments:  newMemComments(),
		likes:     newMemLikes(),
		playlists: newMemPlaylists(),
		subs:      newMemSubscriptions(),
		tweets:    newMemTweets(),
		media:     &fakeMedia{duration: 42.5},
	}
	env.sessions = auth.NewManager(tokens, env.users)

	deps := Dependencies{
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		Auth:           auth.Gate{Tokens: tokens, Users: env.users},
		Users:          env.users,
		Sessions:       env.sessions,
		Videos:         env.videos,
		Comments:       env.comments,
		Likes:          env.likes,
		Playlists:      env.playlists,
		Subscriptions:  env.subs,
		Tweets:         env.tweets,
		Dashboard:      stubDashboard{stats: models.ChannelStats{TotalVideos: 3, TotalViews: 120}},
		Media:          env.media,
		Stager:         memStager{},
		MaxUploadBytes: 1 << 20,
		Started:        time.Now().Add(-time.Minute),
	}
	for _, override := range overrides {
		override(&deps)
	}
	env.router = NewRouter(deps)
	return env
}

// seedUser stores a user directly and returns it with its password hash.
func (e *testEnv) seedUser(userName, password string) models.User {
	e.t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		e.t.Fatalf("hash password: %v", err)
	}
	now := time.Now().UTC()
	user := models.User{
		ID:        ids.New(),
		UserName:  userName,
		Email:     userName + "@example.com",
		FullName:  strings.ToUpper(userName[:1]) + userName[1:] + " Tester",
		Avatar:    models.Asset{URL: "https://cdn.test/avatar/" + userName, PublicID: "avatar/" + userName},
		Password:  hash,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.users.Create(context.Background(), user); err != nil {
		e.t.Fatalf("seed user: %v", err)
	}
	return user
}

// tokenFor starts a session for user and returns its access token.
func (e *testEnv) tokenFor(user models.User) string {
	e.t.Helper()
	tokens, err := e.sessions.Rotate(context.Background(), user)
	if err != nil {
		e.t.Fatalf("rotate session: %v", err)
	}
	return tokens.AccessToken
}

func (e *testEnv) seedVideo(owner models.User, published bool) models.Video {
	e.t.Helper()
	now := time.Now().UTC()
	video := models.Video{
		ID:          ids.New(),
		OwnerID:     owner.ID,
		VideoFile:   models.Asset{URL: "https://cdn.test/video/v.mp4", PublicID: "video/" + ids.New() + ".mp4"},
		Thumbnail:   models.Asset{URL: "https://cdn.test/thumbnail/t.png", PublicID: "thumbnail/" + ids.New() + ".png"},
		Title:       "Original title",
		Description: "Original description",
		IsPublished: published,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.videos.Create(context.Background(), video); err != nil {
		e.t.Fatalf("seed video: %v", err)
	}
	return video
}

func (e *testEnv) do(method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	e.t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) serve(req *http.Request) *httptest.ResponseRecorder {
	e.t.Helper()
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) doJSON(method, path, token string, payload any) *httptest.ResponseRecorder {
	e.t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			e.t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	return e.do(method, path, token, body, "application/json")
}

type testEnvelope[T any] struct {
	StatusCode int    `json:"statusCode"`
	Data       T      `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

func decodeEnvelope[T any](t *testing.T, rec *httptest.ResponseRecorder) testEnvelope[T] {
	t.Helper()
	var env testEnvelope[T]
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return env
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	expectStatus(t, rec, status)
	var body errorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	if body.Success {
		t.Fatal("expected success=false in error envelope")
	}
	if message != "" && body.Message != message {
		t.Fatalf("expected message %q got %q", message, body.Message)
	}
}

// multipartForm encodes fields and files; each file gets a small dummy payload.
func multipartForm(t *testing.T, fields map[string]string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for field, filename := range files {
		part, err := mw.CreateFormFile(field, filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write([]byte("fake " + field + " bytes")); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

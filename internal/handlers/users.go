package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vidtube/backend/internal/apierror"
	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/ids"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/media"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
)

// UserHandler implements account, session and channel endpoints.
type UserHandler struct {
	Users          UserStore
	Sessions       SessionManager
	Media          MediaCoordinator
	Stager         FileStager
	CookieSecure   bool
	MaxUploadBytes int64
	NowFunc        func() time.Time
}

type registerRequest struct {
	FullName string `json:"fullName" validate:"required,min=3,max=30"`
	Email    string `json:"email" validate:"required,email"`
	UserName string `json:"userName" validate:"required,min=3,max=15"`
	Password string `json:"password" validate:"required,min=8,max=15"`
}

type loginRequest struct {
	UserName string `json:"userName" validate:"required_without=Email"`
	Email    string `json:"email" validate:"required_without=UserName,omitempty,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	User         models.User `json:"user"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword     string `json:"oldPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=15"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=NewPassword"`
}

type updateAccountRequest struct {
	FullName string `json:"fullName" validate:"omitempty,min=3,max=30"`
	Email    string `json:"email" validate:"omitempty,email"`
}

// Register handles POST /api/v1/users/register.
func (h UserHandler) Register(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if err := parseMultipart(w, r, h.MaxUploadBytes); err != nil {
		return err
	}
	defer releaseMultipart(r)

	req := registerRequest{
		FullName: formValue(r, "fullName"),
		Email:    strings.ToLower(formValue(r, "email")),
		UserName: strings.ToLower(formValue(r, "userName")),
		Password: r.FormValue("password"),
	}
	if err := validate(&req); err != nil {
		return err
	}

	exists, err := h.Users.ExistsByUserNameOrEmail(ctx, req.UserName, req.Email)
	if err != nil {
		return apierror.Internal("Failed to register user", err)
	}
	if exists {
		return apierror.Conflict("User with email or username already exists")
	}

	if formFile(r, "avatar") == nil {
		return apierror.BadRequest("Avatar file is required")
	}

	staged, err := stageFiles(ctx, h.Stager, h.Media, r, "avatar", "coverImage")
	if err != nil {
		return err
	}

	cover, hasCover := staged["coverImage"]
	avatar, _, err := h.Media.Store(ctx, staged["avatar"], media.KindAvatar)
	if err != nil {
		if hasCover {
			h.Media.Discard(ctx, cover)
		}
		return apierror.Wrap(http.StatusBadRequest, "Avatar upload failed", err)
	}

	var coverImage models.Asset
	if hasCover {
		coverImage, _, err = h.Media.Store(ctx, cover, media.KindCoverImage)
		if err != nil {
			logger.Warn("cover image upload failed, continuing without it", "error", err)
			coverImage = models.Asset{}
		}
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.removeAssets(ctx, avatar, coverImage)
		return apierror.Internal("Failed to register user", err)
	}

	now := h.now()
	user := models.User{
		ID:         ids.NewAt(now),
		UserName:   req.UserName,
		Email:      req.Email,
		FullName:   req.FullName,
		Avatar:     avatar,
		CoverImage: coverImage,
		Password:   hash,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := h.Users.Create(ctx, user); err != nil {
		h.removeAssets(ctx, avatar, coverImage)
		if errors.Is(err, repositories.ErrConflict) {
			return apierror.Conflict("User with email or username already exists")
		}
		return apierror.Internal("Failed to register user", err)
	}

	logger.Info("user registered", "userId", user.ID)
	return respond(ctx, w, http.StatusCreated, user.Sanitized(), "User registered successfully")
}

// Login handles POST /api/v1/users/login.
func (h UserHandler) Login(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}

	user, err := h.Users.FindByLogin(ctx, strings.TrimSpace(req.UserName), strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apierror.NotFound("User does not exist")
		}
		return apierror.Internal("Failed to log in", err)
	}
	if !auth.CheckPassword(user.Password, req.Password) {
		return apierror.Unauthorized("Invalid user credentials")
	}

	tokens, err := h.Sessions.Rotate(ctx, user)
	if err != nil {
		return apierror.Internal("Failed to create session", err)
	}
	h.setSessionCookies(w, tokens)

	logging.FromContext(ctx).Info("user logged in", "userId", user.ID)
	return respond(ctx, w, http.StatusOK, loginResponse{
		User:         user.Sanitized(),
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}, "User logged in successfully")
}

// Logout handles POST /api/v1/users/logout.
func (h UserHandler) Logout(w http.ResponseWriter, r *http.Request, caller models.User) error {
	ctx := r.Context()
	if err := h.Sessions.Revoke(ctx, caller.ID); err != nil {
		return apierror.Internal("Failed to log out", err)
	}
	h.clearSessionCookies(w)
	return respond(ctx, w, http.StatusOK, nil, "User logged out")
}

// RefreshToken handles POST /api/v1/users/refresh-token. The token is read
// from the refreshToken cookie, else from the JSON body.
func (h UserHandler) RefreshToken(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	token := ""
	if cookie, err := r.Cookie(auth.RefreshTokenCookie); err == nil {
		token = strings.TrimSpace(cookie.Value)
	}
	if token == "" && r.ContentLength != 0 {
		var req refreshRequest
		if err := decodeJSON(w, r, &req); err != nil {
			return err
		}
		token = strings.TrimSpace(req.RefreshToken)
	}
	if token == "" {
		return apierror.Unauthorized("Unauthorized request")
	}

	tokens, user, err := h.Sessions.Refresh(ctx, token)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrRefreshTokenExpired):
			return apierror.Wrap(http.StatusUnauthorized, "Refresh token is expired", err)
		case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrSessionNotFound):
			return apierror.Wrap(http.StatusUnauthorized, "Invalid refresh token", err)
		default:
			return apierror.Internal("Failed to refresh session", err)
		}
	}
	h.setSessionCookies(w, tokens)

	logging.FromContext(ctx).Debug("session refreshed", "userId", user.ID)
	return respond(ctx, w, http.StatusOK, tokenResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}, "Access token refreshed")
}

// ChangePassword handles PATCH /api/v1/users/change-password.
func (h UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request, caller models.User) error {
	ctx := r.Context()

	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}

	user, err := h.Users.FindByID(ctx, caller.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apierror.Unauthorized("Invalid access token")
		}
		return apierror.Internal("Failed to change password", err)
	}
	if !auth.CheckPassword(user.Password, req.OldPassword) {
		return apierror.BadRequest("Invalid old password")
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return apierror.Internal("Failed to change password", err)
	}
	if err := h.Users.UpdatePassword(ctx, caller.ID, hash, h.now()); err != nil {
		return apierror.Internal("Failed to change password", err)
	}
	return respond(ctx, w, http.StatusOK, nil, "Password changed successfully")
}

// UpdateAccount handles PATCH /api/v1/users/update-account.
func (h UserHandler) UpdateAccount(w http.ResponseWriter, r *http.Request, caller models.User) error {
	ctx := r.Context()

	var req updateAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.FullName == "" && req.Email == "" {
		return apierror.BadRequest("fullName or email is required")
	}
	if req.FullName == "" {
		req.FullName = caller.FullName
	}
	if req.Email == "" {
		req.Email = caller.Email
	}

	user, err := h.Users.UpdateAccount(ctx, caller.ID, req.FullName, req.Email, h.now())
	if err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return apierror.Conflict("Email is already in use")
		}
		return apierror.Internal("Failed to update account", err)
	}
	return respond(ctx, w, http.StatusOK, user.Sanitized(), "Account details updated successfully")
}

// UpdateAvatar handles PATCH /api/v1/users/update-avatar.
func (h UserHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request, caller models.User) error {
	return h.replaceImage(w, r, caller, "avatar", media.KindAvatar, caller.Avatar, h.Users.UpdateAvatar)
}

// UpdateCoverImage handles PATCH /api/v1/users/update-coverImage.
func (h UserHandler) UpdateCoverImage(w http.ResponseWriter, r *http.Request, caller models.User) error {
	return h.replaceImage(w, r, caller, "coverImage", media.KindCoverImage, caller.CoverImage, h.Users.UpdateCoverImage)
}

type assetUpdater func(ctx context.Context, id string, asset models.Asset, at time.Time) (models.User, error)

func (h UserHandler) replaceImage(w http.ResponseWriter, r *http.Request, caller models.User, field string, kind media.Kind, old models.Asset, update assetUpdater) error {
	ctx := r.Context()

	if err := parseMultipart(w, r, h.MaxUploadBytes); err != nil {
		return err
	}
	defer releaseMultipart(r)

	if formFile(r, field) == nil {
		return apierror.BadRequest(field + " file is missing")
	}
	staged, err := stageFiles(ctx, h.Stager, h.Media, r, field)
	if err != nil {
		return err
	}

	var updated models.User
	_, err = h.Media.Replace(ctx, staged[field], kind, old, func(ctx context.Context, asset models.Asset) error {
		var err error
		updated, err = update(ctx, caller.ID, asset, h.now())
		return err
	})
	if err != nil {
		return apierror.Internal("Failed to update "+field, err)
	}
	return respond(ctx, w, http.StatusOK, updated.Sanitized(), field+" updated successfully")
}

// CurrentUser handles GET /api/v1/users/current-user.
func (h UserHandler) CurrentUser(w http.ResponseWriter, r *http.Request, caller models.User) error {
	return respond(r.Context(), w, http.StatusOK, caller.Sanitized(), "Current user fetched successfully")
}

// Channel handles GET /api/v1/users/channel/{userName}.
func (h UserHandler) Channel(w http.ResponseWriter, r *http.Request, caller models.User) error {
	ctx := r.Context()

	userName := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "userName")))
	if userName == "" {
		return apierror.BadRequest("Username is missing")
	}

	profile, err := h.Users.ChannelProfile(ctx, userName, caller.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apierror.NotFound("Channel does not exist")
		}
		return apierror.Internal("Failed to load channel", err)
	}
	return respond(ctx, w, http.StatusOK, profile, "User channel fetched successfully")
}

// History handles GET /api/v1/users/history.
func (h UserHandler) History(w http.ResponseWriter, r *http.Request, caller models.User) error {
	ctx := r.Context()
	history, err := h.Users.WatchHistory(ctx, caller.ID)
	if err != nil {
		return apierror.Internal("Failed to load watch history", err)
	}
	return respond(ctx, w, http.StatusOK, history, "Watch history fetched successfully")
}

func (h UserHandler) setSessionCookies(w http.ResponseWriter, tokens models.SessionTokens) {
	http.SetCookie(w, sessionCookie(auth.AccessTokenCookie, tokens.AccessToken, tokens.AccessExpiresAt, h.CookieSecure))
	http.SetCookie(w, sessionCookie(auth.RefreshTokenCookie, tokens.RefreshToken, tokens.RefreshExpiresAt, h.CookieSecure))
}

func (h UserHandler) clearSessionCookies(w http.ResponseWriter) {
	http.SetCookie(w, sessionCookie(auth.AccessTokenCookie, "", time.Time{}, h.CookieSecure))
	http.SetCookie(w, sessionCookie(auth.RefreshTokenCookie, "", time.Time{}, h.CookieSecure))
}

// sessionCookie builds an HttpOnly cookie. An empty value expires it.
func sessionCookie(name, value string, expires time.Time, secure bool) *http.Cookie {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	if value == "" {
		cookie.MaxAge = -1
	} else if !expires.IsZero() {
		cookie.Expires = expires
	}
	return cookie
}

func (h UserHandler) removeAssets(ctx context.Context, avatar, cover models.Asset) {
	h.Media.Remove(ctx, avatar, media.KindAvatar)
	if !cover.IsZero() {
		h.Media.Remove(ctx, cover, media.KindCoverImage)
	}
}

func (h UserHandler) now() time.Time {
	return nowFrom(h.NowFunc)
}

func nowFrom(fn func() time.Time) time.Time {
	if fn != nil {
		return fn().UTC()
	}
	return time.Now().UTC()
}

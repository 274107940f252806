package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vidtube/backend/internal/apierror"
	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/middleware"
)

// Authenticator guards protected routes.
type Authenticator interface {
	Middleware(onError auth.ErrorWriter) func(http.Handler) http.Handler
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Logger        *slog.Logger
	Auth          Authenticator
	Users         UserStore
	Sessions      SessionManager
	Videos        VideoStore
	Comments      CommentStore
	Likes         LikeStore
	Playlists     PlaylistStore
	Subscriptions SubscriptionStore
	Tweets        TweetStore
	Dashboard     DashboardStore
	Media         MediaCoordinator
	Stager        FileStager
	// AuthLimiter throttles login, register and refresh per client IP. Nil disables it.
	AuthLimiter    middleware.RateLimiter
	CORSOrigin     string
	CookieSecure   bool
	MaxUploadBytes int64
	Started        time.Time
	NowFunc        func() time.Time
	// TrustProxy keys AuthLimiter on X-Forwarded-For instead of the peer address.
	TrustProxy bool
}

// NewRouter wires every HTTP handler into a chi router.
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	health := HealthHandler{Started: deps.Started, NowFunc: deps.NowFunc}
	users := UserHandler{
		Users:          deps.Users,
		Sessions:       deps.Sessions,
		Media:          deps.Media,
		Stager:         deps.Stager,
		CookieSecure:   deps.CookieSecure,
		MaxUploadBytes: deps.MaxUploadBytes,
		NowFunc:        deps.NowFunc,
	}
	videos := VideoHandler{
		Videos:         deps.Videos,
		History:        deps.Users,
		Media:          deps.Media,
		Stager:         deps.Stager,
		MaxUploadBytes: deps.MaxUploadBytes,
		NowFunc:        deps.NowFunc,
	}
	comments := CommentHandler{Comments: deps.Comments, Videos: deps.Videos, NowFunc: deps.NowFunc}
	likes := LikeHandler{Likes: deps.Likes, Videos: deps.Videos, Comments: deps.Comments, Tweets: deps.Tweets, NowFunc: deps.NowFunc}
	playlists := PlaylistHandler{Playlists: deps.Playlists, Videos: deps.Videos, NowFunc: deps.NowFunc}
	subscriptions := SubscriptionHandler{Subscriptions: deps.Subscriptions, Users: deps.Users, NowFunc: deps.NowFunc}
	tweets := TweetHandler{Tweets: deps.Tweets, NowFunc: deps.NowFunc}
	dashboard := DashboardHandler{Dashboard: deps.Dashboard}

	throttle := func(scope string) func(http.Handler) http.Handler {
		return middleware.Limit(deps.AuthLimiter, scope, deps.TrustProxy, http.HandlerFunc(TooManyRequests))
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.CORS(deps.CORSOrigin))

	r.NotFound(apiFunc(func(http.ResponseWriter, *http.Request) error {
		return apierror.NotFound("Route not found")
	}).ServeHTTP)
	r.MethodNotAllowed(apiFunc(func(http.ResponseWriter, *http.Request) error {
		return apierror.New(http.StatusMethodNotAllowed, "Method not allowed")
	}).ServeHTTP)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Method(http.MethodGet, "/healthcheck", apiFunc(health.Handle))

		r.With(throttle("register")).Method(http.MethodPost, "/users/register", apiFunc(users.Register))
		r.With(throttle("login")).Method(http.MethodPost, "/users/login", apiFunc(users.Login))
		r.With(throttle("refresh")).Method(http.MethodPost, "/users/refresh-token", apiFunc(users.RefreshToken))

		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.Middleware(WriteError))

			r.Route("/users", func(r chi.Router) {
				r.Method(http.MethodPost, "/logout", protectedFunc(users.Logout))
				r.Method(http.MethodPatch, "/change-password", protectedFunc(users.ChangePassword))
				r.Method(http.MethodPatch, "/update-account", protectedFunc(users.UpdateAccount))
				r.Method(http.MethodPatch, "/update-avatar", protectedFunc(users.UpdateAvatar))
				r.Method(http.MethodPatch, "/update-coverImage", protectedFunc(users.UpdateCoverImage))
				r.Method(http.MethodGet, "/current-user", protectedFunc(users.CurrentUser))
				r.Method(http.MethodGet, "/channel/{userName}", protectedFunc(users.Channel))
				r.Method(http.MethodGet, "/history", protectedFunc(users.History))
			})

			r.Route("/videos", func(r chi.Router) {
				r.Method(http.MethodGet, "/", protectedFunc(videos.List))
				r.Method(http.MethodPost, "/", protectedFunc(videos.Publish))
				r.Method(http.MethodGet, "/{videoId}", protectedFunc(videos.Get))
				r.Method(http.MethodPatch, "/{videoId}", protectedFunc(videos.Update))
				r.Method(http.MethodDelete, "/{videoId}", protectedFunc(videos.Delete))
				r.Method(http.MethodPatch, "/toggle/publish/{videoId}", protectedFunc(videos.TogglePublish))
			})

			r.Route("/comments", func(r chi.Router) {
				r.Method(http.MethodGet, "/{videoId}", protectedFunc(comments.List))
				r.Method(http.MethodPost, "/{videoId}", protectedFunc(comments.Add))
				r.Method(http.MethodPatch, "/c/{commentId}", protectedFunc(comments.Update))
				r.Method(http.MethodDelete, "/c/{commentId}", protectedFunc(comments.Delete))
			})

			r.Route("/likes", func(r chi.Router) {
				r.Method(http.MethodPost, "/toggle/v/{videoId}", protectedFunc(likes.ToggleVideo))
				r.Method(http.MethodPost, "/toggle/c/{commentId}", protectedFunc(likes.ToggleComment))
				r.Method(http.MethodPost, "/toggle/t/{tweetId}", protectedFunc(likes.ToggleTweet))
				r.Method(http.MethodGet, "/videos", protectedFunc(likes.LikedVideos))
			})

			r.Route("/playlists", func(r chi.Router) {
				r.Method(http.MethodPost, "/", protectedFunc(playlists.Create))
				r.Method(http.MethodGet, "/{playlistId}", protectedFunc(playlists.Get))
				r.Method(http.MethodPatch, "/{playlistId}", protectedFunc(playlists.Update))
				r.Method(http.MethodDelete, "/{playlistId}", protectedFunc(playlists.Delete))
				r.Method(http.MethodPatch, "/add/{videoId}/{playlistId}", protectedFunc(playlists.AddVideo))
				r.Method(http.MethodPatch, "/remove/{videoId}/{playlistId}", protectedFunc(playlists.RemoveVideo))
				r.Method(http.MethodGet, "/user/{userId}", protectedFunc(playlists.UserPlaylists))
			})

			r.Route("/subscriptions", func(r chi.Router) {
				r.Method(http.MethodPost, "/channel/{channelId}", protectedFunc(subscriptions.Toggle))
				r.Method(http.MethodGet, "/subscribers/{channelId}", protectedFunc(subscriptions.Subscribers))
				r.Method(http.MethodGet, "/subscribed-channels", protectedFunc(subscriptions.SubscribedChannels))
			})

			r.Route("/tweets", func(r chi.Router) {
				r.Method(http.MethodPost, "/create", protectedFunc(tweets.Create))
				r.Method(http.MethodGet, "/get-tweets", protectedFunc(tweets.Mine))
				r.Method(http.MethodGet, "/user/{userId}", protectedFunc(tweets.ByUser))
				r.Method(http.MethodPatch, "/update-tweets/{tweetId}", protectedFunc(tweets.Update))
				r.Method(http.MethodDelete, "/delete-tweet/{tweetId}", protectedFunc(tweets.Delete))
			})

			r.Route("/dashboard", func(r chi.Router) {
				r.Method(http.MethodGet, "/stats", protectedFunc(dashboard.Stats))
				r.Method(http.MethodGet, "/videos", protectedFunc(dashboard.Videos))
			})
		})
	})

	return r
}

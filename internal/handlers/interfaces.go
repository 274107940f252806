package handlers

import (
	"context"
	"mime/multipart"
	"time"

	"github.com/vidtube/backend/internal/media"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/readmodel"
	"github.com/vidtube/backend/internal/repositories"
)

// UserStore captures the persistence operations required by the user handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindPublicByID(ctx context.Context, id string) (models.User, error)
	FindByLogin(ctx context.Context, userName, email string) (models.User, error)
	ExistsByUserNameOrEmail(ctx context.Context, userName, email string) (bool, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error
	UpdateAccount(ctx context.Context, id, fullName, email string, at time.Time) (models.User, error)
	UpdateAvatar(ctx context.Context, id string, avatar models.Asset, at time.Time) (models.User, error)
	UpdateCoverImage(ctx context.Context, id string, cover models.Asset, at time.Time) (models.User, error)
	ChannelProfile(ctx context.Context, userName, viewerID string) (models.ChannelProfile, error)
	WatchHistory(ctx context.Context, userID string) ([]models.HistoryEntry, error)
	AddToHistory(ctx context.Context, userID, videoID string, at time.Time) error
}

// SessionManager issues, rotates and revokes token pairs.
type SessionManager interface {
	Rotate(ctx context.Context, user models.User) (models.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, models.User, error)
	Revoke(ctx context.Context, userID string) error
}

// VideoStore captures persistence for videos.
type VideoStore interface {
	Create(ctx context.Context, video models.Video) error
	FindByID(ctx context.Context, id string) (models.Video, error)
	Feed(ctx context.Context, q repositories.FeedQuery) (models.Page[models.VideoSummary], error)
	Detail(ctx context.Context, id, viewerID string) (models.VideoDetail, error)
	Update(ctx context.Context, video models.Video) (models.Video, error)
	SetPublished(ctx context.Context, id string, published bool, at time.Time) (models.Video, error)
	Delete(ctx context.Context, id string) error
}

// HistoryRecorder appends to a viewer's watch history.
type HistoryRecorder interface {
	AddToHistory(ctx context.Context, userID, videoID string, at time.Time) error
}

// CommentStore captures persistence for comments.
type CommentStore interface {
	Create(ctx context.Context, comment models.Comment) error
	FindByID(ctx context.Context, id string) (models.Comment, error)
	ListForVideo(ctx context.Context, videoID, viewerID string, page readmodel.Page) (models.Page[models.CommentView], error)
	Update(ctx context.Context, id, content string, at time.Time) (models.Comment, error)
	Delete(ctx context.Context, id string) error
}

// LikeStore toggles and lists likes.
type LikeStore interface {
	Toggle(ctx context.Context, like models.Like) (bool, error)
	LikedVideos(ctx context.Context, userID string) ([]models.LikedVideo, error)
}

// PlaylistStore captures persistence for playlists.
type PlaylistStore interface {
	Create(ctx context.Context, playlist models.Playlist) error
	FindByID(ctx context.Context, id string) (models.Playlist, error)
	Detail(ctx context.Context, id string) (models.PlaylistDetail, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.PlaylistSummary, error)
	Update(ctx context.Context, id, name, description string, at time.Time) (models.Playlist, error)
	Delete(ctx context.Context, id string) error
	AddVideo(ctx context.Context, playlistID, videoID string, at time.Time) (models.Playlist, error)
	RemoveVideo(ctx context.Context, playlistID, videoID string, at time.Time) (models.Playlist, error)
}

// SubscriptionStore toggles and lists subscriptions.
type SubscriptionStore interface {
	Toggle(ctx context.Context, sub models.Subscription) (bool, error)
	Subscribers(ctx context.Context, channelID string) ([]models.Subscriber, error)
	SubscribedChannels(ctx context.Context, subscriberID string) ([]models.SubscribedChannel, error)
}

// TweetStore captures persistence for tweets.
type TweetStore interface {
	Create(ctx context.Context, tweet models.Tweet) error
	FindByID(ctx context.Context, id string) (models.Tweet, error)
	ListByOwner(ctx context.Context, ownerID, viewerID string) ([]models.TweetView, error)
	Update(ctx context.Context, id, content string, at time.Time) (models.Tweet, error)
	Delete(ctx context.Context, id string) error
}

// DashboardStore computes channel aggregates.
type DashboardStore interface {
	Stats(ctx context.Context, channelID string) (models.ChannelStats, error)
	Videos(ctx context.Context, channelID string) ([]models.ChannelVideo, error)
}

// MediaCoordinator moves staged uploads into remote storage.
type MediaCoordinator interface {
	Store(ctx context.Context, file media.StagedFile, kind media.Kind) (models.Asset, media.Metadata, error)
	Replace(ctx context.Context, file media.StagedFile, kind media.Kind, old models.Asset, commit func(context.Context, models.Asset) error) (models.Asset, error)
	Remove(ctx context.Context, asset models.Asset, kind media.Kind)
	Discard(ctx context.Context, files ...media.StagedFile)
}

// FileStager writes multipart uploads to local disk.
type FileStager interface {
	Stage(field string, header *multipart.FileHeader) (media.StagedFile, error)
}

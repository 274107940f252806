package models

import "time"

// OwnerSummary is the public slice of a user embedded in other read models.
type OwnerSummary struct {
	ID       string `json:"_id"`
	UserName string `json:"userName"`
	FullName string `json:"fullName"`
	Avatar   string `json:"avatar"`
}

// ChannelProfile is the public page of a channel as seen by a viewer.
type ChannelProfile struct {
	ID                        string `json:"_id"`
	UserName                  string `json:"userName"`
	FullName                  string `json:"fullName"`
	Email                     string `json:"email"`
	Avatar                    string `json:"avatar"`
	CoverImage                string `json:"coverImage"`
	SubscribersCount          int64  `json:"subscribersCount"`
	ChannelsSubscribedToCount int64  `json:"channelsSubscribedToCount"`
	IsSubscribed              bool   `json:"isSubscribed"`
}

// VideoSummary is a feed entry.
type VideoSummary struct {
	ID          string       `json:"_id"`
	VideoFile   string       `json:"videoFile"`
	Thumbnail   string       `json:"thumbnail"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Duration    float64      `json:"duration"`
	Views       int64        `json:"views"`
	IsPublished bool         `json:"isPublished"`
	CreatedAt   time.Time    `json:"createdAt"`
	Owner       OwnerSummary `json:"owner"`
}

// ChannelOwner is the owner block of a video detail page.
type ChannelOwner struct {
	ID               string `json:"_id"`
	UserName         string `json:"userName"`
	FullName         string `json:"fullName"`
	Avatar           string `json:"avatar"`
	SubscribersCount int64  `json:"subscribersCount"`
	IsSubscribed     bool   `json:"isSubscribed"`
}

// VideoDetail is a single video with engagement figures relative to the viewer.
type VideoDetail struct {
	ID          string       `json:"_id"`
	VideoFile   string       `json:"videoFile"`
	Thumbnail   string       `json:"thumbnail"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Duration    float64      `json:"duration"`
	Views       int64        `json:"views"`
	IsPublished bool         `json:"isPublished"`
	CreatedAt   time.Time    `json:"createdAt"`
	Owner       ChannelOwner `json:"owner"`
	LikesCount  int64        `json:"likesCount"`
	IsLiked     bool         `json:"isLiked"`
}

// CommentView is a comment with its author and like state.
type CommentView struct {
	ID         string       `json:"_id"`
	Content    string       `json:"content"`
	CreatedAt  time.Time    `json:"createdAt"`
	UpdatedAt  time.Time    `json:"updatedAt"`
	Owner      OwnerSummary `json:"owner"`
	LikesCount int64        `json:"likesCount"`
	IsLiked    bool         `json:"isLiked"`
}

// LikedVideo is a video the viewer liked.
type LikedVideo struct {
	LikedAt time.Time    `json:"likedAt"`
	Video   VideoSummary `json:"likedVideo"`
}

// HistoryEntry is a watched video, most recent first.
type HistoryEntry struct {
	WatchedAt time.Time    `json:"watchedAt"`
	Video     VideoSummary `json:"video"`
}

// PlaylistDetail is a playlist with its published videos expanded.
type PlaylistDetail struct {
	ID          string         `json:"_id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	TotalVideos int64          `json:"totalVideos"`
	TotalViews  int64          `json:"totalViews"`
	Owner       OwnerSummary   `json:"owner"`
	Videos      []VideoSummary `json:"videos"`
}

// PlaylistSummary is a playlist entry in a user's list.
type PlaylistSummary struct {
	ID          string    `json:"_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	TotalVideos int64     `json:"totalVideos"`
	TotalViews  int64     `json:"totalViews"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ChannelStats aggregates totals over a channel's content.
type ChannelStats struct {
	TotalSubscribers int64 `json:"totalSubscribers"`
	TotalLikes       int64 `json:"totalLikes"`
	TotalViews       int64 `json:"totalViews"`
	TotalVideos      int64 `json:"totalVideos"`
}

// ChannelVideo is a dashboard row for one of the caller's videos.
type ChannelVideo struct {
	ID          string    `json:"_id"`
	VideoFile   string    `json:"videoFile"`
	Thumbnail   string    `json:"thumbnail"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	IsPublished bool      `json:"isPublished"`
	Views       int64     `json:"views"`
	LikesCount  int64     `json:"likesCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Subscriber is a follower of a channel.
type Subscriber struct {
	ID                     string    `json:"_id"`
	UserName               string    `json:"userName"`
	FullName               string    `json:"fullName"`
	Avatar                 string    `json:"avatar"`
	SubscribersCount       int64     `json:"subscribersCount"`
	SubscribedToSubscriber bool      `json:"subscribedToSubscriber"`
	SubscribedAt           time.Time `json:"subscribedAt"`
}

// SubscribedChannel is a channel the viewer follows.
type SubscribedChannel struct {
	ID           string    `json:"_id"`
	UserName     string    `json:"userName"`
	FullName     string    `json:"fullName"`
	Avatar       string    `json:"avatar"`
	SubscribedAt time.Time `json:"subscribedAt"`
}

// TweetView is a tweet with its author and like state.
type TweetView struct {
	ID         string       `json:"_id"`
	Content    string       `json:"content"`
	CreatedAt  time.Time    `json:"createdAt"`
	UpdatedAt  time.Time    `json:"updatedAt"`
	Owner      OwnerSummary `json:"owner"`
	LikesCount int64        `json:"likesCount"`
	IsLiked    bool         `json:"isLiked"`
}

// Page is a slice of results along with paging metadata.
type Page[T any] struct {
	Docs        []T   `json:"docs"`
	TotalDocs   int64 `json:"totalDocs"`
	Limit       int   `json:"limit"`
	Page        int   `json:"page"`
	TotalPages  int   `json:"totalPages"`
	HasPrevPage bool  `json:"hasPrevPage"`
	HasNextPage bool  `json:"hasNextPage"`
}

// NewPage assembles paging metadata around docs. A nil docs slice is normalised to empty.
func NewPage[T any](docs []T, page, limit int, total int64) Page[T] {
	if docs == nil {
		docs = []T{}
	}
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Page[T]{
		Docs:        docs,
		TotalDocs:   total,
		Limit:       limit,
		Page:        page,
		TotalPages:  totalPages,
		HasPrevPage: page > 1,
		HasNextPage: page < totalPages,
	}
}

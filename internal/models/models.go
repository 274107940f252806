package models

import "time"

// Asset references a file held by the remote object store.
type Asset struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
}

// IsZero reports whether the asset points at nothing.
func (a Asset) IsZero() bool {
	return a.URL == "" && a.PublicID == ""
}

// User represents a channel owner and viewer account.
type User struct {
	ID           string    `json:"_id"`
	UserName     string    `json:"userName"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullName"`
	Avatar       Asset     `json:"avatar"`
	CoverImage   Asset     `json:"coverImage"`
	Password     string    `json:"-"`
	RefreshToken string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Sanitized returns a copy of the user without credential material.
func (u User) Sanitized() User {
	u.Password = ""
	u.RefreshToken = ""
	return u
}

// Video is an uploaded clip together with its thumbnail.
type Video struct {
	ID          string    `json:"_id"`
	OwnerID     string    `json:"owner"`
	VideoFile   Asset     `json:"videoFile"`
	Thumbnail   Asset     `json:"thumbnail"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Duration    float64   `json:"duration"`
	Views       int64     `json:"views"`
	IsPublished bool      `json:"isPublished"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Comment is a viewer remark attached to a video.
type Comment struct {
	ID        string    `json:"_id"`
	VideoID   string    `json:"video"`
	OwnerID   string    `json:"owner"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LikeTarget names the kind of resource a like points at.
type LikeTarget string

const (
	LikeTargetVideo   LikeTarget = "video"
	LikeTargetComment LikeTarget = "comment"
	LikeTargetTweet   LikeTarget = "tweet"
)

// Like records that a user liked exactly one video, comment or tweet.
type Like struct {
	ID        string     `json:"_id"`
	LikedBy   string     `json:"likedBy"`
	Target    LikeTarget `json:"targetType"`
	TargetID  string     `json:"targetId"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Playlist is an ordered, duplicate-free collection of videos.
type Playlist struct {
	ID          string    `json:"_id"`
	OwnerID     string    `json:"owner"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Videos      []string  `json:"videos"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Subscription denotes that Subscriber follows Channel.
type Subscription struct {
	ID           string    `json:"_id"`
	SubscriberID string    `json:"subscriber"`
	ChannelID    string    `json:"channel"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Tweet is a short text post on a channel.
type Tweet struct {
	ID        string    `json:"_id"`
	OwnerID   string    `json:"owner"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessTokenExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshTokenExpiresAt"`
}

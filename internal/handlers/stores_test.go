package handlers

import (
	"context"
	"io"
	"mime/multipart"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vidtube/backend/internal/media"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/readmodel"
	"github.com/vidtube/backend/internal/repositories"
)

type memUsers struct {
	mu      sync.Mutex
	users   map[string]models.User
	history map[string]map[string]time.Time
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[string]models.User), history: make(map[string]map[string]time.Time)}
}

func (s *memUsers) get(id string) (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	return u, ok
}

func (s *memUsers) Create(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.UserName == user.UserName || u.Email == user.Email {
			return repositories.ErrConflict
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *memUsers) FindByID(_ context.Context, id string) (models.User, error) {
	if u, ok := s.get(id); ok {
		return u, nil
	}
	return models.User{}, repositories.ErrNotFound
}

func (s *memUsers) FindPublicByID(ctx context.Context, id string) (models.User, error) {
	u, err := s.FindByID(ctx, id)
	return u.Sanitized(), err
}

func (s *memUsers) FindByLogin(_ context.Context, userName, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userName, email = strings.ToLower(userName), strings.ToLower(email)
	for _, u := range s.users {
		if (userName != "" && u.UserName == userName) || (email != "" && u.Email == email) {
			return u, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (s *memUsers) ExistsByUserNameOrEmail(ctx context.Context, userName, email string) (bool, error) {
	_, err := s.FindByLogin(ctx, userName, email)
	return err == nil, nil
}

func (s *memUsers) update(id string, fn func(*models.User)) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	fn(&u)
	s.users[id] = u
	return u, nil
}

func (s *memUsers) UpdatePassword(_ context.Context, id, hash string, at time.Time) error {
	_, err := s.update(id, func(u *models.User) { u.Password, u.UpdatedAt = hash, at })
	return err
}

func (s *memUsers) UpdateAccount(_ context.Context, id, fullName, email string, at time.Time) (models.User, error) {
	return s.update(id, func(u *models.User) { u.FullName, u.Email, u.UpdatedAt = fullName, email, at })
}

func (s *memUsers) UpdateAvatar(_ context.Context, id string, avatar models.Asset, at time.Time) (models.User, error) {
	return s.update(id, func(u *models.User) { u.Avatar, u.UpdatedAt = avatar, at })
}

func (s *memUsers) UpdateCoverImage(_ context.Context, id string, cover models.Asset, at time.Time) (models.User, error) {
	return s.update(id, func(u *models.User) { u.CoverImage, u.UpdatedAt = cover, at })
}

func (s *memUsers) ChannelProfile(_ context.Context, userName, _ string) (models.ChannelProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.UserName == userName {
			return models.ChannelProfile{ID: u.ID, UserName: u.UserName, FullName: u.FullName, Email: u.Email}, nil
		}
	}
	return models.ChannelProfile{}, repositories.ErrNotFound
}

func (s *memUsers) WatchHistory(_ context.Context, userID string) ([]models.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := []models.HistoryEntry{}
	for videoID, at := range s.history[userID] {
		entries = append(entries, models.HistoryEntry{WatchedAt: at, Video: models.VideoSummary{ID: videoID}})
	}
	return entries, nil
}

func (s *memUsers) AddToHistory(_ context.Context, userID, videoID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.history[userID] == nil {
		s.history[userID] = make(map[string]time.Time)
	}
	s.history[userID][videoID] = at
	return nil
}

// Session storage shares the user map, as the refresh token lives on the user row.

func (s *memUsers) SaveRefreshToken(_ context.Context, userID, token string) error {
	_, err := s.update(userID, func(u *models.User) { u.RefreshToken = token })
	return err
}

func (s *memUsers) FindSession(ctx context.Context, userID string) (models.User, error) {
	return s.FindByID(ctx, userID)
}

func (s *memUsers) ClearRefreshToken(ctx context.Context, userID string) error {
	return s.SaveRefreshToken(ctx, userID, "")
}

type memVideos struct {
	mu     sync.Mutex
	videos map[string]models.Video
}

func newMemVideos() *memVideos {
	return &memVideos{videos: make(map[string]models.Video)}
}

func (s *memVideos) Create(_ context.Context, video models.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videos[video.ID] = video
	return nil
}

func (s *memVideos) FindByID(_ context.Context, id string) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	if !ok {
		return models.Video{}, repositories.ErrNotFound
	}
	return v, nil
}

func (s *memVideos) Feed(_ context.Context, q repositories.FeedQuery) (models.Page[models.VideoSummary], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var docs []models.VideoSummary
	for _, v := range s.videos {
		if !v.IsPublished || (q.OwnerID != "" && v.OwnerID != q.OwnerID) {
			continue
		}
		docs = append(docs, models.VideoSummary{ID: v.ID, Title: v.Title, CreatedAt: v.CreatedAt, Owner: models.OwnerSummary{ID: v.OwnerID}})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].CreatedAt.After(docs[j].CreatedAt) })
	return models.NewPage(docs, q.Page.Number, q.Page.Limit, int64(len(docs))), nil
}

func (s *memVideos) Detail(ctx context.Context, id, viewerID string) (models.VideoDetail, error) {
	v, err := s.FindByID(ctx, id)
	if err != nil {
		return models.VideoDetail{}, err
	}
	if !v.IsPublished && v.OwnerID != viewerID {
		return models.VideoDetail{}, repositories.ErrNotFound
	}
	return models.VideoDetail{ID: v.ID, Title: v.Title, IsPublished: v.IsPublished, Owner: models.ChannelOwner{ID: v.OwnerID}}, nil
}

func (s *memVideos) Update(_ context.Context, video models.Video) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.videos[video.ID]; !ok {
		return models.Video{}, repositories.ErrNotFound
	}
	s.videos[video.ID] = video
	return video, nil
}

func (s *memVideos) SetPublished(_ context.Context, id string, published bool, at time.Time) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	if !ok {
		return models.Video{}, repositories.ErrNotFound
	}
	v.IsPublished, v.UpdatedAt = published, at
	s.videos[id] = v
	return v, nil
}

func (s *memVideos) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.videos[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.videos, id)
	return nil
}

type memComments struct {
	mu       sync.Mutex
	comments map[string]models.Comment
}

func newMemComments() *memComments {
	return &memComments{comments: make(map[string]models.Comment)}
}

func (s *memComments) Create(_ context.Context, c models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments[c.ID] = c
	return nil
}

func (s *memComments) FindByID(_ context.Context, id string) (models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[id]
	if !ok {
		return models.Comment{}, repositories.ErrNotFound
	}
	return c, nil
}

func (s *memComments) ListForVideo(_ context.Context, videoID, _ string, page readmodel.Page) (models.Page[models.CommentView], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var docs []models.CommentView
	for _, c := range s.comments {
		if c.VideoID == videoID {
			docs = append(docs, models.CommentView{ID: c.ID, Content: c.Content, Owner: models.OwnerSummary{ID: c.OwnerID}})
		}
	}
	return models.NewPage(docs, page.Number, page.Limit, int64(len(docs))), nil
}

func (s *memComments) Update(_ context.Context, id, content string, at time.Time) (models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[id]
	if !ok {
		return models.Comment{}, repositories.ErrNotFound
	}
	c.Content, c.UpdatedAt = content, at
	s.comments[id] = c
	return c, nil
}

func (s *memComments) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.comments, id)
	return nil
}

type memLikes struct {
	mu    sync.Mutex
	likes map[string]models.Like
}

func newMemLikes() *memLikes {
	return &memLikes{likes: make(map[string]models.Like)}
}

func (s *memLikes) Toggle(_ context.Context, like models.Like) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := like.LikedBy + "|" + string(like.Target) + "|" + like.TargetID
	if _, ok := s.likes[key]; ok {
		delete(s.likes, key)
		return false, nil
	}
	s.likes[key] = like
	return true, nil
}

func (s *memLikes) LikedVideos(_ context.Context, userID string) ([]models.LikedVideo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.LikedVideo{}
	for _, l := range s.likes {
		if l.LikedBy == userID && l.Target == models.LikeTargetVideo {
			out = append(out, models.LikedVideo{LikedAt: l.CreatedAt, Video: models.VideoSummary{ID: l.TargetID}})
		}
	}
	return out, nil
}

func (s *memLikes) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.likes)
}

type memPlaylists struct {
	mu        sync.Mutex
	playlists map[string]models.Playlist
}

func newMemPlaylists() *memPlaylists {
	return &memPlaylists{playlists: make(map[string]models.Playlist)}
}

func (s *memPlaylists) Create(_ context.Context, p models.Playlist) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playlists[p.ID] = p
	return nil
}

func (s *memPlaylists) FindByID(_ context.Context, id string) (models.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.playlists[id]
	if !ok {
		return models.Playlist{}, repositories.ErrNotFound
	}
	p.Videos = append([]string{}, p.Videos...)
	return p, nil
}

func (s *memPlaylists) Detail(ctx context.Context, id string) (models.PlaylistDetail, error) {
	p, err := s.FindByID(ctx, id)
	if err != nil {
		return models.PlaylistDetail{}, err
	}
	return models.PlaylistDetail{ID: p.ID, Name: p.Name, TotalVideos: int64(len(p.Videos)), Videos: []models.VideoSummary{}}, nil
}

func (s *memPlaylists) ListByOwner(_ context.Context, ownerID string) ([]models.PlaylistSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.PlaylistSummary{}
	for _, p := range s.playlists {
		if p.OwnerID == ownerID {
			out = append(out, models.PlaylistSummary{ID: p.ID, Name: p.Name, TotalVideos: int64(len(p.Videos))})
		}
	}
	return out, nil
}

func (s *memPlaylists) modify(id string, fn func(*models.Playlist)) (models.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.playlists[id]
	if !ok {
		return models.Playlist{}, repositories.ErrNotFound
	}
	fn(&p)
	s.playlists[id] = p
	return p, nil
}

func (s *memPlaylists) Update(_ context.Context, id, name, description string, at time.Time) (models.Playlist, error) {
	return s.modify(id, func(p *models.Playlist) { p.Name, p.Description, p.UpdatedAt = name, description, at })
}

func (s *memPlaylists) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.playlists, id)
	return nil
}

func (s *memPlaylists) AddVideo(_ context.Context, playlistID, videoID string, at time.Time) (models.Playlist, error) {
	return s.modify(playlistID, func(p *models.Playlist) {
		for _, v := range p.Videos {
			if v == videoID {
				return
			}
		}
		p.Videos = append(p.Videos, videoID)
		p.UpdatedAt = at
	})
}

func (s *memPlaylists) RemoveVideo(_ context.Context, playlistID, videoID string, at time.Time) (models.Playlist, error) {
	return s.modify(playlistID, func(p *models.Playlist) {
		kept := []string{}
		for _, v := range p.Videos {
			if v != videoID {
				kept = append(kept, v)
			}
		}
		p.Videos = kept
		p.UpdatedAt = at
	})
}

type memSubscriptions struct {
	mu   sync.Mutex
	subs map[string]models.Subscription
}

func newMemSubscriptions() *memSubscriptions {
	return &memSubscriptions{subs: make(map[string]models.Subscription)}
}

func (s *memSubscriptions) Toggle(_ context.Context, sub models.Subscription) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sub.SubscriberID + "|" + sub.ChannelID
	if _, ok := s.subs[key]; ok {
		delete(s.subs, key)
		return false, nil
	}
	s.subs[key] = sub
	return true, nil
}

func (s *memSubscriptions) Subscribers(_ context.Context, channelID string) ([]models.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Subscriber{}
	for _, sub := range s.subs {
		if sub.ChannelID == channelID {
			out = append(out, models.Subscriber{ID: sub.SubscriberID, SubscribedAt: sub.CreatedAt})
		}
	}
	return out, nil
}

func (s *memSubscriptions) SubscribedChannels(_ context.Context, subscriberID string) ([]models.SubscribedChannel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.SubscribedChannel{}
	for _, sub := range s.subs {
		if sub.SubscriberID == subscriberID {
			out = append(out, models.SubscribedChannel{ID: sub.ChannelID, SubscribedAt: sub.CreatedAt})
		}
	}
	return out, nil
}

type memTweets struct {
	mu     sync.Mutex
	tweets map[string]models.Tweet
}

func newMemTweets() *memTweets {
	return &memTweets{tweets: make(map[string]models.Tweet)}
}

func (s *memTweets) Create(_ context.Context, t models.Tweet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tweets[t.ID] = t
	return nil
}

func (s *memTweets) FindByID(_ context.Context, id string) (models.Tweet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tweets[id]
	if !ok {
		return models.Tweet{}, repositories.ErrNotFound
	}
	return t, nil
}

func (s *memTweets) ListByOwner(_ context.Context, ownerID, _ string) ([]models.TweetView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.TweetView{}
	for _, t := range s.tweets {
		if t.OwnerID == ownerID {
			out = append(out, models.TweetView{ID: t.ID, Content: t.Content, Owner: models.OwnerSummary{ID: t.OwnerID}})
		}
	}
	return out, nil
}

func (s *memTweets) Update(_ context.Context, id, content string, at time.Time) (models.Tweet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tweets[id]
	if !ok {
		return models.Tweet{}, repositories.ErrNotFound
	}
	t.Content, t.UpdatedAt = content, at
	s.tweets[id] = t
	return t, nil
}

func (s *memTweets) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tweets, id)
	return nil
}

type stubDashboard struct {
	stats models.ChannelStats
}

func (s stubDashboard) Stats(context.Context, string) (models.ChannelStats, error) {
	return s.stats, nil
}

func (s stubDashboard) Videos(context.Context, string) ([]models.ChannelVideo, error) {
	return []models.ChannelVideo{}, nil
}

// fakeMedia records asset traffic without touching disk or a remote store.
type fakeMedia struct {
	mu        sync.Mutex
	duration  float64
	failKinds map[media.Kind]error
	stored    []models.Asset
	removed   []models.Asset
	discarded []media.StagedFile
	seq       int
}

func (m *fakeMedia) Store(_ context.Context, file media.StagedFile, kind media.Kind) (models.Asset, media.Metadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failKinds[kind]; err != nil {
		return models.Asset{}, media.Metadata{}, err
	}
	m.seq++
	key := string(kind) + "/" + file.Field + "-" + strings.Repeat("x", m.seq)
	asset := models.Asset{URL: "https://cdn.test/" + key, PublicID: key}
	m.stored = append(m.stored, asset)

	var meta media.Metadata
	if kind == media.KindVideo {
		meta.Duration = m.duration
	}
	return asset, meta, nil
}

func (m *fakeMedia) Replace(ctx context.Context, file media.StagedFile, kind media.Kind, old models.Asset, commit func(context.Context, models.Asset) error) (models.Asset, error) {
	asset, _, err := m.Store(ctx, file, kind)
	if err != nil {
		return models.Asset{}, err
	}
	if err := commit(ctx, asset); err != nil {
		m.Remove(ctx, asset, kind)
		return models.Asset{}, err
	}
	m.Remove(ctx, old, kind)
	return asset, nil
}

func (m *fakeMedia) Remove(_ context.Context, asset models.Asset, _ media.Kind) {
	if asset.PublicID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, asset)
}

func (m *fakeMedia) Discard(_ context.Context, files ...media.StagedFile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.discarded = append(m.discarded, files...)
}

func (m *fakeMedia) removedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.removed))
	for _, a := range m.removed {
		out = append(out, a.PublicID)
	}
	return out
}

// memStager reads the upload to size it and keeps nothing on disk.
type memStager struct{}

func (memStager) Stage(field string, header *multipart.FileHeader) (media.StagedFile, error) {
	f, err := header.Open()
	if err != nil {
		return media.StagedFile{}, err
	}
	defer f.Close()
	n, err := io.Copy(io.Discard, f)
	if err != nil {
		return media.StagedFile{}, err
	}
	return media.StagedFile{Field: field, OriginalName: header.Filename, Size: n}, nil
}

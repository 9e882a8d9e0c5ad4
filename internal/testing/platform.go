package testing

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/ytpa/internal/models"
	"github.com/desertthunder/ytpa/internal/services"
	"github.com/desertthunder/ytpa/internal/shared"
)

// AddedItem records one successful AddItem call.
type AddedItem struct {
	PlaylistID string
	VideoID    string
}

// FakePlatform is an in-memory [services.Platform]. Safe for concurrent use.
type FakePlatform struct {
	mu sync.Mutex

	Handles   map[string]string                   // handle without "@" -> channel ID
	Titles    map[string]string                   // channel ID -> title
	Uploads   map[string][]models.UploadCandidate // channel ID -> uploads, newest first
	Playlists map[string][]services.PlaylistItem  // playlist ID -> entries

	// AddErr, when set, is consulted before every insert; call counts from 1.
	AddErr func(playlistID, videoID string, call int) error
	// ListErr fails every upload listing before the first item.
	ListErr error
	// ListDelay widens the window between listing and delivery in concurrency tests.
	ListDelay time.Duration

	Added     []AddedItem
	AddCalls  int
	ListCalls int
}

// NewFakePlatform returns a platform with empty maps.
func NewFakePlatform() *FakePlatform {
	return &FakePlatform{
		Handles:   map[string]string{},
		Titles:    map[string]string{},
		Uploads:   map[string][]models.UploadCandidate{},
		Playlists: map[string][]services.PlaylistItem{},
	}
}

// SetUploads replaces a channel's uploads. ids are given newest first and published an hour apart,
// the newest at base.
func (f *FakePlatform) SetUploads(channelID string, base time.Time, ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	uploads := make([]models.UploadCandidate, len(ids))
	for i, id := range ids {
		uploads[i] = models.UploadCandidate{VideoID: id, PublishedAt: base.Add(-time.Duration(i) * time.Hour)}
	}
	f.Uploads[channelID] = uploads
}

// PrependUpload publishes a new upload on channelID.
func (f *FakePlatform) PrependUpload(channelID string, c models.UploadCandidate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Uploads[channelID] = append([]models.UploadCandidate{c}, f.Uploads[channelID]...)
}

// EnsurePlaylist creates an empty playlist if it does not exist.
func (f *FakePlatform) EnsurePlaylist(playlistID string, videoIDs ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := f.Playlists[playlistID]
	if items == nil {
		items = []services.PlaylistItem{}
	}
	for _, id := range videoIDs {
		items = append(items, services.PlaylistItem{ID: "item-" + id, VideoID: id, Position: int64(len(items))})
	}
	f.Playlists[playlistID] = items
}

// VideoIDs returns the videos currently in playlistID, in order.
func (f *FakePlatform) VideoIDs(playlistID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.Playlists[playlistID]))
	for _, item := range f.Playlists[playlistID] {
		ids = append(ids, item.VideoID)
	}
	return ids
}

func (f *FakePlatform) LookupChannelIDByHandle(ctx context.Context, handle string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.Handles[strings.TrimPrefix(handle, "@")]; ok {
		return id, nil
	}
	return "", fmt.Errorf("%w: handle %s", shared.ErrNotFound, handle)
}

func (f *FakePlatform) ChannelTitle(ctx context.Context, channelID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if title, ok := f.Titles[channelID]; ok {
		return title, nil
	}
	return "", fmt.Errorf("%w: channel %s", shared.ErrNotFound, channelID)
}

func (f *FakePlatform) ListUploads(ctx context.Context, channelID string, filter models.UploadFilter) iter.Seq2[models.UploadCandidate, error] {
	return func(yield func(models.UploadCandidate, error) bool) {
		f.mu.Lock()
		f.ListCalls++
		err := f.ListErr
		uploads := append([]models.UploadCandidate(nil), f.Uploads[channelID]...)
		delay := f.ListDelay
		f.mu.Unlock()

		if delay > 0 {
			time.Sleep(delay)
		}
		if err != nil {
			yield(models.UploadCandidate{}, err)
			return
		}
		for _, c := range uploads {
			if !yield(c, nil) {
				return
			}
		}
	}
}

func (f *FakePlatform) ListPlaylistItems(ctx context.Context, playlistID string) iter.Seq2[services.PlaylistItem, error] {
	return func(yield func(services.PlaylistItem, error) bool) {
		f.mu.Lock()
		items, ok := f.Playlists[playlistID]
		items = append([]services.PlaylistItem(nil), items...)
		f.mu.Unlock()

		if !ok {
			yield(services.PlaylistItem{}, fmt.Errorf("%w: playlist %s", shared.ErrNotFound, playlistID))
			return
		}
		for _, item := range items {
			if !yield(item, nil) {
				return
			}
		}
	}
}

func (f *FakePlatform) AddItem(ctx context.Context, playlistID, videoID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.AddCalls++
	if f.AddErr != nil {
		if err := f.AddErr(playlistID, videoID, f.AddCalls); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	items := f.Playlists[playlistID]
	f.Playlists[playlistID] = append(items, services.PlaylistItem{
		ID:       fmt.Sprintf("item-%s-%d", videoID, f.AddCalls),
		VideoID:  videoID,
		Position: int64(len(items)),
	})
	f.Added = append(f.Added, AddedItem{PlaylistID: playlistID, VideoID: videoID})
	return nil
}

func (f *FakePlatform) RemoveItemsUpTo(ctx context.Context, playlistID string, index int) (int, error) {
	if index < 1 {
		return 0, fmt.Errorf("%w: index must be at least 1, got %d", shared.ErrInvalidArgument, index)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	items, ok := f.Playlists[playlistID]
	if !ok {
		return 0, fmt.Errorf("%w: playlist %s", shared.ErrNotFound, playlistID)
	}
	n := min(index, len(items))
	f.Playlists[playlistID] = append([]services.PlaylistItem{}, items[n:]...)
	return n, nil
}

func (f *FakePlatform) VerifyPlaylist(ctx context.Context, playlistID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Playlists[playlistID]; !ok {
		return fmt.Errorf("%w: playlist %s", shared.ErrNotFound, playlistID)
	}
	return nil
}

var _ services.Platform = (*FakePlatform)(nil)

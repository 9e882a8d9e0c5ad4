package services

import (
	"context"
	"iter"
	"time"

	"github.com/desertthunder/ytpa/internal/models"
)

// HandleLookup turns an "@handle" into the canonical channel ID it belongs to.
type HandleLookup interface {
	LookupChannelIDByHandle(ctx context.Context, handle string) (string, error)
}

// UploadLister yields a channel's uploads newest first, pulling pages only as they are consumed.
type UploadLister interface {
	ListUploads(ctx context.Context, channelID string, filter models.UploadFilter) iter.Seq2[models.UploadCandidate, error]
}

// PlaylistEditor reads and writes playlist entries.
type PlaylistEditor interface {
	AddItem(ctx context.Context, playlistID, videoID string) error
	RemoveItemsUpTo(ctx context.Context, playlistID string, index int) (int, error)
	ListPlaylistItems(ctx context.Context, playlistID string) iter.Seq2[PlaylistItem, error]
	VerifyPlaylist(ctx context.Context, playlistID string) error
}

// Platform is everything the tool needs from YouTube.
type Platform interface {
	HandleLookup
	UploadLister
	PlaylistEditor
	ChannelTitle(ctx context.Context, channelID string) (string, error)
}

// PlaylistItem is one entry of a playlist.
//
// ID is the playlist item ID used for deletes, not the video ID.
type PlaylistItem struct {
	ID          string
	VideoID     string
	Title       string
	Position    int64
	PublishedAt time.Time
}

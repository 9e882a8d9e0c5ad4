package models

import (
	"fmt"
	"strings"
	"time"
)

// UploadFilter selects which of a channel's uploads playlists is polled.
type UploadFilter string

const (
	FilterAll     UploadFilter = "all"     // every upload
	FilterVideos  UploadFilter = "videos"  // full videos only
	FilterStreams UploadFilter = "streams" // livestreams only
	FilterShorts  UploadFilter = "shorts"  // shorts only
)

// ParseUploadFilter accepts a filter name or one of its long aliases. An empty string is [FilterAll].
func ParseUploadFilter(s string) (UploadFilter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all", "all_videos":
		return FilterAll, nil
	case "videos", "full_videos_only":
		return FilterVideos, nil
	case "streams", "livestreams", "livestreams_only":
		return FilterStreams, nil
	case "shorts", "shorts_only":
		return FilterShorts, nil
	default:
		return "", fmt.Errorf("unknown upload filter %q", s)
	}
}

// Prefix is the playlist ID prefix replacing "UC" in the channel ID.
func (f UploadFilter) Prefix() string {
	switch f {
	case FilterVideos:
		return "UULF"
	case FilterStreams:
		return "UULV"
	case FilterShorts:
		return "UUSH"
	default:
		return "UU"
	}
}

// UploadsPlaylistID derives the uploads playlist of channelID for this filter without an API call.
func (f UploadFilter) UploadsPlaylistID(channelID string) (string, error) {
	if !strings.HasPrefix(channelID, "UC") || len(channelID) < 3 {
		return "", fmt.Errorf("not a channel ID: %q", channelID)
	}
	return f.Prefix() + channelID[2:], nil
}

// UploadCandidate is one upload seen during a poll. It is never persisted.
type UploadCandidate struct {
	VideoID     string    `json:"video_id"`
	PublishedAt time.Time `json:"published_at"`
}

// Watermark returns the watermark that marks c as the last seen upload.
func (c UploadCandidate) Watermark() UploadWatermark {
	return UploadWatermark{PublishedAt: c.PublishedAt, VideoID: c.VideoID}
}

// UploadWatermark is the boundary below which uploads count as processed.
// The zero value is epoch zero: nothing has been seen.
type UploadWatermark struct {
	PublishedAt time.Time `json:"published_at"`
	VideoID     string    `json:"video_id"`
}

// IsZero reports whether w is epoch zero.
func (w UploadWatermark) IsZero() bool {
	return w.PublishedAt.IsZero() && w.VideoID == ""
}

// Covers reports whether c is at or before the watermark.
//
// Uploads sharing the watermark's timestamp are told apart by video ID: only the exact boundary upload is covered.
func (w UploadWatermark) Covers(c UploadCandidate) bool {
	if w.IsZero() {
		return false
	}
	if c.PublishedAt.Before(w.PublishedAt) {
		return true
	}
	return c.PublishedAt.Equal(w.PublishedAt) && c.VideoID == w.VideoID
}

// Before reports whether w is strictly older than o.
func (w UploadWatermark) Before(o UploadWatermark) bool {
	return w.PublishedAt.Before(o.PublishedAt)
}

func (w UploadWatermark) String() string {
	if w.IsZero() {
		return "epoch"
	}
	return fmt.Sprintf("%s@%s", w.VideoID, w.PublishedAt.UTC().Format(time.RFC3339))
}

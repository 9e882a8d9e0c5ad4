package services

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytpa/internal/models"
	"github.com/desertthunder/ytpa/internal/retry"
	"github.com/desertthunder/ytpa/internal/shared"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const pageSize int64 = 50

// Options tunes a [YouTubeService].
type Options struct {
	RateLimit float64 // requests per second, 0 or less disables limiting
	Retry     retry.Policy
	Logger    *log.Logger
}

// YouTubeService implements [Platform] with the YouTube Data API v3.
type YouTubeService struct {
	svc     *youtube.Service
	limiter *rate.Limiter
	policy  retry.Policy
	logger  *log.Logger
}

// NewYouTubeService builds the API client. Credentials come in through clientOpts
// (option.WithTokenSource for OAuth, option.WithAPIKey for read-only use).
func NewYouTubeService(ctx context.Context, opts Options, clientOpts ...option.ClientOption) (*YouTubeService, error) {
	svc, err := youtube.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &YouTubeService{
		svc:     svc,
		limiter: rate.NewLimiter(limit, 1),
		policy:  opts.Retry,
		logger:  logger,
	}, nil
}

// call runs fn under the rate limiter and retry policy, classifying whatever it returns.
func (y *YouTubeService) call(ctx context.Context, op string, fn func(context.Context) error) error {
	return retry.Do(ctx, y.policy, retry.Transient, func(ctx context.Context) error {
		if err := y.limiter.Wait(ctx); err != nil {
			return err
		}
		err := classify(op, fn(ctx))
		if err != nil {
			y.logger.Debug("youtube api call failed", "op", op, "err", err)
		}
		return err
	})
}

// LookupChannelIDByHandle resolves "@handle" with channels.list?forHandle.
func (y *YouTubeService) LookupChannelIDByHandle(ctx context.Context, handle string) (string, error) {
	if !strings.HasPrefix(handle, "@") {
		handle = "@" + handle
	}

	var id string
	err := y.call(ctx, "channels.list", func(ctx context.Context) error {
		resp, err := y.svc.Channels.List([]string{"id"}).ForHandle(handle).Context(ctx).Do()
		if err != nil {
			return err
		}
		if len(resp.Items) == 0 {
			return fmt.Errorf("%w: no channel for handle %s", shared.ErrNotFound, handle)
		}
		id = resp.Items[0].Id
		return nil
	})
	return id, err
}

// ChannelTitle returns the display name of a channel.
func (y *YouTubeService) ChannelTitle(ctx context.Context, channelID string) (string, error) {
	var title string
	err := y.call(ctx, "channels.list", func(ctx context.Context) error {
		resp, err := y.svc.Channels.List([]string{"snippet"}).Id(channelID).Context(ctx).Do()
		if err != nil {
			return err
		}
		if len(resp.Items) == 0 || resp.Items[0].Snippet == nil {
			return fmt.Errorf("%w: channel %s", shared.ErrNotFound, channelID)
		}
		title = resp.Items[0].Snippet.Title
		return nil
	})
	return title, err
}

// ListUploads walks the channel's uploads playlist for filter, newest first.
func (y *YouTubeService) ListUploads(ctx context.Context, channelID string, filter models.UploadFilter) iter.Seq2[models.UploadCandidate, error] {
	return func(yield func(models.UploadCandidate, error) bool) {
		playlistID, err := filter.UploadsPlaylistID(channelID)
		if err != nil {
			yield(models.UploadCandidate{}, err)
			return
		}

		for item, err := range y.ListPlaylistItems(ctx, playlistID) {
			if err != nil {
				yield(models.UploadCandidate{}, err)
				return
			}
			// Private and deleted uploads carry no publish time and can never be ordered against the watermark.
			if item.PublishedAt.IsZero() {
				y.logger.Warn("skipping upload without a publish time", "channel", channelID, "video", item.VideoID)
				continue
			}
			if !yield(models.UploadCandidate{VideoID: item.VideoID, PublishedAt: item.PublishedAt}, nil) {
				return
			}
		}
	}
}

// ListPlaylistItems yields every entry of a playlist in playlist order.
//
// Pages are requested lazily; breaking out of the range loop stops further requests.
func (y *YouTubeService) ListPlaylistItems(ctx context.Context, playlistID string) iter.Seq2[PlaylistItem, error] {
	return func(yield func(PlaylistItem, error) bool) {
		pageToken := ""
		for {
			var resp *youtube.PlaylistItemListResponse
			err := y.call(ctx, "playlistItems.list", func(ctx context.Context) error {
				var err error
				resp, err = y.svc.PlaylistItems.List([]string{"snippet", "contentDetails"}).
					PlaylistId(playlistID).
					MaxResults(pageSize).
					PageToken(pageToken).
					Context(ctx).
					Do()
				return err
			})
			if err != nil {
				yield(PlaylistItem{}, err)
				return
			}

			for _, item := range resp.Items {
				if !yield(toPlaylistItem(item), nil) {
					return
				}
			}

			pageToken = resp.NextPageToken
			if pageToken == "" {
				return
			}
		}
	}
}

// AddItem appends a video to the end of a playlist.
func (y *YouTubeService) AddItem(ctx context.Context, playlistID, videoID string) error {
	item := &youtube.PlaylistItem{
		Snippet: &youtube.PlaylistItemSnippet{
			PlaylistId: playlistID,
			ResourceId: &youtube.ResourceId{Kind: "youtube#video", VideoId: videoID},
		},
	}

	return y.call(ctx, "playlistItems.insert", func(ctx context.Context) error {
		_, err := y.svc.PlaylistItems.Insert([]string{"snippet"}, item).Context(ctx).Do()
		return err
	})
}

// RemoveItemsUpTo deletes the first index entries of a playlist and reports how many were removed.
//
// The entries are collected before any delete so positions do not shift under the walk.
func (y *YouTubeService) RemoveItemsUpTo(ctx context.Context, playlistID string, index int) (int, error) {
	if index < 1 {
		return 0, fmt.Errorf("%w: index must be at least 1, got %d", shared.ErrInvalidArgument, index)
	}

	ids := make([]string, 0, index)
	for item, err := range y.ListPlaylistItems(ctx, playlistID) {
		if err != nil {
			return 0, err
		}
		ids = append(ids, item.ID)
		if len(ids) == index {
			break
		}
	}

	removed := 0
	for _, id := range ids {
		err := y.call(ctx, "playlistItems.delete", func(ctx context.Context) error {
			return y.svc.PlaylistItems.Delete(id).Context(ctx).Do()
		})
		if err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// VerifyPlaylist checks that a playlist exists and is readable.
func (y *YouTubeService) VerifyPlaylist(ctx context.Context, playlistID string) error {
	return y.call(ctx, "playlistItems.list", func(ctx context.Context) error {
		_, err := y.svc.PlaylistItems.List([]string{"id"}).PlaylistId(playlistID).MaxResults(1).Context(ctx).Do()
		return err
	})
}

// toPlaylistItem prefers the video's own publish time over the time it was added to the playlist.
func toPlaylistItem(item *youtube.PlaylistItem) PlaylistItem {
	out := PlaylistItem{ID: item.Id}

	var published string
	if cd := item.ContentDetails; cd != nil {
		out.VideoID = cd.VideoId
		published = cd.VideoPublishedAt
	}
	if sn := item.Snippet; sn != nil {
		out.Title = sn.Title
		out.Position = sn.Position
		if out.VideoID == "" && sn.ResourceId != nil {
			out.VideoID = sn.ResourceId.VideoId
		}
		if published == "" {
			published = sn.PublishedAt
		}
	}

	if t, err := time.Parse(time.RFC3339, published); err == nil {
		out.PublishedAt = t.UTC()
	}
	return out
}

var _ Platform = (*YouTubeService)(nil)

package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytpa/internal/models"
	"github.com/desertthunder/ytpa/internal/resolver"
	"github.com/desertthunder/ytpa/internal/services"
	"github.com/desertthunder/ytpa/internal/shared"
	"github.com/desertthunder/ytpa/internal/tracker"
)

// FailedItem is a video that could not be added to the target playlist.
type FailedItem struct {
	VideoID string
	Err     error
}

// AddResult reports a manual add.
type AddResult struct {
	Source         models.ResourceReference
	TargetPlaylist string
	Total          int
	Added          int
	Failed         []FailedItem
}

// SubscribeOpts configures a new ghost subscription.
type SubscribeOpts struct {
	Name      string              // display name; looked up from the channel when empty
	Filter    models.UploadFilter // which uploads playlist to follow
	AllVideos bool                // start at epoch zero instead of after the newest upload
}

// SubscriptionCreator persists new subscriptions.
type SubscriptionCreator interface {
	Create(sub *models.Subscription) error
}

// PlaylistEngine runs the manual playlist tools and creates subscriptions.
type PlaylistEngine struct {
	platform services.Platform
	resolver *resolver.Resolver
	tracker  *tracker.Tracker
	logger   *log.Logger
}

// NewPlaylistEngine creates a new PlaylistEngine backed by platform.
func NewPlaylistEngine(platform services.Platform, logger *log.Logger) *PlaylistEngine {
	if logger == nil {
		logger = log.Default()
	}
	e := &PlaylistEngine{platform: platform, logger: logger}
	if platform != nil {
		e.resolver = resolver.New(platform)
		e.tracker = tracker.New(platform, logger)
	} else {
		e.resolver = resolver.New(nil)
	}
	return e
}

// Tracker exposes the engine's upload tracker for the auto adder.
func (e *PlaylistEngine) Tracker() *tracker.Tracker { return e.tracker }

// Resolve turns user input into a canonical reference.
func (e *PlaylistEngine) Resolve(ctx context.Context, input string) (models.ResourceReference, error) {
	return e.resolver.Resolve(ctx, input)
}

// ResolveKind resolves input and requires a reference of kind.
func (e *PlaylistEngine) ResolveKind(ctx context.Context, input string, kind models.ResourceKind) (models.ResourceReference, error) {
	return e.resolver.ResolveKind(ctx, input, kind)
}

// AddReference adds source (a video, every entry of a playlist, or a channel's uploads oldest
// first) to the end of targetPlaylistID.
//
// Individual failures are collected in the result and the remaining videos are still tried.
// A quota error stops the run and is returned alongside the partial result.
func (e *PlaylistEngine) AddReference(
	ctx context.Context,
	progress chan<- ProgressUpdate,
	source models.ResourceReference,
	targetPlaylistID string,
	filter models.UploadFilter,
) (*AddResult, error) {
	if e.platform == nil {
		return nil, fmt.Errorf("%w: YouTube client not initialized", shared.ErrServiceUnavailable)
	}
	if err := e.platform.VerifyPlaylist(ctx, targetPlaylistID); err != nil {
		return nil, fmt.Errorf("target playlist %s: %w", targetPlaylistID, err)
	}

	sendProgress(progress, fetchSourceUpdate(source))
	videoIDs, err := e.collect(ctx, source, filter)
	if err != nil {
		return nil, err
	}

	result := &AddResult{Source: source, TargetPlaylist: targetPlaylistID, Total: len(videoIDs)}

	for i, videoID := range videoIDs {
		err := e.platform.AddItem(ctx, targetPlaylistID, videoID)
		sendProgress(progress, addItemUpdate(i+1, len(videoIDs), videoID, err))
		if err == nil {
			result.Added++
			continue
		}

		result.Failed = append(result.Failed, FailedItem{VideoID: videoID, Err: err})
		if errors.Is(err, shared.ErrQuotaExceeded) || ctx.Err() != nil {
			return result, err
		}
		e.logger.Warn("failed to add video", "video", videoID, "playlist", targetPlaylistID, "err", err)
	}

	return result, nil
}

// collect lists the video IDs behind source in the order they should be added.
func (e *PlaylistEngine) collect(ctx context.Context, source models.ResourceReference, filter models.UploadFilter) ([]string, error) {
	switch source.Kind {
	case models.KindVideo:
		return []string{source.ID}, nil

	case models.KindPlaylist:
		var ids []string
		for item, err := range e.platform.ListPlaylistItems(ctx, source.ID) {
			if err != nil {
				return nil, fmt.Errorf("list playlist %s: %w", source.ID, err)
			}
			if item.VideoID != "" {
				ids = append(ids, item.VideoID)
			}
		}
		return ids, nil

	case models.KindChannel:
		uploads, err := e.tracker.PollNewUploads(ctx, source, filter, models.UploadWatermark{})
		if err != nil {
			return nil, err
		}
		ids := make([]string, len(uploads))
		for i, c := range uploads {
			ids[i] = c.VideoID
		}
		return ids, nil

	default:
		return nil, fmt.Errorf("%w: %s", shared.ErrInvalidReference, source)
	}
}

// Trim removes the first index entries of playlistID.
func (e *PlaylistEngine) Trim(ctx context.Context, progress chan<- ProgressUpdate, playlistID string, index int) (int, error) {
	if e.platform == nil {
		return 0, fmt.Errorf("%w: YouTube client not initialized", shared.ErrServiceUnavailable)
	}
	if index < 1 {
		return 0, fmt.Errorf("%w: index must be at least 1, got %d", shared.ErrInvalidArgument, index)
	}

	sendProgress(progress, trimUpdate(playlistID, index))
	return e.platform.RemoveItemsUpTo(ctx, playlistID, index)
}

// Subscribe resolves channelInput and targetInput and stores a ghost subscription between them.
//
// The handle lookup happens here, once; only the canonical channel ID is stored. Unless
// opts.AllVideos is set the watermark starts at the channel's newest upload, so only later
// uploads are delivered.
func (e *PlaylistEngine) Subscribe(ctx context.Context, store SubscriptionCreator, channelInput, targetInput string, opts SubscribeOpts) (*models.Subscription, error) {
	if e.platform == nil {
		return nil, fmt.Errorf("%w: YouTube client not initialized", shared.ErrServiceUnavailable)
	}

	channel, err := e.resolver.ResolveKind(ctx, channelInput, models.KindChannel)
	if err != nil {
		return nil, err
	}
	target, err := e.resolver.ResolveKind(ctx, targetInput, models.KindPlaylist)
	if err != nil {
		return nil, err
	}
	if err := e.platform.VerifyPlaylist(ctx, target.ID); err != nil {
		return nil, fmt.Errorf("target playlist %s: %w", target.ID, err)
	}

	filter := opts.Filter
	if filter == "" {
		filter = models.FilterAll
	}

	sub := models.NewSubscription(0, channel.ID, target.ID, filter)

	name := opts.Name
	if name == "" {
		if title, err := e.platform.ChannelTitle(ctx, channel.ID); err == nil {
			name = title
		} else {
			e.logger.Warn("could not fetch channel title", "channel", channel.ID, "err", err)
		}
	}
	sub.SetName(name)

	if !opts.AllVideos {
		newest, ok, err := e.tracker.Newest(ctx, channel, filter)
		if err != nil {
			return nil, fmt.Errorf("seed watermark: %w", err)
		}
		if ok {
			sub.SetWatermark(newest.Watermark())
		}
	}

	if err := store.Create(sub); err != nil {
		return nil, err
	}

	e.logger.Info("subscribed", "channel", channel.ID, "target", target.ID, "filter", filter, "watermark", sub.Watermark())
	return sub, nil
}

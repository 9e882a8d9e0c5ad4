// Package tracker finds the uploads a subscription has not delivered yet.
//
// A poll walks the channel's uploads newest first and stops at the first upload the watermark
// covers, so a routine poll costs one page. The result is returned oldest first, ready to be
// appended to the target playlist in upload order. The tracker never moves a watermark; that is
// done by the subscription store once the whole batch has been delivered.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytpa/internal/models"
	"github.com/desertthunder/ytpa/internal/shared"
)

// UploadSource yields a channel's uploads newest first.
type UploadSource interface {
	ListUploads(ctx context.Context, channelID string, filter models.UploadFilter) iter.Seq2[models.UploadCandidate, error]
}

// Tracker polls an [UploadSource] against upload watermarks.
type Tracker struct {
	source UploadSource
	logger *log.Logger
}

// New creates a Tracker. A nil logger uses the default logger.
func New(source UploadSource, logger *log.Logger) *Tracker {
	if logger == nil {
		logger = log.Default()
	}
	return &Tracker{source: source, logger: logger}
}

// PollNewUploads returns the uploads of channel newer than wm, oldest first.
//
// Nothing new is an empty slice and a nil error. Any failure while listing discards what was
// collected so far; the error wraps [shared.ErrTransientFetch] unless it is a quota or
// not-found error, which keep their own sentinel.
func (t *Tracker) PollNewUploads(ctx context.Context, channel models.ResourceReference, filter models.UploadFilter, wm models.UploadWatermark) ([]models.UploadCandidate, error) {
	if channel.Kind != models.KindChannel {
		return nil, fmt.Errorf("%w: %s is not a channel", shared.ErrInvalidReference, channel)
	}

	fresh := []models.UploadCandidate{}
	for c, err := range t.source.ListUploads(ctx, channel.ID, filter) {
		if err != nil {
			return nil, fetchError(channel, err)
		}
		if wm.Covers(c) {
			break
		}
		fresh = append(fresh, c)
	}

	slices.Reverse(fresh)
	t.logger.Debug("polled uploads", "channel", channel.ID, "filter", filter, "watermark", wm, "new", len(fresh))
	return fresh, nil
}

// Newest returns the most recent upload of channel, or false when it has none.
//
// Subscriptions that only want future uploads seed their watermark with it.
func (t *Tracker) Newest(ctx context.Context, channel models.ResourceReference, filter models.UploadFilter) (models.UploadCandidate, bool, error) {
	if channel.Kind != models.KindChannel {
		return models.UploadCandidate{}, false, fmt.Errorf("%w: %s is not a channel", shared.ErrInvalidReference, channel)
	}

	for c, err := range t.source.ListUploads(ctx, channel.ID, filter) {
		if err != nil {
			return models.UploadCandidate{}, false, fetchError(channel, err)
		}
		return c, true, nil
	}
	return models.UploadCandidate{}, false, nil
}

func fetchError(channel models.ResourceReference, err error) error {
	switch {
	case errors.Is(err, shared.ErrQuotaExceeded),
		errors.Is(err, shared.ErrNotFound),
		errors.Is(err, shared.ErrTransientFetch),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("poll %s: %w", channel.ID, err)
	default:
		return fmt.Errorf("%w: poll %s: %w", shared.ErrTransientFetch, channel.ID, err)
	}
}

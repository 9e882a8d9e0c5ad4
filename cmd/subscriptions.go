package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/desertthunder/ytpa/internal/formatter"
	"github.com/desertthunder/ytpa/internal/models"
	"github.com/desertthunder/ytpa/internal/shared"
	"github.com/desertthunder/ytpa/internal/tasks"
	"github.com/urfave/cli/v3"
)

// SubscriptionsAdd creates a ghost subscription.
func (r *Runner) SubscriptionsAdd(ctx context.Context, cmd *cli.Command) error {
	channel := cmd.StringArg("channel")
	if channel == "" {
		return fmt.Errorf("%w: channel", shared.ErrMissingArgument)
	}
	target, err := r.targetPlaylist(cmd.StringArg("playlist"))
	if err != nil {
		return err
	}
	filter, err := r.uploadFilter(cmd)
	if err != nil {
		return err
	}
	if err := r.requireStore(); err != nil {
		return err
	}
	if err := r.requirePlatform(false); err != nil {
		return err
	}

	sub, err := r.engine.Subscribe(ctx, r.subs, channel, target, tasks.SubscribeOpts{
		Name:      cmd.String("name"),
		Filter:    filter,
		AllVideos: cmd.Bool("all"),
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(sub, true)
	}

	r.writePlain("✓ Subscribed to %s (%s)\n", sub.Label(), sub.Channel().ID)
	r.writePlain("  Target:  %s\n", sub.TargetPlaylist().ID)
	r.writePlain("  Filter:  %s\n", sub.Filter())
	if sub.Watermark().IsZero() {
		r.writePlain("  Delivers every existing upload on the next run\n")
	} else {
		r.writePlain("  Delivers uploads after %s\n", sub.Watermark())
	}
	return nil
}

// findSubscription looks a subscription up by ID or by its list number.
func (r *Runner) findSubscription(ref string) (*models.Subscription, error) {
	if seq, err := strconv.Atoi(ref); err == nil {
		return r.subs.GetBySequence(seq)
	}
	return r.subs.Get(ref)
}

// SubscriptionsRemove deletes a subscription. Its poll history is kept.
func (r *Runner) SubscriptionsRemove(ctx context.Context, cmd *cli.Command) error {
	ref := cmd.StringArg("id")
	if ref == "" {
		return fmt.Errorf("%w: id", shared.ErrMissingArgument)
	}
	if err := r.requireStore(); err != nil {
		return err
	}

	sub, err := r.findSubscription(ref)
	if err != nil {
		return err
	}
	if err := r.subs.Delete(sub.ID()); err != nil {
		return err
	}

	return r.writePlain("✓ Removed subscription to %s\n", sub.Label())
}

// SubscriptionsList prints subscriptions as a table or JSON.
func (r *Runner) SubscriptionsList(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}

	criteria := map[string]any{}
	if v := cmd.String("channel"); v != "" {
		criteria["channel_id"] = v
	}
	if v := cmd.String("playlist"); v != "" {
		criteria["target_playlist_id"] = v
	}

	subs, err := r.subs.List(criteria)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		if subs == nil {
			subs = []*models.Subscription{}
		}
		return r.writeJSON(subs, true)
	}

	if len(subs) == 0 {
		return r.writePlain("No subscriptions. Add one with `ytpa subscriptions add <channel> <playlist>`.\n")
	}

	rows := make([][]string, len(subs))
	for i, sub := range subs {
		polled := "never"
		if t := sub.LastPolledAt(); t != nil {
			polled = t.Local().Format(time.DateTime)
		}
		rows[i] = []string{
			strconv.Itoa(sub.Sequence()),
			sub.Label(),
			sub.Channel().ID,
			sub.TargetPlaylist().ID,
			string(sub.Filter()),
			sub.Watermark().String(),
			polled,
		}
	}
	return r.writeTable(
		[]string{"#", "Name", "Channel", "Target", "Filter", "Watermark", "Last polled"},
		rows,
		[]columnAlignment{alignRight},
	)
}

// SubscriptionsExport writes every subscription to a file.
func (r *Runner) SubscriptionsExport(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	if err := r.requireStore(); err != nil {
		return err
	}

	subs, err := r.subs.List(nil)
	if err != nil {
		return err
	}

	path, err := formatter.WriteExport(subs, format, cmd.String("output"))
	if err != nil {
		return err
	}

	r.logger.Info("exported subscriptions", "count", len(subs), "path", path)
	return r.writePlain("✓ Exported %d subscriptions to %s\n", len(subs), path)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/desertthunder/ytpa/internal/models"
	"github.com/desertthunder/ytpa/internal/shared"
	"github.com/desertthunder/ytpa/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Run polls every subscription once, or on an interval with --watch, holding the run lock throughout.
//
// An interrupt cancels the cycle between subscriptions; polls already delivering finish or stop without
// moving their watermark.
func (r *Runner) Run(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}
	if err := r.requirePlatform(true); err != nil {
		return err
	}

	lock := shared.NewRunLock(r.config.Adder.LockPath)
	if err := lock.Acquire(); err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			r.logger.Warn("failed to release run lock", "path", lock.Path(), "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if ref := cmd.String("subscription"); ref != "" {
		sub, err := r.findSubscription(ref)
		if err != nil {
			return err
		}
		res := r.adder.PollSubscription(ctx, sub.ID())
		r.printCycle(singleCycle(res))
		return res.Err
	}

	progress := make(chan tasks.ProgressUpdate, 100)
	done := r.printProgress(progress)
	defer func() {
		close(progress)
		<-done
	}()

	if cmd.Bool("watch") {
		interval := cmd.Duration("interval")
		if interval == 0 {
			interval = r.config.Adder.Interval
		}
		r.logger.Info("watching subscriptions", "interval", interval)
		return r.adder.Watch(ctx, interval, progress, r.printCycle)
	}

	result, err := r.adder.RunCycle(ctx, progress)
	if result != nil {
		r.printCycle(result)
	}
	if errors.Is(err, context.Canceled) {
		r.logger.Warn("interrupted; remaining subscriptions were skipped")
		return nil
	}
	return err
}

// singleCycle presents one poll as a cycle summary.
func singleCycle(res tasks.PollResult) *tasks.CycleResult {
	out := &tasks.CycleResult{Results: []tasks.PollResult{res}, Added: res.Added}
	switch {
	case res.Skipped:
		out.Skipped = 1
	case res.Err != nil:
		out.Polled, out.Failed = 1, 1
		out.QuotaExceeded = errors.Is(res.Err, shared.ErrQuotaExceeded)
	default:
		out.Polled = 1
	}
	return out
}

func (r *Runner) printCycle(result *tasks.CycleResult) {
	r.writePlainln("Polled %d, added %d, failed %d, skipped %d in %s",
		result.Polled, result.Added, result.Failed, result.Skipped, result.Duration.Round(time.Millisecond))
	if result.QuotaExceeded {
		r.writePlain("⚠ Daily quota exhausted; skipped subscriptions are retried next cycle\n")
	}
	for _, res := range result.Results {
		if res.Err != nil && !res.Skipped {
			r.writePlain("  ✗ %s: %v\n", res.Subscription.Label(), res.Err)
		}
	}
}

// History prints recorded polls, newest first.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}

	criteria := map[string]any{"limit": int(cmd.Int("limit"))}
	if ref := cmd.String("subscription"); ref != "" {
		sub, err := r.findSubscription(ref)
		if err != nil {
			return err
		}
		criteria["subscription_id"] = sub.ID()
	}
	if v := cmd.String("status"); v != "" {
		criteria["status"] = v
	}

	runs, err := r.runs.List(criteria)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		if runs == nil {
			runs = []*models.PollRun{}
		}
		return r.writeJSON(runs, true)
	}

	if len(runs) == 0 {
		return r.writePlain("No polls recorded yet. Run `ytpa run`.\n")
	}

	labels := map[string]string{}
	if subs, err := r.subs.List(nil); err == nil {
		for _, sub := range subs {
			labels[sub.ID()] = sub.Label()
		}
	}

	rows := make([][]string, len(runs))
	for i, run := range runs {
		started := "-"
		if t := run.StartedAt(); t != nil {
			started = t.Local().Format(time.DateTime)
		}
		label, ok := labels[run.SubscriptionID()]
		if !ok {
			label = run.SubscriptionID() + " (removed)"
		}
		rows[i] = []string{
			started,
			label,
			string(run.Status()),
			strconv.Itoa(run.CandidatesFound()),
			strconv.Itoa(run.ItemsAdded()),
			run.Duration().Round(time.Millisecond).String(),
			run.ErrorMessage(),
		}
	}
	return r.writeTable(
		[]string{"Started", "Subscription", "Status", "Found", "Added", "Took", "Error"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight},
	)
}

// requireAdder is used by the TUI, which can browse without a client.
func (r *Runner) requireAdder() error {
	if r.adder == nil {
		return fmt.Errorf("%w: auto adder needs a database and a YouTube client", shared.ErrServiceUnavailable)
	}
	return nil
}

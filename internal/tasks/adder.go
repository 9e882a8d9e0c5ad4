package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytpa/internal/models"
	"github.com/desertthunder/ytpa/internal/shared"
)

// SubscriptionStore is the part of the subscription repository the auto adder needs.
type SubscriptionStore interface {
	Get(id string) (*models.Subscription, error)
	List(criteria map[string]any) ([]*models.Subscription, error)
	AdvanceWatermark(id string, wm models.UploadWatermark) error
	MarkPolled(id string, at time.Time) error
}

// RunRecorder persists poll history.
type RunRecorder interface {
	Create(run *models.PollRun) error
	Update(run *models.PollRun) error
}

// UploadPoller finds undelivered uploads, oldest first.
type UploadPoller interface {
	PollNewUploads(ctx context.Context, channel models.ResourceReference, filter models.UploadFilter, wm models.UploadWatermark) ([]models.UploadCandidate, error)
}

// ItemAdder appends a video to a playlist.
type ItemAdder interface {
	AddItem(ctx context.Context, playlistID, videoID string) error
}

// AutoAdderOpts configures an [AutoAdder].
type AutoAdderOpts struct {
	Workers int         // parallel subscription polls (default: 4)
	Logger  *log.Logger // default: log.Default()
	Runs    RunRecorder // optional poll history
	Now     func() time.Time
}

// AutoAdder delivers new uploads of every ghost subscription to its target playlist.
type AutoAdder struct {
	subs    SubscriptionStore
	poller  UploadPoller
	adder   ItemAdder
	runs    RunRecorder
	locks   *KeyedMutex
	workers int
	logger  *log.Logger
	now     func() time.Time
}

// PollResult is the outcome of polling one subscription.
type PollResult struct {
	Subscription *models.Subscription
	Candidates   int
	Added        int
	Watermark    models.UploadWatermark // watermark after the poll
	Skipped      bool
	Err          error
}

// CycleResult summarizes one pass over all subscriptions.
type CycleResult struct {
	Results       []PollResult
	Polled        int
	Added         int
	Failed        int
	Skipped       int
	QuotaExceeded bool
	StartedAt     time.Time
	Duration      time.Duration
}

// NewAutoAdder wires an auto adder. The same [KeyedMutex] is shared by every poll it runs.
func NewAutoAdder(subs SubscriptionStore, poller UploadPoller, adder ItemAdder, opts AutoAdderOpts) *AutoAdder {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &AutoAdder{
		subs:    subs,
		poller:  poller,
		adder:   adder,
		runs:    opts.Runs,
		locks:   NewKeyedMutex(),
		workers: opts.Workers,
		logger:  opts.Logger,
		now:     opts.Now,
	}
}

// PollSubscription fetches, delivers and advances one subscription.
//
// Concurrent calls for the same subscription run one after the other. The subscription is
// re-read once the lock is held, so a second call sees the watermark the first one wrote.
// The watermark moves only when every candidate was added; otherwise the next poll finds
// the same batch again.
func (a *AutoAdder) PollSubscription(ctx context.Context, id string) PollResult {
	unlock := a.locks.Lock(id)
	defer unlock()

	sub, err := a.subs.Get(id)
	if err != nil {
		placeholder := models.NewSubscription(0, "", "", "")
		placeholder.SetName(id)
		return PollResult{Subscription: placeholder, Err: err}
	}

	res := PollResult{Subscription: sub, Watermark: sub.Watermark()}
	logger := shared.WithLogger(a.logger, "subscription", sub.Label())

	if err := ctx.Err(); err != nil {
		res.Skipped = true
		res.Err = cause(ctx)
		a.recordSkip(sub, res.Err)
		return res
	}

	run := a.startRun(sub)

	candidates, err := a.poller.PollNewUploads(ctx, sub.Channel(), sub.Filter(), sub.Watermark())
	if err == nil {
		res.Candidates = len(candidates)
		for _, c := range candidates {
			if err = a.adder.AddItem(ctx, sub.TargetPlaylist().ID, c.VideoID); err != nil {
				err = fmt.Errorf("add %s to %s: %w", c.VideoID, sub.TargetPlaylist().ID, err)
				break
			}
			res.Added++
		}
	}

	if err == nil && len(candidates) > 0 {
		wm := candidates[len(candidates)-1].Watermark()
		if err = a.subs.AdvanceWatermark(sub.ID(), wm); err == nil {
			res.Watermark = wm
		}
	}

	if markErr := a.subs.MarkPolled(sub.ID(), a.now()); markErr != nil {
		logger.Warn("failed to record poll time", "err", markErr)
	}

	res.Err = err
	a.finishRun(run, res)

	switch {
	case err != nil:
		logger.Warn("poll failed", "added", res.Added, "candidates", res.Candidates, "err", err)
	case res.Candidates > 0:
		logger.Info("delivered uploads", "added", res.Added, "watermark", res.Watermark)
	default:
		logger.Debug("no new uploads")
	}
	return res
}

// RunCycle polls every subscription once with a bounded worker pool.
//
// A quota error cancels the rest of the cycle: polls not yet started are skipped and the cycle
// ends with QuotaExceeded set rather than an error. Cancelling ctx stops the cycle between
// subscriptions and returns the context's error.
func (a *AutoAdder) RunCycle(ctx context.Context, progress chan<- ProgressUpdate) (*CycleResult, error) {
	subs, err := a.subs.List(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	result := &CycleResult{StartedAt: a.now(), Results: make([]PollResult, 0, len(subs))}
	if len(subs) == 0 {
		return result, nil
	}

	cycleCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	jobs := make(chan *models.Subscription, len(subs))
	results := make(chan PollResult, len(subs))
	total := len(subs)

	var wg sync.WaitGroup
	for i := 0; i < min(a.workers, total); i++ {
		wg.Add(1)
		go a.pollWorker(cycleCtx, cancel, &wg, jobs, results)
	}

	for i, sub := range subs {
		sendProgress(progress, pollStartedUpdate(i+1, total, sub))
		jobs <- sub
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)
		switch {
		case res.Skipped:
			result.Skipped++
		case res.Err != nil:
			result.Failed++
			result.Polled++
		default:
			result.Polled++
		}
		result.Added += res.Added
		sendProgress(progress, pollResultUpdate(completed, total, res))
	}

	result.Duration = a.now().Sub(result.StartedAt)
	result.QuotaExceeded = errors.Is(context.Cause(cycleCtx), shared.ErrQuotaExceeded)

	if result.QuotaExceeded {
		a.logger.Warn("quota exceeded, remaining subscriptions skipped until the next cycle", "skipped", result.Skipped)
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (a *AutoAdder) pollWorker(
	ctx context.Context,
	cancel context.CancelCauseFunc,
	wg *sync.WaitGroup,
	jobs <-chan *models.Subscription,
	results chan<- PollResult,
) {
	defer wg.Done()

	for sub := range jobs {
		res := a.PollSubscription(ctx, sub.ID())
		if errors.Is(res.Err, shared.ErrQuotaExceeded) {
			cancel(shared.ErrQuotaExceeded)
		}
		// a poll cut short by another worker's quota error did not fail on its own
		if !res.Skipped && res.Added == 0 && errors.Is(res.Err, context.Canceled) && ctx.Err() != nil {
			res.Skipped = true
			res.Err = cause(ctx)
		}
		results <- res
	}
}

// Watch runs a cycle immediately and then every interval until ctx is cancelled.
//
// Cycle errors other than cancellation are logged and the loop keeps going.
func (a *AutoAdder) Watch(ctx context.Context, interval time.Duration, progress chan<- ProgressUpdate, onCycle func(*CycleResult)) error {
	if interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", shared.ErrInvalidArgument)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		res, err := a.RunCycle(ctx, progress)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			a.logger.Error("cycle failed", "err", err)
		} else if onCycle != nil {
			onCycle(res)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (a *AutoAdder) startRun(sub *models.Subscription) *models.PollRun {
	if a.runs == nil {
		return nil
	}
	run := models.NewPollRun(0, sub.ID())
	run.Start(a.now())
	if err := a.runs.Create(run); err != nil {
		a.logger.Warn("failed to record poll run", "subscription", sub.Label(), "err", err)
		return nil
	}
	return run
}

func (a *AutoAdder) finishRun(run *models.PollRun, res PollResult) {
	if run == nil {
		return
	}
	run.SetCandidatesFound(res.Candidates)
	run.SetItemsAdded(res.Added)
	run.Finish(a.now(), res.Err)
	if err := a.runs.Update(run); err != nil {
		a.logger.Warn("failed to update poll run", "run", run.ID(), "err", err)
	}
}

func (a *AutoAdder) recordSkip(sub *models.Subscription, reason error) {
	if a.runs == nil {
		return
	}
	run := models.NewPollRun(0, sub.ID())
	run.Skip(a.now(), reason.Error())
	if err := a.runs.Create(run); err != nil {
		a.logger.Warn("failed to record skipped poll", "subscription", sub.Label(), "err", err)
	}
}

// cause prefers the cancellation cause (such as a quota error) over a bare context.Canceled.
func cause(ctx context.Context) error {
	if c := context.Cause(ctx); c != nil {
		return c
	}
	return ctx.Err()
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

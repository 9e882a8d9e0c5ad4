package tasks

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/ytpa/internal/models"
	"github.com/desertthunder/ytpa/internal/repositories"
	"github.com/desertthunder/ytpa/internal/shared"
	tu "github.com/desertthunder/ytpa/internal/testing"
	"github.com/desertthunder/ytpa/internal/tracker"
)

const (
	channelA = "UC38IQsAvIsxxjztdMZQtwHA"
	channelB = "UCuAXFkgsw1L7xaCfnd5JJOw"
	channelC = "UCBJycsmduvYEL83R_U4JriQ"
	target   = "PLrAXtmErZgOeiKm4sgNOknGvNjby9efdf"
)

var newest = time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

type fixture struct {
	platform *tu.FakePlatform
	subs     *repositories.SubscriptionRepository
	runs     *repositories.PollRunRepository
	adder    *AutoAdder
}

func newFixture(t *testing.T, workers int) *fixture {
	t.Helper()
	db := setupTestDB(t)
	platform := tu.NewFakePlatform()
	platform.EnsurePlaylist(target)

	subs := repositories.NewSubscriptionRepository(db)
	runs := repositories.NewPollRunRepository(db)
	adder := NewAutoAdder(subs, tracker.New(platform, nil), platform, AutoAdderOpts{Workers: workers, Runs: runs})

	return &fixture{platform: platform, subs: subs, runs: runs, adder: adder}
}

func (f *fixture) subscribe(t *testing.T, channelID string, wm models.UploadWatermark) *models.Subscription {
	t.Helper()
	sub := models.NewSubscription(0, channelID, target, models.FilterAll)
	sub.SetWatermark(wm)
	if err := f.subs.Create(sub); err != nil {
		t.Fatalf("failed to create subscription: %v", err)
	}
	return sub
}

func (f *fixture) watermark(t *testing.T, id string) models.UploadWatermark {
	t.Helper()
	sub, err := f.subs.Get(id)
	if err != nil {
		t.Fatalf("failed to reload subscription: %v", err)
	}
	return sub.Watermark()
}

func upload(id string, hoursBeforeNewest int) models.UploadCandidate {
	return models.UploadCandidate{VideoID: id, PublishedAt: newest.Add(-time.Duration(hoursBeforeNewest) * time.Hour)}
}

func joined(ids []string) string { return strings.Join(ids, ",") }

func TestAutoAdder_PollSubscription(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers new uploads oldest first and advances", func(t *testing.T) {
		f := newFixture(t, 1)
		f.platform.SetUploads(channelA, newest, "v3", "v2", "v1")
		sub := f.subscribe(t, channelA, upload("v1", 2).Watermark())

		res := f.adder.PollSubscription(ctx, sub.ID())
		if res.Err != nil {
			t.Fatalf("unexpected error: %v", res.Err)
		}
		if got := joined(f.platform.VideoIDs(target)); got != "v2,v3" {
			t.Errorf("expected v2,v3 in the playlist, got %s", got)
		}
		if res.Candidates != 2 || res.Added != 2 {
			t.Errorf("expected 2/2, got %d/%d", res.Added, res.Candidates)
		}
		if wm := f.watermark(t, sub.ID()); wm.String() != upload("v3", 0).Watermark().String() {
			t.Errorf("expected watermark at v3, got %s", wm)
		}

		again := f.adder.PollSubscription(ctx, sub.ID())
		if again.Err != nil || again.Candidates != 0 {
			t.Errorf("expected an empty second poll, got %d candidates (err %v)", again.Candidates, again.Err)
		}
		if len(f.platform.Added) != 2 {
			t.Errorf("expected no further inserts, got %d", len(f.platform.Added))
		}
	})

	t.Run("a partial delivery leaves the watermark and the next poll retries the batch", func(t *testing.T) {
		f := newFixture(t, 1)
		f.platform.SetUploads(channelA, newest, "v3", "v2", "v1")
		sub := f.subscribe(t, channelA, models.UploadWatermark{})

		f.platform.AddErr = func(_, videoID string, _ int) error {
			if videoID == "v2" {
				return shared.ErrTransientFetch
			}
			return nil
		}

		res := f.adder.PollSubscription(ctx, sub.ID())
		if !errors.Is(res.Err, shared.ErrTransientFetch) {
			t.Fatalf("expected ErrTransientFetch, got %v", res.Err)
		}
		if res.Added != 1 {
			t.Errorf("expected 1 added before the failure, got %d", res.Added)
		}
		if wm := f.watermark(t, sub.ID()); !wm.IsZero() {
			t.Errorf("expected watermark untouched, got %s", wm)
		}

		f.platform.AddErr = nil
		res = f.adder.PollSubscription(ctx, sub.ID())
		if res.Err != nil {
			t.Fatalf("unexpected error on retry: %v", res.Err)
		}
		if res.Candidates != 3 {
			t.Errorf("expected the same batch of 3, got %d", res.Candidates)
		}
		if got := joined(f.platform.VideoIDs(target)); got != "v1,v1,v2,v3" {
			t.Errorf("expected at-least-once delivery v1,v1,v2,v3, got %s", got)
		}
		if wm := f.watermark(t, sub.ID()); wm.VideoID != "v3" {
			t.Errorf("expected watermark at v3, got %s", wm)
		}
	})

	t.Run("a fetch failure delivers nothing", func(t *testing.T) {
		f := newFixture(t, 1)
		f.platform.SetUploads(channelA, newest, "v2", "v1")
		f.platform.ListErr = errors.New("connection reset")
		sub := f.subscribe(t, channelA, models.UploadWatermark{})

		res := f.adder.PollSubscription(ctx, sub.ID())
		if !errors.Is(res.Err, shared.ErrTransientFetch) {
			t.Errorf("expected ErrTransientFetch, got %v", res.Err)
		}
		if len(f.platform.Added) != 0 {
			t.Errorf("expected no inserts, got %v", f.platform.Added)
		}
		if wm := f.watermark(t, sub.ID()); !wm.IsZero() {
			t.Errorf("expected watermark untouched, got %s", wm)
		}
	})

	t.Run("concurrent polls of one subscription deliver once", func(t *testing.T) {
		f := newFixture(t, 1)
		f.platform.SetUploads(channelA, newest, "v3", "v2", "v1")
		f.platform.ListDelay = 5 * time.Millisecond
		sub := f.subscribe(t, channelA, models.UploadWatermark{})

		var wg sync.WaitGroup
		for range 5 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if res := f.adder.PollSubscription(ctx, sub.ID()); res.Err != nil {
					t.Errorf("unexpected error: %v", res.Err)
				}
			}()
		}
		wg.Wait()

		if got := joined(f.platform.VideoIDs(target)); got != "v1,v2,v3" {
			t.Errorf("expected one delivery of v1,v2,v3, got %s", got)
		}
	})

	t.Run("records poll history", func(t *testing.T) {
		f := newFixture(t, 1)
		f.platform.SetUploads(channelA, newest, "v1")
		sub := f.subscribe(t, channelA, models.UploadWatermark{})

		f.adder.PollSubscription(ctx, sub.ID())

		runs, err := f.runs.List(map[string]any{"subscription_id": sub.ID()})
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(runs) != 1 {
			t.Fatalf("expected 1 run, got %d", len(runs))
		}
		if runs[0].Status() != models.PollCompleted || runs[0].ItemsAdded() != 1 {
			t.Errorf("unexpected run %s with %d added", runs[0].Status(), runs[0].ItemsAdded())
		}

		reloaded, _ := f.subs.Get(sub.ID())
		if reloaded.LastPolledAt() == nil {
			t.Error("expected last polled time to be set")
		}
	})

	t.Run("unknown subscription", func(t *testing.T) {
		f := newFixture(t, 1)
		res := f.adder.PollSubscription(ctx, "missing")
		if !errors.Is(res.Err, shared.ErrSubscriptionNotFound) {
			t.Errorf("expected ErrSubscriptionNotFound, got %v", res.Err)
		}
	})
}

func TestAutoAdder_RunCycle(t *testing.T) {
	t.Run("polls every subscription", func(t *testing.T) {
		f := newFixture(t, 4)
		f.platform.SetUploads(channelA, newest, "a2", "a1")
		f.platform.SetUploads(channelB, newest, "b1")
		f.platform.SetUploads(channelC, newest, "c1")
		f.subscribe(t, channelA, models.UploadWatermark{})
		f.subscribe(t, channelB, models.UploadWatermark{})
		f.subscribe(t, channelC, upload("c1", 0).Watermark())

		progress := make(chan ProgressUpdate, 100)
		res, err := f.adder.RunCycle(context.Background(), progress)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Polled != 3 || res.Added != 3 || res.Failed != 0 || res.Skipped != 0 {
			t.Errorf("unexpected summary %+v", res)
		}
		if res.QuotaExceeded {
			t.Error("did not expect quota exceeded")
		}
		if len(progress) == 0 {
			t.Error("expected progress updates")
		}
	})

	t.Run("no subscriptions", func(t *testing.T) {
		f := newFixture(t, 4)
		res, err := f.adder.RunCycle(context.Background(), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(res.Results) != 0 {
			t.Errorf("expected no results, got %d", len(res.Results))
		}
	})

	t.Run("a quota error skips the rest of the cycle", func(t *testing.T) {
		f := newFixture(t, 1)
		f.platform.SetUploads(channelA, newest, "a1")
		f.platform.SetUploads(channelB, newest, "b1")
		f.platform.SetUploads(channelC, newest, "c1")
		a := f.subscribe(t, channelA, models.UploadWatermark{})
		b := f.subscribe(t, channelB, models.UploadWatermark{})
		c := f.subscribe(t, channelC, models.UploadWatermark{})

		f.platform.AddErr = func(_, videoID string, _ int) error {
			if videoID == "a1" {
				return shared.ErrQuotaExceeded
			}
			return nil
		}

		res, err := f.adder.RunCycle(context.Background(), nil)
		if err != nil {
			t.Fatalf("quota should not fail the cycle: %v", err)
		}
		if !res.QuotaExceeded {
			t.Error("expected QuotaExceeded")
		}
		if res.Failed != 1 || res.Skipped != 2 {
			t.Errorf("expected 1 failed and 2 skipped, got %d and %d", res.Failed, res.Skipped)
		}
		if len(f.platform.Added) != 0 {
			t.Errorf("expected no deliveries, got %v", f.platform.Added)
		}
		for _, id := range []string{a.ID(), b.ID(), c.ID()} {
			if wm := f.watermark(t, id); !wm.IsZero() {
				t.Errorf("expected watermark of %s untouched, got %s", id, wm)
			}
		}

		skipped, _ := f.runs.List(map[string]any{"status": string(models.PollSkipped)})
		if len(skipped) != 2 {
			t.Errorf("expected 2 skipped runs recorded, got %d", len(skipped))
		}

		f.platform.AddErr = nil
		res, err = f.adder.RunCycle(context.Background(), nil)
		if err != nil || res.Added != 3 {
			t.Errorf("expected the next cycle to deliver all 3, got %d (err %v)", res.Added, err)
		}
	})

	t.Run("a cancelled context skips every subscription", func(t *testing.T) {
		f := newFixture(t, 2)
		f.platform.SetUploads(channelA, newest, "a1")
		f.subscribe(t, channelA, models.UploadWatermark{})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		res, err := f.adder.RunCycle(ctx, nil)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if res.Skipped != 1 {
			t.Errorf("expected 1 skipped, got %d", res.Skipped)
		}
		if len(f.platform.Added) != 0 {
			t.Error("expected no deliveries")
		}
	})
}

func TestAutoAdder_Watch(t *testing.T) {
	t.Run("runs until cancelled", func(t *testing.T) {
		f := newFixture(t, 1)
		f.platform.SetUploads(channelA, newest, "a1")
		f.subscribe(t, channelA, models.UploadWatermark{})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		cycles := 0
		err := f.adder.Watch(ctx, time.Millisecond, nil, func(res *CycleResult) {
			cycles++
			if cycles == 2 {
				cancel()
			}
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cycles != 2 {
			t.Errorf("expected 2 cycles, got %d", cycles)
		}
		if len(f.platform.Added) != 1 {
			t.Errorf("expected a single delivery across cycles, got %d", len(f.platform.Added))
		}
	})

	t.Run("rejects a non-positive interval", func(t *testing.T) {
		f := newFixture(t, 1)
		if err := f.adder.Watch(context.Background(), 0, nil, nil); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

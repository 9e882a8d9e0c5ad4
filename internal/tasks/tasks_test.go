package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/desertthunder/ytpa/internal/models"
	"github.com/desertthunder/ytpa/internal/repositories"
	"github.com/desertthunder/ytpa/internal/services"
	"github.com/desertthunder/ytpa/internal/shared"
	tu "github.com/desertthunder/ytpa/internal/testing"
)

const sourcePlaylist = "PLsourcePlaylist000000000000000000"

func newEngine(t *testing.T) (*PlaylistEngine, *tu.FakePlatform) {
	t.Helper()
	platform := tu.NewFakePlatform()
	platform.EnsurePlaylist(target)
	return NewPlaylistEngine(platform, nil), platform
}

func TestPlaylistEngine_AddReference(t *testing.T) {
	ctx := context.Background()

	tc := []struct {
		name   string
		source models.ResourceReference
		filter models.UploadFilter
		want   string
	}{
		{name: "single video", source: models.VideoRef("dQw4w9WgXcQ"), want: "dQw4w9WgXcQ"},
		{name: "playlist in playlist order", source: models.PlaylistRef(sourcePlaylist), want: "p1,p2,p3"},
		{name: "channel uploads oldest first", source: models.ChannelRef(channelA), filter: models.FilterAll, want: "a1,a2,a3"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			engine, platform := newEngine(t)
			platform.EnsurePlaylist(sourcePlaylist, "p1", "p2", "p3")
			platform.SetUploads(channelA, newest, "a3", "a2", "a1")

			progress := make(chan ProgressUpdate, 20)
			res, err := engine.AddReference(ctx, progress, tt.source, target, tt.filter)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := joined(platform.VideoIDs(target)); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
			if res.Added != res.Total || len(res.Failed) != 0 {
				t.Errorf("unexpected result %+v", res)
			}
			if len(progress) == 0 {
				t.Error("expected progress updates")
			}
		})
	}

	t.Run("collects single failures and keeps going", func(t *testing.T) {
		engine, platform := newEngine(t)
		platform.EnsurePlaylist(sourcePlaylist, "p1", "p2", "p3")
		platform.AddErr = func(_, videoID string, _ int) error {
			if videoID == "p2" {
				return shared.ErrNotFound
			}
			return nil
		}

		res, err := engine.AddReference(ctx, nil, models.PlaylistRef(sourcePlaylist), target, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Added != 2 || len(res.Failed) != 1 || res.Failed[0].VideoID != "p2" {
			t.Errorf("unexpected result %+v", res)
		}
	})

	t.Run("stops on quota", func(t *testing.T) {
		engine, platform := newEngine(t)
		platform.EnsurePlaylist(sourcePlaylist, "p1", "p2", "p3")
		platform.AddErr = func(_, _ string, call int) error {
			if call == 2 {
				return shared.ErrQuotaExceeded
			}
			return nil
		}

		res, err := engine.AddReference(ctx, nil, models.PlaylistRef(sourcePlaylist), target, "")
		if !errors.Is(err, shared.ErrQuotaExceeded) {
			t.Fatalf("expected ErrQuotaExceeded, got %v", err)
		}
		if res.Added != 1 || platform.AddCalls != 2 {
			t.Errorf("expected to stop after the quota error, got %d added in %d calls", res.Added, platform.AddCalls)
		}
	})

	t.Run("missing target playlist", func(t *testing.T) {
		engine, _ := newEngine(t)
		_, err := engine.AddReference(ctx, nil, models.VideoRef("dQw4w9WgXcQ"), "PLmissing", "")
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("no platform", func(t *testing.T) {
		_, err := NewPlaylistEngine(nil, nil).AddReference(ctx, nil, models.VideoRef("dQw4w9WgXcQ"), target, "")
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}

func TestPlaylistEngine_Trim(t *testing.T) {
	ctx := context.Background()

	t.Run("removes leading entries", func(t *testing.T) {
		engine, platform := newEngine(t)
		platform.EnsurePlaylist("PLtrim", "t1", "t2", "t3", "t4")

		n, err := engine.Trim(ctx, nil, "PLtrim", 2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != 2 {
			t.Errorf("expected 2 removed, got %d", n)
		}
		if got := joined(platform.VideoIDs("PLtrim")); got != "t3,t4" {
			t.Errorf("expected t3,t4 left, got %s", got)
		}
	})

	t.Run("rejects an index below one", func(t *testing.T) {
		engine, _ := newEngine(t)
		if _, err := engine.Trim(ctx, nil, target, 0); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestPlaylistEngine_Subscribe(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*PlaylistEngine, *tu.FakePlatform, *repositories.SubscriptionRepository) {
		engine, platform := newEngine(t)
		platform.Handles["SomeCreator"] = channelA
		platform.Titles[channelA] = "Some Creator"
		platform.SetUploads(channelA, newest, "a2", "a1")
		return engine, platform, repositories.NewSubscriptionRepository(setupTestDB(t))
	}

	t.Run("resolves a handle once and seeds the watermark", func(t *testing.T) {
		engine, _, store := setup(t)

		sub, err := engine.Subscribe(ctx, store, "https://www.youtube.com/@SomeCreator", target, SubscribeOpts{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sub.Channel() != models.ChannelRef(channelA) {
			t.Errorf("expected canonical channel %s, got %s", channelA, sub.Channel())
		}
		if sub.Name() != "Some Creator" {
			t.Errorf("expected name from channel title, got %q", sub.Name())
		}

		stored, err := store.Get(sub.ID())
		if err != nil {
			t.Fatalf("failed to reload: %v", err)
		}
		if stored.Watermark().String() != upload("a2", 0).Watermark().String() {
			t.Errorf("expected watermark at the newest upload, got %s", stored.Watermark())
		}
	})

	t.Run("all videos starts at epoch zero", func(t *testing.T) {
		engine, _, store := setup(t)

		sub, err := engine.Subscribe(ctx, store, channelA, "https://www.youtube.com/playlist?list="+target, SubscribeOpts{AllVideos: true, Name: "custom"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !sub.Watermark().IsZero() {
			t.Errorf("expected epoch zero, got %s", sub.Watermark())
		}
		if sub.Name() != "custom" {
			t.Errorf("expected custom name, got %q", sub.Name())
		}
	})

	t.Run("rejects mismatched references", func(t *testing.T) {
		engine, _, store := setup(t)

		if _, err := engine.Subscribe(ctx, store, target, target, SubscribeOpts{}); !errors.Is(err, shared.ErrInvalidReference) {
			t.Errorf("expected ErrInvalidReference for a playlist as channel, got %v", err)
		}
		if _, err := engine.Subscribe(ctx, store, channelA, channelA, SubscribeOpts{}); !errors.Is(err, shared.ErrInvalidReference) {
			t.Errorf("expected ErrInvalidReference for a channel as target, got %v", err)
		}
	})

	t.Run("unknown handle", func(t *testing.T) {
		engine, _, store := setup(t)
		if _, err := engine.Subscribe(ctx, store, "@nobody123", target, SubscribeOpts{}); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("duplicate subscription", func(t *testing.T) {
		engine, _, store := setup(t)
		if _, err := engine.Subscribe(ctx, store, channelA, target, SubscribeOpts{}); err != nil {
			t.Fatal(err)
		}
		if _, err := engine.Subscribe(ctx, store, "@SomeCreator", target, SubscribeOpts{}); !errors.Is(err, shared.ErrDuplicateSubscription) {
			t.Errorf("expected ErrDuplicateSubscription, got %v", err)
		}
	})
}

var _ services.Platform = (*tu.FakePlatform)(nil)

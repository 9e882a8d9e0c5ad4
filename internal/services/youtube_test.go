package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/ytpa/internal/models"
	"github.com/desertthunder/ytpa/internal/retry"
	"github.com/desertthunder/ytpa/internal/shared"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const testChannel = "UC38IQsAvIsxxjztdMZQtwHA"

func newTestService(t *testing.T, h http.Handler) *YouTubeService {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	policy := retry.Policy{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Multiplier: 1}
	svc, err := NewYouTubeService(context.Background(), Options{Retry: policy},
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("NewYouTubeService: %v", err)
	}
	return svc
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func writeAPIError(w http.ResponseWriter, code int, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":{"code":%d,"message":"%s","errors":[{"reason":"%s","message":"%s"}]}}`, code, reason, reason, reason)
}

// item builds a playlistItems.list entry published n hours after a fixed base time.
func item(id, videoID string, n int) map[string]any {
	published := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(n) * time.Hour).Format(time.RFC3339)
	return map[string]any{
		"id": id,
		"snippet": map[string]any{
			"title":       "video " + videoID,
			"publishedAt": published,
			"resourceId":  map[string]any{"kind": "youtube#video", "videoId": videoID},
		},
		"contentDetails": map[string]any{"videoId": videoID, "videoPublishedAt": published},
	}
}

// pagedPlaylist serves pages keyed by page token and counts requests.
func pagedPlaylist(t *testing.T, wantPlaylist string, pages map[string][]map[string]any, next map[string]string, hits *atomic.Int32) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/youtube/v3/playlistItems" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("playlistId"); got != wantPlaylist {
			t.Errorf("expected playlistId %s, got %s", wantPlaylist, got)
		}
		hits.Add(1)
		token := r.URL.Query().Get("pageToken")
		resp := map[string]any{"items": pages[token]}
		if n := next[token]; n != "" {
			resp["nextPageToken"] = n
		}
		writeJSON(t, w, resp)
	})
}

func TestYouTubeService(t *testing.T) {
	ctx := context.Background()

	t.Run("LookupChannelIDByHandle", func(t *testing.T) {
		t.Run("returns the channel ID", func(t *testing.T) {
			svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if got := r.URL.Query().Get("forHandle"); got != "@SomeCreator" {
					t.Errorf("expected forHandle @SomeCreator, got %s", got)
				}
				writeJSON(t, w, map[string]any{"items": []map[string]any{{"id": testChannel}}})
			}))

			id, err := svc.LookupChannelIDByHandle(ctx, "SomeCreator")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if id != testChannel {
				t.Errorf("expected %s, got %s", testChannel, id)
			}
		})

		t.Run("reports unknown handles as not found", func(t *testing.T) {
			svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(t, w, map[string]any{"items": []any{}})
			}))

			if _, err := svc.LookupChannelIDByHandle(ctx, "@nobody"); !errors.Is(err, shared.ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	})

	t.Run("ChannelTitle", func(t *testing.T) {
		svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, map[string]any{"items": []map[string]any{{"id": testChannel, "snippet": map[string]any{"title": "Some Creator"}}}})
		}))

		title, err := svc.ChannelTitle(ctx, testChannel)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if title != "Some Creator" {
			t.Errorf("expected title Some Creator, got %s", title)
		}
	})

	t.Run("ListUploads", func(t *testing.T) {
		pages := map[string][]map[string]any{
			"":   {item("i3", "video3aaaaa", 3), item("i2", "video2aaaaa", 2)},
			"p2": {item("i1", "video1aaaaa", 1)},
		}
		next := map[string]string{"": "p2"}

		t.Run("walks every page newest first", func(t *testing.T) {
			var hits atomic.Int32
			svc := newTestService(t, pagedPlaylist(t, "UU38IQsAvIsxxjztdMZQtwHA", pages, next, &hits))

			var got []string
			for c, err := range svc.ListUploads(ctx, testChannel, models.FilterAll) {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				got = append(got, c.VideoID)
			}

			want := []string{"video3aaaaa", "video2aaaaa", "video1aaaaa"}
			if strings.Join(got, ",") != strings.Join(want, ",") {
				t.Errorf("expected %v, got %v", want, got)
			}
			if hits.Load() != 2 {
				t.Errorf("expected 2 page requests, got %d", hits.Load())
			}
		})

		t.Run("stops requesting pages when the consumer stops", func(t *testing.T) {
			var hits atomic.Int32
			svc := newTestService(t, pagedPlaylist(t, "UU38IQsAvIsxxjztdMZQtwHA", pages, next, &hits))

			for range svc.ListUploads(ctx, testChannel, models.FilterAll) {
				break
			}
			if hits.Load() != 1 {
				t.Errorf("expected 1 page request, got %d", hits.Load())
			}
		})

		t.Run("uses the filtered uploads playlist", func(t *testing.T) {
			var hits atomic.Int32
			svc := newTestService(t, pagedPlaylist(t, "UUSH38IQsAvIsxxjztdMZQtwHA", map[string][]map[string]any{}, nil, &hits))

			for _, err := range svc.ListUploads(ctx, testChannel, models.FilterShorts) {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			}
			if hits.Load() != 1 {
				t.Errorf("expected 1 request, got %d", hits.Load())
			}
		})

		t.Run("parses publish times", func(t *testing.T) {
			var hits atomic.Int32
			svc := newTestService(t, pagedPlaylist(t, "UU38IQsAvIsxxjztdMZQtwHA", pages, next, &hits))

			for c, err := range svc.ListUploads(ctx, testChannel, models.FilterAll) {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				want := time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC)
				if !c.PublishedAt.Equal(want) {
					t.Errorf("expected %s, got %s", want, c.PublishedAt)
				}
				break
			}
		})

		t.Run("skips uploads without a publish time", func(t *testing.T) {
			undated := item("i9", "privateaaaa", 9)
			delete(undated, "contentDetails")
			delete(undated["snippet"].(map[string]any), "publishedAt")
			withUndated := map[string][]map[string]any{
				"": {undated, item("i2", "video2aaaaa", 2)},
			}
			var hits atomic.Int32
			svc := newTestService(t, pagedPlaylist(t, "UU38IQsAvIsxxjztdMZQtwHA", withUndated, nil, &hits))

			var got []string
			for c, err := range svc.ListUploads(ctx, testChannel, models.FilterAll) {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				got = append(got, c.VideoID)
			}
			if strings.Join(got, ",") != "video2aaaaa" {
				t.Errorf("expected only video2aaaaa, got %v", got)
			}
		})

		t.Run("rejects channel IDs without a UC prefix", func(t *testing.T) {
			svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Error("no request expected")
			}))

			for _, err := range svc.ListUploads(ctx, "XX38IQsAvIsxxjztdMZQtwHA", models.FilterAll) {
				if err == nil {
					t.Fatal("expected an error")
				}
			}
		})
	})

	t.Run("AddItem", func(t *testing.T) {
		svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("expected POST, got %s", r.Method)
			}
			body, _ := io.ReadAll(r.Body)
			var got struct {
				Snippet struct {
					PlaylistID string `json:"playlistId"`
					ResourceID struct {
						VideoID string `json:"videoId"`
					} `json:"resourceId"`
				} `json:"snippet"`
			}
			if err := json.Unmarshal(body, &got); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if got.Snippet.PlaylistID != "PLtarget" || got.Snippet.ResourceID.VideoID != "dQw4w9WgXcQ" {
				t.Errorf("unexpected body %s", body)
			}
			writeJSON(t, w, map[string]any{"id": "new-item"})
		}))

		if err := svc.AddItem(ctx, "PLtarget", "dQw4w9WgXcQ"); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("RemoveItemsUpTo", func(t *testing.T) {
		newPlaylist := func(t *testing.T, deleted *[]string) *YouTubeService {
			return newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				switch r.Method {
				case http.MethodGet:
					pages := map[string][]map[string]any{
						"":   {item("i1", "video1aaaaa", 1), item("i2", "video2aaaaa", 2)},
						"p2": {item("i3", "video3aaaaa", 3), item("i4", "video4aaaaa", 4)},
					}
					resp := map[string]any{"items": pages[r.URL.Query().Get("pageToken")]}
					if r.URL.Query().Get("pageToken") == "" {
						resp["nextPageToken"] = "p2"
					}
					writeJSON(t, w, resp)
				case http.MethodDelete:
					*deleted = append(*deleted, r.URL.Query().Get("id"))
					w.WriteHeader(http.StatusNoContent)
				}
			}))
		}

		t.Run("deletes the leading entries", func(t *testing.T) {
			var deleted []string
			svc := newPlaylist(t, &deleted)

			n, err := svc.RemoveItemsUpTo(ctx, "PLtarget", 3)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if n != 3 {
				t.Errorf("expected 3 removed, got %d", n)
			}
			if strings.Join(deleted, ",") != "i1,i2,i3" {
				t.Errorf("unexpected deletes %v", deleted)
			}
		})

		t.Run("stops at the end of a short playlist", func(t *testing.T) {
			var deleted []string
			svc := newPlaylist(t, &deleted)

			n, err := svc.RemoveItemsUpTo(ctx, "PLtarget", 10)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if n != 4 {
				t.Errorf("expected 4 removed, got %d", n)
			}
		})

		t.Run("rejects an index below one", func(t *testing.T) {
			var deleted []string
			svc := newPlaylist(t, &deleted)

			if _, err := svc.RemoveItemsUpTo(ctx, "PLtarget", 0); !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
			if len(deleted) != 0 {
				t.Errorf("expected no deletes, got %v", deleted)
			}
		})
	})

	t.Run("VerifyPlaylist", func(t *testing.T) {
		svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeAPIError(w, http.StatusNotFound, "playlistNotFound")
		}))

		if err := svc.VerifyPlaylist(ctx, "PLmissing"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Retries", func(t *testing.T) {
		t.Run("quota errors are not retried", func(t *testing.T) {
			var hits atomic.Int32
			svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				writeAPIError(w, http.StatusForbidden, "quotaExceeded")
			}))

			err := svc.AddItem(ctx, "PLtarget", "dQw4w9WgXcQ")
			if !errors.Is(err, shared.ErrQuotaExceeded) {
				t.Errorf("expected ErrQuotaExceeded, got %v", err)
			}
			if hits.Load() != 1 {
				t.Errorf("expected 1 request, got %d", hits.Load())
			}
		})

		t.Run("server errors are retried then surfaced as transient", func(t *testing.T) {
			var hits atomic.Int32
			svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				writeAPIError(w, http.StatusServiceUnavailable, "backendError")
			}))

			err := svc.AddItem(ctx, "PLtarget", "dQw4w9WgXcQ")
			if !errors.Is(err, shared.ErrTransientFetch) {
				t.Errorf("expected ErrTransientFetch, got %v", err)
			}
			if hits.Load() != 3 {
				t.Errorf("expected 3 requests, got %d", hits.Load())
			}
		})

		t.Run("a recovered call succeeds", func(t *testing.T) {
			var hits atomic.Int32
			svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if hits.Add(1) == 1 {
					writeAPIError(w, http.StatusInternalServerError, "backendError")
					return
				}
				writeJSON(t, w, map[string]any{"id": "new-item"})
			}))

			if err := svc.AddItem(ctx, "PLtarget", "dQw4w9WgXcQ"); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	})
}

func TestClassify(t *testing.T) {
	apiErr := func(code int, reason, message string) error {
		return &googleapi.Error{Code: code, Message: message, Errors: []googleapi.ErrorItem{{Reason: reason}}}
	}

	tc := []struct {
		name string
		err  error
		want error
	}{
		{name: "daily quota", err: apiErr(403, "quotaExceeded", ""), want: shared.ErrQuotaExceeded},
		{name: "daily limit", err: apiErr(403, "dailyLimitExceeded", ""), want: shared.ErrQuotaExceeded},
		{name: "rate limited", err: apiErr(403, "rateLimitExceeded", ""), want: shared.ErrTransientFetch},
		{name: "too many requests", err: apiErr(429, "", ""), want: shared.ErrTransientFetch},
		{name: "conflict", err: apiErr(409, "SERVICE_UNAVAILABLE", ""), want: shared.ErrTransientFetch},
		{name: "backend error", err: apiErr(500, "backendError", ""), want: shared.ErrTransientFetch},
		{name: "not found", err: apiErr(404, "playlistNotFound", ""), want: shared.ErrNotFound},
		{name: "invalid value reason", err: apiErr(400, "invalidValue", ""), want: shared.ErrNotFound},
		{name: "invalid value message", err: apiErr(400, "badRequest", "Invalid Value"), want: shared.ErrNotFound},
		{name: "unauthorized", err: apiErr(401, "authError", ""), want: shared.ErrNotAuthenticated},
		{name: "forbidden", err: apiErr(403, "insufficientPermissions", ""), want: shared.ErrNotAuthenticated},
		{name: "network", err: errors.New("connection refused"), want: shared.ErrTransientFetch},
		{name: "canceled", err: context.Canceled, want: context.Canceled},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := classify("op", tt.err)
			if !errors.Is(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}

	t.Run("nil stays nil", func(t *testing.T) {
		if classify("op", nil) != nil {
			t.Error("expected nil")
		}
	})

	t.Run("unmapped client errors keep no sentinel", func(t *testing.T) {
		got := classify("op", apiErr(400, "badRequest", "missing part"))
		for _, s := range []error{shared.ErrTransientFetch, shared.ErrNotFound, shared.ErrQuotaExceeded} {
			if errors.Is(got, s) {
				t.Errorf("did not expect %v in %v", s, got)
			}
		}
	})
}

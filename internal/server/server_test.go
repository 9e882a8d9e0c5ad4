package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/ytpa/internal/shared"
	"golang.org/x/oauth2"
)

func tokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}
		if r.Form.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"error":"invalid_grant"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"access_token":"access-123","token_type":"Bearer","refresh_token":"refresh-456","expires_in":3600}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:8080" + CallbackPath,
		Endpoint:     oauth2.Endpoint{AuthURL: "https://accounts.example.com/auth", TokenURL: tokenURL},
		Scopes:       []string{"https://www.googleapis.com/auth/youtube.force-ssl"},
	}
}

func TestOAuthHandler(t *testing.T) {
	ts := tokenServer(t)

	t.Run("AuthCodeURL requests offline access", func(t *testing.T) {
		h := NewOAuthHandler(testConfig(ts.URL), "state-1")
		u, err := url.Parse(h.AuthCodeURL())
		if err != nil {
			t.Fatalf("invalid auth URL: %v", err)
		}
		q := u.Query()
		if q.Get("state") != "state-1" || q.Get("access_type") != "offline" || q.Get("prompt") != "consent" {
			t.Errorf("unexpected auth URL query: %v", q)
		}
	})

	tc := []struct {
		name       string
		query      string
		wantStatus int
		wantToken  bool
	}{
		{name: "valid callback", query: "state=s&code=good-code", wantStatus: http.StatusOK, wantToken: true},
		{name: "state mismatch", query: "state=other&code=good-code", wantStatus: http.StatusBadRequest},
		{name: "user denied", query: "state=s&error=access_denied", wantStatus: http.StatusBadRequest},
		{name: "error description is escaped", query: "state=s&error=x&error_description=%3Cscript%3E", wantStatus: http.StatusBadRequest},
		{name: "exchange fails", query: "state=s&code=bad-code", wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			h := NewOAuthHandler(testConfig(ts.URL), "s")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, CallbackPath+"?"+tt.query, nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}

			result := <-h.Result()
			if tt.wantToken {
				if result.Error() != nil {
					t.Fatalf("unexpected error: %v", result.Error())
				}
				if result.Token.AccessToken != "access-123" || result.Token.RefreshToken != "refresh-456" {
					t.Errorf("unexpected token %+v", result.Token)
				}
				if !strings.Contains(rec.Body.String(), "YouTube access granted") {
					t.Errorf("expected success page, got %s", rec.Body.String())
				}
				return
			}
			if !errors.Is(result.Error(), shared.ErrAuthFailed) {
				t.Errorf("expected ErrAuthFailed, got %v", result.Error())
			}
			if strings.Contains(rec.Body.String(), "<script>") {
				t.Errorf("query text rendered unescaped: %s", rec.Body.String())
			}
		})
	}

	t.Run("second callback is rejected", func(t *testing.T) {
		h := NewOAuthHandler(testConfig(ts.URL), "s")
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, CallbackPath+"?state=s&code=good-code", nil))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, CallbackPath+"?state=s&code=good-code", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 on replay, got %d", rec.Code)
		}
	})
}

func TestBasicRouter(t *testing.T) {
	t.Run("filters methods", func(t *testing.T) {
		r := NewBasicRouter()
		r.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			io.WriteString(w, "pong")
		}))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if rec.Body.String() != "pong" {
			t.Errorf("expected pong, got %q", rec.Body.String())
		}

		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ping", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("applies middleware in order", func(t *testing.T) {
		var order []string
		tag := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, req)
				})
			}
		}

		r := NewBasicRouter()
		r.Use(tag("first"), tag("second"))
		r.Handle(http.MethodGet, "/", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			order = append(order, "handler")
		}))
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		if got := strings.Join(order, ","); got != "first,second,handler" {
			t.Errorf("expected first,second,handler, got %s", got)
		}
	})

	t.Run("NoStore", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NoStore(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, CallbackPath, nil))
		if rec.Header().Get("Cache-Control") != "no-store" || rec.Header().Get("Pragma") != "no-cache" {
			t.Errorf("expected no-store headers, got %v", rec.Header())
		}
	})

	t.Run("request logger keeps the status", func(t *testing.T) {
		h := RequestLogger(shared.NewLogger(io.Discard))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusTeapot {
			t.Errorf("expected 418, got %d", rec.Code)
		}
	})
}

func TestCallbackServer(t *testing.T) {
	ts := tokenServer(t)

	t.Run("delivers the token", func(t *testing.T) {
		h := NewOAuthHandler(testConfig(ts.URL), "s")
		srv, err := StartCallbackServer("127.0.0.1:0", h, nil)
		if err != nil {
			t.Fatalf("failed to start: %v", err)
		}
		defer srv.Shutdown(context.Background())

		resp, err := http.Get(srv.URL() + "?state=s&code=good-code")
		if err != nil {
			t.Fatalf("callback request failed: %v", err)
		}
		resp.Body.Close()
		if cc := resp.Header.Get("Cache-Control"); cc != "no-store" {
			t.Errorf("expected Cache-Control no-store, got %q", cc)
		}

		token, err := srv.Wait(context.Background(), 5*time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if token.AccessToken != "access-123" {
			t.Errorf("unexpected token %+v", token)
		}
	})

	t.Run("times out", func(t *testing.T) {
		srv, err := StartCallbackServer("127.0.0.1:0", NewOAuthHandler(testConfig(ts.URL), "s"), nil)
		if err != nil {
			t.Fatalf("failed to start: %v", err)
		}
		defer srv.Shutdown(context.Background())

		if _, err := srv.Wait(context.Background(), 10*time.Millisecond); !errors.Is(err, shared.ErrTimeout) {
			t.Errorf("expected ErrTimeout, got %v", err)
		}
	})

	t.Run("port in use", func(t *testing.T) {
		first, err := StartCallbackServer("127.0.0.1:0", NewOAuthHandler(testConfig(ts.URL), "s"), nil)
		if err != nil {
			t.Fatalf("failed to start: %v", err)
		}
		defer first.Shutdown(context.Background())

		if _, err := StartCallbackServer(first.Addr(), NewOAuthHandler(testConfig(ts.URL), "s"), nil); err == nil {
			t.Error("expected bind error")
		}
	})
}

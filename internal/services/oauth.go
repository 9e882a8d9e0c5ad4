package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/desertthunder/ytpa/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// OAuthConfig reads a Google "installed app" client secret and scopes it for playlist writes.
func OAuthConfig(clientSecretPath, redirectURL string) (*oauth2.Config, error) {
	data, err := shared.VerifyAndReadFile(clientSecretPath)
	if err != nil {
		return nil, fmt.Errorf("%w: client secret: %w", shared.ErrMissingCredentials, err)
	}

	cfg, err := google.ConfigFromJSON(data, youtube.YoutubeForceSslScope)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrInvalidCredentials, err)
	}
	if redirectURL != "" {
		cfg.RedirectURL = redirectURL
	}
	return cfg, nil
}

// LoadToken reads a token written by [SaveToken].
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: no token at %s", shared.ErrNotAuthenticated, path)
	} else if err != nil {
		return nil, err
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("%w: parse token: %w", shared.ErrInvalidCredentials, err)
	}
	return &tok, nil
}

// SaveToken writes tok to path with owner-only permissions.
func SaveToken(path string, tok *oauth2.Token) error {
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return err
	}
	return shared.WriteFileAtomic(path, data, 0o600)
}

// persistingTokenSource writes refreshed tokens back to disk.
type persistingTokenSource struct {
	base oauth2.TokenSource
	path string

	mu   sync.Mutex
	last string
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrTokenExpired, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		if err := SaveToken(s.path, tok); err != nil {
			return nil, err
		}
		s.last = tok.AccessToken
	}
	return tok, nil
}

// TokenSource wraps cfg's refreshing source so each new token is saved to path.
func TokenSource(ctx context.Context, cfg *oauth2.Config, tok *oauth2.Token, path string) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(tok, &persistingTokenSource{
		base: cfg.TokenSource(ctx, tok),
		path: path,
		last: tok.AccessToken,
	})
}

// ClientOptions picks credentials for [NewYouTubeService]: an OAuth token when one is saved,
// otherwise the API key. The bool reports whether the result can write playlists.
func ClientOptions(ctx context.Context, creds shared.YouTubeConfig) ([]option.ClientOption, bool, error) {
	tok, tokErr := LoadToken(creds.TokenPath)
	if tokErr == nil {
		cfg, err := OAuthConfig(creds.ClientSecretPath, "")
		if err != nil {
			return nil, false, err
		}
		return []option.ClientOption{option.WithTokenSource(TokenSource(ctx, cfg, tok, creds.TokenPath))}, true, nil
	}

	if creds.APIKey != "" {
		return []option.ClientOption{option.WithAPIKey(creds.APIKey)}, false, nil
	}

	if errors.Is(tokErr, shared.ErrNotAuthenticated) {
		return nil, false, fmt.Errorf("%w: run `ytpa auth login` or set %s", shared.ErrMissingCredentials, shared.EnvAPIKey)
	}
	return nil, false, tokErr
}

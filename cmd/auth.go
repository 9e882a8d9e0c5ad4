package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/desertthunder/ytpa/internal/server"
	"github.com/desertthunder/ytpa/internal/services"
	"github.com/desertthunder/ytpa/internal/shared"
	"github.com/urfave/cli/v3"
)

// AuthLogin runs the installed-app OAuth flow and saves the token to credentials.youtube.token_path.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	creds := r.config.Credentials.YouTube
	addr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)

	cfg, err := services.OAuthConfig(creds.ClientSecretPath, fmt.Sprintf("http://%s%s", addr, server.CallbackPath))
	if err != nil {
		return err
	}

	state, err := shared.GenerateState()
	if err != nil {
		return fmt.Errorf("failed to generate state token: %w", err)
	}

	handler := server.NewOAuthHandler(cfg, state)
	srv, err := server.StartCallbackServer(addr, handler, r.logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down callback server", "error", err)
		}
	}()
	if r.config.Server.Port == 0 {
		cfg.RedirectURL = srv.URL()
	}
	r.logger.Info("waiting for OAuth callback", "url", srv.URL())

	authURL := handler.AuthCodeURL()
	if cmd.Bool("no-browser") {
		r.writePlain("Open this URL in your browser:\n%s\n\n", authURL)
	} else {
		r.writePlain("→ Opening browser for Google authorization...\n")
		if err := shared.OpenBrowser(authURL); err != nil {
			r.logger.Warnf("failed to open browser automatically %v", err)
			r.writePlainln("⚠ Could not open browser automatically.")
			r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
		}
	}

	timeout := cmd.Duration("timeout")
	r.writePlain("→ Waiting for authorization (%s timeout)...\n", timeout)

	token, err := srv.Wait(ctx, timeout)
	if err != nil {
		return fmt.Errorf("authorization failed: %w", err)
	}
	if token.RefreshToken == "" {
		r.logger.Warn("no refresh token returned; the token stops working once it expires")
	}

	if err := services.SaveToken(creds.TokenPath, token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	r.writePlain("✓ Authorization successful\nToken saved to: %s\n", creds.TokenPath)
	return nil
}

type authStatus struct {
	ClientSecret   string     `json:"client_secret"`
	ClientSecretOK bool       `json:"client_secret_found"`
	TokenPath      string     `json:"token_path"`
	Token          bool       `json:"token"`
	Refreshable    bool       `json:"refreshable"`
	Expiry         *time.Time `json:"expiry,omitempty"`
	APIKey         bool       `json:"api_key"`
	ClientReady    bool       `json:"client_ready"`
	CanWrite       bool       `json:"can_write"`
	Problem        string     `json:"problem,omitempty"`
}

// AuthStatus reports which credentials are configured and what they allow.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	creds := r.config.Credentials.YouTube

	status := authStatus{
		ClientSecret: creds.ClientSecretPath,
		TokenPath:    creds.TokenPath,
		APIKey:       creds.APIKey != "",
		ClientReady:  r.platform != nil,
		CanWrite:     r.platform != nil && r.canWrite,
	}
	if _, err := os.Stat(creds.ClientSecretPath); err == nil {
		status.ClientSecretOK = true
	}

	tok, err := services.LoadToken(creds.TokenPath)
	switch {
	case err == nil:
		status.Token = true
		status.Refreshable = tok.RefreshToken != ""
		if !tok.Expiry.IsZero() {
			expiry := tok.Expiry
			status.Expiry = &expiry
		}
	case !errors.Is(err, shared.ErrNotAuthenticated):
		status.Problem = err.Error()
	}
	if status.Problem == "" && r.platformErr != nil {
		status.Problem = r.platformErr.Error()
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, true)
	}

	r.writePlainHeader("YouTube credentials")
	r.writePlain("Client secret: %s %s\n", creds.ClientSecretPath, mark(status.ClientSecretOK))
	r.writePlain("OAuth token:   %s %s\n", creds.TokenPath, mark(status.Token))
	if status.Token {
		r.writePlain("  Refreshable: %s\n", mark(status.Refreshable))
		if status.Expiry != nil {
			r.writePlain("  Expires:     %s\n", status.Expiry.Local().Format(time.DateTime))
		}
	}
	r.writePlain("API key:       %s\n", mark(status.APIKey))

	switch {
	case status.CanWrite:
		r.writePlain("\n✓ Ready: playlists can be read and changed\n")
	case status.ClientReady:
		r.writePlain("\n⚠ Read-only: run `ytpa auth login` to add to playlists\n")
	default:
		r.writePlain("\n✗ Not configured: run `ytpa auth login` or set %s\n", shared.EnvAPIKey)
	}
	if status.Problem != "" {
		r.writePlain("Problem: %s\n", status.Problem)
	}
	return nil
}

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}

package server

import (
	"fmt"
	"html/template"
	"net/http"
	"sync"

	"github.com/desertthunder/ytpa/internal/shared"
	"golang.org/x/oauth2"
)

// CallbackPath is the redirect path registered with Google for the installed-app flow.
const CallbackPath = "/oauth2callback"

// OAuthResult contains the result of an OAuth authorization flow.
type OAuthResult struct {
	Token *oauth2.Token
	err   error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// OAuthHandler handles OAuth2 callback requests for authorization code flow.
// It implements [Handler] for registration with a [BasicRouter].
type OAuthHandler struct {
	config      *oauth2.Config
	state       string
	resultChan  chan OAuthResult
	once        sync.Once
	callbackHit bool
	mu          sync.Mutex
}

// NewOAuthHandler creates a new OAuth handler with the given OAuth2 config and state token.
// The state token should be cryptographically random for CSRF protection.
func NewOAuthHandler(config *oauth2.Config, state string) *OAuthHandler {
	return &OAuthHandler{
		config:     config,
		state:      state,
		resultChan: make(chan OAuthResult, 1),
	}
}

// AuthCodeURL is the consent page URL. Offline access and a forced prompt make Google
// return a refresh token even when the app was authorized before.
func (h *OAuthHandler) AuthCodeURL() string {
	return h.config.AuthCodeURL(h.state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{CallbackPath}
}

// ServeHTTP validates state, exchanges the code and reports the outcome on [OAuthHandler.Result].
// The browser gets a page saying whether to go back to the terminal or retry.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	replay := h.callbackHit
	h.callbackHit = true
	h.mu.Unlock()
	if replay {
		renderPage(w, http.StatusBadRequest, "Already authorized", "This callback was already used. Run `ytpa auth login` again if needed.")
		return
	}

	query := r.URL.Query()
	if query.Get("state") != h.state {
		h.Send(OAuthResult{err: fmt.Errorf("%w: invalid state parameter", shared.ErrAuthFailed)})
		renderPage(w, http.StatusBadRequest, "Authorization rejected", "The state parameter did not match this login attempt.")
		return
	}

	code := query.Get("code")
	if code == "" {
		reason := query.Get("error")
		if desc := query.Get("error_description"); desc != "" {
			reason += ": " + desc
		}
		h.Send(OAuthResult{err: fmt.Errorf("%w: %s", shared.ErrAuthFailed, reason)})
		renderPage(w, http.StatusBadRequest, "Authorization failed", "Google returned "+reason+".")
		return
	}

	token, err := h.config.Exchange(r.Context(), code)
	if err != nil {
		h.Send(OAuthResult{err: fmt.Errorf("%w: token exchange failed: %w", shared.ErrAuthFailed, err)})
		renderPage(w, http.StatusInternalServerError, "Token exchange failed", "Check the terminal for details.")
		return
	}

	h.Send(OAuthResult{Token: token})
	renderPage(w, http.StatusOK, "✓ YouTube access granted", "You can close this window and return to the terminal.")
}

// Send delivers result once; later calls are dropped.
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result receives exactly one result and is then closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.resultChan
}

var page = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>ytpa: {{.Heading}}</title>
<style>
body { font-family: system-ui, sans-serif; display: grid; place-items: center; height: 100vh; margin: 0; background: #f9f9f9; }
main { text-align: center; background: #fff; padding: 2rem 3rem; border-top: 4px solid {{.Accent}}; }
h1 { color: {{.Accent}}; }
</style>
</head>
<body><main><h1>{{.Heading}}</h1><p>{{.Message}}</p></main></body>
</html>
`))

// renderPage writes the result page. Message text is escaped; error descriptions come from the query string.
func renderPage(w http.ResponseWriter, status int, heading, message string) {
	accent := "#cc0000"
	if status == http.StatusOK {
		accent = "#2e7d32"
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	page.Execute(w, struct {
		Heading, Message string
		Accent           template.CSS
	}{heading, message, template.CSS(accent)})
}

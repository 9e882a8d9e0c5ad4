// Package resolver turns user input (bare IDs, URLs or @handles) into canonical [models.ResourceReference] values.
//
// Classification is syntactic. Only @handles need the network, through a [HandleLookup], and that lookup
// happens once when a subscription is created so the persisted reference is always a channel ID.
package resolver

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/desertthunder/ytpa/internal/models"
	"github.com/desertthunder/ytpa/internal/shared"
)

var (
	videoID    = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	playlistID = regexp.MustCompile(`^(?:PL|UU|LL|FL|OL|RD)[A-Za-z0-9_-]{10,}$`)
	channelID  = regexp.MustCompile(`^UC[A-Za-z0-9_-]{22}$`)
	handle     = regexp.MustCompile(`^@[\p{L}\p{N}._·-]{3,30}$`)
)

// hosts lists the web hosts accepted in URLs, mapped to whether the host is the youtu.be short link.
var hosts = map[string]bool{
	"youtube.com":       false,
	"www.youtube.com":   false,
	"m.youtube.com":     false,
	"music.youtube.com": false,
	"youtu.be":          true,
}

// videoPaths are the path segments followed by a video ID.
var videoPaths = []string{"shorts", "live", "embed", "v"}

// HandleLookup resolves a channel handle (without "@") to a channel ID.
type HandleLookup interface {
	LookupChannelIDByHandle(ctx context.Context, handle string) (string, error)
}

// Parsed is the result of syntactic classification: either a canonical reference or a handle awaiting lookup.
type Parsed struct {
	Reference models.ResourceReference
	Handle    string
}

// NeedsLookup reports whether the input was a handle.
func (p Parsed) NeedsLookup() bool { return p.Handle != "" }

// Parse classifies input without any network access.
//
// Forms are checked in order: bare video ID, bare playlist ID, bare channel ID, video URL,
// playlist URL, channel URL, then @handle (bare or URL).
func Parse(input string) (Parsed, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return Parsed{}, fmt.Errorf("%w: empty input", shared.ErrInvalidReference)
	}

	switch {
	case videoID.MatchString(s):
		return Parsed{Reference: models.VideoRef(s)}, nil
	case playlistID.MatchString(s):
		return Parsed{Reference: models.PlaylistRef(s)}, nil
	case channelID.MatchString(s):
		return Parsed{Reference: models.ChannelRef(s)}, nil
	case handle.MatchString(s):
		return Parsed{Handle: strings.TrimPrefix(s, "@")}, nil
	}

	if p, ok := parseURL(s); ok {
		return p, nil
	}
	return Parsed{}, fmt.Errorf("%w: %q", shared.ErrInvalidReference, input)
}

func parseURL(s string) (Parsed, bool) {
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return Parsed{}, false
	}
	short, known := hosts[strings.ToLower(u.Hostname())]
	if !known {
		return Parsed{}, false
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if short {
		if len(segments) == 1 && videoID.MatchString(segments[0]) {
			return Parsed{Reference: models.VideoRef(segments[0])}, true
		}
		return Parsed{}, false
	}

	query := u.Query()
	switch {
	case segments[0] == "watch":
		if v := query.Get("v"); videoID.MatchString(v) {
			return Parsed{Reference: models.VideoRef(v)}, true
		}
	case len(segments) == 2 && contains(videoPaths, segments[0]):
		if videoID.MatchString(segments[1]) {
			return Parsed{Reference: models.VideoRef(segments[1])}, true
		}
	case len(segments) >= 2 && segments[0] == "channel":
		if channelID.MatchString(segments[1]) {
			return Parsed{Reference: models.ChannelRef(segments[1])}, true
		}
	case handle.MatchString(segments[0]):
		return Parsed{Handle: strings.TrimPrefix(segments[0], "@")}, true
	}

	// A list parameter names a playlist on any path where no video or channel matched.
	if list := query.Get("list"); playlistID.MatchString(list) {
		return Parsed{Reference: models.PlaylistRef(list)}, true
	}
	return Parsed{}, false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Resolver resolves input to canonical references, looking up handles through lookup.
type Resolver struct {
	lookup HandleLookup
}

// New creates a Resolver. lookup may be nil when handles are not expected.
func New(lookup HandleLookup) *Resolver {
	return &Resolver{lookup: lookup}
}

// Resolve returns the canonical reference for input.
//
// Malformed input fails with [shared.ErrInvalidReference] before any network call.
// Handles that do not exist fail with the lookup's error, normally [shared.ErrNotFound].
func (r *Resolver) Resolve(ctx context.Context, input string) (models.ResourceReference, error) {
	parsed, err := Parse(input)
	if err != nil {
		return models.ResourceReference{}, err
	}
	if !parsed.NeedsLookup() {
		return parsed.Reference, nil
	}

	if r.lookup == nil {
		return models.ResourceReference{}, fmt.Errorf("%w: cannot resolve handle @%s without a YouTube client", shared.ErrServiceUnavailable, parsed.Handle)
	}
	id, err := r.lookup.LookupChannelIDByHandle(ctx, parsed.Handle)
	if err != nil {
		return models.ResourceReference{}, fmt.Errorf("resolve @%s: %w", parsed.Handle, err)
	}
	if !channelID.MatchString(id) {
		return models.ResourceReference{}, fmt.Errorf("%w: lookup for @%s returned %q", shared.ErrNotFound, parsed.Handle, id)
	}
	return models.ChannelRef(id), nil
}

// ResolveKind resolves input and requires the result to be of kind.
func (r *Resolver) ResolveKind(ctx context.Context, input string, kind models.ResourceKind) (models.ResourceReference, error) {
	ref, err := r.Resolve(ctx, input)
	if err != nil {
		return ref, err
	}
	if ref.Kind != kind {
		return models.ResourceReference{}, fmt.Errorf("%w: %q is a %s, expected a %s", shared.ErrInvalidReference, input, ref.Kind, kind)
	}
	return ref, nil
}

package models

import (
	"fmt"
	"strings"
)

// ResourceKind tags a [ResourceReference].
type ResourceKind int

const (
	KindVideo ResourceKind = iota + 1
	KindPlaylist
	KindChannel
)

func (k ResourceKind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindPlaylist:
		return "playlist"
	case KindChannel:
		return "channel"
	default:
		return "unknown"
	}
}

// MarshalText renders the kind by name in JSON and TOML output.
func (k ResourceKind) MarshalText() ([]byte, error) {
	if k < KindVideo || k > KindChannel {
		return nil, fmt.Errorf("unknown resource kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText parses a kind name.
func (k *ResourceKind) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "video":
		*k = KindVideo
	case "playlist":
		*k = KindPlaylist
	case "channel":
		*k = KindChannel
	default:
		return fmt.Errorf("unknown resource kind %q", text)
	}
	return nil
}

// ResourceReference is a canonical platform reference. ID is always a platform ID, never a URL or handle.
type ResourceReference struct {
	Kind ResourceKind `json:"kind"`
	ID   string       `json:"id"`
}

// VideoRef returns a reference to the video with the given ID.
func VideoRef(id string) ResourceReference { return ResourceReference{Kind: KindVideo, ID: id} }

// PlaylistRef returns a reference to the playlist with the given ID.
func PlaylistRef(id string) ResourceReference { return ResourceReference{Kind: KindPlaylist, ID: id} }

// ChannelRef returns a reference to the channel with the given ID.
func ChannelRef(id string) ResourceReference { return ResourceReference{Kind: KindChannel, ID: id} }

// IsZero reports whether r is the empty reference.
func (r ResourceReference) IsZero() bool { return r.Kind == 0 && r.ID == "" }

func (r ResourceReference) String() string {
	return r.Kind.String() + ":" + r.ID
}

// URL returns the canonical web URL of the referenced resource.
func (r ResourceReference) URL() string {
	switch r.Kind {
	case KindVideo:
		return "https://www.youtube.com/watch?v=" + r.ID
	case KindPlaylist:
		return "https://www.youtube.com/playlist?list=" + r.ID
	case KindChannel:
		return "https://www.youtube.com/channel/" + r.ID
	default:
		return ""
	}
}

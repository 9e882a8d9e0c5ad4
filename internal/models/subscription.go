package models

import (
	"encoding/json"
	"fmt"
	"time"
)

var _ Model = (*Subscription)(nil)

// Subscription is a ghost subscription: new uploads of channel are added to targetPlaylist.
//
// The watermark only moves after a batch has been fully delivered to the target playlist.
type Subscription struct {
	record
	name         string
	channel      ResourceReference
	target       ResourceReference
	filter       UploadFilter
	watermark    UploadWatermark
	lastPolledAt *time.Time
}

// NewSubscription creates an unsaved subscription at epoch zero.
func NewSubscription(sequence int, channelID, targetPlaylistID string, filter UploadFilter) *Subscription {
	if filter == "" {
		filter = FilterAll
	}
	return &Subscription{
		record:  newRecord(sequence),
		channel: ChannelRef(channelID),
		target:  PlaylistRef(targetPlaylistID),
		filter:  filter,
	}
}

func (s *Subscription) Name() string                      { return s.name }
func (s *Subscription) SetName(name string)               { s.name = name }
func (s *Subscription) Channel() ResourceReference        { return s.channel }
func (s *Subscription) TargetPlaylist() ResourceReference { return s.target }
func (s *Subscription) Filter() UploadFilter              { return s.filter }
func (s *Subscription) Watermark() UploadWatermark        { return s.watermark }
func (s *Subscription) SetWatermark(w UploadWatermark)    { s.watermark = w }
func (s *Subscription) LastPolledAt() *time.Time          { return s.lastPolledAt }
func (s *Subscription) SetLastPolledAt(t *time.Time)      { s.lastPolledAt = t }

// Label is the display name, falling back to the channel ID.
func (s *Subscription) Label() string {
	if s.name != "" {
		return s.name
	}
	return s.channel.ID
}

// Validate checks the references and filter.
func (s *Subscription) Validate() error {
	if s.id == "" {
		return fmt.Errorf("subscription id is required")
	}
	if s.channel.Kind != KindChannel || s.channel.ID == "" {
		return fmt.Errorf("channel reference is required")
	}
	if s.target.Kind != KindPlaylist || s.target.ID == "" {
		return fmt.Errorf("target playlist reference is required")
	}
	if _, err := s.filter.UploadsPlaylistID(s.channel.ID); err != nil {
		return err
	}
	if _, err := ParseUploadFilter(string(s.filter)); err != nil {
		return err
	}
	return nil
}

type subscriptionJSON struct {
	ID             string            `json:"id"`
	Name           string            `json:"name,omitempty"`
	Channel        ResourceReference `json:"channel"`
	TargetPlaylist ResourceReference `json:"target_playlist"`
	Filter         UploadFilter      `json:"filter"`
	Watermark      *UploadWatermark  `json:"watermark,omitempty"`
	LastPolledAt   *time.Time        `json:"last_polled_at,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// MarshalJSON renders the subscription for `--json` output.
func (s *Subscription) MarshalJSON() ([]byte, error) {
	out := subscriptionJSON{
		ID:             s.id,
		Name:           s.name,
		Channel:        s.channel,
		TargetPlaylist: s.target,
		Filter:         s.filter,
		LastPolledAt:   s.lastPolledAt,
		CreatedAt:      s.createdAt,
	}
	if !s.watermark.IsZero() {
		wm := s.watermark
		out.Watermark = &wm
	}
	return json.Marshal(out)
}

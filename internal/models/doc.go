// Package models defines domain entities and persistence interfaces for ytpa.
//
// The package contains two categories of types:
//
// 1. Value types passed between the resolver, the tracker and the YouTube client
//   - [ResourceReference] : Canonical video, playlist or channel ID tagged with its [ResourceKind]
//   - [UploadCandidate] : One upload seen during a poll
//   - [UploadWatermark] : Last seen upload (timestamp + video ID) of a subscription
//   - [UploadFilter] : Which uploads playlist of a channel is polled
//
// 2. Persistent Entities: Database-backed models with full lifecycle management
//   - [Subscription] : Ghost subscription binding a channel to a target playlist
//   - [PollRun] : History of auto adder polls
//
// All persistent entities implement the Model interface providing ID generation, timestamps, validation, and soft delete support.
// The Repository[T] interface defines standard CRUD operations for database access.
package models

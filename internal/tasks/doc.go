// Package tasks runs playlist operations against YouTube with non-blocking progress reporting.
//
// # Manual Tools
//
// [PlaylistEngine] backs the one-shot commands:
//
//  1. [PlaylistEngine.AddReference] : add a video, a whole playlist, or a channel's uploads (oldest first)
//     to a target playlist. Single failures are collected; a quota error stops the run.
//
//  2. [PlaylistEngine.Trim] : remove the first N entries of a playlist.
//
//  3. [PlaylistEngine.Subscribe] : resolve a channel and target and store a ghost subscription, seeding
//     the watermark with the newest upload unless every past upload is wanted.
//
// # Auto Adder
//
// [AutoAdder] polls every subscription with a bounded worker pool. Each poll holds a per-subscription
// lock from [KeyedMutex] across fetch, deliver and advance, so two polls of the same subscription
// behave like two sequential ones. The watermark is advanced only after the whole batch has been
// added; on any failure the next poll rebuilds the same batch.
//
// A quota error cancels the cycle's context with [shared.ErrQuotaExceeded] as the cause. Polls that
// have not started are recorded as skipped and picked up by the next cycle.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
package tasks

// Package services talks to the YouTube Data API v3.
//
// [YouTubeService] implements [Platform] on top of google.golang.org/api/youtube/v3. Every call
// waits on a client-side rate limiter and runs under the retry policy from internal/retry.
//
// # Listing
//
// Uploads and playlist items are exposed as iter.Seq2 sequences. A page of 50 items is fetched
// only when the consumer asks for the first item on it, so a caller that stops early (the upload
// tracker stopping at its watermark) never pays for older pages.
//
// The uploads playlist is derived from the channel ID ("UC..." to "UU...", "UULF...", "UULV..."
// or "UUSH..." depending on the filter), so polling costs no channels.list call.
//
// # Error Handling
//
// API failures are mapped to sentinels from the shared package:
//   - [shared.ErrQuotaExceeded] : 403 quotaExceeded / dailyLimitExceeded, never retried
//   - [shared.ErrTransientFetch] : rate limits, 409, 5xx and network errors, retried with backoff
//   - [shared.ErrNotFound] : 404, or 400 for a value the API rejects as invalid
//   - [shared.ErrNotAuthenticated] : 401 and other 403s
//
// # Authentication
//
// Writes need an OAuth token (scope youtube.force-ssl) obtained with `ytpa auth login`. Refreshed
// tokens are written back to the token file. Read-only use works with an API key.
package services

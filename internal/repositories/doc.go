// Package repositories implements SQLite persistence for subscriptions and their poll history.
//
// Each repository handles CRUD operations with atomic sequence generation for human-readable ordering.
// All repositories support soft deletes via deleted_at timestamps and exclude deleted records from queries by default.
//
// Key Implementations:
//   - [SubscriptionRepository] : ghost subscriptions and their upload watermarks
//   - [PollRunRepository] : one row per poll, used by `ytpa history`
//
// Watermarks never move backwards. [SubscriptionRepository.AdvanceWatermark] reads and compares the stored
// watermark inside the same transaction that writes the new one.
package repositories

package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/ytpa/internal/models"
	"github.com/desertthunder/ytpa/internal/shared"
)

const subscriptionColumns = `
	id, sequence, name, channel_id, target_playlist_id, filter,
	watermark_published_at, watermark_video_id, last_polled_at,
	created_at, updated_at, deleted_at
`

// SubscriptionRepository implements models.Repository[*models.Subscription].
//
// Watermarks are only written through [SubscriptionRepository.AdvanceWatermark], which refuses to move them backwards.
type SubscriptionRepository struct {
	db *sql.DB
}

// NewSubscriptionRepository creates a new SubscriptionRepository with the given database connection
func NewSubscriptionRepository(db *sql.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// Create inserts a new subscription with generated ID and sequence.
//
// An active subscription for the same channel, target and filter is [shared.ErrDuplicateSubscription].
func (r *SubscriptionRepository) Create(sub *models.Subscription) error {
	sequence, err := NextSequence(r.db, "subscriptions")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	sub.SetSequence(sequence)
	sub.SetID(shared.GenerateID())

	if err := sub.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	wm := sub.Watermark()
	query := `INSERT INTO subscriptions (` + subscriptionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`

	_, err = r.db.Exec(query,
		sub.ID(),
		sequence,
		sub.Name(),
		sub.Channel().ID,
		sub.TargetPlaylist().ID,
		string(sub.Filter()),
		nullTime(&wm.PublishedAt),
		wm.VideoID,
		nullTime(sub.LastPolledAt()),
		sub.CreatedAt().UTC(),
		sub.UpdatedAt().UTC(),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s -> %s (%s)", shared.ErrDuplicateSubscription, sub.Channel().ID, sub.TargetPlaylist().ID, sub.Filter())
	}
	if err != nil {
		return fmt.Errorf("failed to insert subscription: %w", err)
	}

	return nil
}

// Get retrieves a subscription by ID, excluding soft-deleted subscriptions
func (r *SubscriptionRepository) Get(id string) (*models.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = ? AND deleted_at IS NULL`
	return scanSubscription(r.db.QueryRow(query, id))
}

// GetBySequence retrieves an active subscription by its sequence number.
func (r *SubscriptionRepository) GetBySequence(sequence int) (*models.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE sequence = ? AND deleted_at IS NULL`
	return scanSubscription(r.db.QueryRow(query, sequence))
}

// GetByChannelAndTarget finds the active subscription binding channelID to targetPlaylistID with filter.
func (r *SubscriptionRepository) GetByChannelAndTarget(channelID, targetPlaylistID string, filter models.UploadFilter) (*models.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE channel_id = ? AND target_playlist_id = ? AND filter = ? AND deleted_at IS NULL
	`
	return scanSubscription(r.db.QueryRow(query, channelID, targetPlaylistID, string(filter)))
}

// Update modifies the display name and last poll time. The watermark is left alone.
func (r *SubscriptionRepository) Update(sub *models.Subscription) error {
	if err := sub.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	sub.SetUpdatedAt(now)

	query := `
		UPDATE subscriptions
		SET name = ?, last_polled_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, sub.Name(), nullTime(sub.LastPolledAt()), now, sub.ID())
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	return requireRow(result, sub.ID())
}

// Delete soft-deletes a subscription by ID. Its poll history is kept.
func (r *SubscriptionRepository) Delete(id string) error {
	query := `UPDATE subscriptions SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`

	result, err := r.db.Exec(query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return requireRow(result, id)
}

// List retrieves active subscriptions ordered by sequence.
//
// Supported criteria: "channel_id", "target_playlist_id" and "filter" (all strings).
func (r *SubscriptionRepository) List(criteria map[string]any) ([]*models.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE deleted_at IS NULL`
	args := []any{}

	for _, key := range []string{"channel_id", "target_playlist_id", "filter"} {
		if v, ok := criteria[key].(string); ok && v != "" {
			query += " AND " + key + " = ?"
			args = append(args, v)
		}
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return subs, nil
}

// AdvanceWatermark moves the subscription's watermark to wm.
//
// Callers advance only after every candidate of a batch has been delivered. A watermark strictly
// older than the stored one is rejected with [shared.ErrStaleWatermark]; an equal timestamp with
// another video ID is accepted.
func (r *SubscriptionRepository) AdvanceWatermark(id string, wm models.UploadWatermark) error {
	if wm.IsZero() {
		return fmt.Errorf("%w: cannot advance to epoch zero", shared.ErrInvalidArgument)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		publishedAt sql.NullTime
		videoID     string
	)
	err = tx.QueryRow(
		`SELECT watermark_published_at, watermark_video_id FROM subscriptions WHERE id = ? AND deleted_at IS NULL`, id,
	).Scan(&publishedAt, &videoID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", shared.ErrSubscriptionNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to read watermark: %w", err)
	}

	current := models.UploadWatermark{VideoID: videoID}
	if publishedAt.Valid {
		current.PublishedAt = publishedAt.Time.UTC()
	}
	if wm.Before(current) {
		return fmt.Errorf("%w: %s is older than %s", shared.ErrStaleWatermark, wm, current)
	}

	_, err = tx.Exec(
		`UPDATE subscriptions SET watermark_published_at = ?, watermark_video_id = ?, updated_at = ? WHERE id = ?`,
		wm.PublishedAt.UTC(), wm.VideoID, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to advance watermark: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit watermark: %w", err)
	}
	return nil
}

// MarkPolled records when the subscription was last polled, whatever the outcome.
func (r *SubscriptionRepository) MarkPolled(id string, at time.Time) error {
	result, err := r.db.Exec(
		`UPDATE subscriptions SET last_polled_at = ? WHERE id = ? AND deleted_at IS NULL`, at.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark subscription polled: %w", err)
	}
	return requireRow(result, id)
}

func requireRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: not found or already deleted: %s", shared.ErrSubscriptionNotFound, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanSubscription scans a [sql.Row] or the current row of [sql.Rows] into a [models.Subscription]
func scanSubscription(row rowScanner) (*models.Subscription, error) {
	var (
		id               string
		sequence         int
		name             string
		channelID        string
		targetPlaylistID string
		filter           string
		wmPublishedAt    sql.NullTime
		wmVideoID        string
		lastPolledAt     sql.NullTime
		createdAt        time.Time
		updatedAt        time.Time
		deletedAt        sql.NullTime
	)

	err := row.Scan(
		&id, &sequence, &name, &channelID, &targetPlaylistID, &filter,
		&wmPublishedAt, &wmVideoID, &lastPolledAt,
		&createdAt, &updatedAt, &deletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan subscription: %w", err)
	}

	sub := models.NewSubscription(sequence, channelID, targetPlaylistID, models.UploadFilter(filter))
	sub.SetID(id)
	sub.SetName(name)
	sub.SetCreatedAt(createdAt.UTC())
	sub.SetUpdatedAt(updatedAt.UTC())
	sub.SetLastPolledAt(timePtr(lastPolledAt))
	sub.SetDeletedAt(timePtr(deletedAt))

	wm := models.UploadWatermark{VideoID: wmVideoID}
	if wmPublishedAt.Valid {
		wm.PublishedAt = wmPublishedAt.Time.UTC()
	}
	sub.SetWatermark(wm)

	return sub, nil
}

package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/ytpa/internal/models"
	"github.com/desertthunder/ytpa/internal/shared"
)

const pollRunColumns = `
	id, sequence, subscription_id, status, candidates_found, items_added,
	error_message, started_at, completed_at, created_at, updated_at, deleted_at
`

// PollRunRepository implements models.Repository[*models.PollRun] for poll history.
type PollRunRepository struct {
	db *sql.DB
}

// NewPollRunRepository creates a new PollRunRepository with the given database connection
func NewPollRunRepository(db *sql.DB) *PollRunRepository {
	return &PollRunRepository{db: db}
}

// Create inserts a new poll run with generated ID and sequence
func (r *PollRunRepository) Create(run *models.PollRun) error {
	sequence, err := NextSequence(r.db, "poll_runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	run.SetSequence(sequence)
	run.SetID(shared.GenerateID())

	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `INSERT INTO poll_runs (` + pollRunColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`

	_, err = r.db.Exec(query,
		run.ID(),
		sequence,
		run.SubscriptionID(),
		string(run.Status()),
		run.CandidatesFound(),
		run.ItemsAdded(),
		nullString(run.ErrorMessage()),
		nullTime(run.StartedAt()),
		nullTime(run.CompletedAt()),
		run.CreatedAt().UTC(),
		run.UpdatedAt().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert poll run: %w", err)
	}

	return nil
}

// Get retrieves a poll run by ID, excluding soft-deleted runs
func (r *PollRunRepository) Get(id string) (*models.PollRun, error) {
	query := `SELECT ` + pollRunColumns + ` FROM poll_runs WHERE id = ? AND deleted_at IS NULL`
	return scanPollRun(r.db.QueryRow(query, id))
}

// Update modifies an existing poll run in the database
func (r *PollRunRepository) Update(run *models.PollRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	run.SetUpdatedAt(now)

	query := `
		UPDATE poll_runs
		SET status = ?, candidates_found = ?, items_added = ?, error_message = ?,
			started_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		string(run.Status()),
		run.CandidatesFound(),
		run.ItemsAdded(),
		nullString(run.ErrorMessage()),
		nullTime(run.StartedAt()),
		nullTime(run.CompletedAt()),
		now,
		run.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update poll run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("poll run not found or already deleted: %s", run.ID())
	}

	return nil
}

// Delete soft-deletes a poll run by ID
func (r *PollRunRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE poll_runs SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete poll run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("poll run not found or already deleted: %s", id)
	}

	return nil
}

// List retrieves poll runs, newest first.
//
// Supported criteria: "subscription_id" and "status" (strings), "limit" (int).
func (r *PollRunRepository) List(criteria map[string]any) ([]*models.PollRun, error) {
	query := `SELECT ` + pollRunColumns + ` FROM poll_runs WHERE deleted_at IS NULL`
	args := []any{}

	if subscriptionID, ok := criteria["subscription_id"].(string); ok && subscriptionID != "" {
		query += " AND subscription_id = ?"
		args = append(args, subscriptionID)
	}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query poll runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.PollRun
	for rows.Next() {
		run, err := scanPollRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

// scanPollRun scans a single row into a [models.PollRun]
func scanPollRun(row rowScanner) (*models.PollRun, error) {
	var (
		id              string
		sequence        int
		subscriptionID  string
		status          string
		candidatesFound int
		itemsAdded      int
		errorMessage    sql.NullString
		startedAt       sql.NullTime
		completedAt     sql.NullTime
		createdAt       time.Time
		updatedAt       time.Time
		deletedAt       sql.NullTime
	)

	err := row.Scan(
		&id, &sequence, &subscriptionID, &status, &candidatesFound, &itemsAdded,
		&errorMessage, &startedAt, &completedAt, &createdAt, &updatedAt, &deletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("poll run not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan poll run: %w", err)
	}

	run := models.NewPollRun(sequence, subscriptionID)
	run.SetID(id)
	run.SetStatus(models.PollStatus(status))
	run.SetCandidatesFound(candidatesFound)
	run.SetItemsAdded(itemsAdded)
	if errorMessage.Valid {
		run.SetErrorMessage(errorMessage.String)
	}
	run.SetStartedAt(timePtr(startedAt))
	run.SetCompletedAt(timePtr(completedAt))
	run.SetCreatedAt(createdAt.UTC())
	run.SetUpdatedAt(updatedAt.UTC())
	run.SetDeletedAt(timePtr(deletedAt))

	return run, nil
}

package models

import (
	"encoding/json"
	"fmt"
	"time"
)

var _ Model = (*PollRun)(nil)

// PollStatus is the outcome of one subscription poll.
type PollStatus string

const (
	PollPending   PollStatus = "pending"
	PollRunning   PollStatus = "running"
	PollCompleted PollStatus = "completed"
	PollFailed    PollStatus = "failed"
	PollSkipped   PollStatus = "skipped"
)

// PollRun records one poll of a subscription by the auto adder.
type PollRun struct {
	record
	subscriptionID  string
	status          PollStatus
	candidatesFound int
	itemsAdded      int
	errorMessage    string
	startedAt       *time.Time
	completedAt     *time.Time
}

// NewPollRun creates a pending run for subscriptionID.
func NewPollRun(sequence int, subscriptionID string) *PollRun {
	return &PollRun{
		record:         newRecord(sequence),
		subscriptionID: subscriptionID,
		status:         PollPending,
	}
}

func (p *PollRun) SubscriptionID() string      { return p.subscriptionID }
func (p *PollRun) Status() PollStatus          { return p.status }
func (p *PollRun) SetStatus(s PollStatus)      { p.status = s }
func (p *PollRun) CandidatesFound() int        { return p.candidatesFound }
func (p *PollRun) SetCandidatesFound(n int)    { p.candidatesFound = n }
func (p *PollRun) ItemsAdded() int             { return p.itemsAdded }
func (p *PollRun) SetItemsAdded(n int)         { p.itemsAdded = n }
func (p *PollRun) ErrorMessage() string        { return p.errorMessage }
func (p *PollRun) SetErrorMessage(msg string)  { p.errorMessage = msg }
func (p *PollRun) StartedAt() *time.Time       { return p.startedAt }
func (p *PollRun) SetStartedAt(t *time.Time)   { p.startedAt = t }
func (p *PollRun) CompletedAt() *time.Time     { return p.completedAt }
func (p *PollRun) SetCompletedAt(t *time.Time) { p.completedAt = t }

// Start marks the run as running.
func (p *PollRun) Start(now time.Time) {
	p.status = PollRunning
	p.startedAt = &now
}

// Finish closes the run. A nil err completes it; otherwise it fails with err's message.
func (p *PollRun) Finish(now time.Time, err error) {
	p.completedAt = &now
	if err != nil {
		p.status = PollFailed
		p.errorMessage = err.Error()
		return
	}
	p.status = PollCompleted
}

// Skip closes the run without polling.
func (p *PollRun) Skip(now time.Time, reason string) {
	p.status = PollSkipped
	p.errorMessage = reason
	p.completedAt = &now
}

// Duration is the elapsed time between start and completion, or zero when either is missing.
func (p *PollRun) Duration() time.Duration {
	if p.startedAt == nil || p.completedAt == nil {
		return 0
	}
	return p.completedAt.Sub(*p.startedAt)
}

// Validate checks required fields and status.
func (p *PollRun) Validate() error {
	if p.id == "" {
		return fmt.Errorf("poll run id is required")
	}
	if p.subscriptionID == "" {
		return fmt.Errorf("subscription id is required")
	}
	switch p.status {
	case PollPending, PollRunning, PollCompleted, PollFailed, PollSkipped:
	default:
		return fmt.Errorf("invalid poll status %q", p.status)
	}
	if p.itemsAdded > p.candidatesFound {
		return fmt.Errorf("items added (%d) exceeds candidates found (%d)", p.itemsAdded, p.candidatesFound)
	}
	return nil
}

type pollRunJSON struct {
	ID              string     `json:"id"`
	SubscriptionID  string     `json:"subscription_id"`
	Status          PollStatus `json:"status"`
	CandidatesFound int        `json:"candidates_found"`
	ItemsAdded      int        `json:"items_added"`
	ErrorMessage    string     `json:"error,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// MarshalJSON renders the run for `history --json`.
func (p *PollRun) MarshalJSON() ([]byte, error) {
	return json.Marshal(pollRunJSON{
		ID:              p.id,
		SubscriptionID:  p.subscriptionID,
		Status:          p.status,
		CandidatesFound: p.candidatesFound,
		ItemsAdded:      p.itemsAdded,
		ErrorMessage:    p.errorMessage,
		StartedAt:       p.startedAt,
		CompletedAt:     p.completedAt,
	})
}

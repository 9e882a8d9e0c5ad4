package tasks

import (
	"fmt"

	"github.com/desertthunder/ytpa/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchSource Phase = iota
	AddItems
	TrimItems
	PollSubscription
	PollComplete
	PollFailed
	PollSkipped
)

func (p Phase) String() string {
	switch p {
	case FetchSource:
		return "fetch_source"
	case AddItems:
		return "add_items"
	case TrimItems:
		return "trim_items"
	case PollSubscription:
		return "poll"
	case PollComplete:
		return "poll_complete"
	case PollFailed:
		return "poll_failed"
	case PollSkipped:
		return "poll_skipped"
	default:
		return ""
	}
}

func fetchSourceUpdate(source models.ResourceReference) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Collecting videos from %s...", source),
	}
}

func addItemUpdate(step, total int, videoID string, err error) ProgressUpdate {
	if err != nil {
		return ProgressUpdate{
			Phase:   AddItems,
			Step:    step,
			Total:   total,
			Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, videoID, err),
		}
	}
	return ProgressUpdate{
		Phase:   AddItems,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s", step, total, videoID),
	}
}

func trimUpdate(playlistID string, index int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   TrimItems,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Removing the first %d entries of %s...", index, playlistID),
	}
}

func pollStartedUpdate(step, total int, sub *models.Subscription) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PollSubscription,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Queued %s", step, total, sub.Label()),
		Data:    sub,
	}
}

func pollResultUpdate(step, total int, res PollResult) ProgressUpdate {
	label := res.Subscription.Label()
	switch {
	case res.Skipped:
		return ProgressUpdate{
			Phase:   PollSkipped,
			Step:    step,
			Total:   total,
			Message: fmt.Sprintf("[%d/%d] - %s skipped: %v", step, total, label, res.Err),
			Data:    res,
		}
	case res.Err != nil:
		return ProgressUpdate{
			Phase:   PollFailed,
			Step:    step,
			Total:   total,
			Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, label, res.Err),
			Data:    res,
		}
	default:
		return ProgressUpdate{
			Phase:   PollComplete,
			Step:    step,
			Total:   total,
			Message: fmt.Sprintf("[%d/%d] ✓ %s (%d added)", step, total, label, res.Added),
			Data:    res,
		}
	}
}

package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/ytpa/internal/models"
)

var (
	_ list.Item = subscriptionItem{}
	_ list.Item = runItem{}
)

// subscriptionItem wraps [models.Subscription] to implement [list.Item].
type subscriptionItem struct {
	sub *models.Subscription
}

func (i subscriptionItem) FilterValue() string { return i.sub.Label() }
func (i subscriptionItem) Title() string       { return i.sub.Label() }
func (i subscriptionItem) Description() string {
	desc := fmt.Sprintf("→ %s • %s • since %s", i.sub.TargetPlaylist().ID, i.sub.Filter(), i.sub.Watermark())
	if t := i.sub.LastPolledAt(); t != nil {
		desc = fmt.Sprintf("%s • polled %s", desc, t.Local().Format(time.DateTime))
	}
	return desc
}

// runItem wraps [models.PollRun] to implement [list.Item].
type runItem struct {
	run *models.PollRun
}

func (i runItem) FilterValue() string { return string(i.run.Status()) }
func (i runItem) Title() string {
	started := "not started"
	if t := i.run.StartedAt(); t != nil {
		started = t.Local().Format(time.DateTime)
	}
	return fmt.Sprintf("%s  %s", started, styles.status(i.run.Status()))
}
func (i runItem) Description() string {
	desc := fmt.Sprintf("%d found, %d added in %s", i.run.CandidatesFound(), i.run.ItemsAdded(), i.run.Duration().Round(time.Millisecond))
	if msg := i.run.ErrorMessage(); msg != "" {
		desc = fmt.Sprintf("%s • %s", desc, msg)
	}
	return desc
}

package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/ytpa/internal/models"
	"github.com/desertthunder/ytpa/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgSubscriptionsFetched MsgKind = iota
	MsgHistoryFetched
	MsgProgressUpdate
	MsgCycleComplete
)

type subscriptionsPayload struct {
	subs []*models.Subscription
	err  error
}

type historyPayload struct {
	sub  *models.Subscription
	runs []*models.PollRun
	err  error
}

type cyclePayload struct {
	result *tasks.CycleResult
	err    error
}

// subscriptionsFetchedMsg is the constructor for [MsgSubscriptionsFetched]
func subscriptionsFetchedMsg(subs []*models.Subscription, err error) Msg {
	return Msg{kind: MsgSubscriptionsFetched, data: subscriptionsPayload{subs, err}}
}

// historyFetchedMsg is the constructor for [MsgHistoryFetched]
func historyFetchedMsg(sub *models.Subscription, runs []*models.PollRun, err error) Msg {
	return Msg{kind: MsgHistoryFetched, data: historyPayload{sub, runs, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// cycleCompleteMsg is the constructor for [MsgCycleComplete]
func cycleCompleteMsg(result *tasks.CycleResult, err error) Msg {
	return Msg{kind: MsgCycleComplete, data: cyclePayload{result, err}}
}

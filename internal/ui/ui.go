package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/ytpa/internal/models"
	"github.com/desertthunder/ytpa/internal/shared"
	"github.com/desertthunder/ytpa/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	SubscriptionListView ViewState = iota
	HistoryView
	ConfirmView
	PollingView
	ResultView
)

// progressLines is how many recent progress messages the polling view keeps.
const progressLines = 8

// SubscriptionLister loads the subscriptions shown in the list view.
type SubscriptionLister interface {
	List(criteria map[string]any) ([]*models.Subscription, error)
}

// RunLister loads poll history.
type RunLister interface {
	List(criteria map[string]any) ([]*models.PollRun, error)
}

// CycleRunner polls subscriptions. Satisfied by [tasks.AutoAdder].
type CycleRunner interface {
	RunCycle(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*tasks.CycleResult, error)
	PollSubscription(ctx context.Context, id string) tasks.PollResult
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	subs         SubscriptionLister
	runs         RunLister
	adder        CycleRunner
	width        int
	height       int
	subList      list.Model
	runList      list.Model
	selected     *models.Subscription
	progressChan chan tasks.ProgressUpdate
	done         chan cyclePayload
	recent       []string
	result       *tasks.CycleResult
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, subs SubscriptionLister, runs RunLister, adder CycleRunner) *Model {
	return &Model{
		ctx:     ctx,
		view:    SubscriptionListView,
		subs:    subs,
		runs:    runs,
		adder:   adder,
		subList: list.New(nil, list.NewDefaultDelegate(), 0, 0),
		runList: list.New(nil, list.NewDefaultDelegate(), 0, 0),
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Init initializes the TUI by loading subscriptions.
func (m *Model) Init() tea.Cmd {
	return m.fetchSubscriptions()
}

// View returns the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case SubscriptionListView:
		return m.renderSubscriptionList()
	case HistoryView:
		return m.renderHistory()
	case ConfirmView:
		return m.renderConfirm()
	case PollingView:
		return m.renderPolling()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.subList.SetSize(msg.Width-4, msg.Height-8)
		m.runList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		if m.err != nil && m.view != ResultView {
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
			return m, nil
		}
		switch m.view {
		case SubscriptionListView:
			return m.handleListKeys(msg)
		case HistoryView:
			return m.handleHistoryKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case PollingView:
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			return m, nil
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgSubscriptionsFetched:
		data := msg.data.(subscriptionsPayload)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		items := make([]list.Item, len(data.subs))
		for i, sub := range data.subs {
			items[i] = subscriptionItem{sub: sub}
		}
		m.subList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.subList.Title = "Ghost Subscriptions"
		m.subList.SetSize(m.width-4, m.height-8)
		return m, nil

	case MsgHistoryFetched:
		data := msg.data.(historyPayload)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.selected = data.sub
		items := make([]list.Item, len(data.runs))
		for i, run := range data.runs {
			items[i] = runItem{run: run}
		}
		m.runList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.runList.Title = fmt.Sprintf("Polls of '%s'", data.sub.Label())
		m.runList.SetSize(m.width-4, m.height-8)
		m.view = HistoryView
		return m, nil

	case MsgProgressUpdate:
		update := msg.data.(tasks.ProgressUpdate)
		m.recent = append(m.recent, update.Message)
		if len(m.recent) > progressLines {
			m.recent = m.recent[len(m.recent)-progressLines:]
		}
		return m, m.waitForProgress()

	case MsgCycleComplete:
		data := msg.data.(cyclePayload)
		m.result = data.result
		m.err = data.err
		m.progressChan = nil
		m.done = nil
		m.view = ResultView
		return m, nil
	}
	return m, nil
}

func (m *Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.subList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.subList, cmd = m.subList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.history):
		if sub := m.selectedSubscription(); sub != nil {
			return m, m.fetchHistory(sub)
		}
		return m, nil
	case key.Matches(msg, m.keys.poll):
		if sub := m.selectedSubscription(); sub != nil {
			m.selected = sub
			m.view = PollingView
			return m, m.startPoll(sub)
		}
		return m, nil
	case key.Matches(msg, m.keys.runAll):
		if len(m.subList.Items()) > 0 {
			m.view = ConfirmView
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.subList, cmd = m.subList.Update(msg)
	return m, cmd
}

func (m *Model) handleHistoryKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = SubscriptionListView
		return m, nil
	}

	var cmd tea.Cmd
	m.runList, cmd = m.runList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "ctrl+c":
		return m, tea.Quit
	case key.Matches(msg, m.keys.yes):
		m.view = PollingView
		return m, m.startCycle()
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.quit):
		m.view = SubscriptionListView
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back), msg.String() == "enter":
		m.view = SubscriptionListView
		m.result = nil
		m.err = nil
		m.recent = nil
		return m, m.fetchSubscriptions()
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case SubscriptionListView:
		m.subList, cmd = m.subList.Update(msg)
	case HistoryView:
		m.runList, cmd = m.runList.Update(msg)
	}
	return m, cmd
}

func (m *Model) selectedSubscription() *models.Subscription {
	if item, ok := m.subList.SelectedItem().(subscriptionItem); ok {
		return item.sub
	}
	return nil
}

func (m *Model) fetchSubscriptions() tea.Cmd {
	return func() tea.Msg {
		subs, err := m.subs.List(nil)
		return subscriptionsFetchedMsg(subs, err)
	}
}

func (m *Model) fetchHistory(sub *models.Subscription) tea.Cmd {
	return func() tea.Msg {
		runs, err := m.runs.List(map[string]any{"subscription_id": sub.ID(), "limit": 50})
		return historyFetchedMsg(sub, runs, err)
	}
}

func (m *Model) startCycle() tea.Cmd {
	if m.adder == nil {
		return func() tea.Msg {
			return cycleCompleteMsg(nil, fmt.Errorf("%w: YouTube client not initialized", shared.ErrServiceUnavailable))
		}
	}

	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan cyclePayload, 1)
	m.progressChan = progress
	m.done = done
	m.recent = nil

	go func() {
		result, err := m.adder.RunCycle(m.ctx, progress)
		done <- cyclePayload{result, err}
		close(progress)
	}()

	return m.waitForProgress()
}

func (m *Model) startPoll(sub *models.Subscription) tea.Cmd {
	m.recent = []string{fmt.Sprintf("Polling %s...", sub.Label())}
	adder := m.adder
	return func() tea.Msg {
		if adder == nil {
			return cycleCompleteMsg(nil, fmt.Errorf("%w: YouTube client not initialized", shared.ErrServiceUnavailable))
		}
		res := adder.PollSubscription(m.ctx, sub.ID())
		return cycleCompleteMsg(singlePollResult(res), nil)
	}
}

func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progressChan, m.done
	return func() tea.Msg {
		if progress == nil {
			return cycleCompleteMsg(m.result, m.err)
		}

		update, ok := <-progress
		if !ok {
			data := <-done
			return cycleCompleteMsg(data.result, data.err)
		}
		return progressUpdateMsg(update)
	}
}

// singlePollResult presents one poll the same way as a cycle.
func singlePollResult(res tasks.PollResult) *tasks.CycleResult {
	out := &tasks.CycleResult{Results: []tasks.PollResult{res}, Added: res.Added}
	switch {
	case res.Skipped:
		out.Skipped = 1
	case res.Err != nil:
		out.Polled, out.Failed = 1, 1
		out.QuotaExceeded = errors.Is(res.Err, shared.ErrQuotaExceeded)
	default:
		out.Polled = 1
	}
	return out
}

func (m *Model) renderSubscriptionList() string {
	helpKeys := []key.Binding{m.keys.history, m.keys.poll, m.keys.runAll, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	if len(m.subList.Items()) == 0 {
		empty := styles.help.Render("No subscriptions yet. Add one with `ytpa subscriptions add <channel> <playlist>`.")
		return fmt.Sprintf("%s\n\n%s\n\n%s", styles.title.Render("Ghost Subscriptions"), empty, helpView)
	}
	return fmt.Sprintf("%s\n\n%s", m.subList.View(), helpView)
}

func (m *Model) renderHistory() string {
	helpKeys := []key.Binding{m.keys.back, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	if len(m.runList.Items()) == 0 {
		return fmt.Sprintf("%s\n\n%s\n\n%s", styles.title.Render(m.runList.Title), styles.help.Render("Never polled."), helpView)
	}
	return fmt.Sprintf("%s\n\n%s", m.runList.View(), helpView)
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render("Poll every subscription now?")
	info := fmt.Sprintf("\nSubscriptions: %d\nNew uploads are added to their target playlists.\n", len(m.subList.Items()))

	helpKeys := []key.Binding{m.keys.yes, m.keys.no}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}

func (m *Model) renderPolling() string {
	title := styles.title.Render("Polling")
	return fmt.Sprintf("%s\n\n%s", title, strings.Join(m.recent, "\n"))
}

func (m *Model) renderResult() string {
	helpKeys := []key.Binding{m.keys.back, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	if m.result == nil {
		msg := "No result available"
		if m.err != nil {
			msg = fmt.Sprintf("Poll failed: %v", m.err)
		}
		return fmt.Sprintf("%s\n\n%s", styles.err.Render(msg), helpView)
	}

	r := m.result
	title := styles.ok.Render("✓ Poll complete")
	if r.Failed > 0 {
		title = styles.warn.Render(fmt.Sprintf("Poll finished with %d failure(s)", r.Failed))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\nPolled: %d  Added: %d  Failed: %d  Skipped: %d\n", r.Polled, r.Added, r.Failed, r.Skipped)
	if r.QuotaExceeded {
		b.WriteString(styles.warn.Render("Daily quota exhausted; remaining subscriptions were skipped.") + "\n")
	}
	if m.err != nil {
		b.WriteString(styles.err.Render(fmt.Sprintf("Stopped: %v", m.err)) + "\n")
	}

	for _, res := range r.Results {
		label := "?"
		if res.Subscription != nil {
			label = res.Subscription.Label()
		}
		switch {
		case res.Skipped:
			fmt.Fprintf(&b, "\n  - %s skipped", label)
		case res.Err != nil:
			fmt.Fprintf(&b, "\n  %s %s: %v", styles.err.Render("✗"), label, res.Err)
		default:
			fmt.Fprintf(&b, "\n  %s %s: %d added", styles.ok.Render("✓"), label, res.Added)
		}
	}

	return fmt.Sprintf("%s\n%s\n\n%s", title, b.String(), helpView)
}

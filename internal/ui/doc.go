// Package ui implements an interactive terminal dashboard for ghost subscriptions using bubbletea's Elm architecture.
//
// The dashboard has these views:
//  1. [SubscriptionListView] : Browse subscriptions with their target, filter and watermark
//  2. [HistoryView] : Poll history of the selected subscription
//  3. [ConfirmView] : Confirm a cycle over every subscription
//  4. [PollingView] : Follow progress updates while polls run
//  5. [ResultView] : Counts and per-subscription outcomes of the finished cycle
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the AutoAdder, providing non-blocking status reporting during polls.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui

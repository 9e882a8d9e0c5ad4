// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "json",
		Usage: "Output raw JSON",
	}
}

func filterFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "filter",
		Aliases: []string{"f"},
		Usage:   "Uploads to follow: all, videos, streams or shorts (default: adder.filter)",
	}
}

// setupCommand initializes the config file and database
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create config.toml if missing, initialize the database and run migrations",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "rollback",
				Usage: "Roll back the most recent migration instead",
			},
		},
		Action: r.Setup,
	}
}

// authCommand handles the Google OAuth flow
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage YouTube credentials",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Authorize ytpa to manage your playlists (opens a browser)",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the browser callback",
						Value: 2 * time.Minute,
					},
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the consent URL instead of opening it",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show which credentials are configured",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.AuthStatus,
			},
		},
	}
}

// resolveCommand turns a URL, handle or ID into a canonical reference
func resolveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "resolve",
		Usage: "Resolve a video, playlist or channel URL, handle or ID",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "input"},
		},
		Flags:  []cli.Flag{jsonFlag()},
		Action: r.Resolve,
	}
}

// addCommand adds a video, a playlist's videos or a channel's uploads to a playlist
func addCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "add",
		Usage: "Add a video, playlist or channel uploads (oldest first) to a playlist",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "source"},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "to",
				Aliases: []string{"t"},
				Usage:   "Target playlist URL or ID (default: adder.target_playlist)",
			},
			filterFlag(),
			jsonFlag(),
		},
		Action: r.Add,
	}
}

// trimCommand removes leading playlist entries
func trimCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "trim",
		Usage: "Remove the first N entries of a playlist",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "playlist"},
			&cli.StringArg{Name: "count"},
		},
		Action: r.Trim,
	}
}

// subscriptionsCommand manages ghost subscriptions
func subscriptionsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "subscriptions",
		Aliases: []string{"subs", "sub"},
		Usage:   "Manage ghost subscriptions (channel uploads delivered to a playlist)",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Follow a channel's uploads into a playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "channel"},
					&cli.StringArg{Name: "playlist"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "name",
						Aliases: []string{"n"},
						Usage:   "Display name (default: the channel title)",
					},
					filterFlag(),
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Deliver the channel's existing uploads too, not only new ones",
					},
					jsonFlag(),
				},
				Action: r.SubscriptionsAdd,
			},
			{
				Name:    "remove",
				Aliases: []string{"rm"},
				Usage:   "Remove a subscription by ID or list number",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.SubscriptionsRemove,
			},
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List subscriptions",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "channel",
						Usage: "Only subscriptions of this channel ID",
					},
					&cli.StringFlag{
						Name:  "playlist",
						Usage: "Only subscriptions delivering to this playlist ID",
					},
					jsonFlag(),
				},
				Action: r.SubscriptionsList,
			},
			{
				Name:  "export",
				Usage: "Export subscriptions to CSV, Markdown, text or JSON",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "format",
						Usage: "csv, markdown, text or json",
						Value: "csv",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path (default: subscriptions.<ext>)",
					},
				},
				Action: r.SubscriptionsExport,
			},
		},
	}
}

// runCommand runs the auto adder
func runCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Poll every subscription once and deliver new uploads",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "watch",
				Aliases: []string{"w"},
				Usage:   "Keep polling on an interval until interrupted",
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Delay between cycles with --watch (default: adder.interval)",
			},
			&cli.StringFlag{
				Name:  "subscription",
				Usage: "Poll only this subscription (ID or #)",
			},
		},
		Action: r.Run,
	}
}

// historyCommand shows recorded polls
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recent polls",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "subscription",
				Usage: "Only polls of this subscription (ID or #)",
			},
			&cli.StringFlag{
				Name:  "status",
				Usage: "Only polls with this status (completed, failed, skipped)",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of polls to show",
				Value: 20,
			},
			jsonFlag(),
		},
		Action: r.History,
	}
}

// tuiCommand returns the top-level TUI command for the subscription dashboard.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive subscription dashboard",
		Action:  r.TUI,
	}
}

package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytpa/internal/repositories"
	"github.com/desertthunder/ytpa/internal/services"
	"github.com/desertthunder/ytpa/internal/shared"
	"github.com/desertthunder/ytpa/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config      *shared.Config
	configPath  string
	platform    services.Platform
	platformErr error
	canWrite    bool
	db          *sql.DB
	subs        *repositories.SubscriptionRepository
	runs        *repositories.PollRunRepository
	engine      *tasks.PlaylistEngine
	adder       *tasks.AutoAdder
	logger      *log.Logger
	output      io.Writer
	mu          sync.Mutex
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config      *shared.Config
	ConfigPath  string
	Platform    services.Platform
	PlatformErr error // why Platform is nil, shown to the user
	CanWrite    bool  // Platform holds OAuth credentials
	DB          *sql.DB
	Logger      *log.Logger
	Output      io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	r := &Runner{
		config:      opts.Config,
		configPath:  opts.ConfigPath,
		platform:    opts.Platform,
		platformErr: opts.PlatformErr,
		canWrite:    opts.CanWrite,
		db:          opts.DB,
		logger:      opts.Logger,
		output:      opts.Output,
	}
	if opts.DB != nil {
		r.subs = repositories.NewSubscriptionRepository(opts.DB)
		r.runs = repositories.NewPollRunRepository(opts.DB)
	}
	r.wire()
	return r
}

// wire builds the engine and auto adder from the current dependencies and logger.
func (r *Runner) wire() {
	r.engine = tasks.NewPlaylistEngine(r.platform, shared.WithLogger(r.logger, "component", "engine"))
	r.adder = nil
	if r.platform != nil && r.subs != nil {
		r.adder = tasks.NewAutoAdder(r.subs, r.engine.Tracker(), r.platform, tasks.AutoAdderOpts{
			Workers: r.config.Adder.Workers,
			Logger:  shared.WithLogger(r.logger, "component", "adder"),
			Runs:    r.runs,
		})
	}
}

// SetLogger swaps the logger, e.g. to keep log lines out of the TUI.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
	r.wire()
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, resolveCommand, addCommand, trimCommand,
		subscriptionsCommand, runCommand, historyCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// requireStore fails when the database could not be opened.
func (r *Runner) requireStore() error {
	if r.subs == nil {
		return fmt.Errorf("%w: database not initialized, run `ytpa setup`", shared.ErrServiceUnavailable)
	}
	return nil
}

// requirePlatform fails without a YouTube client, or without OAuth credentials when write is set.
func (r *Runner) requirePlatform(write bool) error {
	if r.platform == nil {
		if r.platformErr != nil {
			return fmt.Errorf("%w: YouTube client not initialized: %w", shared.ErrServiceUnavailable, r.platformErr)
		}
		return fmt.Errorf("%w: YouTube client not initialized", shared.ErrServiceUnavailable)
	}
	if write && !r.canWrite {
		return fmt.Errorf("%w: changing playlists needs OAuth, run `ytpa auth login`", shared.ErrNotAuthenticated)
	}
	return nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	return r.writePlain("\n" + fmt.Sprintf(format, args...) + "\n")
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

// printProgress writes updates until progress is closed. The returned channel closes once it has drained.
func (r *Runner) printProgress(progress <-chan tasks.ProgressUpdate) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			switch update.Phase {
			case tasks.FetchSource, tasks.TrimItems, tasks.PollSubscription:
				r.writePlain("→ %s\n", update.Message)
			default:
				r.writePlain("%s\n", update.Message)
			}
		}
	}()
	return done
}

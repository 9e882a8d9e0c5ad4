package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/desertthunder/ytpa/internal/models"
	"github.com/desertthunder/ytpa/internal/shared"
	"github.com/desertthunder/ytpa/internal/tasks"
	"github.com/urfave/cli/v3"
)

// uploadFilter reads --filter, falling back to adder.filter.
func (r *Runner) uploadFilter(cmd *cli.Command) (models.UploadFilter, error) {
	value := cmd.String("filter")
	if value == "" {
		value = r.config.Adder.Filter
	}
	filter, err := models.ParseUploadFilter(value)
	if err != nil {
		return "", fmt.Errorf("%w: %w", shared.ErrInvalidFlag, err)
	}
	return filter, nil
}

// targetPlaylist returns input or adder.target_playlist.
func (r *Runner) targetPlaylist(input string) (string, error) {
	if input == "" {
		input = r.config.Adder.TargetPlaylist
	}
	if input == "" {
		return "", fmt.Errorf("%w: target playlist (pass one or set adder.target_playlist)", shared.ErrMissingArgument)
	}
	return input, nil
}

// Resolve prints the canonical reference for a URL, handle or ID.
func (r *Runner) Resolve(ctx context.Context, cmd *cli.Command) error {
	input := cmd.StringArg("input")
	if input == "" {
		return fmt.Errorf("%w: input", shared.ErrMissingArgument)
	}

	ref, err := r.engine.Resolve(ctx, input)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(ref, true)
	}
	return r.writePlain("%s\t%s\t%s\n", ref.Kind, ref.ID, ref.URL())
}

type addResultJSON struct {
	Source         models.ResourceReference `json:"source"`
	TargetPlaylist string                   `json:"target_playlist"`
	Total          int                      `json:"total"`
	Added          int                      `json:"added"`
	Failed         map[string]string        `json:"failed,omitempty"`
	Error          string                   `json:"error,omitempty"`
}

// Add adds a video, a playlist's entries or a channel's uploads to the target playlist.
func (r *Runner) Add(ctx context.Context, cmd *cli.Command) error {
	input := cmd.StringArg("source")
	if input == "" {
		return fmt.Errorf("%w: source", shared.ErrMissingArgument)
	}
	targetInput, err := r.targetPlaylist(cmd.String("to"))
	if err != nil {
		return err
	}
	filter, err := r.uploadFilter(cmd)
	if err != nil {
		return err
	}
	if err := r.requirePlatform(true); err != nil {
		return err
	}

	source, err := r.engine.Resolve(ctx, input)
	if err != nil {
		return err
	}
	target, err := r.engine.ResolveKind(ctx, targetInput, models.KindPlaylist)
	if err != nil {
		return err
	}

	useJSON := cmd.Bool("json")
	var progress chan tasks.ProgressUpdate
	var done <-chan struct{}
	if !useJSON {
		progress = make(chan tasks.ProgressUpdate, 50)
		done = r.printProgress(progress)
	}

	result, runErr := r.engine.AddReference(ctx, progress, source, target.ID, filter)
	if progress != nil {
		close(progress)
		<-done
	}

	if result == nil {
		return runErr
	}

	if useJSON {
		out := addResultJSON{Source: result.Source, TargetPlaylist: result.TargetPlaylist, Total: result.Total, Added: result.Added}
		if len(result.Failed) > 0 {
			out.Failed = make(map[string]string, len(result.Failed))
			for _, f := range result.Failed {
				out.Failed[f.VideoID] = f.Err.Error()
			}
		}
		if runErr != nil {
			out.Error = runErr.Error()
		}
		if err := r.writeJSON(out, true); err != nil {
			return err
		}
		return runErr
	}

	r.writePlainln("✓ Added %d/%d videos from %s to %s", result.Added, result.Total, source, target.ID)
	for _, f := range result.Failed {
		r.writePlain("  ✗ %s: %v\n", f.VideoID, f.Err)
	}
	return runErr
}

// Trim removes the first N entries of a playlist.
func (r *Runner) Trim(ctx context.Context, cmd *cli.Command) error {
	input := cmd.StringArg("playlist")
	if input == "" {
		return fmt.Errorf("%w: playlist", shared.ErrMissingArgument)
	}
	count, err := strconv.Atoi(cmd.StringArg("count"))
	if err != nil {
		return fmt.Errorf("%w: count must be a number, got %q", shared.ErrInvalidArgument, cmd.StringArg("count"))
	}
	if err := r.requirePlatform(true); err != nil {
		return err
	}

	playlist, err := r.engine.ResolveKind(ctx, input, models.KindPlaylist)
	if err != nil {
		return err
	}

	progress := make(chan tasks.ProgressUpdate, 1)
	done := r.printProgress(progress)
	removed, err := r.engine.Trim(ctx, progress, playlist.ID, count)
	close(progress)
	<-done
	if err != nil {
		return err
	}

	return r.writePlain("✓ Removed %d entries from %s\n", removed, playlist.ID)
}

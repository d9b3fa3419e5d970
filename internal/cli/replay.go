package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ayusman/mudra/internal/replay"
	"github.com/ayusman/mudra/internal/script"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Scripts string
}

// ReplayResult is the JSON output of one replayed file.
type ReplayResult struct {
	File   string        `json:"file"`
	Trace  *replay.Trace `json:"trace"`
	Passed bool          `json:"passed"`
	Error  string        `json:"error,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <script.yaml>...",
		Short: "Replay pointer scripts and print the recognized gestures",
		Long: `Replay YAML pointer scripts on a simulated clock and print the gestures
each one produces.

Scripts that list expected gestures are checked against the trace.

Exit codes:
  0 - All expectations met
  1 - At least one script produced unexpected gestures
  2 - Command error (unreadable or invalid script, etc.)

Examples:
  mudra replay testdata/swipe.yaml
  mudra replay --scripts ~/.mudra/scripts circle.yaml
  mudra replay --format json *.yaml`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd, args)
		},
	}

	cmd.Flags().StringVar(&opts.Scripts, "scripts", "", "directory of Lua recognizers to run alongside the built-ins")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command, files []string) error {
	log := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	var recognizers []*script.Recognizer
	if opts.Scripts != "" {
		var err error
		recognizers, err = script.LoadDir(opts.Scripts, script.WithLogger(log))
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load scripts", err)
		}
		defer func() {
			for _, r := range recognizers {
				r.Close()
			}
		}()
	}

	runOpts := []replay.Option{replay.WithLogger(log)}
	for _, r := range recognizers {
		runOpts = append(runOpts, replay.WithRecognizer(r))
	}

	results := make([]ReplayResult, 0, len(files))
	failed := 0
	for _, file := range files {
		s, err := replay.Load(file)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load replay script", err)
		}
		trace, err := replay.Run(s, runOpts...)
		if err != nil {
			return WrapExitError(ExitCommandError, "replay failed", err)
		}

		res := ReplayResult{File: file, Trace: trace, Passed: true}
		if err := trace.Check(s.Expect); err != nil {
			res.Passed = false
			res.Error = err.Error()
			failed++
		}
		results = append(results, res)
	}

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		if err := writeReplayJSON(out, results); err != nil {
			return err
		}
	} else {
		writeReplayText(out, results)
	}

	if failed > 0 {
		return WrapExitError(ExitFailure, fmt.Sprintf("%d of %d scripts failed", failed, len(files)),
			errors.New("unexpected gestures"))
	}
	return nil
}

func writeReplayJSON(w io.Writer, results []ReplayResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func writeReplayText(w io.Writer, results []ReplayResult) {
	for i, res := range results {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprint(w, res.Trace.Text())
		if !res.Passed {
			fmt.Fprintf(w, "FAIL %s: %s\n", res.File, res.Error)
		}
	}
}

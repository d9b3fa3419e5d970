package cli

import (
	"github.com/spf13/cobra"

	"github.com/ayusman/mudra/internal/pad"
	"github.com/ayusman/mudra/internal/session"
)

// PadOptions holds flags for the pad command.
type PadOptions struct {
	*RootOptions
	Width  int
	Height int
}

// NewPadCommand creates the pad command.
func NewPadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "pad",
		Short: "Open a window that recognizes mouse and touch gestures",
		Long: `Open a touch pad window. The mouse is pointer 0 and touches are pointers
1-9. Gestures are journaled and run their bound actions as in serve.

Keys: E toggles recognition, F toggles feedback, R resets, Esc quits.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPad(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Width, "width", 960, "window width")
	cmd.Flags().IntVar(&opts.Height, "height", 640, "window height")

	return cmd
}

func runPad(opts *PadOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	log := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	clock := session.NewManualClock(0)
	a, st, err := startApp(cfg, log, clock)
	if err != nil {
		return err
	}
	defer st.Close()
	defer a.Stop()

	g := pad.New(a, clock, pad.Config{Width: opts.Width, Height: opts.Height, Logger: log})
	if err := pad.Run(g); err != nil {
		return WrapExitError(ExitCommandError, "pad failed", err)
	}
	return nil
}

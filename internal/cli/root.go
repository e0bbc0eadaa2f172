package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/husk/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Config is the config file path. Empty uses defaults and environment.
	Config string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the husk CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "husk",
		Short: "husk - reconciliation core of the huskboard bot",
		Long: `Keeps derived messages in sync with the state they mirror:
huskboard copies of popular messages and channel stickies.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}

			// Logs go to stderr so stdout stays parseable in json mode.
			handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: logLevel(opts)})
			slog.SetDefault(slog.New(handler))
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "config file (.yaml, .yml or .cue)")

	cmd.AddCommand(NewSimulateCommand(opts))
	cmd.AddCommand(NewCheckpointsCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))
	cmd.AddCommand(NewTagCommand(opts))

	return cmd
}

// logLevel is debug with --verbose, else the configured log_level. A
// config that does not load leaves info; commands that read the config
// report the error themselves.
func logLevel(opts *RootOptions) slog.Level {
	if opts.Verbose {
		return slog.LevelDebug
	}
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return slog.LevelInfo
	}
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/roach88/husk/internal/config"
)

// ConfigSummary is the validated configuration as reported by config
// validate.
type ConfigSummary struct {
	Path           string `json:"path,omitempty"`
	DSN            string `json:"dsn"`
	Timeout        string `json:"timeout"`
	Lookback       int    `json:"lookback"`
	LogLevel       string `json:"log_level"`
	BoardChannelID string `json:"board_channel_id"`
	BoardEmoji     string `json:"board_emoji"`
	BoardMinStars  int    `json:"board_min_stars"`
	BoardTiers     int    `json:"board_tiers"`
	StickyEnabled  bool   `json:"sticky_enabled"`
}

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Work with husk configuration",
	}
	cmd.AddCommand(newConfigValidateCommand(rootOpts))
	return cmd
}

func newConfigValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a configuration file",
		Long: `Load a configuration file (YAML or CUE), apply HUSK_* environment
overrides and validate the result.

Without a file argument the --config flag is used; with neither only
defaults and environment are checked.

Exit codes:
  0 - Configuration is valid
  1 - Configuration is invalid
  2 - File missing or of an unsupported format`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rootOpts.Config
			if len(args) == 1 {
				path = args[0]
			}
			return runConfigValidate(cmd, rootOpts, path)
		},
	}
}

func runConfigValidate(cmd *cobra.Command, opts *RootOptions, path string) error {
	formatter := newFormatter(opts, cmd)
	formatter.VerboseLog("Validating config: %q", path)

	cfg, err := config.Load(path)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, "config file not found", err)
	case errors.Is(err, config.ErrUnsupportedFormat):
		return formatter.Fail(ExitCommandError, ErrCodeInvalidConfig, "unsupported config format", err)
	default:
		return formatter.Fail(ExitFailure, ErrCodeInvalidConfig, "invalid config", err)
	}

	summary := ConfigSummary{
		Path:           path,
		DSN:            cfg.DSN,
		Timeout:        cfg.Timeout.String(),
		Lookback:       cfg.Lookback,
		LogLevel:       cfg.LogLevel,
		BoardChannelID: cfg.Board.ChannelID,
		BoardEmoji:     cfg.Board.Emoji,
		BoardMinStars:  cfg.Board.MinStars,
		BoardTiers:     len(cfg.Board.Tiers),
		StickyEnabled:  cfg.Sticky.Enabled,
	}

	if formatter.JSON() {
		return formatter.Success(summary)
	}

	fmt.Fprintln(formatter.Writer, "✓ Config valid")
	fmt.Fprintf(formatter.Writer, "  dsn:      %s\n", summary.DSN)
	fmt.Fprintf(formatter.Writer, "  timeout:  %s\n", summary.Timeout)
	fmt.Fprintf(formatter.Writer, "  lookback: %d\n", summary.Lookback)
	fmt.Fprintf(formatter.Writer, "  board:    #%s, :%s: x%d, %d tiers\n",
		summary.BoardChannelID, summary.BoardEmoji, summary.BoardMinStars, summary.BoardTiers)
	fmt.Fprintf(formatter.Writer, "  sticky:   %t\n", summary.StickyEnabled)
	return nil
}

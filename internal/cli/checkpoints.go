package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/husk/internal/board"
	"github.com/roach88/husk/internal/config"
	"github.com/roach88/husk/internal/sticky"
	"github.com/roach88/husk/internal/store"
)

// CheckpointsOptions holds flags for the checkpoints list command.
type CheckpointsOptions struct {
	*RootOptions
	DSN    string
	Domain string
}

// CheckpointRow is one stored checkpoint as printed by checkpoints list.
type CheckpointRow struct {
	Domain           string `json:"domain"`
	Key              string `json:"key"`
	OwnerScopeID     string `json:"owner_scope_id,omitempty"`
	Mode             string `json:"mode"`
	RepresentationID string `json:"representation_id,omitempty"`
	PinnedText       string `json:"pinned_text,omitempty"`
}

// domainLister is implemented by backends that can enumerate domains.
type domainLister interface {
	Domains(ctx context.Context) ([]string, error)
}

// NewCheckpointsCommand creates the checkpoints command group.
func NewCheckpointsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoints",
		Short: "Inspect stored checkpoints",
	}
	cmd.AddCommand(newCheckpointsListCommand(rootOpts))
	return cmd
}

func newCheckpointsListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckpointsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the checkpoints of a store",
		Long: `List the durable checkpoints held by a store.

The store defaults to the dsn of the loaded config. Without --domain every
domain in the store is listed.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheckpointsList(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.DSN, "dsn", "", "checkpoint store (sqlite path, sqlite://, postgres:// or memory://)")
	cmd.Flags().StringVar(&opts.Domain, "domain", "", "only list this domain")

	return cmd
}

func runCheckpointsList(cmd *cobra.Command, opts *CheckpointsOptions) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	dsn := opts.DSN
	if dsn == "" {
		cfg, err := config.Load(opts.Config)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeInvalidConfig, "failed to load config", err)
		}
		dsn = cfg.DSN
	}
	formatter.VerboseLog("Opening store: %s", dsn)

	backend, err := store.Open(dsn)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open store", err)
	}
	defer backend.Close()

	domains, err := listDomains(ctx, backend, opts.Domain)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to list domains", err)
	}

	rows := []CheckpointRow{}
	for _, domain := range domains {
		cps, err := backend.Checkpoints(domain).Load(ctx)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to load checkpoints", err)
		}
		for _, cp := range cps {
			rows = append(rows, CheckpointRow{
				Domain:           domain,
				Key:              cp.Key.String(),
				OwnerScopeID:     cp.OwnerScopeID,
				Mode:             cp.Mode.String(),
				RepresentationID: cp.RepresentationID,
				PinnedText:       cp.PinnedText,
			})
		}
	}

	if formatter.JSON() {
		return formatter.Success(rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(formatter.Writer, "No checkpoints")
		return nil
	}
	tw := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DOMAIN\tKEY\tOWNER\tMODE\tREPRESENTATION\tPINNED")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%q\n",
			r.Domain, r.Key, dash(r.OwnerScopeID), r.Mode, dash(r.RepresentationID), r.PinnedText)
	}
	return tw.Flush()
}

// listDomains picks the domains to list: the requested one, those the
// backend reports, or the built-in domains.
func listDomains(ctx context.Context, backend store.Backend, only string) ([]string, error) {
	if only != "" {
		return []string{only}, nil
	}
	if dl, ok := backend.(domainLister); ok {
		return dl.Domains(ctx)
	}
	return []string{board.Domain, sticky.Domain}, nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

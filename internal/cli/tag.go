package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/husk/internal/model"
)

// TagReport describes one identity tag.
type TagReport struct {
	Tag      string `json:"tag"`
	Version  int    `json:"version"`
	Kind     string `json:"kind"`
	SourceID string `json:"source_id"`
}

// NewTagCommand creates the tag command group.
func NewTagCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Encode and decode representation identity tags",
	}
	cmd.AddCommand(newTagDecodeCommand(rootOpts))
	cmd.AddCommand(newTagEncodeCommand(rootOpts))
	return cmd
}

func newTagDecodeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "decode <tag>",
		Short:         "Decode the identity tag of a representation",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			tag, err := model.DecodeTag(args[0])
			if err != nil {
				return formatter.Fail(ExitFailure, ErrCodeInvalidTag, "cannot decode tag", err)
			}
			return writeTag(formatter, args[0], tag)
		},
	}
}

func newTagEncodeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "encode <kind> <source-id>",
		Short:         "Build the identity tag for a source",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			s, err := model.EncodeTag(args[0], args[1])
			if err != nil {
				return formatter.Fail(ExitFailure, ErrCodeInvalidTag, "cannot encode tag", err)
			}
			return writeTag(formatter, s, model.Tag{Version: model.TagVersion, Kind: args[0], SourceID: args[1]})
		},
	}
}

func writeTag(f *OutputFormatter, s string, tag model.Tag) error {
	report := TagReport{Tag: s, Version: tag.Version, Kind: tag.Kind, SourceID: tag.SourceID}
	if f.JSON() {
		return f.Success(report)
	}
	fmt.Fprintf(f.Writer, "tag:     %s\n", report.Tag)
	fmt.Fprintf(f.Writer, "version: %d\n", report.Version)
	fmt.Fprintf(f.Writer, "kind:    %s\n", report.Kind)
	fmt.Fprintf(f.Writer, "source:  %s\n", report.SourceID)
	return nil
}

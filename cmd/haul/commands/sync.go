package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Download, verify, link and extract every required artifact",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := runOptions(cmd)
			opts.Workers, _ = cmd.Flags().GetInt("workers")
			return c.app.Sync(cmd.Context(), opts)
		},
	}
	cmd.Flags().IntP("workers", "j", 0, "Requirements processed in parallel (default from config, else 1)")
	return cmd
}

func (c *CLI) newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report stale or missing artifacts without changing anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.app.Check(cmd.Context(), runOptions(cmd))
		},
	}
}

func (c *CLI) newDumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Write the source to destination mapping to a file without downloading",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := runOptions(cmd)
			opts.DumpFile, _ = cmd.Flags().GetString("file")
			return c.app.Dump(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringP("file", "f", "", "Output file (default download_requirements.txt)")
	return cmd
}

// Package commands implements the CLI commands for haul.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/haul/internal/app"
	"go.trai.ch/haul/internal/build"
	"go.trai.ch/haul/internal/core/domain"
)

// CLI represents the command line interface for haul.
type CLI struct {
	app     Application
	rootCmd *cobra.Command
}

// Application represents the application logic interface.
type Application interface {
	Sync(ctx context.Context, opts app.RunOptions) error
	Check(ctx context.Context, opts app.RunOptions) error
	Dump(ctx context.Context, opts app.RunOptions) error
}

// New creates a new CLI instance with the given app.
func New(a Application) *CLI {
	rootCmd := &cobra.Command{
		Use:           "haul",
		Short:         "Fetch, verify and deduplicate the artifacts declared by requirement groups",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"{{.Name}} version {{.Version}} (commit: %s, date: %s)\n",
		build.Commit,
		build.Date,
	))
	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	flags := rootCmd.PersistentFlags()
	flags.StringP("root", "r", "", "Target root directory (default from config, else the working directory)")
	flags.StringP("platform", "p", string(domain.PlatformGeneral),
		"Platform whose requirement groups are selected (general, x86, aarch64, rpi, imx8, hailo15, any)")
	flags.StringSliceP("apps", "a", nil, "Only resolve the requirement groups of these apps")
	flags.StringP("manifests", "m", "", "Directory holding requirement group files, relative to the root")

	c := &CLI{
		app:     a,
		rootCmd: rootCmd,
	}

	rootCmd.AddCommand(c.newSyncCmd())
	rootCmd.AddCommand(c.newCheckCmd())
	rootCmd.AddCommand(c.newDumpCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}

// runOptions reads the persistent flags shared by every use case.
func runOptions(cmd *cobra.Command) app.RunOptions {
	root, _ := cmd.Flags().GetString("root")
	platform, _ := cmd.Flags().GetString("platform")
	apps, _ := cmd.Flags().GetStringSlice("apps")
	manifests, _ := cmd.Flags().GetString("manifests")

	return app.RunOptions{
		Platform:  domain.Platform(platform),
		Root:      root,
		Manifests: manifests,
		Apps:      apps,
	}
}

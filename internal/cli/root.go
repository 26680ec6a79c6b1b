package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"classroll/internal/app"
	"classroll/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	EnvFile string
	Format  string // "json" | "text"

	// load builds the configuration; tests replace it.
	load func(envFile string) config.App
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the attendctl root command.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{load: func(f string) config.App { return config.LoadFiles(f) }})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attendctl",
		Short: "Administer classroll attendance data",
		Long:  "attendctl migrates, seeds and inspects the store configured by the classroll environment variables.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file read before the environment")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewSummaryCommand(opts))

	return cmd
}

// openApp builds the services for one command run.
func (o *RootOptions) openApp(ctx context.Context) (*app.App, error) {
	return app.New(ctx, o.load(o.EnvFile))
}

// print writes v as indented JSON, or text via the callback.
func (o *RootOptions) print(w io.Writer, v any, text func(io.Writer)) error {
	if o.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

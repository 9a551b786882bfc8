package cmd

import (
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/agentic-research/vartree/internal/config"
	"github.com/agentic-research/vartree/internal/logging"
	"github.com/agentic-research/vartree/internal/nv"
)

var (
	opts   = config.NewOptions()
	logger = logr.Discard()
)

var rootCmd = &cobra.Command{
	Use:   "vartree",
	Short: "Scoped compound variable trees: read, render, copy and serve them",
	Long: `vartree reads variable assignments in nested compound form, for example

  cfg=(host=db port=5432 opts=(tls=on) tags=(a b))

and renders, walks, converts, snapshots or serves them. Inputs are files of
assignments, or JSON, YAML and HCL documents imported as one variable.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := config.BindViper(opts.ConfigFile, cmd.Flags()); err != nil {
			return err
		}
		if err := opts.Validate(); err != nil {
			return err
		}
		l, err := logging.New(opts.LogLevel)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
}

func init() {
	opts.AddFlags(rootCmd)
}

// newStore returns an empty store configured from the options.
func newStore() *nv.Store {
	return nv.NewStore(nv.WithMethod(opts.Method()), nv.WithLogger(logger))
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agentic-research/vartree/internal/nv"
	"github.com/agentic-research/vartree/internal/snapshot"
)

func init() {
	snapshotCmd.AddCommand(snapshotSaveCmd, snapshotLoadCmd, snapshotPathsCmd)
	rootCmd.AddCommand(snapshotCmd)
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Save variables to and load them from a SQLite snapshot (--db)",
}

var snapshotSaveCmd = &cobra.Command{
	Use:   "save [file...]",
	Short: "Read inputs and save every variable to the snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadInputs(args, cmd.InOrStdin())
		if err != nil {
			return err
		}
		return saveSnapshot(cmd, s)
	},
}

func saveSnapshot(cmd *cobra.Command, s *nv.Store) error {
	db, err := snapshot.Open(opts.DBPath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	n, err := db.Save(s, s.Global())
	if err != nil {
		return err
	}
	logger.Info("saved snapshot", "db", opts.DBPath, "variables", n)
	fmt.Fprintf(cmd.ErrOrStderr(), "saved %d variables to %s\n", n, opts.DBPath)
	return nil
}

var snapshotLoadCmd = &cobra.Command{
	Use:   "load [variable...]",
	Short: "Load the snapshot and print it in canonical form",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSnapshot()
		if err != nil {
			return err
		}
		ro, err := opts.RenderOptions()
		if err != nil {
			return err
		}
		return renderVariables(cmd.OutOrStdout(), s, s.Global(), args, ro)
	},
}

var snapshotPathsCmd = &cobra.Command{
	Use:   "paths [prefix]",
	Short: "List the saved walk, optionally below a prefix",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := snapshot.Open(opts.DBPath)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		prefix := ""
		if len(args) == 1 {
			prefix = args[0]
		}
		paths, err := db.Paths(prefix)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, p := range paths {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Name, p.Kind, p.Value)
		}
		return tw.Flush()
	},
}

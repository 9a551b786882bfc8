package cmd

import (
	"github.com/spf13/cobra"
)

var (
	importAs     string
	importFormat string
	importSave   bool
)

func init() {
	importCmd.Flags().StringVar(&importAs, "as", "", "Variable name (default: derived from the file name)")
	importCmd.Flags().StringVar(&importFormat, "format", "", "Input format: json, yaml, hcl or text (default: from the extension)")
	importCmd.Flags().BoolVar(&importSave, "save", false, "Also save the result to the snapshot database")
	rootCmd.AddCommand(importCmd)
}

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Convert a JSON, YAML or HCL document into a compound variable",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s := newStore()
		name := importAs
		if name == "" {
			name = varName(args[0])
		}
		format := importFormat
		if format == "" {
			format = formatOf(args[0])
		}
		if err := loadFile(s, s.Global(), args[0], format, name, cmd.InOrStdin()); err != nil {
			return err
		}
		if importSave {
			if err := saveSnapshot(cmd, s); err != nil {
				return err
			}
		}
		ro, err := opts.RenderOptions()
		if err != nil {
			return err
		}
		var names []string
		if format != "text" {
			names = []string{name}
		}
		return renderVariables(cmd.OutOrStdout(), s, s.Global(), names, ro)
	},
}

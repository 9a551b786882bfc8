package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/agentic-research/vartree/internal/codec"
	"github.com/agentic-research/vartree/internal/nv"
)

var (
	renderVars []string
	listPrefix string
	jsonVar    string
	jsonQuery  string
	jsonIndent int
)

func init() {
	renderCmd.Flags().StringArrayVar(&renderVars, "var", nil, "Variable to render (repeatable; default all)")
	listCmd.Flags().StringVar(&listPrefix, "prefix", "", "Walk only this variable and its members")
	jsonCmd.Flags().StringVar(&jsonVar, "var", "", "Variable to convert (default all)")
	jsonCmd.Flags().StringVarP(&jsonQuery, "query", "q", "", "JSONPath expression to select from the result")
	jsonCmd.Flags().IntVar(&jsonIndent, "json-indent", 2, "JSON indent width, 0 for one line")
	rootCmd.AddCommand(renderCmd, listCmd, jsonCmd)
}

var renderCmd = &cobra.Command{
	Use:   "render [file...]",
	Short: "Read assignments and print them in canonical form",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadInputs(args, cmd.InOrStdin())
		if err != nil {
			return err
		}
		ro, err := opts.RenderOptions()
		if err != nil {
			return err
		}
		return renderVariables(cmd.OutOrStdout(), s, s.Global(), renderVars, ro)
	},
}

func renderVariables(w io.Writer, s *nv.Store, sc *nv.Scope, names []string, ro nv.RenderOptions) error {
	entries, err := selected(s, sc, names)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := s.Render(w, e, ro); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
	return nil
}

var listCmd = &cobra.Command{
	Use:   "list [file...]",
	Short: "Print every variable name the walk visits",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadInputs(args, cmd.InOrStdin())
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		var werr error
		err = s.WalkDir(s.Global(), listPrefix, func(name string) bool {
			_, werr = fmt.Fprintln(w, name)
			return werr == nil
		})
		if err != nil {
			return err
		}
		return werr
	},
}

var jsonCmd = &cobra.Command{
	Use:   "json [file...]",
	Short: "Print variables as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadInputs(args, cmd.InOrStdin())
		if err != nil {
			return err
		}
		var v any
		if jsonVar != "" {
			e, ok := s.Lookup(s.Global(), jsonVar)
			if !ok {
				return fmt.Errorf("%s: %w", jsonVar, nv.ErrNotFound)
			}
			v = codec.ToValue(e)
		} else {
			v = codec.ScopeValue(s, s.Global())
		}
		if jsonQuery != "" {
			got, err := codec.Query(v, jsonQuery)
			if err != nil {
				return err
			}
			v = got
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), codec.JSON(v, jsonIndent))
		return err
	},
}

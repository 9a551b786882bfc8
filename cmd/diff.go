package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"
)

var (
	diffAdded   = color.New(color.FgGreen).SprintFunc()
	diffRemoved = color.New(color.FgRed).SprintFunc()
	diffHunk    = color.New(color.FgCyan).SprintFunc()
)

var diffExitCode bool

func init() {
	diffCmd.Flags().BoolVar(&diffExitCode, "exit-code", false, "Fail when the inputs differ")
	rootCmd.AddCommand(diffCmd)
}

var errDiffer = errors.New("inputs differ")

var diffCmd = &cobra.Command{
	Use:   "diff OLD NEW",
	Short: "Compare the canonical forms of two inputs",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ro, err := opts.RenderOptions()
		if err != nil {
			return err
		}
		var texts [2]string
		for i, path := range args {
			s, err := loadInputs([]string{path}, cmd.InOrStdin())
			if err != nil {
				return err
			}
			var b strings.Builder
			if err := renderVariables(&b, s, s.Global(), nil, ro); err != nil {
				return err
			}
			texts[i] = b.String()
		}
		text := unifiedDiff(texts[0], texts[1], args[0], args[1])
		if text == "" {
			return nil
		}
		fmt.Fprint(cmd.OutOrStdout(), colorDiff(text))
		if diffExitCode {
			return errDiffer
		}
		return nil
	},
}

func unifiedDiff(before, after, from, to string) string {
	before = strings.TrimRight(before, "\n")
	after = strings.TrimRight(after, "\n")
	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(before + "\n"),
		B:        difflib.SplitLines(after + "\n"),
		FromFile: from,
		ToFile:   to,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return ""
	}
	return text
}

func colorDiff(text string) string {
	lines := strings.SplitAfter(text, "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			lines[i] = paint(diffAdded, line)
		case strings.HasPrefix(line, "-"):
			lines[i] = paint(diffRemoved, line)
		case strings.HasPrefix(line, "@@"):
			lines[i] = paint(diffHunk, line)
		}
	}
	return strings.Join(lines, "")
}

func paint(fn func(a ...any) string, line string) string {
	body, ok := strings.CutSuffix(line, "\n")
	if !ok {
		return fn(line)
	}
	return fn(body) + "\n"
}

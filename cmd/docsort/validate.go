package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sokoine/go-docsort/core/template"
)

var validateCmd = &cobra.Command{
	Use:   "validate <template>",
	Short: "Parse a template and report syntax errors",
	Long: `Parse a template without evaluating it. Syntax errors are printed
with a caret under the offending byte offset, and the command exits
non-zero.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source := args[0]
		tpl, err := template.Parse(source)
		if err != nil {
			var syn *template.SyntaxError
			if errors.As(err, &syn) {
				fmt.Fprintln(cmd.ErrOrStderr(), source)
				fmt.Fprintln(cmd.ErrOrStderr(), strings.Repeat(" ", syn.Offset)+"^")
			}
			return err
		}

		fields := tpl.Fields()
		fmt.Fprintf(cmd.OutOrStdout(), "template OK, references %d field(s)\n", len(fields))
		for _, field := range fields {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", field)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

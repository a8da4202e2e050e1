package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sokoine/go-docsort/core/template"
	"github.com/sokoine/go-docsort/excel"
	"github.com/sokoine/go-docsort/organizer"
)

var (
	renderSets  []string
	renderMatch []string
)

var renderCmd = &cobra.Command{
	Use:   "render <template>",
	Short: "Evaluate a template and print the result",
	Long: `Evaluate a template against field values given with --set, against
the spreadsheet row matched by --match values, or both. --set wins when a
key appears in both.

Examples:
  docsort render '{name|str.upper}.pdf' --set 'name=Acme Corp'
  docsort render '{FOURNISSEUR} - {FACTURE}.pdf' --match ACME --match 'N° 1042'`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)
	renderCmd.Flags().StringArrayVar(&renderSets, "set", nil,
		"field value as key=value; repeatable")
	renderCmd.Flags().StringArrayVar(&renderMatch, "match", nil,
		"filter value for the configured spreadsheet columns, in order; repeatable")
}

func runRender(cmd *cobra.Command, args []string) error {
	row := template.Row{}

	if len(renderMatch) > 0 {
		cfg, err := configManager()
		if err != nil {
			return err
		}
		s := cfg.Settings()
		sheet, err := excel.NewManager(logger).LoadSheet(s.ExcelFile, s.ExcelSheet)
		if err != nil {
			return err
		}
		matched, _, err := sheet.FindMatchingRow(s.FilterColumns(), renderMatch)
		if err != nil {
			return err
		}
		row = organizer.TemplateData(matched, s)
	}

	for _, pair := range renderSets {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("--set expects key=value, got %q", pair)
		}
		row[key] = value
	}

	out, err := template.Render(args[0], row)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

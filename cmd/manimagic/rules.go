package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/manimagic/manimagic/pkg/report"
	"github.com/manimagic/manimagic/pkg/rules"
)

// --- rules ---

var rulesWidth int

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect the compatibility rule table",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the active rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := activeRules()
		if err != nil {
			return err
		}
		report.New(cmd.OutOrStdout()).Rules(t)
		return nil
	},
}

var rulesSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Export the rule table JSON Schema to stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := rules.GenerateJSONSchema()
		if err != nil {
			return fmt.Errorf("generate schema: %w", err)
		}
		var out json.RawMessage = data
		formatted, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			formatted = data
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(formatted))
		return nil
	},
}

var rulesDocsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Show documentation for every active rule",
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := activeRules()
		if err != nil {
			return err
		}
		out, err := report.RenderMarkdown(report.RulesMarkdown(t.Table()), rulesWidth)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

// activeRules compiles the table the configuration selects.
func activeRules() (*rules.CompiledTable, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return rules.Open(cfg.Rules)
}

func init() {
	rulesDocsCmd.Flags().IntVar(&rulesWidth, "width", 80, "Wrap width (0 disables wrapping)")

	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesSchemaCmd)
	rulesCmd.AddCommand(rulesDocsCmd)
}

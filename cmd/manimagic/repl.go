package main

import (
	"github.com/spf13/cobra"

	"github.com/manimagic/manimagic/pkg/repl"
)

// --- repl ---

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Check scene code interactively",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		v, err := cfg.NewValidator(logger)
		if err != nil {
			return err
		}
		return repl.NewWithOutput(v, cmd.OutOrStdout()).Run(contextOrBackground(cmd))
	},
}

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/manimagic/manimagic/pkg/report"
	"github.com/manimagic/manimagic/pkg/validator"
)

// errCheckFailed signals a failing check whose diagnostics were already
// printed.
var errCheckFailed = errors.New("check failed")

// --- check ---

var (
	checkJSON   bool
	checkStrict bool
)

var checkCmd = &cobra.Command{
	Use:   "check [scene.py...]",
	Short: "Check scene scripts for syntax errors and Manim incompatibilities",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCheck,
}

// fileResult is one entry of `check --json` output.
type fileResult struct {
	File   string           `json:"file"`
	Result validator.Result `json:"result"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	v, err := cfg.NewValidator(logger)
	if err != nil {
		return err
	}

	results := make([]fileResult, 0, len(args))
	sources := make(map[string]string, len(args))
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		sources[path] = string(data)
		results = append(results, fileResult{File: path, Result: v.Validate(string(data))})
	}

	out := cmd.OutOrStdout()
	if checkJSON {
		if err := writeJSON(out, results); err != nil {
			return err
		}
	} else {
		p := report.New(out)
		for _, r := range results {
			p.Result(r.File, sources[r.File], r.Result)
		}
		if len(results) > 1 {
			errs, warns := tally(results)
			p.Summary(len(results), errs, warns)
		}
	}

	if failed(results, checkStrict) {
		return errCheckFailed
	}
	return nil
}

func tally(results []fileResult) (errs, warns int) {
	for _, r := range results {
		switch {
		case r.Result.Valid:
		case r.Result.Severity == validator.SeverityError:
			errs++
		default:
			warns++
		}
	}
	return errs, warns
}

// failed reports whether the check should exit non-zero: on any error,
// and on warnings too when strict.
func failed(results []fileResult, strict bool) bool {
	errs, warns := tally(results)
	return errs > 0 || (strict && warns > 0)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --- fix ---

var fixWrite bool

var fixCmd = &cobra.Command{
	Use:   "fix [scene.py]",
	Short: "Apply mechanical compatibility fixes",
	Long:  "Rewrite lines flagged by compatibility rules that have a safe fix. Prints the result, or rewrites the file with --write.",
	Args:  cobra.ExactArgs(1),
	RunE:  runFix,
}

func runFix(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	v, err := cfg.NewValidator(logger)
	if err != nil {
		return err
	}

	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	res := v.Fix(string(data))

	if !fixWrite {
		fmt.Fprint(cmd.OutOrStdout(), res.Source)
		return nil
	}
	if !res.Changed {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: nothing to fix\n", path)
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(res.Source), info.Mode().Perm()); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s: applied %v\n", path, res.Applied)
	return nil
}

func init() {
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "Output results as JSON")
	checkCmd.Flags().BoolVar(&checkStrict, "strict", false, "Exit non-zero on warnings too")

	fixCmd.Flags().BoolVarP(&fixWrite, "write", "w", false, "Rewrite the file in place")
}

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/ledgersync/internal/merge"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Strategy string
	Profile  string
	Yes      bool
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Apply a backup document to a profile",
		Long: `Import the source profile of a backup document.

Strategies:
  clone    create a new profile "<name> (imported)" holding a copy
  replace  delete everything in --profile, then insert the copy
  merge    add to --profile only what it does not already have

The whole import is one transaction. Documents with warnings are refused
unless --yes is given.

Example:
  ledgersync import alice.json --strategy clone
  ledgersync import alice.json --strategy merge --profile p2 --yes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Strategy, "strategy", "", "clone, replace or merge (required)")
	cmd.Flags().StringVar(&opts.Profile, "profile", "", "target profile for replace and merge")
	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "accept warnings")
	_ = cmd.MarkFlagRequired("strategy")

	return cmd
}

type reportView struct {
	*merge.Report
}

func (v reportView) WriteText(w io.Writer) error {
	r := v.Report
	fmt.Fprintf(w, "Imported %s (%s) into %s using %s\n", r.SourceProfileID, r.SourceProfileName, r.TargetProfileID, r.Strategy)
	rows := []struct {
		name                    string
		added, skipped, removed int
	}{
		{"categories", r.Added.Categories, r.Skipped.Categories, r.Removed.Categories},
		{"debts", r.Added.Debts, r.Skipped.Debts, r.Removed.Debts},
		{"transactions", r.Added.Transactions, r.Skipped.Transactions, r.Removed.Transactions},
		{"budgets", r.Added.Budgets, r.Skipped.Budgets, r.Removed.Budgets},
		{"payments", r.Added.Payments, r.Skipped.Payments, r.Removed.Payments},
		{"debt payments", r.Added.DebtPayments, r.Skipped.DebtPayments, r.Removed.DebtPayments},
	}
	for _, row := range rows {
		fmt.Fprintf(w, "  %-14s added %d, skipped %d", row.name, row.added, row.skipped)
		if r.Strategy == merge.StrategyReplace {
			fmt.Fprintf(w, ", removed %d", row.removed)
		}
		fmt.Fprintln(w)
	}
	if r.Updated.Budgets > 0 {
		fmt.Fprintf(w, "  budgets updated: %d\n", r.Updated.Budgets)
	}
	if len(r.IgnoredProfiles) > 0 {
		fmt.Fprintf(w, "  ignored profiles: %s\n", strings.Join(r.IgnoredProfiles, ", "))
	}
	return nil
}

func runImport(opts *ImportOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	strategy, err := merge.ParseStrategy(opts.Strategy)
	if err != nil {
		return invalidInput(f, err.Error())
	}
	if strategy != merge.StrategyClone && opts.Profile == "" {
		return invalidInput(f, fmt.Sprintf("--profile is required for %s", strategy))
	}

	v, err := readBackup(f, path)
	if err != nil {
		return err
	}
	if len(v.Warnings) > 0 && !opts.Yes {
		_ = f.Error(ErrCodeConfirm, "backup has warnings; re-run with --yes to import anyway",
			ValidationResult{Warnings: v.Warnings})
		return NewExitError(ExitFailure, ErrCodeConfirm+": warnings not confirmed")
	}

	st, err := opts.openStore(f)
	if err != nil {
		return err
	}
	defer st.Close()

	eng := merge.New(st, merge.WithClock(opts.now))
	report, err := eng.Apply(cmd.Context(), v, strategy, opts.Profile)
	if err != nil {
		return f.Fail("import", err)
	}
	return f.Success(reportView{report})
}

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/ledgersync/internal/backup"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a backup document without importing it",
		Long: `Validate a backup document.

Reports structural errors, which make the document unusable, and warnings,
which an import must confirm with --yes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid             bool           `json:"valid"`
	SourceProfileID   string         `json:"sourceProfileId,omitempty"`
	SourceProfileName string         `json:"sourceProfileName,omitempty"`
	Records           map[string]int `json:"records,omitempty"`
	IgnoredProfiles   []string       `json:"ignoredProfiles,omitempty"`
	Warnings          []string       `json:"warnings,omitempty"`
	Errors            []backup.Issue `json:"errors,omitempty"`
}

func (r ValidationResult) WriteText(w io.Writer) error {
	if r.Valid {
		fmt.Fprintf(w, "✓ Backup valid: source profile %s (%s)\n", r.SourceProfileID, r.SourceProfileName)
		src := r.Records
		fmt.Fprintf(w, "  %d categories, %d transactions, %d budgets, %d payments, %d debts, %d debt payments\n",
			src["categories"], src["transactions"], src["budgets"], src["payments"], src["debts"], src["debtPayments"])
	}
	for _, is := range r.Errors {
		fmt.Fprintf(w, "  ✗ %s\n", is)
	}
	for _, warn := range r.Warnings {
		fmt.Fprintf(w, "  ! %s\n", warn)
	}
	return nil
}

// readBackup reads and validates a document file.
func readBackup(f *OutputFormatter, path string) (*backup.Validated, error) {
	file, err := os.Open(path)
	if err != nil {
		_ = f.Error(ErrCodeIO, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to open backup", err)
	}
	defer file.Close()

	raw, err := backup.Read(file, backup.FormatFromPath(path))
	if err != nil {
		_ = f.Error(ErrCodeInvalidBackup, err.Error(), nil)
		return nil, WrapExitError(ExitFailure, ErrCodeInvalidBackup+": unreadable backup", err)
	}
	f.VerboseLog("Read %d bytes from %s", len(raw), path)

	v, err := backup.Validate(raw)
	if err != nil {
		var ve *backup.ValidationError
		if errors.As(err, &ve) {
			_ = f.Error(ErrCodeInvalidBackup,
				fmt.Sprintf("backup failed validation with %d error(s)", len(ve.Errors)),
				ValidationResult{Errors: ve.Errors, Warnings: ve.Warnings})
			return nil, WrapExitError(ExitFailure, ErrCodeInvalidBackup+": invalid backup", err)
		}
		return nil, f.Fail("validate backup", err)
	}
	return v, nil
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	v, err := readBackup(f, path)
	if err != nil {
		return err
	}
	return f.Success(ValidationResult{
		Valid:             true,
		SourceProfileID:   v.SourceProfileID,
		SourceProfileName: v.SourceProfileName,
		Records:           v.Source().Count(),
		IgnoredProfiles:   v.IgnoredProfiles,
		Warnings:          v.Warnings,
	})
}

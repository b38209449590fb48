package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/ledgersync/internal/ledger"
)

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	var profile string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report references that do not resolve inside a profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, profile, cmd)
		},
	}
	cmd.Flags().StringVar(&profile, "profile", "", "profile to check (default: config profile)")
	return cmd
}

type checkResult struct {
	ProfileID  string             `json:"profileId"`
	Violations []ledger.Violation `json:"violations"`
}

func (r checkResult) WriteText(w io.Writer) error {
	if len(r.Violations) == 0 {
		_, err := fmt.Fprintf(w, "✓ Profile %s: all references resolve\n", r.ProfileID)
		return err
	}
	for _, v := range r.Violations {
		fmt.Fprintf(w, "  ✗ %s\n", v)
	}
	return nil
}

func runCheck(opts *RootOptions, profileFlag string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	profile, err := opts.profile(f, profileFlag)
	if err != nil {
		return err
	}

	st, err := opts.openStore(f)
	if err != nil {
		return err
	}
	defer st.Close()

	if _, err := st.Scope().Profiles().Get(cmd.Context(), profile); err != nil {
		return f.Fail("check", err)
	}
	violations, err := ledger.CheckIntegrity(cmd.Context(), st.Scope(), profile)
	if err != nil {
		return f.Fail("check", err)
	}

	res := checkResult{ProfileID: profile, Violations: violations}
	if len(violations) > 0 {
		_ = f.Error(ErrCodeIntegrity, fmt.Sprintf("%d dangling reference(s)", len(violations)), res)
		return NewExitError(ExitFailure, fmt.Sprintf("%s: %d dangling reference(s)", ErrCodeIntegrity, len(violations)))
	}
	if res.Violations == nil {
		res.Violations = []ledger.Violation{}
	}
	return f.Success(res)
}

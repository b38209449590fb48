package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/ledgersync/internal/ledger"
)

// NewProfileCommand creates the profile command group.
func NewProfileCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage ledger profiles",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "add <name>",
		Short: "Create a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfileAdd(rootOpts, args[0], cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "ls",
		Short: "List profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfileList(rootOpts, cmd)
		},
	})
	return cmd
}

type profileView struct {
	ledger.Profile
}

func (v profileView) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "Created profile %s (%s)\n", v.ID, v.Name)
	return err
}

type profileList []ledger.Profile

func (l profileList) WriteText(w io.Writer) error {
	if len(l) == 0 {
		_, err := fmt.Fprintln(w, "No profiles.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCREATED")
	for _, p := range l {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.ID, p.Name, p.CreatedAt.Format("2006-01-02"))
	}
	return tw.Flush()
}

func runProfileAdd(opts *RootOptions, name string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	name = strings.TrimSpace(name)
	if name == "" {
		return invalidInput(f, "profile name is empty")
	}

	st, err := opts.openStore(f)
	if err != nil {
		return err
	}
	defer st.Close()

	p, err := st.Scope().Profiles().Insert(cmd.Context(), ledger.Profile{Name: name, CreatedAt: opts.now()})
	if err != nil {
		return f.Fail("create profile", err)
	}
	return f.Success(profileView{p})
}

func runProfileList(opts *RootOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	st, err := opts.openStore(f)
	if err != nil {
		return err
	}
	defer st.Close()

	profiles, err := st.Scope().Profiles().List(cmd.Context())
	if err != nil {
		return f.Fail("list profiles", err)
	}
	return f.Success(profileList(profiles))
}

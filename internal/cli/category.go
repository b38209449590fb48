package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/ledgersync/internal/ledger"
)

// CategoryOptions holds flags for the category subcommands.
type CategoryOptions struct {
	*RootOptions
	Profile string
	Type    string
}

// NewCategoryCommand creates the category command group.
func NewCategoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CategoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "category",
		Short: "Manage income and expense categories",
	}
	cmd.PersistentFlags().StringVar(&opts.Profile, "profile", "", "profile (default: config profile)")

	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCategoryAdd(opts, args[0], cmd)
		},
	}
	add.Flags().StringVar(&opts.Type, "type", string(ledger.CategoryExpense), "expense or income")

	ls := &cobra.Command{
		Use:   "ls",
		Short: "List categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCategoryList(opts, cmd)
		},
	}

	cmd.AddCommand(add, ls)
	return cmd
}

type categoryView struct {
	ledger.Category
}

func (v categoryView) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "Created %s category %s (%s)\n", v.Type, v.ID, v.Name)
	return err
}

type categoryList []ledger.Category

func (l categoryList) WriteText(w io.Writer) error {
	if len(l) == 0 {
		_, err := fmt.Fprintln(w, "No categories.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tNAME")
	for _, c := range l {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ID, c.Type, c.Name)
	}
	return tw.Flush()
}

func runCategoryAdd(opts *CategoryOptions, name string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	profile, err := opts.profile(f, opts.Profile)
	if err != nil {
		return err
	}
	st, err := opts.openStore(f)
	if err != nil {
		return err
	}
	defer st.Close()

	c, err := ledger.AddCategory(cmd.Context(), st, ledger.Category{
		ProfileID: profile,
		Type:      ledger.CategoryType(strings.ToLower(opts.Type)),
		Name:      name,
	}, opts.now())
	if err != nil {
		return f.Fail("add category", err)
	}
	return f.Success(categoryView{c})
}

func runCategoryList(opts *CategoryOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	profile, err := opts.profile(f, opts.Profile)
	if err != nil {
		return err
	}
	st, err := opts.openStore(f)
	if err != nil {
		return err
	}
	defer st.Close()

	cats, err := ledger.ListCategories(cmd.Context(), st.Scope(), profile)
	if err != nil {
		return f.Fail("list categories", err)
	}
	return f.Success(categoryList(cats))
}

package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/ledgersync/internal/ledger"
)

// BudgetOptions holds flags for the budget subcommands.
type BudgetOptions struct {
	*RootOptions
	Profile  string
	Month    string
	Category string
	Limit    string
	Currency string
	Top      int
}

// NewBudgetCommand creates the budget command group.
func NewBudgetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BudgetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Set monthly spending limits and see how much is used",
	}
	cmd.PersistentFlags().StringVar(&opts.Profile, "profile", "", "profile (default: config profile)")
	cmd.PersistentFlags().StringVar(&opts.Month, "month", "", "month as YYYY-MM (default this month)")

	set := &cobra.Command{
		Use:   "set",
		Short: "Create or change the budget of a category for a month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBudgetSet(opts, cmd)
		},
	}
	set.Flags().StringVar(&opts.Category, "category", "", "expense category id")
	set.Flags().StringVar(&opts.Limit, "limit", "", "spending limit")
	set.Flags().StringVar(&opts.Currency, "currency", "", "ISO 4217 code (default UAH)")
	_ = set.MarkFlagRequired("category")
	_ = set.MarkFlagRequired("limit")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show spending against each budget, most used first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBudgetStatus(opts, cmd)
		},
	}
	status.Flags().IntVar(&opts.Top, "top", 0, "show only the most used budgets")

	cmd.AddCommand(set, status)
	return cmd
}

type budgetSetView struct {
	ledger.Budget
	Created bool `json:"created"`
}

func (v budgetSetView) WriteText(w io.Writer) error {
	verb := "Updated"
	if v.Created {
		verb = "Created"
	}
	_, err := fmt.Fprintf(w, "%s budget %s for %s: %s\n", verb, v.ID, v.Month, money(v.Limit, v.Currency))
	return err
}

type budgetStatusList []ledger.BudgetStatus

func (l budgetStatusList) WriteText(w io.Writer) error {
	if len(l) == 0 {
		_, err := fmt.Fprintln(w, "No budgets for this month.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tSPENT\tLIMIT\tUSED\tSTATE")
	for _, s := range l {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s%%\t%s\n",
			s.Category, money(s.Spent, s.Currency), money(s.Limit, s.Currency), s.Percent, s.State)
	}
	return tw.Flush()
}

func (o *BudgetOptions) month(f *OutputFormatter) (string, error) {
	if o.Month == "" {
		return o.now().Format("2006-01"), nil
	}
	if _, err := time.Parse("2006-01", o.Month); err != nil {
		return "", invalidInput(f, fmt.Sprintf("--month: %q is not YYYY-MM", o.Month))
	}
	return o.Month, nil
}

func runBudgetSet(opts *BudgetOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	profile, err := opts.profile(f, opts.Profile)
	if err != nil {
		return err
	}
	month, err := opts.month(f)
	if err != nil {
		return err
	}
	limit, err := parseAmount(f, "limit", opts.Limit)
	if err != nil {
		return err
	}
	st, err := opts.openStore(f)
	if err != nil {
		return err
	}
	defer st.Close()

	b, created, err := ledger.SetBudget(cmd.Context(), st, ledger.Budget{
		ProfileID:  profile,
		Month:      month,
		CategoryID: ledger.Ref(opts.Category),
		Limit:      limit,
		Currency:   opts.Currency,
	})
	if err != nil {
		return f.Fail("set budget", err)
	}
	return f.Success(budgetSetView{Budget: b, Created: created})
}

func runBudgetStatus(opts *BudgetOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	profile, err := opts.profile(f, opts.Profile)
	if err != nil {
		return err
	}
	month, err := opts.month(f)
	if err != nil {
		return err
	}
	st, err := opts.openStore(f)
	if err != nil {
		return err
	}
	defer st.Close()

	statuses, err := ledger.BudgetAlerts(cmd.Context(), st.Scope(), profile, month, opts.Top)
	if err != nil {
		return f.Fail("budget status", err)
	}
	return f.Success(budgetStatusList(statuses))
}

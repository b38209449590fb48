package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/ledgersync/internal/ledger"
)

// PaymentOptions holds flags for the payment reminder subcommands.
type PaymentOptions struct {
	*RootOptions
	Profile  string
	Title    string
	Amount   string
	Due      string
	Category string
	Limit    int
}

// NewPaymentCommand creates the payment command group.
func NewPaymentCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PaymentOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "payment",
		Short: "Plan upcoming payments",
	}
	cmd.PersistentFlags().StringVar(&opts.Profile, "profile", "", "profile (default: config profile)")

	add := &cobra.Command{
		Use:   "add",
		Short: "Plan a payment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPaymentAdd(opts, cmd)
		},
	}
	add.Flags().StringVar(&opts.Title, "title", "", "what the payment is for")
	add.Flags().StringVar(&opts.Amount, "amount", "", "amount due")
	add.Flags().StringVar(&opts.Due, "due", "", "due date")
	add.Flags().StringVar(&opts.Category, "category", "", "category id")
	_ = add.MarkFlagRequired("title")
	_ = add.MarkFlagRequired("amount")
	_ = add.MarkFlagRequired("due")

	done := &cobra.Command{
		Use:   "done <payment-id>",
		Short: "Mark a planned payment as paid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPaymentDone(opts, args[0], cmd)
		},
	}

	upcoming := &cobra.Command{
		Use:   "upcoming",
		Short: "List planned payments by due date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPaymentUpcoming(opts, cmd)
		},
	}
	upcoming.Flags().IntVar(&opts.Limit, "limit", 0, "show at most this many payments")

	cmd.AddCommand(add, done, upcoming)
	return cmd
}

type paymentView struct {
	ledger.Payment
}

func (v paymentView) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "Payment %s (%s) due %s is %s\n", v.ID, v.Title, v.DueDate, v.Status)
	return err
}

type upcomingList []ledger.UpcomingPayment

func (l upcomingList) WriteText(w io.Writer) error {
	if len(l) == 0 {
		_, err := fmt.Fprintln(w, "No planned payments.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDUE\tTITLE\tAMOUNT\t")
	for _, p := range l {
		flag := ""
		if p.Overdue {
			flag = "overdue"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.DueDate, p.Title, p.Amount, flag)
	}
	return tw.Flush()
}

func runPaymentAdd(opts *PaymentOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	profile, err := opts.profile(f, opts.Profile)
	if err != nil {
		return err
	}
	amount, err := parseAmount(f, "amount", opts.Amount)
	if err != nil {
		return err
	}
	due, err := parseDate(f, "due", opts.Due)
	if err != nil {
		return err
	}
	st, err := opts.openStore(f)
	if err != nil {
		return err
	}
	defer st.Close()

	p, err := ledger.AddPayment(cmd.Context(), st, ledger.Payment{
		ProfileID:  profile,
		Title:      opts.Title,
		Amount:     amount,
		DueDate:    due,
		CategoryID: ledger.Ref(opts.Category),
	}, opts.now())
	if err != nil {
		return f.Fail("add payment", err)
	}
	return f.Success(paymentView{p})
}

func runPaymentDone(opts *PaymentOptions, id string, cmd *cobra.Command) error {
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

	p, err := ledger.CompletePayment(cmd.Context(), st, profile, id)
	if err != nil {
		return f.Fail("complete payment", err)
	}
	return f.Success(paymentView{p})
}

func runPaymentUpcoming(opts *PaymentOptions, cmd *cobra.Command) error {
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

	payments, err := ledger.UpcomingPayments(cmd.Context(), st.Scope(), profile, opts.today(), opts.Limit)
	if err != nil {
		return f.Fail("upcoming payments", err)
	}
	return f.Success(upcomingList(payments))
}

package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/roach88/ledgersync/internal/ledger"
)

// DebtOptions holds flags for the debt subcommands.
type DebtOptions struct {
	*RootOptions
	Profile string

	// add
	Direction    string
	Counterparty string
	Principal    string
	Currency     string
	Start        string
	Due          string

	// pay / unpay
	Amount            string
	Date              string
	Note              string
	WithTransaction   bool
	Category          string
	DeleteTransaction bool
}

// NewDebtCommand creates the debt command group.
func NewDebtCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DebtOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "debt",
		Short: "Track money lent and borrowed",
	}
	cmd.PersistentFlags().StringVar(&opts.Profile, "profile", "", "profile (default: config profile)")

	add := &cobra.Command{
		Use:   "add",
		Short: "Record a debt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDebtAdd(opts, cmd)
		},
	}
	add.Flags().StringVar(&opts.Direction, "direction", string(ledger.DebtIOwe), "i_owe or owed_to_me")
	add.Flags().StringVar(&opts.Counterparty, "counterparty", "", "who the debt is with")
	add.Flags().StringVar(&opts.Principal, "principal", "", "amount borrowed or lent")
	add.Flags().StringVar(&opts.Currency, "currency", "", "ISO 4217 code (default UAH)")
	add.Flags().StringVar(&opts.Start, "start", "", "start date (default today)")
	add.Flags().StringVar(&opts.Due, "due", "", "due date")
	_ = add.MarkFlagRequired("counterparty")
	_ = add.MarkFlagRequired("principal")

	pay := &cobra.Command{
		Use:   "pay <debt-id>",
		Short: "Record a repayment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDebtPay(opts, args[0], cmd)
		},
	}
	pay.Flags().StringVar(&opts.Amount, "amount", "", "amount repaid")
	pay.Flags().StringVar(&opts.Date, "date", "", "payment date (default today)")
	pay.Flags().StringVar(&opts.Note, "note", "", "free-text note")
	pay.Flags().BoolVar(&opts.WithTransaction, "with-transaction", false, "also record the money movement as a transaction")
	pay.Flags().StringVar(&opts.Category, "category", "", "category for the linked transaction")
	_ = pay.MarkFlagRequired("amount")

	unpay := &cobra.Command{
		Use:   "unpay <payment-id>",
		Short: "Delete a repayment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDebtUnpay(opts, args[0], cmd)
		},
	}
	unpay.Flags().BoolVar(&opts.DeleteTransaction, "delete-transaction", false, "also delete the linked transaction")

	ls := &cobra.Command{
		Use:   "ls",
		Short: "List debts with paid and remaining amounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDebtList(opts, cmd)
		},
	}

	cmd.AddCommand(add, pay, unpay, ls)
	return cmd
}

type debtView struct {
	ledger.Debt
}

func (v debtView) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "Created debt %s: %s %s (%s)\n",
		v.ID, v.Counterparty, money(v.Principal, v.Currency), v.Status)
	return err
}

type debtPaymentView struct {
	ledger.DebtPayment
	DebtStatus ledger.DebtStatus `json:"debtStatus"`
}

func (v debtPaymentView) WriteText(w io.Writer) error {
	fmt.Fprintf(w, "Recorded payment %s of %s on %s; debt is now %s\n", v.ID, v.Amount, v.Date, v.DebtStatus)
	if v.TransactionID != nil {
		fmt.Fprintf(w, "Linked transaction %s\n", *v.TransactionID)
	}
	return nil
}

type removedView struct {
	ID string `json:"id"`
}

func (v removedView) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "Removed %s\n", v.ID)
	return err
}

type debtList []ledger.DebtSummary

func (l debtList) WriteText(w io.Writer) error {
	if len(l) == 0 {
		_, err := fmt.Fprintln(w, "No debts.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCOUNTERPARTY\tDIRECTION\tPRINCIPAL\tPAID\tREMAINING\tDUE\tSTATUS")
	for _, d := range l {
		due := ledger.Deref(d.DueDate)
		if due == "" {
			due = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			d.ID, d.Counterparty, d.Direction,
			money(d.Principal, d.Currency), money(d.Paid, d.Currency), money(d.Remaining, d.Currency),
			due, d.Status)
	}
	return tw.Flush()
}

func runDebtAdd(opts *DebtOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	profile, err := opts.profile(f, opts.Profile)
	if err != nil {
		return err
	}
	principal, err := parseAmount(f, "principal", opts.Principal)
	if err != nil {
		return err
	}
	start := opts.today()
	if opts.Start != "" {
		if start, err = parseDate(f, "start", opts.Start); err != nil {
			return err
		}
	}
	var due *string
	if opts.Due != "" {
		d, err := parseDate(f, "due", opts.Due)
		if err != nil {
			return err
		}
		due = &d
	}

	st, err := opts.openStore(f)
	if err != nil {
		return err
	}
	defer st.Close()

	d := ledger.Debt{
		ProfileID:    profile,
		Direction:    ledger.DebtDirection(strings.ToLower(opts.Direction)),
		Counterparty: strings.TrimSpace(opts.Counterparty),
		Principal:    principal,
		Currency:     ledger.NormalizeCurrency(opts.Currency),
		StartDate:    start,
		DueDate:      due,
		CreatedAt:    opts.now(),
	}
	d.Status = ledger.DebtStatusFor(d.Principal, decimal.Zero, d.DueDate, opts.today())
	if err := d.Validate(); err != nil {
		return f.Fail("add debt", err)
	}
	if _, err := st.Scope().Profiles().Get(cmd.Context(), profile); err != nil {
		return f.Fail("add debt", err)
	}
	d, err = st.Scope().Debts().Insert(cmd.Context(), d)
	if err != nil {
		return f.Fail("add debt", err)
	}
	return f.Success(debtView{d})
}

func runDebtPay(opts *DebtOptions, debtID string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	profile, err := opts.profile(f, opts.Profile)
	if err != nil {
		return err
	}
	amount, err := parseAmount(f, "amount", opts.Amount)
	if err != nil {
		return err
	}
	date := opts.today()
	if opts.Date != "" {
		if date, err = parseDate(f, "date", opts.Date); err != nil {
			return err
		}
	}

	st, err := opts.openStore(f)
	if err != nil {
		return err
	}
	defer st.Close()

	p, err := ledger.AddDebtPayment(cmd.Context(), st, ledger.DebtPaymentInput{
		ProfileID:             profile,
		DebtID:                debtID,
		Date:                  date,
		Amount:                amount,
		Note:                  opts.Note,
		CreateTransaction:     opts.WithTransaction,
		TransactionCategoryID: ledger.Ref(opts.Category),
	}, opts.now())
	if err != nil {
		return f.Fail("pay debt", err)
	}
	debt, err := st.Scope().Debts().Get(cmd.Context(), debtID)
	if err != nil {
		return f.Fail("pay debt", err)
	}
	return f.Success(debtPaymentView{DebtPayment: p, DebtStatus: debt.Status})
}

func runDebtUnpay(opts *DebtOptions, paymentID string, cmd *cobra.Command) error {
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

	if err := ledger.DeleteDebtPayment(cmd.Context(), st, profile, paymentID, opts.DeleteTransaction, opts.now()); err != nil {
		return f.Fail("unpay debt", err)
	}
	return f.Success(removedView{ID: paymentID})
}

func runDebtList(opts *DebtOptions, cmd *cobra.Command) error {
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

	debts, err := ledger.DebtSummaries(cmd.Context(), st.Scope(), profile, opts.today())
	if err != nil {
		return f.Fail("list debts", err)
	}
	return f.Success(debtList(debts))
}

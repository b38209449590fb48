package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/ledgersync/internal/ledger"
	"github.com/roach88/ledgersync/internal/reconcile"
	"github.com/roach88/ledgersync/internal/store"
)

// TxOptions holds flags shared by the tx subcommands.
type TxOptions struct {
	*RootOptions
	Profile   string
	Wait      bool
	Amount    string
	Direction string
	Currency  string
	Category  string
	Note      string
	At        string
}

// NewTxCommand creates the tx command group.
func NewTxCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TxOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Work with synced transactions",
		Long: `Add, edit and remove transactions mirrored from the remote ledger.

Changes are committed locally at once and pushed later by "sync push".
With --wait the change is pushed immediately and the command returns when
the remote ledger has confirmed it.`,
	}
	cmd.PersistentFlags().StringVar(&opts.Profile, "profile", "", "profile (default: config or token profile)")

	add := &cobra.Command{
		Use:   "add",
		Short: "Record a transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTxAdd(opts, cmd)
		},
	}
	addFieldFlags(add, opts)
	_ = add.MarkFlagRequired("amount")

	edit := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTxEdit(opts, args[0], cmd)
		},
	}
	addFieldFlags(edit, opts)

	rm := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTxRemove(opts, args[0], cmd)
		},
	}
	rm.Flags().BoolVar(&opts.Wait, "wait", false, "push now and wait for remote confirmation")

	ls := &cobra.Command{
		Use:   "ls",
		Short: "List transactions in the local replica",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTxList(opts, cmd)
		},
	}

	cmd.AddCommand(add, edit, rm, ls)
	return cmd
}

func addFieldFlags(cmd *cobra.Command, opts *TxOptions) {
	cmd.Flags().StringVar(&opts.Amount, "amount", "", "amount, e.g. 12.50")
	cmd.Flags().StringVar(&opts.Direction, "direction", "expense", "income or expense")
	cmd.Flags().StringVar(&opts.Currency, "currency", "", "ISO 4217 code (default UAH)")
	cmd.Flags().StringVar(&opts.Category, "category", "", "category id")
	cmd.Flags().StringVar(&opts.Note, "note", "", "free-text note")
	cmd.Flags().StringVar(&opts.At, "at", "", "when it happened (YYYY-MM-DD or RFC 3339; default now)")
	cmd.Flags().BoolVar(&opts.Wait, "wait", false, "push now and wait for remote confirmation")
}

// session is an open store plus a reconciliation engine for one profile.
type session struct {
	store   *store.Store
	engine  *reconcile.Engine
	profile string
}

func (s *session) Close() {
	s.engine.Close()
	s.store.Close()
}

// openSession wires the replica store to the remote ledger. Background
// pushes only run when the caller is going to wait for them.
func (o *RootOptions) openSession(f *OutputFormatter, profileFlag string, autoPush bool) (*session, error) {
	auth, profile, err := o.authority(f, profileFlag)
	if err != nil {
		return nil, err
	}
	st, err := o.openStore(f)
	if err != nil {
		return nil, err
	}

	var eopts []reconcile.Option
	if !autoPush {
		eopts = append(eopts, reconcile.WithoutAutoPush())
	}
	eng, err := reconcile.New(st, auth, eopts...)
	if err != nil {
		st.Close()
		return nil, f.Fail("start sync engine", err)
	}
	return &session{store: st, engine: eng, profile: profile}, nil
}

type txResult struct {
	ID         string            `json:"id"`
	ProfileID  string            `json:"profileId"`
	SyncStatus ledger.SyncStatus `json:"syncStatus,omitempty"`
	Removed    bool              `json:"removed,omitempty"`
	Confirmed  bool              `json:"confirmed"`
}

func (r txResult) WriteText(w io.Writer) error {
	state := "committed locally; run 'ledgersync sync push' to send it"
	if r.Confirmed {
		state = "confirmed by the remote ledger"
	}
	verb := "Saved"
	if r.Removed {
		verb = "Removed"
	}
	_, err := fmt.Fprintf(w, "%s transaction %s: %s\n", verb, r.ID, state)
	return err
}

// settle waits for the receipt when asked to and reports the row's state.
func (s *session) settle(cmd *cobra.Command, f *OutputFormatter, r *reconcile.Receipt, wait, removed bool) error {
	res := txResult{ID: r.ID, ProfileID: s.profile, Removed: removed, Confirmed: r.Local}
	if wait && !r.Local {
		if err := r.Wait(cmd.Context()); err != nil {
			return f.Fail("push", err)
		}
		res.Confirmed = true
	}
	if !removed {
		row, err := s.engine.Get(cmd.Context(), s.profile, r.ID)
		if err != nil {
			return f.Fail("read back transaction", err)
		}
		res.SyncStatus = row.SyncStatus
	}
	return f.Success(res)
}

func runTxAdd(opts *TxOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	amount, err := parseAmount(f, "amount", opts.Amount)
	if err != nil {
		return err
	}
	at := opts.now()
	if opts.At != "" {
		if at, err = parseWhen(f, opts.At); err != nil {
			return err
		}
	}

	s, err := opts.openSession(f, opts.Profile, opts.Wait)
	if err != nil {
		return err
	}
	defer s.Close()

	r, err := s.engine.Add(cmd.Context(), ledger.Transaction{
		ProfileID:  s.profile,
		Direction:  ledger.Direction(strings.ToLower(opts.Direction)),
		Amount:     amount,
		Currency:   opts.Currency,
		CategoryID: ledger.Ref(opts.Category),
		Note:       opts.Note,
		OccurredAt: at,
	})
	if err != nil {
		return f.Fail("add transaction", err)
	}
	return s.settle(cmd, f, r, opts.Wait, false)
}

func runTxEdit(opts *TxOptions, id string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	flags := cmd.Flags()

	var edits []func(*ledger.Transaction)
	if flags.Changed("amount") {
		amount, err := parseAmount(f, "amount", opts.Amount)
		if err != nil {
			return err
		}
		edits = append(edits, func(t *ledger.Transaction) { t.Amount = amount })
	}
	if flags.Changed("at") {
		at, err := parseWhen(f, opts.At)
		if err != nil {
			return err
		}
		edits = append(edits, func(t *ledger.Transaction) { t.OccurredAt = at })
	}
	if flags.Changed("direction") {
		dir := ledger.Direction(strings.ToLower(opts.Direction))
		edits = append(edits, func(t *ledger.Transaction) { t.Direction = dir })
	}
	if flags.Changed("currency") {
		edits = append(edits, func(t *ledger.Transaction) { t.Currency = opts.Currency })
	}
	if flags.Changed("category") {
		edits = append(edits, func(t *ledger.Transaction) { t.CategoryID = ledger.Ref(opts.Category) })
	}
	if flags.Changed("note") {
		edits = append(edits, func(t *ledger.Transaction) { t.Note = opts.Note })
	}
	if len(edits) == 0 {
		return invalidInput(f, "nothing to change: pass at least one field flag")
	}

	s, err := opts.openSession(f, opts.Profile, opts.Wait)
	if err != nil {
		return err
	}
	defer s.Close()

	r, err := s.engine.Update(cmd.Context(), s.profile, id, func(t *ledger.Transaction) error {
		for _, edit := range edits {
			edit(t)
		}
		return nil
	})
	if err != nil {
		return f.Fail("edit transaction", err)
	}
	return s.settle(cmd, f, r, opts.Wait, false)
}

func runTxRemove(opts *TxOptions, id string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	s, err := opts.openSession(f, opts.Profile, opts.Wait)
	if err != nil {
		return err
	}
	defer s.Close()

	r, err := s.engine.Remove(cmd.Context(), s.profile, id)
	if err != nil {
		return f.Fail("remove transaction", err)
	}
	return s.settle(cmd, f, r, opts.Wait, true)
}

type txList []ledger.ReplicaTransaction

func (l txList) WriteText(w io.Writer) error {
	if len(l) == 0 {
		_, err := fmt.Fprintln(w, "No transactions.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tDIRECTION\tAMOUNT\tNOTE\tSYNC")
	for _, t := range l {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Date(), t.Direction, money(t.Amount, t.Currency), t.Note, t.SyncStatus)
	}
	return tw.Flush()
}

func runTxList(opts *TxOptions, cmd *cobra.Command) error {
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

	rows, err := st.ReplicaList(cmd.Context(), profile)
	if err != nil {
		return f.Fail("list transactions", err)
	}
	return f.Success(txList(rows))
}

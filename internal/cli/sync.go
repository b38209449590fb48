package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/ledgersync/internal/reconcile"
	"github.com/roach88/ledgersync/internal/remote"
)

// SyncOptions holds flags for the sync subcommands.
type SyncOptions struct {
	*RootOptions
	Profile string
	Limit   int
	Cursor  string
	All     bool
}

// NewSyncCommand creates the sync command group.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Exchange transactions with the remote ledger",
	}
	cmd.PersistentFlags().StringVar(&opts.Profile, "profile", "", "profile (default: config or token profile)")

	pull := &cobra.Command{
		Use:   "pull",
		Short: "Fetch authoritative transactions into the local replica",
		Long: `Fetch transactions from the remote ledger and overwrite matching local
rows. Local rows the remote did not return are never deleted; rows with a
pending local delete are left alone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPull(opts, cmd)
		},
	}
	pull.Flags().IntVar(&opts.Limit, "limit", 0, "page size (default: sync.page_size)")
	pull.Flags().StringVar(&opts.Cursor, "cursor", "", "resume from this cursor")
	pull.Flags().BoolVar(&opts.All, "all", false, "follow cursors until every page is fetched")

	push := &cobra.Command{
		Use:   "push",
		Short: "Send pending local changes to the remote ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPush(opts, cmd)
		},
	}

	cmd.AddCommand(pull, push)
	return cmd
}

type pullView struct {
	ProfileID  string `json:"profileId"`
	Applied    int    `json:"applied"`
	Skipped    int    `json:"skipped"`
	Pages      int    `json:"pages"`
	NextCursor string `json:"nextCursor,omitempty"`
}

func (v pullView) WriteText(w io.Writer) error {
	fmt.Fprintf(w, "Pulled %d transaction(s) in %d page(s)", v.Applied, v.Pages)
	if v.Skipped > 0 {
		fmt.Fprintf(w, ", %d skipped (pending delete)", v.Skipped)
	}
	fmt.Fprintln(w)
	if v.NextCursor != "" {
		fmt.Fprintf(w, "More available: --cursor %s\n", v.NextCursor)
	}
	return nil
}

type pushView struct {
	ProfileID string `json:"profileId"`
	Created   int    `json:"created"`
	Updated   int    `json:"updated"`
	Deleted   int    `json:"deleted"`
	Conflicts int    `json:"conflicts"`
	Gone      int    `json:"gone"`
	Stale     int    `json:"stale"`
}

func newPushView(profile string, r reconcile.PushResult) pushView {
	return pushView{
		ProfileID: profile,
		Created:   r.Created,
		Updated:   r.Updated,
		Deleted:   r.Deleted,
		Conflicts: r.Conflicts,
		Gone:      r.Gone,
		Stale:     r.Stale,
	}
}

func (v pushView) WriteText(w io.Writer) error {
	total := v.Created + v.Updated + v.Deleted + v.Conflicts + v.Gone
	if total == 0 && v.Stale == 0 {
		_, err := fmt.Fprintln(w, "Nothing to push.")
		return err
	}
	fmt.Fprintf(w, "Pushed %d change(s): %d created, %d updated, %d deleted\n", total, v.Created+v.Conflicts, v.Updated, v.Deleted+v.Gone)
	if v.Stale > 0 {
		fmt.Fprintf(w, "%d row(s) changed during the push and stay pending\n", v.Stale)
	}
	return nil
}

func runPull(opts *SyncOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	s, err := opts.openSession(f, opts.Profile, false)
	if err != nil {
		return err
	}
	defer s.Close()

	limit := opts.Limit
	if limit <= 0 {
		limit = opts.Config.Sync.PageSize
	}

	var res reconcile.PullResult
	if opts.All {
		res, err = s.engine.PullAll(cmd.Context(), s.profile, limit)
	} else {
		res, err = s.engine.Pull(cmd.Context(), s.profile, remote.Window{Cursor: opts.Cursor, Limit: limit})
	}
	if err != nil {
		return f.Fail("pull", err)
	}
	return f.Success(pullView{
		ProfileID:  s.profile,
		Applied:    res.Applied,
		Skipped:    res.Skipped,
		Pages:      res.Pages,
		NextCursor: res.NextCursor,
	})
}

type pushFailure struct {
	Op        string `json:"op"`
	RecordID  string `json:"recordId"`
	Remaining int    `json:"remaining"`
}

func (p pushFailure) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "  %s of %s failed; %d change(s) still pending\n", p.Op, p.RecordID, p.Remaining)
	return err
}

func runPush(opts *SyncOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	s, err := opts.openSession(f, opts.Profile, false)
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := s.engine.Push(cmd.Context(), s.profile)
	if err != nil {
		var pe *reconcile.PushError
		if errors.As(err, &pe) {
			_ = f.Error(ErrCodeRemote, err.Error(), pushFailure{Op: pe.Op, RecordID: pe.RecordID, Remaining: pe.Remaining})
			return WrapExitError(ExitFailure, ErrCodeRemote+": push failed", err)
		}
		return f.Fail("push", err)
	}
	return f.Success(newPushView(s.profile, res))
}

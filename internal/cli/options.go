package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/roach88/ledgersync/internal/ledger"
	"github.com/roach88/ledgersync/internal/remote"
	"github.com/roach88/ledgersync/internal/store"
)

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

func (o *RootOptions) now() time.Time {
	if o.Now != nil {
		return o.Now().UTC()
	}
	return time.Now().UTC()
}

func (o *RootOptions) today() string {
	return o.now().Format(time.DateOnly)
}

// openStore opens the configured database, creating it if needed.
func (o *RootOptions) openStore(f *OutputFormatter) (*store.Store, error) {
	var opts []store.Option
	if o.IDs != nil {
		opts = append(opts, store.WithIDGenerator(o.IDs))
	}
	if o.Now != nil {
		opts = append(opts, store.WithClock(o.now))
	}
	st, err := store.Open(o.Database, opts...)
	if err != nil {
		_ = f.Error(ErrCodeIO, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	f.VerboseLog("Opened database %s", o.Database)
	return st, nil
}

// profile returns the --profile flag value, else the configured profile,
// else the profile named by the remote token.
func (o *RootOptions) profile(f *OutputFormatter, flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if o.Config != nil && o.Config.Profile != "" {
		return o.Config.Profile, nil
	}
	if o.Config != nil && o.Config.Remote.Token != "" {
		if p, err := remote.ProfileFromToken(o.Config.Remote.Token); err == nil {
			return p, nil
		}
	}
	return "", invalidInput(f, "no profile: pass --profile or set profile in the config")
}

// authority returns the remote ledger and the profile to sync. The profile
// comes from the token when it carries one.
func (o *RootOptions) authority(f *OutputFormatter, profileFlag string) (remote.Authority, string, error) {
	if o.Authority != nil {
		profile, err := o.profile(f, profileFlag)
		return o.Authority, profile, err
	}

	rc := o.Config.Remote
	if rc.URL == "" {
		return nil, "", invalidInput(f, "no remote: set remote.url in the config or LEDGERSYNC_REMOTE_URL")
	}
	opts := []remote.ClientOption{remote.WithTimeout(rc.Timeout)}
	if o.HTTPClient != nil {
		opts = append(opts, remote.WithHTTPClient(o.HTTPClient))
	}
	client, err := remote.NewClient(rc.URL, rc.Token, opts...)
	if err != nil {
		return nil, "", invalidInput(f, err.Error())
	}
	if p := client.Profile(); p != "" {
		if profileFlag != "" && profileFlag != p {
			return nil, "", invalidInput(f, fmt.Sprintf("token is for profile %s, not %s", p, profileFlag))
		}
		return client, p, nil
	}
	profile, err := o.profile(f, profileFlag)
	return client, profile, err
}

func invalidInput(f *OutputFormatter, msg string) error {
	_ = f.Error(ErrCodeInvalidInput, msg, nil)
	return NewExitError(ExitCommandError, ErrCodeInvalidInput+": "+msg)
}

func parseAmount(f *OutputFormatter, flag, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, invalidInput(f, fmt.Sprintf("--%s: %q is not a number", flag, s))
	}
	return d, nil
}

// parseWhen accepts RFC 3339 timestamps and plain dates (noon UTC).
func parseWhen(f *OutputFormatter, s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if d, err := time.Parse(time.DateOnly, s); err == nil {
		return d.Add(12 * time.Hour), nil
	}
	return time.Time{}, invalidInput(f, fmt.Sprintf("--at: %q is neither a date nor an RFC 3339 time", s))
}

func parseDate(f *OutputFormatter, flag, s string) (string, error) {
	if _, err := time.Parse(time.DateOnly, s); err != nil {
		return "", invalidInput(f, fmt.Sprintf("--%s: %q is not YYYY-MM-DD", flag, s))
	}
	return s, nil
}

func money(amount decimal.Decimal, currency string) string {
	return ledger.FormatAmount(amount, currency)
}

package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/ledgersync/internal/backup"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Profile string
	Output  string
	As      string
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a backup document",
		Long: `Export one profile, or every profile, as a backup document.

The document goes to stdout unless -o is given. The encoding comes from --as,
then from the output file extension, then from backup.format in the config.

Example:
  ledgersync export --profile p1 -o alice.json
  ledgersync export --as yaml > everything.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Profile, "profile", "", "profile to export (default: all profiles)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVar(&opts.As, "as", "", "document encoding (json|yaml)")

	return cmd
}

type exportResult struct {
	Path    string         `json:"path"`
	Format  backup.Format  `json:"format"`
	Scope   backup.Scope   `json:"scope"`
	Records map[string]int `json:"records"`
}

func (r exportResult) WriteText(w io.Writer) error {
	total := 0
	for _, n := range r.Records {
		total += n
	}
	_, err := fmt.Fprintf(w, "Exported %d records (%s scope) to %s\n", total, r.Scope, r.Path)
	return err
}

func exportFormat(opts *ExportOptions) (backup.Format, error) {
	switch {
	case opts.As != "":
		return backup.ParseFormat(opts.As)
	case opts.Output != "":
		return backup.FormatFromPath(opts.Output), nil
	default:
		return backup.ParseFormat(opts.Config.Backup.Format)
	}
}

func runExport(opts *ExportOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	format, err := exportFormat(opts)
	if err != nil {
		return invalidInput(f, err.Error())
	}

	st, err := opts.openStore(f)
	if err != nil {
		return err
	}
	defer st.Close()

	doc, err := backup.Export(cmd.Context(), st.Scope(), opts.Profile, opts.now())
	if err != nil {
		return f.Fail("export", err)
	}

	if opts.Output == "" {
		return backup.Write(cmd.OutOrStdout(), doc, format)
	}

	var buf bytes.Buffer
	if err := backup.Write(&buf, doc, format); err != nil {
		return f.Fail("encode backup", err)
	}
	if err := os.WriteFile(opts.Output, buf.Bytes(), 0o600); err != nil {
		_ = f.Error(ErrCodeIO, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to write backup", err)
	}
	f.VerboseLog("Wrote %d bytes to %s", buf.Len(), opts.Output)

	return f.Success(exportResult{
		Path:    opts.Output,
		Format:  format,
		Scope:   doc.Metadata.Scope,
		Records: doc.Entities.Count(),
	})
}

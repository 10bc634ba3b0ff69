package main

import (
	"fmt"
	"io"

	"github.com/odvcencio/sniffers/pkg/sniffer"
	"github.com/spf13/cobra"
)

func newSniffCmd(opts *globalOptions) *cobra.Command {
	var (
		dryRun   bool
		exitCode bool
		quiet    bool
	)

	cmd := &cobra.Command{
		Use:   "sniff [path]",
		Short: "Report files changed since the last index or sniff",
		Long: `Compare every regular file under path (default ".") against the store,
print the paths that are new or modified, and fold the new fingerprints back
into the store. Run "sniffers index" first.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.resolve(cmd, rootArg(args))
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			var report sniffer.Report
			if dryRun {
				report, err = s.sniffer.Status(cmd.Context())
			} else {
				report, err = s.sniffer.SniffReport(cmd.Context())
				s.observe(reportPass("sniff", report, err))
			}
			if err != nil {
				return fmt.Errorf("could not sniff files: %w", err)
			}

			if dryRun {
				printStatus(out, report)
			} else {
				for _, p := range report.Paths(sniffer.Added, sniffer.Modified) {
					fmt.Fprintln(out, p)
				}
				if !quiet {
					fmt.Fprintln(out, "Done sniffing!")
				}
			}

			if exitCode && len(report.Changes) > 0 {
				return &exitError{code: 1}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "show added (+), modified (~) and removed (-) files without updating the store")
	cmd.Flags().BoolVar(&exitCode, "exit-code", false, "exit with status 1 when changes are found")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "print only changed paths")
	return cmd
}

func printStatus(out io.Writer, report sniffer.Report) {
	if len(report.Changes) == 0 {
		fmt.Fprintln(out, "no changes")
		return
	}
	for _, c := range report.Changes {
		switch c.Kind {
		case sniffer.Added:
			fmt.Fprintf(out, "  + %s\n", c.Path)
		case sniffer.Modified:
			fmt.Fprintf(out, "  ~ %s\n", c.Path)
		case sniffer.Removed:
			fmt.Fprintf(out, "  - %s\n", c.Path)
		}
	}
}

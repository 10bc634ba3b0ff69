package main

import (
	"fmt"
	"time"

	"github.com/odvcencio/sniffers/internal/metrics"
	"github.com/spf13/cobra"
)

func newIndexCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "index [path]",
		Short: "Record a fresh fingerprint baseline",
		Long: `Fingerprint every regular file under path (default ".") and replace the
store with the result. A path containing *, ? or [ is used as a glob pattern.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.resolve(cmd, rootArg(args))
			if err != nil {
				return err
			}
			defer s.Close()

			start := time.Now()
			n, err := s.sniffer.Index(cmd.Context())
			s.observe(metrics.Pass{Op: "index", Scanned: n, Duration: time.Since(start), Err: err})
			if err != nil {
				return fmt.Errorf("could not index files: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d file(s) into %s\n", n, describeStore(s.sniffer))
			return nil
		},
	}
}

package main

import (
	"fmt"
	"time"

	"github.com/odvcencio/sniffers/internal/config"
	"github.com/odvcencio/sniffers/internal/runner"
	"github.com/odvcencio/sniffers/pkg/sniffer"
	"github.com/spf13/cobra"
)

func newRunCmd(opts *globalOptions) *cobra.Command {
	var (
		command  string
		interval time.Duration
		once     bool
	)

	cmd := &cobra.Command{
		Use:   "run [path] [-- command [args...]]",
		Short: "Run a command whenever files change",
		Long: `Sniff path (default ".") and run the command when anything was added or
modified. The changed paths are passed to the command, newline separated, in
the ` + runner.ChangedEnv + ` environment variable. Without --once the check
repeats every --interval until interrupted.

The command comes from the arguments after "--", from --command, or from
run.command in the config file, in that order.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			pathArgs, argv := args, []string(nil)
			if dash := cmd.ArgsLenAtDash(); dash >= 0 {
				pathArgs, argv = args[:dash], args[dash:]
			}
			if len(pathArgs) > 1 {
				return fmt.Errorf("run: expected at most one path, got %d", len(pathArgs))
			}

			s, err := opts.resolve(cmd, rootArg(pathArgs))
			if err != nil {
				return err
			}
			defer s.Close()

			argv, err = resolveCommand(argv, command, cmd.Flags().Changed("command"), s.cfg.Run.Command)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("interval") {
				interval = s.cfg.Run.Interval.Duration
			}

			loop := &runner.Loop{
				Source:   s.sniffer,
				Command:  argv,
				Interval: interval,
				Once:     once,
				Log:      s.log,
				Stdout:   cmd.OutOrStdout(),
				Stderr:   cmd.ErrOrStderr(),
				OnPass: func(r sniffer.Report, err error) {
					s.observe(reportPass("sniff", r, err))
				},
			}
			if err := loop.Run(cmd.Context()); err != nil {
				return fmt.Errorf("run: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&command, "command", "c", "", "command line to run on changes (shell quoting rules)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "poll interval (default from config, 2s)")
	cmd.Flags().BoolVar(&once, "once", false, "sniff once, run the command if needed, and exit")
	return cmd
}

// resolveCommand picks the command from the dash arguments, the flag, or the
// config, splitting a single string with shell quoting rules.
func resolveCommand(argv []string, flagValue string, flagSet bool, configured string) ([]string, error) {
	switch {
	case len(argv) > 1:
		return argv, nil
	case len(argv) == 1:
		return runner.ParseCommand(argv[0])
	case flagSet:
		return runner.ParseCommand(flagValue)
	case configured != "":
		return runner.ParseCommand(configured)
	default:
		return nil, fmt.Errorf("run: no command given (use -- <command>, --command, or run.command in %s)", config.DefaultFile)
	}
}

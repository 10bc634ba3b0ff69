// Package runner executes a command whenever a sniff pass finds changes.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/odvcencio/sniffers/internal/logging"
	"github.com/odvcencio/sniffers/pkg/sniffer"
)

// ChangedEnv carries the newline separated changed paths to the command.
const ChangedEnv = "SNIFFERS_CHANGED"

// Source produces one sniff pass. *sniffer.Sniffer satisfies it.
type Source interface {
	SniffReport(ctx context.Context) (sniffer.Report, error)
}

// ParseCommand splits a command line with POSIX shell quoting rules.
func ParseCommand(line string) ([]string, error) {
	args, err := shellquote.Split(line)
	if err != nil {
		return nil, fmt.Errorf("parse command %q: %w", line, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("parse command: empty command")
	}
	return args, nil
}

// Exec runs argv to completion, exporting changed through ChangedEnv.
func Exec(ctx context.Context, argv []string, changed []string, stdout, stderr io.Writer) error {
	if len(argv) == 0 {
		return fmt.Errorf("exec: empty command")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(), ChangedEnv+"="+strings.Join(changed, "\n"))
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", strings.Join(argv, " "), err)
	}
	return nil
}

// Loop sniffs, runs Command when anything changed, and repeats every
// Interval until the context ends. Passes never overlap.
type Loop struct {
	Source   Source
	Command  []string
	Interval time.Duration
	Once     bool
	Log      *slog.Logger
	Stdout   io.Writer
	Stderr   io.Writer

	// OnPass, when set, observes every sniff pass.
	OnPass func(sniffer.Report, error)
}

// Run blocks until the context is cancelled, a sniff pass fails, or, with
// Once set, after the first pass. A failing command ends the loop only in
// Once mode; otherwise it is logged and polling continues.
func (l *Loop) Run(ctx context.Context) error {
	if l.Source == nil {
		return fmt.Errorf("run: no source")
	}
	if len(l.Command) == 0 {
		return fmt.Errorf("run: no command")
	}
	log := l.Log
	if log == nil {
		log = logging.Discard()
	}
	interval := l.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	for {
		ran, err := l.pass(ctx, log)
		switch {
		case errors.Is(err, context.Canceled) && ctx.Err() != nil:
			return nil
		case err != nil && (l.Once || !ran):
			return err
		case err != nil:
			log.Error("command failed", "command", strings.Join(l.Command, " "), "err", err)
		}
		if l.Once {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

// pass runs one sniff and, on changes, the command. ran reports whether the
// error, if any, came from the command rather than the sniff.
func (l *Loop) pass(ctx context.Context, log *slog.Logger) (ran bool, err error) {
	report, err := l.Source.SniffReport(ctx)
	if l.OnPass != nil {
		l.OnPass(report, err)
	}
	if err != nil {
		return false, err
	}

	changed := report.Paths(sniffer.Added, sniffer.Modified)
	if len(changed) == 0 {
		log.Debug("no changes", "scanned", report.Scanned)
		return false, nil
	}
	log.Info("changes detected", "count", len(changed), "command", strings.Join(l.Command, " "))
	for _, p := range changed {
		log.Debug("changed", "path", p)
	}
	return true, Exec(ctx, l.Command, changed, l.Stdout, l.Stderr)
}

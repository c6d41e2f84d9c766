package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags.
var version = "0.1.0-dev"

// Exit codes.
const (
	exitOK         = 0
	exitUnresolved = 1
	exitError      = 2
)

// exitCodeError carries a non-default exit code out of a command.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string { return e.err.Error() }
func (e *exitCodeError) Unwrap() error { return e.err }

var errUnresolved = errors.New("unresolved escalation")

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing
func Run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	if len(args) > 1 {
		root.SetArgs(args[1:])
	} else {
		root.SetArgs([]string{})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	var coded *exitCodeError
	if errors.As(err, &coded) {
		if coded.code != exitUnresolved {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", coded.err)
		}
		return coded.code
	}
	_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
	return exitError
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:     "governor",
		Short:   "Governance escalation engine for analyzed documents",
		Version: version,
		Long: `governor decides how strongly an analyzed document must be reviewed
before it is acted upon. Deterministic constitution rules produce a verdict,
an optional Pattern Sentinel oracle may raise it, and reviewer actions
recorded in the ledger resolve or defer it.

Exit codes:
  0  ok
  1  unresolved escalation (with --strict)
  2  runtime error`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.String("config", "", "Path to YAML config (default $GOVERNOR_CONFIG)")
	flags.String("db", "", "Ledger DSN: postgres://..., sqlite:<path>, *.db or a JSON file path")
	flags.String("document-id", "", "Document whose actions are read and recorded")
	flags.String("log-level", "", "Override the configured log level")

	root.AddCommand(evaluateCmd())
	root.AddCommand(actCmd())
	root.AddCommand(ledgerCmd())
	root.AddCommand(rulesCmd())
	root.AddCommand(summaryCmd())
	root.AddCommand(exportCmd())
	return root
}

// Command shape-multipart runs the artifact upload server and inspects
// multipart bodies from the command line.
//
// Usage:
//
//	shape-multipart serve [--config file] [flags]
//	shape-multipart dump [--boundary b | --http] [file]
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/pflag"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("error:"), err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		printUsage(stderr)
		return errors.New("missing command")
	}
	switch cmd, rest := args[0], args[1:]; cmd {
	case "serve":
		return runServe(ctx, rest, stderr)
	case "dump":
		return runDump(ctx, rest, stdin, stdout)
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	default:
		printUsage(stderr)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `shape-multipart streams multipart/form-data uploads into an artifact store.

Usage:
  shape-multipart serve [--config file] [flags]
  shape-multipart dump [--boundary b | --http] [file]

Run "shape-multipart <command> --help" for the flags of a command.
`)
}

// parseFlags parses args, turning --help into a nil error with done set.
func parseFlags(flagSet *pflag.FlagSet, args []string) (done bool, err error) {
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return true, nil
		}
		return false, err
	}
	return false, nil
}

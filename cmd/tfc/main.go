// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// tfc is the command-line front-end for a Tagged File Container: a
// single-file tagged blob store. Run with a container name to open an
// interactive prompt, or pass one or more --command flags to run
// commands non-interactively and exit.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/term"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// Top-level flags (--help, --version, --about, --license) and the
// "<name> [--command [args...]]..." container invocation are mutually
// exclusive grammars, exactly as in the original CLI (which compares
// argv[1] against each flag string before ever treating it as a
// filename). Routing on args[0]'s leading "-" up front means pflag
// only ever sees a flags-only argument list, so it never collides
// with our hand-rolled "--command" tokens below.
func run(args []string, stdin *os.File, stdout, stderr *os.File) int {
	logger := newCLILogger(stderr)

	if len(args) > 0 && strings.HasPrefix(args[0], "-") {
		return runFlagsOnly(args, stdout, stderr)
	}

	if len(args) == 0 {
		printUsage(stdout, nil)
		return 1
	}
	filename := args[0] + ".tfc"
	commands := parseCommandArgs(args[1:])

	licenses, err := loadLicenses()
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	s := newSession(filename, logger)
	defer s.close()

	stopping := stopFlag()

	if len(commands) == 0 {
		if err := runShell(s, stdin, stdout, licenses); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		return 0
	}

	for _, cmd := range commands {
		if stopping.Load() {
			break
		}
		output, stop, err := dispatch(s, cmd.name, cmd.args, licenses)
		if err != nil {
			fmt.Fprintf(stderr, "✗ %v\n", err)
			return 1
		}
		if output != "" {
			fmt.Fprintln(stdout, output)
		}
		if stop {
			break
		}
	}
	return 0
}

// runFlagsOnly handles the exit-and-quit invocation: tfc was called
// with no container name, just one of --help/--version/--about/
// --license. Parsed with pflag exactly as cmd/bureau-viewer/main.go
// parses its own flags-only paths.
func runFlagsOnly(args []string, stdout, stderr *os.File) int {
	flagSet := pflag.NewFlagSet("tfc", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	showVersion := flagSet.Bool("version", false, "print version information and exit")
	showAbout := flagSet.Bool("about", false, "print author and license information and exit")
	licenseArg := flagSet.String("license", "", "print a bundled license and exit; pass no value to list names")
	flagSet.Lookup("license").NoOptDefVal = "-"
	flagSet.BoolP("help", "h", false, "show this message")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	if help, _ := flagSet.GetBool("help"); help {
		printUsage(stdout, flagSet)
		return 0
	}
	if *showVersion {
		fmt.Fprintln(stdout, "tfc version 1")
		return 0
	}

	licenses, err := loadLicenses()
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	if *showAbout {
		fmt.Fprintln(stdout, aboutText())
		return 0
	}
	if *licenseArg != "" {
		arg := *licenseArg
		if arg == "-" {
			// NoOptDefVal leaves "--license mit" as flag plus a
			// positional name; pick that name up here.
			arg = flagSet.Arg(0)
		}
		var names []string
		if arg != "" {
			names = []string{arg}
		}
		text, err := licenseText(licenses, names)
		if err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		fmt.Fprintln(stdout, text)
		return 0
	}

	printUsage(stdout, flagSet)
	return 1
}

// stopFlag installs a SIGINT/SIGTERM/SIGHUP handler that sets a
// graceful-stop flag rather than terminating immediately, so a
// command in flight still finishes its current Container call under
// opLock before exiting. The flag is read only between --command
// commands; the interactive shell loop does not check it, so these
// signals do not end an interactive session.
func stopFlag() *atomic.Bool {
	var stopping atomic.Bool

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		<-sig
		stopping.Store(true)
	}()

	return &stopping
}

type parsedCommand struct {
	name string
	args []string
}

// parseCommandArgs walks the repeated "--command [args…]" grammar by
// hand: pflag has no notion of a flag repeated with a variable number
// of positional arguments, so each "--name" token starts a new
// command, consuming tokens until the next "--" token or the end.
func parseCommandArgs(args []string) []parsedCommand {
	var commands []parsedCommand
	for i := 0; i < len(args); i++ {
		if !strings.HasPrefix(args[i], "--") {
			continue
		}
		name := strings.TrimPrefix(args[i], "--")
		var cmdArgs []string
		for i+1 < len(args) && !strings.HasPrefix(args[i+1], "--") {
			cmdArgs = append(cmdArgs, args[i+1])
			i++
		}
		commands = append(commands, parsedCommand{name: name, args: cmdArgs})
	}
	return commands
}

func newCLILogger(stderr *os.File) *slog.Logger {
	options := &slog.HandlerOptions{Level: slog.LevelInfo}
	if term.IsTerminal(int(stderr.Fd())) {
		return slog.New(slog.NewTextHandler(stderr, options))
	}
	return slog.New(slog.NewJSONHandler(stderr, options))
}

func printUsage(out *os.File, flagSet *pflag.FlagSet) {
	fmt.Fprintln(out, "Usage: tfc <name> [--command [args...]]...")
	fmt.Fprintln(out, "       tfc --help|--version|--about|--license [name]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "With no --command flags, opens an interactive prompt over <name>.tfc.")
	fmt.Fprintln(out)
	fmt.Fprintln(out, helpText())
	if flagSet != nil {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Flags:")
		flagSet.PrintDefaults()
	}
}

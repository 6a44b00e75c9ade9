// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// dispatch runs one parsed command line (name plus its arguments)
// against session s. It returns the command's display output and
// whether the caller should stop processing further commands (the
// "exit" command, or any unrecoverable flag in the future).
func dispatch(s *session, name string, args []string, licenses map[string]string) (output string, stop bool, err error) {
	switch name {
	case "help":
		return helpText(), false, nil

	case "about":
		return aboutText(), false, nil

	case "license":
		text, err := licenseText(licenses, args)
		return text, false, err

	case "clear":
		return "\x1b[2J\x1b[H", false, nil

	case "init":
		out, err := s.cmdInit()
		return out, false, err

	case "files":
		out, err := s.cmdFiles()
		return out, false, err

	case "tags":
		out, err := s.cmdTags()
		return out, false, err

	case "stash":
		if len(args) != 1 {
			return "", false, fmt.Errorf("usage: stash <path>")
		}
		out, err := s.cmdStash(args[0])
		return out, false, err

	case "unstash":
		if len(args) != 1 && len(args) != 2 {
			return "", false, fmt.Errorf("usage: unstash <id> [outpath]")
		}
		outPath := ""
		if len(args) == 2 {
			outPath = args[1]
		}
		out, err := s.cmdUnstash(args[0], outPath)
		return out, false, err

	case "delete":
		if len(args) != 1 {
			return "", false, fmt.Errorf("usage: delete <id>")
		}
		out, err := s.cmdDelete(args[0])
		return out, false, err

	case "tag":
		if len(args) < 2 {
			return "", false, fmt.Errorf("usage: tag <id> <name>...")
		}
		out, err := s.cmdTag(args[0], args[1:])
		return out, false, err

	case "search":
		if len(args) < 1 {
			return "", false, fmt.Errorf("usage: search <name>...")
		}
		out, err := s.cmdSearch(args)
		return out, false, err

	case "exit":
		return "", true, nil

	default:
		return "", false, fmt.Errorf("unknown command %q; type \"help\" for a list of commands", name)
	}
}

// runShell drives the interactive prompt loop read from in. The
// per-line prompt is suppressed when in is not a terminal
// (piped input, test harnesses), matching the rest of the corpus's
// "only decorate a real terminal" convention.
func runShell(s *session, in io.Reader, out io.Writer, licenses map[string]string) error {
	interactive := false
	if f, ok := in.(*os.File); ok {
		interactive = term.IsTerminal(int(f.Fd()))
	}

	scanner := bufio.NewScanner(in)
	for {
		if interactive {
			fmt.Fprint(out, "tfc> ")
		}
		if !scanner.Scan() {
			break
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		output, stop, err := dispatch(s, fields[0], fields[1:], licenses)
		if err != nil {
			fmt.Fprintf(out, "✗ %v\n", err)
			continue
		}
		if output != "" {
			fmt.Fprintln(out, output)
		}
		if stop {
			break
		}
	}
	return scanner.Err()
}

func helpText() string {
	return `Commands:
  help                    show this message
  about                   show author and license information
  license [name]          show a bundled license, or list names
  clear                   clear the screen
  init                    create a new, empty container
  files                   list stashed files
  tags                    list tags
  stash <path>            stash a file into the container
  unstash <id> [outpath]  unstash a file by ID
  delete <id>             delete a file by ID
  tag <id> <name>...      tag a file with one or more names
  search <name>...        list files carrying every given tag
  exit                    exit the shell`
}

func aboutText() string {
	return `Tagged File Containers (TFC)

A single-file tagged blob store.`
}

func licenseText(licenses map[string]string, args []string) (string, error) {
	if len(args) == 0 {
		return strings.Join(licenseNames(licenses), "\n"), nil
	}
	text, ok := licenses[args[0]]
	if !ok {
		return "", fmt.Errorf("no bundled license named %q", args[0])
	}
	return strings.TrimRight(text, "\n"), nil
}

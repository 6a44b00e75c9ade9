// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/richardkriesman/tfc/lib/tfc"
)

// session wraps a single open container for the lifetime of one CLI
// invocation, dispatching named commands to tfc.Container operations.
// Every mutator here follows the same CLOSED → READ → EDIT → CLOSED
// round trip the container's mode state machine requires: READ always
// runs first so the in-memory graph is freshly analyzed before EDIT
// allows a mutation.
type session struct {
	container *tfc.Container
	filename  string
	logger    *slog.Logger
}

func newSession(filename string, logger *slog.Logger) *session {
	return &session{
		container: tfc.Open(filename),
		filename:  filename,
		logger:    logger,
	}
}

func (s *session) close() {
	if err := s.container.Close(); err != nil {
		s.logger.Warn("closing container", "error", err)
	}
}

func (s *session) cmdInit() (string, error) {
	if err := s.container.Init(); err != nil {
		return "", err
	}
	return fmt.Sprintf("Created container file at %s", s.filename), nil
}

func (s *session) cmdFiles() (string, error) {
	if err := s.container.SetMode(tfc.Read); err != nil {
		return "", err
	}
	defer s.container.SetMode(tfc.Closed)

	blobs, err := s.container.ListBlobs()
	if err != nil {
		return "", err
	}
	return formatBlobs(blobs), nil
}

func (s *session) cmdTags() (string, error) {
	if err := s.container.SetMode(tfc.Read); err != nil {
		return "", err
	}
	defer s.container.SetMode(tfc.Closed)

	tags, err := s.container.ListTags()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-10s\t%-10s\n", "Name", "File Count")
	fmt.Fprintf(&b, "%-10s\t%-10s\n", "----------", "----------")
	for _, tag := range tags {
		fmt.Fprintf(&b, "%-10s\t%-10d\n", tag.Name, len(tag.Files))
	}
	return b.String(), nil
}

func (s *session) cmdStash(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	name := filepath.Base(path)

	if err := s.container.SetMode(tfc.Read); err != nil {
		return "", err
	}
	if err := s.container.SetMode(tfc.Edit); err != nil {
		s.container.SetMode(tfc.Closed)
		return "", err
	}
	defer s.container.SetMode(tfc.Closed)

	nonce, err := s.container.AddBlob(name, data)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Stashed %s with ID %d", name, nonce), nil
}

func (s *session) cmdUnstash(idArg string, outPath string) (string, error) {
	nonce, err := parseNonce(idArg)
	if err != nil {
		return "", err
	}

	if err := s.container.SetMode(tfc.Read); err != nil {
		return "", err
	}
	defer s.container.SetMode(tfc.Closed)

	rec, data, err := s.container.ReadBlob(nonce)
	if err != nil {
		return "", err
	}

	dest := outPath
	if dest == "" {
		dest = rec.Name
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", dest, err)
	}
	return fmt.Sprintf("Unstashed %d into %s", nonce, dest), nil
}

func (s *session) cmdDelete(idArg string) (string, error) {
	nonce, err := parseNonce(idArg)
	if err != nil {
		return "", err
	}

	if err := s.container.SetMode(tfc.Read); err != nil {
		return "", err
	}
	if err := s.container.SetMode(tfc.Edit); err != nil {
		s.container.SetMode(tfc.Closed)
		return "", err
	}
	defer s.container.SetMode(tfc.Closed)

	if err := s.container.DeleteBlob(nonce); err != nil {
		return "", err
	}
	return fmt.Sprintf("Deleted %d", nonce), nil
}

func (s *session) cmdTag(idArg string, names []string) (string, error) {
	nonce, err := parseNonce(idArg)
	if err != nil {
		return "", err
	}

	if err := s.container.SetMode(tfc.Read); err != nil {
		return "", err
	}
	if err := s.container.SetMode(tfc.Edit); err != nil {
		s.container.SetMode(tfc.Closed)
		return "", err
	}
	defer s.container.SetMode(tfc.Closed)

	var b strings.Builder
	for _, name := range names {
		if err := s.container.AttachTag(nonce, name); err != nil {
			return b.String(), err
		}
		fmt.Fprintf(&b, "Tagged %d as %s\n", nonce, name)
	}
	return strings.TrimSuffix(b.String(), "\n"), nil
}

func (s *session) cmdSearch(names []string) (string, error) {
	if err := s.container.SetMode(tfc.Read); err != nil {
		return "", err
	}
	defer s.container.SetMode(tfc.Closed)

	blobs, err := s.container.Intersection(names)
	if err != nil {
		return "", err
	}
	return formatBlobs(blobs), nil
}

func parseNonce(arg string) (uint32, error) {
	n, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid file ID %q", arg)
	}
	return uint32(n), nil
}

func formatBlobs(blobs []tfc.FileRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-6s\t%-24s\t%-10s\t%s\n", "ID", "Name", "Size", "Tags")
	fmt.Fprintf(&b, "%-6s\t%-24s\t%-10s\t%s\n", "------", "------------------------", "----------", "----")
	for _, rec := range blobs {
		fmt.Fprintf(&b, "%-6d\t%-24s\t%-10d\t%s\n", rec.Nonce, rec.Name, rec.Size, strings.Join(tagNamesOf(rec), ", "))
	}
	return b.String()
}

// tagNamesOf is a display helper: FileRecord.Tags holds *TagRecord
// values, but a listing only needs their names.
func tagNamesOf(rec tfc.FileRecord) []string {
	names := make([]string, 0, len(rec.Tags))
	for _, tag := range rec.Tags {
		names = append(names, tag.Name)
	}
	return names
}

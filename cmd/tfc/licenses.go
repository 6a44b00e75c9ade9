// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed licenses.yaml
var licensesFile embed.FS

// loadLicenses decodes the embedded license-text table. Adding a new
// bundled license is a data change to licenses.yaml, not a code
// change.
func loadLicenses() (map[string]string, error) {
	raw, err := licensesFile.ReadFile("licenses.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded licenses.yaml: %w", err)
	}

	var licenses map[string]string
	if err := yaml.Unmarshal(raw, &licenses); err != nil {
		return nil, fmt.Errorf("parsing embedded licenses.yaml: %w", err)
	}
	return licenses, nil
}

// licenseNames returns the embedded license keys sorted for --license's
// "no argument" listing.
func licenseNames(licenses map[string]string) []string {
	names := make([]string, 0, len(licenses))
	for name := range licenses {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

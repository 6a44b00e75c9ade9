// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !darwin && !linux

package tfc

// flockAdvisory is a no-op on platforms without golang.org/x/sys/unix
// flock support. The engine's single-process opLock is the only
// enforced guarantee on these platforms.
func flockAdvisory(fd int) error {
	return nil
}

func funlockAdvisory(fd int) error {
	return nil
}

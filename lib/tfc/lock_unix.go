// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build darwin || linux

package tfc

import "golang.org/x/sys/unix"

// flockAdvisory takes a non-blocking, exclusive advisory lock on fd.
// This is a best-effort mitigation against two processes editing the
// same container concurrently, not a correctness guarantee — the
// format itself defines no behavior for simultaneous writers. Modeled
// on the teacher's direct unix.* file-resource handling in
// lib/artifactstore/cache_device.go and lib/secret/buffer.go.
func flockAdvisory(fd int) error {
	return unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB)
}

// funlockAdvisory releases a lock taken by flockAdvisory.
func funlockAdvisory(fd int) error {
	return unix.Flock(fd, unix.LOCK_UN)
}

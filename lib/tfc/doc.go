// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tfc implements the Tagged File Container engine: a single
// on-disk file that stores many opaque byte streams ("blobs") together
// with a user-defined tag graph that lets callers list, search, and
// retrieve those streams by the intersection of arbitrary tag sets.
//
// A container is self-describing (magic number, version, reserved data
// encryption key slot) and internally partitioned into a fixed-size
// block heap plus two small relational tables — one for tags, one for
// files — that index the heap. The package is organized in layers:
//
//   - Scribe: positioned byte I/O over the container file, with a
//     big-endian integer codec and an explicit operation-mode state
//     machine (CLOSED, READ, CREATE, EDIT).
//
//   - Records and tables: FileRecord and TagRecord hold the in-memory
//     graph; fileTable and tagTable index them by nonce (and, for tags,
//     by name) with deterministic ordered iteration.
//
//   - Digest: a 64-bit keyed digest over a byte range, used as
//     integrity metadata on every stored blob.
//
//   - Engine: the container format, the block-chain allocator, the
//     analyze-on-open procedure that rebuilds the in-memory graph from
//     raw bytes, and the multi-tag set-intersection search.
//
//   - Container: the narrow public façade — open/close/init and the
//     handful of read/write operations any front-end (CLI, library
//     consumer) needs. Nothing outside this façade is exported.
//
// Encryption-at-rest is not implemented: the format reserves a 32-byte
// data-encryption-key slot, and Container detects a non-zero slot and
// refuses mutations with ErrEncryptedLocked, but no component in this
// package encrypts or decrypts payload bytes.
package tfc

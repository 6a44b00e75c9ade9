// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tfc

import (
	"encoding/binary"

	"github.com/zeebo/blake3"
)

// digestKey derives a 32-byte BLAKE3 key from the container's magic
// number, repeating the 4-byte magic to fill the key. This follows the
// same domain-separation technique the corpus's artifact package uses
// for its chunk/container/file hash domains (keyedHash in
// lib/artifact/hash.go): a fixed key over the input bytes produces a
// digest that is stable across sessions as long as the magic number
// (spec §4.5.1) does not change, which I6 guarantees it never does.
func digestKey(magic uint32) [32]byte {
	var magicBytes [4]byte
	binary.BigEndian.PutUint32(magicBytes[:], magic)

	var key [32]byte
	for i := range key {
		key[i] = magicBytes[i%4]
	}
	return key
}

// digest64 computes a deterministic 64-bit digest of data, keyed by
// the container's magic number (spec §4.4). It truncates a BLAKE3
// keyed hash to its first 8 bytes rather than pulling in a dedicated
// 64-bit hash library: BLAKE3 is already a direct dependency for
// artifact-style content hashing elsewhere in the corpus, and its
// output is an arbitrary-length XOF, so truncation costs nothing in
// either code size or hash quality for a non-cryptographic use.
func digest64(magic uint32, data []byte) uint64 {
	key := digestKey(magic)

	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		// digestKey always produces exactly 32 bytes, the only
		// length NewKeyed accepts.
		panic("tfc: blake3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)

	sum := hasher.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8])
}

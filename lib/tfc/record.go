// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tfc

// FileRecord represents one stored byte stream. Tags is the set of
// TagRecords currently attached to this file; every entry is mirrored
// by the inverse reference in the corresponding TagRecord.Files (I2).
type FileRecord struct {
	Nonce      uint32
	Name       string
	Hash       uint64
	StartBlock uint32
	Size       uint64
	Tags       map[uint32]*TagRecord
}

// hasTag reports whether the file is linked to the given tag nonce.
func (f *FileRecord) hasTag(tagNonce uint32) bool {
	_, ok := f.Tags[tagNonce]
	return ok
}

// sortedTagNonces returns the file's tag nonces in ascending order,
// used when rewriting the file table entry's tag list deterministically.
func (f *FileRecord) sortedTagNonces() []uint32 {
	nonces := make([]uint32, 0, len(f.Tags))
	for nonce := range f.Tags {
		nonces = append(nonces, nonce)
	}
	sortUint32s(nonces)
	return nonces
}

// TagRecord represents one named classifier. Name is already
// lower-cased by the time a TagRecord exists; callers' input is folded
// on entry by the engine (attachTag, intersection) before a lookup or
// a new record is created.
type TagRecord struct {
	Nonce uint32
	Name  string
	Files map[uint32]*FileRecord
}

// link establishes the bidirectional reference between a file and a
// tag (I2). Both sides are updated in the same call so they can never
// observe a half-linked state.
func link(file *FileRecord, tag *TagRecord) {
	file.Tags[tag.Nonce] = tag
	tag.Files[file.Nonce] = file
}

// unlink removes the bidirectional reference between a file and a tag.
func unlink(file *FileRecord, tag *TagRecord) {
	delete(file.Tags, tag.Nonce)
	delete(tag.Files, file.Nonce)
}

// sortUint32s sorts a slice of uint32 ascending in place with
// insertion sort. The slices involved are always small (a file's tag
// count, or a tag's file count), so this is simpler than pulling in
// sort.Slice's interface overhead for no measurable gain.
func sortUint32s(s []uint32) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

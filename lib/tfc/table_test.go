// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tfc

import "testing"

func TestFileTableNonceAssignment(t *testing.T) {
	table := newFileTable()

	if table.nextNonce != 1 {
		t.Fatalf("nextNonce = %d, want 1", table.nextNonce)
	}

	table.add(&FileRecord{Nonce: table.nextNonce, Name: "a"})
	if table.nextNonce != 2 {
		t.Errorf("nextNonce after first add = %d, want 2", table.nextNonce)
	}

	table.add(&FileRecord{Nonce: table.nextNonce, Name: "b"})
	if table.nextNonce != 3 {
		t.Errorf("nextNonce after second add = %d, want 3", table.nextNonce)
	}

	if table.size() != 2 {
		t.Errorf("size = %d, want 2", table.size())
	}
}

func TestFileTableNonceNeverReused(t *testing.T) {
	table := newFileTable()

	rec := &FileRecord{Nonce: table.nextNonce, Name: "a"}
	table.add(rec)
	table.remove(rec)

	if table.size() != 0 {
		t.Fatalf("size after remove = %d, want 0", table.size())
	}
	if table.nextNonce != 2 {
		t.Errorf("nextNonce after remove = %d, want 2 (nonces are never reused)", table.nextNonce)
	}
}

func TestFileTableAscendingOrder(t *testing.T) {
	table := newFileTable()
	for _, nonce := range []uint32{5, 2, 8, 1} {
		table.add(&FileRecord{Nonce: nonce})
	}

	recs := table.ascending()
	var prev uint32
	for i, rec := range recs {
		if i > 0 && rec.Nonce < prev {
			t.Fatalf("ascending() not sorted: %v", recs)
		}
		prev = rec.Nonce
	}
}

func TestTagTableLookupByNonceAndName(t *testing.T) {
	table := newTagTable()
	tag := &TagRecord{Nonce: table.nextNonce, Name: "vacation", Files: make(map[uint32]*FileRecord)}
	table.add(tag)

	byNonce, ok := table.getByNonce(tag.Nonce)
	if !ok || byNonce != tag {
		t.Errorf("getByNonce(%d) = %v, %v; want %v, true", tag.Nonce, byNonce, ok, tag)
	}

	byName, ok := table.getByName("vacation")
	if !ok || byName != tag {
		t.Errorf("getByName(%q) = %v, %v; want %v, true", "vacation", byName, ok, tag)
	}

	table.remove(tag)
	if _, ok := table.getByNonce(tag.Nonce); ok {
		t.Error("getByNonce still finds a removed tag")
	}
	if _, ok := table.getByName("vacation"); ok {
		t.Error("getByName still finds a removed tag")
	}
}

func TestTagTableAscendingByName(t *testing.T) {
	table := newTagTable()
	for _, name := range []string{"zebra", "apple", "mango"} {
		table.add(&TagRecord{Nonce: table.nextNonce, Name: name, Files: make(map[uint32]*FileRecord)})
	}

	recs := table.ascendingByName()
	want := []string{"apple", "mango", "zebra"}
	for i, rec := range recs {
		if rec.Name != want[i] {
			t.Errorf("ascendingByName()[%d] = %q, want %q", i, rec.Name, want[i])
		}
	}
}

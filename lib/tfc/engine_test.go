// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tfc

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// P1: round-trip payload for a range of sizes, including the
// block-boundary cases called out in spec §8.
func TestRoundTripPayloadSizes(t *testing.T) {
	sizes := []int{0, 1, 511, 512, 513, 1024, 1025}

	for _, size := range sizes {
		path := filepath.Join(t.TempDir(), "t.tfc")
		c := Open(path)
		if err := c.Init(); err != nil {
			t.Fatalf("size %d: Init failed: %v", size, err)
		}
		if err := c.SetMode(Read); err != nil {
			t.Fatalf("size %d: SetMode(Read) failed: %v", size, err)
		}
		if err := c.SetMode(Edit); err != nil {
			t.Fatalf("size %d: SetMode(Edit) failed: %v", size, err)
		}

		payload := make([]byte, size)
		for i := range payload {
			payload[i] = byte(i % 256)
		}

		nonce, err := c.AddBlob("x", payload)
		if err != nil {
			t.Fatalf("size %d: AddBlob failed: %v", size, err)
		}

		if err := c.SetMode(Read); err != nil {
			t.Fatalf("size %d: SetMode(Read) failed: %v", size, err)
		}
		_, data, err := c.ReadBlob(nonce)
		if err != nil {
			t.Fatalf("size %d: ReadBlob failed: %v", size, err)
		}
		if !bytes.Equal(data, payload) {
			t.Errorf("size %d: round trip mismatch", size)
		}
	}
}

// P3: tag symmetry holds after an interleaved sequence of attaches
// and deletes.
func TestTagSymmetryAfterMutations(t *testing.T) {
	c, _ := newTestContainer(t)
	if err := c.SetMode(Read); err != nil {
		t.Fatalf("SetMode(Read) failed: %v", err)
	}
	if err := c.SetMode(Edit); err != nil {
		t.Fatalf("SetMode(Edit) failed: %v", err)
	}

	var nonces []uint32
	for _, name := range []string{"a", "b", "c", "d"} {
		nonce, err := c.AddBlob(name, []byte(name))
		if err != nil {
			t.Fatalf("AddBlob failed: %v", err)
		}
		nonces = append(nonces, nonce)
	}

	for _, n := range nonces {
		for _, tag := range []string{"common", "set"} {
			if err := c.AttachTag(n, tag); err != nil {
				t.Fatalf("AttachTag failed: %v", err)
			}
		}
	}
	if err := c.DeleteBlob(nonces[0]); err != nil {
		t.Fatalf("DeleteBlob failed: %v", err)
	}

	assertTagSymmetry(t, c.eng)
}

func assertTagSymmetry(t *testing.T, e *engine) {
	for _, f := range e.files.ascending() {
		for nonce := range f.Tags {
			tag, ok := e.tags.getByNonce(nonce)
			if !ok {
				t.Errorf("file %d references missing tag %d", f.Nonce, nonce)
				continue
			}
			if _, ok := tag.Files[f.Nonce]; !ok {
				t.Errorf("tag %q does not mirror file %d", tag.Name, f.Nonce)
			}
		}
	}
	for _, tag := range e.tags.ascendingByName() {
		for nonce := range tag.Files {
			f, ok := e.files.get(nonce)
			if !ok {
				t.Errorf("tag %q references missing file %d", tag.Name, nonce)
				continue
			}
			if _, ok := f.Tags[tag.Nonce]; !ok {
				t.Errorf("file %d does not mirror tag %q", f.Nonce, tag.Name)
			}
		}
	}
}

// P5: intersection equals the set of files carrying every given tag.
func TestIntersectionAgainstBruteForce(t *testing.T) {
	c, _ := newTestContainer(t)
	if err := c.SetMode(Read); err != nil {
		t.Fatalf("SetMode(Read) failed: %v", err)
	}
	if err := c.SetMode(Edit); err != nil {
		t.Fatalf("SetMode(Edit) failed: %v", err)
	}

	plan := map[string][]string{
		"a": {"red", "big"},
		"b": {"red"},
		"c": {"red", "big", "round"},
		"d": {"big", "round"},
	}
	nonceOf := make(map[string]uint32)
	for name, tags := range plan {
		nonce, err := c.AddBlob(name, []byte(name))
		if err != nil {
			t.Fatalf("AddBlob failed: %v", err)
		}
		nonceOf[name] = nonce
		for _, tag := range tags {
			if err := c.AttachTag(nonce, tag); err != nil {
				t.Fatalf("AttachTag failed: %v", err)
			}
		}
	}

	if err := c.SetMode(Read); err != nil {
		t.Fatalf("SetMode(Read) failed: %v", err)
	}

	got, err := c.Intersection([]string{"red", "big"})
	if err != nil {
		t.Fatalf("Intersection failed: %v", err)
	}

	var want []uint32
	for name, tags := range plan {
		if hasAll(tags, []string{"red", "big"}) {
			want = append(want, nonceOf[name])
		}
	}

	if len(got) != len(want) {
		t.Fatalf("Intersection returned %d files, want %d", len(got), len(want))
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].Nonce > got[i].Nonce {
			t.Fatalf("Intersection result not ascending by nonce: %v", got)
		}
	}
	sortUint32s(want)
	for i := range got {
		if got[i].Nonce != want[i] {
			t.Fatalf("Intersection = %v, want nonces %v", got, want)
		}
	}
}

func hasAll(have, want []string) bool {
	set := make(map[string]bool)
	for _, h := range have {
		set[h] = true
	}
	for _, w := range want {
		if !set[w] {
			return false
		}
	}
	return true
}

// P8: a file table entry referencing an unknown tag nonce is dropped
// silently during analyze; the rest of the structure still loads.
func TestAnalyzeDropsUnknownTagReference(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.tfc")

	e := newEngine(path)
	if err := e.s.setMode(Create); err != nil {
		t.Fatalf("setMode(Create) failed: %v", err)
	}
	if err := e.init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	ghost := &TagRecord{Nonce: 99, Name: "ghost"}
	rec := &FileRecord{
		Nonce: e.files.nextNonce,
		Name:  "haunted",
		Tags:  map[uint32]*TagRecord{ghost.Nonce: ghost},
	}
	e.files.add(rec)

	if err := e.rewriteTables(); err != nil {
		t.Fatalf("rewriteTables failed: %v", err)
	}
	if err := e.s.flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if err := e.s.setMode(Closed); err != nil {
		t.Fatalf("setMode(Closed) failed: %v", err)
	}

	e2 := newEngine(path)
	if err := e2.s.setMode(Read); err != nil {
		t.Fatalf("setMode(Read) failed: %v", err)
	}
	if err := e2.analyze(); err != nil {
		t.Fatalf("analyze failed: %v", err)
	}

	loaded, ok := e2.files.get(rec.Nonce)
	if !ok {
		t.Fatalf("file %d did not survive analyze", rec.Nonce)
	}
	if len(loaded.Tags) != 0 {
		t.Errorf("file's tags after analyze = %v, want empty (unknown nonce dropped)", loaded.Tags)
	}
	if e2.tags.size() != 0 {
		t.Errorf("tag table size after analyze = %d, want 0", e2.tags.size())
	}
}

// Bad magic is rejected with ErrBadMagic, not a generic I/O error.
func TestAnalyzeRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.tfc")
	c := Open(path)
	if err := c.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	corrupt(t, path, 0, []byte{0, 0, 0, 0})

	err := c.SetMode(Read)
	tfcErr, ok := err.(*Error)
	if !ok || tfcErr.Kind != ErrBadMagic {
		t.Errorf("SetMode(Read) on bad magic = %v, want ErrBadMagic", err)
	}
}

// A version newer than this package supports is rejected.
func TestAnalyzeRejectsUnsupportedVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.tfc")
	c := Open(path)
	if err := c.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	corrupt(t, path, 4, []byte{0, 0, 0, 99})

	err := c.SetMode(Read)
	tfcErr, ok := err.(*Error)
	if !ok || tfcErr.Kind != ErrUnsupportedVersion {
		t.Errorf("SetMode(Read) on future version = %v, want ErrUnsupportedVersion", err)
	}
}

func corrupt(t *testing.T, path string, at int64, data []byte) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		t.Fatalf("opening %s for corruption: %v", path, err)
	}
	defer f.Close()
	if _, err := f.WriteAt(data, at); err != nil {
		t.Fatalf("writing corruption bytes: %v", err)
	}
}

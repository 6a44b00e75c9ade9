// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tfc

import (
	"path/filepath"
	"testing"
)

func TestScribeWriteReadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.tfc")
	s := newScribe(path)

	if err := s.setMode(Create); err != nil {
		t.Fatalf("setMode(Create) failed: %v", err)
	}

	if err := s.writeUInt32(0xDEADBEEF); err != nil {
		t.Fatalf("writeUInt32 failed: %v", err)
	}
	if err := s.writeUInt64(0x0102030405060708); err != nil {
		t.Fatalf("writeUInt64 failed: %v", err)
	}
	if err := s.writeString("hello"); err != nil {
		t.Fatalf("writeString failed: %v", err)
	}
	if err := s.flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	if err := s.setMode(Read); err != nil {
		t.Fatalf("setMode(Read) failed: %v", err)
	}
	if err := s.setCursorPos(0); err != nil {
		t.Fatalf("setCursorPos failed: %v", err)
	}

	u32, err := s.readUInt32()
	if err != nil {
		t.Fatalf("readUInt32 failed: %v", err)
	}
	if u32 != 0xDEADBEEF {
		t.Errorf("readUInt32 = %#x, want %#x", u32, uint32(0xDEADBEEF))
	}

	u64, err := s.readUInt64()
	if err != nil {
		t.Fatalf("readUInt64 failed: %v", err)
	}
	if u64 != 0x0102030405060708 {
		t.Errorf("readUInt64 = %#x, want %#x", u64, uint64(0x0102030405060708))
	}

	str, err := s.readString()
	if err != nil {
		t.Fatalf("readString failed: %v", err)
	}
	if str != "hello" {
		t.Errorf("readString = %q, want %q", str, "hello")
	}
}

func TestScribeModeRejectsIOWhenClosed(t *testing.T) {
	s := newScribe(filepath.Join(t.TempDir(), "test.tfc"))

	if _, err := s.readUInt32(); err == nil {
		t.Fatal("readUInt32 on a closed scribe should fail")
	}
	if err := s.writeUInt32(0); err == nil {
		t.Fatal("writeUInt32 on a closed scribe should fail")
	}
}

func TestScribeCursorTracking(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.tfc")
	s := newScribe(path)

	if err := s.setMode(Create); err != nil {
		t.Fatalf("setMode(Create) failed: %v", err)
	}

	if err := s.writeBytes(make([]byte, 16)); err != nil {
		t.Fatalf("writeBytes failed: %v", err)
	}
	if got := s.cursorPos(); got != 16 {
		t.Errorf("cursorPos = %d, want 16", got)
	}

	if err := s.setCursorPos(4); err != nil {
		t.Fatalf("setCursorPos failed: %v", err)
	}
	if got := s.cursorPos(); got != 4 {
		t.Errorf("cursorPos = %d, want 4", got)
	}
}

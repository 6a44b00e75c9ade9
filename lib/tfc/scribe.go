// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tfc

import (
	"encoding/binary"
	"io"
	"os"
)

// scribe wraps positioned byte I/O over the container file: a cursor,
// an operation-mode state machine, and a big-endian integer codec.
// Transitioning to any non-closed mode while already open closes and
// reopens the underlying file handle, matching spec §4.1. Entering
// EDIT also takes a non-blocking advisory flock (see lock_unix.go),
// released on any transition away from EDIT.
type scribe struct {
	path   string
	mode   Mode
	file   *os.File
	locked bool
}

func newScribe(path string) *scribe {
	return &scribe{path: path, mode: Closed}
}

// setMode transitions the scribe to the given mode, closing any
// currently-open handle first. Transitioning to Closed simply closes
// the handle. Failing to open the file surfaces as ErrIoFailure.
func (s *scribe) setMode(mode Mode) error {
	if s.file != nil {
		if s.locked {
			funlockAdvisory(int(s.file.Fd()))
			s.locked = false
		}
		s.file.Close()
		s.file = nil
	}

	switch mode {
	case Closed:
		s.mode = Closed
		return nil

	case Read:
		f, err := os.OpenFile(s.path, os.O_RDONLY, 0)
		if err != nil {
			return errIoFailure("open(read)", 0, err)
		}
		s.file = f

	case Create:
		f, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return errIoFailure("open(create)", 0, err)
		}
		s.file = f

	case Edit:
		f, err := os.OpenFile(s.path, os.O_RDWR, 0o644)
		if err != nil {
			return errIoFailure("open(edit)", 0, err)
		}
		if err := flockAdvisory(int(f.Fd())); err != nil {
			f.Close()
			return errWrongMode("another process holds this container open for editing")
		}
		s.locked = true
		s.file = f

	default:
		return errWrongMode("unrecognized mode")
	}

	s.mode = mode
	return nil
}

func (s *scribe) getMode() Mode {
	return s.mode
}

// cursorPos returns the current byte offset of the underlying file
// handle, or 0 if the scribe is closed.
func (s *scribe) cursorPos() uint64 {
	if s.file == nil {
		return 0
	}
	pos, err := s.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0
	}
	return uint64(pos)
}

// setCursorPos seeks the underlying file handle to an absolute byte
// offset.
func (s *scribe) setCursorPos(pos uint64) error {
	if s.file == nil {
		return errWrongMode("scribe is closed")
	}
	if _, err := s.file.Seek(int64(pos), io.SeekStart); err != nil {
		return errIoFailure("seek", pos, err)
	}
	return nil
}

// readBytes fills buf entirely from the current cursor position,
// advancing the cursor. Any short read fails with ErrIoFailure.
func (s *scribe) readBytes(buf []byte) error {
	if s.file == nil {
		return errWrongMode("scribe is closed")
	}
	pos := s.cursorPos()
	if _, err := io.ReadFull(s.file, buf); err != nil {
		return errIoFailure("read", pos, err)
	}
	return nil
}

func (s *scribe) readUInt32() (uint32, error) {
	var buf [4]byte
	if err := s.readBytes(buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

func (s *scribe) readUInt64() (uint64, error) {
	var buf [8]byte
	if err := s.readBytes(buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

// readString reads a null-terminated UTF-8 string from the current
// cursor position. No length prefix; readers consume until the 0x00
// terminator.
func (s *scribe) readString() (string, error) {
	if s.file == nil {
		return "", errWrongMode("scribe is closed")
	}
	pos := s.cursorPos()

	var out []byte
	var b [1]byte
	for {
		if _, err := io.ReadFull(s.file, b[:]); err != nil {
			return "", errIoFailure("read string", pos, err)
		}
		if b[0] == 0x00 {
			break
		}
		out = append(out, b[0])
	}
	return string(out), nil
}

// writeBytes writes buf at the current cursor position, advancing the
// cursor. Any short write fails with ErrIoFailure.
func (s *scribe) writeBytes(buf []byte) error {
	if s.file == nil {
		return errWrongMode("scribe is closed")
	}
	pos := s.cursorPos()
	n, err := s.file.Write(buf)
	if err != nil {
		return errIoFailure("write", pos, err)
	}
	if n != len(buf) {
		return errIoFailure("write (short)", pos, io.ErrShortWrite)
	}
	return nil
}

func (s *scribe) writeUInt32(v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	return s.writeBytes(buf[:])
}

func (s *scribe) writeUInt64(v uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return s.writeBytes(buf[:])
}

// writeString emits the UTF-8 contents of v followed by a single
// 0x00 terminator byte. No length prefix.
func (s *scribe) writeString(v string) error {
	if err := s.writeBytes([]byte(v)); err != nil {
		return err
	}
	return s.writeBytes([]byte{0x00})
}

// reset closes the underlying file handle, returning the scribe to
// the closed state without touching the container file on disk.
func (s *scribe) reset() error {
	return s.setMode(Closed)
}

// flush forces any buffered data to stable storage via fsync. os.File
// is unbuffered on write, so this is a thin pass-through, but it keeps
// the durability contract of spec §5 explicit at the call sites that
// need it.
func (s *scribe) flush() error {
	if s.file == nil {
		return nil
	}
	if err := s.file.Sync(); err != nil {
		return errIoFailure("sync", s.cursorPos(), err)
	}
	return nil
}

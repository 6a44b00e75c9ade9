// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tfc

import (
	"os"
	"sync"
)

// Container is the public façade over a single Tagged File Container
// on disk. It holds opLock for the entire duration of every exported
// method, making all operations linearize against each other within
// one process — the same "one mutex guards the whole façade" shape as
// the teacher's Store over its chunker/container internals. Across
// processes, the only locking is the advisory flock the scribe takes
// while EDIT is held (see lock_unix.go).
type Container struct {
	opLock sync.Mutex

	path string
	eng  *engine
}

// Open prepares a Container for the file at path without touching the
// filesystem. Callers follow with Exists, then either Init (for a new
// container) or SetMode(Read) (for an existing one).
func Open(path string) *Container {
	return &Container{
		path: path,
		eng:  newEngine(path),
	}
}

// Close releases the container's file handle and any advisory lock,
// returning it to CLOSED. Close is safe to call on an already-closed
// Container.
func (c *Container) Close() error {
	c.opLock.Lock()
	defer c.opLock.Unlock()

	return c.eng.setMode(Closed)
}

// Exists reports whether a file already exists at the container's
// path, independent of whether its contents are a valid container.
func (c *Container) Exists() (bool, error) {
	c.opLock.Lock()
	defer c.opLock.Unlock()

	_, err := os.Stat(c.path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errIoFailure("stat", 0, err)
}

// Init creates a new, empty container at the path given to Open,
// truncating any existing file. Init leaves the container CLOSED;
// callers reopen with SetMode(Read) to begin using it (spec §4.5.2:
// CREATE's only outgoing transition is to CLOSED).
func (c *Container) Init() error {
	c.opLock.Lock()
	defer c.opLock.Unlock()

	if err := c.eng.setMode(Create); err != nil {
		return err
	}
	if err := c.eng.init(); err != nil {
		c.eng.setMode(Closed)
		return err
	}
	return c.eng.setMode(Closed)
}

// Mode returns the container's current operation mode.
func (c *Container) Mode() Mode {
	c.opLock.Lock()
	defer c.opLock.Unlock()

	return c.eng.s.getMode()
}

// SetMode transitions the container between CLOSED, READ, and EDIT.
// CREATE is not a caller-facing target; use Init instead.
func (c *Container) SetMode(mode Mode) error {
	c.opLock.Lock()
	defer c.opLock.Unlock()

	if mode == Create {
		return errInvalidArgument("create mode is entered only via Init")
	}
	return c.eng.setMode(mode)
}

// IsEncrypted reports whether the container's data-encryption-key slot
// is non-zero. The container must have been analyzed at least once
// (i.e. opened for READ) for this to reflect on-disk state.
func (c *Container) IsEncrypted() bool {
	c.opLock.Lock()
	defer c.opLock.Unlock()

	return c.eng.encrypted
}

// IsUnlocked reports whether a locked, encrypted container's DEK has
// been supplied. True after Init, or after an analyze (SetMode(Read))
// that found a zero DEK slot; false before either has run.
func (c *Container) IsUnlocked() bool {
	c.opLock.Lock()
	defer c.opLock.Unlock()

	return c.eng.unlocked
}

// AddBlob stores data under name and returns its assigned nonce.
// Requires EDIT mode.
func (c *Container) AddBlob(name string, data []byte) (uint32, error) {
	c.opLock.Lock()
	defer c.opLock.Unlock()

	return c.eng.addBlob(name, data)
}

// DeleteBlob removes the file with the given nonce, freeing its
// blocks and detaching (and, if orphaned, removing) its tags.
// Requires EDIT mode.
func (c *Container) DeleteBlob(nonce uint32) error {
	c.opLock.Lock()
	defer c.opLock.Unlock()

	return c.eng.deleteBlob(nonce)
}

// AttachTag links the file with the given nonce to a tag by name,
// creating the tag if it does not already exist. Requires EDIT mode.
func (c *Container) AttachTag(nonce uint32, name string) error {
	c.opLock.Lock()
	defer c.opLock.Unlock()

	return c.eng.attachTag(nonce, name)
}

// ReadBlob returns the metadata and full contents of the file with
// the given nonce. Requires READ mode.
func (c *Container) ReadBlob(nonce uint32) (FileRecord, []byte, error) {
	c.opLock.Lock()
	defer c.opLock.Unlock()

	return c.eng.readBlob(nonce)
}

// ListBlobs returns every file's metadata ordered by nonce ascending.
// Requires READ mode.
func (c *Container) ListBlobs() ([]FileRecord, error) {
	c.opLock.Lock()
	defer c.opLock.Unlock()

	return c.eng.listBlobs()
}

// ListTags returns every tag ordered by name ascending. Requires READ
// mode.
func (c *Container) ListTags() ([]TagRecord, error) {
	c.opLock.Lock()
	defer c.opLock.Unlock()

	return c.eng.listTags()
}

// Intersection returns every file carrying all of the given tag
// names, ordered by nonce ascending. Requires READ mode.
func (c *Container) Intersection(names []string) ([]FileRecord, error) {
	c.opLock.Lock()
	defer c.opLock.Unlock()

	return c.eng.intersection(names)
}

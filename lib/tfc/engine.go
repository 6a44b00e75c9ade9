// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tfc

import (
	"encoding/binary"
	"sort"
	"strings"
)

// Container format constants (spec §4.5.1). All integers are
// big-endian; strings are null-terminated UTF-8.
const (
	magicNumber    uint32 = 0xE621126E
	currentVersion uint32 = 1

	dekSlotSize = 32

	// headerSize is magic(4) + version(4) + DEK slot(32).
	headerSize = 4 + 4 + dekSlotSize

	// blockCountPos is the fixed on-disk offset of the BLOCK_COUNT
	// field, immediately after the header.
	blockCountPos = headerSize

	// blockListStart is the fixed on-disk offset where the block
	// array begins, immediately after the BLOCK_COUNT field.
	blockListStart = blockCountPos + 4

	// blockPayloadSize is the usable payload bytes per block.
	blockPayloadSize = 512

	// blockSize is one full block: payload + the 4-byte nextBlock
	// index.
	blockSize = blockPayloadSize + 4
)

// blocksForSize returns ceil(size/blockPayloadSize), the number of
// blocks a payload of the given size occupies.
func blocksForSize(size uint64) int {
	return int((size + blockPayloadSize - 1) / blockPayloadSize)
}

// engine holds the container's analyzed state: the scribe doing byte
// I/O, the block heap's current size, the DEK-slot-derived lock state,
// and the in-memory tag/file graph. Every method assumes the caller
// (Container) holds the single process-wide operation lock for the
// engine instance (spec §4.5.10) — engine itself does no locking.
type engine struct {
	s *scribe

	blockCount uint32
	encrypted  bool
	unlocked   bool

	files *fileTable
	tags  *tagTable
}

func newEngine(path string) *engine {
	return &engine{
		s:     newScribe(path),
		files: newFileTable(),
		tags:  newTagTable(),
	}
}

// setMode drives the operation-mode state machine (spec §4.5.2):
// CLOSED → READ, CLOSED → CREATE, READ ↔ EDIT, any → CLOSED. Entering
// READ always triggers analyze, rebuilding the in-memory graph from
// disk.
func (e *engine) setMode(newMode Mode) error {
	cur := e.s.getMode()

	valid := newMode == Closed ||
		(cur == Closed && newMode == Read) ||
		(cur == Closed && newMode == Create) ||
		(cur == Read && newMode == Edit) ||
		(cur == Edit && newMode == Read)
	if !valid {
		return errWrongMode("cannot transition from " + cur.String() + " to " + newMode.String())
	}

	if err := e.s.setMode(newMode); err != nil {
		return err
	}

	if newMode == Read {
		if err := e.analyze(); err != nil {
			e.s.setMode(Closed)
			return err
		}
	}

	return nil
}

// blockOffset returns the absolute byte offset of block index within
// the container file.
func blockOffset(index uint32) uint64 {
	return blockListStart + uint64(index)*blockSize
}

func isBlockZero(buf []byte) bool {
	for _, b := range buf {
		if b != 0 {
			return false
		}
	}
	return true
}

// readBlockRaw reads the full 516-byte block at index: 512 bytes of
// payload followed by the 4-byte nextBlock index.
func (e *engine) readBlockRaw(index uint32) ([]byte, error) {
	if err := e.s.setCursorPos(blockOffset(index)); err != nil {
		return nil, err
	}
	buf := make([]byte, blockSize)
	if err := e.s.readBytes(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// writeBlockRaw writes a block's 512-byte payload (must be exactly
// blockPayloadSize bytes, zero-padded by the caller) and its
// nextBlock index.
func (e *engine) writeBlockRaw(index uint32, payload []byte, next uint32) error {
	if err := e.s.setCursorPos(blockOffset(index)); err != nil {
		return err
	}
	if err := e.s.writeBytes(payload); err != nil {
		return err
	}
	return e.s.writeUInt32(next)
}

// zeroBlock overwrites a block's entire 516 bytes with zeros,
// returning it to the free pool (spec §4.5.7 step 2).
func (e *engine) zeroBlock(index uint32) error {
	if err := e.s.setCursorPos(blockOffset(index)); err != nil {
		return err
	}
	return e.s.writeBytes(make([]byte, blockSize))
}

// appendBlock grows the block heap by one block, immediately
// persisting the new BLOCK_COUNT so the header never lags the actual
// heap size.
func (e *engine) appendBlock() (uint32, error) {
	index := e.blockCount
	e.blockCount++
	if err := e.s.setCursorPos(blockCountPos); err != nil {
		return 0, err
	}
	if err := e.s.writeUInt32(e.blockCount); err != nil {
		return 0, err
	}
	return index, nil
}

// scanFreeBlocks returns the ascending indices of every free
// (all-zero) block currently in the heap.
func (e *engine) scanFreeBlocks() ([]uint32, error) {
	var free []uint32
	for i := uint32(0); i < e.blockCount; i++ {
		buf, err := e.readBlockRaw(i)
		if err != nil {
			return nil, err
		}
		if isBlockZero(buf) {
			free = append(free, i)
		}
	}
	return free, nil
}

// allocateChain returns blocksNeeded block indices, reusing free
// blocks before growing the heap (spec §4.5.5 step 1, P7).
func (e *engine) allocateChain(blocksNeeded int) ([]uint32, error) {
	if blocksNeeded == 0 {
		return nil, nil
	}

	free, err := e.scanFreeBlocks()
	if err != nil {
		return nil, err
	}

	chain := make([]uint32, 0, blocksNeeded)
	for len(chain) < blocksNeeded {
		if len(free) > 0 {
			chain = append(chain, free[0])
			free = free[1:]
			continue
		}
		idx, err := e.appendBlock()
		if err != nil {
			return nil, err
		}
		chain = append(chain, idx)
	}
	return chain, nil
}

// writeChain writes data across the given block chain, 512 bytes per
// block, zero-padding the final block and chaining nextBlock indices.
func (e *engine) writeChain(chain []uint32, data []byte) error {
	for i, idx := range chain {
		start := i * blockPayloadSize
		end := start + blockPayloadSize
		if end > len(data) {
			end = len(data)
		}

		var payload [blockPayloadSize]byte
		copy(payload[:], data[start:end])

		var next uint32
		if i+1 < len(chain) {
			next = chain[i+1]
		}

		if err := e.writeBlockRaw(idx, payload[:], next); err != nil {
			return err
		}
	}
	return nil
}

// readChain reconstructs a payload of the given size starting at
// startBlock, following nextBlock links.
func (e *engine) readChain(startBlock uint32, size uint64) ([]byte, error) {
	blocksNeeded := blocksForSize(size)
	data := make([]byte, 0, size)

	idx := startBlock
	remaining := size
	for i := 0; i < blocksNeeded; i++ {
		buf, err := e.readBlockRaw(idx)
		if err != nil {
			return nil, err
		}

		n := uint64(blockPayloadSize)
		if remaining < n {
			n = remaining
		}
		data = append(data, buf[:n]...)
		remaining -= n

		idx = binary.BigEndian.Uint32(buf[blockPayloadSize:blockSize])
	}
	return data, nil
}

// tagTableStart returns the current on-disk offset of the tag table
// header, which shifts whenever the block heap grows.
func (e *engine) tagTableStart() uint64 {
	return blockListStart + uint64(e.blockCount)*blockSize
}

// rewriteTables rewrites the tag table and file table in full,
// starting immediately after the block heap, then truncates the file
// at the end of the file table. Both tables are small relative to
// block data, so a full rewrite on every mutation is simpler than
// tracking which half changed and trivially satisfies I5 (table
// header counts always match in-memory size after any successful
// mutation).
func (e *engine) rewriteTables() error {
	if err := e.s.setCursorPos(e.tagTableStart()); err != nil {
		return err
	}

	if err := e.s.writeUInt32(e.tags.nextNonce); err != nil {
		return err
	}
	if err := e.s.writeUInt32(uint32(e.tags.size())); err != nil {
		return err
	}
	for _, tag := range e.tags.ascendingByName() {
		if err := e.s.writeUInt32(tag.Nonce); err != nil {
			return err
		}
		if err := e.s.writeString(tag.Name); err != nil {
			return err
		}
	}

	if err := e.s.writeUInt32(e.files.nextNonce); err != nil {
		return err
	}
	if err := e.s.writeUInt32(uint32(e.files.size())); err != nil {
		return err
	}
	for _, f := range e.files.ascending() {
		if err := e.s.writeUInt32(f.Nonce); err != nil {
			return err
		}
		if err := e.s.writeString(f.Name); err != nil {
			return err
		}
		if err := e.s.writeUInt64(f.Hash); err != nil {
			return err
		}
		if err := e.s.writeUInt64(uint64(f.StartBlock)); err != nil {
			return err
		}
		if err := e.s.writeUInt64(f.Size); err != nil {
			return err
		}

		nonces := f.sortedTagNonces()
		if err := e.s.writeUInt32(uint32(len(nonces))); err != nil {
			return err
		}
		for _, tn := range nonces {
			if err := e.s.writeUInt32(tn); err != nil {
				return err
			}
		}
	}

	endPos := e.s.cursorPos()
	if err := e.s.file.Truncate(int64(endPos)); err != nil {
		return errIoFailure("truncate", endPos, err)
	}
	return nil
}

// init emits a minimal empty container (spec §4.5.4) and resets the
// in-memory graph. The scribe must already be in CREATE mode.
func (e *engine) init() error {
	if e.s.getMode() != Create {
		return errWrongMode("init requires CREATE mode")
	}

	e.blockCount = 0
	e.encrypted = false
	e.unlocked = true
	e.files = newFileTable()
	e.tags = newTagTable()

	if err := e.s.setCursorPos(0); err != nil {
		return err
	}
	if err := e.s.writeUInt32(magicNumber); err != nil {
		return err
	}
	if err := e.s.writeUInt32(currentVersion); err != nil {
		return err
	}
	if err := e.s.writeBytes(make([]byte, dekSlotSize)); err != nil {
		return err
	}
	if err := e.s.writeUInt32(e.blockCount); err != nil {
		return err
	}

	if err := e.rewriteTables(); err != nil {
		return err
	}
	return e.s.flush()
}

// analyze parses a container on open and rebuilds the in-memory
// tag/file graph (spec §4.5.3). The scribe must already be in READ
// mode, positioned at the start of the file.
func (e *engine) analyze() error {
	s := e.s

	if err := s.setCursorPos(0); err != nil {
		return err
	}

	magic, err := s.readUInt32()
	if err != nil {
		return err
	}
	if magic != magicNumber {
		return errBadMagic()
	}

	version, err := s.readUInt32()
	if err != nil {
		return err
	}
	if version > currentVersion {
		return errUnsupportedVersion(version)
	}

	dek := make([]byte, dekSlotSize)
	if err := s.readBytes(dek); err != nil {
		return err
	}
	e.encrypted = !isBlockZero(dek)
	e.unlocked = !e.encrypted

	blockCount, err := s.readUInt32()
	if err != nil {
		return err
	}
	e.blockCount = blockCount

	if err := s.setCursorPos(e.tagTableStart()); err != nil {
		return err
	}

	tags := newTagTable()
	tagNextNonce, err := s.readUInt32()
	if err != nil {
		return err
	}
	tagCount, err := s.readUInt32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < tagCount; i++ {
		nonce, err := s.readUInt32()
		if err != nil {
			return err
		}
		name, err := s.readString()
		if err != nil {
			return err
		}
		tags.add(&TagRecord{Nonce: nonce, Name: name, Files: make(map[uint32]*FileRecord)})
	}
	tags.nextNonce = tagNextNonce

	files := newFileTable()
	fileNextNonce, err := s.readUInt32()
	if err != nil {
		return err
	}
	fileCount, err := s.readUInt32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < fileCount; i++ {
		nonce, err := s.readUInt32()
		if err != nil {
			return err
		}
		name, err := s.readString()
		if err != nil {
			return err
		}
		hash, err := s.readUInt64()
		if err != nil {
			return err
		}
		startBlock, err := s.readUInt64()
		if err != nil {
			return err
		}
		size, err := s.readUInt64()
		if err != nil {
			return err
		}
		tagCount, err := s.readUInt32()
		if err != nil {
			return err
		}
		tagNonces := make([]uint32, tagCount)
		for j := uint32(0); j < tagCount; j++ {
			tn, err := s.readUInt32()
			if err != nil {
				return err
			}
			tagNonces[j] = tn
		}

		rec := &FileRecord{
			Nonce:      nonce,
			Name:       name,
			Hash:       hash,
			StartBlock: uint32(startBlock),
			Size:       size,
			Tags:       make(map[uint32]*TagRecord),
		}
		files.add(rec)

		for _, tn := range tagNonces {
			// Unknown tag nonces are dropped silently (P8, format
			// tolerance): the file table entry may reference a tag
			// nonce the tag table no longer carries.
			if tag, ok := tags.getByNonce(tn); ok {
				link(rec, tag)
			}
		}
	}
	files.nextNonce = fileNextNonce

	e.tags = tags
	e.files = files
	return nil
}

// addBlob implements spec §4.5.5.
func (e *engine) addBlob(name string, data []byte) (uint32, error) {
	if e.s.getMode() != Edit {
		return 0, errWrongMode("addBlob requires EDIT mode")
	}
	if e.encrypted && !e.unlocked {
		return 0, errEncryptedLocked()
	}

	blocksNeeded := blocksForSize(uint64(len(data)))
	chain, err := e.allocateChain(blocksNeeded)
	if err != nil {
		return 0, err
	}
	if len(chain) > 0 {
		if err := e.writeChain(chain, data); err != nil {
			return 0, err
		}
	}

	var startBlock uint32
	if len(chain) > 0 {
		startBlock = chain[0]
	}

	rec := &FileRecord{
		Nonce:      e.files.nextNonce,
		Name:       name,
		Hash:       digest64(magicNumber, data),
		StartBlock: startBlock,
		Size:       uint64(len(data)),
		Tags:       make(map[uint32]*TagRecord),
	}
	e.files.add(rec)

	if err := e.rewriteTables(); err != nil {
		return 0, err
	}
	if err := e.s.flush(); err != nil {
		return 0, err
	}

	return rec.Nonce, nil
}

// attachTag implements spec §4.5.6.
func (e *engine) attachTag(fileNonce uint32, tagName string) error {
	if e.s.getMode() != Edit {
		return errWrongMode("attachTag requires EDIT mode")
	}
	if e.encrypted && !e.unlocked {
		return errEncryptedLocked()
	}

	rec, ok := e.files.get(fileNonce)
	if !ok {
		return errNoSuchBlob(fileNonce)
	}

	name := strings.ToLower(tagName)
	tag, exists := e.tags.getByName(name)
	if !exists {
		tag = &TagRecord{Nonce: e.tags.nextNonce, Name: name, Files: make(map[uint32]*FileRecord)}
		e.tags.add(tag)
	} else if rec.hasTag(tag.Nonce) {
		return errAlreadyTagged(fileNonce)
	}

	link(rec, tag)

	if err := e.rewriteTables(); err != nil {
		return err
	}
	return e.s.flush()
}

// deleteBlob implements spec §4.5.7.
func (e *engine) deleteBlob(fileNonce uint32) error {
	if e.s.getMode() != Edit {
		return errWrongMode("deleteBlob requires EDIT mode")
	}
	if e.encrypted && !e.unlocked {
		return errEncryptedLocked()
	}

	rec, ok := e.files.get(fileNonce)
	if !ok {
		return errNoSuchBlob(fileNonce)
	}

	if blocksNeeded := blocksForSize(rec.Size); blocksNeeded > 0 {
		idx := rec.StartBlock
		for i := 0; i < blocksNeeded; i++ {
			buf, err := e.readBlockRaw(idx)
			if err != nil {
				return err
			}
			next := binary.BigEndian.Uint32(buf[blockPayloadSize:blockSize])
			if err := e.zeroBlock(idx); err != nil {
				return err
			}
			idx = next
		}
	}

	for _, tag := range tagsOf(rec) {
		unlink(rec, tag)
		if len(tag.Files) == 0 {
			e.tags.remove(tag)
		}
	}
	e.files.remove(rec)

	if err := e.rewriteTables(); err != nil {
		return err
	}
	return e.s.flush()
}

// tagsOf returns a snapshot of a file's tags, safe to iterate while
// mutating the file's own Tags map.
func tagsOf(rec *FileRecord) []*TagRecord {
	out := make([]*TagRecord, 0, len(rec.Tags))
	for _, tag := range rec.Tags {
		out = append(out, tag)
	}
	return out
}

// readBlob implements spec §4.5.8, returning the file's metadata and
// its full reconstructed payload. The engine's single-operation-lock
// rule (spec §4.5.10) makes returning a lazy stream pointless — the
// whole chain is walked inside this call regardless — so the façade
// gets the simpler, already-assembled byte slice.
func (e *engine) readBlob(nonce uint32) (FileRecord, []byte, error) {
	if e.s.getMode() != Read {
		return FileRecord{}, nil, errWrongMode("readBlob requires READ mode")
	}

	rec, ok := e.files.get(nonce)
	if !ok {
		return FileRecord{}, nil, errNoSuchBlob(nonce)
	}

	var data []byte
	if rec.Size > 0 {
		var err error
		data, err = e.readChain(rec.StartBlock, rec.Size)
		if err != nil {
			return FileRecord{}, nil, err
		}
	} else {
		data = []byte{}
	}

	return cloneFileRecord(rec), data, nil
}

// listBlobs implements spec §4.5's listing operation: every
// FileRecord ordered by nonce ascending.
func (e *engine) listBlobs() ([]FileRecord, error) {
	if e.s.getMode() != Read {
		return nil, errWrongMode("listBlobs requires READ mode")
	}
	recs := e.files.ascending()
	out := make([]FileRecord, len(recs))
	for i, r := range recs {
		out[i] = cloneFileRecord(r)
	}
	return out, nil
}

// listTags implements spec §4.3's ordered tag iteration: every
// TagRecord ordered by name ascending.
func (e *engine) listTags() ([]TagRecord, error) {
	if e.s.getMode() != Read {
		return nil, errWrongMode("listTags requires READ mode")
	}
	recs := e.tags.ascendingByName()
	out := make([]TagRecord, len(recs))
	for i, r := range recs {
		out[i] = cloneTagRecord(r)
	}
	return out, nil
}

// intersection implements spec §4.5.9: the set of files carrying
// every one of the given tags, ordered by nonce ascending.
func (e *engine) intersection(names []string) ([]FileRecord, error) {
	if e.s.getMode() != Read {
		return nil, errWrongMode("intersection requires READ mode")
	}
	if len(names) == 0 {
		return nil, errInvalidArgument("intersection requires at least one tag name")
	}

	searchTags := make([]*TagRecord, 0, len(names))
	for _, name := range names {
		folded := strings.ToLower(name)
		tag, ok := e.tags.getByName(folded)
		if !ok {
			return nil, errNoSuchTag(name)
		}
		searchTags = append(searchTags, tag)
	}

	// Union of every file carrying any of the search tags.
	union := make(map[uint32]*FileRecord)
	for _, tag := range searchTags {
		for nonce, f := range tag.Files {
			union[nonce] = f
		}
	}

	K := len(searchTags)
	qualifying := make([]*FileRecord, 0, len(union))
	for _, f := range union {
		count := 0
		for _, tag := range searchTags {
			if f.hasTag(tag.Nonce) {
				count++
			}
		}
		if count == K {
			qualifying = append(qualifying, f)
		}
	}

	sort.Slice(qualifying, func(i, j int) bool { return qualifying[i].Nonce < qualifying[j].Nonce })

	out := make([]FileRecord, len(qualifying))
	for i, f := range qualifying {
		out[i] = cloneFileRecord(f)
	}
	return out, nil
}

// cloneFileRecord returns a value copy of rec with its own Tags map,
// safe for callers to hold without aliasing engine-internal state.
func cloneFileRecord(rec *FileRecord) FileRecord {
	tags := make(map[uint32]*TagRecord, len(rec.Tags))
	for k, v := range rec.Tags {
		tags[k] = v
	}
	return FileRecord{
		Nonce:      rec.Nonce,
		Name:       rec.Name,
		Hash:       rec.Hash,
		StartBlock: rec.StartBlock,
		Size:       rec.Size,
		Tags:       tags,
	}
}

// cloneTagRecord returns a value copy of rec with its own Files map.
func cloneTagRecord(rec *TagRecord) TagRecord {
	files := make(map[uint32]*FileRecord, len(rec.Files))
	for k, v := range rec.Files {
		files[k] = v
	}
	return TagRecord{
		Nonce: rec.Nonce,
		Name:  rec.Name,
		Files: files,
	}
}

// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/rawzip

package rawzip

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"
)

// defaultScratchSize is the initial scratch buffer size for central
// directory iteration. Records whose variable region exceeds it surface a
// BufferTooSmallError with the exact requirement.
const defaultScratchSize = 64 * 1024

// cdReaderPool reuses buffered readers for central directory iteration.
var cdReaderPool = sync.Pool{
	New: func() any {
		return bufio.NewReaderSize(nil, 32*1024)
	},
}

// ReaderArchive is a parsed ZIP archive over a random-access source of
// known size. Concurrent reads are safe when the source supports positional
// reads; wrap seek-only sources in a MutexReader.
type ReaderArchive struct {
	r      io.ReaderAt
	size   uint64
	layout archiveLayout
}

// ParseReader locates the end of central directory over r and resolves the
// archive geometry.
func ParseReader(r io.ReaderAt, size uint64) (*ReaderArchive, error) {
	return ParseReaderWithOptions(r, size, ReaderOptions{})
}

// ParseReaderWithOptions parses with an explicit EOCD search bound. Use
// opts.EndOffset to retry past a false EOCD candidate or to open an archive
// embedded in a larger file.
func ParseReaderWithOptions(r io.ReaderAt, size uint64, opts ReaderOptions) (*ReaderArchive, error) {
	if r == nil {
		return nil, ErrNilSource
	}

	opts.applyDefaults(size)

	start := tailWindowStart(opts.EndOffset)
	window := make([]byte, opts.EndOffset-start)
	if n, err := r.ReadAt(window, int64(start)); err != nil && !(err == io.EOF && n == len(window)) {
		return nil, fmt.Errorf("read tail window: %w", err)
	}

	loc, err := locateEOCD(window, start)
	if err != nil {
		return nil, err
	}

	layout, err := resolveLayout(loc, size, func(off, n uint64) ([]byte, error) {
		return readAtView(r, size, off, n)
	})
	if err != nil {
		return nil, err
	}

	return &ReaderArchive{r: r, size: size, layout: layout}, nil
}

// ParseFile parses an archive from an open file, taking the size from the
// file metadata. The caller keeps ownership of the file handle.
func ParseFile(f *os.File) (*ReaderArchive, error) {
	if f == nil {
		return nil, ErrNilSource
	}

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}

	return ParseReader(f, uint64(info.Size()))
}

// readAtView reads an owned bounded view from a random-access source.
func readAtView(r io.ReaderAt, srcLen, off, n uint64) ([]byte, error) {
	if off+n < off || off+n > srcLen {
		return nil, ErrTruncated
	}

	buf := make([]byte, n)
	if got, err := r.ReadAt(buf, int64(off)); err != nil && !(err == io.EOF && got == len(buf)) {
		return nil, fmt.Errorf("read at %d: %w", off, err)
	}

	return buf, nil
}

// Size returns the source size in bytes.
func (a *ReaderArchive) Size() uint64 {
	return a.size
}

// EOCDOffset returns the absolute offset of the EOCD signature.
func (a *ReaderArchive) EOCDOffset() uint64 {
	return a.layout.eocdOffset
}

// EntriesTotal returns the declared central directory entry count.
func (a *ReaderArchive) EntriesTotal() uint64 {
	return a.layout.entriesTotal
}

// Zip64 reports whether the archive carries ZIP64 end records.
func (a *ReaderArchive) Zip64() bool {
	return a.layout.zip64
}

// Comment returns a reader over the archive comment bytes. The comment is
// re-read from the source on demand and never materialized by the parser.
func (a *ReaderArchive) Comment() *io.SectionReader {
	return io.NewSectionReader(a.r, int64(a.layout.commentOffset), int64(a.layout.commentLen))
}

// Entries returns a cursor over the central directory region. Entry views
// borrow from scratch and stay valid until the next call to Next; pass nil
// to let the cursor allocate a default-sized buffer.
//
// Call Close when done to return pooled resources.
func (a *ReaderArchive) Entries(scratch []byte) *ReaderEntries {
	if scratch == nil {
		scratch = make([]byte, defaultScratchSize)
	}

	br, _ := cdReaderPool.Get().(*bufio.Reader)
	br.Reset(io.NewSectionReader(a.r, int64(a.layout.cdOffset), int64(a.layout.cdSize+eocdLen)))

	return &ReaderEntries{archive: a, br: br, scratch: scratch}
}

// ReaderEntries iterates central directory records of a reader archive.
type ReaderEntries struct {
	archive *ReaderArchive
	br      *bufio.Reader
	err     error
	scratch []byte
	fixed   [centralHeaderLen]byte
	done    bool
}

// Next parses the next central directory record. It returns io.EOF after
// the final record. A record whose variable region exceeds the scratch
// buffer fails with a BufferTooSmallError reporting the required size.
func (it *ReaderEntries) Next() (Entry, error) {
	if it.err != nil {
		return Entry{}, it.err
	}

	if it.done {
		return Entry{}, io.EOF
	}

	if _, err := io.ReadFull(it.br, it.fixed[:4]); err != nil {
		it.err = readErr(err)
		return Entry{}, it.err
	}

	switch sig := newCursor(it.fixed[:4]); sig.u32() {
	case sigCentralHeader:
	case sigEOCD, sigEOCD64:
		it.done = true
		return Entry{}, io.EOF
	default:
		it.err = fmt.Errorf("%w: in central directory", ErrInvalidSignature)
		return Entry{}, it.err
	}

	if _, err := io.ReadFull(it.br, it.fixed[4:]); err != nil {
		it.err = readErr(err)
		return Entry{}, it.err
	}

	h, err := parseCentralHeader(it.fixed[:])
	if err != nil {
		it.err = err
		return Entry{}, err
	}

	need := h.variableLen()
	if need > len(it.scratch) {
		it.err = &BufferTooSmallError{Required: need}
		return Entry{}, it.err
	}

	if _, err := io.ReadFull(it.br, it.scratch[:need]); err != nil {
		it.err = readErr(err)
		return Entry{}, it.err
	}

	entry, err := entryFromCentral(h, it.scratch[:need])
	if err != nil {
		it.err = err
		return Entry{}, err
	}

	entry.LocalHeaderOffset += it.archive.layout.baseOffset

	return entry, nil
}

// Close returns pooled resources. The cursor must not be used afterwards.
func (it *ReaderEntries) Close() {
	if it.br == nil {
		return
	}

	it.br.Reset(nil)
	cdReaderPool.Put(it.br)
	it.br = nil
	it.err = ErrNilSource
}

// readErr maps a short central directory read to a truncation error.
func readErr(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return ErrTruncated
	}

	return fmt.Errorf("read central directory: %w", err)
}

// DataRange resolves the compressed data range of an entry by reading its
// local file header from the source.
func (a *ReaderArchive) DataRange(entry *Entry) (Range, error) {
	return resolveDataRange(entry, func(off, n uint64) ([]byte, error) {
		return readAtView(a.r, a.size, off, n)
	}, a.size)
}

// DataReader returns a reader over the raw compressed bytes of a range.
// Feed it to the decompressor matching the entry method, then wrap the
// result in a VerifyReader to check the declared size and checksum.
func (a *ReaderArchive) DataReader(r Range) *io.SectionReader {
	return io.NewSectionReader(a.r, int64(r.Start), int64(r.Len()))
}

// MutexReader adapts a seek-and-read source into a positional reader by
// serializing access. Sources that implement io.ReaderAt natively should
// be used directly instead.
type MutexReader struct {
	rs io.ReadSeeker
	mu sync.Mutex
}

// NewMutexReader wraps rs into a serialized io.ReaderAt.
func NewMutexReader(rs io.ReadSeeker) *MutexReader {
	return &MutexReader{rs: rs}
}

// ReadAt implements io.ReaderAt.
func (m *MutexReader) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.rs.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}

	n, err := io.ReadFull(m.rs, p)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}

	return n, err
}

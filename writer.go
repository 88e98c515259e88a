// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/rawzip

package rawzip

import (
	"fmt"
	"io"
	"strings"

	"github.com/valyala/bytebufferpool"
)

// cdRecordPool amortizes the pending central directory accumulation across
// archives written by the same process.
var cdRecordPool bytebufferpool.Pool

// Writer authors a ZIP archive to a streaming byte sink. Entries are
// written one at a time: open an entry, stream its compressed bytes,
// finish it, repeat, then call Finish to emit the central directory and
// end records. ZIP64 records are produced automatically when any size,
// offset or count threshold requires them.
//
// The writer frames bytes and never compresses; the caller pipes data
// through a compressor of their choice into the open entry, wrapping the
// compressor input in a DataWriter to collect the CRC and byte count.
type Writer struct {
	w        io.Writer
	cd       *bytebufferpool.ByteBuffer
	scratch  []byte
	comment  string
	offset   uint64
	entries  uint64
	open     bool
	finished bool
	anyZip64 bool
	force64  bool
}

// NewWriter returns a writer producing an archive at offset zero.
func NewWriter(w io.Writer) *Writer {
	return NewWriterWith(w, WriterOptions{})
}

// NewWriterWith returns a writer with explicit authoring options. Set
// opts.Offset when prelude bytes were already written to w so recorded
// local header offsets stay correct.
func NewWriterWith(w io.Writer, opts WriterOptions) *Writer {
	return &Writer{
		w:       w,
		cd:      cdRecordPool.Get(),
		comment: opts.Comment,
		offset:  opts.Offset,
		force64: opts.ForceZip64,
	}
}

// Offset returns the current absolute write position.
func (w *Writer) Offset() uint64 {
	return w.offset
}

// CreateFile opens a new file entry and returns its compressed byte sink.
// The local header is written immediately with zero size and checksum
// placeholders and the data descriptor flag set; the real values follow in
// the descriptor once the entry is finished.
//
// Exactly one entry may be open at a time.
func (w *Writer) CreateFile(name string, opts FileOptions) (*EntryWriter, error) {
	name = strings.TrimSuffix(name, "/")

	flags := flagDataDescriptor
	if !isASCII(name) {
		flags |= flagUTF8
	}

	fields, dosTime, dosDate, err := w.prepareEntry(name, opts)
	if err != nil {
		return nil, err
	}

	headerOffset := w.offset
	if err := w.writeLocalHeader(name, flags, opts.Method, dosTime, dosDate, fields.local); err != nil {
		return nil, err
	}

	w.open = true

	return &EntryWriter{
		archive:      w,
		name:         name,
		centralExtra: fields.central,
		headerOffset: headerOffset,
		method:       opts.Method,
		flags:        flags,
		dosTime:      dosTime,
		dosDate:      dosDate,
		unixMode:     uint32(opts.UnixMode.Perm()),
		hasUnixMode:  opts.UnixMode != 0,
	}, nil
}

// CreateDir writes a directory entry. The name must end with a slash; the
// entry is stored with no body and no data descriptor and its central
// record is appended immediately.
func (w *Writer) CreateDir(name string, opts FileOptions) error {
	if !strings.HasSuffix(name, "/") {
		return fmt.Errorf("%w: %q", ErrNotDirectory, name)
	}

	var flags uint16
	if !isASCII(name) {
		flags |= flagUTF8
	}

	fields, dosTime, dosDate, err := w.prepareEntry(name, opts)
	if err != nil {
		return err
	}

	headerOffset := w.offset
	if err := w.writeLocalHeader(name, flags, MethodStore, dosTime, dosDate, fields.local); err != nil {
		return err
	}

	return w.appendCentralRecord(&pendingEntry{
		name:         name,
		centralExtra: fields.central,
		headerOffset: headerOffset,
		method:       MethodStore,
		flags:        flags,
		dosTime:      dosTime,
		dosDate:      dosDate,
		unixMode:     uint32(opts.UnixMode.Perm()),
		hasUnixMode:  opts.UnixMode != 0,
	})
}

// prepareEntry validates entry parameters and assembles its extra fields.
func (w *Writer) prepareEntry(name string, opts FileOptions) (extraFieldSet, uint16, uint16, error) {
	if w.w == nil {
		return extraFieldSet{}, 0, 0, ErrNilWriter
	}

	if w.finished {
		return extraFieldSet{}, 0, 0, ErrWriterFinished
	}

	if w.open {
		return extraFieldSet{}, 0, 0, ErrEntryOpen
	}

	if len(name) > maxNameLen {
		return extraFieldSet{}, 0, 0, fmt.Errorf("%w: %d bytes", ErrNameTooLong, len(name))
	}

	var fields extraFieldSet
	for _, field := range opts.Extra {
		if err := fields.add(field.ID, field.Data, field.Location); err != nil {
			return extraFieldSet{}, 0, 0, err
		}
	}

	var dosTime, dosDate uint16
	if !opts.Modified.IsZero() {
		dosTime, dosDate = timeToDos(opts.Modified)

		var stamp [5]byte
		stamp[0] = 1 // modification time present
		unix := opts.Modified.Unix()
		if unix < 0 {
			unix = 0
		}

		copy(stamp[1:], appendU32(stamp[1:1], uint32(unix)))
		if err := fields.add(ExtraExtendedTimestamp, stamp[:], HeaderCentral); err != nil {
			return extraFieldSet{}, 0, 0, err
		}
	}

	return fields, dosTime, dosDate, nil
}

// writeLocalHeader emits the fixed local header, name and local extras.
func (w *Writer) writeLocalHeader(name string, flags uint16, method CompressionMethod, dosTime, dosDate uint16, localExtra []byte) error {
	buf := w.scratch[:0]
	buf = appendU32(buf, sigLocalHeader)
	buf = appendU16(buf, versionDefault)
	buf = appendU16(buf, flags)
	buf = appendU16(buf, uint16(method))
	buf = appendU16(buf, dosTime)
	buf = appendU16(buf, dosDate)
	buf = appendU32(buf, 0) // crc placeholder
	buf = appendU32(buf, 0) // compressed size placeholder
	buf = appendU32(buf, 0) // uncompressed size placeholder
	buf = appendU16(buf, uint16(len(name)))
	buf = appendU16(buf, uint16(len(localExtra)))
	buf = append(buf, name...)
	buf = append(buf, localExtra...)
	w.scratch = buf[:0]

	return w.write(buf)
}

// write sends buf to the sink and advances the archive offset.
func (w *Writer) write(buf []byte) error {
	n, err := w.w.Write(buf)
	w.offset += uint64(n)
	if err != nil {
		return fmt.Errorf("write archive: %w", err)
	}

	return nil
}

// pendingEntry carries everything needed to encode one central record.
type pendingEntry struct {
	name         string
	centralExtra []byte
	headerOffset uint64
	compressed   uint64
	uncompressed uint64
	crc          uint32
	unixMode     uint32
	method       CompressionMethod
	flags        uint16
	dosTime      uint16
	dosDate      uint16
	hasUnixMode  bool
}

// needsZip64 reports whether any size or offset of the record reaches the
// 32-bit ZIP64 sentinel and must move to the ZIP64 extra field.
func (p *pendingEntry) needsZip64() bool {
	return p.compressed >= zip64SizeThreshold ||
		p.uncompressed >= zip64SizeThreshold ||
		p.headerOffset >= zip64OffsetThreshold
}

// appendCentralRecord encodes the central directory record for p into the
// pending buffer, appending the ZIP64 extra field when required.
func (w *Writer) appendCentralRecord(p *pendingEntry) error {
	extra := p.centralExtra
	if p.needsZip64() {
		var payload [24]byte
		pos := 0
		if p.uncompressed >= zip64SizeThreshold {
			copy(payload[pos:], appendU64(payload[pos:pos], p.uncompressed))
			pos += 8
		}

		if p.compressed >= zip64SizeThreshold {
			copy(payload[pos:], appendU64(payload[pos:pos], p.compressed))
			pos += 8
		}

		if p.headerOffset >= zip64OffsetThreshold {
			copy(payload[pos:], appendU64(payload[pos:pos], p.headerOffset))
			pos += 8
		}

		set := extraFieldSet{central: extra}
		if err := set.add(ExtraZip64, payload[:pos], HeaderCentral); err != nil {
			return err
		}

		extra = set.central
	}

	versionNeeded := versionDefault
	if p.needsZip64() {
		versionNeeded = versionZip64
	}

	versionMadeBy := versionNeeded
	externalAttrs := uint32(0)
	if p.hasUnixMode {
		versionMadeBy |= creatorUnix << 8
		externalAttrs = p.unixMode << 16
	}

	buf := w.scratch[:0]
	buf = appendU32(buf, sigCentralHeader)
	buf = appendU16(buf, versionMadeBy)
	buf = appendU16(buf, versionNeeded)
	buf = appendU16(buf, p.flags)
	buf = appendU16(buf, uint16(p.method))
	buf = appendU16(buf, p.dosTime)
	buf = appendU16(buf, p.dosDate)
	buf = appendU32(buf, p.crc)
	buf = appendU32(buf, clamp32(p.compressed))
	buf = appendU32(buf, clamp32(p.uncompressed))
	buf = appendU16(buf, uint16(len(p.name)))
	buf = appendU16(buf, uint16(len(extra)))
	buf = appendU16(buf, 0) // comment length
	buf = appendU16(buf, 0) // disk number start
	buf = appendU16(buf, 0) // internal attributes
	buf = appendU32(buf, externalAttrs)
	buf = appendU32(buf, clampOffset32(p.headerOffset))
	buf = append(buf, p.name...)
	buf = append(buf, extra...)
	w.scratch = buf[:0]

	if _, err := w.cd.Write(buf); err != nil {
		return err
	}

	w.entries++
	if p.needsZip64() {
		w.anyZip64 = true
	}

	return nil
}

// clamp32 stores v or the ZIP64 sentinel when it does not fit.
func clamp32(v uint64) uint32 {
	if v >= zip64SizeThreshold {
		return sentinel32
	}

	return uint32(v)
}

// clampOffset32 stores v or the ZIP64 sentinel when it does not fit.
func clampOffset32(v uint64) uint32 {
	if v >= zip64OffsetThreshold {
		return sentinel32
	}

	return uint32(v)
}

// Finish writes the central directory, the ZIP64 end records when needed,
// and the end of central directory record with the archive comment. It
// returns the final archive offset.
func (w *Writer) Finish() (uint64, error) {
	if w.w == nil {
		return 0, ErrNilWriter
	}

	if w.finished {
		return 0, ErrWriterFinished
	}

	if w.open {
		return 0, ErrEntryOpen
	}

	if len(w.comment) > maxCommentLen {
		return 0, ErrCommentTooLong
	}

	cdOffset := w.offset
	if err := w.write(w.cd.B); err != nil {
		return 0, err
	}

	cdSize := w.offset - cdOffset

	needsZip64 := w.force64 || w.anyZip64 ||
		w.entries >= zip64EntriesThreshold ||
		cdSize >= zip64SizeThreshold ||
		cdOffset >= zip64OffsetThreshold

	if needsZip64 {
		eocd64Offset := w.offset

		buf := w.scratch[:0]
		buf = appendU32(buf, sigEOCD64)
		buf = appendU64(buf, eocd64Len-12) // record size, excluding signature and this field
		buf = appendU16(buf, versionZip64)
		buf = appendU16(buf, versionZip64)
		buf = appendU32(buf, 0) // this disk
		buf = appendU32(buf, 0) // central directory start disk
		buf = appendU64(buf, w.entries)
		buf = appendU64(buf, w.entries)
		buf = appendU64(buf, cdSize)
		buf = appendU64(buf, cdOffset)

		buf = appendU32(buf, sigEOCD64Locator)
		buf = appendU32(buf, 0) // end record disk
		buf = appendU64(buf, eocd64Offset)
		buf = appendU32(buf, 1) // total disks
		w.scratch = buf[:0]

		if err := w.write(buf); err != nil {
			return 0, err
		}
	}

	entriesClamped := w.entries
	if entriesClamped > zip64EntriesThreshold {
		entriesClamped = zip64EntriesThreshold
	}

	eocdSize, eocdOffset := clamp32(cdSize), clampOffset32(cdOffset)
	if needsZip64 {
		// Sentinels direct readers to the ZIP64 end records.
		entriesClamped = zip64EntriesThreshold
		eocdSize, eocdOffset = sentinel32, sentinel32
	}

	buf := w.scratch[:0]
	buf = appendU32(buf, sigEOCD)
	buf = appendU16(buf, 0) // this disk
	buf = appendU16(buf, 0) // central directory start disk
	buf = appendU16(buf, uint16(entriesClamped))
	buf = appendU16(buf, uint16(entriesClamped))
	buf = appendU32(buf, eocdSize)
	buf = appendU32(buf, eocdOffset)
	buf = appendU16(buf, uint16(len(w.comment)))
	buf = append(buf, w.comment...)
	w.scratch = buf[:0]

	if err := w.write(buf); err != nil {
		return 0, err
	}

	w.finished = true
	cdRecordPool.Put(w.cd)
	w.cd = nil

	return w.offset, nil
}

// EntryWriter is the raw compressed byte sink of one open archive entry.
// Bytes written here must already be encoded with the entry's compression
// method; the writer only counts and frames them.
type EntryWriter struct {
	archive      *Writer
	name         string
	centralExtra []byte
	headerOffset uint64
	compressed   uint64
	unixMode     uint32
	method       CompressionMethod
	flags        uint16
	dosTime      uint16
	dosDate      uint16
	hasUnixMode  bool
	finished     bool
}

// Write implements io.Writer for the compressed byte stream.
func (e *EntryWriter) Write(p []byte) (int, error) {
	if e.finished {
		return 0, ErrEntryFinished
	}

	n, err := e.archive.w.Write(p)
	e.compressed += uint64(n)
	e.archive.offset += uint64(n)
	if err != nil {
		return n, fmt.Errorf("write entry data: %w", err)
	}

	return n, nil
}

// CompressedBytes returns the number of compressed bytes written so far.
func (e *EntryWriter) CompressedBytes() uint64 {
	return e.compressed
}

// Finish closes the entry: it writes the data descriptor and appends the
// central directory record. The descriptor carries 8-byte sizes when either
// size crosses the ZIP64 threshold. The compressed size is taken from the
// bytes counted by this writer; desc supplies the CRC and uncompressed
// size collected by the DataWriter. Returns the compressed size.
func (e *EntryWriter) Finish(desc FinishDescriptor) (uint64, error) {
	if e.finished {
		return 0, ErrEntryFinished
	}

	w := e.archive
	zip64Sizes := e.compressed >= zip64SizeThreshold || desc.uncompressedSize >= zip64SizeThreshold

	buf := w.scratch[:0]
	buf = appendU32(buf, sigDataDescriptor)
	buf = appendU32(buf, desc.crc)
	if zip64Sizes {
		buf = appendU64(buf, e.compressed)
		buf = appendU64(buf, desc.uncompressedSize)
	} else {
		buf = appendU32(buf, uint32(e.compressed))
		buf = appendU32(buf, uint32(desc.uncompressedSize))
	}
	w.scratch = buf[:0]

	if err := w.write(buf); err != nil {
		return 0, err
	}

	err := w.appendCentralRecord(&pendingEntry{
		name:         e.name,
		centralExtra: e.centralExtra,
		headerOffset: e.headerOffset,
		compressed:   e.compressed,
		uncompressed: desc.uncompressedSize,
		crc:          desc.crc,
		unixMode:     e.unixMode,
		method:       e.method,
		flags:        e.flags,
		dosTime:      e.dosTime,
		dosDate:      e.dosDate,
		hasUnixMode:  e.hasUnixMode,
	})
	if err != nil {
		return 0, err
	}

	e.finished = true
	w.open = false

	return e.compressed, nil
}

// FinishDescriptor carries the uncompressed size and CRC-32 collected by a
// DataWriter, consumed by EntryWriter.Finish to close the entry.
type FinishDescriptor struct {
	uncompressedSize uint64
	crc              uint32
}

// CRC32 returns the collected checksum of the uncompressed data.
func (d FinishDescriptor) CRC32() uint32 {
	return d.crc
}

// UncompressedSize returns the collected uncompressed byte count.
func (d FinishDescriptor) UncompressedSize() uint64 {
	return d.uncompressedSize
}

// DataWriter wraps the uncompressed input side of an entry's compression
// pipeline, counting bytes and folding them into a CRC-32. Write plaintext
// through it into the compressor whose output feeds the EntryWriter; for
// stored entries wrap the EntryWriter directly.
type DataWriter struct {
	dst    io.Writer
	hasher CRC32Hasher
	count  uint64
}

// NewDataWriter wraps dst with the default IEEE hasher.
func NewDataWriter(dst io.Writer) *DataWriter {
	return NewDataWriterHasher(dst, NewCRC32())
}

// NewDataWriterHasher wraps dst with a caller-supplied hasher.
func NewDataWriterHasher(dst io.Writer, hasher CRC32Hasher) *DataWriter {
	hasher.Reset()

	return &DataWriter{dst: dst, hasher: hasher}
}

// Write implements io.Writer for the uncompressed byte stream.
func (d *DataWriter) Write(p []byte) (int, error) {
	n, err := d.dst.Write(p)
	d.count += uint64(n)
	d.hasher.Update(p[:n])

	return n, err
}

// Finish returns the descriptor to pass to EntryWriter.Finish. Close or
// flush the downstream compressor before finishing the entry so trailing
// compressor output is counted.
func (d *DataWriter) Finish() FinishDescriptor {
	return FinishDescriptor{uncompressedSize: d.count, crc: d.hasher.Sum32()}
}

// isASCII reports whether s contains only ASCII bytes.
func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}

	return true
}

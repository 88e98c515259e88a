// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/rawzip

package rawzip

import (
	"io/fs"
	"time"

	"github.com/woozymasta/pathrules"
)

// Record signatures defined by PKWARE APPNOTE, stored little-endian.
const (
	sigLocalHeader    uint32 = 0x04034b50
	sigCentralHeader  uint32 = 0x02014b50
	sigEOCD           uint32 = 0x06054b50
	sigEOCD64         uint32 = 0x06064b50
	sigEOCD64Locator  uint32 = 0x07064b50
	sigDataDescriptor uint32 = 0x08074b50
)

// Fixed record sizes in bytes, without trailing variable-length data.
const (
	localHeaderLen   = 30
	centralHeaderLen = 46
	eocdLen          = 22
	eocd64Len        = 56
	eocd64LocatorLen = 20
	descriptor32Len  = 16
	descriptor64Len  = 24
)

// Format limits and ZIP64 sentinels.
const (
	maxCommentLen = 0xFFFF
	maxNameLen    = 0xFFFF
	maxExtraLen   = 0xFFFF
	maxTailWindow = eocdLen + maxCommentLen

	sentinel32 uint32 = 0xFFFFFFFF
	sentinel16 uint16 = 0xFFFF

	zip64SizeThreshold    uint64 = 0xFFFFFFFF
	zip64OffsetThreshold  uint64 = 0xFFFFFFFF
	zip64EntriesThreshold uint64 = 0xFFFF
)

// General purpose bit flags and version fields.
const (
	flagDataDescriptor uint16 = 0x0008
	flagUTF8           uint16 = 0x0800

	versionDefault uint16 = 20
	versionZip64   uint16 = 45

	creatorUnix uint16 = 3
)

// CompressionMethod is the 16-bit compression method identifier from the
// central directory record. The library frames compressed bytes and never
// interprets them; methods are carried through verbatim.
type CompressionMethod uint16

// Compression method identifiers from APPNOTE section 4.4.5.
const (
	// MethodStore is uncompressed data.
	MethodStore CompressionMethod = 0
	// MethodDeflate is the DEFLATE method.
	MethodDeflate CompressionMethod = 8
	// MethodDeflate64 is the enhanced DEFLATE method.
	MethodDeflate64 CompressionMethod = 9
	// MethodBzip2 is the bzip2 method.
	MethodBzip2 CompressionMethod = 12
	// MethodLzma is the LZMA method.
	MethodLzma CompressionMethod = 14
	// MethodZstd is the Zstandard method.
	MethodZstd CompressionMethod = 93
	// MethodXz is the XZ method.
	MethodXz CompressionMethod = 95
)

// HeaderLocation selects which headers carry a caller extra field.
type HeaderLocation uint8

// Extra field placement targets.
const (
	// HeaderLocal places the field only in the local file header.
	HeaderLocal HeaderLocation = 1 << 0
	// HeaderCentral places the field only in the central directory record.
	HeaderCentral HeaderLocation = 1 << 1
	// HeaderBoth places the field in both headers.
	HeaderBoth HeaderLocation = HeaderLocal | HeaderCentral
)

// includesLocal reports whether the local file header is selected.
func (l HeaderLocation) includesLocal() bool {
	return l&HeaderLocal != 0
}

// includesCentral reports whether the central directory record is selected.
func (l HeaderLocation) includesCentral() bool {
	return l&HeaderCentral != 0
}

// ExtraFieldID identifies an extra field kind, per APPNOTE sections 4.5 and 4.6.
type ExtraFieldID uint16

// Well-known extra field identifiers.
const (
	// ExtraZip64 carries 64-bit sizes and offsets for sentinel-valued fields.
	ExtraZip64 ExtraFieldID = 0x0001
	// ExtraNTFS carries NTFS timestamps.
	ExtraNTFS ExtraFieldID = 0x000a
	// ExtraUnix carries legacy Unix metadata.
	ExtraUnix ExtraFieldID = 0x000d
	// ExtraExtendedTimestamp carries Unix modification timestamps.
	ExtraExtendedTimestamp ExtraFieldID = 0x5455
	// ExtraInfoZipUnixUIDGID carries Info-ZIP Unix uid/gid values.
	ExtraInfoZipUnixUIDGID ExtraFieldID = 0x7875
	// ExtraUnicodePath carries an Info-ZIP UTF-8 path override.
	ExtraUnicodePath ExtraFieldID = 0x7075
)

// ExtraField is one caller-supplied extra field to be written with an entry.
type ExtraField struct {
	// Data is the raw field payload without the 4-byte TLV header.
	Data []byte
	// ID is the extra field identifier.
	ID ExtraFieldID
	// Location selects which headers carry this field. Zero value means both.
	Location HeaderLocation
}

// Range is a half-open [Start, End) byte range in source coordinates.
type Range struct {
	// Start is the inclusive first byte offset.
	Start uint64
	// End is the exclusive end offset.
	End uint64
}

// Len returns the range length in bytes.
func (r Range) Len() uint64 {
	return r.End - r.Start
}

// Entry is a parsed view of one central directory record. Name, Extra and
// Comment borrow from the archive slice or from the scratch buffer used for
// iteration; call Detach to obtain an owned copy that outlives the buffer.
type Entry struct {
	// Name is the stored file path as raw bytes.
	Name FilePath
	// Extra is the raw extra field region of the central record.
	Extra []byte
	// Comment is the entry comment bytes.
	Comment []byte
	// CompressedSize is the compressed data size with ZIP64 promotion applied.
	CompressedSize uint64
	// UncompressedSize is the uncompressed data size with ZIP64 promotion applied.
	UncompressedSize uint64
	// LocalHeaderOffset is the local file header offset with ZIP64 promotion applied.
	LocalHeaderOffset uint64
	// CRC32 is the declared checksum of the uncompressed data.
	CRC32 uint32
	// ExternalAttrs is the host-dependent external attributes word.
	ExternalAttrs uint32
	// DiskStart is the entry start disk with ZIP64 promotion applied.
	DiskStart uint32
	// Flags is the general purpose bit flag field.
	Flags uint16
	// Method is the stored compression method.
	Method CompressionMethod
	// VersionMadeBy is the creator version field.
	VersionMadeBy uint16
	// VersionNeeded is the minimum extraction version field.
	VersionNeeded uint16
	// DosTime is the MS-DOS modification time.
	DosTime uint16
	// DosDate is the MS-DOS modification date.
	DosDate uint16
	// InternalAttrs is the internal attributes field.
	InternalAttrs uint16
}

// IsDir reports whether the entry name denotes a directory.
func (e *Entry) IsDir() bool {
	n := len(e.Name)
	return n > 0 && (e.Name[n-1] == '/' || e.Name[n-1] == '\\')
}

// Modified returns the entry modification time decoded from the MS-DOS
// fields, or the zero time when both fields are zero.
func (e *Entry) Modified() time.Time {
	if e.DosTime == 0 && e.DosDate == 0 {
		return time.Time{}
	}

	return dosToTime(e.DosDate, e.DosTime)
}

// UnixMode returns Unix permission bits from the external attributes when
// the record was created on Unix, zero otherwise.
func (e *Entry) UnixMode() fs.FileMode {
	if e.VersionMadeBy>>8 != creatorUnix {
		return 0
	}

	return fs.FileMode(e.ExternalAttrs>>16) & fs.ModePerm
}

// Detach returns a copy of the entry whose byte fields no longer alias the
// archive or scratch buffer.
func (e *Entry) Detach() Entry {
	out := *e
	out.Name = FilePath(append([]byte(nil), e.Name...))
	out.Extra = append([]byte(nil), e.Extra...)
	out.Comment = append([]byte(nil), e.Comment...)

	return out
}

// ReaderOptions configures archive parsing over a random-access source.
type ReaderOptions struct {
	// EndOffset bounds the EOCD search to a source prefix. Zero means the
	// full source size. Useful for retrying past a false EOCD candidate or
	// for archives nested inside larger files.
	EndOffset uint64
}

// applyDefaults fills zero-valued reader options with defaults.
func (opts *ReaderOptions) applyDefaults(size uint64) {
	if opts.EndOffset == 0 || opts.EndOffset > size {
		opts.EndOffset = size
	}
}

// WriterOptions configures archive authoring behavior.
type WriterOptions struct {
	// Comment is the archive comment written after the EOCD record.
	Comment string
	// Offset is the starting byte offset. Set when prelude data precedes
	// the archive so local header offsets stay correct.
	Offset uint64
	// ForceZip64 emits ZIP64 end of central directory records even when no
	// threshold requires them.
	ForceZip64 bool
}

// FileOptions configures one authored entry.
type FileOptions struct {
	// Modified is the entry modification time; stored in MS-DOS fields and
	// as an extended timestamp extra field when non-zero.
	Modified time.Time
	// Extra are caller extra fields, written before the automatic extended
	// timestamp and ZIP64 fields.
	Extra []ExtraField
	// UnixMode stores permission bits in the external attributes and marks
	// the record creator as Unix when non-zero.
	UnixMode fs.FileMode
	// Method is the compression method recorded for the entry. The caller
	// is responsible for writing bytes actually encoded with this method.
	Method CompressionMethod
}

// FilterOptions selects archive entries for listing and extraction.
type FilterOptions struct {
	// Rules are ordered path rules; the last matching rule wins.
	Rules []pathrules.Rule
	// MatcherOptions control rule matching behavior.
	MatcherOptions pathrules.MatcherOptions
	// MinUncompressedSize drops entries smaller than this size.
	MinUncompressedSize uint64
	// ASCIIOnly drops entries whose path contains non-ASCII bytes.
	ASCIIOnly bool
}

// ExtractOptions configures Extract behavior.
type ExtractOptions struct {
	// OnEntryDone is called after one entry is fully written to disk.
	OnEntryDone func(name string, written int64, outputPath string)
	// Decompressors overrides the built-in decompressor registry per method.
	Decompressors map[CompressionMethod]Decompressor
	// Filter selects which entries are extracted.
	Filter FilterOptions
	// FileMode controls output file creation policy.
	FileMode ExtractFileMode
	// ScratchSize is the initial central directory scratch buffer size.
	ScratchSize int
	// MaxWorkers is the number of extraction workers (zero means GOMAXPROCS).
	MaxWorkers int
	// RawNames disables default path sanitization during extract.
	// When false (default), extract rewrites names to filesystem-safe output paths.
	RawNames bool
}

// ExtractFileMode controls output file open behavior during extraction.
type ExtractFileMode string

// Output file creation policies for extraction.
const (
	// ExtractFileModeAuto first tries create-only, then falls back to truncate for existing files.
	ExtractFileModeAuto ExtractFileMode = "auto"
	// ExtractFileModeOverwriteSmart rewrites files in place and truncates only when the existing file is larger.
	ExtractFileModeOverwriteSmart ExtractFileMode = "overwrite_smart"
	// ExtractFileModeTruncate opens existing files with truncate and creates missing files.
	ExtractFileModeTruncate ExtractFileMode = "truncate"
	// ExtractFileModeCreateOnly creates files only when absent and fails on existing files.
	ExtractFileModeCreateOnly ExtractFileMode = "create_only"
)

// applyDefaults fills zero-valued extract options with defaults.
func (opts *ExtractOptions) applyDefaults() {
	if opts.FileMode == "" {
		opts.FileMode = ExtractFileModeAuto
	}

	if opts.ScratchSize <= 0 {
		opts.ScratchSize = defaultScratchSize
	}
}

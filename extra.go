// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/rawzip

package rawzip

// ExtraFields iterates the TLV extra field region of a record.
//
// Each field is a 2-byte identifier, a 2-byte payload length, and the
// payload. Malformed or truncated trailing data stops iteration; check
// Remaining afterwards to detect unparsed bytes.
type ExtraFields struct {
	data []byte
}

// NewExtraFields returns an iterator over the raw extra field region.
func NewExtraFields(data []byte) ExtraFields {
	return ExtraFields{data: data}
}

// Remaining returns the unparsed tail of the extra field region.
func (ef *ExtraFields) Remaining() []byte {
	return ef.data
}

// Next yields the next extra field. It returns false when no complete field
// remains.
func (ef *ExtraFields) Next() (ExtraFieldID, []byte, bool) {
	if len(ef.data) < 4 {
		return 0, nil, false
	}

	c := newCursor(ef.data)
	id := ExtraFieldID(c.u16())
	size := int(c.u16())

	body, ok := c.take(size)
	if !ok {
		return 0, nil, false
	}

	// Advance only once the entire field is present.
	ef.data = ef.data[4+size:]

	return id, body, true
}

// findExtraField returns the payload of the first field with the given id.
func findExtraField(extra []byte, id ExtraFieldID) ([]byte, bool) {
	it := NewExtraFields(extra)
	for {
		fieldID, body, ok := it.Next()
		if !ok {
			return nil, false
		}

		if fieldID == id {
			return body, true
		}
	}
}

// promoteZip64 replaces sentinel-valued central record fields with values
// from the ZIP64 extra field. Field presence is keyed on the parent record
// sentinels rather than payload length, since archives in the wild pad the
// payload.
func promoteZip64(entry *Entry, h centralHeader) error {
	needUncompressed := h.uncompressedSize == sentinel32
	needCompressed := h.compressedSize == sentinel32
	needOffset := h.localHeaderOffset == sentinel32
	needDisk := h.diskStart == sentinel16

	if !needUncompressed && !needCompressed && !needOffset && !needDisk {
		return nil
	}

	body, found := findExtraField(entry.Extra, ExtraZip64)
	if !found {
		return ErrInvalidZip64Extra
	}

	c := newCursor(body)
	if needUncompressed {
		if c.avail() < 8 {
			return ErrInvalidZip64Extra
		}

		entry.UncompressedSize = c.u64()
	}

	if needCompressed {
		if c.avail() < 8 {
			return ErrInvalidZip64Extra
		}

		entry.CompressedSize = c.u64()
	}

	if needOffset {
		if c.avail() < 8 {
			return ErrInvalidZip64Extra
		}

		entry.LocalHeaderOffset = c.u64()
	}

	if needDisk {
		if c.avail() < 4 {
			return ErrInvalidZip64Extra
		}

		entry.DiskStart = c.u32()
	}

	return nil
}

// extraFieldSet accumulates encoded extra fields for the local and central
// headers of one authored entry.
type extraFieldSet struct {
	local   []byte
	central []byte
}

// add encodes one field into the selected header locations, enforcing the
// 16-bit per-header region limit.
func (s *extraFieldSet) add(id ExtraFieldID, data []byte, loc HeaderLocation) error {
	if loc == 0 {
		loc = HeaderBoth
	}

	if len(data) > maxExtraLen-4 {
		return ErrExtraTooLong
	}

	if loc.includesLocal() {
		if len(s.local)+4+len(data) > maxExtraLen {
			return ErrExtraTooLong
		}

		s.local = appendExtraField(s.local, id, data)
	}

	if loc.includesCentral() {
		if len(s.central)+4+len(data) > maxExtraLen {
			return ErrExtraTooLong
		}

		s.central = appendExtraField(s.central, id, data)
	}

	return nil
}

// appendExtraField appends one encoded TLV field to dst.
func appendExtraField(dst []byte, id ExtraFieldID, data []byte) []byte {
	dst = appendU16(dst, uint16(id))
	dst = appendU16(dst, uint16(len(data)))

	return append(dst, data...)
}

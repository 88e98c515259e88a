package rawzip

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

// buildStoreArchive writes a single stored entry archive and returns its bytes.
func buildStoreArchive(t *testing.T, name string, payload []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := NewWriter(&buf)

	ew, err := w.CreateFile(name, FileOptions{Method: MethodStore})
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}

	dw := NewDataWriter(ew)
	if _, err := dw.Write(payload); err != nil {
		t.Fatalf("write payload: %v", err)
	}

	if _, err := ew.Finish(dw.Finish()); err != nil {
		t.Fatalf("finish entry: %v", err)
	}

	if _, err := w.Finish(); err != nil {
		t.Fatalf("finish archive: %v", err)
	}

	return buf.Bytes()
}

// collectEntries drains a slice archive iterator.
func collectEntries(t *testing.T, a *Archive) []Entry {
	t.Helper()

	var out []Entry
	it := a.Entries()
	for {
		entry, err := it.Next()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}

		out = append(out, entry.Detach())
	}
}

func TestParse_SingleStoreEntry(t *testing.T) {
	t.Parallel()

	payload := []byte("Hello, World!")
	data := buildStoreArchive(t, "greeting.txt", payload)

	a, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if a.EntriesTotal() != 1 {
		t.Fatalf("EntriesTotal = %d, want 1", a.EntriesTotal())
	}
	if a.Zip64() {
		t.Fatal("Zip64 = true for plain archive")
	}

	entries := collectEntries(t, a)
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}

	entry := entries[0]
	if entry.Name.String() != "greeting.txt" {
		t.Errorf("Name = %q", entry.Name)
	}
	if entry.Method != MethodStore {
		t.Errorf("Method = %d", entry.Method)
	}
	if entry.CompressedSize != uint64(len(payload)) || entry.UncompressedSize != uint64(len(payload)) {
		t.Errorf("sizes = %d/%d, want %d", entry.CompressedSize, entry.UncompressedSize, len(payload))
	}
	if entry.CRC32 != 0xEC4AC3D0 {
		t.Errorf("CRC32 = %08x, want ec4ac3d0", entry.CRC32)
	}
	if entry.LocalHeaderOffset != 0 {
		t.Errorf("LocalHeaderOffset = %d, want 0", entry.LocalHeaderOffset)
	}

	rng, err := a.DataRange(&entry)
	if err != nil {
		t.Fatalf("DataRange: %v", err)
	}
	if rng.Len() != uint64(len(payload)) {
		t.Fatalf("range length = %d, want %d", rng.Len(), len(payload))
	}

	got, err := a.Data(rng)
	if err != nil {
		t.Fatalf("Data: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("data = %q, want %q", got, payload)
	}
}

func TestParse_EmptyArchive(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewWriter(&buf)
	if _, err := w.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	a, err := Parse(buf.Bytes())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if a.EntriesTotal() != 0 {
		t.Fatalf("EntriesTotal = %d, want 0", a.EntriesTotal())
	}

	if _, err := a.Entries().Next(); err != io.EOF {
		t.Fatalf("Next = %v, want io.EOF", err)
	}
}

func TestParse_NilSource(t *testing.T) {
	t.Parallel()

	if _, err := Parse(nil); !errors.Is(err, ErrNilSource) {
		t.Fatalf("Parse(nil) = %v, want ErrNilSource", err)
	}
}

func TestParse_MissingEOCD(t *testing.T) {
	t.Parallel()

	if _, err := Parse([]byte("this is not an archive at all")); !errors.Is(err, ErrMissingEOCD) {
		t.Fatalf("err = %v, want ErrMissingEOCD", err)
	}
}

func TestParse_FalseEOCDRecovery(t *testing.T) {
	t.Parallel()

	payload := []byte("Hello, World!")
	valid := buildStoreArchive(t, "greeting.txt", payload)

	data := append([]byte(nil), valid...)
	data = append(data, []byte("trailing junk")...)
	data = appendU32(data, sigEOCD)

	_, err := Parse(data)
	var falseEOCD *FalseEOCDError
	if !errors.As(err, &falseEOCD) {
		t.Fatalf("err = %v, want FalseEOCDError", err)
	}
	if !errors.Is(err, ErrFalseEOCD) {
		t.Fatalf("err = %v, want ErrFalseEOCD via Unwrap", err)
	}
	if falseEOCD.Offset != uint64(len(data)-4) {
		t.Fatalf("Offset = %d, want %d", falseEOCD.Offset, len(data)-4)
	}

	a, err := Parse(data[:falseEOCD.Offset])
	if err != nil {
		t.Fatalf("Parse after retry: %v", err)
	}

	entries := collectEntries(t, a)
	if len(entries) != 1 || entries[0].Name.String() != "greeting.txt" {
		t.Fatalf("entries after recovery = %+v", entries)
	}

	rng, err := a.DataRange(&entries[0])
	if err != nil {
		t.Fatalf("DataRange: %v", err)
	}
	got, err := a.Data(rng)
	if err != nil {
		t.Fatalf("Data: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("data = %q, want %q", got, payload)
	}
}

func TestParse_LeadingGarbage(t *testing.T) {
	t.Parallel()

	payload := []byte("Hello, World!")
	valid := buildStoreArchive(t, "greeting.txt", payload)

	garbage := bytes.Repeat([]byte{0xAB}, 1000)
	data := append(garbage, valid...)

	a, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	entries := collectEntries(t, a)
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	if entries[0].LocalHeaderOffset != 1000 {
		t.Fatalf("LocalHeaderOffset = %d, want 1000", entries[0].LocalHeaderOffset)
	}

	rng, err := a.DataRange(&entries[0])
	if err != nil {
		t.Fatalf("DataRange: %v", err)
	}
	if rng.Start < 1000 {
		t.Fatalf("range start = %d, want >= 1000", rng.Start)
	}

	got, err := a.Data(rng)
	if err != nil {
		t.Fatalf("Data: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("data = %q, want %q", got, payload)
	}
}

func TestParse_ArchiveComment(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewWriterWith(&buf, WriterOptions{Comment: "season archive"})
	if _, err := w.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	a, err := Parse(buf.Bytes())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if got := string(a.Comment()); got != "season archive" {
		t.Fatalf("Comment = %q", got)
	}
}

func TestEntries_InvalidSignature(t *testing.T) {
	t.Parallel()

	data := buildStoreArchive(t, "greeting.txt", []byte("x"))

	a, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	data[a.layout.cdOffset] ^= 0xFF

	it := a.Entries()
	if _, err := it.Next(); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("Next = %v, want ErrInvalidSignature", err)
	}

	// The error is sticky.
	if _, err := it.Next(); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("second Next = %v, want ErrInvalidSignature", err)
	}
}

func TestWriter_PreludeOffset(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	prelude := bytes.Repeat([]byte{0x42}, 1000)
	buf.Write(prelude)

	w := NewWriterWith(&buf, WriterOptions{Offset: 1000})
	ew, err := w.CreateFile("greeting.txt", FileOptions{Method: MethodStore})
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}

	dw := NewDataWriter(ew)
	payload := []byte("Hello, World!")
	if _, err := dw.Write(payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ew.Finish(dw.Finish()); err != nil {
		t.Fatalf("finish entry: %v", err)
	}

	end, err := w.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if end != uint64(buf.Len()) {
		t.Fatalf("final offset = %d, want %d", end, buf.Len())
	}

	a, err := Parse(buf.Bytes())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	entries := collectEntries(t, a)
	if len(entries) != 1 || entries[0].LocalHeaderOffset != 1000 {
		t.Fatalf("entries = %+v", entries)
	}

	rng, err := a.DataRange(&entries[0])
	if err != nil {
		t.Fatalf("DataRange: %v", err)
	}
	got, err := a.Data(rng)
	if err != nil {
		t.Fatalf("Data: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("data = %q", got)
	}
}

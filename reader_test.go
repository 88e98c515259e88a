package rawzip

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseReader_SingleEntry(t *testing.T) {
	t.Parallel()

	payload := []byte("Hello, World!")
	data := buildStoreArchive(t, "greeting.txt", payload)

	a, err := ParseReader(bytes.NewReader(data), uint64(len(data)))
	if err != nil {
		t.Fatalf("ParseReader: %v", err)
	}

	if a.Size() != uint64(len(data)) {
		t.Fatalf("Size = %d, want %d", a.Size(), len(data))
	}
	if a.EntriesTotal() != 1 {
		t.Fatalf("EntriesTotal = %d, want 1", a.EntriesTotal())
	}

	it := a.Entries(nil)
	defer it.Close()

	entry, err := it.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if entry.Name.String() != "greeting.txt" {
		t.Fatalf("Name = %q", entry.Name)
	}

	rng, err := a.DataRange(&entry)
	if err != nil {
		t.Fatalf("DataRange: %v", err)
	}

	verified := NewVerifyReader(a.DataReader(rng), entry.UncompressedSize, entry.CRC32)
	got, err := io.ReadAll(verified)
	if err != nil {
		t.Fatalf("read verified: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("data = %q, want %q", got, payload)
	}

	if _, err := it.Next(); err != io.EOF {
		t.Fatalf("Next after last = %v, want io.EOF", err)
	}
}

func TestParseReader_NilSource(t *testing.T) {
	t.Parallel()

	if _, err := ParseReader(nil, 0); !errors.Is(err, ErrNilSource) {
		t.Fatalf("err = %v, want ErrNilSource", err)
	}
}

func TestReaderEntries_ScratchTooSmall(t *testing.T) {
	t.Parallel()

	data := buildStoreArchive(t, "a-name-longer-than-scratch.txt", []byte("x"))

	a, err := ParseReader(bytes.NewReader(data), uint64(len(data)))
	if err != nil {
		t.Fatalf("ParseReader: %v", err)
	}

	it := a.Entries(make([]byte, 4))
	defer it.Close()

	_, err = it.Next()
	var tooSmall *BufferTooSmallError
	if !errors.As(err, &tooSmall) {
		t.Fatalf("err = %v, want BufferTooSmallError", err)
	}
	if !errors.Is(err, ErrBufferTooSmall) {
		t.Fatalf("err = %v, want ErrBufferTooSmall via Unwrap", err)
	}
	if tooSmall.Required != len("a-name-longer-than-scratch.txt") {
		t.Fatalf("Required = %d, want %d", tooSmall.Required, len("a-name-longer-than-scratch.txt"))
	}

	retry := a.Entries(make([]byte, tooSmall.Required))
	defer retry.Close()

	entry, err := retry.Next()
	if err != nil {
		t.Fatalf("retry Next: %v", err)
	}
	if entry.Name.String() != "a-name-longer-than-scratch.txt" {
		t.Fatalf("Name = %q", entry.Name)
	}
}

func TestParseReaderWithOptions_EndOffsetRecovery(t *testing.T) {
	t.Parallel()

	valid := buildStoreArchive(t, "greeting.txt", []byte("Hello, World!"))
	data := append(append([]byte(nil), valid...), []byte("tail")...)
	data = appendU32(data, sigEOCD)

	_, err := ParseReader(bytes.NewReader(data), uint64(len(data)))
	var falseEOCD *FalseEOCDError
	if !errors.As(err, &falseEOCD) {
		t.Fatalf("err = %v, want FalseEOCDError", err)
	}

	a, err := ParseReaderWithOptions(bytes.NewReader(data), uint64(len(data)), ReaderOptions{
		EndOffset: falseEOCD.Offset,
	})
	if err != nil {
		t.Fatalf("ParseReaderWithOptions: %v", err)
	}

	it := a.Entries(nil)
	defer it.Close()

	entry, err := it.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if entry.Name.String() != "greeting.txt" {
		t.Fatalf("Name = %q", entry.Name)
	}
}

func TestParseFile(t *testing.T) {
	t.Parallel()

	data := buildStoreArchive(t, "greeting.txt", []byte("Hello, World!"))
	path := filepath.Join(t.TempDir(), "archive.zip")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()

	a, err := ParseFile(f)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if a.EntriesTotal() != 1 {
		t.Fatalf("EntriesTotal = %d, want 1", a.EntriesTotal())
	}

	if _, err := ParseFile(nil); !errors.Is(err, ErrNilSource) {
		t.Fatalf("ParseFile(nil) = %v, want ErrNilSource", err)
	}
}

func TestReaderArchive_Comment(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewWriterWith(&buf, WriterOptions{Comment: "remarks"})
	if _, err := w.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	a, err := ParseReader(bytes.NewReader(buf.Bytes()), uint64(buf.Len()))
	if err != nil {
		t.Fatalf("ParseReader: %v", err)
	}

	got, err := io.ReadAll(a.Comment())
	if err != nil {
		t.Fatalf("read comment: %v", err)
	}
	if string(got) != "remarks" {
		t.Fatalf("Comment = %q", got)
	}
}

func TestMutexReader(t *testing.T) {
	t.Parallel()

	m := NewMutexReader(strings.NewReader("0123456789"))

	buf := make([]byte, 4)
	if n, err := m.ReadAt(buf, 3); err != nil || string(buf[:n]) != "3456" {
		t.Fatalf("ReadAt = %q, %v", buf[:n], err)
	}

	if n, err := m.ReadAt(buf, 0); err != nil || string(buf[:n]) != "0123" {
		t.Fatalf("ReadAt = %q, %v", buf[:n], err)
	}

	if _, err := m.ReadAt(make([]byte, 4), 8); err != io.EOF {
		t.Fatalf("short ReadAt err = %v, want io.EOF", err)
	}
}

func TestParseReader_MutexSource(t *testing.T) {
	t.Parallel()

	data := buildStoreArchive(t, "greeting.txt", []byte("Hello, World!"))

	a, err := ParseReader(NewMutexReader(bytes.NewReader(data)), uint64(len(data)))
	if err != nil {
		t.Fatalf("ParseReader: %v", err)
	}

	it := a.Entries(nil)
	defer it.Close()

	if _, err := it.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
}

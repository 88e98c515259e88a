// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/rawzip

/*
Package rawzip provides low-level parse, read, write, and extract operations
for ZIP and ZIP64 archives. It frames records and exposes exact byte offsets
and ranges; compressed payload bytes are passed through untouched, so callers
pick their own decompressors and compressors. Parsing an archive touches only
the end records, and central directory iteration borrows from caller or
pooled buffers instead of materializing entry tables.

Design rules (summary):

  - central directory fields stay authoritative; local headers only resolve
    data positions;
  - sizes, offsets, and counts at the ZIP64 sentinel are promoted from the
    ZIP64 extra field or end records;
  - entries prefixed by foreign bytes are addressed through a base offset
    derived from the actual central directory position;
  - multi-disk archives are rejected.

# Parsing

Parse an in-memory archive and walk its entries:

	archive, err := rawzip.Parse(data)
	if err != nil {
	    return err
	}
	it := archive.Entries()
	for {
	    entry, err := it.Next()
	    if err == io.EOF {
	        break
	    }
	    if err != nil {
	        return err
	    }
	    // entry views borrow from data
	}

A trailing false end-of-central-directory signature surfaces as a
FalseEOCDError; retry with the source bounded to the reported offset:

	archive, err := rawzip.Parse(data)
	var falseEOCD *rawzip.FalseEOCDError
	if errors.As(err, &falseEOCD) {
	    archive, err = rawzip.Parse(data[:falseEOCD.Offset])
	}

For random-access sources, use the reader archive; concurrent entry reads
are safe over an io.ReaderAt:

	archive, err := rawzip.ParseFile(f)
	if err != nil {
	    return err
	}
	it := archive.Entries(nil)
	defer it.Close()

# Reading entry data

Resolve the compressed byte range of an entry, decompress it, and verify
the declared size and checksum:

	rng, err := archive.DataRange(&entry)
	if err != nil {
	    return err
	}
	raw := archive.DataReader(rng)
	rc := flate.NewReader(raw)
	defer rc.Close()
	verified := rawzip.NewVerifyReader(rc, entry.UncompressedSize, entry.CRC32)
	if _, err := io.Copy(dst, verified); err != nil {
	    return err
	}

# Extracting

Extract selected entries to a directory (parallel workers); filters use
github.com/woozymasta/pathrules:

	err := archive.Extract(ctx, "out/", rawzip.ExtractOptions{
	    MaxWorkers: 4,
	    Filter: rawzip.FilterOptions{
	        Rules: []pathrules.Rule{
	            {Action: pathrules.ActionInclude, Pattern: "assets/**"},
	        },
	        MatcherOptions: pathrules.MatcherOptions{
	            CaseInsensitive: true,
	            DefaultAction:   pathrules.ActionExclude,
	        },
	    },
	})

Path sanitization is enabled by default during extraction. Disable it
explicitly when raw names are required:

	err := archive.Extract(ctx, "out/", rawzip.ExtractOptions{RawNames: true})

# Writing

The writer frames archives entry by entry. Compress the payload yourself,
count uncompressed bytes and checksum through a DataWriter, and finish the
entry with its descriptor:

	w := rawzip.NewWriter(out)
	ew, err := w.CreateFile("greeting.txt", rawzip.FileOptions{
	    Method: rawzip.MethodDeflate,
	})
	if err != nil {
	    return err
	}
	enc, _ := flate.NewWriter(ew, flate.DefaultCompression)
	dw := rawzip.NewDataWriter(enc)
	if _, err := dw.Write(payload); err != nil {
	    return err
	}
	if err := enc.Close(); err != nil {
	    return err
	}
	if _, err := ew.Finish(dw.Finish()); err != nil {
	    return err
	}
	if _, err := w.Finish(); err != nil {
	    return err
	}

ZIP64 records are emitted automatically when an entry size, an offset, or
the entry count reaches the format sentinel; WriterOptions.ForceZip64 emits
them unconditionally.
*/
package rawzip

// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/rawzip

package rawzip

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
)

// extractCopyBufferSize defines per-worker buffer size for file copy during extraction.
const extractCopyBufferSize = 64 * 1024

// Decompressor turns a raw compressed entry stream into an uncompressed one.
type Decompressor func(r io.Reader) (io.ReadCloser, error)

// defaultDecompressors maps built-in compression methods to decompressors.
var defaultDecompressors = map[CompressionMethod]Decompressor{
	MethodStore: func(r io.Reader) (io.ReadCloser, error) {
		return io.NopCloser(r), nil
	},
	MethodDeflate: func(r io.Reader) (io.ReadCloser, error) {
		return flate.NewReader(r), nil
	},
	MethodZstd: func(r io.Reader) (io.ReadCloser, error) {
		dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, err
		}

		return dec.IOReadCloser(), nil
	},
}

// resolveDecompressor picks a decompressor for one method, preferring caller
// overrides over the built-in registry.
func resolveDecompressor(overrides map[CompressionMethod]Decompressor, method CompressionMethod) (Decompressor, error) {
	if d, ok := overrides[method]; ok && d != nil {
		return d, nil
	}

	if d, ok := defaultDecompressors[method]; ok {
		return d, nil
	}

	return nil, fmt.Errorf("%w: method %d", ErrUnsupportedMethod, method)
}

// extractWorkItem stores one selected entry with prepared output relative paths.
type extractWorkItem struct {
	name    string
	relPath string
	relDir  string
	entry   Entry
}

// Extract decompresses selected entries to dstDir, verifying declared sizes
// and checksums. Extraction is parallelized by MaxWorkers; on failure it
// returns the first encountered error.
func (a *ReaderArchive) Extract(ctx context.Context, dstDir string, opts ExtractOptions) error {
	if a == nil || a.r == nil {
		return ErrNilSource
	}

	opts.applyDefaults()

	workers := opts.MaxWorkers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers < 1 {
		workers = 1
	}

	filter, err := NewEntryFilter(opts.Filter)
	if err != nil {
		return err
	}

	workItems, dirs, err := a.collectExtractWorkItems(filter, opts.ScratchSize, opts.RawNames)
	if err != nil {
		return err
	}

	if len(workItems) == 0 && len(dirs) == 0 {
		return nil
	}

	dstRootAbs, err := filepath.Abs(dstDir)
	if err != nil {
		return fmt.Errorf("resolve output dir: %w", err)
	}

	if err := os.MkdirAll(dstRootAbs, 0o750); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	if err := prepareExtractDirs(dstRootAbs, workItems, dirs); err != nil {
		return err
	}

	if len(workItems) == 0 {
		return nil
	}

	taskCh := make(chan extractWorkItem, len(workItems))
	errCh := make(chan error, len(workItems))
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Go(func() {
			copyBuf := make([]byte, extractCopyBufferSize)
			for task := range taskCh {
				err := a.extractPreparedEntry(ctx, dstRootAbs, task, opts, copyBuf)
				select {
				case errCh <- err:
				case <-ctx.Done():
					return
				}
			}
		})
	}

	for _, task := range workItems {
		select {
		case <-ctx.Done():
			close(taskCh)
			wg.Wait()
			return ctx.Err()
		case taskCh <- task:
		}
	}

	close(taskCh)
	wg.Wait()
	close(errCh)

	var first error
	for err := range errCh {
		if err != nil && first == nil {
			first = err
		}
	}

	if first == nil {
		first = ctx.Err()
	}

	return first
}

// collectExtractWorkItems walks the central directory and prepares detached
// file work items and directory paths for selected entries. Iteration retries
// once with the exact required scratch size when a record overflows the
// configured buffer.
func (a *ReaderArchive) collectExtractWorkItems(filter *EntryFilter, scratchSize int, rawNames bool) ([]extractWorkItem, []string, error) {
	items, dirs, err := a.scanCentralDirectory(filter, make([]byte, scratchSize))
	if err != nil {
		var tooSmall *BufferTooSmallError
		if !errors.As(err, &tooSmall) {
			return nil, nil, err
		}

		items, dirs, err = a.scanCentralDirectory(filter, make([]byte, tooSmall.Required))
		if err != nil {
			return nil, nil, err
		}
	}

	if !rawNames {
		items, err = sanitizedExtractNames(items)
		if err != nil {
			return nil, nil, err
		}
	}

	return prepareExtractWorkItems(items, dirs)
}

// scanCentralDirectory selects entries with one pass over the central
// directory using the given scratch buffer.
func (a *ReaderArchive) scanCentralDirectory(filter *EntryFilter, scratch []byte) ([]extractWorkItem, []string, error) {
	it := a.Entries(scratch)
	defer it.Close()

	var items []extractWorkItem
	var dirs []string
	for {
		entry, err := it.Next()
		if err == io.EOF {
			return items, dirs, nil
		}
		if err != nil {
			return nil, nil, err
		}

		if !filter.MatchEntry(&entry) {
			continue
		}

		name, err := entry.Name.SafePath()
		if err != nil {
			return nil, nil, fmt.Errorf("entry name: %w", err)
		}

		if entry.IsDir() {
			dirs = append(dirs, strings.TrimSuffix(name, "/"))
			continue
		}

		items = append(items, extractWorkItem{name: name, entry: entry.Detach()})
	}
}

// prepareExtractWorkItems validates selected entries and prepares relative fs paths.
func prepareExtractWorkItems(items []extractWorkItem, dirs []string) ([]extractWorkItem, []string, error) {
	out := make([]extractWorkItem, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.name) == "" {
			continue
		}

		normalizedPath, err := normalizeExtractEntryPath(item.name)
		if err != nil {
			return nil, nil, fmt.Errorf("normalize entry path %s: %w", item.name, err)
		}

		item.relPath = filepath.FromSlash(normalizedPath)
		item.relDir = filepath.Dir(item.relPath)
		if item.relDir == "." {
			item.relDir = ""
		}

		out = append(out, item)
	}

	outDirs := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		normalized, err := normalizeExtractEntryPath(dir)
		if err != nil {
			continue
		}

		outDirs = append(outDirs, filepath.FromSlash(normalized))
	}

	return out, outDirs, nil
}

// prepareExtractDirs creates all unique directories needed by work items and
// explicit directory entries.
func prepareExtractDirs(dstRootAbs string, workItems []extractWorkItem, dirs []string) error {
	seen := make(map[string]struct{}, len(workItems)+len(dirs))

	mkdir := func(rel string) error {
		if rel == "" {
			return nil
		}

		dirPath := filepath.Join(dstRootAbs, rel)
		key := strings.ToLower(dirPath)
		if _, exists := seen[key]; exists {
			return nil
		}

		seen[key] = struct{}{}
		if err := os.MkdirAll(dirPath, 0o750); err != nil {
			return fmt.Errorf("create output directory %s: %w", dirPath, err)
		}

		return nil
	}

	for _, dir := range dirs {
		if err := mkdir(dir); err != nil {
			return err
		}
	}

	for _, task := range workItems {
		if err := mkdir(task.relDir); err != nil {
			return err
		}
	}

	return nil
}

// extractPreparedEntry writes one prepared work item to destination root.
func (a *ReaderArchive) extractPreparedEntry(
	ctx context.Context,
	dstRootAbs string,
	task extractWorkItem,
	opts ExtractOptions,
	copyBuf []byte,
) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	outPath := filepath.Join(dstRootAbs, task.relPath)

	decompress, err := resolveDecompressor(opts.Decompressors, task.entry.Method)
	if err != nil {
		return fmt.Errorf("open %s: %w", task.name, err)
	}

	dataRange, err := a.DataRange(&task.entry)
	if err != nil {
		return fmt.Errorf("open %s: %w", task.name, err)
	}

	rc, err := decompress(a.DataReader(dataRange))
	if err != nil {
		return fmt.Errorf("open %s: %w", task.name, err)
	}
	defer func() { _ = rc.Close() }()

	verified := NewVerifyReader(rc, task.entry.UncompressedSize, task.entry.CRC32)

	file, needsTruncate, err := openExtractFile(outPath, opts.FileMode, int64(task.entry.UncompressedSize))
	if err != nil {
		return fmt.Errorf("open %s: %w", task.name, err)
	}

	written, copyErr := copyExtractData(file, verified, copyBuf)
	if copyErr == nil && needsTruncate {
		if truncErr := file.Truncate(written); truncErr != nil {
			_ = file.Close()
			return fmt.Errorf("truncate %s: %w", task.name, truncErr)
		}
	}

	closeErr := file.Close()
	if copyErr != nil {
		return fmt.Errorf("write %s: %w", task.name, copyErr)
	}

	if closeErr != nil {
		return fmt.Errorf("close %s: %w", task.name, closeErr)
	}

	if opts.OnEntryDone != nil {
		opts.OnEntryDone(task.name, written, outPath)
	}

	return nil
}

// openExtractFile opens output path according to selected extract file mode.
func openExtractFile(path string, mode ExtractFileMode, expectedSize int64) (*os.File, bool, error) {
	switch mode {
	case ExtractFileModeAuto:
		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err == nil {
			return file, false, nil
		}

		if !os.IsExist(err) {
			return nil, false, err
		}

		file, truncErr := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
		return file, false, truncErr
	case ExtractFileModeOverwriteSmart:
		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0o600)
		if err != nil {
			return nil, false, err
		}

		info, err := file.Stat()
		if err != nil {
			_ = file.Close()
			return nil, false, err
		}

		needsTruncate := info.Size() > expectedSize
		return file, needsTruncate, nil
	case ExtractFileModeTruncate:
		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
		return file, false, err
	case ExtractFileModeCreateOnly:
		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		return file, false, err
	default:
		return nil, false, fmt.Errorf("unknown extract file mode %q", mode)
	}
}

// copyExtractData copies one entry stream to output file using fixed worker buffer.
func copyExtractData(dst *os.File, src io.Reader, buf []byte) (int64, error) {
	if len(buf) == 0 {
		return 0, io.ErrShortBuffer
	}

	var total int64
	for {
		readN, readErr := src.Read(buf)
		if readN > 0 {
			writeN, writeErr := dst.Write(buf[:readN])
			total += int64(writeN)

			if writeErr != nil {
				return total, writeErr
			}

			if writeN != readN {
				return total, io.ErrShortWrite
			}
		}

		if readErr == nil {
			continue
		}

		if readErr == io.EOF {
			return total, nil
		}

		return total, readErr
	}
}

// normalizeExtractEntryPath normalizes entry path and rejects absolute/traversal inputs.
func normalizeExtractEntryPath(entryPath string) (string, error) {
	raw := strings.TrimSpace(entryPath)
	if raw == "" {
		return "", ErrInvalidExtractPath
	}
	if strings.ContainsRune(raw, 0) {
		return "", ErrInvalidExtractPath
	}
	if strings.HasPrefix(raw, `/`) || strings.HasPrefix(raw, `\`) {
		return "", ErrInvalidExtractPath
	}

	raw = strings.ReplaceAll(raw, `\`, `/`)
	if hasWindowsAbsDrivePrefix(raw) {
		return "", ErrInvalidExtractPath
	}

	parts := strings.Split(raw, `/`)
	cleanParts := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			return "", ErrInvalidExtractPath
		default:
			cleanParts = append(cleanParts, part)
		}
	}
	if len(cleanParts) == 0 {
		return "", ErrInvalidExtractPath
	}

	return strings.Join(cleanParts, `/`), nil
}

// hasWindowsAbsDrivePrefix reports whether path starts with drive-root prefix like C:/.
func hasWindowsAbsDrivePrefix(path string) bool {
	if len(path) < 3 {
		return false
	}

	return isASCIIAlpha(path[0]) && path[1] == ':' && path[2] == '/'
}

package snapshot

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// zstdMagic is the frame header every zstd stream starts with. Dump paths
// never change when compression is toggled, so restore sniffs the content.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// compressFile rewrites path with its zstd-compressed content. Written to a
// sibling temp file first so a crash never leaves a half-compressed dump
// under the canonical name.
func compressFile(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open dump: %w", err)
	}
	defer func() { _ = src.Close() }()

	tmp, err := os.CreateTemp(filepath.Dir(path), "branchsnap-zstd-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	enc, err := zstd.NewWriter(tmp)
	if err != nil {
		_ = tmp.Close()
		return fmt.Errorf("create zstd writer: %w", err)
	}
	if _, err := io.Copy(enc, src); err != nil {
		_ = enc.Close()
		_ = tmp.Close()
		return fmt.Errorf("compress dump: %w", err)
	}
	if err := enc.Close(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("flush zstd stream: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	return os.Rename(tmp.Name(), path)
}

// isCompressed reports whether the file at path is a zstd stream.
func isCompressed(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	header := make([]byte, len(zstdMagic))
	if _, err := io.ReadFull(f, header); err != nil {
		return false
	}
	return bytes.Equal(header, zstdMagic)
}

// decompressToTemp writes the decompressed content of path to a temp file and
// returns its name plus a cleanup func.
func decompressToTemp(path string) (string, func(), error) {
	src, err := os.Open(path)
	if err != nil {
		return "", nil, fmt.Errorf("open dump: %w", err)
	}
	defer func() { _ = src.Close() }()

	dec, err := zstd.NewReader(src)
	if err != nil {
		return "", nil, fmt.Errorf("create zstd reader: %w", err)
	}
	defer dec.Close()

	tmp, err := os.CreateTemp(os.TempDir(), "branchsnap-restore-*")
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	cleanup := func() { _ = os.Remove(tmp.Name()) }

	if _, err := io.Copy(tmp, dec.IOReadCloser()); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", nil, fmt.Errorf("decompress dump: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close temp file: %w", err)
	}

	return tmp.Name(), cleanup, nil
}

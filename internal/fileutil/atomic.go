// Package fileutil provides filesystem helpers for cache snapshot files.
package fileutil

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrEmptyPath indicates an empty file path was provided.
var ErrEmptyPath = errors.New("path is empty")

// WriteAtomic writes data to path atomically with the provided permissions.
func WriteAtomic(path string, data []byte, perm os.FileMode) error {
	return WriteAtomicFunc(path, perm, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// WriteAtomicFunc streams the output of write into a temp file next to path,
// fsyncs it and renames it over path. The parent directory is created when
// missing. If write fails, path is left untouched.
func WriteAtomicFunc(path string, perm os.FileMode, write func(io.Writer) error) error {
	if path == "" {
		return ErrEmptyPath
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	tmpPath := tmpFile.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmpFile.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	buf := bufio.NewWriter(tmpFile)
	if err := write(buf); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("flushing temp file: %w", err)
	}

	if err := tmpFile.Chmod(perm); err != nil {
		return fmt.Errorf("setting temp file permissions: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil { //nolint:gosec // G703: path comes from configuration
		return fmt.Errorf("renaming temp file: %w", err)
	}
	committed = true

	// Best effort directory sync for rename durability.
	if dirFile, err := os.Open(dir); err == nil { //nolint:gosec // G304: dir is derived from path
		_ = dirFile.Sync()
		_ = dirFile.Close()
	}

	return nil
}

// Quarantine renames a damaged file to "<path>.corrupt.<unix-seconds>" so a
// fresh file can take its place, and returns the new name.
func Quarantine(path string, now time.Time) (string, error) {
	if path == "" {
		return "", ErrEmptyPath
	}
	target := strings.Join([]string{path, "corrupt", strconv.FormatInt(now.Unix(), 10)}, ".")
	if err := os.Rename(path, target); err != nil {
		return "", fmt.Errorf("quarantining %s: %w", path, err)
	}
	return target, nil
}

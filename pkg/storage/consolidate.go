package storage

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// MergeMode selects how MergeAll treats an existing output file.
type MergeMode string

const (
	// MergeAppend adds to the output file, so URLs accumulate across runs.
	MergeAppend MergeMode = "append"
	// MergeTruncate replaces the output file on every merge.
	MergeTruncate MergeMode = "truncate"
)

// ParseMergeMode accepts "append", "truncate" or "" (append).
func ParseMergeMode(s string) (MergeMode, error) {
	switch MergeMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", MergeAppend:
		return MergeAppend, nil
	case MergeTruncate:
		return MergeTruncate, nil
	default:
		return "", fmt.Errorf("unknown merge mode %q", s)
	}
}

const urlPrefix = "http"

// Dedupe rewrites path with each whitespace separated token once per line,
// sorted. Running it twice leaves the file unchanged. It returns the number
// of lines written.
func Dedupe(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}

	seen := make(map[string]struct{})
	for _, tok := range strings.Fields(string(data)) {
		seen[tok] = struct{}{}
	}
	lines := make([]string, 0, len(seen))
	for tok := range seen {
		lines = append(lines, tok)
	}
	sort.Strings(lines)

	var out string
	if len(lines) > 0 {
		out = strings.Join(lines, "\n") + "\n"
	}
	if err := replaceFile(path, []byte(out)); err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return len(lines), nil
}

// replaceFile writes data to a temp file next to path and renames it over
// path, so a crash leaves either the old or the new content.
func replaceFile(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Chmod(0644); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// DedupeAll runs Dedupe on every .txt file in dir. A failing file does not
// stop the others; all failures are joined into the returned error.
func DedupeAll(dir string) (map[string]int, error) {
	files, err := categoryFiles(dir, "")
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(files))
	var errs []error
	for _, f := range files {
		n, err := Dedupe(f)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		counts[filepath.Base(f)] = n
	}
	return counts, errors.Join(errs...)
}

// MergeAll writes every URL token found in the .txt files of dir to out,
// one per line. Tokens not starting with "http" are dropped. The output file
// is skipped if it lives in dir. Duplicates across files are kept; run
// DedupeAll first for per-file uniqueness.
func MergeAll(dir, out string, mode MergeMode) (int, error) {
	files, err := categoryFiles(dir, out)
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return 0, fmt.Errorf("failed to create output directory: %w", err)
	}
	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if mode == MergeTruncate {
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}
	f, err := os.OpenFile(out, flags, 0644)
	if err != nil {
		return 0, fmt.Errorf("failed to open output %s: %w", out, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	written := 0
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return written, fmt.Errorf("failed to read %s: %w", path, err)
		}
		for _, tok := range strings.Fields(string(data)) {
			if !strings.HasPrefix(tok, urlPrefix) {
				continue
			}
			if _, err := w.WriteString(tok + "\n"); err != nil {
				return written, fmt.Errorf("failed to write output: %w", err)
			}
			written++
		}
	}
	if err := w.Flush(); err != nil {
		return written, fmt.Errorf("failed to flush output: %w", err)
	}
	return written, f.Close()
}

// categoryFiles lists the .txt files of dir in name order, leaving out
// exclude.
func categoryFiles(dir, exclude string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var skip string
	if exclude != "" {
		if abs, err := filepath.Abs(exclude); err == nil {
			skip = abs
		}
	}

	out := files[:0]
	for _, f := range files {
		if skip != "" {
			if abs, err := filepath.Abs(f); err == nil && abs == skip {
				continue
			}
		}
		out = append(out, f)
	}
	sort.Strings(out)
	return out, nil
}

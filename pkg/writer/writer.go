package writer

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"
)

// Recognised file extensions. The extension decides whether a file is
// written plain or gzip-compressed.
var (
	RegularExtensions    = []string{"txt", "json", "yaml", "twc"}
	CompressedExtensions = []string{"gzip", "zip", "twzip"}
)

// ErrUnknownExtension is returned for paths whose extension is not in either
// recognised set.
var ErrUnknownExtension = fmt.Errorf("unrecognised file extension")

func isRegular(ext string) bool {
	for _, e := range RegularExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

func isCompressed(ext string) bool {
	for _, e := range CompressedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Recognised reports whether the path carries a known extension.
func Recognised(path string) bool {
	ext := extension(path)
	return isRegular(ext) || isCompressed(ext)
}

func extension(path string) string {
	return strings.TrimPrefix(filepath.Ext(path), ".")
}

// ExpandHome replaces a leading ~ with the current user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	usr, err := user.Current()
	if err != nil {
		return path
	}
	return filepath.Join(usr.HomeDir, strings.TrimPrefix(path, "~"))
}

type gzipWriteCloser struct {
	gz   *gzip.Writer
	file *os.File
}

func (w *gzipWriteCloser) Write(p []byte) (int, error) { return w.gz.Write(p) }

func (w *gzipWriteCloser) Close() error {
	if err := w.gz.Close(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

// Open opens the given path for appending, creating parent directories as
// needed. The returned writer is transparently gzip-wrapped for compressed
// extensions.
func Open(path string) (io.WriteCloser, error) {
	path = ExpandHome(path)
	ext := extension(path)
	if !isRegular(ext) && !isCompressed(ext) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownExtension, ext)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	if isCompressed(ext) {
		return &gzipWriteCloser{gz: gzip.NewWriter(file), file: file}, nil
	}
	return file, nil
}

// Append writes data to the end of the file at path. Files are never
// truncated; each call opens, appends and closes so a crash mid-run loses at
// most the final write.
func Append(data []byte, path string) error {
	w, err := Open(path)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return w.Close()
}

// ReadLines reads the file at path line by line, decompressing when the
// extension calls for it.
func ReadLines(path string) ([]string, error) {
	path = ExpandHome(path)
	ext := extension(path)
	if !isRegular(ext) && !isCompressed(ext) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownExtension, ext)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	var reader io.Reader = file
	if isCompressed(ext) {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream %s: %w", path, err)
		}
		defer gz.Close()
		reader = gz
	}

	var lines []string
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return lines, nil
}

// CrawlPath computes the output path for a query's capture file:
// {output_dir}/{bucket}/{prefix}{yyyy-MM-dd_HH-mm-ss}_{first_item_id}{postfix}
func CrawlPath(outputDir, bucket, prefix, firstID, postfix string, now time.Time) string {
	name := fmt.Sprintf(
		"%s%s_%s%s", prefix, now.Format("2006-01-02_15-04-05"), firstID, postfix,
	)
	return filepath.Join(ExpandHome(outputDir), bucket, name)
}

// Package quarantine relocates unprocessable input files to an error
// directory for manual inspection, with collision-safe naming.
package quarantine

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Sink moves bad files into a holding directory.
type Sink struct {
	dir    string
	logger *slog.Logger
}

// NewSink creates a Sink rooted at dir. The directory is created lazily on
// the first move.
func NewSink(dir string, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{dir: dir, logger: logger}
}

// Move relocates the file at path into the error directory and returns the
// destination. The destination keeps the original base name; on collision a
// -0, -1, … suffix is appended until a free name is found, so no quarantined
// file ever overwrites another. cause is the error that made the file
// unprocessable and is only used for logging.
//
// After Move returns, the file no longer exists at its original path. IO
// failures (directory creation, the move itself) are returned as-is: the
// sink has no fallback.
func (s *Sink) Move(cause error, path string) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("quarantine: create error dir: %w", err)
	}

	base := filepath.Base(path)
	dest := filepath.Join(s.dir, base)
	for c := 0; ; c++ {
		if _, err := os.Stat(dest); os.IsNotExist(err) {
			break
		}
		dest = filepath.Join(s.dir, fmt.Sprintf("%s-%d", base, c))
	}

	if err := move(path, dest); err != nil {
		return "", fmt.Errorf("quarantine: move %s: %w", path, err)
	}

	s.logger.Warn("unprocessable file",
		slog.String("error", fmt.Sprintf("%v", cause)),
		slog.String("path", path))
	s.logger.Warn("file quarantined",
		slog.String("path", path),
		slog.String("moved_to", dest))

	return dest, nil
}

// move renames src to dest, falling back to copy+remove when the rename
// crosses devices.
func move(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = os.Remove(dest)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	in.Close()
	return os.Remove(src)
}

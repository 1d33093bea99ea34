// Package expand unpacks downloaded harvest archives into per-batch
// directories of individual envelope files.
package expand

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Extension is the archive suffix the publishing service produces.
const Extension = ".tar.gz"

// Error reports an archive that could not be expanded. The caller is
// expected to quarantine the archive file itself; any partially extracted
// members have already been cleaned up.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("expand: %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Expand unpacks the tar.gz archive at archivePath into
// <workRoot>/<archive base name without extension>/ and returns that
// directory. The archive file is removed on success. On failure every
// extracted member and the partial directory are removed before the *Error
// is returned, so no half-expanded batch is ever left behind.
func Expand(archivePath, workRoot string) (string, error) {
	base := filepath.Base(archivePath)
	if !strings.HasSuffix(base, Extension) {
		return "", &Error{Path: archivePath, Err: fmt.Errorf("not a %s archive", Extension)}
	}
	dest := filepath.Join(workRoot, strings.TrimSuffix(base, Extension))

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", &Error{Path: archivePath, Err: err}
	}

	if err := extract(archivePath, dest); err != nil {
		removeAll(dest)
		return "", &Error{Path: archivePath, Err: err}
	}

	if err := os.Remove(archivePath); err != nil {
		return "", &Error{Path: archivePath, Err: err}
	}
	return dest, nil
}

func extract(archivePath, dest string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		target, err := memberPath(dest, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeReg:
			out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}
		case tar.TypeDir:
			// A batch is a flat set of envelope files; a directory member
			// would survive assembly and block the batch dir removal.
			return fmt.Errorf("unexpected directory member %s", hdr.Name)
		default:
			// Links and specials have no place in a harvest archive.
			return fmt.Errorf("unsupported member type %q for %s", hdr.Typeflag, hdr.Name)
		}
	}
}

// memberPath joins a member name to the destination. Only plain file names
// are accepted: a nested or escaping path would leave structure the batch
// assembler cannot consume.
func memberPath(dest, name string) (string, error) {
	cleaned := filepath.Clean(name)
	if cleaned == "." || cleaned == ".." || cleaned != filepath.Base(cleaned) {
		return "", fmt.Errorf("member %s is not a plain file name", name)
	}
	return filepath.Join(dest, cleaned), nil
}

func removeAll(dir string) {
	entries, err := os.ReadDir(dir)
	if err == nil {
		for _, e := range entries {
			_ = os.RemoveAll(filepath.Join(dir, e.Name()))
		}
	}
	_ = os.Remove(dir)
}

// Package eln opens .eln export archives and decodes their RO-Crate manifests.
//
// An .eln file is a zip archive containing a single top-level directory (the
// crate root) with a ro-crate-metadata.json manifest describing the exported
// records and their attached files. See
// https://github.com/TheELNConsortium/TheELNFileFormat for the format.
package eln

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// MetadataFileName is the RO-Crate manifest file name.
const MetadataFileName = "ro-crate-metadata.json"

var (
	// ErrNoCrateRoot is returned when the archive contains no directory with
	// a RO-Crate manifest.
	ErrNoCrateRoot = errors.New("no crate root with " + MetadataFileName + " found in archive")

	// ErrUnsafePath is returned when an archive entry would escape the
	// extraction directory.
	ErrUnsafePath = errors.New("archive entry path escapes extraction directory")
)

// Archive is an .eln export extracted to a temporary directory.
// Close removes the extracted files.
type Archive struct {
	root string
	tmp  string
}

// Open extracts the .eln archive at path into a temporary directory and
// locates the crate root. The caller must Close the returned Archive.
func Open(path string) (*Archive, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	defer zr.Close()

	tmp, err := os.MkdirTemp("", "eln-*")
	if err != nil {
		return nil, fmt.Errorf("create extraction directory: %w", err)
	}

	if err := extractAll(&zr.Reader, tmp); err != nil {
		_ = os.RemoveAll(tmp)
		return nil, fmt.Errorf("extract archive %s: %w", path, err)
	}

	root, err := findCrateRoot(tmp)
	if err != nil {
		_ = os.RemoveAll(tmp)
		return nil, err
	}

	return &Archive{root: root, tmp: tmp}, nil
}

// Root returns the crate root directory, the directory containing the
// RO-Crate manifest.
func (a *Archive) Root() string {
	return a.root
}

// ManifestPath returns the path of the extracted RO-Crate manifest.
func (a *Archive) ManifestPath() string {
	return filepath.Join(a.root, MetadataFileName)
}

// Resolve maps a crate-relative part ID to an absolute path inside the
// extracted archive. IDs with a leading "./" or "../" are normalized the way
// RSpace writes them. It refuses paths that would leave the crate root.
func (a *Archive) Resolve(id string) (string, error) {
	id = strings.TrimPrefix(id, "./")
	id = strings.TrimPrefix(id, "../")
	clean := filepath.Clean(filepath.FromSlash(id))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, id)
	}
	return filepath.Join(a.root, clean), nil
}

// Close removes the extracted files.
func (a *Archive) Close() error {
	return os.RemoveAll(a.tmp)
}

func extractAll(zr *zip.Reader, dest string) error {
	for _, f := range zr.File {
		if err := extractFile(f, dest); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, dest string) error {
	name := filepath.FromSlash(f.Name)
	if !filepath.IsLocal(name) {
		return fmt.Errorf("%w: %s", ErrUnsafePath, f.Name)
	}
	target := filepath.Join(dest, name)

	if f.FileInfo().IsDir() {
		return os.MkdirAll(target, 0o755)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", f.Name, err)
	}

	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}
	return nil
}

// findCrateRoot locates the directory holding the RO-Crate manifest: either
// the extraction directory itself or one of its immediate subdirectories.
func findCrateRoot(dir string) (string, error) {
	if _, err := os.Stat(filepath.Join(dir, MetadataFileName)); err == nil {
		return dir, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("scan extraction directory: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sub := filepath.Join(dir, e.Name())
		if _, err := os.Stat(filepath.Join(sub, MetadataFileName)); err == nil {
			return sub, nil
		}
	}
	return "", ErrNoCrateRoot
}

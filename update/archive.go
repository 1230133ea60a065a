package update

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// extract unpacks archive into dir, the format is picked from the archive name.
func extract(name string, archive []byte, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	switch {
	case strings.HasSuffix(name, ".zip"):
		return extractZip(archive, dir)
	case strings.HasSuffix(name, ".tar.gz"):
		return extractTarGz(archive, dir)
	default:
		return fmt.Errorf("unknown archive format of %s", name)
	}
}

// target resolves an archive entry name below dir, entries escaping it are refused.
func target(dir, name string) (string, error) {
	path := filepath.Join(dir, filepath.FromSlash(name))
	if path != filepath.Clean(dir) && !strings.HasPrefix(path, filepath.Clean(dir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry %q escapes the extraction directory", name)
	}
	return path, nil
}

func writeFile(path string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err = io.Copy(f, io.LimitReader(r, maxDownloadSize)); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func extractTarGz(archive []byte, dir string) error {
	gz, err := gzip.NewReader(bytes.NewReader(archive))
	if err != nil {
		return err
	}
	defer gz.Close()

	r := tar.NewReader(gz)
	for {
		header, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return err
		}

		path, err := target(dir, header.Name)
		if err != nil {
			return err
		}
		switch header.Typeflag {
		case tar.TypeDir:
			if err = os.MkdirAll(path, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err = writeFile(path, r, header.FileInfo().Mode().Perm()|0o600); err != nil {
				return err
			}
		default:
			// links and devices are never part of a release
		}
	}
}

func extractZip(archive []byte, dir string) error {
	r, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return err
	}
	for _, f := range r.File {
		path, err := target(dir, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err = os.MkdirAll(path, 0o755); err != nil {
				return err
			}
			continue
		}
		if !f.Mode().IsRegular() {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return err
		}
		err = writeFile(path, rc, f.Mode().Perm()|0o600)
		_ = rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

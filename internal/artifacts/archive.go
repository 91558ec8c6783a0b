package artifacts

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

// Unzip extracts <archiveDir>/<name>.zip into destDir and returns the paths
// of the extracted files. Entries that would land outside destDir are
// rejected.
func Unzip(archiveDir, name, destDir string) ([]string, error) {
	archive := filepath.Join(archiveDir, name+".zip")
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return nil, artifactError("open archive", archive, err)
	}
	defer zr.Close()

	root, err := filepath.Abs(destDir)
	if err != nil {
		return nil, artifactError("resolve destination", destDir, err)
	}

	var written []string
	for _, entry := range zr.File {
		target := filepath.Join(root, filepath.FromSlash(entry.Name))
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return written, artifactError("extract archive", archive,
				fmt.Errorf("entry %q escapes %s", entry.Name, destDir))
		}
		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return written, artifactError("extract archive", archive, err)
			}
			continue
		}
		if err := extractEntry(entry, target); err != nil {
			return written, artifactError("extract archive", archive, err)
		}
		written = append(written, target)
	}
	return written, nil
}

func extractEntry(entry *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	src, err := entry.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

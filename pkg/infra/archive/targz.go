package archive

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/commis-ai/commis/pkg/domain/interfaces"
	"github.com/commis-ai/commis/pkg/domain/types"
)

type tarGzExtractor struct{}

// NewTarGz creates an extractor for gzip-compressed tar archives
func NewTarGz() interfaces.Extractor {
	return &tarGzExtractor{}
}

// Extract unpacks the archive into destDir and returns the extracted entry
// names relative to destDir
func (x *tarGzExtractor) Extract(ctx context.Context, archivePath, destDir string) ([]string, error) {
	logger := ctxlog.From(ctx)

	f, err := os.Open(archivePath)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open archive",
			goerr.V("path", archivePath), goerr.T(types.ErrTagExtraction))
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, goerr.Wrap(err, "archive is not valid gzip",
			goerr.V("path", archivePath), goerr.T(types.ErrTagExtraction))
	}
	defer gz.Close()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, goerr.Wrap(err, "failed to create extraction directory",
			goerr.V("path", destDir), goerr.T(types.ErrTagDirectory))
	}

	var extracted []string
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "archive is not valid tar",
				goerr.V("path", archivePath), goerr.T(types.ErrTagExtraction))
		}

		if err := x.extractEntry(hdr, tr, destDir); err != nil {
			return nil, err
		}
		extracted = append(extracted, hdr.Name)
	}

	logger.Debug("Extracted archive",
		"archive", archivePath,
		"dest", destDir,
		"entries", len(extracted),
	)

	return extracted, nil
}

func (x *tarGzExtractor) extractEntry(hdr *tar.Header, r io.Reader, destDir string) error {
	// Security check: prevent path traversal attacks
	destPath := filepath.Join(destDir, hdr.Name)
	if !strings.HasPrefix(destPath, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return goerr.New("invalid entry path in archive",
			goerr.V("entry", hdr.Name), goerr.T(types.ErrTagExtraction))
	}

	switch hdr.Typeflag {
	case tar.TypeDir:
		if err := os.MkdirAll(destPath, hdr.FileInfo().Mode()); err != nil {
			return goerr.Wrap(err, "failed to create directory",
				goerr.V("path", destPath), goerr.T(types.ErrTagExtraction))
		}
		return nil

	case tar.TypeSymlink:
		// Release archives ship relative symlinks between shared libraries
		if filepath.IsAbs(hdr.Linkname) || strings.Contains(hdr.Linkname, "..") {
			return goerr.New("refusing unsafe symlink in archive",
				goerr.V("entry", hdr.Name), goerr.V("target", hdr.Linkname),
				goerr.T(types.ErrTagExtraction))
		}
		if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
			return goerr.Wrap(err, "failed to create parent directories",
				goerr.V("path", destPath), goerr.T(types.ErrTagExtraction))
		}
		if err := os.Symlink(hdr.Linkname, destPath); err != nil {
			return goerr.Wrap(err, "failed to create symlink",
				goerr.V("path", destPath), goerr.T(types.ErrTagExtraction))
		}
		return nil

	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
			return goerr.Wrap(err, "failed to create parent directories",
				goerr.V("path", destPath), goerr.T(types.ErrTagExtraction))
		}

		dest, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, hdr.FileInfo().Mode())
		if err != nil {
			return goerr.Wrap(err, "failed to create file",
				goerr.V("path", destPath), goerr.T(types.ErrTagExtraction))
		}

		_, err = io.Copy(dest, r)
		if closeErr := dest.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return goerr.Wrap(err, "failed to write file content",
				goerr.V("path", destPath), goerr.T(types.ErrTagExtraction))
		}
		return nil

	default:
		// Skip device nodes and other special entries
		return nil
	}
}

package subaru

import (
	"archive/tar"
	"compress/bzip2"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/pgzip"
	"github.com/ulikunitz/xz"
	"golang.org/x/sys/unix"
)

// archiveFormat classifies an archive filename by suffix. Empty string means
// the format is unsupported.
func archiveFormat(name string) string {
	switch {
	case strings.HasSuffix(name, ".tar.gz") || strings.HasSuffix(name, ".tgz"):
		return "gz"
	case strings.HasSuffix(name, ".tar.xz"):
		return "xz"
	case strings.HasSuffix(name, ".tar.bz2"):
		return "bz2"
	case strings.HasSuffix(name, ".zip"):
		return "zip"
	}
	return ""
}

// extractArchive unpacks archive into dest. Re-extraction of an already
// extracted archive simply overwrites. The format check runs before any
// filesystem mutation so an unsupported archive leaves no partial state.
func extractArchive(archive, dest string) error {
	format := archiveFormat(archive)
	if format == "" {
		return &UnsupportedFormatError{Archive: filepath.Base(archive)}
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("failed to create extraction dir %s: %w", dest, err)
	}

	if format == "zip" {
		return unzipGo(archive, dest)
	}

	// Try system tar first; it is faster and handles odd archives well.
	// Running it through the executor keeps long extractions killable the
	// same way build steps are.
	if _, err := exec.LookPath("tar"); err == nil {
		tarCmd := exec.Command("tar", "xf", archive, "-C", dest)
		if err := BuildExec.Run(tarCmd); err == nil {
			debugf("Used system tar for %s\n", archive)
			return nil
		}
		if BuildExec.Context.Err() != nil {
			return fmt.Errorf("extraction of %s aborted: %w", filepath.Base(archive), BuildExec.Context.Err())
		}
		debugf("System tar failed for %s, using internal extractor\n", archive)
	}

	return extractTarGo(archive, dest, format)
}

// compressedReader wraps f with the decompressor for format. The returned
// closer releases the decompressor (the caller still closes f).
func compressedReader(f *os.File, format string) (io.Reader, func(), error) {
	switch format {
	case "gz":
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return gz, func() { gz.Close() }, nil
	case "xz":
		xzr, err := xz.NewReader(f)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create xz reader: %w", err)
		}
		return xzr, func() {}, nil
	case "bz2":
		return bzip2.NewReader(f), func() {}, nil
	}
	return nil, nil, fmt.Errorf("no decompressor for format %q", format)
}

// extractTarGo is the pure-Go tar extractor, preserving modes, symlinks,
// timestamps and (when running as root) ownership.
func extractTarGo(archive, dest, format string) error {
	f, err := os.Open(archive)
	if err != nil {
		return fmt.Errorf("failed to open archive %s: %w", archive, err)
	}
	defer f.Close()

	r, closeReader, err := compressedReader(f, format)
	if err != nil {
		return err
	}
	defer closeReader()

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("error reading tar header in %s: %w", archive, err)
		}

		// Skip PAX headers (global or per-file)
		if hdr.Typeflag == tar.TypeXHeader || hdr.Typeflag == tar.TypeXGlobalHeader {
			if _, err := io.Copy(io.Discard, tr); err != nil {
				return fmt.Errorf("error skipping extended header data in %s: %w", archive, err)
			}
			continue
		}

		name := filepath.Clean(hdr.Name)
		if name == "." || name == "" {
			continue
		}
		// Path traversal guard, same idea as the zip extractor.
		if strings.HasPrefix(name, "..") || filepath.IsAbs(name) {
			return fmt.Errorf("illegal entry path in archive: %s", hdr.Name)
		}

		targetPath := filepath.Join(dest, name)
		if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
			return fmt.Errorf("failed to create parent dir for %s: %w", targetPath, err)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(targetPath, os.FileMode(hdr.Mode)); err != nil {
				return fmt.Errorf("failed to create dir %s: %w", targetPath, err)
			}
			_ = os.Chtimes(targetPath, hdr.AccessTime, hdr.ModTime)
			if os.Geteuid() == 0 {
				_ = os.Chown(targetPath, hdr.Uid, hdr.Gid)
			}
		case tar.TypeReg:
			outFile, err := os.OpenFile(targetPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return fmt.Errorf("failed to create file %s: %w", targetPath, err)
			}
			if _, err := io.Copy(outFile, tr); err != nil {
				outFile.Close()
				return fmt.Errorf("failed to write file %s: %w", targetPath, err)
			}
			outFile.Close()
			_ = os.Chtimes(targetPath, hdr.AccessTime, hdr.ModTime)
			if os.Geteuid() == 0 {
				_ = os.Chown(targetPath, hdr.Uid, hdr.Gid)
			}
		case tar.TypeSymlink:
			_ = os.Remove(targetPath)
			if err := os.Symlink(hdr.Linkname, targetPath); err != nil && !os.IsExist(err) {
				return fmt.Errorf("failed to create symlink %s -> %s: %w", targetPath, hdr.Linkname, err)
			}
			if os.Geteuid() == 0 {
				_ = unix.Lchown(targetPath, hdr.Uid, hdr.Gid)
			}
		default:
			debugf("Skipping unsupported tar entry type %c: %s\n", hdr.Typeflag, hdr.Name)
		}
	}
	return nil
}

// unzipGo unpacks a zip source archive into dest. Zip entries keep their
// recorded modes; there is no system-tool fast path for zip.
func unzipGo(src, dest string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer r.Close()

	dest, err = filepath.Abs(dest)
	if err != nil {
		return err
	}

	for _, f := range r.File {
		fpath := filepath.Join(dest, f.Name)

		// Reject entries that would land outside dest (Zip Slip).
		if !strings.HasPrefix(fpath, dest+string(os.PathSeparator)) {
			return fmt.Errorf("illegal file path in archive: %s", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(fpath, os.ModePerm); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(fpath), os.ModePerm); err != nil {
			return err
		}

		outFile, err := os.OpenFile(fpath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
		if err != nil {
			return err
		}

		rc, err := f.Open()
		if err != nil {
			outFile.Close()
			return err
		}

		_, err = io.Copy(outFile, rc)

		// Close per entry, source trees can hold thousands of files.
		outFile.Close()
		rc.Close()

		if err != nil {
			return err
		}
	}
	return nil
}

// archiveTopDir returns the first path segment of the first content entry in
// the archive, e.g. "foo-2.0" for an archive listing "foo-2.0/README".
// Empty string means the archive has no top-level directory.
func archiveTopDir(archive string) (string, error) {
	format := archiveFormat(archive)
	if format == "" {
		return "", &UnsupportedFormatError{Archive: filepath.Base(archive)}
	}

	if format == "zip" {
		r, err := zip.OpenReader(archive)
		if err != nil {
			return "", err
		}
		defer r.Close()
		if len(r.File) == 0 {
			return "", nil
		}
		return firstSegment(r.File[0].Name), nil
	}

	f, err := os.Open(archive)
	if err != nil {
		return "", err
	}
	defer f.Close()

	r, closeReader, err := compressedReader(f, format)
	if err != nil {
		return "", err
	}
	defer closeReader()

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return "", nil
		}
		if err != nil {
			return "", fmt.Errorf("error listing %s: %w", archive, err)
		}
		if hdr.Typeflag == tar.TypeXHeader || hdr.Typeflag == tar.TypeXGlobalHeader {
			continue
		}
		return firstSegment(hdr.Name), nil
	}
}

func firstSegment(name string) string {
	name = strings.TrimPrefix(filepath.Clean(name), "./")
	if idx := strings.IndexByte(name, '/'); idx != -1 {
		return name[:idx]
	}
	// A bare file at the archive root: only a directory entry counts as a
	// top-level dir when it has no slash.
	return name
}

package subaru

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/pgzip"
)

func TestArchiveFormat(t *testing.T) {
	cases := map[string]string{
		"zlib-1.3.1.tar.gz":   "gz",
		"node.tgz":            "gz",
		"libunistring.tar.xz": "xz",
		"pcre2.tar.bz2":       "bz2",
		"source.zip":          "zip",
		"pkg.tar.zst":         "",
		"pkg.rar":             "",
		"pkg.tar":             "",
		"README":              "",
	}
	for name, want := range cases {
		if got := archiveFormat(name); got != want {
			t.Errorf("archiveFormat(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestExtractUnsupportedFormat(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out")
	err := extractArchive("source.tar.zst", dest)

	var ufe *UnsupportedFormatError
	if !errors.As(err, &ufe) {
		t.Fatalf("expected UnsupportedFormatError, got %v", err)
	}
	// No partial extraction: the destination must not have been created.
	if pathExists(dest) {
		t.Error("destination directory was created for an unsupported archive")
	}
}

func TestExtractTarGz(t *testing.T) {
	setupTestDirs(t)
	tmp := t.TempDir()
	archive := filepath.Join(tmp, "demo-1.0.tar.gz")
	data := makeTarGz(t, "demo-1.0", map[string]string{"payload.txt": "hello\n"})
	if err := os.WriteFile(archive, data, 0o644); err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(tmp, "build")
	if err := extractArchive(archive, dest); err != nil {
		t.Fatalf("extractArchive failed: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dest, "demo-1.0", "payload.txt"))
	if err != nil {
		t.Fatalf("extracted file missing: %v", err)
	}
	if string(got) != "hello\n" {
		t.Errorf("unexpected content: %q", got)
	}
}

func TestExtractCancelledRun(t *testing.T) {
	if _, err := exec.LookPath("tar"); err != nil {
		t.Skip("system tar not available")
	}
	setupTestDirs(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	BuildExec = NewExecutor(ctx)

	tmp := t.TempDir()
	archive := filepath.Join(tmp, "demo-1.0.tar.gz")
	data := makeTarGz(t, "demo-1.0", map[string]string{"payload.txt": "hello\n"})
	if err := os.WriteFile(archive, data, 0o644); err != nil {
		t.Fatal(err)
	}

	// A cancelled run must surface the abort, not quietly finish the
	// extraction with the internal extractor.
	err := extractArchive(archive, filepath.Join(tmp, "build"))
	if err == nil {
		t.Fatal("extraction should fail once the run is cancelled")
	}
	if !strings.Contains(err.Error(), "aborted") {
		t.Errorf("error should report the abort, got %v", err)
	}
}

func TestExtractTarGzPureGo(t *testing.T) {
	tmp := t.TempDir()
	archive := filepath.Join(tmp, "demo-1.0.tar.gz")
	data := makeTarGz(t, "demo-1.0", map[string]string{"a/b.txt": "nested\n"})
	if err := os.WriteFile(archive, data, 0o644); err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(tmp, "build")
	if err := extractTarGo(archive, dest, "gz"); err != nil {
		t.Fatalf("extractTarGo failed: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dest, "demo-1.0", "a", "b.txt"))
	if err != nil {
		t.Fatalf("extracted file missing: %v", err)
	}
	if string(got) != "nested\n" {
		t.Errorf("unexpected content: %q", got)
	}
}

func TestExtractZip(t *testing.T) {
	tmp := t.TempDir()
	archive := filepath.Join(tmp, "demo.zip")

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("demo-2.0/file.txt")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("zipped\n")); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(archive, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(tmp, "build")
	if err := extractArchive(archive, dest); err != nil {
		t.Fatalf("extractArchive failed: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dest, "demo-2.0", "file.txt"))
	if err != nil {
		t.Fatalf("extracted file missing: %v", err)
	}
	if string(got) != "zipped\n" {
		t.Errorf("unexpected content: %q", got)
	}
}

func TestArchiveTopDir(t *testing.T) {
	tmp := t.TempDir()
	archive := filepath.Join(tmp, "foo.tar.gz")
	data := makeTarGz(t, "foo-2.0", map[string]string{"README": "x"})
	if err := os.WriteFile(archive, data, 0o644); err != nil {
		t.Fatal(err)
	}

	top, err := archiveTopDir(archive)
	if err != nil {
		t.Fatalf("archiveTopDir failed: %v", err)
	}
	if top != "foo-2.0" {
		t.Errorf("archiveTopDir = %q, want foo-2.0", top)
	}
}

func TestArchiveTopDirSkipsPaxHeaders(t *testing.T) {
	tmp := t.TempDir()
	archive := filepath.Join(tmp, "pax.tar.gz")

	var buf bytes.Buffer
	gz := pgzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	// PAX-format entries carry extended headers ahead of the content.
	if err := tw.WriteHeader(&tar.Header{
		Name:     "bar-3.1/main.c",
		Typeflag: tar.TypeReg,
		Mode:     0o644,
		Size:     1,
		Format:   tar.FormatPAX,
		PAXRecords: map[string]string{
			"comment": "extended",
		},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write([]byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(archive, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	top, err := archiveTopDir(archive)
	if err != nil {
		t.Fatalf("archiveTopDir failed: %v", err)
	}
	if top != "bar-3.1" {
		t.Errorf("archiveTopDir = %q, want bar-3.1", top)
	}
}

package subaru

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
)

// packPrefix archives the whole build prefix into a .tar.zst snapshot so a
// finished bootstrap can be copied to another machine. Uses system tar when
// available, otherwise falls back to pure-Go tar+zstd.
func packPrefix(outPath string) error {
	if !isDir(Prefix) {
		return fmt.Errorf("prefix %s does not exist; nothing to pack", Prefix)
	}

	if outPath == "" {
		outPath = fmt.Sprintf("subaru-prefix-%s.tar.zst", time.Now().Format("20060102"))
	}

	// --- Try system tar first ---
	if _, err := exec.LookPath("tar"); err == nil {
		args := []string{"--zstd", "-cf", outPath, "-C", Prefix, ".",
			"--owner=0", "--group=0", "--numeric-owner"}
		tarCmd := exec.Command("tar", args...)
		debugf("Creating prefix snapshot with system tar: %s\n", outPath)
		if err := BuildExec.Run(tarCmd); err == nil {
			colArrow.Print("-> ")
			colSuccess.Printf("Prefix snapshot created: %s\n", outPath)
			return nil
		}
		// fall through to internal if tar fails
	}

	debugf("System tar not available, falling back to internal tar+zstd for %s\n", outPath)

	outFile, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer outFile.Close()

	zw, err := zstd.NewWriter(outFile)
	if err != nil {
		return fmt.Errorf("failed to create zstd writer: %w", err)
	}
	defer zw.Close()

	tw := tar.NewWriter(zw)
	defer tw.Close()

	err = filepath.Walk(Prefix, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(Prefix, path)
		if err != nil {
			return err
		}

		var linkTarget string
		if info.Mode()&os.ModeSymlink != 0 {
			linkTarget, err = os.Readlink(path)
			if err != nil {
				return fmt.Errorf("readlink %s: %w", path, err)
			}
		}

		hdr, err := tar.FileInfoHeader(info, linkTarget)
		if err != nil {
			return err
		}

		if rel == "." {
			hdr.Name = "./"
			hdr.Mode = 0o755
		} else {
			hdr.Name = rel
		}

		// Snapshots must be portably root-owned.
		hdr.Uid, hdr.Gid = 0, 0
		hdr.Uname, hdr.Gname = "root", "root"

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}

		if rel == "." {
			return nil
		}

		if info.Mode().IsRegular() {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			if _, err := io.Copy(tw, f); err != nil {
				f.Close()
				return err
			}
			f.Close()
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to add files to snapshot: %w", err)
	}

	colArrow.Print("-> ")
	colSuccess.Printf("Prefix snapshot created: %s\n", outPath)
	return nil
}

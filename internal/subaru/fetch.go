package subaru

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

func newHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}

	// Increase TLS handshake timeout to handle slow upstream hosts.
	// Default is 10s, we increase it to 30s.
	transport.TLSHandshakeTimeout = 30 * time.Second

	return &http.Client{
		Transport: transport,
		Timeout:   300 * time.Second, // 5 min total timeout for large downloads
	}
}

func stderrIsTTY() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}

// fetchArchive ensures pkg's archive exists in the source cache, downloading
// it when absent. A pre-existing file is treated as a cache hit and never
// re-validated; a corrupt cached file must be removed by the operator.
func fetchArchive(ctx context.Context, pkg Package, cfg *Config) error {
	if err := os.MkdirAll(CacheStore, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory %s: %w", CacheStore, err)
	}
	absPath := filepath.Join(CacheStore, filepath.Base(pkg.Archive))

	if pathExists(absPath) {
		debugf("Already in cache: %s\n", absPath)
		return nil
	}

	lockPath := absPath + ".lock"

	// Serialize concurrent orchestrator invocations against the same cache.
	lFile, err := os.Create(lockPath)
	if err != nil {
		return fmt.Errorf("failed to create lock file: %w", err)
	}
	defer lFile.Close()

	if err := unix.Flock(int(lFile.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("failed to acquire lock for download: %w", err)
	}
	defer unix.Flock(int(lFile.Fd()), unix.LOCK_UN)

	// DOUBLE CHECK: another process may have finished the download while we
	// were waiting for the lock.
	if pathExists(absPath) {
		debugf("File %s appeared after acquiring lock, skipping download.\n", absPath)
		_ = os.Remove(lockPath)
		return nil
	}

	defer func() {
		if pathExists(absPath) {
			_ = os.Remove(lockPath)
		}
	}()

	colArrow.Print("-> ")
	colSuccess.Printf("Fetching source: %s\n", filepath.Base(pkg.Archive))
	debugf("Downloading %s -> %s\n", pkg.URL, absPath)

	var dlErr error
	if strings.HasPrefix(pkg.URL, "s3://") {
		dlErr = downloadS3(ctx, pkg.URL, absPath, cfg)
	} else {
		dlErr = downloadFile(ctx, pkg.URL, absPath)
	}
	if dlErr != nil {
		// Clean up partial file on failure to prevent a corrupt cache.
		_ = os.Remove(absPath)
		return &FetchError{URL: pkg.URL, Err: dlErr}
	}
	return nil
}

// downloadFile retrieves url into absPath, preferring system download tools
// and falling back to the native Go HTTP client.
func downloadFile(ctx context.Context, url, absPath string) error {
	// --- Primary choice: curl ---
	if _, err := exec.LookPath("curl"); err == nil {
		curlArgs := []string{"-L", "--fail", "-o", absPath}
		if stderrIsTTY() {
			curlArgs = append(curlArgs, "-#")
		} else {
			curlArgs = append(curlArgs, "-sS")
		}
		curlArgs = append(curlArgs, url)
		cmd := exec.CommandContext(ctx, "curl", curlArgs...)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err == nil {
			debugf("Download successful with curl.\n")
			return nil
		}
		debugf("curl failed, falling back to wget\n")
	} else {
		debugf("curl not found, trying wget\n")
	}

	// --- Fallback 1: wget ---
	if _, err := exec.LookPath("wget"); err == nil {
		cmd := exec.CommandContext(ctx, "wget", "-nv", "-O", absPath, url)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err == nil {
			debugf("Download successful with wget.\n")
			return nil
		}
		debugf("wget failed, falling back to native Go HTTP client\n")
	} else {
		debugf("wget not found, using native Go HTTP client\n")
	}

	// --- Fallback 2: native Go HTTP client ---
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	resp, err := newHTTPClient().Do(req)
	if err != nil {
		return fmt.Errorf("native http get failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status: %s", resp.Status)
	}

	out, err := os.Create(absPath)
	if err != nil {
		return fmt.Errorf("failed to create destination file %s: %w", absPath, err)
	}
	defer out.Close()

	var dst io.Writer = out
	if stderrIsTTY() {
		bar := progressbar.DefaultBytes(resp.ContentLength, filepath.Base(absPath))
		dst = io.MultiWriter(out, bar)
	}

	if _, err := io.Copy(dst, resp.Body); err != nil {
		return fmt.Errorf("failed to write to destination file: %w", err)
	}

	debugf("Download successful with native Go HTTP client.\n")
	return nil
}

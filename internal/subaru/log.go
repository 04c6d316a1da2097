package subaru

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ulikunitz/xz"
)

// openBuildLog creates the plain-text build log for one package. The caller
// closes it; compressLog turns it into a .xz afterwards.
func openBuildLog(pkg Package) (*os.File, error) {
	if err := os.MkdirAll(LogsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}
	path := filepath.Join(LogsDir, fmt.Sprintf("%s-%s.log", pkg.Name, pkg.Version))
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create build log %s: %w", path, err)
	}
	return f, nil
}

// compressLog replaces path with path.xz. Log compression is best-effort
// housekeeping; failures leave the plain log behind.
func compressLog(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dest, err := os.Create(path + ".xz")
	if err != nil {
		return err
	}
	defer dest.Close()

	xzWriter, err := xz.NewWriter(dest)
	if err != nil {
		return err
	}

	if _, err := io.Copy(xzWriter, src); err != nil {
		xzWriter.Close()
		return err
	}
	if err := xzWriter.Close(); err != nil {
		return err
	}
	return os.Remove(path)
}

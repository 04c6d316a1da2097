package subaru

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RunOptions carries the per-run orchestrator switches.
type RunOptions struct {
	Force bool // rebuild even when the completion marker exists
}

// RunTable processes descriptors strictly in table order. Order encodes the
// author's manually-resolved dependency sequence: each package's install
// lands under the shared prefix, where every later package's compiler and
// linker search paths pick it up. Any failure aborts the whole run.
func RunTable(pkgs []Package, cfg *Config, opts RunOptions) error {
	for _, pkg := range pkgs {
		// An unknown build method must fail before this package touches
		// the filesystem at all.
		if !validMethod(pkg.Method) {
			return &UnknownMethodError{Package: pkg.Name, Method: pkg.Method}
		}

		expanded := pkg.expanded()

		if expanded.Marker != "" && pathExists(expanded.Marker) {
			if !opts.Force {
				colArrow.Print("-> ")
				colSuccess.Printf("%s %s already built (%s), skipping\n", pkg.Name, pkg.Version, expanded.Marker)
				continue
			}
			colArrow.Print("-> ")
			colWarn.Printf("%s %s: marker present, rebuilding as requested\n", pkg.Name, pkg.Version)
		}

		if err := buildOne(expanded, cfg); err != nil {
			return err
		}

		colArrow.Print("-> ")
		colSuccess.Printf("%s %s built and installed\n", pkg.Name, pkg.Version)
	}

	verifyArtifacts(pkgs)
	return nil
}

// buildOne drives a single descriptor through the full pipeline:
// fetch -> extract -> resolve -> pre-hook -> strategy -> post-hook.
func buildOne(pkg Package, cfg *Config) error {
	ctx := BuildExec.Context

	if err := fetchArchive(ctx, pkg, cfg); err != nil {
		return err
	}

	archivePath := filepath.Join(CacheStore, filepath.Base(pkg.Archive))
	if err := extractArchive(archivePath, BuildRoot); err != nil {
		return err
	}

	srcDir, err := resolveSourceDir(pkg, archivePath, BuildRoot)
	if err != nil {
		return err
	}
	debugf("Source directory for %s: %s\n", pkg.Name, srcDir)

	env := buildEnv(cfg)

	logFile, err := openBuildLog(pkg)
	if err != nil {
		colWarn.Printf("could not open build log for %s: %v\n", pkg.Name, err)
		logFile = nil
	}
	var logw io.Writer
	logPath := ""
	if logFile != nil {
		logw = logFile
		logPath = logFile.Name()
	}
	closeLog := func() {
		if logFile != nil {
			logFile.Close()
			logFile = nil
		}
	}
	defer closeLog()

	if pkg.PreHook != "" {
		if err := runStep(pkg, "pre-hook", srcDir, pkg.PreHook, env, logw); err != nil {
			return err
		}
	}

	if err := runStrategy(pkg, srcDir, env, logw); err != nil {
		return err
	}

	if pkg.PostHook != "" {
		if err := runStep(pkg, "post-hook", srcDir, pkg.PostHook, env, logw); err != nil {
			return err
		}
	}

	// Receipt writing is the one phase that must not be torn by Ctrl+C.
	isCriticalAtomic.Store(1)
	if err := writeReceipt(pkg); err != nil {
		isCriticalAtomic.Store(0)
		return err
	}
	isCriticalAtomic.Store(0)

	closeLog()
	if logPath != "" {
		if err := compressLog(logPath); err != nil {
			debugf("log compression failed for %s: %v\n", logPath, err)
		}
	}
	return nil
}

// descriptorHash fingerprints the fields that affect a build, so receipts
// record what configuration produced the installed artifacts.
func descriptorHash(pkg Package) string {
	return hashString(strings.Join([]string{
		pkg.Name, pkg.Version, pkg.Archive, pkg.URL, pkg.Method, pkg.Args, pkg.PreHook, pkg.PostHook,
	}, "|"))
}

// writeReceipt records a successful build under the prefix db directory.
// Receipts are informational (they power 'subaru list'); the skip check
// keys on the completion marker alone.
func writeReceipt(pkg Package) error {
	if err := os.MkdirAll(ReceiptDir, 0o755); err != nil {
		return fmt.Errorf("failed to create receipt directory: %w", err)
	}
	content := fmt.Sprintf("version: %s\ndescriptor: %s\nbuilt: %s\n",
		pkg.Version, descriptorHash(pkg), time.Now().Format(time.RFC3339))
	path := filepath.Join(ReceiptDir, pkg.Name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write receipt for %s: %w", pkg.Name, err)
	}
	return nil
}

// verifyArtifacts is the post-run diagnostic pass: it reports expected
// markers that are still missing but never fails the run over them.
func verifyArtifacts(pkgs []Package) {
	var missing []string
	for _, pkg := range pkgs {
		expanded := pkg.expanded()
		if expanded.Marker == "" {
			continue
		}
		if !pathExists(expanded.Marker) {
			missing = append(missing, fmt.Sprintf("%s (%s)", pkg.Name, expanded.Marker))
		}
	}
	if len(missing) == 0 {
		colArrow.Print("-> ")
		colSuccess.Println("All expected artifacts present")
		return
	}
	colWarn.Println("Expected artifacts missing after run:")
	for _, m := range missing {
		colWarn.Printf("  %s\n", m)
	}
}

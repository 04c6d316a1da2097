package subaru

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// buildEnv assembles the environment every build tool runs with. The shared
// prefix is injected into the compiler, linker and pkg-config search paths
// so each package sees everything its predecessors installed. Conflicting
// variables from the process environment are filtered first, keeping runs
// reproducible regardless of the caller's shell.
func buildEnv(cfg *Config) []string {
	drop := []string{"CFLAGS=", "CXXFLAGS=", "CPPFLAGS=", "LDFLAGS=", "PKG_CONFIG_PATH=", "MAKEFLAGS="}

	var env []string
	pathVal := ""
	for _, e := range os.Environ() {
		skip := false
		for _, prefix := range drop {
			if strings.HasPrefix(e, prefix) {
				skip = true
				break
			}
		}
		if skip {
			continue
		}
		if strings.HasPrefix(e, "PATH=") {
			pathVal = strings.TrimPrefix(e, "PATH=")
			continue
		}
		env = append(env, e)
	}

	defaults := map[string]string{
		"PKG_CONFIG_PATH": filepath.Join(Prefix, "lib", "pkgconfig") + ":" + filepath.Join(Prefix, "share", "pkgconfig"),
		"CPPFLAGS":        "-I" + filepath.Join(Prefix, "include"),
		"LDFLAGS":         "-L" + filepath.Join(Prefix, "lib"),
		"LD_LIBRARY_PATH": filepath.Join(Prefix, "lib"),
		"MAKEFLAGS":       fmt.Sprintf("-j%d", JobCount),
	}
	if v := cfg.Values["CFLAGS"]; v != "" {
		defaults["CFLAGS"] = v
	}
	if v := cfg.Values["CXXFLAGS"]; v != "" {
		defaults["CXXFLAGS"] = v
	}

	for k, v := range defaults {
		env = append(env, k+"="+v)
	}

	// Tools installed by earlier packages must win over system ones. An
	// empty inherited PATH must not leave a trailing colon (POSIX reads
	// that as "current directory").
	pathEntry := filepath.Join(Prefix, "bin")
	if pathVal != "" {
		pathEntry += ":" + pathVal
	}
	env = append(env, "PATH="+pathEntry)
	return env
}

// runStep executes one shell-level build step inside dir. Output is teed to
// the package build log when one is open. A non-zero exit becomes a
// BuildError naming the package and stage.
func runStep(pkg Package, stage, dir, script string, env []string, logw io.Writer) error {
	if Verbose || Debug {
		fmt.Printf("[%s/%s] sh -c %q\n", pkg.Name, stage, script)
	}

	cmd := exec.Command("sh", "-c", script)
	cmd.Dir = dir
	cmd.Env = env
	if logw != nil {
		cmd.Stdout = io.MultiWriter(os.Stdout, logw)
		cmd.Stderr = io.MultiWriter(os.Stderr, logw)
	} else {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}

	if err := BuildExec.Run(cmd); err != nil {
		return &BuildError{Package: pkg.Name, Stage: stage, Err: err}
	}
	return nil
}

// runStrategy dispatches pkg to the build procedure named by its method and
// leaves the package's artifacts installed under the shared prefix.
func runStrategy(pkg Package, srcDir string, env []string, logw io.Writer) error {
	switch pkg.Method {
	case methodAutotools:
		// Bootstrap when the tarball ships no generated configure script
		// (git snapshots, GitHub tag archives).
		if !pathExists(filepath.Join(srcDir, "configure")) {
			if err := runStep(pkg, "bootstrap", srcDir, "autoreconf -fi", env, logw); err != nil {
				return err
			}
		}
		configure := fmt.Sprintf("./configure --prefix=%s --enable-shared --disable-static %s", Prefix, pkg.Args)
		if err := runStep(pkg, "configure", srcDir, configure, env, logw); err != nil {
			return err
		}
		if err := runStep(pkg, "build", srcDir, "make", env, logw); err != nil {
			return err
		}
		return runStep(pkg, "install", srcDir, "make install", env, logw)

	case methodConfigure:
		// No forced shared/static flags; some hand-written configure
		// scripts reject them.
		configure := fmt.Sprintf("./configure --prefix=%s %s", Prefix, pkg.Args)
		if err := runStep(pkg, "configure", srcDir, configure, env, logw); err != nil {
			return err
		}
		if err := runStep(pkg, "build", srcDir, "make", env, logw); err != nil {
			return err
		}
		return runStep(pkg, "install", srcDir, "make install", env, logw)

	case methodMakePrefix:
		// Hand-written Makefiles with no configure step take the prefix as
		// a make variable at install time.
		if err := runStep(pkg, "build", srcDir, "make "+pkg.Args, env, logw); err != nil {
			return err
		}
		return runStep(pkg, "install", srcDir, fmt.Sprintf("make PREFIX=%s install", Prefix), env, logw)

	case methodCustom:
		if strings.TrimSpace(pkg.Args) == "" {
			return fmt.Errorf("package %s: %w", pkg.Name, ErrMissingCustomCommand)
		}
		return runStep(pkg, "custom", srcDir, pkg.Args, env, logw)
	}

	return &UnknownMethodError{Package: pkg.Name, Method: pkg.Method}
}

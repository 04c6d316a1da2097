package subaru

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
)

// Package is one descriptor row of the build table. Descriptors are
// immutable once parsed; template variables inside Marker, Args and the
// hooks stay unexpanded until the orchestrator processes the entry.
type Package struct {
	Name     string // identifier, also the default source dir stem
	Version  string // opaque version string
	Archive  string // expected local filename in the source cache
	URL      string // remote location (http/https/ftp or s3://bucket/key)
	Marker   string // path whose existence means "already built"
	Method   string // autotools | configure | make-with-prefix | custom
	Args     string // configure arguments, or the whole command for custom
	PreHook  string // optional shell command run in the source dir before the build
	PostHook string // optional shell command run in the source dir after the build
}

// Build methods the engine implements.
const (
	methodAutotools  = "autotools"
	methodConfigure  = "configure"
	methodMakePrefix = "make-with-prefix"
	methodCustom     = "custom"
)

func validMethod(m string) bool {
	switch m {
	case methodAutotools, methodConfigure, methodMakePrefix, methodCustom:
		return true
	}
	return false
}

// parseTable reads a pipe-delimited descriptor table:
//
//	# name|version|archive|url|marker|method|args[|prehook[|posthook]]
//	zlib|1.3.1|zlib-1.3.1.tar.gz|https://zlib.net/zlib-1.3.1.tar.gz|${PREFIX}/lib/libz.so|configure||
//
// Blank lines and '#' comments are skipped. The first seven fields are
// mandatory (though args may be empty); hooks are optional.
func parseTable(r io.Reader) ([]Package, error) {
	var pkgs []Package
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "|")
		if len(fields) < 7 {
			return nil, fmt.Errorf("table line %d: expected at least 7 fields, got %d", lineNo, len(fields))
		}
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		pkg := Package{
			Name:    fields[0],
			Version: fields[1],
			Archive: fields[2],
			URL:     fields[3],
			Marker:  fields[4],
			Method:  fields[5],
			Args:    fields[6],
		}
		if len(fields) >= 8 {
			pkg.PreHook = fields[7]
		}
		if len(fields) >= 9 {
			pkg.PostHook = fields[8]
		}
		if pkg.Name == "" || pkg.Version == "" {
			return nil, fmt.Errorf("table line %d: name and version are mandatory", lineNo)
		}
		if pkg.Archive == "" || pkg.URL == "" {
			return nil, fmt.Errorf("table line %d (%s): archive and url are mandatory", lineNo, pkg.Name)
		}
		pkgs = append(pkgs, pkg)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return pkgs, nil
}

// loadTable reads the descriptor table from path, or from the embedded
// bootstrap table when no path is configured.
func loadTable(path string) ([]Package, error) {
	if path == "" {
		data, err := embeddedAssets.ReadFile("assets/bootstrap.table")
		if err != nil {
			return nil, fmt.Errorf("failed to read embedded bootstrap table: %w", err)
		}
		debugf("Using embedded bootstrap table\n")
		return parseTable(bytes.NewReader(data))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not read descriptor table %s: %w", path, err)
	}
	defer f.Close()
	return parseTable(f)
}

// templateVars is the fixed, enumerated variable set descriptors may
// reference. Expansion is plain string substitution, never shell evaluation;
// unknown ${...} sequences pass through untouched.
func templateVars(pkg Package) *strings.Replacer {
	return strings.NewReplacer(
		"${PREFIX}", Prefix,
		"${JOBS}", fmt.Sprintf("%d", JobCount),
		"${CACHE}", CacheStore,
		"${NAME}", pkg.Name,
		"${VERSION}", pkg.Version,
	)
}

// expanded returns a copy of pkg with template variables substituted in the
// fields that accept them.
func (p Package) expanded() Package {
	rep := templateVars(p)
	p.Marker = rep.Replace(p.Marker)
	p.Args = rep.Replace(p.Args)
	p.PreHook = rep.Replace(p.PreHook)
	p.PostHook = rep.Replace(p.PostHook)
	return p
}

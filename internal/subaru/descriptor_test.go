package subaru

import (
	"strings"
	"testing"
)

func TestParseTable(t *testing.T) {
	input := `
# comment line

zlib|1.3.1|zlib-1.3.1.tar.gz|https://zlib.net/zlib-1.3.1.tar.gz|${PREFIX}/lib/libz.so|configure||
wget2|2.1.0|wget2-2.1.0.tar.gz|https://example.org/wget2-2.1.0.tar.gz|${PREFIX}/bin/wget2|autotools|--with-zlib|./bootstrap.sh|${PREFIX}/bin/wget2 --version
`
	pkgs, err := parseTable(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parseTable failed: %v", err)
	}
	if len(pkgs) != 2 {
		t.Fatalf("expected 2 packages, got %d", len(pkgs))
	}

	zlib := pkgs[0]
	if zlib.Name != "zlib" || zlib.Version != "1.3.1" {
		t.Errorf("unexpected first package: %+v", zlib)
	}
	if zlib.Method != "configure" || zlib.Args != "" {
		t.Errorf("unexpected method/args: %q %q", zlib.Method, zlib.Args)
	}
	if zlib.PreHook != "" || zlib.PostHook != "" {
		t.Errorf("zlib should have no hooks, got %q %q", zlib.PreHook, zlib.PostHook)
	}

	wget2 := pkgs[1]
	if wget2.PreHook != "./bootstrap.sh" {
		t.Errorf("expected pre-hook, got %q", wget2.PreHook)
	}
	if wget2.PostHook != "${PREFIX}/bin/wget2 --version" {
		t.Errorf("expected post-hook, got %q", wget2.PostHook)
	}
}

func TestParseTableRejectsShortLines(t *testing.T) {
	_, err := parseTable(strings.NewReader("zlib|1.3.1|zlib.tar.gz\n"))
	if err == nil {
		t.Fatal("expected error for line with too few fields")
	}
}

func TestParseTableRejectsMissingName(t *testing.T) {
	_, err := parseTable(strings.NewReader("|1.0|a.tar.gz|http://x|m|configure|\n"))
	if err == nil {
		t.Fatal("expected error for missing name")
	}
}

func TestValidMethod(t *testing.T) {
	for _, m := range []string{"autotools", "configure", "make-with-prefix", "custom"} {
		if !validMethod(m) {
			t.Errorf("method %q should be valid", m)
		}
	}
	for _, m := range []string{"", "cmake", "meson", "Autotools"} {
		if validMethod(m) {
			t.Errorf("method %q should be invalid", m)
		}
	}
}

func TestTemplateExpansion(t *testing.T) {
	setupTestDirs(t)
	JobCount = 8

	pkg := Package{
		Name:     "demo",
		Version:  "1.0",
		Marker:   "${PREFIX}/lib/libdemo.so",
		Args:     "--with-stuff=${PREFIX} --jobs=${JOBS} --cache=${CACHE}",
		PreHook:  "echo ${NAME}-${VERSION}",
		PostHook: "echo ${UNKNOWN}",
	}
	got := pkg.expanded()

	if got.Marker != Prefix+"/lib/libdemo.so" {
		t.Errorf("marker not expanded: %q", got.Marker)
	}
	if !strings.Contains(got.Args, "--with-stuff="+Prefix) {
		t.Errorf("prefix not expanded in args: %q", got.Args)
	}
	if !strings.Contains(got.Args, "--jobs=8") {
		t.Errorf("jobs not expanded in args: %q", got.Args)
	}
	if !strings.Contains(got.Args, "--cache="+CacheStore) {
		t.Errorf("cache not expanded in args: %q", got.Args)
	}
	if got.PreHook != "echo demo-1.0" {
		t.Errorf("name/version not expanded: %q", got.PreHook)
	}
	// Variables outside the enumerated set pass through untouched.
	if got.PostHook != "echo ${UNKNOWN}" {
		t.Errorf("unknown variable should be untouched: %q", got.PostHook)
	}
}

func TestLoadTableEmbedded(t *testing.T) {
	pkgs, err := loadTable("")
	if err != nil {
		t.Fatalf("loading embedded table failed: %v", err)
	}
	if len(pkgs) == 0 {
		t.Fatal("embedded table is empty")
	}
	for _, pkg := range pkgs {
		if !validMethod(pkg.Method) {
			t.Errorf("embedded table entry %s has invalid method %q", pkg.Name, pkg.Method)
		}
		if archiveFormat(pkg.Archive) == "" {
			t.Errorf("embedded table entry %s has unsupported archive %q", pkg.Name, pkg.Archive)
		}
	}
}

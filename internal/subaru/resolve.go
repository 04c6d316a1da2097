package subaru

import (
	"path/filepath"
)

// resolveSourceDir locates the directory produced by extracting archive into
// root. Source hosting conventions vary (official tarballs, GitHub tag
// archives, forks), so resolution falls through three tiers:
//
//  1. a directory literally named {name}-{version}
//  2. the top path segment of the archive's own file listing
//  3. glob matches derived from the package name, first directory wins
//
// Exhausting all tiers is fatal for the run.
func resolveSourceDir(pkg Package, archive, root string) (string, error) {
	// Tier 1: the conventional name, a single stat.
	fast := filepath.Join(root, pkg.Name+"-"+pkg.Version)
	if isDir(fast) {
		return fast, nil
	}

	// Tier 2: ask the archive what it unpacked to.
	if top, err := archiveTopDir(archive); err == nil && top != "" {
		cand := filepath.Join(root, top)
		if isDir(cand) {
			debugf("Resolved source dir from archive listing: %s\n", cand)
			return cand, nil
		}
	}

	// Tier 3: name-derived globs.
	patterns := []string{
		pkg.Name + "*",
		pkg.Name + "-" + pkg.Version + "*",
		"*" + pkg.Name + "*",
	}
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(root, pattern))
		if err != nil {
			continue
		}
		for _, match := range matches {
			if isDir(match) {
				debugf("Resolved source dir by glob %q: %s\n", pattern, match)
				return match, nil
			}
		}
	}

	return "", &SourceDirNotFoundError{Archive: filepath.Base(archive)}
}

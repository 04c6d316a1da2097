package subaru

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// listReceipts prints what has been built into the prefix, one line per
// package, from the receipt files the orchestrator writes.
func listReceipts(filter string) error {
	entries, err := os.ReadDir(ReceiptDir)
	if err != nil {
		if os.IsNotExist(err) {
			colInfo.Println("No packages built yet")
			return nil
		}
		return fmt.Errorf("could not read receipt directory %s: %w", ReceiptDir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if filter != "" && !strings.Contains(entry.Name(), filter) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	if len(names) == 0 {
		colInfo.Println("No packages built yet")
		return nil
	}

	for _, name := range names {
		version, built := readReceipt(filepath.Join(ReceiptDir, name))
		fmt.Printf("%-24s %-16s %s\n", name, version, built)
	}
	return nil
}

// readReceipt pulls the version and build time out of one receipt file.
func readReceipt(path string) (version, built string) {
	f, err := os.Open(path)
	if err != nil {
		return "?", "?"
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "version: "):
			version = strings.TrimPrefix(line, "version: ")
		case strings.HasPrefix(line, "built: "):
			built = strings.TrimPrefix(line, "built: ")
		}
	}
	if version == "" {
		version = "?"
	}
	if built == "" {
		built = "?"
	}
	return version, built
}

package subaru

import (
	"bufio"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// Config struct
type Config struct {
	Values map[string]string
}

// Load /etc/subaru.conf and apply defaults
func loadConfig(path string) (*Config, error) {
	cfg := &Config{Values: make(map[string]string)}

	// Attempt to read the file
	file, err := os.Open(path)
	if err == nil {
		defer file.Close()
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}
			key := strings.TrimSpace(parts[0])
			val := strings.TrimSpace(parts[1])
			val = strings.Trim(val, `"'`)
			cfg.Values[key] = val
		}
		if err := scanner.Err(); err != nil {
			return cfg, err
		}
	}

	// Merge SUBARU_* env overrides
	mergeEnvOverrides(cfg)

	return cfg, nil
}

// Merge SUBARU_* env overrides
func mergeEnvOverrides(cfg *Config) {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, "SUBARU_") {
			parts := strings.SplitN(env, "=", 2)
			if len(parts) == 2 {
				cfg.Values[parts[0]] = parts[1]
			}
		}
	}

	// Compiler flags are consumed from the plain environment as well, without
	// overwriting explicit config file values.
	for _, key := range []string{"CFLAGS", "CXXFLAGS"} {
		if v := os.Getenv(key); v != "" {
			if _, exists := cfg.Values[key]; !exists {
				cfg.Values[key] = v
			}
		}
	}
}

func initConfig(cfg *Config) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "/tmp"
	}

	Prefix = cfg.Values["SUBARU_PREFIX"]
	if Prefix == "" {
		Prefix = filepath.Join(home, ".local", "subaru")
	}

	CacheDir = cfg.Values["SUBARU_CACHE_DIR"]
	if CacheDir == "" {
		CacheDir = filepath.Join(home, ".cache", "subaru")
	}

	Debug = false
	if cfg.Values["SUBARU_DEBUG"] == "1" {
		Debug = true
	}

	JobCount = runtime.NumCPU()
	if v := cfg.Values["SUBARU_JOBS"]; v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			JobCount = n
		}
	}

	TablePath = cfg.Values["SUBARU_TABLE"]

	CacheStore = filepath.Join(CacheDir, "sources")
	BuildRoot = filepath.Join(CacheDir, "build")
	LogsDir = filepath.Join(CacheDir, "logs")
	ReceiptDir = filepath.Join(Prefix, "var", "db", "subaru")
}

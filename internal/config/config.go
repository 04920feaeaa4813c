package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"go.yaml.in/yaml/v3"
)

// FileName is the config file looked up in the working and home directories.
const FileName = ".mongolens.yml"

// Config holds all mongolens configuration.
type Config struct {
	URI         string     `yaml:"uri"`
	Databases   []string   `yaml:"databases"`
	Collections []string   `yaml:"collections"`
	Sampling    Sampling   `yaml:"sampling"`
	Thresholds  Thresholds `yaml:"thresholds"`
	Output      Output     `yaml:"output"`
	Log         Log        `yaml:"log"`
}

// Sampling bounds how many documents are read per collection.
type Sampling struct {
	Size    int64  `yaml:"size"`
	MaxScan int64  `yaml:"max_scan"`
	Seed    uint64 `yaml:"seed"`
	Timeout string `yaml:"timeout"` // parsed as time.Duration
}

// Thresholds tune the schema heuristics. Zero values keep the defaults.
type Thresholds struct {
	LargeDocumentBytes          int     `yaml:"large_document_bytes"`
	MaxNestingDepth             int     `yaml:"max_nesting_depth"`
	UnboundedArrayMax           int     `yaml:"unbounded_array_max"`
	UnboundedArrayP95           int     `yaml:"unbounded_array_p95"`
	MinPresence                 int     `yaml:"min_presence"`
	MinPresenceRatio            float64 `yaml:"min_presence_ratio"`
	HighCardinalityMinDistinct  int     `yaml:"high_cardinality_min_distinct"`
	HighCardinalityRatio        float64 `yaml:"high_cardinality_ratio"`
	LowCardinalityMaxDistinct   int     `yaml:"low_cardinality_max_distinct"`
	LowCardinalityPresenceRatio float64 `yaml:"low_cardinality_presence_ratio"`
}

// Output controls where and how reports are written.
type Output struct {
	Dir    string `yaml:"dir"`
	Format string `yaml:"format"`
	Lang   string `yaml:"lang"`
}

// Log configures the slog handler.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Sampling: Sampling{
			Size:    200,
			MaxScan: 5000,
			Seed:    42,
			Timeout: "10s",
		},
		Output: Output{
			Dir:    "report",
			Format: "text",
			Lang:   "en",
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads .mongolens.yml from dir, falling back to the home directory.
// Returns DefaultConfig if no file is found.
func Load(dir string) (Config, error) {
	paths := []string{filepath.Join(dir, FileName)}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, FileName))
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue // file not found, try next
		}
		return Parse(data, path)
	}
	return DefaultConfig(), nil
}

// LoadFile reads one explicit config file.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultConfig(), fmt.Errorf("read config: %w", err)
	}
	return Parse(data, path)
}

// Parse decodes YAML over the defaults. name is only used in errors.
func Parse(data []byte, name string) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parse %s: %w", name, err)
	}
	return cfg, nil
}

// TimeoutDuration parses Sampling.Timeout; 10s when empty or invalid.
func (c *Config) TimeoutDuration() time.Duration {
	const fallback = 10 * time.Second
	if c.Sampling.Timeout == "" {
		return fallback
	}
	d, err := time.ParseDuration(c.Sampling.Timeout)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// LoadEnv loads KEY=VALUE pairs into the process environment without
// overriding variables that are already set. An explicit path must exist;
// otherwise ENV_FILE is consulted and finally ./.env, both optional.
// It returns the file that was loaded, or "" when none was.
func LoadEnv(explicit string) (string, error) {
	if explicit != "" {
		if err := godotenv.Load(explicit); err != nil {
			return "", fmt.Errorf("load env file %s: %w", explicit, err)
		}
		return explicit, nil
	}

	path := os.Getenv("ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("load env file %s: %w", path, err)
	}
	return path, nil
}

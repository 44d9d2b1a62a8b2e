package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "COMPANIOND_"

// Defaults applied by WithDefaults.
const (
	DefaultAddr           = ":8080"
	DefaultModelsDir      = "~/models/llm"
	DefaultReservedTokens = 256
	DefaultLogLevel       = "info"
	DefaultMaxBodyBytes   = 1 << 20
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by WithDefaults.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	// Catalog is an optional models file (.yaml/.yml/.json/.toml).
	Catalog      string `json:"catalog" yaml:"catalog" toml:"catalog"`
	DefaultModel string `json:"default_model" yaml:"default_model" toml:"default_model"`
	// Runtime is "llama" or "server"; empty picks what the binary supports.
	Runtime   string `json:"runtime" yaml:"runtime" toml:"runtime"`
	LlamaBin  string `json:"llama_bin" yaml:"llama_bin" toml:"llama_bin"`
	ServerURL string `json:"server_url" yaml:"server_url" toml:"server_url"`
	Threads   int    `json:"threads" yaml:"threads" toml:"threads"`

	ReservedTokens int `json:"reserved_tokens" yaml:"reserved_tokens" toml:"reserved_tokens"`

	LogLevel     string   `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFile      string   `json:"log_file" yaml:"log_file" toml:"log_file"`
	CORSOrigins  []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	MaxBodyBytes int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects values no default can repair.
func (c Config) Validate() error {
	switch c.Runtime {
	case "", "llama", "server":
	default:
		return fmt.Errorf("config: runtime must be llama or server, got %q", c.Runtime)
	}
	if c.Threads < 0 {
		return fmt.Errorf("config: threads must be >= 0")
	}
	if c.ReservedTokens < 0 {
		return fmt.Errorf("config: reserved_tokens must be >= 0")
	}
	if c.MaxBodyBytes < 0 {
		return fmt.Errorf("config: max_body_bytes must be >= 0")
	}
	return nil
}

// WithDefaults fills unspecified fields.
func (c Config) WithDefaults() Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.ModelsDir == "" {
		c.ModelsDir = DefaultModelsDir
	}
	if c.ReservedTokens == 0 {
		c.ReservedTokens = DefaultReservedTokens
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return c
}

// ApplyEnv overlays COMPANIOND_* variables found through lookup (os.LookupEnv
// in production). Malformed numbers are reported, not ignored.
func (c Config) ApplyEnv(lookup func(string) (string, bool)) (Config, error) {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	str("ADDR", &c.Addr)
	str("MODELS_DIR", &c.ModelsDir)
	str("CATALOG", &c.Catalog)
	str("DEFAULT_MODEL", &c.DefaultModel)
	str("RUNTIME", &c.Runtime)
	str("LLAMA_BIN", &c.LlamaBin)
	str("SERVER_URL", &c.ServerURL)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FILE", &c.LogFile)
	if v, ok := lookup(EnvPrefix + "CORS_ORIGINS"); ok && v != "" {
		c.CORSOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.CORSOrigins = append(c.CORSOrigins, o)
			}
		}
	}
	for key, dst := range map[string]*int{"THREADS": &c.Threads, "RESERVED_TOKENS": &c.ReservedTokens} {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return c, fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = n
		}
	}
	if v, ok := lookup(EnvPrefix + "MAX_BODY_BYTES"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return c, fmt.Errorf("%sMAX_BODY_BYTES: %w", EnvPrefix, err)
		}
		c.MaxBodyBytes = n
	}
	return c, c.Validate()
}

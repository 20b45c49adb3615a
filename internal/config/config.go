// Package config loads remotefn project configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/phobologic/remotefn/internal/stableid"
)

// FileName is the project configuration file written by `remotefn init`.
const FileName = ".remotefn.yaml"

// envPrefix prefixes every environment override.
const envPrefix = "REMOTEFN_"

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid config")

// Config is a project's remotefn configuration. Relative directories are
// resolved against Root.
type Config struct {
	Root string `yaml:"-"`

	// SourceDir is scanned for component documents by the sweep.
	SourceDir string `yaml:"source_dir"`
	// OutputDir holds one generated endpoint directory per tagged function.
	OutputDir string `yaml:"output_dir"`
	RouteBase string `yaml:"route_base"`
	// Prefix marks a function for extraction.
	Prefix     string   `yaml:"prefix"`
	IDLength   int      `yaml:"id_length"`
	Extensions []string `yaml:"extensions"`
	// Exclude lists directory names skipped by discovery and by the
	// per-document transform.
	Exclude []string `yaml:"exclude,omitempty"`
	// EmitOnTransform also writes a document's endpoints when the host
	// transforms it, keeping endpoints current between sweeps.
	EmitOnTransform bool `yaml:"emit_on_transform"`
}

// Default returns the configuration of a standard SvelteKit project.
func Default() *Config {
	return &Config{
		Root:            ".",
		SourceDir:       "src",
		OutputDir:       "src/routes/api",
		RouteBase:       "/api",
		Prefix:          "server_",
		IDLength:        stableid.DefaultLength,
		Extensions:      []string{".svelte"},
		Exclude:         []string{"node_modules", ".svelte-kit", "build", "dist"},
		EmitOnTransform: true,
	}
}

// Load reads the configuration of the project at root. path names the config
// file; when empty, .remotefn.yaml and then .remotefn.yml under root are
// tried, and a missing file yields the defaults. Values from a .env file in
// root and REMOTEFN_* environment variables override the file, with the
// process environment taking precedence over .env.
func Load(root, path string) (*Config, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root %s: %w", root, err)
	}

	cfg := Default()
	if path == "" {
		path = find(abs)
	} else if !filepath.IsAbs(path) {
		path = filepath.Join(abs, path)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	cfg.Root = abs

	dotenv, err := godotenv.Read(filepath.Join(abs, ".env"))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading .env: %w", err)
	}
	if err := cfg.applyEnv(func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return dotenv[key]
	}); err != nil {
		return nil, err
	}
	return cfg, nil
}

func find(root string) string {
	for _, name := range []string{FileName, ".remotefn.yml"} {
		p := filepath.Join(root, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func (c *Config) applyEnv(getenv func(string) string) error {
	strs := map[string]*string{
		"SOURCE_DIR": &c.SourceDir,
		"OUTPUT_DIR": &c.OutputDir,
		"ROUTE_BASE": &c.RouteBase,
		"PREFIX":     &c.Prefix,
	}
	for key, dst := range strs {
		if v := getenv(envPrefix + key); v != "" {
			*dst = v
		}
	}
	if v := getenv(envPrefix + "ID_LENGTH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %sID_LENGTH=%q", ErrInvalid, envPrefix, v)
		}
		c.IDLength = n
	}
	if v := getenv(envPrefix + "EMIT_ON_TRANSFORM"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %sEMIT_ON_TRANSFORM=%q", ErrInvalid, envPrefix, v)
		}
		c.EmitOnTransform = b
	}
	return nil
}

// Validate checks the configuration for values the engine cannot work with.
func (c *Config) Validate() error {
	if c.Prefix == "" {
		return fmt.Errorf("%w: prefix must not be empty", ErrInvalid)
	}
	if c.IDLength < stableid.MinLength || c.IDLength > stableid.MaxLength {
		return fmt.Errorf("%w: id_length %d outside %d..%d", ErrInvalid, c.IDLength, stableid.MinLength, stableid.MaxLength)
	}
	if len(c.Extensions) == 0 {
		return fmt.Errorf("%w: no extensions", ErrInvalid)
	}
	if !strings.HasPrefix(c.RouteBase, "/") {
		return fmt.Errorf("%w: route_base %q must start with /", ErrInvalid, c.RouteBase)
	}
	rel, err := filepath.Rel(c.Root, c.OutputPath())
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: output_dir %q must be inside the project root", ErrInvalid, c.OutputDir)
	}
	return nil
}

// SourcePath returns the absolute source directory.
func (c *Config) SourcePath() string { return c.resolve(c.SourceDir) }

// OutputPath returns the absolute endpoint output directory.
func (c *Config) OutputPath() string { return c.resolve(c.OutputDir) }

func (c *Config) resolve(dir string) string {
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Join(c.Root, dir)
}

// Supported reports whether path has one of the configured extensions.
func (c *Config) Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range c.Extensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

// Excluded reports whether any directory of path is an excluded directory.
func (c *Config) Excluded(path string) bool {
	dir := filepath.ToSlash(filepath.Dir(path))
	for _, part := range strings.Split(dir, "/") {
		for _, ex := range c.Exclude {
			if part == ex {
				return true
			}
		}
	}
	return false
}

// Save writes the configuration to root/.remotefn.yaml.
func Save(root string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(filepath.Join(root, FileName), data, 0o644)
}

// Package config loads the site configuration: a YAML file with environment
// expansion, .env support, defaults matching the conventional flat-site
// layout, and validation of the values the content pipeline consumes.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/flatsite/internal/errors"
	"git.home.luguber.info/inful/flatsite/internal/textenc"
)

// CollectionConfig describes one source tree of pages.
type CollectionConfig struct {
	Root       string   `yaml:"root"`
	Extensions []string `yaml:"extensions"`
	Excludes   []string `yaml:"excludes,omitempty"`
}

// HistoryConfig controls the freeze history store.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Config represents the application configuration.
type Config struct {
	Debug   bool `yaml:"debug"`
	Verbose bool `yaml:"verbose"`
	Port    int  `yaml:"port"`

	// Pruning drops cache entries for vanished files before each reload.
	// The legacy "prunning" spelling is still accepted.
	Pruning       *bool `yaml:"pruning"`
	LegacyPruning *bool `yaml:"prunning"`

	// Encoding names the text encoding of source files.
	Encoding string `yaml:"encoding"`

	// Output is the freeze destination directory.
	Output string `yaml:"output"`
	// RemoveExtra deletes output files the freezer did not write this run.
	RemoveExtra *bool `yaml:"remove_extra"`

	TemplatesDir string `yaml:"templates"`
	StaticDir    string `yaml:"static"`

	Pages CollectionConfig `yaml:"pages"`
	Posts CollectionConfig `yaml:"posts"`

	Metrics bool          `yaml:"metrics"`
	History HistoryConfig `yaml:"history"`
}

// Load reads configPath, expands environment variables in it and applies
// defaults. A missing file is an error; use Default for a file-less setup.
func Load(configPath string) (*Config, error) {
	// Load .env if present; existing process env wins.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Note: .env file couldn't be loaded: %v\n", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, errors.ConfigNotFound(configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content.
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no config file exists: the
// conventional layout with pages at the site root and posts under post/.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8000
	}
	if c.Output == "" {
		c.Output = "build"
	}
	if c.Encoding == "" {
		c.Encoding = textenc.DefaultEncoding
	}
	if c.TemplatesDir == "" {
		c.TemplatesDir = "templates"
	}
	if c.StaticDir == "" {
		c.StaticDir = "static"
	}

	if c.Posts.Root == "" {
		c.Posts.Root = "post"
	}
	if len(c.Posts.Extensions) == 0 {
		c.Posts.Extensions = []string{".markdown", ".md"}
	}

	if c.Pages.Root == "" {
		c.Pages.Root = "."
	}
	if len(c.Pages.Extensions) == 0 {
		c.Pages.Extensions = []string{".html", ".xml"}
	}
	if len(c.Pages.Excludes) == 0 {
		c.Pages.Excludes = []string{
			c.Posts.Root + "/",
			c.StaticDir + "/",
			c.TemplatesDir + "/",
			c.Output + "/",
		}
	}

	if c.History.Path == "" {
		c.History.Path = "flatsite.db"
	}
}

// PruningEnabled resolves the pruning flag, honoring the legacy spelling.
// Defaults to true.
func (c *Config) PruningEnabled() bool {
	if c.Pruning != nil {
		return *c.Pruning
	}
	if c.LegacyPruning != nil {
		return *c.LegacyPruning
	}
	return true
}

// RemoveExtraEnabled resolves the freezer's remove-extra flag. Defaults to true.
func (c *Config) RemoveExtraEnabled() bool {
	if c.RemoveExtra != nil {
		return *c.RemoveExtra
	}
	return true
}

// Validate checks the values the pipeline consumes.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return errors.ValidationFailed("port", fmt.Sprintf("must be in [1, 65535], got %d", c.Port))
	}
	if _, err := textenc.Lookup(c.Encoding); err != nil {
		return err
	}
	for _, cc := range []struct {
		name string
		cfg  CollectionConfig
	}{{"pages", c.Pages}, {"posts", c.Posts}} {
		if cc.cfg.Root == "" {
			return errors.ValidationFailed(cc.name+".root", "must not be empty")
		}
		for _, ext := range cc.cfg.Extensions {
			if len(ext) < 2 || ext[0] != '.' {
				return errors.ValidationFailed(cc.name+".extensions", "extensions must be dot-prefixed: "+ext)
			}
		}
	}
	return nil
}

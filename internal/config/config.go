// Package config loads and validates the project configuration from
// .symdex.toml. Every field has an explicit default and is validated once
// here; nothing downstream re-checks configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	sderr "github.com/symdex/symdex/internal/errors"
)

// ConfigFileName is the per-project configuration file symdex looks for.
const ConfigFileName = ".symdex.toml"

// Config is the validated configuration for one indexing run.
type Config struct {
	Project  Project  `toml:"project"`
	Paths    Paths    `toml:"paths"`
	Includes Includes `toml:"includes"`
	Ignore   Ignore   `toml:"ignore"`
	Debug    Debug    `toml:"debug"`

	// RootDir is the directory the config file was loaded from. Relative
	// paths in the config resolve against it.
	RootDir string `toml:"-"`
}

type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
	// NumThreads is the indexing worker count; 0 means all available
	// hardware parallelism.
	NumThreads int `toml:"num_threads"`
}

type Paths struct {
	// CompileCommands is the path to the compile_commands.json manifest.
	CompileCommands string `toml:"compile_commands"`
	// Output is where the index snapshot is written.
	Output string `toml:"output"`
}

type Includes struct {
	// UseSystemIncludes adds the system compiler's builtin include search
	// paths to every work item's argument list.
	UseSystemIncludes bool `toml:"use_system_includes"`
	// Paths are additional include directories, in order.
	Paths []string `toml:"paths"`
}

type Ignore struct {
	// Paths are substrings (or glob patterns) of file paths to exclude
	// from indexing.
	Paths []string `toml:"paths"`
	// IgnorePrivateMembers drops private-access observations.
	IgnorePrivateMembers bool `toml:"ignore_private_members"`
}

type Debug struct {
	// LimitNumIndexedFiles truncates the compilation plan during bring-up
	// on huge codebases. 0 means unlimited.
	LimitNumIndexedFiles int `toml:"limit_num_indexed_files"`
}

// Default returns the configuration defaults applied before the file is
// decoded over them.
func Default() *Config {
	return &Config{
		Project: Project{NumThreads: 0},
		Paths:   Paths{Output: filepath.Join("docs", "index.json")},
		Includes: Includes{
			UseSystemIncludes: true,
		},
	}
}

// Load reads and validates .symdex.toml from rootDir.
func Load(rootDir string) (*Config, error) {
	path := filepath.Join(rootDir, ConfigFileName)
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, sderr.NewConfigError("file", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(content, cfg); err != nil {
		return nil, sderr.NewConfigError("file", path, err)
	}

	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		absRoot = rootDir
	}
	cfg.RootDir = absRoot
	cfg.resolvePaths()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolvePaths anchors relative config paths at the config file's directory.
func (c *Config) resolvePaths() {
	if c.Paths.CompileCommands != "" && !filepath.IsAbs(c.Paths.CompileCommands) {
		c.Paths.CompileCommands = filepath.Join(c.RootDir, c.Paths.CompileCommands)
	}
	if c.Paths.Output != "" && !filepath.IsAbs(c.Paths.Output) {
		c.Paths.Output = filepath.Join(c.RootDir, c.Paths.Output)
	}
}

// Validate checks every field once at load time. A validation failure is
// fatal: the run aborts before any indexing work begins.
func (c *Config) Validate() error {
	if c.Project.Name == "" {
		return sderr.NewConfigError("project.name", "", fmt.Errorf("project name must not be empty"))
	}
	if c.Project.NumThreads < 0 {
		return sderr.NewConfigError("project.num_threads",
			fmt.Sprintf("%d", c.Project.NumThreads),
			fmt.Errorf("worker count must be zero (all cores) or positive"))
	}
	if c.Debug.LimitNumIndexedFiles < 0 {
		return sderr.NewConfigError("debug.limit_num_indexed_files",
			fmt.Sprintf("%d", c.Debug.LimitNumIndexedFiles),
			fmt.Errorf("file limit must be zero (unlimited) or positive"))
	}
	if c.Paths.CompileCommands == "" {
		return sderr.NewConfigError("paths.compile_commands", "",
			fmt.Errorf("a compile_commands.json path is required"))
	}
	if info, err := os.Stat(c.Paths.CompileCommands); err != nil || info.IsDir() {
		return sderr.NewConfigError("paths.compile_commands", c.Paths.CompileCommands,
			fmt.Errorf("not a readable file"))
	}
	for _, p := range c.Includes.Paths {
		if p == "" {
			return sderr.NewConfigError("includes.paths", "",
				fmt.Errorf("include paths must not be empty strings"))
		}
	}
	for _, p := range c.Ignore.Paths {
		if p == "" {
			return sderr.NewConfigError("ignore.paths", "",
				fmt.Errorf("ignore paths must not be empty strings"))
		}
	}
	return nil
}

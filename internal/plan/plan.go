// Package plan resolves the ordered sequence of work items an indexing run
// processes: one (file, argument list) pair per surviving entry of a
// compile_commands.json manifest, with ignore-matched files excluded,
// include paths appended, and an optional debug truncation applied.
package plan

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/symdex/symdex/internal/config"
	sderr "github.com/symdex/symdex/internal/errors"
)

// WorkItem is one translation unit to index: the main file plus the final
// compiler argument list the observation source should parse it with.
type WorkItem struct {
	File string
	Args []string
}

// manifestEntry mirrors one compile_commands.json entry. Exactly one of
// Command and Arguments is populated by the generating build system.
type manifestEntry struct {
	Directory string   `json:"directory"`
	File      string   `json:"file"`
	Command   string   `json:"command"`
	Arguments []string `json:"arguments"`
}

// Build loads the manifest named by the config and produces the work-item
// sequence. A zero-length result is not an error; the caller decides what a
// zero-file run means.
func Build(cfg *config.Config) ([]WorkItem, error) {
	content, err := os.ReadFile(cfg.Paths.CompileCommands)
	if err != nil {
		return nil, sderr.NewConfigError("paths.compile_commands", cfg.Paths.CompileCommands, err)
	}

	var entries []manifestEntry
	if err := json.Unmarshal(content, &entries); err != nil {
		return nil, sderr.NewConfigError("paths.compile_commands", cfg.Paths.CompileCommands,
			fmt.Errorf("malformed manifest: %w", err))
	}

	extraArgs := includeArgs(cfg)

	items := make([]WorkItem, 0, len(entries))
	for _, entry := range entries {
		file := entry.File
		if !filepath.IsAbs(file) && entry.Directory != "" {
			file = filepath.Join(entry.Directory, file)
		}

		if _, err := os.Stat(file); err != nil {
			log.Printf("Warning: skipping manifest entry for %s: %v", entry.File, err)
			continue
		}
		if Ignored(file, cfg.Ignore.Paths) {
			continue
		}

		args := entry.Arguments
		if len(args) == 0 && entry.Command != "" {
			args = splitCommand(entry.Command)
		}
		if len(args) > 0 {
			// Drop the compiler executable itself; the front end only
			// needs the flags.
			args = args[1:]
		}
		args = append(append([]string{}, args...), extraArgs...)

		items = append(items, WorkItem{File: file, Args: args})

		if limit := cfg.Debug.LimitNumIndexedFiles; limit > 0 && len(items) >= limit {
			log.Printf("Only indexing %d files (debug limit)", limit)
			break
		}
	}

	return items, nil
}

// Ignored reports whether path matches any configured ignore entry. Plain
// entries match by substring; entries containing glob metacharacters match
// the slash-normalized path with doublestar.
func Ignored(path string, ignores []string) bool {
	normalized := filepath.ToSlash(path)
	for _, pattern := range ignores {
		if strings.ContainsAny(pattern, "*?[{") {
			if ok, err := doublestar.Match(pattern, normalized); err == nil && ok {
				return true
			}
			continue
		}
		if strings.Contains(normalized, pattern) {
			return true
		}
	}
	return false
}

// includeArgs builds the include-path augmentation appended to every work
// item: configured paths first, then the system compiler's builtin search
// paths when enabled.
func includeArgs(cfg *config.Config) []string {
	var args []string
	for _, p := range cfg.Includes.Paths {
		args = append(args, "-I"+p)
	}
	if cfg.Includes.UseSystemIncludes {
		systemPaths, err := SystemIncludePaths()
		if err != nil {
			log.Printf("Warning: unable to determine system include paths: %v", err)
		}
		for _, p := range systemPaths {
			args = append(args, "-isystem"+p)
		}
	}
	return args
}

// splitCommand splits a manifest "command" string into arguments with
// shell-style quoting: single quotes, double quotes, and backslash escapes.
func splitCommand(command string) []string {
	var args []string
	var cur strings.Builder
	inArg := false
	var quote rune

	runes := []rune(command)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			} else if c == '\\' && quote == '"' && i+1 < len(runes) {
				i++
				cur.WriteRune(runes[i])
			} else {
				cur.WriteRune(c)
			}
		case c == '\'' || c == '"':
			quote = c
			inArg = true
		case c == '\\' && i+1 < len(runes):
			i++
			cur.WriteRune(runes[i])
			inArg = true
		case c == ' ' || c == '\t':
			if inArg {
				args = append(args, cur.String())
				cur.Reset()
				inArg = false
			}
		default:
			cur.WriteRune(c)
			inArg = true
		}
	}
	if inArg {
		args = append(args, cur.String())
	}
	return args
}

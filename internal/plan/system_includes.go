package plan

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
)

var (
	systemIncludesOnce sync.Once
	systemIncludes     []string
	systemIncludesErr  error
)

// SystemIncludePaths discovers the system compiler's builtin include search
// directories by asking the preprocessor to dump them. The flags work on
// every clang and gcc we have tried; an exotic compiler may not support
// them, in which case the run proceeds without system includes. The result
// is computed once per process.
func SystemIncludePaths() ([]string, error) {
	systemIncludesOnce.Do(func() {
		systemIncludes, systemIncludesErr = probeSystemIncludes()
	})
	return systemIncludes, systemIncludesErr
}

func probeSystemIncludes() ([]string, error) {
	compiler, err := exec.LookPath("c++")
	if err != nil {
		return nil, fmt.Errorf("no system C++ compiler found: %w", err)
	}

	// The include search list is printed to stderr.
	cmd := exec.Command(compiler, "-E", "-Wp,-v", "-xc++", os.DevNull)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("failed to probe %s for include paths: %w", compiler, err)
	}

	return parseIncludeSearchList(stderr.String()), nil
}

// parseIncludeSearchList extracts the directories listed between the
// '#include <...> search starts here:' marker and 'End of search list.'.
func parseIncludeSearchList(output string) []string {
	var paths []string
	inList := false
	for _, line := range strings.Split(output, "\n") {
		if !inList {
			inList = strings.Contains(line, "#include") && strings.Contains(line, "search starts here:")
			continue
		}
		if strings.Contains(line, "End of search list.") {
			break
		}
		if strings.HasPrefix(line, " ") {
			path := strings.TrimSpace(line)
			// macOS appends " (framework directory)" to some entries.
			path = strings.TrimSuffix(path, " (framework directory)")
			if path != "" {
				paths = append(paths, path)
			}
		}
	}
	return paths
}

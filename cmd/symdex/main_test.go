package main

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	sderr "github.com/symdex/symdex/internal/errors"
)

func TestIndexTotalFailureNamesTheFailingFiles(t *testing.T) {
	dir := t.TempDir()
	// A directory with a source-file name passes the plan's existence check
	// but cannot be read by the front end, so the only work item fails.
	badFile := filepath.Join(dir, "broken.cpp")
	require.NoError(t, os.Mkdir(badFile, 0755))

	manifest := `[{"directory": "` + dir + `", "file": "` + badFile + `", "arguments": ["c++", "-c", "` + badFile + `"]}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "compile_commands.json"), []byte(manifest), 0644))

	config := `
[project]
name = "broken"

[paths]
compile_commands = "compile_commands.json"

[includes]
use_system_includes = false
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".symdex.toml"), []byte(config), 0644))

	var logs bytes.Buffer
	log.SetOutput(&logs)
	defer log.SetOutput(os.Stderr)

	app := &cli.App{Commands: []*cli.Command{indexCommand()}}
	err := app.Run([]string{"symdex", "index", "--root", dir})

	var total *sderr.TotalFailureError
	require.ErrorAs(t, err, &total)
	assert.Equal(t, 1, total.Attempted)
	assert.Contains(t, logs.String(), badFile,
		"the failing file must be named before the run aborts")
	assert.Contains(t, logs.String(), "frontend")
}

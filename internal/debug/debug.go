// Package debug provides gated diagnostic logging for indexing runs.
// Output is off by default and enabled with the --verbose flag or the
// SYMDEX_DEBUG environment variable.
package debug

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

var (
	mu  sync.Mutex
	out io.Writer
)

func init() {
	if os.Getenv("SYMDEX_DEBUG") == "1" {
		out = os.Stderr
	}
}

// SetOutput directs debug output to w. Pass nil to disable.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// Enabled reports whether debug output is currently active.
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return out != nil
}

// Logf writes one timestamped debug line. No-op when disabled.
func Logf(format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if out == nil {
		return
	}
	ts := time.Now().Format("15:04:05.000")
	fmt.Fprintf(out, "[%s] %s\n", ts, fmt.Sprintf(format, args...))
}

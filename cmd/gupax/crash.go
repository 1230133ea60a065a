package main

import (
	"fmt"
	"git.gammaspectra.live/P2Pool/gupax/config"
	"git.gammaspectra.live/P2Pool/gupax/utils"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// crashDir is where crash.txt goes, it is set once the data directory is known.
var crashDir = os.TempDir()

var exit = os.Exit

// crashLock keeps a second panicking goroutine from overwriting the first report.
var crashLock sync.Mutex

func crashReport(start time.Time, panicValue any, stack []byte) string {
	var b strings.Builder
	_, _ = fmt.Fprintf(&b, "Gupax crashed at %s\n\n", time.Now().UTC().Format(time.RFC3339))
	_, _ = fmt.Fprintf(&b, "os: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	_, _ = fmt.Fprintf(&b, "args: %q\n", os.Args)
	_, _ = fmt.Fprintf(&b, "version: %s (%s)\n", version, runtime.Version())
	_, _ = fmt.Fprintf(&b, "uptime: %s\n\n", utils.NewHumanTime(time.Since(start)))
	_, _ = fmt.Fprintf(&b, "panic: %v\n\n", panicValue)
	b.Write(stack)
	return b.String()
}

// crash writes crash.txt and exits with 1. It is the panic handler of every goroutine
// started through utils.Go.
func crash(start time.Time, panicValue any, stack []byte) {
	crashLock.Lock()
	defer crashLock.Unlock()
	report := crashReport(start, panicValue, stack)
	path := filepath.Join(crashDir, config.CrashFile)
	if err := os.MkdirAll(crashDir, 0o755); err == nil {
		if err = os.WriteFile(path, []byte(report), 0o644); err == nil {
			_, _ = fmt.Fprintf(os.Stderr, "Gupax crashed, details were written to %s\n", path)
		}
	}
	_, _ = os.Stderr.WriteString(report)
	exit(1)
}

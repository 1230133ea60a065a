//go:build !windows

package process

import (
	"github.com/creack/pty"
	"io"
	"os/exec"
	"syscall"
)

// terminal size handed to the child, tall so nothing gets wrapped away
var winsize = &pty.Winsize{Rows: 1000, Cols: 100}

func start(cmd *exec.Cmd) (output io.Reader, input io.Writer, closer func() error, err error) {
	f, err := pty.StartWithSize(cmd, winsize)
	if err != nil {
		return nil, nil, nil, err
	}
	return f, f, f.Close, nil
}

// Terminate asks the child to exit, sudo passes the signal on to its command.
func (c *Child) Terminate() error {
	if c.Exited() {
		return nil
	}
	return c.cmd.Process.Signal(syscall.SIGTERM)
}

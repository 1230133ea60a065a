//go:build windows

package process

import (
	"errors"
	"io"
	"os"
	"os/exec"
)

// start wires stdout and stderr into one pipe, pseudo-terminals are not available here.
func start(cmd *exec.Cmd) (output io.Reader, input io.Writer, closer func() error, err error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, nil, nil, err
	}
	cmd.Stdout = w
	cmd.Stderr = w
	stdin, err := cmd.StdinPipe()
	if err != nil {
		_ = r.Close()
		_ = w.Close()
		return nil, nil, nil, err
	}
	if err = cmd.Start(); err != nil {
		_ = r.Close()
		_ = w.Close()
		return nil, nil, nil, err
	}
	// the child holds its own copy now
	_ = w.Close()
	return r, stdin, func() error {
		return errors.Join(stdin.Close(), r.Close())
	}, nil
}

// Terminate is Kill, console children cannot be signalled politely.
func (c *Child) Terminate() error {
	return c.Kill()
}

package process

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"git.gammaspectra.live/P2Pool/gupax/utils"
)

// LineEnding terminates lines written to a child's input.
var LineEnding = func() string {
	if runtime.GOOS == "windows" {
		return "\r\n"
	}
	return "\n"
}()

// reader drain grace period after the child exited
const drainTimeout = time.Second

// Options describe how to launch a child.
type Options struct {
	Path string
	Args []string
	// Env is added on top of the current environment.
	Env []string
	// Dir defaults to the directory of Path.
	Dir string
}

// Child is a running process attached to a terminal (or pipes where no terminal exists).
// Only its supervisor uses it.
type Child struct {
	cmd    *exec.Cmd
	output io.Reader
	input  io.Writer
	closer func() error

	exited     chan struct{}
	readerDone chan struct{}
	closeOnce  sync.Once
}

func Spawn(o Options) (*Child, error) {
	if o.Path == "" {
		return nil, errors.New("empty executable path")
	}
	cmd := exec.Command(o.Path, o.Args...)
	cmd.Env = append(os.Environ(), o.Env...)
	cmd.Dir = o.Dir
	if cmd.Dir == "" {
		cmd.Dir = filepath.Dir(o.Path)
	}

	output, input, closer, err := start(cmd)
	if err != nil {
		return nil, err
	}

	c := &Child{
		cmd:        cmd,
		output:     output,
		input:      input,
		closer:     closer,
		exited:     make(chan struct{}),
		readerDone: make(chan struct{}),
	}
	go func() {
		defer close(c.exited)
		defer utils.Recover()
		_ = cmd.Wait()
	}()
	return c, nil
}

func (c *Child) Pid() int {
	return c.cmd.Process.Pid
}

// StartReader runs fn over the combined output on its own goroutine.
func (c *Child) StartReader(fn func(r io.Reader)) {
	go func() {
		defer close(c.readerDone)
		defer utils.Recover()
		fn(c.output)
	}()
}

// WriteLine writes one line of input followed by LineEnding.
func (c *Child) WriteLine(line string) error {
	if _, err := io.WriteString(c.input, line+LineEnding); err != nil {
		return err
	}
	if f, ok := c.input.(interface{ Sync() error }); ok {
		_ = f.Sync()
	}
	return nil
}

// WriteSecret writes buf followed by a newline without copying buf.
func (c *Child) WriteSecret(buf []byte) error {
	if _, err := c.input.Write(buf); err != nil {
		return err
	}
	_, err := io.WriteString(c.input, "\n")
	return err
}

// Exited reports without blocking whether the child has exited.
func (c *Child) Exited() bool {
	select {
	case <-c.exited:
		return true
	default:
		return false
	}
}

// Kill forcefully terminates the child.
func (c *Child) Kill() error {
	if c.Exited() {
		return nil
	}
	return c.cmd.Process.Kill()
}

// Wait blocks until the child exited, then returns whether it exited successfully
// and a printable exit status.
func (c *Child) Wait() (success bool, status string) {
	<-c.exited
	state := c.cmd.ProcessState
	if state == nil {
		return false, "unknown"
	}
	return state.Success(), state.String()
}

// Close waits a moment for the reader to drain what is left, then releases the terminal.
func (c *Child) Close() {
	c.closeOnce.Do(func() {
		select {
		case <-c.readerDone:
		case <-time.After(drainTimeout):
		}
		if c.closer != nil {
			_ = c.closer()
		}
	})
}

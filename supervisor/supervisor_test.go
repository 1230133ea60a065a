package supervisor

import (
	"errors"
	"git.gammaspectra.live/P2Pool/gupax/process"
	"github.com/sasha-s/go-deadlock"
	"io"
	"strings"
	"time"
)

// fakeChild stands in for a spawned binary.
type fakeChild struct {
	lock deadlock.Mutex

	output     string
	exited     bool
	success    bool
	status     string
	terminated int
	killed     int
	closed     bool
	lines      []string
	secret     []byte
	writeErr   error
	// ignoreTerminate keeps the child running after Terminate.
	ignoreTerminate bool
}

func (c *fakeChild) Pid() int {
	return 4242
}

func (c *fakeChild) StartReader(fn func(r io.Reader)) {
	go fn(strings.NewReader(c.output))
}

func (c *fakeChild) WriteLine(line string) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.lines = append(c.lines, line)
	return nil
}

func (c *fakeChild) WriteSecret(buf []byte) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.secret = append([]byte(nil), buf...)
	return c.writeErr
}

func (c *fakeChild) Exited() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.exited
}

func (c *fakeChild) exit(success bool, status string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.exited, c.success, c.status = true, success, status
}

func (c *fakeChild) Terminate() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.terminated++
	if !c.ignoreTerminate {
		c.exited, c.status = true, "signal: terminated"
	}
	return nil
}

func (c *fakeChild) Kill() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.killed++
	c.exited, c.status = true, "signal: killed"
	return nil
}

func (c *fakeChild) Wait() (bool, string) {
	for !c.Exited() {
		time.Sleep(time.Millisecond * 10)
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.success, c.status
}

func (c *fakeChild) Close() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.closed = true
}

func (c *fakeChild) written() []string {
	c.lock.Lock()
	defer c.lock.Unlock()
	return append([]string(nil), c.lines...)
}

// fakeSpawner hands out fresh fake children and remembers the options.
type fakeSpawner struct {
	lock     deadlock.Mutex
	options  []process.Options
	children []*fakeChild
	output   string
	err      error
}

func (f *fakeSpawner) spawn(o process.Options) (child, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.options = append(f.options, o)
	if f.err != nil {
		return nil, f.err
	}
	c := &fakeChild{output: f.output}
	f.children = append(f.children, c)
	return c, nil
}

func (f *fakeSpawner) count() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return len(f.children)
}

func (f *fakeSpawner) last() (*fakeChild, process.Options) {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.children[len(f.children)-1], f.options[len(f.options)-1]
}

var errBroken = errors.New("broken pipe")

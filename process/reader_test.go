package process

import (
	"errors"
	"git.gammaspectra.live/P2Pool/gupax/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"
)

type payoutRecorder struct {
	sync.Mutex
	payouts []Payout
	err     error
}

func (r *payoutRecorder) Append(date string, amount types.AtomicUnits, block uint64) error {
	r.Lock()
	defer r.Unlock()
	r.payouts = append(r.payouts, Payout{Date: date, Amount: amount, Block: block})
	return r.err
}

func TestReader(t *testing.T) {
	t.Parallel()
	var lines []string
	for i := 0; i < 25; i++ {
		lines = append(lines, "\x1b[32mline\x1b[0m")
	}
	lines = append(lines, "NOTICE  2022-01-27 01:30:23.1377 P2Pool You received a payout of 0.000000000001 XMR in block 2642816\r")
	lines = append(lines, "bad \xff byte")

	p := New(P2pool)
	sink := &payoutRecorder{}
	r := &Reader{Process: p, Payouts: sink}
	r.Run(strings.NewReader(strings.Join(lines, "\n")))

	out := strings.Split(strings.TrimSuffix(p.TakeParse(), "\n"), "\n")
	require.Len(t, out, len(lines))
	// only the first lines are stripped
	assert.Equal(t, "line", out[0])
	assert.Equal(t, "line", out[ansiLines-1])
	assert.Equal(t, lines[ansiLines], out[ansiLines])
	assert.False(t, strings.HasSuffix(out[25], "\r"))
	assert.Equal(t, "bad � byte", out[26])

	require.Len(t, sink.payouts, 1)
	assert.Equal(t, Payout{Date: "2022-01-27 01:30:23.1377", Amount: 1, Block: 2642816}, sink.payouts[0])
}

func TestReaderSinkError(t *testing.T) {
	t.Parallel()
	p := New(P2pool)
	sink := &payoutRecorder{err: errors.New("disk full")}
	r := &Reader{Process: p, Payouts: sink}
	r.Run(strings.NewReader("payout of 1.000000000000 XMR in block 1\nnext\n"))

	// the failure does not stop the reader
	assert.Equal(t, "payout of 1.000000000000 XMR in block 1\nnext\n", p.TakeParse())
	assert.Len(t, sink.payouts, 1)
}

func TestReaderGate(t *testing.T) {
	t.Parallel()
	pr, pw := io.Pipe()
	p := New(Xmrig)
	r := &Reader{Process: p, Gate: time.Millisecond * 200}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(pr)
	}()

	_, _ = io.WriteString(pw, "Password: hunter2\n")
	time.Sleep(time.Millisecond * 400)
	_, _ = io.WriteString(pw, "miner started\n")
	_ = pw.Close()
	<-done

	assert.Equal(t, "miner started\n", p.TakeParse())
}

func TestSpawn(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no /bin/sh")
	}
	t.Parallel()

	child, err := Spawn(Options{
		Path: "/bin/sh",
		Args: []string{"-c", "read line; echo got $line; exit 3"},
		Env:  []string{"NO_COLOR=true"},
	})
	if err != nil {
		t.Skipf("cannot spawn under a terminal here: %s", err)
	}

	p := New(P2pool)
	child.StartReader((&Reader{Process: p}).Run)
	require.NoError(t, child.WriteLine("hello"))

	success, status := child.Wait()
	child.Close()
	assert.False(t, success)
	assert.Contains(t, status, "3")
	assert.True(t, child.Exited())
	assert.Contains(t, p.TakeParse(), "got hello")
}

func TestSpawnMissing(t *testing.T) {
	t.Parallel()
	_, err := Spawn(Options{Path: "/nonexistent/p2pool"})
	require.Error(t, err)
	_, err = Spawn(Options{})
	require.Error(t, err)
}

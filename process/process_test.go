package process

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"strings"
	"testing"
)

func TestStatesDisjoint(t *testing.T) {
	t.Parallel()
	p := New(P2pool)
	for _, s := range []State{Dead, Middle, Syncing, NotMining, Alive, Failed, Waiting} {
		p.SetState(s)
		assert.False(t, p.IsAlive() && p.IsWaiting(), "state %s is both alive and waiting", s)
		assert.Equal(t, s, p.State())
	}

	p.SetState(Syncing)
	assert.True(t, p.IsAlive())
	p.SetState(NotMining)
	assert.True(t, p.IsAlive())
	p.SetState(Middle)
	assert.True(t, p.IsWaiting())
	p.SetState(Waiting)
	assert.True(t, p.IsWaiting())
	p.SetState(Failed)
	assert.False(t, p.IsAlive() || p.IsWaiting())
}

func TestSignalAndInput(t *testing.T) {
	t.Parallel()
	p := New(Xmrig)
	assert.Equal(t, Dead, p.State())

	p.SetSignal(SignalStop)
	p.PushInput("h")
	p.PushInput("p")

	p.Lock()
	assert.Equal(t, SignalStop, p.LockedSignal())
	assert.Equal(t, []string{"h", "p"}, p.LockedTakeInput())
	assert.Empty(t, p.LockedTakeInput())
	p.Unlock()
}

func TestBuffers(t *testing.T) {
	t.Parallel()
	p := New(P2pool)
	p.AppendOutput("first")
	p.AppendOutput("second")

	p.Lock()
	defer p.Unlock()
	assert.Equal(t, "first\nsecond\n", p.LockedTakeParse())
	assert.Empty(t, p.LockedTakeParse())
	// parse and pub are independent copies
	assert.Equal(t, "first\nsecond\n", p.LockedTakePub())
	assert.Empty(t, p.LockedTakePub())

	p.LockedAppendOutput("third")
	p.LockedReset(Middle)
	assert.Equal(t, Middle, p.LockedState())
	assert.Empty(t, p.LockedTakePub())
}

func TestPatterns(t *testing.T) {
	t.Parallel()

	t.Run("payout", func(t *testing.T) {
		p, ok := ParsePayout("NOTICE  2022-01-27 01:30:23.1377 P2Pool You received a payout of 0.000000000001 XMR in block 2642816")
		require.True(t, ok)
		assert.Equal(t, "2022-01-27 01:30:23.1377", p.Date)
		assert.EqualValues(t, 1, p.Amount)
		assert.EqualValues(t, 2642816, p.Block)

		p, ok = ParsePayout("payout of 5.000000000001 XMR in block 1111")
		require.True(t, ok)
		assert.Equal(t, UnknownDate, p.Date)
		assert.EqualValues(t, 5_000_000_000_001, p.Amount)

		_, ok = ParsePayout("NOTICE  2022-01-27 01:30:23.1377 P2Pool new chain tip")
		assert.False(t, ok)
	})

	t.Run("scan", func(t *testing.T) {
		payouts := ScanPayouts(strings.Join([]string{
			"payout of 5.000000000001 XMR in block 1111",
			"unrelated",
			"payout of 5.000000000001 XMR in block 1112",
			"payout of 5.000000000001 XMR in block 1113",
		}, "\n"))
		require.Len(t, payouts, 3)
		assert.EqualValues(t, 1113, payouts[2].Block)
	})

	t.Run("synchronized", func(t *testing.T) {
		var d SyncDetector
		assert.False(t, d.Scan(""))
		assert.True(t, d.Scan("SideChain SYNCHRONIZED\n"))

		d = SyncDetector{}
		assert.False(t, d.Scan("SideChain new chain tip: next height = 1, id = 00\nSideChain SYNCHRONIZED\n"))
		assert.True(t, d.Scan("SideChain SYNCHRONIZED\n"))

		d = SyncDetector{}
		assert.True(t, d.Scan("SideChain new chain tip: next height = 1, id = 00\nSideChain SYNCHRONIZED\nSYNCHRONIZED\n"))

		// order within a buffer does not matter
		d = SyncDetector{}
		assert.False(t, d.Scan("SideChain SYNCHRONIZED\nSideChain new chain tip: next height = 1, id = 00\n"))
		assert.True(t, d.Scan("SideChain SYNCHRONIZED\n"))

		// the genesis tip may arrive a tick before its spurious sync
		d = SyncDetector{}
		assert.False(t, d.Scan("SideChain new chain tip: next height = 1, id = 00\n"))
		assert.False(t, d.Scan("SideChain SYNCHRONIZED\n"))
		assert.True(t, d.Scan("SideChain SYNCHRONIZED\n"))
	})

	t.Run("mining", func(t *testing.T) {
		_, ok := XmrigMiningState("[2022-10-10 00:00:00.000]  cpu  use profile  rx  (4 threads)")
		assert.False(t, ok)

		state, ok := XmrigMiningState("[2022-10-10 00:00:00.000]  net  no active pools, stop mining")
		assert.True(t, ok)
		assert.Equal(t, NotMining, state)

		state, ok = XmrigMiningState("[2022-10-10 00:00:00.000]  net  no active pools, stop mining\n[2022-10-10 00:00:01.000]  net  new job from 127.0.0.1:3333 diff 1000")
		assert.True(t, ok)
		assert.Equal(t, Alive, state)

		state, ok = XmrigMiningState("net  new job from 127.0.0.1:3333 diff 1000\nnet  no active pools, stop mining")
		assert.True(t, ok)
		assert.Equal(t, NotMining, state)
	})
}

func TestStripAnsi(t *testing.T) {
	t.Parallel()
	for _, c := range []struct {
		in, out string
	}{
		{"plain", "plain"},
		{"\x1b[31mred\x1b[0m", "red"},
		{"\x1b[1;32mNOTICE\x1b[0m  2022", "NOTICE  2022"},
		{"\x1b]0;title\x07text", "text"},
		{"\x1b]0;title\x1b\\text", "text"},
		{"a\x1b(Bb", "ab"},
		{"dangling\x1b", "dangling"},
	} {
		assert.Equal(t, c.out, StripAnsi(c.in), "input %q", c.in)
	}
}

package ledger

import (
	"git.gammaspectra.live/P2Pool/gupax/process"
	"git.gammaspectra.live/P2Pool/gupax/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

var _ process.PayoutSink = (*Ledger)(nil)

var testEntries = []Entry{
	{Date: "2022-11-11 11:11:11.1111", Amount: 5_000_000_000_001, Block: 2_642_816},
	{Date: "2022-11-12 12:12:12.1212", Amount: 300_000_000, Block: 2_643_000},
	{Date: "2022-11-13 13:13:13.1313", Amount: 9_000_000_000_000, Block: 2_644_123},
	{Date: process.UnknownDate, Amount: 300_000_000, Block: 0},
}

func fill(t *testing.T, l *Ledger) {
	t.Helper()
	for _, e := range testEntries {
		require.NoError(t, l.Append(e.Date, e.Amount, e.Block))
	}
}

func TestAppend(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	l := New(dir)

	var total types.AtomicUnits
	for i, e := range testEntries {
		require.NoError(t, l.Append(e.Date, e.Amount, e.Block))
		total += e.Amount
		assert.Equal(t, uint64(i+1), l.Count())
		assert.Equal(t, total, l.TotalAmount())
	}
	assert.Equal(t, testEntries, l.Entries())

	logBuf, err := os.ReadFile(filepath.Join(dir, LogFile))
	require.NoError(t, err)
	assert.Equal(t, l.Views().Chronological, string(logBuf))
	assert.True(t, strings.HasPrefix(string(logBuf), "2022-11-11 11:11:11.1111 | 5.000000000001 XMR | Block 2,642,816\n"))
	for _, e := range testEntries {
		assert.Equal(t, 1, strings.Count(string(logBuf), e.String()+"\n"), e.String())
	}

	countBuf, err := os.ReadFile(filepath.Join(dir, CountFile))
	require.NoError(t, err)
	assert.Equal(t, "4", string(countBuf))

	amountBuf, err := os.ReadFile(filepath.Join(dir, AmountFile))
	require.NoError(t, err)
	assert.Equal(t, "14000600000001", string(amountBuf))
}

func TestViews(t *testing.T) {
	t.Parallel()
	l := New(t.TempDir())
	fill(t, l)
	views := l.Views()

	chronological := strings.Split(strings.TrimSuffix(views.Chronological, "\n"), "\n")
	reverse := strings.Split(strings.TrimSuffix(views.Reverse, "\n"), "\n")
	require.Len(t, chronological, len(testEntries))
	slices.Reverse(reverse)
	assert.Equal(t, chronological, reverse)

	desc := strings.Split(strings.TrimSuffix(views.ByAmountDesc, "\n"), "\n")
	asc := strings.Split(strings.TrimSuffix(views.ByAmountAsc, "\n"), "\n")
	assert.Equal(t, testEntries[2].String(), desc[0])
	assert.Equal(t, testEntries[0].String(), desc[1])
	assert.Equal(t, testEntries[2].String(), asc[3])
	// equal amounts keep their chronological order
	assert.Equal(t, testEntries[1].String(), asc[0])
	assert.Equal(t, testEntries[3].String(), asc[1])
}

func TestLoadRoundTrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	l := New(dir)
	fill(t, l)

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, l.Entries(), loaded.Entries())
	assert.Equal(t, l.Views(), loaded.Views())
	assert.Equal(t, l.TotalAmount(), loaded.TotalAmount())
	assert.Equal(t, l.Count(), loaded.Count())
}

func TestLoadMissing(t *testing.T) {
	t.Parallel()
	l, err := Load(filepath.Join(t.TempDir(), "nothing"))
	require.NoError(t, err)
	assert.Zero(t, l.Count())
	assert.Empty(t, l.Views().Chronological)
}

func TestLoadCorrupt(t *testing.T) {
	t.Parallel()
	for _, c := range []struct {
		name   string
		file   string
		buffer string
	}{
		{"count mismatch", CountFile, "7"},
		{"amount mismatch", AmountFile, "1"},
		{"count garbage", CountFile, "four"},
		{"log garbage", LogFile, "2022-11-11 | nonsense\n"},
		{"log amount", LogFile, "2022-11-11 11:11:11.1111 | 5.0.0 XMR | Block 1\n"},
	} {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			fill(t, New(dir))
			require.NoError(t, os.WriteFile(filepath.Join(dir, c.file), []byte(c.buffer), 0o644))

			l, err := Load(dir)
			require.Error(t, err)
			require.NotNil(t, l)
			assert.Zero(t, l.Count())
			assert.Zero(t, l.TotalAmount())
		})
	}
}

func TestReset(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	fill(t, New(dir))
	require.NoError(t, Reset(dir))
	require.NoError(t, Reset(dir))

	l, err := Load(dir)
	require.NoError(t, err)
	assert.Zero(t, l.Count())
}

func TestAppendAfterWriteFailure(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	blocked := filepath.Join(dir, "blocked")
	require.NoError(t, os.WriteFile(blocked, nil, 0o644))

	// a file where the directory should be makes every write fail
	l := New(blocked)
	require.Error(t, l.Append(testEntries[0].Date, testEntries[0].Amount, testEntries[0].Block))
	assert.Equal(t, uint64(1), l.Count())
	assert.Equal(t, testEntries[0].Amount, l.TotalAmount())
}

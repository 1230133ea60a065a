package supervisor

import (
	"context"
	"git.gammaspectra.live/P2Pool/gupax/config"
	"git.gammaspectra.live/P2Pool/gupax/process"
	"git.gammaspectra.live/P2Pool/gupax/telemetry"
	"git.gammaspectra.live/P2Pool/gupax/utils"
	xmrigapi "git.gammaspectra.live/P2Pool/gupax/xmrig/api"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"
)

const testSummary = `{
	"worker_id": "rig1",
	"resources": {"load_average": [0.5, 0.25, null]},
	"connection": {"diff": 100000, "accepted": 12, "rejected": 0},
	"hashrate": {"total": [1500.0, 1400.0, null]}
}`

func summaryServer(t *testing.T) *httptest.Server {
	t.Helper()
	router := mux.NewRouter()
	router.HandleFunc("/1/summary", func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		_, _ = writer.Write([]byte(testSummary))
	}).Methods(http.MethodGet)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func newXmrigRun(t *testing.T, url string) (*Xmrig, *xmrigRun, *fakeChild) {
	t.Helper()
	s := NewXmrig(process.New(process.Xmrig), telemetry.New())
	s.Process.Lock()
	s.Process.LockedReset(process.NotMining)
	s.Process.Unlock()

	c := &fakeChild{}
	return s, &xmrigRun{
		child: c,
		api: &xmrigapi.XmrigApi{
			Url:    url + "/1/summary",
			Client: &http.Client{Timeout: xmrigapi.Timeout},
		},
	}, c
}

func TestXmrigMiningState(t *testing.T) {
	t.Parallel()
	s, r, _ := newXmrigRun(t, summaryServer(t).URL)
	ctx := context.Background()

	s.Process.AppendOutput("[2022-10-10 00:00:01.000]  net      new job from 127.0.0.1:3333 diff 100000 algo rx/0 height 2700000")
	require.False(t, s.step(ctx, r))
	assert.Equal(t, process.Alive, s.Process.State())

	s.Process.AppendOutput("[2022-10-10 00:01:00.000]  net      no active pools, stop mining")
	require.False(t, s.step(ctx, r))
	assert.Equal(t, process.NotMining, s.Process.State())

	s.Process.AppendOutput("[2022-10-10 00:01:30.000]  net      new job from 127.0.0.1:3333 diff 100000 algo rx/0 height 2700001")
	require.False(t, s.step(ctx, r))
	assert.Equal(t, process.Alive, s.Process.State())

	// unrelated output leaves the state alone
	s.Process.AppendOutput("[2022-10-10 00:02:00.000]  miner    speed 10s/60s/15m 1500.0 1400.0 n/a H/s max 1600.0 H/s")
	require.False(t, s.step(ctx, r))
	assert.Equal(t, process.Alive, s.Process.State())
}

func TestXmrigSummaryPolling(t *testing.T) {
	t.Parallel()
	s, r, _ := newXmrigRun(t, summaryServer(t).URL)

	require.False(t, s.step(context.Background(), r))
	priv := s.Telemetry.XmrigPriv.Snapshot()
	assert.Equal(t, "rig1", priv.WorkerId)
	assert.InDelta(t, 1500.0, priv.HashrateRaw, 1e-9)
	assert.Equal(t, utils.HumanNumber("[1,500 H/s, 1,400 H/s, ??? H/s]"), priv.Hashrate)
	assert.Equal(t, utils.HumanNumber("12"), priv.Accepted)
	assert.True(t, priv.Uptime.Known())
}

func TestXmrigSummaryUnreachable(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()
	s, r, _ := newXmrigRun(t, server.URL)

	start := time.Now()
	require.False(t, s.step(context.Background(), r))
	assert.Less(t, time.Since(start), xmrigapi.Timeout*2)
	assert.Equal(t, process.NotMining, s.Process.State())
	assert.Equal(t, utils.Unknown, s.Telemetry.XmrigPriv.Snapshot().WorkerId)
}

func TestXmrigStopSignal(t *testing.T) {
	t.Parallel()
	s, r, c := newXmrigRun(t, summaryServer(t).URL)
	pass := []byte("hunter2")
	s.Stop(pass)
	assert.Equal(t, process.Middle, s.Process.State())

	require.True(t, s.step(context.Background(), r))
	assert.Equal(t, process.Dead, s.Process.State())
	assert.Equal(t, 1, c.terminated)
	assert.Contains(t, s.Telemetry.XmrigGui.Snapshot().Output, "XMRig stopped")

	// not a sudo run, the passphrase is only dropped with the watchdog
	s.Sudo.Wipe()
	assert.Equal(t, make([]byte, len(pass)), pass)
}

func TestXmrigStopWhenDead(t *testing.T) {
	t.Parallel()
	s := NewXmrig(process.New(process.Xmrig), telemetry.New())
	pass := []byte("hunter2")
	s.Stop(pass)
	assert.Equal(t, process.Dead, s.Process.State())
	assert.Equal(t, make([]byte, len(pass)), pass)
	assert.Nil(t, s.Sudo.Take())
}

func testXmrigOptions(t *testing.T) XmrigOptions {
	cfg := config.Default().Xmrig
	cfg.Threads = 1
	return XmrigOptions{
		Path:   filepath.Join(t.TempDir(), "xmrig"),
		Config: cfg,
	}
}

func TestXmrigStartWipesPassphrase(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	spawner := &fakeSpawner{}
	s := NewXmrig(process.New(process.Xmrig), telemetry.New())
	s.spawn = spawner.spawn
	s.elevated = func() bool { return false }
	s.PassphraseDelay = 0
	o := testXmrigOptions(t)

	pass := []byte("hunter2")
	require.NoError(t, s.Start(ctx, o, pass))
	assert.Equal(t, make([]byte, len(pass)), pass)
	assert.Equal(t, process.NotMining, s.Process.State())

	c, options := spawner.last()
	assert.Equal(t, filepath.Dir(o.Path), options.Dir)
	assert.Contains(t, options.Args, "--http-port")
	if options.Path == "sudo" {
		assert.Equal(t, []byte("hunter2"), c.secret)
		assert.True(t, s.Telemetry.XmrigPriv.Snapshot().Elevated)
	} else {
		assert.Empty(t, c.secret)
	}

	// a second start is refused and still wipes what it was given
	second := []byte("hunter3")
	require.ErrorIs(t, s.Start(ctx, o, second), ErrRunning)
	assert.Equal(t, make([]byte, len(second)), second)

	s.Stop(nil)
	require.Eventually(t, func() bool {
		return s.Process.State() == process.Dead
	}, 5*time.Second, 50*time.Millisecond)
}

func TestXmrigStartFailures(t *testing.T) {
	t.Parallel()
	s := NewXmrig(process.New(process.Xmrig), telemetry.New())
	s.spawn = (&fakeSpawner{err: errBroken}).spawn
	s.PassphraseDelay = 0

	o := testXmrigOptions(t)
	o.Config.Simple = false
	o.Config.ApiPort = 0
	pass := []byte("hunter2")
	require.Error(t, s.Start(context.Background(), o, pass))
	assert.Equal(t, process.Failed, s.Process.State())
	assert.Equal(t, make([]byte, len(pass)), pass)

	pass = []byte("hunter2")
	require.ErrorIs(t, s.Start(context.Background(), testXmrigOptions(t), pass), errBroken)
	assert.Equal(t, process.Failed, s.Process.State())
	assert.Equal(t, make([]byte, len(pass)), pass)
	assert.Contains(t, s.Telemetry.XmrigGui.Snapshot().Output, "broken pipe")
}

func TestXmrigSecretWriteFailure(t *testing.T) {
	t.Parallel()
	s := NewXmrig(process.New(process.Xmrig), telemetry.New())
	s.PassphraseDelay = 0
	s.elevated = func() bool { return false }
	var spawned *fakeChild
	s.spawn = func(o process.Options) (child, error) {
		spawned = &fakeChild{writeErr: errBroken}
		return spawned, nil
	}

	pass := []byte("hunter2")
	err := s.Start(context.Background(), testXmrigOptions(t), pass)
	assert.Equal(t, make([]byte, len(pass)), pass)
	if spawned.secret == nil {
		// no sudo on this platform, nothing was written
		require.NoError(t, err)
		s.Stop(nil)
		return
	}
	require.ErrorIs(t, err, errBroken)
	assert.Equal(t, process.Failed, s.Process.State())
	assert.Equal(t, 1, spawned.killed)
}

func TestSudoState(t *testing.T) {
	t.Parallel()
	var sudo SudoState
	first := []byte("first")
	sudo.Set(first)
	second := []byte("second")
	sudo.Set(second)
	assert.Equal(t, make([]byte, len(first)), first)

	taken := sudo.Take()
	assert.Equal(t, []byte("second"), taken)
	assert.Nil(t, sudo.Take())

	sudo.Set(taken)
	sudo.Wipe()
	assert.Equal(t, make([]byte, len(second)), second)
	assert.Nil(t, sudo.Take())
}

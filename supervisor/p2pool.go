package supervisor

import (
	"context"
	"errors"
	"fmt"
	"git.gammaspectra.live/P2Pool/gupax/args"
	"git.gammaspectra.live/P2Pool/gupax/config"
	p2poolapi "git.gammaspectra.live/P2Pool/gupax/p2pool/api"
	"git.gammaspectra.live/P2Pool/gupax/process"
	"git.gammaspectra.live/P2Pool/gupax/telemetry"
	"git.gammaspectra.live/P2Pool/gupax/utils"
	"path/filepath"
	"strings"
	"time"
)

// networkTicks is how many ticks pass between reads of the network and pool stats.
const networkTicks = 60

type P2poolOptions struct {
	Path    string
	Config  config.P2pool
	Backups []config.Node
	// DataDir receives the stats files, it defaults to the directory of Path.
	DataDir string
}

// P2pool supervises the sidechain daemon.
type P2pool struct {
	Process   *process.Process
	Telemetry *telemetry.Telemetry
	// Payouts receives payouts straight from the output reader.
	Payouts process.PayoutSink

	spawn spawner
	log   utils.Logger
}

func NewP2pool(proc *process.Process, tel *telemetry.Telemetry, payouts process.PayoutSink) *P2pool {
	return &P2pool{
		Process:   proc,
		Telemetry: tel,
		Payouts:   payouts,
		spawn:     spawnChild,
		log:       utils.Logger(process.P2pool.String()),
	}
}

func (s *P2pool) appendGui(text string) {
	s.Telemetry.P2poolGui.Lock()
	defer s.Telemetry.P2poolGui.Unlock()
	s.Telemetry.P2poolGui.Output += text
}

func (s *P2pool) fail(err error) error {
	s.log.Errorf("%s", err)
	finish(s.Process, process.Failed, banner("P2Pool failed to start: "+err.Error()), s.appendGui)
	return err
}

// Start spawns p2pool and its watchdog. The watchdog runs until the child exits,
// it is stopped, or ctx is cancelled.
func (s *P2pool) Start(ctx context.Context, o P2poolOptions) error {
	if err := claim(s.Process); err != nil {
		return err
	}

	dataDir := o.DataDir
	if dataDir == "" {
		dataDir = filepath.Dir(o.Path)
	}
	launch, err := args.BuildP2pool(o.Config, dataDir, o.Backups)
	if err != nil {
		return s.fail(err)
	}
	s.Telemetry.P2poolImage.Set(launch.Image)

	api := p2poolapi.NewP2PoolApi(launch.Paths)
	if err = api.EnsureTemplates(); err != nil {
		s.log.Errorf("could not create stats templates: %s", err)
	}

	s.Telemetry.P2poolGui.Lock()
	s.Telemetry.P2poolGui.P2pool = telemetry.NewP2pool()
	s.Telemetry.P2poolGui.Output = banner("Starting P2Pool: " + o.Path + " " + strings.Join(launch.Argv, " "))
	s.Telemetry.P2poolGui.Unlock()
	s.Telemetry.P2poolPriv.Lock()
	s.Telemetry.P2poolPriv.P2pool = telemetry.NewP2pool()
	s.Telemetry.P2poolPriv.Unlock()

	c, err := s.spawn(process.Options{
		Path: o.Path,
		Args: launch.Argv,
		Env:  []string{"NO_COLOR=true"},
	})
	if err != nil {
		return s.fail(fmt.Errorf("could not start %s: %w", o.Path, err))
	}

	s.Process.Lock()
	s.Process.LockedReset(process.Syncing)
	s.Process.Unlock()

	reader := &process.Reader{Process: s.Process, Payouts: s.Payouts}
	c.StartReader(reader.Run)
	s.log.Logf("started %s with pid %d", o.Path, c.Pid())

	run := &p2poolRun{
		child: c,
		api:   api,
		mini:  launch.Image.Mini,
	}
	utils.Go(func() {
		s.watchdog(ctx, run)
	})
	return nil
}

// Stop asks the watchdog to kill p2pool at its next tick.
func (s *P2pool) Stop() {
	requestStop(s.Process, process.SignalStop)
}

// Restart stops the running p2pool and starts it again once it is reaped, or starts it
// right away when it is not running.
func (s *P2pool) Restart(ctx context.Context, o P2poolOptions) error {
	if !requestStop(s.Process, process.SignalRestart) {
		return s.Start(ctx, o)
	}
	utils.Go(func() {
		startWhenReaped(ctx, s.Process, func() error {
			return s.Start(ctx, o)
		}, nil)
	})
	return nil
}

type p2poolRun struct {
	child child
	api   *p2poolapi.P2PoolApi
	mini  bool
	sync  process.SyncDetector
	tick  uint8
}

func (s *P2pool) watchdog(ctx context.Context, r *p2poolRun) {
	for {
		start := time.Now()
		if s.step(r) {
			return
		}
		if !utils.SleepRemaining(ctx, start, TickPeriod) {
			_ = terminate(r.child)
			_, status := r.child.Wait()
			r.child.Close()
			finish(s.Process, process.Dead, banner("P2Pool stopped on exit, status: "+status), s.appendGui)
			return
		}
	}
}

// step runs one watchdog tick and reports whether the run is over.
func (s *P2pool) step(r *p2poolRun) (done bool) {
	if r.child.Exited() {
		success, status := r.child.Wait()
		r.child.Close()
		state := process.Dead
		if !success {
			state = process.Failed
		}
		s.log.Logf("exited with %s", status)
		finish(s.Process, state, exitMessage(process.P2pool, s.Process.Uptime(), status), s.appendGui)
		return true
	}

	s.Process.Lock()
	signal := s.Process.LockedSignal()
	input := s.Process.LockedTakeInput()
	parse := s.Process.LockedTakeParse()
	state := s.Process.LockedState()
	uptime := time.Since(s.Process.LockedStart())
	s.Process.Unlock()

	if signal == process.SignalStop || signal == process.SignalRestart {
		if err := terminate(r.child); err != nil {
			s.log.Errorf("could not kill: %s", err)
		}
		_, status := r.child.Wait()
		r.child.Close()
		next := process.Dead
		if signal == process.SignalRestart {
			next = process.Waiting
		}
		s.log.Logf("stopped on %s signal", signal)
		finish(s.Process, next, exitMessage(process.P2pool, uptime, status), s.appendGui)
		return true
	}

	drainInput(s.log, r.child, input)

	s.Telemetry.P2poolGui.Lock()
	telemetry.CapOutput(&s.Telemetry.P2poolGui.Output, process.P2pool.String())
	s.Telemetry.P2poolGui.Unlock()

	if state == process.Syncing && r.sync.Scan(parse) {
		s.Process.Lock()
		if s.Process.LockedState() == process.Syncing {
			s.Process.LockedSetState(process.Alive)
			s.log.Logf("synchronized")
		}
		s.Process.Unlock()
	}

	local, localErr := r.api.Local()
	if localErr != nil {
		s.log.Noticef("could not read local stats: %s", localErr)
	}

	r.tick++
	var network *p2poolapi.Network
	var pool *p2poolapi.Pool
	if r.tick >= networkTicks {
		var networkErr, poolErr error
		network, networkErr = r.api.Network()
		pool, poolErr = r.api.Pool()
		if err := errors.Join(networkErr, poolErr); err != nil {
			s.log.Noticef("could not read network and pool stats: %s", err)
			network, pool = nil, nil
		}
	}

	priv := s.Telemetry.P2poolPriv
	priv.Lock()
	defer priv.Unlock()
	priv.Uptime = utils.NewHumanTime(uptime)
	priv.UpdateFromOutput(parse, uptime)
	if localErr == nil {
		priv.UpdateFromLocal(local)
	}
	if network != nil && pool != nil {
		priv.UpdateFromNetworkPool(network, pool, r.mini)
	}
	priv.Tick = r.tick
	if r.tick >= networkTicks {
		r.tick = 0
	}
	return false
}


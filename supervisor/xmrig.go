package supervisor

import (
	"bytes"
	"context"
	"fmt"
	"git.gammaspectra.live/P2Pool/gupax/args"
	"git.gammaspectra.live/P2Pool/gupax/config"
	"git.gammaspectra.live/P2Pool/gupax/process"
	"git.gammaspectra.live/P2Pool/gupax/telemetry"
	"git.gammaspectra.live/P2Pool/gupax/utils"
	xmrigapi "git.gammaspectra.live/P2Pool/gupax/xmrig/api"
	"path/filepath"
	"strings"
	"time"
)

const (
	// PassphraseDelay gives sudo time to print its prompt before the passphrase is written.
	PassphraseDelay = time.Millisecond * 100
	// OutputGate is how long the start of xmrig's output is dropped, it may echo the sudo prompt.
	OutputGate = time.Millisecond * 500
)

type XmrigOptions struct {
	Path   string
	Config config.Xmrig
}

// Xmrig supervises the CPU miner, launched through sudo where it is not already privileged.
type Xmrig struct {
	Process   *process.Process
	Telemetry *telemetry.Telemetry
	// Sudo holds the passphrase needed to stop an elevated xmrig where it cannot be signalled.
	Sudo *SudoState

	PassphraseDelay time.Duration

	spawn    spawner
	elevated func() bool
	log      utils.Logger
}

func NewXmrig(proc *process.Process, tel *telemetry.Telemetry) *Xmrig {
	return &Xmrig{
		Process:         proc,
		Telemetry:       tel,
		Sudo:            &SudoState{},
		PassphraseDelay: PassphraseDelay,
		spawn:           spawnChild,
		elevated:        IsElevated,
		log:             utils.Logger(process.Xmrig.String()),
	}
}

func (s *Xmrig) appendGui(text string) {
	s.Telemetry.XmrigGui.Lock()
	defer s.Telemetry.XmrigGui.Unlock()
	s.Telemetry.XmrigGui.Output += text
}

func (s *Xmrig) fail(err error) error {
	s.log.Errorf("%s", err)
	finish(s.Process, process.Failed, banner("XMRig failed to start: "+err.Error()), s.appendGui)
	return err
}

// Start spawns xmrig and its watchdog. pass is the sudo passphrase, it may be empty when no
// elevation is wanted or possible. Start takes ownership of pass and wipes it before returning.
func (s *Xmrig) Start(ctx context.Context, o XmrigOptions, pass []byte) error {
	defer clear(pass)

	if err := claim(s.Process); err != nil {
		return err
	}

	launch, err := args.BuildXmrig(o.Config)
	if err != nil {
		return s.fail(err)
	}
	s.Telemetry.XmrigImage.Set(launch.Image)

	cmd := launchCommand(o.Path, launch.Argv, len(pass) > 0, s.elevated())
	if !cmd.Elevated {
		s.log.Noticef("starting without elevated privileges, hashrate may be lower")
	}

	s.Telemetry.XmrigGui.Lock()
	s.Telemetry.XmrigGui.Xmrig = telemetry.NewXmrig()
	s.Telemetry.XmrigGui.Output = banner("Starting XMRig: " + o.Path + " " + strings.Join(launch.Argv, " "))
	s.Telemetry.XmrigGui.Unlock()
	s.Telemetry.XmrigPriv.Lock()
	s.Telemetry.XmrigPriv.Xmrig = telemetry.NewXmrig()
	s.Telemetry.XmrigPriv.Elevated = cmd.Elevated
	s.Telemetry.XmrigPriv.Unlock()

	c, err := s.spawn(process.Options{
		Path: cmd.Path,
		Args: cmd.Args,
		Env:  []string{"NO_COLOR=true"},
		Dir:  filepath.Dir(o.Path),
	})
	if err != nil {
		return s.fail(fmt.Errorf("could not start %s: %w", o.Path, err))
	}

	s.Process.Lock()
	s.Process.LockedReset(process.NotMining)
	s.Process.Unlock()

	reader := &process.Reader{Process: s.Process}
	if cmd.Sudo {
		reader.Gate = OutputGate
	}
	c.StartReader(reader.Run)

	if cmd.Sudo {
		select {
		case <-ctx.Done():
			_ = c.Kill()
			c.Close()
			return s.fail(ctx.Err())
		case <-time.After(s.PassphraseDelay):
		}
		err = c.WriteSecret(pass)
		clear(pass)
		if err != nil {
			_ = c.Kill()
			c.Close()
			return s.fail(fmt.Errorf("could not write sudo passphrase: %w", err))
		}
	}

	s.log.Logf("started %s with pid %d", o.Path, c.Pid())

	run := &xmrigRun{
		child: c,
		api:   xmrigapi.NewXmrigApi(launch.Image.ApiHost, launch.Image.ApiPort),
		sudo:  cmd.Sudo,
	}
	utils.Go(func() {
		s.watchdog(ctx, run)
	})
	return nil
}

// Stop asks the watchdog to kill xmrig at its next tick. pass is needed on platforms where an
// elevated xmrig can only be killed through sudo, Stop takes ownership of it.
func (s *Xmrig) Stop(pass []byte) {
	if !requestStop(s.Process, process.SignalStop) {
		clear(pass)
		return
	}
	s.Sudo.Set(pass)
}

// Restart is Stop followed by Start once the old xmrig is reaped. It takes ownership of pass.
func (s *Xmrig) Restart(ctx context.Context, o XmrigOptions, pass []byte) error {
	stopPass := bytes.Clone(pass)
	if !requestStop(s.Process, process.SignalRestart) {
		clear(stopPass)
		return s.Start(ctx, o, pass)
	}
	s.Sudo.Set(stopPass)
	utils.Go(func() {
		startWhenReaped(ctx, s.Process, func() error {
			return s.Start(ctx, o, pass)
		}, func() {
			clear(pass)
		})
	})
	return nil
}

type xmrigRun struct {
	child child
	api   *xmrigapi.XmrigApi
	// sudo is set when xmrig runs under sudo and may need it again to be killed.
	sudo bool
}

func (s *Xmrig) watchdog(ctx context.Context, r *xmrigRun) {
	defer s.Sudo.Wipe()
	for {
		start := time.Now()
		if s.step(ctx, r) {
			return
		}
		if !utils.SleepRemaining(ctx, start, TickPeriod) {
			s.kill(r)
			_, status := r.child.Wait()
			r.child.Close()
			finish(s.Process, process.Dead, banner("XMRig stopped on exit, status: "+status), s.appendGui)
			return
		}
	}
}

func (s *Xmrig) kill(r *xmrigRun) {
	var err error
	if r.sudo {
		err = stopElevated(r.child, s.Sudo.Take())
	} else {
		err = terminate(r.child)
	}
	if err != nil {
		s.log.Errorf("could not kill: %s", err)
	}
}

func (s *Xmrig) step(ctx context.Context, r *xmrigRun) (done bool) {
	if r.child.Exited() {
		success, status := r.child.Wait()
		r.child.Close()
		state := process.Dead
		if !success {
			state = process.Failed
		}
		s.log.Logf("exited with %s", status)
		finish(s.Process, state, exitMessage(process.Xmrig, s.Process.Uptime(), status), s.appendGui)
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
		s.kill(r)
		_, status := r.child.Wait()
		r.child.Close()
		next := process.Dead
		if signal == process.SignalRestart {
			next = process.Waiting
		}
		s.log.Logf("stopped on %s signal", signal)
		finish(s.Process, next, exitMessage(process.Xmrig, uptime, status), s.appendGui)
		return true
	}

	drainInput(s.log, r.child, input)

	s.Telemetry.XmrigGui.Lock()
	telemetry.CapOutput(&s.Telemetry.XmrigGui.Output, process.Xmrig.String())
	s.Telemetry.XmrigGui.Unlock()

	if state == process.Alive || state == process.NotMining {
		if mining, ok := process.XmrigMiningState(parse); ok && mining != state {
			s.Process.Lock()
			if current := s.Process.LockedState(); current == process.Alive || current == process.NotMining {
				s.Process.LockedSetState(mining)
				s.log.Logf("now %s", mining)
			}
			s.Process.Unlock()
		}
	}

	summary, err := r.api.Summary(ctx)
	if err != nil {
		s.log.Debugf("could not poll %s: %s", r.api.Url, err)
	}

	priv := s.Telemetry.XmrigPriv
	priv.Lock()
	defer priv.Unlock()
	priv.Uptime = utils.NewHumanTime(uptime)
	if err == nil {
		priv.UpdateFromSummary(summary)
	}
	return false
}

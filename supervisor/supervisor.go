package supervisor

import (
	"context"
	"errors"
	"fmt"
	"git.gammaspectra.live/P2Pool/gupax/process"
	"git.gammaspectra.live/P2Pool/gupax/utils"
	"io"
	"time"
)

// TickPeriod is the period of both watchdog loops.
const TickPeriod = time.Millisecond * 900

// killGrace is how long a terminated child has to exit before it is killed.
var killGrace = time.Second * 5

// restartPoll is how often a restart checks whether the old child is gone.
const restartPoll = time.Second

const separator = "----------------------------------------------------------------"

var ErrRunning = errors.New("already running")

// child is what a watchdog needs from a spawned process, process.Child in production.
type child interface {
	Pid() int
	StartReader(fn func(r io.Reader))
	WriteLine(line string) error
	WriteSecret(buf []byte) error
	Exited() bool
	Terminate() error
	Kill() error
	Wait() (success bool, status string)
	Close()
}

type spawner func(o process.Options) (child, error)

func spawnChild(o process.Options) (child, error) {
	c, err := process.Spawn(o)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func banner(text string) string {
	return separator + "\n[Gupax] " + time.Now().Format(time.DateTime) + " | " + text + "\n" + separator + "\n"
}

func exitMessage(name process.Name, uptime time.Duration, status string) string {
	return banner(fmt.Sprintf("%s stopped | Uptime: %s | Exit status: %s", name, utils.NewHumanTime(uptime), status))
}

// finish ends a run: state and signal are settled, whatever is left in pub goes into the
// UI-side buffer directly followed by message, as the helper no longer merges a stopped child.
func finish(proc *process.Process, state process.State, message string, appendGui func(text string)) {
	proc.Lock()
	defer proc.Unlock()
	proc.LockedSetState(state)
	proc.LockedSetSignal(process.SignalNone)
	_ = proc.LockedTakeParse()
	appendGui(proc.LockedTakePub() + message)
}

// claim moves a record that is not running into Middle for a new start.
func claim(proc *process.Process) error {
	proc.Lock()
	defer proc.Unlock()
	if proc.LockedIsAlive() || proc.LockedState() == process.Middle {
		return fmt.Errorf("%s: %w", proc.Name(), ErrRunning)
	}
	proc.LockedReset(process.Middle)
	return nil
}

// requestStop records signal for a running child and marks the record Middle.
// It returns false when there is no child to signal.
func requestStop(proc *process.Process, signal process.Signal) bool {
	proc.Lock()
	defer proc.Unlock()
	if !proc.LockedIsAlive() {
		return false
	}
	proc.LockedSetSignal(signal)
	proc.LockedSetState(process.Middle)
	return true
}

// startWhenReaped waits for the watchdog to tear the old child down, then starts again.
func startWhenReaped(ctx context.Context, proc *process.Process, start func() error, cancelled func()) {
	log := utils.Logger(proc.Name().String())
	for {
		switch proc.State() {
		case process.Waiting, process.Dead, process.Failed:
			if err := start(); err != nil {
				log.Errorf("restart failed: %s", err)
			}
			return
		}

		select {
		case <-ctx.Done():
			if cancelled != nil {
				cancelled()
			}
			return
		case <-time.After(restartPoll):
		}
	}
}

// drainInput writes every queued line, the rest of the batch is dropped on the first failure.
func drainInput(log utils.Logger, c child, input []string) {
	for i, line := range input {
		if err := c.WriteLine(line); err != nil {
			log.Errorf("could not write input, dropping %d lines: %s", len(input)-i, err)
			return
		}
	}
}

// terminate asks c to exit and kills it when it did not within killGrace.
func terminate(c child) error {
	if err := c.Terminate(); err != nil {
		return c.Kill()
	}
	deadline := time.Now().Add(killGrace)
	for !c.Exited() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond * 50)
	}
	if !c.Exited() {
		return c.Kill()
	}
	return nil
}

package process

import (
	"github.com/sasha-s/go-deadlock"
	"strings"
	"time"
)

type Name uint8

const (
	P2pool Name = iota
	Xmrig
)

func (n Name) String() string {
	switch n {
	case P2pool:
		return "P2Pool"
	case Xmrig:
		return "XMRig"
	default:
		return "Unknown"
	}
}

type State uint8

const (
	Dead State = iota
	// Middle is set while a start, stop or restart is being carried out.
	Middle
	// Syncing is p2pool only, running but not synchronized with the sidechain yet.
	Syncing
	// NotMining is xmrig only, running but without an active pool.
	NotMining
	Alive
	Failed
	// Waiting is set after a restart tore the child down, a new one is not started yet.
	Waiting
)

func (s State) String() string {
	switch s {
	case Dead:
		return "Dead"
	case Middle:
		return "Middle"
	case Syncing:
		return "Syncing"
	case NotMining:
		return "NotMining"
	case Alive:
		return "Alive"
	case Failed:
		return "Failed"
	case Waiting:
		return "Waiting"
	default:
		return "Unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type Signal uint8

const (
	SignalNone Signal = iota
	SignalStart
	SignalStop
	SignalRestart
)

func (s Signal) String() string {
	switch s {
	case SignalNone:
		return "None"
	case SignalStart:
		return "Start"
	case SignalStop:
		return "Stop"
	case SignalRestart:
		return "Restart"
	default:
		return "Unknown"
	}
}

// Process is the shared record of one supervised child.
// The supervisor and the UI mutate it, every access goes through its lock.
type Process struct {
	deadlock.Mutex

	name   Name
	state  State
	signal Signal
	start  time.Time
	input  []string
	// parse is scanned and cleared by the supervisor every tick.
	parse strings.Builder
	// pub is drained into the UI-side telemetry by the helper.
	pub strings.Builder
}

func New(name Name) *Process {
	return &Process{
		name:  name,
		state: Dead,
		start: time.Now(),
	}
}

func (p *Process) Name() Name {
	return p.name
}

// SetSignal records a signal for the supervisor to act on at its next tick.
func (p *Process) SetSignal(signal Signal) {
	p.Lock()
	defer p.Unlock()
	p.signal = signal
}

func (p *Process) PushInput(line string) {
	p.Lock()
	defer p.Unlock()
	p.input = append(p.input, line)
}

func (p *Process) IsAlive() bool {
	p.Lock()
	defer p.Unlock()
	return p.LockedIsAlive()
}

func (p *Process) IsWaiting() bool {
	p.Lock()
	defer p.Unlock()
	return p.LockedIsWaiting()
}

func (p *Process) State() State {
	p.Lock()
	defer p.Unlock()
	return p.state
}

func (p *Process) SetState(state State) {
	p.Lock()
	defer p.Unlock()
	p.state = state
}

// Uptime is the time since the child was last started.
func (p *Process) Uptime() time.Duration {
	p.Lock()
	defer p.Unlock()
	return time.Since(p.start)
}

// The Locked* methods expect the caller to hold the lock, for code that
// acquires several records in the global order.

func (p *Process) LockedIsAlive() bool {
	switch p.state {
	case Alive, Syncing, NotMining:
		return true
	}
	return false
}

func (p *Process) LockedIsWaiting() bool {
	switch p.state {
	case Middle, Waiting:
		return true
	}
	return false
}

func (p *Process) LockedState() State {
	return p.state
}

func (p *Process) LockedSetState(state State) {
	p.state = state
}

func (p *Process) LockedSignal() Signal {
	return p.signal
}

func (p *Process) LockedSetSignal(signal Signal) {
	p.signal = signal
}

func (p *Process) LockedStart() time.Time {
	return p.start
}

// LockedReset prepares the record for a new child.
func (p *Process) LockedReset(state State) {
	p.state = state
	p.signal = SignalNone
	p.start = time.Now()
	p.input = nil
	p.parse.Reset()
	p.pub.Reset()
}

// LockedTakeInput empties the input queue and returns what was in it.
func (p *Process) LockedTakeInput() []string {
	input := p.input
	p.input = nil
	return input
}

// LockedAppendOutput adds one line to both buffers.
func (p *Process) LockedAppendOutput(line string) {
	p.parse.WriteString(line)
	p.parse.WriteByte('\n')
	p.pub.WriteString(line)
	p.pub.WriteByte('\n')
}

// LockedTakeParse moves the parse buffer out.
func (p *Process) LockedTakeParse() string {
	s := p.parse.String()
	p.parse.Reset()
	return s
}

// LockedTakePub moves the pub buffer out.
func (p *Process) LockedTakePub() string {
	s := p.pub.String()
	p.pub.Reset()
	return s
}

// TakeParse is LockedTakeParse for callers not holding the lock.
func (p *Process) TakeParse() string {
	p.Lock()
	defer p.Unlock()
	return p.LockedTakeParse()
}

func (p *Process) AppendOutput(line string) {
	p.Lock()
	defer p.Unlock()
	p.LockedAppendOutput(line)
}

package telemetry

import (
	"git.gammaspectra.live/P2Pool/gupax/args"
	"git.gammaspectra.live/P2Pool/gupax/utils"
	"github.com/sasha-s/go-deadlock"
)

const (
	// MaxOutputBytes is the most output a UI-side buffer may keep.
	MaxOutputBytes = 500_000
	// OutputCeiling leaves room for the output one tick may add.
	OutputCeiling = MaxOutputBytes - 1_000
)

const separator = "----------------------------------------------------------------"

// CapOutput replaces buffer with a reset notice once it grew past OutputCeiling.
func CapOutput(buffer *string, name string) bool {
	if len(*buffer) <= OutputCeiling {
		return false
	}
	utils.Logger(name).Debugf("output reached %d bytes, resetting", len(*buffer))
	*buffer = separator + "\n[Gupax] " + name + " output was reset, it exceeded " + utils.FormatThousands(MaxOutputBytes) + " bytes\n" + separator + "\n"
	return true
}

type SharedP2pool struct {
	deadlock.Mutex
	P2pool
}

func NewSharedP2pool() *SharedP2pool {
	return &SharedP2pool{P2pool: NewP2pool()}
}

func (s *SharedP2pool) Snapshot() P2pool {
	s.Lock()
	defer s.Unlock()
	return s.P2pool
}

type SharedXmrig struct {
	deadlock.Mutex
	Xmrig
}

func NewSharedXmrig() *SharedXmrig {
	return &SharedXmrig{Xmrig: NewXmrig()}
}

func (s *SharedXmrig) Snapshot() Xmrig {
	s.Lock()
	defer s.Unlock()
	return s.Xmrig
}

type SharedSystem struct {
	deadlock.Mutex
	System
}

func (s *SharedSystem) Snapshot() System {
	s.Lock()
	defer s.Unlock()
	return s.System
}

// Image guards a launch image. It is only ever locked on its own.
type Image[T any] struct {
	lock  deadlock.Mutex
	value T
}

func (i *Image[T]) Get() T {
	i.lock.Lock()
	defer i.lock.Unlock()
	return i.value
}

func (i *Image[T]) Set(value T) {
	i.lock.Lock()
	defer i.lock.Unlock()
	i.value = value
}

// Telemetry holds both copies of each child's telemetry, the launch images
// and the system snapshot.
//
// Locks are taken in this order: System, P2poolGui, XmrigGui, P2poolPriv, XmrigPriv.
// The process records come before all of them.
type Telemetry struct {
	System *SharedSystem

	// P2poolGui and XmrigGui are read by the UI.
	P2poolGui *SharedP2pool
	XmrigGui  *SharedXmrig

	// P2poolPriv and XmrigPriv are written by the supervisors.
	P2poolPriv *SharedP2pool
	XmrigPriv  *SharedXmrig

	P2poolImage *Image[args.P2poolImage]
	XmrigImage  *Image[args.XmrigImage]
}

func New() *Telemetry {
	return &Telemetry{
		System:      &SharedSystem{System: NewSystem()},
		P2poolGui:   NewSharedP2pool(),
		XmrigGui:    NewSharedXmrig(),
		P2poolPriv:  NewSharedP2pool(),
		XmrigPriv:   NewSharedXmrig(),
		P2poolImage: &Image[args.P2poolImage]{},
		XmrigImage:  &Image[args.XmrigImage]{},
	}
}

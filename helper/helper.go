package helper

import (
	"context"
	"git.gammaspectra.live/P2Pool/gupax/process"
	"git.gammaspectra.live/P2Pool/gupax/telemetry"
	"git.gammaspectra.live/P2Pool/gupax/utils"
	"github.com/sasha-s/go-deadlock"
	"time"
)

// Period is how often the UI-side telemetry is refreshed.
const Period = time.Second

type sampler interface {
	Sample(previous telemetry.System) telemetry.System
}

// Helper moves supervisor output and telemetry over to the copies the UI reads.
//
// Every lock it takes follows one order: the helper itself, the P2Pool record, the XMRig
// record, then the telemetry locks in the order documented on telemetry.Telemetry.
// Anything else locking more than one of these must keep to a subset of that order.
type Helper struct {
	lock deadlock.Mutex

	P2pool    *process.Process
	Xmrig     *process.Process
	Telemetry *telemetry.Telemetry

	start   time.Time
	ticks   uint64
	sampler sampler
	log     utils.Logger
}

func New(p2pool, xmrig *process.Process, tel *telemetry.Telemetry) *Helper {
	start := time.Now()
	return &Helper{
		P2pool:    p2pool,
		Xmrig:     xmrig,
		Telemetry: tel,
		start:     start,
		sampler:   telemetry.NewSampler(start),
		log:       utils.Logger("Helper"),
	}
}

// Uptime is the time since the helper was created, which is roughly program uptime.
func (h *Helper) Uptime() time.Duration {
	h.lock.Lock()
	defer h.lock.Unlock()
	return time.Since(h.start)
}

// Ticks returns how many ticks ran so far.
func (h *Helper) Ticks() uint64 {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.ticks
}

// Run ticks until ctx is cancelled.
func (h *Helper) Run(ctx context.Context) {
	h.log.Logf("started")
	for range utils.ContextTick(ctx, Period) {
		h.Tick()
	}
	h.log.Logf("stopped after %d ticks", h.Ticks())
}

// Tick does a single refresh.
func (h *Helper) Tick() {
	// sampling reads /proc and friends, keep it outside of every lock
	system := h.sampler.Sample(h.Telemetry.System.Snapshot())

	h.lock.Lock()
	defer h.lock.Unlock()
	h.P2pool.Lock()
	defer h.P2pool.Unlock()
	h.Xmrig.Lock()
	defer h.Xmrig.Unlock()

	tel := h.Telemetry
	tel.System.Lock()
	defer tel.System.Unlock()
	tel.P2poolGui.Lock()
	defer tel.P2poolGui.Unlock()
	tel.XmrigGui.Lock()
	defer tel.XmrigGui.Unlock()
	tel.P2poolPriv.Lock()
	defer tel.P2poolPriv.Unlock()
	tel.XmrigPriv.Lock()
	defer tel.XmrigPriv.Unlock()

	h.ticks++
	tel.System.System = system

	if h.P2pool.LockedIsAlive() {
		tel.P2poolGui.Merge(&tel.P2poolPriv.P2pool, h.P2pool.LockedTakePub())
		telemetry.CapOutput(&tel.P2poolGui.Output, h.P2pool.Name().String())
	}
	if h.Xmrig.LockedIsAlive() {
		tel.XmrigGui.Merge(&tel.XmrigPriv.Xmrig, h.Xmrig.LockedTakePub())
		telemetry.CapOutput(&tel.XmrigGui.Output, h.Xmrig.Name().String())
	}
}

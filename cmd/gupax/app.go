package main

import (
	"context"
	"errors"
	"git.gammaspectra.live/P2Pool/gupax/config"
	"git.gammaspectra.live/P2Pool/gupax/helper"
	"git.gammaspectra.live/P2Pool/gupax/ledger"
	"git.gammaspectra.live/P2Pool/gupax/process"
	"git.gammaspectra.live/P2Pool/gupax/supervisor"
	"git.gammaspectra.live/P2Pool/gupax/telemetry"
	"git.gammaspectra.live/P2Pool/gupax/update"
	"git.gammaspectra.live/P2Pool/gupax/utils"
	"github.com/sasha-s/go-deadlock"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// shutdownTimeout bounds how long a stopped child may take to be reaped on exit.
const shutdownTimeout = time.Second * 15

// app wires the supervisors, the helper and the updater together. It is what the
// status API and the headless runner act on.
type app struct {
	dir string

	// stateLock guards state, it is never held together with another lock.
	stateLock deadlock.Mutex
	state     *config.State
	nodes     []config.Node

	ledger    *ledger.Ledger
	telemetry *telemetry.Telemetry
	p2pool    *supervisor.P2pool
	xmrig     *supervisor.Xmrig
	helper    *helper.Helper
	updater   *update.Updater
	events    *events

	// ctx outlives requests, children started through the API are bound to it.
	ctx    context.Context
	cancel context.CancelFunc

	log utils.Logger
}

func newApp(dir string, state *config.State, nodes []config.Node, l *ledger.Ledger) *app {
	tel := telemetry.New()
	p2poolProcess, xmrigProcess := process.New(process.P2pool), process.New(process.Xmrig)

	a := &app{
		dir:       dir,
		state:     state,
		nodes:     nodes,
		ledger:    l,
		telemetry: tel,
		p2pool:    supervisor.NewP2pool(p2poolProcess, tel, l),
		xmrig:     supervisor.NewXmrig(xmrigProcess, tel),
		helper:    helper.New(p2poolProcess, xmrigProcess, tel),
		updater:   update.New(version, update.NewVersions(state.Gupax.Versions)),
		log:       utils.Logger("Gupax"),
	}
	a.ctx, a.cancel = context.WithCancel(context.Background())
	a.events = newEvents(a.statusJson)
	return a
}

func (a *app) close() {
	a.cancel()
}

func (a *app) gupax() config.Gupax {
	a.stateLock.Lock()
	defer a.stateLock.Unlock()
	return a.state.Gupax
}

func (a *app) p2poolOptions() supervisor.P2poolOptions {
	a.stateLock.Lock()
	defer a.stateLock.Unlock()
	return supervisor.P2poolOptions{
		Path:    a.state.Gupax.P2poolPath,
		Config:  a.state.P2pool,
		Backups: a.nodes,
	}
}

func (a *app) xmrigOptions() supervisor.XmrigOptions {
	a.stateLock.Lock()
	defer a.stateLock.Unlock()
	return supervisor.XmrigOptions{
		Path:   a.state.Gupax.XmrigPath,
		Config: a.state.Xmrig,
	}
}

// update runs the updater and persists the versions it installed, also after a failure
// that already replaced some packages.
func (a *app) update() error {
	g := a.gupax()
	exe, err := os.Executable()
	if err != nil {
		return err
	}

	err = a.updater.Run(a.ctx, update.Options{
		GupaxPath:  exe,
		P2poolPath: g.P2poolPath,
		XmrigPath:  g.XmrigPath,
		Tor:        g.UpdateViaTor,
		TorProxy:   g.TorProxy,
	})

	a.stateLock.Lock()
	defer a.stateLock.Unlock()
	a.state.Gupax.Versions = a.updater.Versions.Config()
	if saveErr := config.Save(filepath.Join(a.dir, config.StateFile), a.state); saveErr != nil {
		a.log.Errorf("could not save versions: %s", saveErr)
	}
	return err
}

func (a *app) serve(bind string) (*http.Server, error) {
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return nil, err
	}
	server := &http.Server{
		ReadHeaderTimeout: time.Second * 2,
		Handler:           a.router(),
	}
	utils.Go(func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Errorf("api server: %s", err)
		}
	})
	a.log.Logf("api listening on %s", listener.Addr())
	return server, nil
}

// run starts everything and blocks until ctx is cancelled, both children are stopped
// before it returns. pass is the sudo passphrase for xmrig, run takes ownership of it.
func (a *app) run(ctx context.Context, autostart bool, pass []byte) error {
	defer clear(pass)
	defer a.close()

	helperCtx, stopHelper := context.WithCancel(context.Background())
	defer stopHelper()
	utils.Go(func() {
		a.helper.Run(helperCtx)
	})
	utils.Go(func() {
		a.publish(helperCtx)
	})

	g := a.gupax()
	if g.ApiBind != "" {
		server, err := a.serve(g.ApiBind)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	if autostart {
		if g.AutoUpdate {
			utils.Go(func() {
				if err := a.update(); err != nil {
					a.log.Errorf("auto update: %s", err)
				}
			})
		}
		if g.AutoP2pool {
			if err := a.p2pool.Start(a.ctx, a.p2poolOptions()); err != nil {
				a.log.Errorf("could not auto start P2Pool: %s", err)
			}
		}
		if g.AutoXmrig {
			err := a.xmrig.Start(a.ctx, a.xmrigOptions(), pass)
			pass = nil
			if err != nil {
				a.log.Errorf("could not auto start XMRig: %s", err)
			}
		}
	}

	<-ctx.Done()
	a.log.Logf("shutting down")
	a.p2pool.Stop()
	a.xmrig.Stop(nil)
	if !a.waitStopped(shutdownTimeout) {
		a.log.Noticef("children did not stop within %s, killing them", shutdownTimeout)
		a.cancel()
		a.waitStopped(shutdownTimeout)
	}
	return nil
}

// waitStopped reports whether both children left their running and transitional states in time.
func (a *app) waitStopped(timeout time.Duration) bool {
	stopped := func(p *process.Process) bool {
		return !p.IsAlive() && p.State() != process.Middle
	}
	deadline := time.Now().Add(timeout)
	for {
		if stopped(a.p2pool.Process) && stopped(a.xmrig.Process) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond * 100)
	}
}

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"git.gammaspectra.live/P2Pool/gupax/args"
	"git.gammaspectra.live/P2Pool/gupax/cmd/httputils"
	"git.gammaspectra.live/P2Pool/gupax/process"
	"git.gammaspectra.live/P2Pool/gupax/supervisor"
	"git.gammaspectra.live/P2Pool/gupax/telemetry"
	"git.gammaspectra.live/P2Pool/gupax/types"
	"git.gammaspectra.live/P2Pool/gupax/update"
	"git.gammaspectra.live/P2Pool/gupax/utils"
	"github.com/gorilla/mux"
	"io"
	"net/http"
	"strings"
)

const (
	maxPassphrase = 1024
	maxInput      = 64 * 1024
)

var (
	errNotRunning = errors.New("not running")
	errTooLarge   = errors.New("request body too large")
	errSort       = errors.New("sort must be one of latest, oldest, biggest, smallest")
)

type p2poolStatus struct {
	State     process.State    `json:"state"`
	Image     args.P2poolImage `json:"image"`
	Telemetry telemetry.P2pool `json:"telemetry"`
}

type xmrigStatus struct {
	State     process.State   `json:"state"`
	Image     args.XmrigImage `json:"image"`
	Telemetry telemetry.Xmrig `json:"telemetry"`
}

type systemStatus struct {
	Version     string           `json:"version"`
	Elevated    bool             `json:"elevated"`
	HelperTicks uint64           `json:"helper_ticks"`
	System      telemetry.System `json:"system"`
}

type status struct {
	P2pool p2poolStatus  `json:"p2pool"`
	Xmrig  xmrigStatus   `json:"xmrig"`
	System systemStatus  `json:"system"`
	Update update.Status `json:"update"`
}

type payoutsResult struct {
	Sort        string            `json:"sort"`
	Count       uint64            `json:"count"`
	Total       string            `json:"total"`
	TotalAtomic types.AtomicUnits `json:"total_atomic"`
	Log         string            `json:"log"`
}

type inputResult struct {
	Queued int `json:"queued"`
}

// Each status part locks one structure at a time.

func (a *app) p2poolStatus() p2poolStatus {
	return p2poolStatus{
		State:     a.p2pool.Process.State(),
		Image:     a.telemetry.P2poolImage.Get(),
		Telemetry: a.telemetry.P2poolGui.Snapshot(),
	}
}

func (a *app) xmrigStatus() xmrigStatus {
	return xmrigStatus{
		State:     a.xmrig.Process.State(),
		Image:     a.telemetry.XmrigImage.Get(),
		Telemetry: a.telemetry.XmrigGui.Snapshot(),
	}
}

func (a *app) systemStatus() systemStatus {
	return systemStatus{
		Version:     version,
		Elevated:    supervisor.IsElevated(),
		HelperTicks: a.helper.Ticks(),
		System:      a.telemetry.System.Snapshot(),
	}
}

func (a *app) status() status {
	return status{
		P2pool: a.p2poolStatus(),
		Xmrig:  a.xmrigStatus(),
		System: a.systemStatus(),
		Update: a.updater.Progress.Status(),
	}
}

func (a *app) statusJson() ([]byte, error) {
	return utils.MarshalJSON(a.status())
}

// publish pushes the status to websocket listeners until ctx is cancelled.
func (a *app) publish(ctx context.Context) {
	for range utils.ContextTick(ctx, EventsPeriod) {
		if a.events.Count() == 0 {
			continue
		}
		buf, err := a.statusJson()
		if err != nil {
			a.log.Errorf("could not encode status: %s", err)
			continue
		}
		a.events.Broadcast(buf)
	}
}

func (a *app) router() *mux.Router {
	router := mux.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			utils.Debugf("[API] %s %s", request.Method, utils.LogSafe(request.URL.Path))
			next.ServeHTTP(writer, request)
		})
	})

	router.HandleFunc("/api/status", func(writer http.ResponseWriter, request *http.Request) {
		_ = httputils.EncodeJson(request, writer, a.status())
	}).Methods(http.MethodGet)
	router.HandleFunc("/api/p2pool", func(writer http.ResponseWriter, request *http.Request) {
		_ = httputils.EncodeJson(request, writer, a.p2poolStatus())
	}).Methods(http.MethodGet)
	router.HandleFunc("/api/xmrig", func(writer http.ResponseWriter, request *http.Request) {
		_ = httputils.EncodeJson(request, writer, a.xmrigStatus())
	}).Methods(http.MethodGet)
	router.HandleFunc("/api/system", func(writer http.ResponseWriter, request *http.Request) {
		_ = httputils.EncodeJson(request, writer, a.systemStatus())
	}).Methods(http.MethodGet)

	router.HandleFunc("/api/payouts", a.getPayouts).Methods(http.MethodGet)
	router.HandleFunc("/api/payouts/entries", func(writer http.ResponseWriter, request *http.Request) {
		_ = httputils.StreamJsonSlice(request, writer, a.ledger.Entries())
	}).Methods(http.MethodGet)

	router.HandleFunc("/api/{name:p2pool|xmrig}/{action:start|stop|restart}", a.control).Methods(http.MethodPost)
	router.HandleFunc("/api/{name:p2pool|xmrig}/input", a.input).Methods(http.MethodPost)

	router.HandleFunc("/api/update", func(writer http.ResponseWriter, request *http.Request) {
		_ = httputils.EncodeJson(request, writer, a.updater.Progress.Status())
	}).Methods(http.MethodGet)
	router.HandleFunc("/api/update", a.startUpdate).Methods(http.MethodPost)

	router.Handle("/api/events", a.events).Methods(http.MethodGet)
	return router
}

func (a *app) getPayouts(writer http.ResponseWriter, request *http.Request) {
	sort := request.URL.Query().Get("sort")
	if sort == "" {
		sort = "latest"
	}
	views := a.ledger.Views()
	var view string
	switch sort {
	case "latest":
		view = views.Reverse
	case "oldest":
		view = views.Chronological
	case "biggest":
		view = views.ByAmountDesc
	case "smallest":
		view = views.ByAmountAsc
	default:
		_ = httputils.EncodeJsonError(request, writer, http.StatusBadRequest, errSort)
		return
	}

	total := a.ledger.TotalAmount()
	_ = httputils.EncodeJson(request, writer, payoutsResult{
		Sort:        sort,
		Count:       a.ledger.Count(),
		Total:       total.String(),
		TotalAtomic: total,
		Log:         view,
	})
}

// readPassphrase reads the whole body into a buffer of fixed size, so no partial copy is
// left behind by a growing read. The returned buffer is owned by the caller.
func readPassphrase(body io.Reader) ([]byte, error) {
	buf := make([]byte, maxPassphrase+1)
	defer clear(buf)
	n, err := io.ReadFull(body, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	} else if n > maxPassphrase {
		return nil, errTooLarge
	}
	return bytes.Clone(bytes.TrimRight(buf[:n], "\r\n")), nil
}

func (a *app) control(writer http.ResponseWriter, request *http.Request) {
	vars := mux.Vars(request)
	name, action := vars["name"], vars["action"]

	var err error
	if name == "p2pool" {
		switch action {
		case "start":
			err = a.p2pool.Start(a.ctx, a.p2poolOptions())
		case "stop":
			a.p2pool.Stop()
		case "restart":
			err = a.p2pool.Restart(a.ctx, a.p2poolOptions())
		}
	} else {
		var pass []byte
		if pass, err = readPassphrase(request.Body); err != nil {
			_ = httputils.EncodeJsonError(request, writer, http.StatusRequestEntityTooLarge, err)
			return
		}
		// the supervisor owns and wipes pass from here on
		switch action {
		case "start":
			err = a.xmrig.Start(a.ctx, a.xmrigOptions(), pass)
		case "stop":
			a.xmrig.Stop(pass)
		case "restart":
			err = a.xmrig.Restart(a.ctx, a.xmrigOptions(), pass)
		}
	}

	if errors.Is(err, supervisor.ErrRunning) {
		_ = httputils.EncodeJsonError(request, writer, http.StatusConflict, err)
		return
	} else if err != nil {
		_ = httputils.EncodeJsonError(request, writer, http.StatusInternalServerError, err)
		return
	}
	a.log.Logf("%s %s requested", name, action)

	if name == "p2pool" {
		_ = httputils.EncodeJson(request, writer, a.p2poolStatus())
	} else {
		_ = httputils.EncodeJson(request, writer, a.xmrigStatus())
	}
}

func (a *app) input(writer http.ResponseWriter, request *http.Request) {
	proc := a.p2pool.Process
	if mux.Vars(request)["name"] == "xmrig" {
		proc = a.xmrig.Process
	}

	buf, err := io.ReadAll(io.LimitReader(request.Body, maxInput+1))
	if err != nil {
		_ = httputils.EncodeJsonError(request, writer, http.StatusBadRequest, err)
		return
	} else if len(buf) > maxInput {
		_ = httputils.EncodeJsonError(request, writer, http.StatusRequestEntityTooLarge, errTooLarge)
		return
	}

	if !proc.IsAlive() {
		_ = httputils.EncodeJsonError(request, writer, http.StatusConflict, fmt.Errorf("%s: %w", proc.Name(), errNotRunning))
		return
	}

	var result inputResult
	for _, line := range strings.Split(strings.TrimRight(string(buf), "\r\n"), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		proc.PushInput(line)
		result.Queued++
	}
	_ = httputils.EncodeJson(request, writer, result)
}

func (a *app) startUpdate(writer http.ResponseWriter, request *http.Request) {
	if a.updater.Progress.Status().Updating {
		_ = httputils.EncodeJsonError(request, writer, http.StatusConflict, update.ErrInProgress)
		return
	}
	utils.Go(func() {
		if err := a.update(); err != nil {
			a.log.Errorf("update: %s", err)
		}
	})
	writer.Header().Set("location", "/api/update")
	_ = httputils.EncodeJson(request, writer, a.updater.Progress.Status())
}

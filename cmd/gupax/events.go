package main

import (
	"context"
	"git.gammaspectra.live/P2Pool/gupax/utils"
	"github.com/sasha-s/go-deadlock"
	"net/http"
	"nhooyr.io/websocket"
	"slices"
	"sync/atomic"
	"time"
)

// EventsPeriod is how often the full status is pushed to websocket listeners.
const EventsPeriod = time.Second

type listener struct {
	ListenerId uint64
	Write      func(buf []byte)
	Context    context.Context
	Cancel     func()
}

// events keeps the attached websocket clients.
type events struct {
	lock      deadlock.RWMutex
	counter   atomic.Uint64
	listeners []*listener

	// current renders what a client receives as soon as it attaches.
	current func() ([]byte, error)
	log     utils.Logger
}

func newEvents(current func() ([]byte, error)) *events {
	return &events{
		current: current,
		log:     utils.Logger("WS"),
	}
}

func (e *events) Count() int {
	e.lock.RLock()
	defer e.lock.RUnlock()
	return len(e.listeners)
}

func (e *events) Broadcast(buf []byte) {
	e.lock.RLock()
	listeners := slices.Clone(e.listeners)
	e.lock.RUnlock()

	for _, l := range listeners {
		if l.Context.Err() != nil {
			continue
		}
		l.Write(buf)
	}
}

func (e *events) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	requestTime := time.Now()
	c, err := websocket.Accept(writer, request, nil)
	if err != nil {
		e.log.Errorf("could not accept: %s", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "closing")

	listenerId := e.counter.Add(1)
	defer func() {
		e.lock.Lock()
		defer e.lock.Unlock()
		if i := slices.IndexFunc(e.listeners, func(l *listener) bool {
			return l.ListenerId == listenerId
		}); i != -1 {
			e.listeners = slices.Delete(e.listeners, i, i+1)
		}
		e.log.Logf("client %d detached after %.02f seconds", listenerId, time.Since(requestTime).Seconds())
	}()

	ctx, cancel := context.WithCancel(request.Context())
	defer cancel()
	// c.CloseRead cancels ctx once the client goes away
	ctx = c.CloseRead(ctx)

	l := &listener{
		ListenerId: listenerId,
		Write: func(buf []byte) {
			ctx2, cancel2 := context.WithTimeout(ctx, time.Second*5)
			defer cancel2()
			if c.Write(ctx2, websocket.MessageText, buf) != nil {
				cancel()
			}
		},
		Context: ctx,
		Cancel:  cancel,
	}

	if buf, err := e.current(); err == nil {
		l.Write(buf)
	}

	func() {
		e.lock.Lock()
		defer e.lock.Unlock()
		e.listeners = append(e.listeners, l)
		e.log.Logf("client %d attached", listenerId)
	}()

	<-ctx.Done()
}

package utils

import (
	"runtime/debug"
	"sync/atomic"
)

type PanicHandler func(value any, stack []byte)

var panicHandler atomic.Pointer[PanicHandler]

// SetPanicHandler installs what Recover calls with a recovered panic. Without one the
// panic is raised again.
func SetPanicHandler(handler PanicHandler) {
	if handler == nil {
		panicHandler.Store(nil)
		return
	}
	panicHandler.Store(&handler)
}

// Recover must be deferred directly.
func Recover() {
	value := recover()
	if value == nil {
		return
	}
	if handler := panicHandler.Load(); handler != nil {
		(*handler)(value, debug.Stack())
		return
	}
	panic(value)
}

// Go runs fn on its own goroutine, a panic in it goes to the panic handler.
func Go(fn func()) {
	go func() {
		defer Recover()
		fn()
	}()
}

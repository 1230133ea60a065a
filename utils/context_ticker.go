package utils

import (
	"context"
	"time"
)

func ContextTick(ctx context.Context, d time.Duration) <-chan time.Time {
	ticker := time.NewTicker(d)
	c := make(chan time.Time, 1)
	go func() {
		defer close(c)
		defer ticker.Stop()
		defer Recover()
		for {
			select {
			case <-ctx.Done():
				return
			case tick := <-ticker.C:
				select {
				case c <- tick:
				default:
					// consumer is behind, drop this tick
				}
			}
		}
	}()
	return c
}

// SleepRemaining sleeps for whatever is left of period since start.
// Returns false if ctx was cancelled first.
func SleepRemaining(ctx context.Context, start time.Time, period time.Duration) bool {
	left := period - time.Since(start)
	if left <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(left)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

package utils

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// SplitWork runs do for every index in [0, workSize) over at most routines goroutines.
// A negative routines means one per CPU. A routine stops at its first error, the
// returned slice holds the error of each routine.
func SplitWork(routines int, workSize uint64, do func(workIndex uint64, routineIndex int) error) []error {
	if routines < 0 {
		routines = max(runtime.NumCPU(), 4)
	}

	if workSize < uint64(routines) {
		routines = int(workSize)
	}

	var counter atomic.Uint64

	results := make([]error, routines)

	var wg sync.WaitGroup
	for routineIndex := 0; routineIndex < routines; routineIndex++ {
		wg.Add(1)
		go func(routineIndex int) {
			defer wg.Done()
			defer Recover()
			var err error
			for {
				workIndex := counter.Add(1)
				if workIndex > workSize {
					return
				}

				if err = do(workIndex-1, routineIndex); err != nil {
					results[routineIndex] = err
					return
				}
			}
		}(routineIndex)
	}
	wg.Wait()

	return results
}

// Parallel runs do once per index in [0, n) each in its own goroutine and returns
// the error of every call in index order.
func Parallel(n int, do func(i int) error) []error {
	results := make([]error, n)
	SplitWork(n, uint64(n), func(workIndex uint64, _ int) error {
		results[workIndex] = do(int(workIndex))
		return nil
	})
	return results
}

package go_func_utils

import (
	"log"
	"runtime/debug"
	"sync"
)

// SafeGo runs fn on a new goroutine. A panic is written to logger with its
// stack before being re-raised, since the terminal dashboard owns stdout and
// would otherwise swallow it.
func SafeGo(logger *log.Logger, fn func()) {
	go func() {
		defer recoverAndLog(logger)
		fn()
	}()
}

// SafeGoGroup is SafeGo tracked by wg. wg.Add is called before the goroutine
// starts so a following wg.Wait always observes it.
func SafeGoGroup(logger *log.Logger, wg *sync.WaitGroup, fn func()) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer recoverAndLog(logger)
		fn()
	}()
}

func recoverAndLog(logger *log.Logger) {
	if r := recover(); r != nil {
		if logger != nil {
			logger.Printf("PANIC: %v\n%s", r, debug.Stack())
		}
		panic(r)
	}
}

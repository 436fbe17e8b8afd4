// Package monitoring holds the process-wide error reporter. Components call
// the package functions; the service installs a concrete Monitor at startup.
package monitoring

import (
	"sync"
	"time"
)

type Monitor interface {
	CaptureException(err error, tags map[string]string)
	// Recover reports a panic in flight and re-panics. Use it deferred.
	Recover()
	Flush(timeout time.Duration)
}

type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) Recover()                                  {}
func (NopMonitor) Flush(time.Duration)                       {}

var (
	mu      sync.RWMutex
	current Monitor = NopMonitor{}
)

// Init installs m and returns a function restoring the previous monitor.
// A nil m is ignored.
func Init(m Monitor) (restore func()) {
	mu.Lock()
	defer mu.Unlock()
	prev := current
	if m != nil {
		current = m
	}
	return func() { Init(prev) }
}

func get() Monitor {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

func CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	get().CaptureException(err, tags)
}

func Recover() { get().Recover() }

func Flush(d time.Duration) { get().Flush(d) }

// Go runs fn on a new goroutine that reports panics before crashing.
func Go(fn func()) {
	go func() {
		defer Recover()
		fn()
	}()
}

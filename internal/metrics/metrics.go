// Package metrics is the minimal instrumentation facade for the loader.
// Core code records counters and histograms against whatever Backend is
// installed; the default backend discards everything, so conversion code
// never checks whether metrics are enabled.
package metrics

import "sync/atomic"

// Labels attach dimensions to a single observation.
type Labels map[string]string

// Backend receives every observation. Implementations must be safe for
// concurrent use.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// nopBackend drops everything.
type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}

var backend atomic.Value // holds Backend

func init() {
	backend.Store(Backend(nopBackend{}))
}

// SetBackend installs b as the process-wide backend. Passing nil restores
// the discarding default.
func SetBackend(b Backend) {
	if b == nil {
		b = nopBackend{}
	}
	backend.Store(b)
}

func current() Backend {
	return backend.Load().(Backend)
}

// IncCounter adds delta to the named counter.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram records one sample of the named histogram.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush pushes buffered observations out of a backend that supports it.
// Backends without a Flush method make this a no-op.
func Flush() error {
	if f, ok := current().(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

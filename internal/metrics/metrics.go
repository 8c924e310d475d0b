// Package metrics defines the backend seam the import engine emits
// through. The engine depends only on Backend; concrete backends (the
// Datadog one, or the nop default) decide how series are buffered and
// shipped.
package metrics

import "sync"

// Metric names the import engine emits.
//
// RowsTotal carries kind (imported or failed) and table labels.
// BatchesTotal carries a table label. DurationSeconds carries status
// (ok or error) and table labels; values are seconds.
const (
	RowsTotal       = "import_rows_total"
	BatchesTotal    = "import_batches_total"
	DurationSeconds = "import_duration_seconds"
)

// Labels tag one observation.
type Labels map[string]string

// Backend receives the engine's observations. Implementations must be
// safe for concurrent use.
type Backend interface {
	// IncCounter adds delta to a monotonically increasing series.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records one sample of a distribution.
	ObserveHistogram(name string, value float64, labels Labels)
}

// Flusher is implemented by backends that buffer observations and can
// push them on demand.
type Flusher interface {
	Flush() error
}

// Nop returns a backend that drops every observation.
func Nop() Backend { return nopBackend{} }

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs the process-wide backend. Passing nil restores
// the nop backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		b = nopBackend{}
	}
	backend = b
}

// Default returns the installed process-wide backend.
func Default() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush pushes buffered observations on the installed backend, when it
// supports that. Backends without buffering make this a no-op.
func Flush() error {
	if f, ok := Default().(Flusher); ok {
		return f.Flush()
	}
	return nil
}

// Package sim wraps the simulator telemetry SDK behind a small Source
// interface and owns the connection state of one source instance.
package sim

// Source abstracts the simulator SDK client. Implementations are not
// required to be safe for concurrent use; Provider serializes access.
type Source interface {
	// Startup attaches to the simulator and reports success.
	Startup() bool
	// Shutdown releases the SDK handle.
	Shutdown()
	// IsConnected reports whether the simulator is still publishing data.
	IsConnected() bool
	// Freeze pins the latest variable buffer so a batch of Get calls sees
	// one consistent tick.
	Freeze()
	// Get returns a scalar, a slice, or ok=false when the variable is
	// unavailable.
	Get(name string) (any, bool)
}

// NullSource never connects. It stands in for the SDK when no simulator
// is available on this host.
type NullSource struct{}

func (NullSource) Startup() bool          { return false }
func (NullSource) Shutdown()              {}
func (NullSource) IsConnected() bool      { return false }
func (NullSource) Freeze()                {}
func (NullSource) Get(string) (any, bool) { return nil, false }

var _ Source = NullSource{}

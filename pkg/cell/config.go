package cell

import (
	"log/slog"
	"reflect"
)

// DevMode enables development-time checks for invalid graph operations.
// When true:
//   - Expression computes are guarded against cycles (panic with ErrCycle)
//   - Writes issued from inside a running getter panic
//   - Computed values containing funcs or channels log a warning, since
//     reads performed inside them escape dependency tracking
//
// When false (production) all three checks are skipped on the hot path.
//
// Set this at application startup:
//
//	func main() {
//	    cell.DevMode = os.Getenv("CELLGRAPH_DEV") == "1"
//	    // ...
//	}
var DevMode = false

// DebugMode enables debug logging of transaction boundaries.
// When true, TxNamed logs the start and end of each named transaction.
// This should be set at startup and not changed during runtime.
var DebugMode bool

// opaqueValueDepth bounds the reflective walk performed by the DevMode
// opaque-value diagnostic.
const opaqueValueDepth = 3

// warnIfOpaque logs a warning when a computed value contains function or
// channel values. A closure can capture reactive reads that run after the
// compute finished, invisibly to the tracker; surfacing them early saves a
// confusing stale-value hunt later. DevMode only, never fatal.
func warnIfOpaque(name string, v any) {
	if kind := findOpaque(reflect.ValueOf(v), opaqueValueDepth); kind != "" {
		slog.Warn("cell: computed value contains an untrackable component; reads inside it will not register dependencies",
			"expr", name, "kind", kind)
	}
}

// findOpaque returns the kind of the first func or channel found in v, or
// "" if none is reachable within the depth budget.
func findOpaque(v reflect.Value, depth int) string {
	if !v.IsValid() || depth < 0 {
		return ""
	}
	switch v.Kind() {
	case reflect.Func, reflect.Chan:
		return v.Kind().String()
	case reflect.Interface, reflect.Pointer:
		if !v.IsNil() {
			return findOpaque(v.Elem(), depth-1)
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if kind := findOpaque(v.Index(i), depth-1); kind != "" {
				return kind
			}
		}
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			if kind := findOpaque(iter.Value(), depth-1); kind != "" {
				return kind
			}
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if kind := findOpaque(v.Field(i), depth-1); kind != "" {
				return kind
			}
		}
	}
	return ""
}

// TxDone reports the outcome of a settled transaction to an
// Instrumentation implementation: how many expressions the propagation
// pass visited and how many the collector reclaimed.
type TxDone func(visited, reclaimed int)

// Instrumentation receives engine events. Implementations live outside
// this package (see pkg/instrument for Prometheus and OpenTelemetry
// backends); the engine itself stays dependency-free.
type Instrumentation interface {
	// TxStart is called when an outermost transaction begins settling.
	// The returned TxDone is called exactly once when it finishes.
	TxStart(name string) TxDone

	// ComputeObserved is called after every expression compute.
	// changed is false when the equality cutoff suppressed propagation.
	ComputeObserved(changed bool)

	// ReclaimObserved is called for every reclaimed expression.
	ReclaimObserved()
}

// instrumentation is the installed backend, nil by default.
// Set once at startup; not synchronized.
var instrumentation Instrumentation

// SetInstrumentation installs an instrumentation backend for the engine.
// Pass nil to remove it. Call at startup, before any graph activity.
func SetInstrumentation(i Instrumentation) {
	instrumentation = i
}

func observeCompute(changed bool) {
	if instrumentation != nil {
		instrumentation.ComputeObserved(changed)
	}
}

func observeReclaim() {
	if instrumentation != nil {
		instrumentation.ReclaimObserved()
	}
}

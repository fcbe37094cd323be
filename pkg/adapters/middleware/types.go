// Package middleware decorates trail sinks: payloads can be redacted before
// they leave the process, or sealed with AES-GCM at rest.
package middleware

import "github.com/aretw0/canopy/pkg/ports"

// Middleware allows wrapping a TrailSink to add behavior.
type Middleware func(ports.TrailSink) ports.TrailSink

// Chain applies mws to sink so that the first middleware sees payloads first.
func Chain(sink ports.TrailSink, mws ...Middleware) ports.TrailSink {
	for i := len(mws) - 1; i >= 0; i-- {
		sink = mws[i](sink)
	}
	return sink
}

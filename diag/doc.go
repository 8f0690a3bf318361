// Package diag publishes control loop state for observation while the device
// runs.
//
// SerialReporter writes compact comma-separated lines sized for a 9600 baud
// serial console. Hub streams every Status as JSON to websocket viewers:
//
//	hub, err := diag.NewHub()
//	loop.OnCycle(hub.Broadcast)
//	go hub.Serve(ctx, "127.0.0.1:8080")
//
// Neither is required for the device to function; a failing writer or a slow
// viewer loses reports, never control cycles.
package diag

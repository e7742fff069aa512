// Package appsync owns the device side of the key-value synchronization protocol.
//
// Ownership boundary:
//   - single outstanding refresh request (Idle -> RequestPending -> Idle)
//   - inbound dictionary decode, shadow apply and change notification
//   - failure classification and diagnostics
//
// Lifecycle:
//   - NewEngine attaches the engine to its transport as the Sink.
//   - Request submits the refresh marker; the periodic refresh timer owned by the
//     caller is the only retry mechanism.
//   - Inbound messages are applied whether or not a request is pending.
//
// The engine does not own the shadow store or the transport; the app controller
// constructs and tears both down.
package appsync

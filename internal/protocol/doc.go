// Package protocol implements the wire primitives shared by Controllers and Clients.
//
// Both peers exchange a single message shape, the Envelope:
//
//	{"name": "ping", "args": [42]}                 // event
//	{"name": "getValue", "args": ["01J..."]}       // request: trailing arg is the correlation id
//	{"promiseId": "01J...", "args": ["value"]}     // resolution
//
// The package provides:
//   - Envelope encoding, decoding and the protocol-reserved event names
//   - The pending-request table that pairs requests with their resolution exactly once
//   - Listener tables keyed by event name (last registration wins, Off is idempotent)
//   - Origin normalization and the immutable origin allowlist
//
// Example usage:
//
//	pending := protocol.NewPending()
//	id, wait := pending.Register()
//	data, _ := protocol.NewRequest("getValue", id).Marshal()
//	window.PostMessage(ctx, data, origin)
//
//	// on the read loop
//	env, err := protocol.Parse(event.Data)
//	if err == nil && env.IsResolution() {
//	    pending.Resolve(env.PromiseID, env.Args)
//	}
//
//	args := <-wait
package protocol

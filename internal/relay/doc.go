// Package relay implements alert routing and per-connection session handling.
//
// The Router computes the delivery set for each inbound alert (keyed or
// legacy path) and writes fire-and-forget to each admitted connection. The
// Session owns one WebSocket connection: a read pump processes the client's
// messages in arrival order, and a per-connection writer goroutine drains a
// buffered send channel so a slow peer never stalls delivery to others.
package relay

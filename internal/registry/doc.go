// Package registry tracks live subscriber connections and their routing
// indexes.
//
// The Registry owns three views over the same connections: the primary
// id-keyed map, a webhook-id index, and the legacy broadcast set. All index
// maintenance happens inside the Registry's mutation methods so the
// invariants (indexed implies registered, at most one index per connection,
// no empty buckets) hold after every call. A single mutex guards the maps;
// per-connection mutable fields carry their own lock so the router can read
// them without holding the registry lock.
package registry

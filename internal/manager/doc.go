// Package manager owns the model lifecycle between the HTTP surface and
// the engines: the catalog, lazy instance loading, per-instance
// admission, the memory budget with LRU eviction, drain-before-unload
// and the lifecycle event stream.
//
// Files:
//   - manager.go: Manager, configuration, construction and shutdown
//   - instance.go: instance states and the admission channels
//   - ensure.go: lazy loading with single-flight deduplication
//   - admission.go: bounded queue plus a single generation slot
//   - generate.go: the request pipeline over an admitted instance
//   - rescache.go: cache for seeded, non-streaming results
//   - evict.go: LRU eviction against the memory budget
//   - unload.go: drain, cancel, release
//   - status.go: aggregate status report
//   - lru_persist.go: usage state file and warm start
//   - events.go, eventpub_memory.go: lifecycle events
//   - errors.go: typed errors shared with the HTTP layer
package manager

// Package memory provides core.MemoryStore implementations used to retain
// research findings across turns of a run. The in-memory store offers
// session scoped key/value memory plus keyword searchable finding storage.
package memory

package skein

// WatcherID identifies a watcher registered with the evaluation queue.
// IDs are allocated monotonically by the runtime and never reused.
type WatcherID int

// PathID identifies a path tuple in the global path allocator. The same
// attribute tuple yields the same PathID across indexer instances.
type PathID int

// ElementID identifies a data element inside one indexer.
type ElementID int

// QueryID identifies a registered query calculation node.
type QueryID int

// ValueID identifies one selection value registered by a query.
type ValueID int

// NoElement is the ElementID used where a parent or range dominator is absent.
const NoElement ElementID = -1

// NoPath is the PathID used where a parent path is absent.
const NoPath PathID = -1

// Package flash stores named binary blobs on behalf of the persistence
// manager, the way a unit's non-volatile storage partition would.
//
// Blobs are addressed by namespace and key. The package ships two
// implementations: FileStore keeps each blob in its own file under a root
// directory and replaces it atomically on write, and MemStore keeps blobs
// in memory with injectable faults and latency for tests.
//
// A store must be mounted before use. Mounting is where a real partition
// would be initialized or recovered; FileStore mirrors that by creating
// its root directory and replacing an unusable one.
package flash

/*
Package willow provides a persistent key-value database backed by a single
append-only log file per instance.

Architecture:

  - Every mutation is appended to the log as a checksummed record. An
    in-memory key directory maps each key to the offset of its latest
    record, so reads need at most one disk access.
  - On open the log is replayed to rebuild the key directory. A torn tail
    left behind by a crash is detected via the per-record checksum and
    truncated, everything before it stays intact.
  - Overwritten and deleted records stay in the file as dead bytes until
    Trim rewrites the log with only the live records and atomically swaps
    the files.
  - Values can optionally be encrypted with AES-256-GCM. The cipher key is
    derived from a short user key (at most 16 bytes) and a per-file salt,
    ReKey re-encrypts the whole log under a new key.
  - A small LRU value cache serves hot reads without touching the disk. It
    can be dropped at any time with ClearCache.

Instances are registered by id: Open with an id that is already open returns
the existing instance. In ModeMultiProcess several processes may share one
log file, coordinated through advisory file locks.

Durability is configurable: SyncWrites fsyncs after every append, otherwise
a background goroutine flushes at a fixed interval.

Usage:

	database, err := willow.Open(willow.DefaultOptions("settings"))
	if err != nil {
		log.Fatal(err)
	}
	defer database.Close()

	_ = database.Set("theme", []byte("dark"))
	value, loaded, _ := database.Get("theme")
*/
package willow

package db

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplWillow Implementation = "willow"
)

// Feature represents database features as bit flags
type Feature uint64

const (
	FeatureSet        Feature = 1 << iota // Support for Set operations
	FeatureSetIfUnset                     // Support for SetIfUnset operations
	FeatureGet                            // Support for Get operations
	FeatureHas                            // Support for Has operations
	FeatureDelete                         // Support for Delete operations
	FeatureKeys                           // Support for listing all keys
	FeatureClear                          // Support for clearing all entries
	FeatureTrim                           // Support for log compaction
	FeatureReKey                          // Support for changing the encryption key
	FeatureSync                           // Support for explicit durability control
	FeaturePersist                        // Data survives a Close/Open cycle
)

func (f Feature) String() string {
	switch f {
	case FeatureSet:
		return "Set"
	case FeatureSetIfUnset:
		return "SetIfUnset"
	case FeatureGet:
		return "Get"
	case FeatureHas:
		return "Has"
	case FeatureDelete:
		return "Delete"
	case FeatureKeys:
		return "Keys"
	case FeatureClear:
		return "Clear"
	case FeatureTrim:
		return "Trim"
	case FeatureReKey:
		return "ReKey"
	case FeatureSync:
		return "Sync"
	case FeaturePersist:
		return "Persist"
	default:
		return "Unknown"
	}
}

type DatabaseInfo struct {
	// SizeBytes is the number of bytes actually used by the log
	// (header plus records). This is the MMKV "actualSize" notion.
	SizeBytes uint64 `json:"size_bytes"`
	// TotalSizeBytes is the size of the backing file on disk.
	TotalSizeBytes    uint64         `json:"total_size_bytes"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// KVDB defines an interface for persistent key-value database implementations.
// Implementations own a single backing file per instance and must recover
// their in-memory state from it on open. Implementations can vary in their
// feature support, which can be queried with SupportsFeature.
type KVDB interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Set inserts or updates an entry with the given key and value.
	// If the key already exists, the old value is overwritten.
	Set(key string, value []byte) (err error)

	// SetIfUnset inserts an entry only if the key does not already hold a
	// value. The boolean return value reports whether the entry was inserted.
	SetIfUnset(key string, value []byte) (inserted bool, err error)

	// Delete removes an entry with the specified key.
	// Deleting a missing key is not an error.
	Delete(key string) (err error)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get retrieves the value for an exact key.
	// The boolean return value indicates whether a value for the key was found.
	Get(key string) (value []byte, loaded bool, err error)

	// Has checks whether a key exists in the database.
	Has(key string) (loaded bool)

	// Keys returns all keys currently present, in no particular order.
	Keys() (keys []string)

	// --------------------------------------------------------------------------
	// Maintenance Operations
	// --------------------------------------------------------------------------

	// Clear removes all entries and resets the backing file to an empty log.
	Clear() (err error)

	// Trim rewrites the log so that only live records remain, reclaiming the
	// space held by overwritten and deleted records. Trim also drops the
	// in-memory value cache.
	Trim() (err error)

	// ReKey re-encrypts the whole log with the given key. An empty key removes
	// encryption. The key length contract of the implementation applies.
	ReKey(newKey []byte) (err error)

	// ClearCache drops the in-memory value cache. The key directory stays
	// intact, subsequent reads are served from disk again.
	ClearCache()

	// Sync flushes all pending writes to stable storage.
	Sync() (err error)

	// --------------------------------------------------------------------------
	// Size Reporting
	// --------------------------------------------------------------------------

	// ActualSize returns the number of bytes used by the log (header plus
	// records). This is the value surfaced as "size" to clients.
	ActualSize() (size uint64)

	// TotalSize returns the size of the backing file on disk.
	TotalSize() (size uint64, err error)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Returns true if the feature is supported, false otherwise.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// Close flushes and closes the database and releases its file lock.
	Close() (err error)
}

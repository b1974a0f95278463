package willow

import (
	"bufio"
	"crypto/cipher"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/ValentinKolb/mKV/lib/db"
	"github.com/ValentinKolb/mKV/lib/db/engines/willow/internal"
	"github.com/ValentinKolb/mKV/lib/db/util"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sys/unix"
)

// --------------------------------------------------------------------------
// Constants and Metrics
// --------------------------------------------------------------------------

// Constants for database behavior and structure
const (
	fileSuffix          = ".kv"                   // Log file name suffix
	compactSuffix       = ".compact"              // Temp file suffix used during Trim/ReKey
	defaultSyncInterval = 100 * time.Millisecond  // Default flush interval in async mode
	defaultCacheBytes   = 4 * 1024 * 1024         // Default value cache capacity
	trimDeadBytesMin    = 64 * 1024               // Below this dead volume a trim is never suggested
)

var (
	metricAppends        = metrics.NewCounter("willow_appends_total")
	metricReplayedRecs   = metrics.NewCounter("willow_replayed_records_total")
	metricTruncatedTails = metrics.NewCounter("willow_truncated_tails_total")
	metricTrims          = metrics.NewCounter("willow_trims_total")
	metricCacheHits      = metrics.NewCounter("willow_cache_hits_total")
	metricCacheMisses    = metrics.NewCounter("willow_cache_misses_total")
)

var (
	// ErrEmptyID is returned when an instance is opened without an id.
	ErrEmptyID = errors.New("instance id must not be empty")
	// ErrKeyTooLong is returned when the encryption key exceeds 16 bytes.
	ErrKeyTooLong = internal.ErrKeyTooLong
	// ErrKeyRequired is returned when an encrypted log is opened without a key.
	ErrKeyRequired = errors.New("log is encrypted but no encryption key was provided")
	// ErrNotEncrypted is returned when a key is provided for a plaintext log.
	ErrNotEncrypted = errors.New("log is not encrypted but an encryption key was provided")
	// ErrClosed is returned for operations on a closed instance.
	ErrClosed = errors.New("database is closed")
)

// --------------------------------------------------------------------------
// Options and Instance Registry
// --------------------------------------------------------------------------

// OpenMode selects the process sharing model of an instance.
type OpenMode uint8

const (
	// ModeSingleProcess takes an exclusive file lock for the lifetime of the
	// instance. Opening the same file from a second process fails.
	ModeSingleProcess OpenMode = iota
	// ModeMultiProcess coordinates with other processes through per-operation
	// file locks and reloads the key directory when the log grew externally.
	ModeMultiProcess
)

// DBOptions configures a willow instance during Open
type DBOptions struct {
	ID            string        // Instance id, also the log file base name (required)
	Path          string        // Directory holding the log file ("" = working directory)
	EncryptionKey []byte        // Optional user key, at most 16 bytes
	Mode          OpenMode      // Process sharing model
	SyncWrites    bool          // true = fsync after every append
	SyncInterval  time.Duration // Flush interval in async mode (0 = default)
	CacheBytes    int           // Value cache capacity in bytes (0 = default, <0 = disabled)
}

// DefaultOptions returns the default willow options for an instance id
func DefaultOptions(id string) *DBOptions {
	return &DBOptions{
		ID:           id,
		SyncInterval: defaultSyncInterval,
		CacheBytes:   defaultCacheBytes,
	}
}

// The registry caches open instances by id so that opening the same id twice
// yields the same instance (mmkvWithID semantics).
var (
	registryMu sync.Mutex
	registry   = make(map[string]*willowImpl)
)

// --------------------------------------------------------------------------
// Core Willow database structure
// --------------------------------------------------------------------------

// recordRef locates a live record inside the log file
type recordRef struct {
	off  int64  // Frame offset in the file
	size uint32 // Full frame length including the frame head
}

// willowImpl implements db.KVDB with an append-only record log and an
// in-memory key directory
type willowImpl struct {
	id   string
	path string // Full log file path
	mode OpenMode

	// file state, guarded by mu
	mu   sync.RWMutex
	file *os.File
	aead cipher.AEAD
	salt [internal.SaltSize]byte
	key  []byte // user encryption key (copy)

	keydir    *xsync.MapOf[string, recordRef]
	size      atomic.Uint64 // Append offset = actual used bytes
	deadBytes atomic.Uint64 // Bytes held by overwritten and deleted records

	cache *valueCache

	// durability
	syncWrites   bool
	syncInterval time.Duration
	syncQ        *util.LockFreeMPSC[struct{}]
	syncerDone   chan struct{}

	closed atomic.Bool
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// Open opens (or creates) the willow instance with the given options. Opening
// an id that is already open returns the existing instance; the options must
// then point to the same file.
//
// Thread-safety: Open is safe to call concurrently.
func Open(opts *DBOptions) (db.KVDB, error) {
	if opts == nil || opts.ID == "" {
		return nil, ErrEmptyID
	}
	if len(opts.EncryptionKey) > internal.MaxUserKeyLen {
		return nil, ErrKeyTooLong
	}

	path := filepath.Join(opts.Path, opts.ID+fileSuffix)

	registryMu.Lock()
	defer registryMu.Unlock()

	if existing, ok := registry[opts.ID]; ok {
		if existing.path != path {
			return nil, fmt.Errorf("instance %q is already open with file %q", opts.ID, existing.path)
		}
		return existing, nil
	}

	w, err := open(opts, path)
	if err != nil {
		return nil, err
	}

	registry[opts.ID] = w
	return w, nil
}

// open creates the instance state and recovers the key directory from disk
func open(opts *DBOptions, path string) (*willowImpl, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	w := &willowImpl{
		id:           opts.ID,
		path:         path,
		mode:         opts.Mode,
		file:         file,
		key:          append([]byte(nil), opts.EncryptionKey...),
		keydir:       xsync.NewMapOf[string, recordRef](),
		syncWrites:   opts.SyncWrites,
		syncInterval: opts.SyncInterval,
	}
	if w.syncInterval <= 0 {
		w.syncInterval = defaultSyncInterval
	}

	cacheBytes := opts.CacheBytes
	if cacheBytes == 0 {
		cacheBytes = defaultCacheBytes
	}
	w.cache = newValueCache(cacheBytes)

	// single process mode holds an exclusive lock for the whole lifetime
	if w.mode == ModeSingleProcess {
		if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
			file.Close()
			return nil, fmt.Errorf("log file %q is locked by another process: %w", path, err)
		}
	}

	if err := w.initLocked(); err != nil {
		w.unlockAndClose()
		return nil, err
	}

	// start the background syncer in async mode
	if !w.syncWrites {
		w.syncQ = util.NewLockFreeMPSC[struct{}]()
		w.syncerDone = make(chan struct{})
		go w.syncer()
	}

	return w, nil
}

// initLocked writes a fresh header or replays an existing log.
// Called during open, no other goroutine can hold the instance yet.
func (w *willowImpl) initLocked() error {
	fi, err := w.file.Stat()
	if err != nil {
		return err
	}

	if fi.Size() == 0 {
		salt, err := internal.NewSalt()
		if err != nil {
			return err
		}
		w.salt = salt
		w.aead, err = internal.NewAEAD(w.key, w.salt)
		if err != nil {
			return err
		}
		return w.writeHeaderLocked()
	}

	header := make([]byte, internal.HeaderSize)
	if _, err := w.file.ReadAt(header, 0); err != nil {
		return fmt.Errorf("failed to read log header: %w", err)
	}
	h, err := internal.DecodeHeader(header)
	if err != nil {
		return err
	}

	if h.Encrypted() && len(w.key) == 0 {
		return ErrKeyRequired
	}
	if !h.Encrypted() && len(w.key) > 0 {
		return ErrNotEncrypted
	}

	w.salt = h.Salt
	if w.aead, err = internal.NewAEAD(w.key, w.salt); err != nil {
		return err
	}

	w.size.Store(internal.HeaderSize)
	return w.replayFromLocked(internal.HeaderSize)
}

// writeHeaderLocked truncates the file and writes a fresh header
func (w *willowImpl) writeHeaderLocked() error {
	var flags uint8
	if w.aead != nil {
		flags |= internal.FlagEncrypted
	}
	buf := internal.EncodeHeader(internal.Header{Version: internal.Version, Flags: flags, Salt: w.salt})

	if err := w.file.Truncate(0); err != nil {
		return err
	}
	if _, err := w.file.WriteAt(buf, 0); err != nil {
		return err
	}
	if err := w.file.Sync(); err != nil {
		return err
	}

	w.size.Store(internal.HeaderSize)
	w.deadBytes.Store(0)
	return nil
}

// replayFromLocked rebuilds the key directory from the log starting at off.
// A torn or corrupt tail is truncated (crash recovery); a record that fails
// to decrypt aborts the replay since the key must be wrong.
func (w *willowImpl) replayFromLocked(off int64) error {
	fi, err := w.file.Stat()
	if err != nil {
		return err
	}
	fileSize := fi.Size()

	sr := io.NewSectionReader(w.file, off, fileSize-off)
	br := bufio.NewReaderSize(sr, 1024*1024) // 1 MB buffer

	head := make([]byte, internal.FrameHeadSize)
	for {
		if _, err := io.ReadFull(br, head); err != nil {
			if err == io.EOF {
				break
			}
			if err == io.ErrUnexpectedEOF {
				// partial frame head -> torn tail
				return w.truncateTailLocked(off)
			}
			// a real I/O error must not destroy data, fail the replay instead
			return fmt.Errorf("failed to read log %q: %w", w.path, err)
		}

		length := int(uint32(head[0])<<24 | uint32(head[1])<<16 | uint32(head[2])<<8 | uint32(head[3]))

		// a length reaching past the end of the file is a torn or corrupt
		// frame head, never an allocation request
		if int64(length) > fileSize-off-int64(internal.FrameHeadSize) {
			return w.truncateTailLocked(off)
		}

		frame := make([]byte, internal.FrameHeadSize+length)
		copy(frame, head)
		if _, err := io.ReadFull(br, frame[internal.FrameHeadSize:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return w.truncateTailLocked(off)
			}
			return fmt.Errorf("failed to read log %q: %w", w.path, err)
		}

		rec, err := internal.DecodeFrame(frame, w.aead)
		if errors.Is(err, internal.ErrChecksum) || errors.Is(err, internal.ErrTruncated) {
			return w.truncateTailLocked(off)
		}
		if err != nil {
			return fmt.Errorf("failed to replay log %q: %w", w.path, err)
		}

		frameLen := uint32(len(frame))
		switch rec.Op {
		case internal.OpSet:
			if old, loaded := w.keydir.LoadAndStore(rec.Key, recordRef{off: off, size: frameLen}); loaded {
				w.deadBytes.Add(uint64(old.size))
			}
		case internal.OpDelete:
			if old, loaded := w.keydir.LoadAndDelete(rec.Key); loaded {
				w.deadBytes.Add(uint64(old.size))
			}
			w.deadBytes.Add(uint64(frameLen))
		default:
			return w.truncateTailLocked(off)
		}

		off += int64(frameLen)
		metricReplayedRecs.Inc()
	}

	w.size.Store(uint64(off))
	return nil
}

// truncateTailLocked discards everything after the last valid record
func (w *willowImpl) truncateTailLocked(off int64) error {
	metricTruncatedTails.Inc()
	if err := w.file.Truncate(off); err != nil {
		return fmt.Errorf("failed to truncate torn log tail: %w", err)
	}
	w.size.Store(uint64(off))
	return nil
}

// --------------------------------------------------------------------------
// Multi-Process Coordination
// --------------------------------------------------------------------------

// flockLocked takes the advisory file lock in multi-process mode and refreshes
// the key directory if another process appended in the meantime. In single
// process mode the lock is already held and this is a no-op.
func (w *willowImpl) flockLocked() error {
	if w.mode != ModeMultiProcess {
		return nil
	}
	if err := unix.Flock(int(w.file.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("failed to lock log file: %w", err)
	}
	return w.refreshLocked()
}

// funlockLocked releases the per-operation lock in multi-process mode
func (w *willowImpl) funlockLocked() {
	if w.mode != ModeMultiProcess {
		return
	}
	_ = unix.Flock(int(w.file.Fd()), unix.LOCK_UN)
}

// refreshLocked reconciles the in-memory state with external changes to the
// log file. Growth is replayed incrementally, shrinkage (an external Clear or
// Trim) forces a full reload.
func (w *willowImpl) refreshLocked() error {
	fi, err := os.Stat(w.path)
	if err != nil {
		return err
	}

	diskSize := uint64(fi.Size())
	memSize := w.size.Load()

	switch {
	case diskSize == memSize:
		return nil
	case diskSize > memSize:
		return w.replayFromLocked(int64(memSize))
	default:
		// the file was rewritten externally, reopen and replay from scratch
		file, err := os.OpenFile(w.path, os.O_RDWR, 0o644)
		if err != nil {
			return err
		}
		// closing the old descriptor also drops its advisory lock, so the
		// new descriptor must take the lock over before anything is replayed
		// or appended
		w.file.Close()
		if err := unix.Flock(int(file.Fd()), unix.LOCK_EX); err != nil {
			file.Close()
			return fmt.Errorf("failed to lock log file: %w", err)
		}
		w.file = file
		w.keydir.Clear()
		w.cache.clear()
		w.deadBytes.Store(0)
		w.size.Store(internal.HeaderSize)
		return w.replayFromLocked(internal.HeaderSize)
	}
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

// Set inserts or updates an entry with the given key and value.
// If the key already exists, the old value is overwritten.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (w *willowImpl) Set(key string, value []byte) error {
	if w.closed.Load() {
		return ErrClosed
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.flockLocked(); err != nil {
		return err
	}
	defer w.funlockLocked()

	return w.appendSetLocked(key, value)
}

// SetIfUnset inserts an entry only if the key does not already hold a value.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
// The existence check and the append happen under the same lock, so the
// operation is atomic with respect to other writers on this instance.
func (w *willowImpl) SetIfUnset(key string, value []byte) (bool, error) {
	if w.closed.Load() {
		return false, ErrClosed
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.flockLocked(); err != nil {
		return false, err
	}
	defer w.funlockLocked()

	if _, exists := w.keydir.Load(key); exists {
		return false, nil
	}
	if err := w.appendSetLocked(key, value); err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes an entry with the specified key.
// Deleting a missing key is a no-op.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (w *willowImpl) Delete(key string) error {
	if w.closed.Load() {
		return ErrClosed
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.flockLocked(); err != nil {
		return err
	}
	defer w.funlockLocked()

	if _, exists := w.keydir.Load(key); !exists {
		return nil
	}

	frameLen, err := w.appendLocked(internal.Record{Op: internal.OpDelete, Key: key})
	if err != nil {
		return err
	}

	if old, loaded := w.keydir.LoadAndDelete(key); loaded {
		w.deadBytes.Add(uint64(old.size))
	}
	w.deadBytes.Add(uint64(frameLen))
	w.cache.drop(key)
	return nil
}

// appendSetLocked appends a set record and updates keydir, dead-byte
// accounting and the value cache
func (w *willowImpl) appendSetLocked(key string, value []byte) error {
	off := int64(w.size.Load())
	frameLen, err := w.appendLocked(internal.Record{Op: internal.OpSet, Key: key, Value: value})
	if err != nil {
		return err
	}

	if old, loaded := w.keydir.LoadAndStore(key, recordRef{off: off, size: frameLen}); loaded {
		w.deadBytes.Add(uint64(old.size))
	}
	w.cache.put(key, value)
	return nil
}

// appendLocked encodes a record, writes it at the current append offset and
// applies the configured durability policy
func (w *willowImpl) appendLocked(rec internal.Record) (uint32, error) {
	frame, err := internal.EncodeRecord(rec, w.aead)
	if err != nil {
		return 0, err
	}

	off := int64(w.size.Load())
	if _, err := w.file.WriteAt(frame, off); err != nil {
		return 0, fmt.Errorf("failed to append record: %w", err)
	}
	w.size.Add(uint64(len(frame)))
	metricAppends.Inc()

	if w.syncWrites {
		if err := w.file.Sync(); err != nil {
			return 0, fmt.Errorf("failed to sync log: %w", err)
		}
	} else if w.syncQ != nil {
		w.syncQ.Push(&struct{}{})
	}

	return uint32(len(frame)), nil
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Read Operations
// --------------------------------------------------------------------------

// Get retrieves a value for a key.
// The boolean indicates whether a value for the key was found.
// The returned value is a copy of the stored data and therefore safe to use and modify.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (w *willowImpl) Get(key string) ([]byte, bool, error) {
	if w.closed.Load() {
		return nil, false, ErrClosed
	}

	// in multi-process mode a read may need to refresh the key directory,
	// which mutates state and therefore needs the write lock
	if w.mode == ModeMultiProcess {
		w.mu.Lock()
		defer w.mu.Unlock()
		if err := w.flockLocked(); err != nil {
			return nil, false, err
		}
		defer w.funlockLocked()
	} else {
		w.mu.RLock()
		defer w.mu.RUnlock()
	}

	ref, ok := w.keydir.Load(key)
	if !ok {
		return nil, false, nil
	}

	if value, hit := w.cache.get(key); hit {
		metricCacheHits.Inc()
		return value, true, nil
	}
	metricCacheMisses.Inc()

	frame := make([]byte, ref.size)
	if _, err := w.file.ReadAt(frame, ref.off); err != nil {
		return nil, false, fmt.Errorf("failed to read record: %w", err)
	}
	rec, err := internal.DecodeFrame(frame, w.aead)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode record for key %q: %w", key, err)
	}

	w.cache.put(key, rec.Value)
	return rec.Value, true, nil
}

// Has checks if a key exists in the database.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (w *willowImpl) Has(key string) bool {
	if w.closed.Load() {
		return false
	}
	if w.mode == ModeMultiProcess {
		w.mu.Lock()
		if err := w.flockLocked(); err == nil {
			w.funlockLocked()
		}
		w.mu.Unlock()
	}
	_, ok := w.keydir.Load(key)
	return ok
}

// Keys returns all keys currently present, in no particular order.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (w *willowImpl) Keys() []string {
	if w.closed.Load() {
		return nil
	}
	if w.mode == ModeMultiProcess {
		w.mu.Lock()
		if err := w.flockLocked(); err == nil {
			w.funlockLocked()
		}
		w.mu.Unlock()
	}

	keys := make([]string, 0, w.keydir.Size())
	w.keydir.Range(func(key string, _ recordRef) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}

// --------------------------------------------------------------------------
// Maintenance Operations
// --------------------------------------------------------------------------

// Clear removes all entries and resets the backing file to an empty log.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (w *willowImpl) Clear() error {
	if w.closed.Load() {
		return ErrClosed
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.flockLocked(); err != nil {
		return err
	}
	defer w.funlockLocked()

	if err := w.writeHeaderLocked(); err != nil {
		return err
	}
	w.keydir.Clear()
	w.cache.clear()
	return nil
}

// Trim rewrites the log so that only live records remain. The space held by
// overwritten and deleted records is reclaimed and the value cache is dropped.
//
// Thread-safety: This method is thread-safe, all other operations block for
// the duration of the rewrite.
func (w *willowImpl) Trim() error {
	if w.closed.Load() {
		return ErrClosed
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.flockLocked(); err != nil {
		return err
	}
	defer w.funlockLocked()

	return w.rewriteLocked(w.aead, w.salt, w.key)
}

// ReKey re-encrypts the whole log with the given key. An empty key removes
// encryption. A fresh salt is generated so a re-used user key still yields a
// new cipher key.
//
// Thread-safety: This method is thread-safe, all other operations block for
// the duration of the rewrite.
func (w *willowImpl) ReKey(newKey []byte) error {
	if w.closed.Load() {
		return ErrClosed
	}
	if len(newKey) > internal.MaxUserKeyLen {
		return ErrKeyTooLong
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.flockLocked(); err != nil {
		return err
	}
	defer w.funlockLocked()

	salt, err := internal.NewSalt()
	if err != nil {
		return err
	}
	aead, err := internal.NewAEAD(newKey, salt)
	if err != nil {
		return err
	}

	return w.rewriteLocked(aead, salt, append([]byte(nil), newKey...))
}

// rewriteLocked writes all live records into a temp file which then atomically
// replaces the log. Used by both Trim (same cipher) and ReKey (new cipher).
func (w *willowImpl) rewriteLocked(newAEAD cipher.AEAD, newSalt [internal.SaltSize]byte, newKey []byte) error {
	tmpPath := w.path + compactSuffix
	tmp, err := os.OpenFile(tmpPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create compaction file: %w", err)
	}

	// wrap the rest so the temp file is removed on any failure
	cleanup := func(err error) error {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}

	var flags uint8
	if newAEAD != nil {
		flags |= internal.FlagEncrypted
	}
	bw := bufio.NewWriterSize(tmp, 1024*1024) // 1 MB buffer
	if _, err := bw.Write(internal.EncodeHeader(internal.Header{Version: internal.Version, Flags: flags, Salt: newSalt})); err != nil {
		return cleanup(err)
	}

	// snapshot the key directory, then copy each live record
	type liveEntry struct {
		key string
		ref recordRef
	}
	live := make([]liveEntry, 0, w.keydir.Size())
	w.keydir.Range(func(key string, ref recordRef) bool {
		live = append(live, liveEntry{key, ref})
		return true
	})

	newRefs := make(map[string]recordRef, len(live))
	off := int64(internal.HeaderSize)
	for _, entry := range live {
		frame := make([]byte, entry.ref.size)
		if _, err := w.file.ReadAt(frame, entry.ref.off); err != nil {
			return cleanup(fmt.Errorf("failed to read record during compaction: %w", err))
		}
		rec, err := internal.DecodeFrame(frame, w.aead)
		if err != nil {
			return cleanup(fmt.Errorf("failed to decode record during compaction: %w", err))
		}

		newFrame, err := internal.EncodeRecord(rec, newAEAD)
		if err != nil {
			return cleanup(err)
		}
		if _, err := bw.Write(newFrame); err != nil {
			return cleanup(err)
		}

		newRefs[entry.key] = recordRef{off: off, size: uint32(len(newFrame))}
		off += int64(len(newFrame))
	}

	if err := bw.Flush(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}

	// atomically swap the files
	if err := os.Rename(tmpPath, w.path); err != nil {
		return cleanup(fmt.Errorf("failed to replace log file: %w", err))
	}

	oldFile := w.file
	w.file = tmp
	oldFile.Close()

	// closing the old descriptor dropped its advisory lock (the lifetime
	// lock in single process mode, the per-operation lock in multi process
	// mode), so the new descriptor must take it over
	switch w.mode {
	case ModeSingleProcess:
		if err := unix.Flock(int(w.file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
			return fmt.Errorf("failed to re-lock compacted log: %w", err)
		}
	case ModeMultiProcess:
		if err := unix.Flock(int(w.file.Fd()), unix.LOCK_EX); err != nil {
			return fmt.Errorf("failed to re-lock compacted log: %w", err)
		}
	}

	w.aead = newAEAD
	w.salt = newSalt
	w.key = newKey

	w.keydir.Clear()
	for key, ref := range newRefs {
		w.keydir.Store(key, ref)
	}
	w.size.Store(uint64(off))
	w.deadBytes.Store(0)
	w.cache.clear()

	metricTrims.Inc()
	return nil
}

// ClearCache drops the in-memory value cache. The key directory stays intact.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (w *willowImpl) ClearCache() {
	w.cache.clear()
}

// NeedsTrim reports whether a compaction would reclaim a significant share of
// the log. The heuristic triggers once dead records hold more bytes than the
// live data, but never below a small absolute floor.
func (w *willowImpl) NeedsTrim() bool {
	dead := w.deadBytes.Load()
	if dead < trimDeadBytesMin {
		return false
	}
	return dead*2 > w.size.Load()
}

// --------------------------------------------------------------------------
// Durability
// --------------------------------------------------------------------------

// Sync flushes all pending writes to stable storage.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (w *willowImpl) Sync() error {
	if w.closed.Load() {
		return ErrClosed
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.file.Sync()
}

// syncer is the background flush loop used in async mode. Appends signal the
// queue, the loop coalesces signals and fsyncs at most once per interval.
func (w *willowImpl) syncer() {
	defer close(w.syncerDone)

	timer := time.NewTimer(w.syncInterval)
	defer timer.Stop()

	dirty := false
	for {
		select {
		case _, ok := <-w.syncQ.Recv():
			if !ok {
				// final flush on close
				if dirty {
					_ = w.Sync()
				}
				return
			}
			dirty = true
		case <-timer.C:
			if dirty {
				if err := w.Sync(); err == nil {
					dirty = false
				}
			}
			timer.Reset(w.syncInterval)
		}
	}
}

// --------------------------------------------------------------------------
// Size Reporting
// --------------------------------------------------------------------------

// ActualSize returns the number of bytes used by the log (header plus records)
func (w *willowImpl) ActualSize() uint64 {
	return w.size.Load()
}

// TotalSize returns the size of the backing file on disk
func (w *willowImpl) TotalSize() (uint64, error) {
	fi, err := os.Stat(w.path)
	if err != nil {
		return 0, err
	}
	return uint64(fi.Size()), nil
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Features and Metadata
// --------------------------------------------------------------------------

// GetInfo returns statistics about the database
func (w *willowImpl) GetInfo() db.DatabaseInfo {

	// sample live record sizes into a histogram
	histogram := util.NewSizeHistogram()
	w.keydir.Range(func(_ string, ref recordRef) bool {
		histogram.AddSample(int(ref.size))
		return true
	})

	totalSize, _ := w.TotalSize()
	cacheEntries, cacheBytes := w.cache.stats()

	// Metadata for this specific database implementation
	meta := &struct {
		KeyCount          int    `json:"key_count"`
		DeadBytes         uint64 `json:"dead_bytes"`
		NeedsTrim         bool   `json:"needs_trim"`
		Encrypted         bool   `json:"encrypted"`
		MultiProcess      bool   `json:"multi_process"`
		SyncWrites        bool   `json:"sync_writes"`
		CacheEntries      int    `json:"cache_entries"`
		CacheBytes        int    `json:"cache_bytes"`
		MedianRecordBytes int    `json:"median_record_bytes"`
		P90RecordBytes    int    `json:"p90_record_bytes"`
	}{
		KeyCount:          w.keydir.Size(),
		DeadBytes:         w.deadBytes.Load(),
		NeedsTrim:         w.NeedsTrim(),
		Encrypted:         w.aead != nil,
		MultiProcess:      w.mode == ModeMultiProcess,
		SyncWrites:        w.syncWrites,
		CacheEntries:      cacheEntries,
		CacheBytes:        cacheBytes,
		MedianRecordBytes: histogram.MedianEstimate(),
		P90RecordBytes:    histogram.GetPercentileEstimate(90),
	}

	// features
	supportedFeatures := []db.Feature{
		db.FeatureSet, db.FeatureSetIfUnset,
		db.FeatureGet, db.FeatureHas, db.FeatureDelete, db.FeatureKeys,
		db.FeatureClear, db.FeatureTrim, db.FeatureReKey,
		db.FeatureSync, db.FeaturePersist,
	}

	return db.DatabaseInfo{
		SizeBytes:         w.ActualSize(),
		TotalSizeBytes:    totalSize,
		DbType:            db.ImplWillow,
		SupportedFeatures: supportedFeatures,
		Metadata:          meta,
	}
}

// SupportsFeature checks if this implementation supports a specific KVDB feature
func (w *willowImpl) SupportsFeature(feature db.Feature) bool {
	supportedFeatures := db.FeatureSet |
		db.FeatureSetIfUnset |
		db.FeatureGet |
		db.FeatureHas |
		db.FeatureDelete |
		db.FeatureKeys |
		db.FeatureClear |
		db.FeatureTrim |
		db.FeatureReKey |
		db.FeatureSync |
		db.FeaturePersist
	return supportedFeatures&feature == feature
}

// --------------------------------------------------------------------------
// Shutdown
// --------------------------------------------------------------------------

// Close flushes and closes the database, releases the file lock and removes
// the instance from the registry. Further operations return ErrClosed.
func (w *willowImpl) Close() error {
	if !w.closed.CompareAndSwap(false, true) {
		return nil
	}

	// stop the background syncer first so no flush races the close
	if w.syncQ != nil {
		w.syncQ.Close()
		<-w.syncerDone
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	err := w.file.Sync()
	if w.mode == ModeSingleProcess {
		_ = unix.Flock(int(w.file.Fd()), unix.LOCK_UN)
	}
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}

	registryMu.Lock()
	delete(registry, w.id)
	registryMu.Unlock()

	return err
}

// unlockAndClose is the error path helper for open
func (w *willowImpl) unlockAndClose() {
	if w.mode == ModeSingleProcess {
		_ = unix.Flock(int(w.file.Fd()), unix.LOCK_UN)
	}
	w.file.Close()
}

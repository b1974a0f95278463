package willow

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ValentinKolb/mKV/lib/db/engines/willow/internal"
	"golang.org/x/sys/unix"
)

// helper that opens an instance in a temp dir and fails the test on error
func mustOpen(t *testing.T, opts *DBOptions) *willowImpl {
	t.Helper()
	database, err := Open(opts)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	return database.(*willowImpl)
}

func TestOpenValidation(t *testing.T) {
	if _, err := Open(nil); err != ErrEmptyID {
		t.Errorf("expected ErrEmptyID for nil options, got %v", err)
	}
	if _, err := Open(&DBOptions{ID: ""}); err != ErrEmptyID {
		t.Errorf("expected ErrEmptyID for empty id, got %v", err)
	}

	opts := DefaultOptions("validation-test")
	opts.Path = t.TempDir()
	opts.EncryptionKey = []byte("this key is way too long")
	if _, err := Open(opts); err != ErrKeyTooLong {
		t.Errorf("expected ErrKeyTooLong, got %v", err)
	}
}

func TestRegistryReturnsSameInstance(t *testing.T) {
	opts := DefaultOptions("registry-test")
	opts.Path = t.TempDir()

	db1 := mustOpen(t, opts)
	defer db1.Close()

	db2 := mustOpen(t, opts)
	if db1 != db2 {
		t.Errorf("expected Open with the same id to return the same instance")
	}

	// same id with a different path must be rejected
	other := DefaultOptions("registry-test")
	other.Path = t.TempDir()
	if _, err := Open(other); err == nil {
		t.Errorf("expected error for same id with different path")
	}

	// after Close the id is free again
	db1.Close()
	db3 := mustOpen(t, opts)
	defer db3.Close()
	if db1 == db3 {
		t.Errorf("expected Open after Close to create a fresh instance")
	}
}

func TestReopenRestoresState(t *testing.T) {
	opts := DefaultOptions("reopen-test")
	opts.Path = t.TempDir()

	database := mustOpen(t, opts)
	database.Set("alpha", []byte("one"))
	database.Set("beta", []byte("two"))
	database.Set("alpha", []byte("three")) // overwrite
	database.Delete("beta")
	if err := database.Close(); err != nil {
		t.Fatalf("failed to close database: %v", err)
	}

	database = mustOpen(t, opts)
	defer database.Close()

	value, exists, err := database.Get("alpha")
	if err != nil || !exists {
		t.Fatalf("expected alpha to survive reopen (exists=%v, err=%v)", exists, err)
	}
	if !bytes.Equal(value, []byte("three")) {
		t.Errorf("expected latest value after reopen, got %s", value)
	}
	if database.Has("beta") {
		t.Errorf("expected deleted key to stay deleted after reopen")
	}
}

func TestEncryptedRoundTrip(t *testing.T) {
	dir := t.TempDir()
	secret := []byte("value that must not leak")

	opts := DefaultOptions("encrypted-test")
	opts.Path = dir
	opts.EncryptionKey = []byte("hunter2")

	database := mustOpen(t, opts)
	database.Set("secret", secret)
	database.Close()

	// the raw file must not contain the plaintext
	raw, err := os.ReadFile(filepath.Join(dir, "encrypted-test"+fileSuffix))
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if bytes.Contains(raw, secret) {
		t.Fatalf("plaintext value leaked into the log file")
	}

	// reopening without a key fails
	noKey := DefaultOptions("encrypted-test")
	noKey.Path = dir
	if _, err := Open(noKey); err != ErrKeyRequired {
		t.Errorf("expected ErrKeyRequired, got %v", err)
	}

	// reopening with the wrong key fails during replay
	wrongKey := DefaultOptions("encrypted-test")
	wrongKey.Path = dir
	wrongKey.EncryptionKey = []byte("wrong")
	if _, err := Open(wrongKey); err == nil {
		t.Errorf("expected error for wrong encryption key")
	}

	// the right key recovers the value
	database = mustOpen(t, opts)
	defer database.Close()
	value, exists, err := database.Get("secret")
	if err != nil || !exists {
		t.Fatalf("expected secret to survive reopen (exists=%v, err=%v)", exists, err)
	}
	if !bytes.Equal(value, secret) {
		t.Errorf("value mismatch after encrypted reopen")
	}
}

func TestKeyOnPlaintextLogRejected(t *testing.T) {
	dir := t.TempDir()

	opts := DefaultOptions("plaintext-test")
	opts.Path = dir
	database := mustOpen(t, opts)
	database.Set("k", []byte("v"))
	database.Close()

	withKey := DefaultOptions("plaintext-test")
	withKey.Path = dir
	withKey.EncryptionKey = []byte("some key")
	if _, err := Open(withKey); err != ErrNotEncrypted {
		t.Errorf("expected ErrNotEncrypted, got %v", err)
	}
}

func TestReKey(t *testing.T) {
	dir := t.TempDir()
	secret := []byte("rekey target value")

	opts := DefaultOptions("rekey-test")
	opts.Path = dir
	database := mustOpen(t, opts)
	database.Set("secret", secret)

	// plaintext -> encrypted
	if err := database.ReKey([]byte("new key")); err != nil {
		t.Fatalf("failed to rekey: %v", err)
	}
	value, exists, _ := database.Get("secret")
	if !exists || !bytes.Equal(value, secret) {
		t.Fatalf("value lost during rekey")
	}
	database.Close()

	raw, err := os.ReadFile(filepath.Join(dir, "rekey-test"+fileSuffix))
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if bytes.Contains(raw, secret) {
		t.Errorf("plaintext value still readable after rekey")
	}

	// encrypted -> plaintext (empty key removes encryption)
	encOpts := DefaultOptions("rekey-test")
	encOpts.Path = dir
	encOpts.EncryptionKey = []byte("new key")
	database = mustOpen(t, encOpts)
	if err := database.ReKey(nil); err != nil {
		t.Fatalf("failed to remove encryption: %v", err)
	}
	database.Close()

	plainOpts := DefaultOptions("rekey-test")
	plainOpts.Path = dir
	database = mustOpen(t, plainOpts)
	defer database.Close()
	value, exists, _ = database.Get("secret")
	if !exists || !bytes.Equal(value, secret) {
		t.Errorf("value lost after removing encryption")
	}
}

func TestTrimReclaimsSpace(t *testing.T) {
	opts := DefaultOptions("trim-test")
	opts.Path = t.TempDir()
	database := mustOpen(t, opts)
	defer database.Close()

	// churn the same key to accumulate dead bytes
	payload := make([]byte, 4096)
	for i := 0; i < 100; i++ {
		database.Set("churn", payload)
	}
	database.Set("keep", []byte("survivor"))

	before := database.ActualSize()
	if err := database.Trim(); err != nil {
		t.Fatalf("failed to trim: %v", err)
	}
	after := database.ActualSize()
	if after >= before {
		t.Errorf("expected trim to shrink the log: before=%d after=%d", before, after)
	}
	if database.deadBytes.Load() != 0 {
		t.Errorf("expected no dead bytes after trim")
	}

	value, exists, _ := database.Get("keep")
	if !exists || !bytes.Equal(value, []byte("survivor")) {
		t.Errorf("live value lost during trim")
	}
	value, exists, _ = database.Get("churn")
	if !exists || !bytes.Equal(value, payload) {
		t.Errorf("latest churn value lost during trim")
	}
}

func TestClearResetsLog(t *testing.T) {
	opts := DefaultOptions("clear-test")
	opts.Path = t.TempDir()
	database := mustOpen(t, opts)
	defer database.Close()

	for i := 0; i < 100; i++ {
		database.Set("k", []byte("some value"))
	}

	if err := database.Clear(); err != nil {
		t.Fatalf("failed to clear: %v", err)
	}

	if database.ActualSize() != internal.HeaderSize {
		t.Errorf("expected log to shrink to header size after clear, got %d", database.ActualSize())
	}
	if database.Has("k") {
		t.Errorf("expected no keys after clear")
	}
}

func TestTornTailRecovery(t *testing.T) {
	dir := t.TempDir()

	opts := DefaultOptions("torn-tail-test")
	opts.Path = dir
	database := mustOpen(t, opts)
	database.Set("intact-1", []byte("value-1"))
	database.Set("intact-2", []byte("value-2"))
	database.Close()

	// simulate a crash mid-append by writing a partial frame at the tail
	path := filepath.Join(dir, "torn-tail-test"+fileSuffix)
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("failed to open log file: %v", err)
	}
	// a frame head announcing 1000 payload bytes, followed by only 3
	if _, err := file.Write([]byte{0x00, 0x00, 0x03, 0xe8, 0xde, 0xad, 0xbe}); err != nil {
		t.Fatalf("failed to write torn tail: %v", err)
	}
	file.Close()

	database = mustOpen(t, opts)
	defer database.Close()

	for _, key := range []string{"intact-1", "intact-2"} {
		if !database.Has(key) {
			t.Errorf("expected key %s to survive torn tail recovery", key)
		}
	}

	// the torn bytes are gone and the log accepts new writes
	if err := database.Set("after-recovery", []byte("v")); err != nil {
		t.Fatalf("failed to write after recovery: %v", err)
	}
}

func TestCorruptRecordTruncated(t *testing.T) {
	dir := t.TempDir()

	opts := DefaultOptions("corrupt-test")
	opts.Path = dir
	database := mustOpen(t, opts)
	database.Set("before", []byte("kept"))
	offset := database.ActualSize()
	database.Set("after", []byte("lost"))
	database.Close()

	// flip a byte inside the second record's payload
	path := filepath.Join(dir, "corrupt-test"+fileSuffix)
	file, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		t.Fatalf("failed to open log file: %v", err)
	}
	if _, err := file.WriteAt([]byte{0xff}, int64(offset)+internal.FrameHeadSize+2); err != nil {
		t.Fatalf("failed to corrupt record: %v", err)
	}
	file.Close()

	database = mustOpen(t, opts)
	defer database.Close()

	if !database.Has("before") {
		t.Errorf("expected record before the corruption to survive")
	}
	if database.Has("after") {
		t.Errorf("expected corrupt record to be discarded")
	}
	if database.ActualSize() != offset {
		t.Errorf("expected log truncated at %d, got %d", offset, database.ActualSize())
	}
}

func TestSyncWritesMode(t *testing.T) {
	opts := DefaultOptions("sync-writes-test")
	opts.Path = t.TempDir()
	opts.SyncWrites = true

	database := mustOpen(t, opts)
	defer database.Close()

	if err := database.Set("k", []byte("v")); err != nil {
		t.Fatalf("failed to set with sync writes: %v", err)
	}
	value, exists, _ := database.Get("k")
	if !exists || !bytes.Equal(value, []byte("v")) {
		t.Errorf("value mismatch in sync writes mode")
	}
}

func TestClearCacheKeepsData(t *testing.T) {
	opts := DefaultOptions("cache-clear-test")
	opts.Path = t.TempDir()
	database := mustOpen(t, opts)
	defer database.Close()

	database.Set("k", []byte("v"))
	database.ClearCache()

	// the read now has to hit the disk
	value, exists, err := database.Get("k")
	if err != nil || !exists {
		t.Fatalf("expected key to survive ClearCache (exists=%v, err=%v)", exists, err)
	}
	if !bytes.Equal(value, []byte("v")) {
		t.Errorf("value mismatch after ClearCache")
	}
}

func TestNeedsTrim(t *testing.T) {
	opts := DefaultOptions("needs-trim-test")
	opts.Path = t.TempDir()
	database := mustOpen(t, opts)
	defer database.Close()

	if database.NeedsTrim() {
		t.Errorf("fresh database must not need a trim")
	}

	// churn well past the dead byte floor
	payload := make([]byte, 8192)
	for i := 0; i < 100; i++ {
		database.Set("churn", payload)
	}

	if !database.NeedsTrim() {
		t.Errorf("expected trim suggestion after heavy churn")
	}

	database.Trim()
	if database.NeedsTrim() {
		t.Errorf("trim suggestion must reset after Trim")
	}
}

func TestOperationsAfterClose(t *testing.T) {
	opts := DefaultOptions("closed-test")
	opts.Path = t.TempDir()
	database := mustOpen(t, opts)
	database.Close()

	if err := database.Set("k", []byte("v")); err != ErrClosed {
		t.Errorf("expected ErrClosed from Set, got %v", err)
	}
	if _, _, err := database.Get("k"); err != ErrClosed {
		t.Errorf("expected ErrClosed from Get, got %v", err)
	}
	if err := database.Trim(); err != ErrClosed {
		t.Errorf("expected ErrClosed from Trim, got %v", err)
	}
	// closing twice is fine
	if err := database.Close(); err != nil {
		t.Errorf("expected double Close to be a no-op, got %v", err)
	}
}

func TestOversizedLengthFieldTruncated(t *testing.T) {
	dir := t.TempDir()

	opts := DefaultOptions("bad-length-test")
	opts.Path = dir
	database := mustOpen(t, opts)
	database.Set("intact", []byte("value"))
	offset := database.ActualSize()
	database.Close()

	// a frame head announcing ~4 GB of payload, followed by a few bytes
	path := filepath.Join(dir, "bad-length-test"+fileSuffix)
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("failed to open log file: %v", err)
	}
	if _, err := file.Write([]byte{0xff, 0xff, 0xff, 0xf0, 0x00, 0x00, 0x00, 0x00, 0xde, 0xad}); err != nil {
		t.Fatalf("failed to write corrupt frame: %v", err)
	}
	file.Close()

	database = mustOpen(t, opts)
	defer database.Close()

	if !database.Has("intact") {
		t.Errorf("expected record before the corruption to survive")
	}
	if database.ActualSize() != offset {
		t.Errorf("expected log truncated at %d, got %d", offset, database.ActualSize())
	}
}

func TestMultiProcessReloadOnGrow(t *testing.T) {
	dir := t.TempDir()

	opts := DefaultOptions("mp-grow-test")
	opts.Path = dir
	opts.Mode = ModeMultiProcess
	opts.SyncWrites = true
	database := mustOpen(t, opts)
	defer database.Close()

	database.Set("own", []byte("value"))

	// append a record the way another process would
	frame, err := internal.EncodeRecord(internal.Record{Op: internal.OpSet, Key: "external", Value: []byte("from-outside")}, nil)
	if err != nil {
		t.Fatalf("failed to encode record: %v", err)
	}
	path := filepath.Join(dir, "mp-grow-test"+fileSuffix)
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("failed to open log file: %v", err)
	}
	if _, err := file.Write(frame); err != nil {
		t.Fatalf("failed to append record: %v", err)
	}
	file.Close()

	value, loaded, err := database.Get("external")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !loaded || !bytes.Equal(value, []byte("from-outside")) {
		t.Errorf("expected externally appended record to be visible, got loaded=%v value=%q", loaded, value)
	}
	if _, loaded, _ := database.Get("own"); !loaded {
		t.Errorf("expected own record to survive the reload")
	}
}

func TestMultiProcessExternalTrim(t *testing.T) {
	dir := t.TempDir()

	opts := DefaultOptions("mp-trim-test")
	opts.Path = dir
	opts.Mode = ModeMultiProcess
	opts.SyncWrites = true
	a := mustOpen(t, opts)
	defer a.Close()

	// a second handle on the same file stands in for another process, it
	// bypasses the registry since ids resolve to the same instance otherwise
	path := filepath.Join(dir, "mp-trim-test"+fileSuffix)
	b, err := open(opts, path)
	if err != nil {
		t.Fatalf("failed to open second handle: %v", err)
	}
	defer b.Close()

	// create dead bytes through a, then compact through b so that a's next
	// operation hits a shrunken file
	for i := 0; i < 20; i++ {
		a.Set("churn", []byte("payload-payload-payload"))
	}
	a.Set("keep", []byte("kept"))
	if err := b.Trim(); err != nil {
		t.Fatalf("failed to trim through second handle: %v", err)
	}

	// a's per-operation lock must survive the descriptor swap: while a holds
	// it, a non-blocking lock attempt through b has to fail
	a.mu.Lock()
	if err := a.flockLocked(); err != nil {
		a.mu.Unlock()
		t.Fatalf("failed to lock after external trim: %v", err)
	}
	if err := unix.Flock(int(b.file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err == nil {
		unix.Flock(int(b.file.Fd()), unix.LOCK_UN)
		t.Errorf("expected the lock to be held on the reloaded descriptor")
	}
	a.funlockLocked()
	a.mu.Unlock()

	// after the release the lock is free again and both handles stay usable
	if err := unix.Flock(int(b.file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		t.Fatalf("expected the lock to be free after release: %v", err)
	}
	unix.Flock(int(b.file.Fd()), unix.LOCK_UN)

	if err := a.Set("after", []byte("v")); err != nil {
		t.Fatalf("failed to write through a after external trim: %v", err)
	}
	for _, handle := range []*willowImpl{a, b} {
		for _, key := range []string{"keep", "after"} {
			if _, loaded, err := handle.Get(key); err != nil || !loaded {
				t.Errorf("expected key %s visible through both handles, got loaded=%v err=%v", key, loaded, err)
			}
		}
	}
}

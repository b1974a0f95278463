package lockmgr

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/mKV/lib/db"
	"github.com/ValentinKolb/mKV/lib/db/engines/willow"
	"github.com/ValentinKolb/mKV/lib/store/lstore"
)

func newTestManager(t *testing.T) ILockManager {
	t.Helper()
	dir := t.TempDir()
	id := "lockmgr-" + strings.ReplaceAll(t.Name(), "/", "-")
	s, err := lstore.NewLocalStore(func() (db.KVDB, error) {
		opts := willow.DefaultOptions(id)
		opts.Path = dir
		return willow.Open(opts)
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return NewLockManager(s)
}

func TestAcquireAndRelease(t *testing.T) {
	mgr := newTestManager(t)

	acquired, ownerID, err := mgr.AcquireLock("resource", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !acquired {
		t.Fatalf("expected lock to be acquired")
	}
	if len(ownerID) != ownerIDLength {
		t.Errorf("expected %d byte owner id, got %d", ownerIDLength, len(ownerID))
	}

	// a second acquire on the held lock fails
	acquired, _, err = mgr.AcquireLock("resource", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acquired {
		t.Errorf("expected second acquire to fail while the lock is held")
	}

	released, err := mgr.ReleaseLock("resource", ownerID)
	if err != nil || !released {
		t.Fatalf("expected release to succeed: released=%v err=%v", released, err)
	}

	// after the release the lock is free again
	acquired, _, err = mgr.AcquireLock("resource", 0)
	if err != nil || !acquired {
		t.Errorf("expected acquire after release to succeed: acquired=%v err=%v", acquired, err)
	}
}

func TestReleaseRequiresOwnership(t *testing.T) {
	mgr := newTestManager(t)

	_, ownerID, err := mgr.AcquireLock("resource", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// a stranger cannot release the lock
	stranger, _ := generateOwnerID()
	released, err := mgr.ReleaseLock("resource", stranger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if released {
		t.Errorf("expected release with wrong owner id to fail")
	}

	// the real owner can
	released, err = mgr.ReleaseLock("resource", ownerID)
	if err != nil || !released {
		t.Errorf("expected release with correct owner id to succeed")
	}
}

func TestReleaseMissingLock(t *testing.T) {
	mgr := newTestManager(t)

	ownerID, _ := generateOwnerID()
	released, err := mgr.ReleaseLock("never-acquired", ownerID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !released {
		t.Errorf("expected release of a missing lock to report success")
	}
}

func TestExpiredLockIsStolen(t *testing.T) {
	mgr := newTestManager(t)

	_, firstOwner, err := mgr.AcquireLock("resource", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// wait out the one second deadline
	time.Sleep(1100 * time.Millisecond)

	acquired, secondOwner, err := mgr.AcquireLock("resource", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !acquired {
		t.Fatalf("expected expired lock to be stolen")
	}
	if bytes.Equal(firstOwner, secondOwner) {
		t.Errorf("expected a fresh owner id after the steal")
	}

	// the original holder can no longer release
	released, err := mgr.ReleaseLock("resource", firstOwner)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if released {
		t.Errorf("expected release by the previous owner to fail after the steal")
	}
}

func TestConcurrentAcquireSingleWinner(t *testing.T) {
	mgr := newTestManager(t)

	numWorkers := 16
	var wg sync.WaitGroup
	wg.Add(numWorkers)

	winners := make(chan []byte, numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func() {
			defer wg.Done()
			acquired, ownerID, err := mgr.AcquireLock("contended", 0)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if acquired {
				winners <- ownerID
			}
		}()
	}
	wg.Wait()
	close(winners)

	count := 0
	for range winners {
		count++
	}
	if count != 1 {
		t.Errorf("expected exactly one winner, got %d", count)
	}
}

func TestLockRecordRoundTrip(t *testing.T) {
	ownerID, err := generateOwnerID()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	record := encodeLock(ownerID, 30)
	decodedOwner, deadline, err := decodeLock(record)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(decodedOwner, ownerID) {
		t.Errorf("owner id mismatch after round trip")
	}
	if deadline <= time.Now().Unix() {
		t.Errorf("expected deadline in the future, got %d", deadline)
	}
	if expired(deadline) {
		t.Errorf("fresh lock must not be expired")
	}

	// zero timeout means no deadline
	record = encodeLock(ownerID, 0)
	_, deadline, _ = decodeLock(record)
	if deadline != 0 {
		t.Errorf("expected zero deadline for timeout 0, got %d", deadline)
	}
	if expired(deadline) {
		t.Errorf("a lock without deadline must never expire")
	}

	// garbage is rejected
	if _, _, err := decodeLock([]byte("short")); err == nil {
		t.Errorf("expected error for malformed record")
	}
}

package lockmgr

import (
	"bytes"

	"github.com/ValentinKolb/mKV/lib/store"
)

type logMgmImpl struct {
	store store.IStore
}

func NewLockManager(store store.IStore) ILockManager {
	return &logMgmImpl{
		store: store,
	}
}

func (lp *logMgmImpl) AcquireLock(key string, timeoutSec uint64) (bool, []byte, error) {
	// Generate owner ID (256 bit random value)
	ownerID, err := generateOwnerID()
	if err != nil {
		return false, nil, err
	}
	record := encodeLock(ownerID, timeoutSec)

	// Try to acquire the lock (by setting the value only if it doesn't exist - atomic CAS operation)
	inserted, err := lp.store.SetIfUnset(key, store.BufferValue(record))
	if err != nil {
		return false, nil, err
	}
	if inserted {
		return true, ownerID, nil
	}

	// The slot is taken, check if the current holder's deadline has passed
	current, found, err := lp.store.GetBuffer(key)
	if err != nil {
		return false, nil, err
	}
	if !found {
		// the holder released between our SetIfUnset and Get, retry once
		inserted, err = lp.store.SetIfUnset(key, store.BufferValue(record))
		if err != nil || !inserted {
			return false, nil, err
		}
		return true, ownerID, nil
	}

	_, deadline, err := decodeLock(current)
	if err != nil {
		return false, nil, err
	}
	if !expired(deadline) {
		return false, nil, nil
	}

	// The lock expired, steal it by overwriting and verifying ownership
	if err := lp.store.Set(key, store.BufferValue(record)); err != nil {
		return false, nil, err
	}
	value, found, err := lp.store.GetBuffer(key)
	if err != nil {
		return false, nil, err
	}
	if found {
		holder, _, err := decodeLock(value)
		if err != nil {
			return false, nil, err
		}
		// Return true if the lock was stolen BY US
		if bytes.Equal(holder, ownerID) {
			return true, ownerID, nil
		}
	}
	// Return false if another stealer won the race
	return false, nil, nil
}

func (lp *logMgmImpl) ReleaseLock(key string, ownerID []byte) (bool, error) {
	// Check if the lock exists
	record, ok, err := lp.store.GetBuffer(key)
	if err != nil || !ok {
		return err == nil, err
	}

	holder, _, err := decodeLock(record)
	if err != nil {
		return false, err
	}

	// Check if the lock is owned by us
	if !bytes.Equal(ownerID, holder) {
		return false, nil
	}

	// Release the lock
	err = lp.store.Delete(key)
	return err == nil, err
}

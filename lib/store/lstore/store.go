package lstore

import (
	"fmt"

	"github.com/ValentinKolb/mKV/lib/db"
	"github.com/ValentinKolb/mKV/lib/store"
)

type storeImpl struct {
	db db.KVDB
}

// NewLocalStore creates a new local store instance.
// This store implementation works directly on a db.KVDB engine in the same
// process, without any network round trips.
func NewLocalStore(factory store.DBFactory) (store.IStore, error) {
	database, err := factory()
	if err != nil {
		return nil, err
	}
	return &storeImpl{db: database}, nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// checkKey rejects the empty key before it reaches the engine
func checkKey(key string) error {
	if key == "" {
		return store.NewError(store.RetCInvalidOperation, "key must not be empty")
	}
	return nil
}

// getTyped loads and decodes the value for a key. The expected type is NOT
// checked here, callers compare against the decoded tag.
func (s *storeImpl) getTyped(key string) (store.Value, bool, error) {
	if err := checkKey(key); err != nil {
		return store.Value{}, false, err
	}

	data, loaded, err := s.db.Get(key)
	if err != nil {
		return store.Value{}, false, store.NewError(store.RetCInternalError, err.Error())
	}
	if !loaded {
		return store.Value{}, false, nil
	}

	value, err := store.DecodeValue(data)
	if err != nil {
		return store.Value{}, false, store.NewError(store.RetCInternalError,
			fmt.Sprintf("corrupt value for key %q: %v", key, err))
	}
	return value, true, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Set(key string, value store.Value) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if !s.db.SupportsFeature(db.FeatureSet) {
		return store.NewError(store.RetCUnsupportedOperation, "Set operation is not supported")
	}

	data, err := store.EncodeValue(value)
	if err != nil {
		return err
	}
	if err := s.db.Set(key, data); err != nil {
		return store.NewError(store.RetCInternalError, err.Error())
	}
	return nil
}

func (s *storeImpl) SetIfUnset(key string, value store.Value) (bool, error) {
	if err := checkKey(key); err != nil {
		return false, err
	}
	if !s.db.SupportsFeature(db.FeatureSetIfUnset) {
		return false, store.NewError(store.RetCUnsupportedOperation, "SetIfUnset operation is not supported")
	}

	data, err := store.EncodeValue(value)
	if err != nil {
		return false, err
	}
	inserted, err := s.db.SetIfUnset(key, data)
	if err != nil {
		return false, store.NewError(store.RetCInternalError, err.Error())
	}
	return inserted, nil
}

func (s *storeImpl) Delete(key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if !s.db.SupportsFeature(db.FeatureDelete) {
		return store.NewError(store.RetCUnsupportedOperation, "Delete operation is not supported")
	}
	if err := s.db.Delete(key); err != nil {
		return store.NewError(store.RetCInternalError, err.Error())
	}
	return nil
}

func (s *storeImpl) GetBoolean(key string) (bool, bool, error) {
	value, loaded, err := s.getTyped(key)
	if err != nil || !loaded || value.Type != store.TypeBoolean {
		return false, false, err
	}
	return value.Boolean, true, nil
}

func (s *storeImpl) GetNumber(key string) (float64, bool, error) {
	value, loaded, err := s.getTyped(key)
	if err != nil || !loaded || value.Type != store.TypeNumber {
		return 0, false, err
	}
	return value.Number, true, nil
}

func (s *storeImpl) GetString(key string) (string, bool, error) {
	value, loaded, err := s.getTyped(key)
	if err != nil || !loaded || value.Type != store.TypeString {
		return "", false, err
	}
	return value.String, true, nil
}

func (s *storeImpl) GetBuffer(key string) ([]byte, bool, error) {
	value, loaded, err := s.getTyped(key)
	if err != nil || !loaded || value.Type != store.TypeBuffer {
		return nil, false, err
	}
	return value.Buffer, true, nil
}

func (s *storeImpl) Get(key string) (store.Value, bool, error) {
	return s.getTyped(key)
}

func (s *storeImpl) Contains(key string) (bool, error) {
	if err := checkKey(key); err != nil {
		return false, err
	}
	if !s.db.SupportsFeature(db.FeatureHas) {
		return false, store.NewError(store.RetCUnsupportedOperation, "Contains operation is not supported")
	}
	return s.db.Has(key), nil
}

func (s *storeImpl) AllKeys() ([]string, error) {
	if !s.db.SupportsFeature(db.FeatureKeys) {
		return nil, store.NewError(store.RetCUnsupportedOperation, "AllKeys operation is not supported")
	}
	return s.db.Keys(), nil
}

func (s *storeImpl) DeleteAll() error {
	if !s.db.SupportsFeature(db.FeatureClear) {
		return store.NewError(store.RetCUnsupportedOperation, "DeleteAll operation is not supported")
	}
	if err := s.db.Clear(); err != nil {
		return store.NewError(store.RetCInternalError, err.Error())
	}
	return nil
}

func (s *storeImpl) Recrypt(encryptionKey []byte) error {
	if !s.db.SupportsFeature(db.FeatureReKey) {
		return store.NewError(store.RetCUnsupportedOperation, "Recrypt operation is not supported")
	}
	if err := s.db.ReKey(encryptionKey); err != nil {
		return store.NewError(store.RetCInternalError, err.Error())
	}
	return nil
}

func (s *storeImpl) Trim() error {
	if !s.db.SupportsFeature(db.FeatureTrim) {
		return store.NewError(store.RetCUnsupportedOperation, "Trim operation is not supported")
	}
	if err := s.db.Trim(); err != nil {
		return store.NewError(store.RetCInternalError, err.Error())
	}

	// trimming also drops the in-memory value cache
	s.db.ClearCache()
	return nil
}

func (s *storeImpl) Size() (uint64, error) {
	return s.db.ActualSize(), nil
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	return s.db.GetInfo(), nil
}

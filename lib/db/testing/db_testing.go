package testing

import (
	"bytes"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/mKV/lib/db"
)

// DBFactory is a function that creates a new instance of a KVDB implementation.
// Calling the factory again after Close must open the same backing store, so
// the persistence tests can verify a close/open cycle.
type DBFactory func() db.KVDB

// RunKVDBTests runs a comprehensive test suite for a KVDB implementation.
func RunKVDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("Has", func(t *testing.T) {
			testHas(t, factory())
		})

		t.Run("SetIfUnset", func(t *testing.T) {
			testSetIfUnset(t, factory())
		})

		t.Run("Keys", func(t *testing.T) {
			testKeys(t, factory())
		})

		t.Run("Clear", func(t *testing.T) {
			testClear(t, factory())
		})

		t.Run("Trim", func(t *testing.T) {
			testTrim(t, factory())
		})

		t.Run("Persistence", func(t *testing.T) {
			testPersistence(t, factory)
		})

		t.Run("SizeReporting", func(t *testing.T) {
			testSizeReporting(t, factory())
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory())
		})

		t.Run("CollisionHandling", func(t *testing.T) {
			testCollisionHandling(t, factory())
		})

		t.Run("RealisticUsage", func(t *testing.T) {
			testRealisticUsage(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.KVDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet)
	requireFeature(t, database, db.FeatureGet)

	testKey := "test-key"
	testValue1 := []byte("test-value1")
	testValue2 := []byte("test-value2")

	if err := database.Set(testKey, testValue1); err != nil {
		t.Fatalf("Unexpected error during Set: %v", err)
	}

	result, exists, err := database.Get(testKey)
	if err != nil {
		t.Fatalf("Unexpected error during Get: %v", err)
	}
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}

	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}

	if err := database.Set(testKey, testValue2); err != nil {
		t.Fatalf("Unexpected error during Set: %v", err)
	}

	result, exists, _ = database.Get(testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}

	if !bytes.Equal(result, testValue2) {
		t.Errorf("Expected value %s, got %s", testValue2, result)
	}

	_, exists, _ = database.Get("nonexistent-key")
	if exists {
		t.Errorf("Expected nonexistent key to return exists=false")
	}

	retrievedValue, _, _ := database.Get(testKey)
	retrievedValue[0] = 'X'

	originalValue, _, _ := database.Get(testKey)
	if bytes.Equal(retrievedValue, originalValue) {
		t.Errorf("Get should return a copy, not a reference to the stored value")
	}
}

func testDelete(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet)
	requireFeature(t, database, db.FeatureGet)
	requireFeature(t, database, db.FeatureDelete)

	testKey := "delete-test-key"
	testValue := []byte("delete-test-value")

	database.Set(testKey, testValue)

	_, exists, _ := database.Get(testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}

	if err := database.Delete(testKey); err != nil {
		t.Fatalf("Unexpected error during Delete: %v", err)
	}

	_, exists, _ = database.Get(testKey)
	if exists {
		t.Errorf("Expected key %s to not exist after Delete", testKey)
	}

	if database.Has(testKey) {
		t.Errorf("Expected key %s to not exist after Delete", testKey)
	}

	// deleting a missing key must not error
	if err := database.Delete("nonexistent-key"); err != nil {
		t.Errorf("Unexpected error deleting nonexistent key: %v", err)
	}
}

func testHas(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet)
	requireFeature(t, database, db.FeatureDelete)
	requireFeature(t, database, db.FeatureHas)

	testKey := "has-exists-test-key"
	testValue := []byte("has-exists-test-value")

	if database.Has(testKey) {
		t.Errorf("Expected Has to return false for nonexistent key")
	}

	database.Set(testKey, testValue)

	if !database.Has(testKey) {
		t.Errorf("Expected Has to return true after Set")
	}

	database.Delete(testKey)

	if database.Has(testKey) {
		t.Errorf("Expected Has to return false after Delete")
	}
}

func testSetIfUnset(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSetIfUnset)
	requireFeature(t, database, db.FeatureGet)
	requireFeature(t, database, db.FeatureDelete)

	testKey := "test-key"
	testValue1 := []byte("test-value")
	testValue2 := []byte("test-value2")

	inserted, err := database.SetIfUnset(testKey, testValue1)
	if err != nil {
		t.Fatalf("Unexpected error during SetIfUnset: %v", err)
	}
	if !inserted {
		t.Errorf("Expected SetIfUnset to insert into empty slot")
	}

	result, exists, _ := database.Get(testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after SetIfUnset", testKey)
	}
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}

	inserted, _ = database.SetIfUnset(testKey, testValue2)
	if inserted {
		t.Errorf("Expected SetIfUnset to not overwrite an existing value")
	}

	result, _, _ = database.Get(testKey)
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}

	// after a delete the slot is free again
	database.Delete(testKey)
	inserted, _ = database.SetIfUnset(testKey, testValue2)
	if !inserted {
		t.Errorf("Expected SetIfUnset to insert after Delete")
	}
}

func testKeys(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet)
	requireFeature(t, database, db.FeatureKeys)
	requireFeature(t, database, db.FeatureDelete)

	// the store may carry state from earlier runs, count relative to it
	baseline := len(database.Keys())

	numKeys := 100
	for i := 0; i < numKeys; i++ {
		database.Set(fmt.Sprintf("keys-test-%d", i), []byte("v"))
	}

	keys := database.Keys()
	if len(keys) != baseline+numKeys {
		t.Errorf("Expected %d keys, got %d", baseline+numKeys, len(keys))
	}

	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		seen[key] = true
	}
	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("keys-test-%d", i)
		if !seen[key] {
			t.Errorf("Key %s missing from Keys result", key)
		}
	}

	database.Delete("keys-test-0")
	if len(database.Keys()) != baseline+numKeys-1 {
		t.Errorf("Expected %d keys after Delete", baseline+numKeys-1)
	}
}

func testClear(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet)
	requireFeature(t, database, db.FeatureGet)
	requireFeature(t, database, db.FeatureClear)

	numKeys := 100
	for i := 0; i < numKeys; i++ {
		database.Set(fmt.Sprintf("clear-test-%d", i), []byte("v"))
	}

	if err := database.Clear(); err != nil {
		t.Fatalf("Unexpected error during Clear: %v", err)
	}

	if len(database.Keys()) != 0 {
		t.Errorf("Expected no keys after Clear")
	}
	_, exists, _ := database.Get("clear-test-0")
	if exists {
		t.Errorf("Expected key to not exist after Clear")
	}

	// the database must stay usable after a Clear
	database.Set("after-clear", []byte("v"))
	if !database.Has("after-clear") {
		t.Errorf("Expected Set to work after Clear")
	}
}

func testTrim(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet)
	requireFeature(t, database, db.FeatureGet)
	requireFeature(t, database, db.FeatureTrim)

	// build up dead bytes by overwriting the same keys repeatedly
	numKeys := 100
	for round := 0; round < 10; round++ {
		for i := 0; i < numKeys; i++ {
			database.Set(fmt.Sprintf("trim-test-%d", i), []byte(fmt.Sprintf("round-%d", round)))
		}
	}
	for i := 0; i < numKeys; i += 2 {
		database.Delete(fmt.Sprintf("trim-test-%d", i))
	}

	sizeBefore := database.ActualSize()

	if err := database.Trim(); err != nil {
		t.Fatalf("Unexpected error during Trim: %v", err)
	}

	if sizeAfter := database.ActualSize(); sizeAfter >= sizeBefore {
		t.Errorf("Expected Trim to shrink the store: before=%d after=%d", sizeBefore, sizeAfter)
	}

	// all live entries survive the rewrite
	for i := 1; i < numKeys; i += 2 {
		key := fmt.Sprintf("trim-test-%d", i)
		value, exists, err := database.Get(key)
		if err != nil {
			t.Fatalf("Unexpected error during Get after Trim: %v", err)
		}
		if !exists {
			t.Errorf("Key %s missing after Trim", key)
			continue
		}
		if !bytes.Equal(value, []byte("round-9")) {
			t.Errorf("Value mismatch for key %s after Trim: got %s", key, value)
		}
	}
	for i := 0; i < numKeys; i += 2 {
		if database.Has(fmt.Sprintf("trim-test-%d", i)) {
			t.Errorf("Deleted key trim-test-%d reappeared after Trim", i)
		}
	}
}

func testPersistence(t *testing.T, factory DBFactory) {
	database := factory()

	requireFeature(t, database, db.FeatureSet)
	requireFeature(t, database, db.FeatureGet)
	requireFeature(t, database, db.FeaturePersist)

	numEntries := 1000
	originalKeys := make([]string, numEntries)
	originalValues := make([][]byte, numEntries)

	for i := 0; i < numEntries; i++ {
		key := fmt.Sprintf("persistence-test-key-%d", i)
		value := []byte(fmt.Sprintf("persistence-test-value-%d", i))
		originalKeys[i] = key
		originalValues[i] = value

		database.Set(key, value)
	}

	// a few deletes so the reopened state is not just the raw append order
	for i := 0; i < numEntries; i += 10 {
		database.Delete(originalKeys[i])
	}

	if err := database.Close(); err != nil {
		t.Fatalf("Unexpected error during Close: %v", err)
	}

	database2 := factory()
	defer database2.Close()

	for i := 0; i < numEntries; i++ {
		key := originalKeys[i]

		actualValue, exists, err := database2.Get(key)
		if err != nil {
			t.Fatalf("Unexpected error during Get after reopen: %v", err)
		}

		if i%10 == 0 {
			if exists {
				t.Errorf("Deleted key %s reappeared after reopen", key)
			}
			continue
		}

		if !exists {
			t.Errorf("Key %s not found after reopen", key)
			continue
		}
		if !bytes.Equal(actualValue, originalValues[i]) {
			t.Errorf("Value mismatch for key %s after reopen: expected %s, got %s",
				key, originalValues[i], actualValue)
		}
	}
}

func testSizeReporting(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet)

	initialSize := database.ActualSize()

	database.Set("size-test-key", []byte("size-test-value"))

	grownSize := database.ActualSize()
	if grownSize <= initialSize {
		t.Errorf("Expected ActualSize to grow after Set: before=%d after=%d", initialSize, grownSize)
	}

	if err := database.Sync(); err != nil {
		t.Fatalf("Unexpected error during Sync: %v", err)
	}

	totalSize, err := database.TotalSize()
	if err != nil {
		t.Fatalf("Unexpected error during TotalSize: %v", err)
	}
	if totalSize < grownSize {
		t.Errorf("Expected TotalSize >= ActualSize: total=%d actual=%d", totalSize, grownSize)
	}

	info := database.GetInfo()
	if info.SizeBytes != grownSize {
		t.Errorf("GetInfo size mismatch: expected %d, got %d", grownSize, info.SizeBytes)
	}
	if len(info.SupportedFeatures) == 0 {
		t.Errorf("Expected GetInfo to report supported features")
	}
}

func testEdgeCases(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet)
	requireFeature(t, database, db.FeatureGet)

	emptyKey := ""
	emptyKeyValue := []byte("value for empty key")

	database.Set(emptyKey, emptyKeyValue)

	result, exists, _ := database.Get(emptyKey)
	if !exists {
		t.Errorf("Empty key not found after Set")
	} else if !bytes.Equal(result, emptyKeyValue) {
		t.Errorf("Value mismatch for empty key")
	}

	emptyValueKey := "empty-value-key"
	var emptyValue []byte

	database.Set(emptyValueKey, emptyValue)

	result, exists, _ = database.Get(emptyValueKey)
	if !exists {
		t.Errorf("Key for empty value not found after Set")
	} else if len(result) != 0 {
		t.Errorf("Empty value resulted in non-empty value: %v", result)
	}

	if !t.Failed() {

		largeKey := string(make([]byte, 1000))
		largeKeyValue := []byte("value for large key")

		database.Set(largeKey, largeKeyValue)

		result, exists, _ = database.Get(largeKey)
		if !exists {
			t.Errorf("Large key not found after Set")
		} else if !bytes.Equal(result, largeKeyValue) {
			t.Errorf("Value mismatch for large key")
		}

		largeValueKey := "large-value-key"
		largeValue := make([]byte, 8*1024*1024)

		for i := range largeValue {
			largeValue[i] = byte(i % 256)
		}

		database.Set(largeValueKey, largeValue)

		result, exists, _ = database.Get(largeValueKey)
		if !exists {
			t.Errorf("Key for large value not found after Set")
		} else if !bytes.Equal(result, largeValue) {

			headMismatch := !bytes.Equal(result[:10], largeValue[:10])
			tailMismatch := !bytes.Equal(result[len(result)-10:], largeValue[len(largeValue)-10:])
			if headMismatch || tailMismatch || len(result) != len(largeValue) {
				t.Errorf("Large value mismatch: Head mismatch=%v, Tail mismatch=%v, Size mismatch=%v",
					headMismatch, tailMismatch, len(result) != len(largeValue))
			}
		}
	}
}

func testCollisionHandling(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet)
	requireFeature(t, database, db.FeatureGet)
	requireFeature(t, database, db.FeatureDelete)

	prefix := "collision-test-"
	numKeys := 1000

	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("%s%d", prefix, i)
		value := []byte(fmt.Sprintf("value-%d", i))

		database.Set(key, value)
	}

	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("%s%d", prefix, i)
		expectedValue := []byte(fmt.Sprintf("value-%d", i))

		actualValue, exists, _ := database.Get(key)
		if !exists {
			t.Errorf("Key %s not found", key)
			continue
		}

		if !bytes.Equal(actualValue, expectedValue) {
			t.Errorf("Value for key %s does not match: expected %s, got %s",
				key, expectedValue, actualValue)
		}
	}

	for i := 0; i < numKeys; i += 2 {
		key := fmt.Sprintf("%s%d", prefix, i)
		database.Delete(key)
	}

	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("%s%d", prefix, i)
		_, exists, _ := database.Get(key)

		if i%2 == 0 {
			if exists {
				t.Errorf("Key %s should be deleted", key)
			}
		} else {
			if !exists {
				t.Errorf("Key %s should still exist", key)
			}
		}
	}
}

func testRealisticUsage(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet)
	requireFeature(t, database, db.FeatureGet)
	requireFeature(t, database, db.FeatureDelete)

	type operation struct {
		op    string
		key   string
		value []byte
	}

	numOperations := 10_000
	operations := make([]operation, numOperations)

	for i := 0; i < numOperations; i++ {
		var op string
		switch i % 10 {
		case 0, 1, 2, 3, 4, 5, 6:
			op = "set"
		case 7, 8:
			op = "get"
		case 9:
			op = "delete"
		}

		var key string
		if i%5 == 0 {

			key = fmt.Sprintf("hot-key-%d", i%50)
		} else {

			key = fmt.Sprintf("key-%d", i)
		}

		var value []byte
		if op == "set" {
			valueSize := 64
			if i%10 == 0 {

				valueSize = 1024
			}
			value = make([]byte, valueSize)

			for j := 0; j < valueSize; j++ {
				value[j] = byte((i + j) % 256)
			}
		}

		operations[i] = operation{op, key, value}
	}

	allKeys := make(map[string]bool)
	for _, op := range operations {
		allKeys[op.key] = true
	}

	numWorkers := 8
	var wg sync.WaitGroup
	wg.Add(numWorkers)

	var errorCount int32

	opsPerWorker := numOperations / numWorkers

	for w := 0; w < numWorkers; w++ {
		go func(workerId int) {
			defer wg.Done()

			start := workerId * opsPerWorker
			end := start + opsPerWorker

			for i := start; i < end; i++ {
				op := operations[i]

				var err error
				switch op.op {
				case "set":
					err = database.Set(op.key, op.value)
				case "get":
					_, _, err = database.Get(op.key)
				case "delete":
					err = database.Delete(op.key)
				}
				if err != nil {
					atomic.AddInt32(&errorCount, 1)
				}
			}
		}(w)
	}

	wg.Wait()

	if atomic.LoadInt32(&errorCount) > 0 {
		t.Fatalf("Test had %d errors during parallel operations", errorCount)
		return
	}

	var (
		dbMutex   sync.Mutex
		keyStatus = make(map[string]bool)
		keyValues = make(map[string][]byte)
		errorKeys = make(map[string]string)
	)

	var verifyWg sync.WaitGroup
	verifyWg.Add(len(allKeys))

	for key := range allKeys {
		go func(k string) {
			defer verifyWg.Done()

			_, exists, _ := database.Get(k)

			dbMutex.Lock()
			defer dbMutex.Unlock()

			keyStatus[k] = exists

			if exists {

				value, ok, _ := database.Get(k)
				if !ok {

					errorKeys[k] = "Key exists but Get returned false"
					return
				}

				keyValues[k] = value
			}
		}(key)
	}

	verifyWg.Wait()

	for key := range allKeys {
		_, exists, _ := database.Get(key)

		if exists != keyStatus[key] {
			t.Errorf("Consistency error: Key %s existence changed during verification", key)
			continue
		}

		if exists {
			value, ok, _ := database.Get(key)
			if !ok {
				t.Errorf("Consistency error: Key %s exists but could not be retrieved", key)
				continue
			}

			if !bytes.Equal(value, keyValues[key]) {
				t.Errorf("Value mismatch for key %s between verification passes", key)
			}
		}
	}

	for key, errMsg := range errorKeys {
		t.Errorf("Error for key %s: %s", key, errMsg)
	}
}

package lstore

import (
	"bytes"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/ValentinKolb/mKV/lib/db"
	"github.com/ValentinKolb/mKV/lib/db/engines/willow"
	"github.com/ValentinKolb/mKV/lib/store"
)

func newTestStore(t *testing.T) store.IStore {
	t.Helper()
	dir := t.TempDir()
	// every test opens its own instance id since willow registers open
	// instances globally by id
	id := "lstore-" + strings.ReplaceAll(t.Name(), "/", "-")
	s, err := NewLocalStore(func() (db.KVDB, error) {
		opts := willow.DefaultOptions(id)
		opts.Path = dir
		return willow.Open(opts)
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return s
}

func TestTypedSetGet(t *testing.T) {
	s := newTestStore(t)

	if err := s.Set("bool", store.BooleanValue(true)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Set("num", store.NumberValue(3.25)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Set("str", store.StringValue("hello")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Set("buf", store.BufferValue([]byte{1, 2, 3})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b, loaded, err := s.GetBoolean("bool")
	if err != nil || !loaded || !b {
		t.Errorf("GetBoolean failed: value=%v loaded=%v err=%v", b, loaded, err)
	}

	n, loaded, err := s.GetNumber("num")
	if err != nil || !loaded || n != 3.25 {
		t.Errorf("GetNumber failed: value=%v loaded=%v err=%v", n, loaded, err)
	}

	str, loaded, err := s.GetString("str")
	if err != nil || !loaded || str != "hello" {
		t.Errorf("GetString failed: value=%q loaded=%v err=%v", str, loaded, err)
	}

	buf, loaded, err := s.GetBuffer("buf")
	if err != nil || !loaded || !bytes.Equal(buf, []byte{1, 2, 3}) {
		t.Errorf("GetBuffer failed: value=%v loaded=%v err=%v", buf, loaded, err)
	}
}

func TestTypeMismatchIsMissNotError(t *testing.T) {
	s := newTestStore(t)

	s.Set("num", store.NumberValue(42))

	// every non-number getter must report a miss without an error
	if _, loaded, err := s.GetBoolean("num"); loaded || err != nil {
		t.Errorf("expected miss for GetBoolean on number, got loaded=%v err=%v", loaded, err)
	}
	if _, loaded, err := s.GetString("num"); loaded || err != nil {
		t.Errorf("expected miss for GetString on number, got loaded=%v err=%v", loaded, err)
	}
	if _, loaded, err := s.GetBuffer("num"); loaded || err != nil {
		t.Errorf("expected miss for GetBuffer on number, got loaded=%v err=%v", loaded, err)
	}

	// the matching getter still works
	if n, loaded, err := s.GetNumber("num"); !loaded || err != nil || n != 42 {
		t.Errorf("expected hit for GetNumber, got value=%v loaded=%v err=%v", n, loaded, err)
	}

	// the key still exists either way
	if loaded, err := s.Contains("num"); !loaded || err != nil {
		t.Errorf("expected Contains to report the key, got loaded=%v err=%v", loaded, err)
	}
}

func TestOverwriteChangesType(t *testing.T) {
	s := newTestStore(t)

	s.Set("k", store.StringValue("text"))
	s.Set("k", store.BooleanValue(true))

	if _, loaded, _ := s.GetString("k"); loaded {
		t.Errorf("expected old type to be gone after overwrite")
	}
	if b, loaded, _ := s.GetBoolean("k"); !loaded || !b {
		t.Errorf("expected new type after overwrite")
	}
}

func TestMissingKey(t *testing.T) {
	s := newTestStore(t)

	if _, loaded, err := s.GetString("missing"); loaded || err != nil {
		t.Errorf("expected miss for missing key, got loaded=%v err=%v", loaded, err)
	}
	if loaded, err := s.Contains("missing"); loaded || err != nil {
		t.Errorf("expected Contains=false for missing key, got loaded=%v err=%v", loaded, err)
	}
}

func TestSetIfUnset(t *testing.T) {
	s := newTestStore(t)

	inserted, err := s.SetIfUnset("slot", store.StringValue("first"))
	if err != nil || !inserted {
		t.Fatalf("expected first SetIfUnset to insert: inserted=%v err=%v", inserted, err)
	}

	inserted, err = s.SetIfUnset("slot", store.StringValue("second"))
	if err != nil || inserted {
		t.Fatalf("expected second SetIfUnset to be a no-op: inserted=%v err=%v", inserted, err)
	}

	value, _, _ := s.GetString("slot")
	if value != "first" {
		t.Errorf("expected first value to survive, got %q", value)
	}
}

func TestDeleteAndDeleteAll(t *testing.T) {
	s := newTestStore(t)

	s.Set("a", store.NumberValue(1))
	s.Set("b", store.NumberValue(2))
	s.Set("c", store.NumberValue(3))

	if err := s.Delete("b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded, _ := s.Contains("b"); loaded {
		t.Errorf("expected key to be gone after Delete")
	}

	// deleting a missing key is fine
	if err := s.Delete("missing"); err != nil {
		t.Errorf("unexpected error deleting missing key: %v", err)
	}

	if err := s.DeleteAll(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	keys, err := s.AllKeys()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("expected no keys after DeleteAll, got %v", keys)
	}
}

func TestAllKeys(t *testing.T) {
	s := newTestStore(t)

	expected := []string{"alpha", "beta", "gamma"}
	for _, key := range expected {
		s.Set(key, store.BooleanValue(true))
	}

	keys, err := s.AllKeys()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sort.Strings(keys)
	if len(keys) != len(expected) {
		t.Fatalf("expected %d keys, got %d", len(expected), len(keys))
	}
	for i, key := range expected {
		if keys[i] != key {
			t.Errorf("expected key %q at position %d, got %q", key, i, keys[i])
		}
	}
}

func TestRecryptKeepsValues(t *testing.T) {
	s := newTestStore(t)

	s.Set("k", store.StringValue("survives recrypt"))

	if err := s.Recrypt([]byte("new secret")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	value, loaded, err := s.GetString("k")
	if err != nil || !loaded || value != "survives recrypt" {
		t.Errorf("value lost during Recrypt: value=%q loaded=%v err=%v", value, loaded, err)
	}

	// removing encryption again
	if err := s.Recrypt(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	value, loaded, _ = s.GetString("k")
	if !loaded || value != "survives recrypt" {
		t.Errorf("value lost after removing encryption")
	}
}

func TestTrimAndSize(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 100; i++ {
		s.Set("churn", store.BufferValue(make([]byte, 1024)))
	}

	before, err := s.Size()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := s.Trim(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	after, _ := s.Size()
	if after >= before {
		t.Errorf("expected Trim to shrink the store: before=%d after=%d", before, after)
	}

	// the live value is still there
	if _, loaded, _ := s.GetBuffer("churn"); !loaded {
		t.Errorf("live value lost during Trim")
	}
}

func TestGetDBInfo(t *testing.T) {
	s := newTestStore(t)

	s.Set("k", store.StringValue("v"))

	info, err := s.GetDBInfo()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.DbType != db.ImplWillow {
		t.Errorf("expected willow backend, got %v", info.DbType)
	}
	if info.SizeBytes == 0 {
		t.Errorf("expected non-zero size")
	}
}

func TestEmptyKeyRejected(t *testing.T) {
	s := newTestStore(t)

	assertInvalidKey := func(op string, err error) {
		t.Helper()
		var serr *store.Error
		if !errors.As(err, &serr) || serr.Code != store.RetCInvalidOperation {
			t.Errorf("expected RetCInvalidOperation for %s with empty key, got %v", op, err)
		}
	}

	assertInvalidKey("Set", s.Set("", store.StringValue("value")))
	_, err := s.SetIfUnset("", store.StringValue("value"))
	assertInvalidKey("SetIfUnset", err)
	assertInvalidKey("Delete", s.Delete(""))
	_, err = s.Contains("")
	assertInvalidKey("Contains", err)
	_, _, err = s.Get("")
	assertInvalidKey("Get", err)
	_, _, err = s.GetBoolean("")
	assertInvalidKey("GetBoolean", err)
	_, _, err = s.GetNumber("")
	assertInvalidKey("GetNumber", err)
	_, _, err = s.GetString("")
	assertInvalidKey("GetString", err)
	_, _, err = s.GetBuffer("")
	assertInvalidKey("GetBuffer", err)

	// nothing must have reached the engine
	keys, err := s.AllKeys()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("expected no keys after rejected writes, got %v", keys)
	}
}

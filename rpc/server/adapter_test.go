package server

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ValentinKolb/mKV/lib/db"
	"github.com/ValentinKolb/mKV/lib/db/engines/willow"
	"github.com/ValentinKolb/mKV/lib/store"
	"github.com/ValentinKolb/mKV/lib/store/lstore"
	"github.com/ValentinKolb/mKV/rpc/common"
)

func newTestStore(t *testing.T) store.IStore {
	t.Helper()
	dir := t.TempDir()
	// every test opens its own instance id since willow registers open
	// instances globally by id
	id := "adapter-" + strings.ReplaceAll(t.Name(), "/", "-")
	s, err := lstore.NewLocalStore(func() (db.KVDB, error) {
		opts := willow.DefaultOptions(id)
		opts.Path = dir
		return willow.Open(opts)
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return s
}

func mustEncode(t *testing.T, v store.Value) []byte {
	t.Helper()
	encoded, err := store.EncodeValue(v)
	if err != nil {
		t.Fatalf("failed to encode value: %v", err)
	}
	return encoded
}

func TestIStoreAdapterSetAndTypedGets(t *testing.T) {
	s := newTestStore(t)
	adapter := NewIStoreServerAdapter()

	// set values of all four types
	for key, value := range map[string]store.Value{
		"bool": store.BooleanValue(true),
		"num":  store.NumberValue(42.5),
		"str":  store.StringValue("hello"),
		"buf":  store.BufferValue([]byte{1, 2, 3}),
	} {
		resp := adapter.Handle(common.NewSetRequest(key, mustEncode(t, value)), s)
		if resp.Err != "" {
			t.Fatalf("set %q failed: %s", key, resp.Err)
		}
	}

	// read them back through the matching typed getters
	tests := []struct {
		msgType common.MessageType
		key     string
		want    store.Value
	}{
		{common.MsgTKVGetBoolean, "bool", store.BooleanValue(true)},
		{common.MsgTKVGetNumber, "num", store.NumberValue(42.5)},
		{common.MsgTKVGetString, "str", store.StringValue("hello")},
		{common.MsgTKVGetBuffer, "buf", store.BufferValue([]byte{1, 2, 3})},
		{common.MsgTKVGet, "str", store.StringValue("hello")},
	}
	for _, tc := range tests {
		resp := adapter.Handle(common.NewGetRequest(tc.msgType, tc.key), s)
		if resp.Err != "" {
			t.Fatalf("%s %q failed: %s", tc.msgType, tc.key, resp.Err)
		}
		if !resp.Ok {
			t.Fatalf("%s %q: expected a hit", tc.msgType, tc.key)
		}
		got, err := store.DecodeValue(resp.Value)
		if err != nil {
			t.Fatalf("%s %q: invalid value in response: %v", tc.msgType, tc.key, err)
		}
		if got.Type != tc.want.Type {
			t.Errorf("%s %q: got type %s, want %s", tc.msgType, tc.key, got.Type, tc.want.Type)
		}
	}
}

func TestIStoreAdapterTypeMismatchIsMiss(t *testing.T) {
	s := newTestStore(t)
	adapter := NewIStoreServerAdapter()

	resp := adapter.Handle(common.NewSetRequest("key", mustEncode(t, store.StringValue("text"))), s)
	if resp.Err != "" {
		t.Fatalf("set failed: %s", resp.Err)
	}

	// asking for the wrong type reports a miss, not an error
	resp = adapter.Handle(common.NewGetRequest(common.MsgTKVGetNumber, "key"), s)
	if resp.Err != "" {
		t.Fatalf("unexpected error: %s", resp.Err)
	}
	if resp.Ok {
		t.Error("expected a miss for mismatched type")
	}
}

func TestIStoreAdapterLifecycle(t *testing.T) {
	s := newTestStore(t)
	adapter := NewIStoreServerAdapter()

	// setnx inserts only once
	encoded := mustEncode(t, store.StringValue("v"))
	resp := adapter.Handle(common.NewSetIfUnsetRequest("key", encoded), s)
	if resp.Err != "" || !resp.Ok {
		t.Fatalf("expected first setIfUnset to insert, got ok=%t err=%q", resp.Ok, resp.Err)
	}
	resp = adapter.Handle(common.NewSetIfUnsetRequest("key", encoded), s)
	if resp.Err != "" || resp.Ok {
		t.Fatalf("expected second setIfUnset to be rejected, got ok=%t err=%q", resp.Ok, resp.Err)
	}

	// contains and allKeys see the pair
	resp = adapter.Handle(common.NewContainsRequest("key"), s)
	if !resp.Ok {
		t.Error("expected contains to report the key")
	}
	resp = adapter.Handle(common.NewAllKeysRequest(), s)
	if len(resp.Keys) != 1 || resp.Keys[0] != "key" {
		t.Errorf("unexpected key listing: %v", resp.Keys)
	}

	// size reports a non-empty log
	resp = adapter.Handle(common.NewSizeRequest(), s)
	if resp.Err != "" || resp.Size == 0 {
		t.Errorf("expected non-zero size, got %d (err=%q)", resp.Size, resp.Err)
	}

	// delete and deleteAll empty the store
	resp = adapter.Handle(common.NewDeleteRequest("key"), s)
	if resp.Err != "" {
		t.Fatalf("delete failed: %s", resp.Err)
	}
	resp = adapter.Handle(common.NewDeleteAllRequest(), s)
	if resp.Err != "" {
		t.Fatalf("deleteAll failed: %s", resp.Err)
	}
	resp = adapter.Handle(common.NewContainsRequest("key"), s)
	if resp.Ok {
		t.Error("expected key to be gone")
	}
}

func TestIStoreAdapterRecryptAndTrim(t *testing.T) {
	s := newTestStore(t)
	adapter := NewIStoreServerAdapter()

	resp := adapter.Handle(common.NewSetRequest("key", mustEncode(t, store.StringValue("v"))), s)
	if resp.Err != "" {
		t.Fatalf("set failed: %s", resp.Err)
	}

	resp = adapter.Handle(common.NewRecryptRequest([]byte("secret")), s)
	if resp.Err != "" {
		t.Fatalf("recrypt failed: %s", resp.Err)
	}
	resp = adapter.Handle(common.NewTrimRequest(), s)
	if resp.Err != "" {
		t.Fatalf("trim failed: %s", resp.Err)
	}

	// data survives both operations
	resp = adapter.Handle(common.NewGetRequest(common.MsgTKVGetString, "key"), s)
	if !resp.Ok {
		t.Fatal("expected key to survive recrypt and trim")
	}
}

func TestIStoreAdapterRejectsUnknownType(t *testing.T) {
	s := newTestStore(t)
	adapter := NewIStoreServerAdapter()

	resp := adapter.Handle(&common.Message{MsgType: common.MsgTLCKAcquire}, s)
	if resp.MsgType != common.MsgTError {
		t.Errorf("expected error response, got %s", resp.MsgType)
	}
}

func TestLockManagerAdapter(t *testing.T) {
	s := newTestStore(t)
	adapter := NewLockManagerServerAdapter()

	// acquire a lock
	resp := adapter.Handle(common.NewAcquireRequest("lock", 30), s)
	if resp.Err != "" || !resp.Ok {
		t.Fatalf("expected lock to be acquired, got ok=%t err=%q", resp.Ok, resp.Err)
	}
	ownerID := resp.Value
	if len(ownerID) == 0 {
		t.Fatal("expected an owner id")
	}

	// a second acquire is rejected while the lock is held
	resp = adapter.Handle(common.NewAcquireRequest("lock", 30), s)
	if resp.Ok {
		t.Error("expected second acquire to fail")
	}

	// release with the wrong owner fails, with the right owner succeeds
	resp = adapter.Handle(common.NewReleaseRequest("lock", bytes.Repeat([]byte{0xff}, len(ownerID))), s)
	if resp.Ok {
		t.Error("expected release with wrong owner to fail")
	}
	resp = adapter.Handle(common.NewReleaseRequest("lock", ownerID), s)
	if resp.Err != "" || !resp.Ok {
		t.Fatalf("expected release to succeed, got ok=%t err=%q", resp.Ok, resp.Err)
	}
}

func TestAdaptersRejectNilStore(t *testing.T) {
	for _, adapter := range []IRPCServerAdapter{
		NewIStoreServerAdapter(),
		NewLockManagerServerAdapter(),
	} {
		resp := adapter.Handle(common.NewContainsRequest("key"), nil)
		if resp.MsgType != common.MsgTError {
			t.Errorf("expected error response for nil store, got %s", resp.MsgType)
		}
	}
}

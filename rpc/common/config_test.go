package common

import (
	"testing"
)

func TestParseInstances(t *testing.T) {
	instances, err := ParseInstances("100=store(main), 200=lockmgr(locks)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(instances) != 2 {
		t.Fatalf("expected 2 instances, got %d", len(instances))
	}

	if instances[0].ShardID != 100 || instances[0].Type != InstanceTypeStore || instances[0].Name != "main" {
		t.Errorf("unexpected first instance: %+v", instances[0])
	}
	if instances[1].ShardID != 200 || instances[1].Type != InstanceTypeLockManager || instances[1].Name != "locks" {
		t.Errorf("unexpected second instance: %+v", instances[1])
	}
}

func TestParseInstancesRejectsInvalid(t *testing.T) {
	cases := []string{
		"",                                // empty
		"abc=store(main)",                 // bad shard id
		"100=store",                       // missing name
		"100=store()",                     // empty name
		"100=foo(main)",                   // unknown type
		"100=store(main),100=lockmgr(l)",  // duplicate shard id
		"100 store(main)",                 // missing separator
	}

	for _, s := range cases {
		if _, err := ParseInstances(s); err == nil {
			t.Errorf("expected error for %q", s)
		}
	}
}

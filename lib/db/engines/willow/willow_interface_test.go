package willow

import (
	"testing"

	"github.com/ValentinKolb/mKV/lib/db"
	dbtesting "github.com/ValentinKolb/mKV/lib/db/testing"
)

func Test(t *testing.T) {
	dir := t.TempDir()
	dbtesting.RunKVDBTests(t, "WillowDB", func() db.KVDB {
		opts := DefaultOptions("interface-test")
		opts.Path = dir
		database, err := Open(opts)
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		return database
	})
}

func Benchmark(b *testing.B) {
	dir := b.TempDir()
	dbtesting.RunKVDBBenchmarks(b, "WillowDB", func() db.KVDB {
		opts := DefaultOptions("interface-bench")
		opts.Path = dir
		database, err := Open(opts)
		if err != nil {
			b.Fatalf("failed to open database: %v", err)
		}
		return database
	})
}

package bolt

import (
	"errors"
	"testing"

	berrors "go.etcd.io/bbolt/errors"

	"github.com/Giulio2002/mapkv/engine"
	"github.com/Giulio2002/mapkv/internal/enginetest"
)

func TestEngineSuite(t *testing.T) {
	enginetest.Run(t, func() engine.Engine { return New() })
}

func TestTablesAreBuckets(t *testing.T) {
	env, main := enginetest.Open(t, New(), t.TempDir())

	txn, err := env.BeginTxn(nil, engine.TxnReadWrite)
	if err != nil {
		t.Fatalf("BeginTxn failed: %v", err)
	}
	other, err := txn.OpenTable("other", engine.Create)
	if err != nil {
		txn.Abort()
		t.Fatalf("OpenTable failed: %v", err)
	}
	if other == main {
		t.Errorf("tables share a handle: %d", other)
	}
	if err := txn.Put(other, []byte("k"), []byte("in other"), engine.Upsert); err != nil {
		txn.Abort()
		t.Fatalf("Put failed: %v", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	if _, ok := enginetest.Get(t, env, main, "k"); ok {
		t.Error("key written to other table is visible in main")
	}
	if got, ok := enginetest.Get(t, env, other, "k"); !ok || got != "in other" {
		t.Errorf("other: got %q, %v", got, ok)
	}
}

func TestOpenTableWithoutCreate(t *testing.T) {
	env, _ := enginetest.Open(t, New(), t.TempDir())

	txn, err := env.BeginTxn(nil, engine.TxnReadOnly)
	if err != nil {
		t.Fatalf("BeginTxn failed: %v", err)
	}
	defer txn.Abort()
	if _, err := txn.OpenTable("missing", 0); !engine.IsNotFound(err) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestBadHandle(t *testing.T) {
	env, _ := enginetest.Open(t, New(), t.TempDir())

	txn, err := env.BeginTxn(nil, engine.TxnReadOnly)
	if err != nil {
		t.Fatalf("BeginTxn failed: %v", err)
	}
	defer txn.Abort()
	if _, err := txn.Get(engine.Table(42), []byte("k")); engine.Code(err) != engine.BadDBI {
		t.Errorf("expected BadDBI, got %v", err)
	}
}

func TestWrap(t *testing.T) {
	cases := []struct {
		err  error
		want engine.Status
	}{
		{berrors.ErrTxNotWritable, engine.Incompatible},
		{berrors.ErrKeyRequired, engine.BadValSize},
		{berrors.ErrTimeout, engine.Busy},
		{berrors.ErrChecksum, engine.Corrupted},
		{errors.New("disk on fire"), engine.Problem},
	}
	for _, c := range cases {
		if got := engine.Code(wrap(c.err)); got != c.want {
			t.Errorf("wrap(%v): got %v, want %v", c.err, got, c.want)
		}
	}
	if wrap(nil) != nil {
		t.Error("wrap(nil) should be nil")
	}
}

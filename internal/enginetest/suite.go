// Package enginetest holds the behavior every engine backend must share.
// Backend packages call Run from their tests.
package enginetest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Giulio2002/mapkv/engine"
)

// Flags are the environment flags the suite opens with. NoTLS lets one
// goroutine hold a reader next to a writer.
const Flags = engine.NoTLS | engine.NoReadAhead | engine.NoSync | engine.NoMetaSync

const mapSize = 16 << 20

// Run exercises a backend through the engine surface.
func Run(t *testing.T, newEngine func() engine.Engine) {
	t.Run("RoundTrip", func(t *testing.T) { testRoundTrip(t, newEngine()) })
	t.Run("Missing", func(t *testing.T) { testMissing(t, newEngine()) })
	t.Run("Overwrite", func(t *testing.T) { testOverwrite(t, newEngine()) })
	t.Run("Abort", func(t *testing.T) { testAbort(t, newEngine()) })
	t.Run("Isolation", func(t *testing.T) { testIsolation(t, newEngine()) })
	t.Run("EndedTxn", func(t *testing.T) { testEndedTxn(t, newEngine()) })
	t.Run("GrowAfterOpen", func(t *testing.T) { testGrowAfterOpen(t, newEngine()) })
	t.Run("Reopen", func(t *testing.T) { testReopen(t, newEngine()) })
}

// Open creates and opens an environment in dir and returns it with its main
// table. The environment is closed when the test ends.
func Open(t *testing.T, eng engine.Engine, dir string) (engine.Env, engine.Table) {
	t.Helper()
	env, err := eng.CreateEnv()
	require.NoError(t, err)
	require.NoError(t, env.SetMapSize(mapSize))
	require.NoError(t, env.Open(dir, Flags, 0644))

	txn, err := env.BeginTxn(nil, engine.TxnReadWrite)
	require.NoError(t, err)
	table, err := txn.OpenTable("", engine.Create)
	if err != nil {
		txn.Abort()
		env.Close()
		require.NoError(t, err)
	}
	require.NoError(t, txn.Commit())

	t.Cleanup(func() {
		env.CloseTable(table)
		env.Close()
	})
	return env, table
}

// Put writes key=value in its own transaction.
func Put(t *testing.T, env engine.Env, table engine.Table, key, value string) {
	t.Helper()
	txn, err := env.BeginTxn(nil, engine.TxnReadWrite)
	require.NoError(t, err)
	if err := txn.Put(table, []byte(key), []byte(value), engine.Upsert); err != nil {
		txn.Abort()
		require.NoError(t, err)
	}
	require.NoError(t, txn.Commit())
}

// Get reads key in a read-only transaction. ok is false for a missing key.
func Get(t *testing.T, env engine.Env, table engine.Table, key string) (value string, ok bool) {
	t.Helper()
	txn, err := env.BeginTxn(nil, engine.TxnReadOnly)
	require.NoError(t, err)
	defer txn.Abort()

	v, err := txn.Get(table, []byte(key))
	if engine.IsNotFound(err) {
		return "", false
	}
	require.NoError(t, err)
	return string(v), true
}

func testRoundTrip(t *testing.T, eng engine.Engine) {
	env, table := Open(t, eng, t.TempDir())

	txn, err := env.BeginTxn(nil, engine.TxnReadWrite)
	require.NoError(t, err)
	require.NoError(t, txn.Put(table, []byte("hello"), []byte("world"), engine.Upsert))

	v, err := txn.Get(table, []byte("hello"))
	require.NoError(t, err)
	require.Equal(t, "world", string(v))
	require.NoError(t, txn.Commit())

	got, ok := Get(t, env, table, "hello")
	require.True(t, ok)
	require.Equal(t, "world", got)
}

func testMissing(t *testing.T, eng engine.Engine) {
	env, table := Open(t, eng, t.TempDir())

	_, ok := Get(t, env, table, "absent")
	require.False(t, ok)

	txn, err := env.BeginTxn(nil, engine.TxnReadOnly)
	require.NoError(t, err)
	defer txn.Abort()
	_, err = txn.Get(table, []byte("absent"))
	require.True(t, engine.IsNotFound(err), "got %v", err)
	require.Equal(t, engine.NotFound, engine.Code(err))
}

func testOverwrite(t *testing.T, eng engine.Engine) {
	env, table := Open(t, eng, t.TempDir())

	Put(t, env, table, "k", "one")
	Put(t, env, table, "k", "two")

	got, ok := Get(t, env, table, "k")
	require.True(t, ok)
	require.Equal(t, "two", got)
}

func testAbort(t *testing.T, eng engine.Engine) {
	env, table := Open(t, eng, t.TempDir())

	txn, err := env.BeginTxn(nil, engine.TxnReadWrite)
	require.NoError(t, err)
	require.NoError(t, txn.Put(table, []byte("k"), []byte("v"), engine.Upsert))
	txn.Abort()
	txn.Abort()

	_, ok := Get(t, env, table, "k")
	require.False(t, ok)
}

func testIsolation(t *testing.T, eng engine.Engine) {
	env, table := Open(t, eng, t.TempDir())
	Put(t, env, table, "k", "old")

	writer, err := env.BeginTxn(nil, engine.TxnReadWrite)
	require.NoError(t, err)
	defer writer.Abort()
	require.NoError(t, writer.Put(table, []byte("k"), []byte("new"), engine.Upsert))
	require.NoError(t, writer.Put(table, []byte("fresh"), []byte("x"), engine.Upsert))

	reader, err := env.BeginTxn(nil, engine.TxnReadOnly)
	require.NoError(t, err)
	defer reader.Abort()

	v, err := reader.Get(table, []byte("k"))
	require.NoError(t, err)
	require.Equal(t, "old", string(v))
	_, err = reader.Get(table, []byte("fresh"))
	require.True(t, engine.IsNotFound(err), "uncommitted key visible: %v", err)
}

func testEndedTxn(t *testing.T, eng engine.Engine) {
	env, table := Open(t, eng, t.TempDir())

	txn, err := env.BeginTxn(nil, engine.TxnReadWrite)
	require.NoError(t, err)
	require.NoError(t, txn.Put(table, []byte("k"), []byte("v"), engine.Upsert))
	require.NoError(t, txn.Commit())

	_, err = txn.Get(table, []byte("k"))
	require.Equal(t, engine.BadTxn, engine.Code(err))
	err = txn.Put(table, []byte("k"), []byte("v2"), engine.Upsert)
	require.Equal(t, engine.BadTxn, engine.Code(err))
	require.Equal(t, engine.BadTxn, engine.Code(txn.Commit()))
	txn.Abort()

	got, ok := Get(t, env, table, "k")
	require.True(t, ok)
	require.Equal(t, "v", got)
}

func testGrowAfterOpen(t *testing.T, eng engine.Engine) {
	env, table := Open(t, eng, t.TempDir())
	Put(t, env, table, "before", "1")

	require.NoError(t, env.SetMapSize(2*mapSize))
	if ms, ok := env.(engine.MapSizer); ok {
		require.GreaterOrEqual(t, ms.MapSize(), int64(2*mapSize))
	}

	Put(t, env, table, "after", "2")
	for k, want := range map[string]string{"before": "1", "after": "2"} {
		got, ok := Get(t, env, table, k)
		require.True(t, ok, k)
		require.Equal(t, want, got)
	}
}

func testReopen(t *testing.T, eng engine.Engine) {
	dir := t.TempDir()

	env, err := eng.CreateEnv()
	require.NoError(t, err)
	require.NoError(t, env.SetMapSize(mapSize))
	require.NoError(t, env.Open(dir, engine.NoReadAhead, 0644))
	txn, err := env.BeginTxn(nil, engine.TxnReadWrite)
	require.NoError(t, err)
	table, err := txn.OpenTable("", engine.Create)
	require.NoError(t, err)
	require.NoError(t, txn.Put(table, []byte("durable"), []byte("yes"), engine.Upsert))
	require.NoError(t, txn.Commit())
	env.CloseTable(table)
	require.NoError(t, env.Close())

	env, table = Open(t, eng, dir)
	got, ok := Get(t, env, table, "durable")
	require.True(t, ok)
	require.Equal(t, "yes", got)
}

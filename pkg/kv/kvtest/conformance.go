// Package kvtest provides conformance tests for kv.Store implementations
package kvtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trossachsgroup/site-backend/pkg/kv"
)

// StoreFactory creates a fresh Store instance for testing
type StoreFactory func(t *testing.T) kv.Store

// RunConformanceTests runs all conformance tests against a Store implementation.
// Keys are namespaced under "kvtest:" and removed before each case.
func RunConformanceTests(t *testing.T, factory StoreFactory) {
	tests := []struct {
		name string
		test func(t *testing.T, store kv.Store)
	}{
		{"SetGet", testSetGet},
		{"GetNonExistent", testGetNonExistent},
		{"SetOverwritesList", testSetOverwritesList},
		{"Del", testDel},
		{"Expire", testExpire},
		{"ExpireList", testExpireList},
		{"IncrBy", testIncrBy},
		{"IncrByWrongType", testIncrByWrongType},
		{"ListPushRange", testListPushRange},
		{"ListTrim", testListTrim},
		{"ListWrongType", testListWrongType},
		{"Ping", testPing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			cleanup(t, store)
			tt.test(t, store)
		})
	}
}

var keys = []string{
	"kvtest:string",
	"kvtest:missing",
	"kvtest:ttl",
	"kvtest:counter",
	"kvtest:list",
	"kvtest:other",
}

func cleanup(t *testing.T, store kv.Store) {
	_, err := store.Del(context.Background(), keys...)
	require.NoError(t, err)
}

func testSetGet(t *testing.T, store kv.Store) {
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "kvtest:string", []byte("hello world")))

	got, err := store.Get(ctx, "kvtest:string")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), got)

	require.NoError(t, store.Set(ctx, "kvtest:string", []byte("replaced")))
	got, err = store.Get(ctx, "kvtest:string")
	require.NoError(t, err)
	assert.Equal(t, []byte("replaced"), got)
}

func testGetNonExistent(t *testing.T, store kv.Store) {
	_, err := store.Get(context.Background(), "kvtest:missing")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func testSetOverwritesList(t *testing.T, store kv.Store) {
	ctx := context.Background()

	_, err := store.RPush(ctx, "kvtest:other", []byte("a"))
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "kvtest:other", []byte("plain")))

	got, err := store.Get(ctx, "kvtest:other")
	require.NoError(t, err)
	assert.Equal(t, []byte("plain"), got)
}

func testDel(t *testing.T, store kv.Store) {
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "kvtest:string", []byte("v")))
	_, err := store.RPush(ctx, "kvtest:list", []byte("v"))
	require.NoError(t, err)

	deleted, err := store.Del(ctx, "kvtest:string", "kvtest:list", "kvtest:missing")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	_, err = store.Get(ctx, "kvtest:string")
	assert.ErrorIs(t, err, kv.ErrNotFound)
	items, err := store.LRange(ctx, "kvtest:list", 0, -1)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func testExpire(t *testing.T, store kv.Store) {
	ctx := context.Background()

	ok, err := store.Expire(ctx, "kvtest:missing", time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "kvtest:ttl", []byte("v")))
	ok, err = store.Expire(ctx, "kvtest:ttl", 1100*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = store.Get(ctx, "kvtest:ttl")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := store.Get(ctx, "kvtest:ttl")
		return err == kv.ErrNotFound
	}, 3*time.Second, 50*time.Millisecond)
}

func testExpireList(t *testing.T, store kv.Store) {
	ctx := context.Background()

	_, err := store.RPush(ctx, "kvtest:list", []byte("a"), []byte("b"))
	require.NoError(t, err)
	ok, err := store.Expire(ctx, "kvtest:list", 1100*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok)

	// A later push keeps the deadline
	_, err = store.RPush(ctx, "kvtest:list", []byte("c"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		items, err := store.LRange(ctx, "kvtest:list", 0, -1)
		return err == nil && len(items) == 0
	}, 3*time.Second, 50*time.Millisecond)
}

func testIncrBy(t *testing.T, store kv.Store) {
	ctx := context.Background()

	v, err := store.IncrBy(ctx, "kvtest:counter", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	v, err = store.IncrBy(ctx, "kvtest:counter", 41)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	v, err = store.IncrBy(ctx, "kvtest:counter", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	got, err := store.Get(ctx, "kvtest:counter")
	require.NoError(t, err)
	assert.Equal(t, "42", string(got))
}

func testIncrByWrongType(t *testing.T, store kv.Store) {
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "kvtest:string", []byte("not a number")))
	_, err := store.IncrBy(ctx, "kvtest:string", 1)
	assert.ErrorIs(t, err, kv.ErrWrongType)
}

func testListPushRange(t *testing.T, store kv.Store) {
	ctx := context.Background()

	n, err := store.RPush(ctx, "kvtest:list", []byte("a"), []byte("b"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	n, err = store.RPush(ctx, "kvtest:list", []byte("c"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	all, err := store.LRange(ctx, "kvtest:list", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b"), []byte("c")}, all)

	tail, err := store.LRange(ctx, "kvtest:list", -2, -1)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("b"), []byte("c")}, tail)

	none, err := store.LRange(ctx, "kvtest:list", 5, 10)
	require.NoError(t, err)
	assert.Empty(t, none)

	missing, err := store.LRange(ctx, "kvtest:missing", 0, -1)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func testListTrim(t *testing.T, store kv.Store) {
	ctx := context.Background()

	_, err := store.RPush(ctx, "kvtest:list", []byte("1"), []byte("2"), []byte("3"), []byte("4"))
	require.NoError(t, err)

	require.NoError(t, store.LTrim(ctx, "kvtest:list", -2, -1))
	all, err := store.LRange(ctx, "kvtest:list", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("3"), []byte("4")}, all)

	require.NoError(t, store.LTrim(ctx, "kvtest:list", 5, 1))
	all, err = store.LRange(ctx, "kvtest:list", 0, -1)
	require.NoError(t, err)
	assert.Empty(t, all)

}

func testListWrongType(t *testing.T, store kv.Store) {
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "kvtest:string", []byte("v")))
	_, err := store.RPush(ctx, "kvtest:string", []byte("x"))
	assert.ErrorIs(t, err, kv.ErrWrongType)
}

func testPing(t *testing.T, store kv.Store) {
	assert.NoError(t, store.Ping(context.Background()))
}

package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoCachesUntilInvalidated(t *testing.T) {
	var loads int32
	memo := NewMemo[int](NewMemoryCache(0, 0), Key("ids", "ontology.json"), 0)
	load := func() (int, error) {
		return int(atomic.AddInt32(&loads, 1)), nil
	}

	v, err := memo.Get(load)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, err = memo.Get(load)
	require.NoError(t, err)
	assert.Equal(t, 1, v, "second get should hit the cache")

	memo.Invalidate()
	v, err = memo.Get(load)
	require.NoError(t, err)
	assert.Equal(t, 2, v, "get after invalidate should reload")
}

func TestMemoDoesNotCacheErrors(t *testing.T) {
	memo := NewMemo[string](nil, "k", 0)
	boom := errors.New("boom")

	_, err := memo.Get(func() (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)

	v, err := memo.Get(func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestMemoConcurrentGetLoadsOnce(t *testing.T) {
	var loads int32
	memo := NewMemo[int](nil, "k", 0)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = memo.Get(func() (int, error) {
				atomic.AddInt32(&loads, 1)
				time.Sleep(5 * time.Millisecond)
				return 7, nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&loads))
}

func TestMemoryCacheOperations(t *testing.T) {
	c := NewMemoryCache(0, 0)
	c.Set("a", 1, 0)
	c.Set("b", "two", time.Minute)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, c.Len())

	c.Delete("a")
	_, ok = c.Get("a")
	assert.False(t, ok)

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestKeyIsStablePerSource(t *testing.T) {
	assert.Equal(t, Key("rules", "a.json"), Key("rules", "a.json"))
	assert.NotEqual(t, Key("rules", "a.json"), Key("rules", "b.json"))
	assert.NotEqual(t, Key("rules", "a.json"), Key("ids", "a.json"))
}

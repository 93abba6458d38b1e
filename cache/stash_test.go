package cache

import (
	"testing"

	"github.com/agentuity/go-cachew/logger"
	"github.com/stretchr/testify/assert"
)

func TestStashSetGetRemove(t *testing.T) {
	s := NewStash[string, string](Small, WithLogger(logger.NewTestLogger()))
	s.Set("k", "v")
	v, ok := s.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	assert.True(t, s.Remove("k"))
	assert.False(t, s.Remove("k"), "removing an absent key is a no-op")
	_, ok = s.Get("k")
	assert.False(t, ok)
}

func TestStashDiscardsEvictions(t *testing.T) {
	s := NewStash[int, int](Custom(4), WithLogger(logger.NewTestLogger()))
	for i := 1; i <= 4; i++ {
		s.Set(i, i)
	}
	s.Get(1)
	s.Set(5, 5)

	assert.Equal(t, 4, s.Len())
	assert.False(t, s.Contains(2))
	assert.Equal(t, []int{3, 4, 1, 5}, s.Keys())
	assert.Equal(t, uint64(1), s.Stats().Evictions)

	s.RemoveAll()
	assert.Equal(t, 0, s.Len())
}

func TestStashSizes(t *testing.T) {
	for _, tc := range []struct {
		size CacheSize
		want int
	}{
		{Small, 10},
		{Medium, 100},
		{Large, 1000},
		{ExtraLarge, 10000},
		{Custom(7), 7},
	} {
		s := NewStash[int, int](tc.size, WithLogger(logger.NewTestLogger()))
		for i := 0; i < tc.want+5; i++ {
			s.Set(i, i)
		}
		assert.Equal(t, tc.want, s.Len(), tc.size.String())
	}
}

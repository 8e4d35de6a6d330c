package blobgate

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBucketCache(t *testing.T) {
	t.Run("add and contains", func(t *testing.T) {
		c := NewBucketCache(4)
		assert.False(t, c.Contains("a"))
		c.Add("a")
		assert.True(t, c.Contains("a"))
		c.Add("a")
		assert.Equal(t, 1, c.Len())
	})

	t.Run("capacity bound", func(t *testing.T) {
		c := NewBucketCache(8)
		for i := 0; i < 100; i++ {
			c.Add(fmt.Sprintf("bucket-%d", i))
		}
		assert.Equal(t, 8, c.Len())
	})

	t.Run("zero capacity uses default", func(t *testing.T) {
		c := NewBucketCache(0)
		c.Add("a")
		assert.True(t, c.Contains("a"))
	})
}

// Copyright 2025 R5 Labs
// This file is part of the R5 Core library.
//
// This software is provided "as is", without warranty of any kind,
// express or implied, including but not limited to the warranties
// of merchantability, fitness for a particular purpose and
// noninfringement. In no event shall the authors or copyright
// holders be liable for any claim, damages, or other liability,
// whether in an action of contract, tort or otherwise, arising
// from, out of or in connection with the software or the use or
// other dealings in the software.

package lru

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheAddGetContains(t *testing.T) {
	c := NewCache[string, int](2)
	assert.False(t, c.Contains("a"))

	c.Add("a", 1)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.True(t, c.Contains("a"))
	assert.Equal(t, 1, c.Len())
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewCache[string, int](2)
	c.Add("a", 1)
	c.Add("b", 2)
	c.Add("c", 3) // evicts "a"

	assert.False(t, c.Contains("a"))
	assert.True(t, c.Contains("b"))
	assert.True(t, c.Contains("c"))
}

func TestCachePurgeEmptiesEntries(t *testing.T) {
	c := NewCache[string, int](4)
	c.Add("a", 1)
	c.Add("b", 2)
	c.Purge()
	assert.Equal(t, 0, c.Len())
	assert.False(t, c.Contains("a"))
}

func TestNewCacheFloorsNonPositiveCapacity(t *testing.T) {
	c := NewCache[string, int](0)
	c.Add("a", 1)
	c.Add("b", 2)
	assert.Equal(t, 1, c.Len())
}

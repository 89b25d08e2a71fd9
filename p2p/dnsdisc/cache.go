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

package dnsdisc

import "github.com/nodedisc/dnstree/common/lru"

// entryCache memoizes parsed entries by content hash, so two trees
// that reference the same subtree (a shared branch or leaf hash) only
// trigger one DNS resolution and one parse. The key is the hash alone,
// so an entry is cached whatever kind the requesting cursor expected.
type entryCache struct {
	cache *lru.Cache[string, parsedEntry]
}

func newEntryCache(limit int) *entryCache {
	return &entryCache{cache: lru.NewCache[string, parsedEntry](limit)}
}

func (c *entryCache) get(hash string) (parsedEntry, bool) {
	return c.cache.Get(hash)
}

func (c *entryCache) put(hash string, e parsedEntry) {
	c.cache.Add(hash, e)
}

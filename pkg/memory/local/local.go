// Package local provides the in-process plaintext cache behind semantic
// recall.
//
// Entries are the decoded texts of admitted turns, keyed by session id and
// kept in insertion order. The cache is derived data: the session store is
// the source of truth and the cache can be rebuilt from it at any time.
package local

import "sync"

// Cache implements memory.Cache using in-process data structures.
type Cache struct {
	mu sync.RWMutex

	// texts maps session id -> decoded turn texts, oldest first.
	texts map[string][]string
}

// NewCache creates an empty plaintext cache.
func NewCache() *Cache {
	return &Cache{
		texts: make(map[string][]string),
	}
}

// Append adds text as the newest entry of the session.
func (c *Cache) Append(sessionID, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.texts[sessionID] = append(c.texts[sessionID], text)
}

// PopOldest removes the oldest entry of the session, if any.
func (c *Cache) PopOldest(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	texts := c.texts[sessionID]
	switch len(texts) {
	case 0:
	case 1:
		delete(c.texts, sessionID)
	default:
		c.texts[sessionID] = texts[1:]
	}
}

// Texts returns the session's entries, oldest first.
func (c *Cache) Texts(sessionID string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	texts, ok := c.texts[sessionID]
	if !ok {
		return nil
	}

	// Return a copy to avoid callers mutating internal state.
	result := make([]string, len(texts))
	copy(result, texts)

	return result
}

// Replace swaps the session's entries for texts.
func (c *Cache) Replace(sessionID string, texts []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(texts) == 0 {
		delete(c.texts, sessionID)
		return
	}
	c.texts[sessionID] = append([]string(nil), texts...)
}

// Drop discards every entry of the session.
func (c *Cache) Drop(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.texts, sessionID)
}

// Len returns the number of entries cached for the session.
func (c *Cache) Len(sessionID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.texts[sessionID])
}

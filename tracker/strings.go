package tracker

// StringCache deduplicates host names, app names, display names and
// descriptions so repeated observations of the same string share one
// backing value instead of allocating a fresh copy every update.
type StringCache struct {
	seen map[string]string
}

// NewStringCache creates an empty string cache.
func NewStringCache() *StringCache {
	return &StringCache{seen: make(map[string]string)}
}

// Cached interns s, returning the single shared copy for its value.
func (c *StringCache) Cached(s string) string {
	if s == "" {
		return ""
	}
	if existing, ok := c.seen[s]; ok {
		return existing
	}
	c.seen[s] = s
	return s
}

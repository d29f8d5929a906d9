// Package cache provides a generic, thread-safe LRU (Least Recently Used) cache
// with optional per-entry expiration.
//
// The cache evicts the least recently used item once it reaches its capacity.
// With WithTTL every entry also expires a fixed time after it was last written;
// expired entries are dropped lazily when they are read.
//
// # Usage
//
//	envs := cache.NewLRUCache[string, Environment](1024, cache.WithTTL(5*time.Minute))
//
//	envs.Put(apiKey, env)
//	if env, ok := envs.Get(apiKey); ok {
//		// use env
//	}
//	envs.Remove(apiKey)
//
// An eviction callback runs for every entry that leaves the cache, whether it
// was evicted, expired, removed or cleared:
//
//	envs.SetEvictCallback(func(key string, env Environment) {
//		log.Debug("environment dropped from cache", "key", key)
//	})
//
// # Thread Safety
//
// All operations are guarded by a single mutex and are safe for concurrent use.
// Get, Put and Remove are O(1).
package cache

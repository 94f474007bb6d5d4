// Package kv provides a Redis-like key-value store abstraction with in-memory
// and Redis-backed implementations.
//
// The Store interface covers byte values with optional TTL, integer counters
// and lists. The site uses it for the response cache, the post id sequence and
// the contact inbox.
//
// Example usage:
//
//	store := memory.New(30 * time.Second)
//	defer store.Close()
//
//	ctx := context.Background()
//	if err := store.Set(ctx, "key", []byte("value"), 10*time.Second); err != nil {
//		log.Fatal(err)
//	}
//
//	value, err := store.Get(ctx, "key")
//	if err != nil {
//		if errors.Is(err, kv.ErrNotFound) {
//			log.Println("Key not found")
//		} else {
//			log.Fatal(err)
//		}
//	}
//
// The in-memory implementation runs a janitor goroutine that evicts expired
// keys; the Redis adapter wraps go-redis/v9 and reports connection failures as
// ErrBackendUnavailable.
package kv

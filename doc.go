// Package scopecache is a query cache for per-session data scoped by user and
// branch. It deduplicates concurrent fetches of the same key, serves stale
// values while revalidating, and refetches what an explicit invalidation
// touched.
//
// Components:
//   - Key: entity tag plus ordered scope values (user id, branch id, ...).
//     An empty scope value makes the key invalid (*InvalidKeyError).
//   - Cache: one per signed-in session. Query, Invalidate*, Subscribe, OnChange, Reset.
//   - GenStore: per-key and per-tag invalidation generations. Local by default,
//     Redis to share invalidations between replicas.
//   - Persister / Store[V]: optional snapshots of values in a byte Provider
//     (Ristretto, BigCache, Otter, go-cache, Redis) encoded by a Codec[V].
//
// Entry states:
//
//	Idle -> Fetching -> Fresh | Errored
//	Fresh -> Stale (TTL elapsed or invalidated) -> Fetching
//
// Typical read:
//
//	key := scopecache.NewKey("productCount", userID, branchID)
//	res, err := scopecache.Get(ctx, cache, key, countProducts, scopecache.QueryOptions{})
//
// A write invalidates the tags it affects:
//
//	cache.InvalidateTags(ctx, "productCount", "products")
package scopecache

// Package querycache keeps observable cache entries for structured query keys.
//
// A query key is a querykey.Key such as Key{"todos", map[string]any{"page": 1}}.
// Keys are hashed with querykey.Hash, so two keys that are structurally equal
// share one Entry no matter how their maps were built. Values live in a
// cache.CacheService under the hash; the Entry tracks status and last data
// and notifies its listeners when either changes:
//
//	qc, _ := querycache.New(service, querycache.WithScheduler(notify.NewQueue()))
//
//	unsubscribe, _ := qc.Observe(querykey.Key{"todos"}, func(e querycache.Event) error {
//		log.Printf("%s %s", e.Type, e.Entry.Hash())
//		return nil
//	})
//	defer unsubscribe()
//
//	todos, err := querycache.Fetch(ctx, qc, querykey.Key{"todos"}, loadTodos)
//
// Invalidate takes a partial key: Key{"todos"} invalidates Key{"todos", 1}
// and Key{"todos", map[string]any{"page": 2}} alike.
//
// Notifications go through notify buses and are coalesced per flush. A
// listener that needs every transition should read the entry state rather
// than count events.
package querycache

package repositorycache

import (
	"context"
	"slices"

	"github.com/goliatone/go-query-cache/querykey"
	"github.com/puzpuzpuz/xsync/v3"
)

type cacheTagsContextKey struct{}

type keyHintContextKey struct{}

// WithCacheTags attaches additional cache tags to the context for read registration.
// Reads made with the returned context can later be dropped with
// CachedRepository.InvalidateTags.
func WithCacheTags(ctx context.Context, tags ...string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(tags) == 0 {
		return ctx
	}

	existing := cacheTagsFromContext(ctx)
	combined := append(existing, tags...)
	combined = dedupeStrings(combined)
	if len(combined) == 0 {
		return ctx
	}

	return context.WithValue(ctx, cacheTagsContextKey{}, combined)
}

// WithKeyHint appends hint to the key of every read made with ctx.
//
// Criteria are closures and serialize by function name only, so two calls
// with the same criteria function but different captured values share a
// key. A hint holding those values tells them apart:
//
//	ctx = repositorycache.WithKeyHint(ctx, map[string]any{"email": email})
//	user, err := repo.Get(ctx, byEmail(email))
func WithKeyHint(ctx context.Context, hint any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, keyHintContextKey{}, hint)
}

func cacheTagsFromContext(ctx context.Context) []string {
	if ctx == nil {
		return nil
	}
	if tags, ok := ctx.Value(cacheTagsContextKey{}).([]string); ok {
		return append([]string(nil), tags...)
	}
	return nil
}

func keyHintFromContext(ctx context.Context) (any, bool) {
	if ctx == nil {
		return nil, false
	}
	hint := ctx.Value(keyHintContextKey{})
	return hint, hint != nil
}

// dedupeStrings drops empty and repeated values, keeping first occurrences.
func dedupeStrings(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || slices.Contains(out, v) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// tagIndex maps a tag to the keys read under it, by key hash.
type tagIndex struct {
	tags *xsync.MapOf[string, *xsync.MapOf[string, querykey.Key]]
}

func newTagIndex() *tagIndex {
	return &tagIndex{tags: xsync.NewMapOf[string, *xsync.MapOf[string, querykey.Key]]()}
}

// add registers key under tags. Keys that cannot be hashed are skipped, the
// read itself reports the error.
func (t *tagIndex) add(key querykey.Key, tags ...string) {
	hash, err := querykey.Hash(key)
	if err != nil {
		return
	}
	for _, tag := range tags {
		keys, _ := t.tags.LoadOrCompute(tag, func() *xsync.MapOf[string, querykey.Key] {
			return xsync.NewMapOf[string, querykey.Key]()
		})
		keys.Store(hash, key)
	}
}

// take removes tags from the index and returns their keys without
// duplicates, ordered by hash.
func (t *tagIndex) take(tags ...string) []querykey.Key {
	byHash := map[string]querykey.Key{}
	for _, tag := range dedupeStrings(tags) {
		keys, ok := t.tags.LoadAndDelete(tag)
		if !ok {
			continue
		}
		keys.Range(func(hash string, key querykey.Key) bool {
			byHash[hash] = key
			return true
		})
	}

	hashes := make([]string, 0, len(byHash))
	for hash := range byHash {
		hashes = append(hashes, hash)
	}
	slices.Sort(hashes)

	out := make([]querykey.Key, 0, len(hashes))
	for _, hash := range hashes {
		out = append(out, byHash[hash])
	}
	return out
}

// len reports how many tags are tracked.
func (t *tagIndex) len() int { return t.tags.Size() }

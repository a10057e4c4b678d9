package router

import (
	"context"
	"runtime"
	"strings"
	"sync"

	"muster-gateway/internal/api"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the LRU cache capacity.
const DefaultCacheSize = 100

// Match is the result of a successful lookup.
type Match struct {
	ProjectID   string
	ProjectName string
	MatchedPath string
	MatchLength int
}

type cacheEntry struct {
	match   *Match // nil means "no match for this normalized path"
	version uint64
}

// ContextRouter resolves a filesystem path to a project id via LPM over the
// paths an api.ProjectStore registers.
type ContextRouter struct {
	store api.ProjectStore
	cache *lru.Cache[string, cacheEntry]

	mu      sync.Mutex
	paths   []api.ProjectPath
	version uint64
	loaded  bool
}

// New constructs a ContextRouter backed by store, with an LRU cache of the
// given size (<= 0 uses DefaultCacheSize).
func New(store api.ProjectStore, cacheSize int) (*ContextRouter, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, cacheEntry](cacheSize)
	if err != nil {
		return nil, err
	}
	return &ContextRouter{store: store, cache: cache}, nil
}

// normalize strips trailing path separators and, on Windows, lowercases the
// path.
func normalize(path string) string {
	for strings.HasSuffix(path, "/") || strings.HasSuffix(path, "\\") {
		path = path[:len(path)-1]
	}
	if runtime.GOOS == "windows" {
		path = strings.ToLower(path)
	}
	return path
}

// Find performs the LPM lookup for path, refreshing its cached snapshot of
// the registered path table if the store's version has advanced.
func (r *ContextRouter) Find(ctx context.Context, path string) (*Match, error) {
	normalized := normalize(path)

	version, err := r.store.Version(ctx)
	if err != nil {
		return nil, err
	}

	if entry, ok := r.cache.Get(normalized); ok && entry.version == version {
		return entry.match, nil
	}

	if err := r.ensurePaths(ctx, version); err != nil {
		return nil, err
	}

	match := r.performLPM(normalized)
	r.cache.Add(normalized, cacheEntry{match: match, version: version})
	return match, nil
}

// ensurePaths reloads the registered path table from the store whenever the
// locally cached version is stale.
func (r *ContextRouter) ensurePaths(ctx context.Context, version uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loaded && r.version == version {
		return nil
	}

	paths, err := r.store.RegisteredPaths(ctx)
	if err != nil {
		return err
	}
	r.paths = paths
	r.version = version
	r.loaded = true
	return nil
}

// performLPM finds the longest registered path that is a prefix of
// normalized input, breaking ties by the more recently created entry
//.
func (r *ContextRouter) performLPM(normalized string) *Match {
	r.mu.Lock()
	paths := r.paths
	r.mu.Unlock()

	var best *api.ProjectPath
	var bestLen int

	for i := range paths {
		p := &paths[i]
		registered := normalize(p.Path)

		matches := normalized == registered ||
			strings.HasPrefix(normalized, registered+"/") ||
			strings.HasPrefix(normalized, registered+"\\")
		if !matches {
			continue
		}

		if len(registered) > bestLen ||
			(len(registered) == bestLen && best != nil && p.Ordinal > best.Ordinal) {
			best = p
			bestLen = len(registered)
		}
	}

	if best == nil {
		return nil
	}
	return &Match{
		ProjectID:   best.ProjectID,
		ProjectName: best.ProjectName,
		MatchedPath: best.Path,
		MatchLength: bestLen,
	}
}

// ClearCache drops every cached entry, e.g. after a bulk path-registry edit
//. Version-based
// invalidation already handles this automatically; ClearCache exists for
// callers that want an immediate, synchronous reset.
func (r *ContextRouter) ClearCache() {
	r.cache.Purge()
}

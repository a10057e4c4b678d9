// Package router implements ContextRouter:
// longest-prefix match over a table of registered project paths, with a
// bounded LRU cache whose entries carry the path-registry's version so a
// stale cache entry is detected as a miss rather than served.
package router

// Package metastore holds the canonical per-path metadata cache: an
// insertion-ordered list of (path, metadata) pairs bounded by a configured
// maximum count, evicting least-recently-used entries to make room for new
// ones while never evicting a pinned entry.
package metastore

import (
	"container/list"
	"sync"

	"github.com/gatewayfs/gatewayfs/pkg/types"
)

// entry is the value stored at each list element. Pinning is a property
// of the metadata itself (meta.OpenHandle), not of the store, so that a
// record's open state is visible to callers reading it back through Get.
type entry struct {
	path string
	meta types.FileMetadata
}

// Store is an LRU cache of per-path FileMetadata with open-handle pinning.
// The zero value is not usable; construct with New.
type Store struct {
	mu       sync.Mutex
	maxCount int
	order    *list.List // front = most recently used
	index    map[string]*list.Element
}

// New creates a Store holding at most maxCount entries.
func New(maxCount int) *Store {
	return &Store{
		maxCount: maxCount,
		order:    list.New(),
		index:    make(map[string]*list.Element),
	}
}

// Get returns the metadata for path and moves it to the front of the LRU
// order. The second return value is false if path is not cached.
func (s *Store) Get(path string) (types.FileMetadata, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.index[path]
	if !ok {
		return types.FileMetadata{}, false
	}
	s.order.MoveToFront(el)
	return el.Value.(*entry).meta, true
}

// Has reports whether path is cached, without affecting LRU order.
func (s *Store) Has(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[path]
	return ok
}

// HasFreeSpace reports whether the store can accept count additional
// entries without evicting anything.
func (s *Store) HasFreeSpace(count int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasFreeSpaceLocked(count)
}

func (s *Store) hasFreeSpaceLocked(count int) bool {
	return s.order.Len()+count <= s.maxCount
}

// Add inserts or updates the metadata for path, marking it most recently
// used. If the store is full and cannot evict enough entries to make room
// (every candidate for eviction is pinned), Add reports false and leaves
// the store unchanged. unfreeable names an additional path, if any, that
// must not be evicted to make room for this insertion — typically the
// path of a sibling being inserted in the same batch.
func (s *Store) Add(path string, meta types.FileMetadata, unfreeable string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(path, meta, unfreeable)
}

func (s *Store) addLocked(path string, meta types.FileMetadata, unfreeable string) bool {
	if el, ok := s.index[path]; ok {
		existing := el.Value.(*entry)
		if meta.CachedAt.Before(existing.meta.CachedAt) {
			meta.CachedAt = existing.meta.CachedAt
		}
		existing.meta = meta
		s.order.MoveToFront(el)
		return true
	}

	if !s.hasFreeSpaceLocked(1) {
		if !s.freeLocked(1, unfreeable) {
			return false
		}
	}

	el := s.order.PushFront(&entry{path: path, meta: meta})
	s.index[path] = el
	return true
}

// AddBatch inserts every (path, meta) pair, treating every other path in
// the batch as unfreeable while inserting each one — so a run of sibling
// inserts can never evict one another. AddBatch reports false, with the
// store unchanged, if there is not enough room for the whole batch.
func (s *Store) AddBatch(metas []types.FileMetadata) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	need := 0
	var pinned []*entry
	for _, m := range metas {
		if el, ok := s.index[m.Path]; ok {
			if e := el.Value.(*entry); !e.meta.OpenHandle {
				e.meta.OpenHandle = true
				pinned = append(pinned, e)
			}
		} else {
			need++
		}
	}
	freed := s.hasFreeSpaceLocked(need) || s.freeLocked(need, "")
	for _, e := range pinned {
		e.meta.OpenHandle = false
	}
	if !freed {
		return false
	}
	for _, m := range metas {
		s.addLocked(m.Path, m, "")
	}
	return true
}

// MarkOpen sets or clears the open-handle flag for path, pinning or
// unpinning it against eviction. It is a no-op if path is not cached.
func (s *Store) MarkOpen(path string, open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.index[path]; ok {
		el.Value.(*entry).meta.OpenHandle = open
	}
}

// Erase removes path from the store, if present.
func (s *Store) Erase(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.index[path]; ok {
		s.order.Remove(el)
		delete(s.index, path)
	}
}

// Rename moves the cached entry at oldPath to newPath, preserving its
// metadata, LRU position, and pinned state. It is a no-op if oldPath is
// not cached; it overwrites any existing entry at newPath.
func (s *Store) Rename(oldPath, newPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.index[oldPath]
	if !ok {
		return
	}
	if existing, ok := s.index[newPath]; ok {
		s.order.Remove(existing)
		delete(s.index, newPath)
	}
	e := el.Value.(*entry)
	e.path = newPath
	e.meta.Path = newPath
	delete(s.index, oldPath)
	s.index[newPath] = el
}

// Clear removes every entry, including pinned ones.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order.Init()
	s.index = make(map[string]*list.Element)
}

// Len returns the number of cached entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

// Free evicts needCount entries to make room for new insertions. It scans
// from the least-recently-used entry toward the most-recently-used one,
// skipping any entry that is pinned (open, or equal to unfreeable) rather
// than stopping at it — a pinned entry blocks its own eviction but not
// its neighbors'. Free only mutates the store once it has found
// needCount evictable entries; if the scan reaches the front without
// finding enough, it reports false and the store is left completely
// unchanged. This is a stricter reading of the original eviction walk,
// which could leave entries it had already evicted gone even after
// hitting a pinned entry and reporting overall failure; here a failed
// Free is never observable as partial progress.
func (s *Store) Free(needCount int, unfreeable string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.freeLocked(needCount, unfreeable)
}

func (s *Store) freeLocked(needCount int, unfreeable string) bool {
	if needCount <= 0 {
		return true
	}

	// Collect candidates without mutating the list so a shortfall leaves
	// the store untouched instead of partially evicted.
	candidates := make([]*list.Element, 0, needCount)
	for el := s.order.Back(); el != nil && len(candidates) < needCount; el = el.Prev() {
		e := el.Value.(*entry)
		if e.meta.OpenHandle || (unfreeable != "" && e.path == unfreeable) {
			continue
		}
		candidates = append(candidates, el)
	}

	if len(candidates) < needCount {
		return false
	}

	for _, el := range candidates {
		e := el.Value.(*entry)
		s.order.Remove(el)
		delete(s.index, e.path)
	}
	return true
}

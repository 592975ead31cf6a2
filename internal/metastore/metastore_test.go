package metastore

import (
	"testing"

	"github.com/gatewayfs/gatewayfs/pkg/types"
)

func meta(path string) types.FileMetadata {
	return types.FileMetadata{Path: path}
}

func TestAddAndGet(t *testing.T) {
	s := New(10)
	if !s.Add("/a.txt", meta("/a.txt"), "") {
		t.Fatal("add should succeed with free space")
	}
	got, ok := s.Get("/a.txt")
	if !ok {
		t.Fatal("expected entry to be cached")
	}
	if got.Path != "/a.txt" {
		t.Errorf("got.Path = %q, want /a.txt", got.Path)
	}
}

func TestHasDoesNotAffectOrder(t *testing.T) {
	s := New(2)
	s.Add("/p1", meta("/p1"), "")
	s.Add("/p2", meta("/p2"), "")
	s.Has("/p1")
	s.Add("/p3", meta("/p3"), "") // should evict LRU = p1, not p2

	if s.Has("/p1") {
		t.Error("p1 should have been evicted; Has must not promote")
	}
	if !s.Has("/p2") || !s.Has("/p3") {
		t.Error("p2 and p3 should remain")
	}
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	// LRU max=2; insert p1, p2, p3 -> p1 evicted; mark p2 open; insert
	// p4 -> p2 retained, p3 evicted.
	s := New(2)
	s.Add("/p1", meta("/p1"), "")
	s.Add("/p2", meta("/p2"), "")
	s.Add("/p3", meta("/p3"), "")

	if s.Has("/p1") {
		t.Error("p1 should have been evicted")
	}
	if !s.Has("/p2") || !s.Has("/p3") {
		t.Fatal("p2 and p3 should be present")
	}

	s.MarkOpen("/p2", true)
	if !s.Add("/p4", meta("/p4"), "") {
		t.Fatal("add should succeed by evicting p3")
	}

	if !s.Has("/p2") {
		t.Error("open p2 should have been retained")
	}
	if s.Has("/p3") {
		t.Error("p3 should have been evicted")
	}
	if !s.Has("/p4") {
		t.Error("p4 should be present")
	}
}

func TestAddFailsWithoutPartialProgressWhenBlockedByPin(t *testing.T) {
	s := New(1)
	s.Add("/open.txt", meta("/open.txt"), "")
	s.MarkOpen("/open.txt", true)

	if s.Add("/new.txt", meta("/new.txt"), "") {
		t.Fatal("add should fail: the only evictable candidate is pinned")
	}
	if s.Len() != 1 {
		t.Fatalf("store length = %d, want 1 (no partial eviction)", s.Len())
	}
	if !s.Has("/open.txt") {
		t.Error("pinned entry should remain")
	}
	if s.Has("/new.txt") {
		t.Error("rejected insert should not appear")
	}
}

func TestFreeSkipsUnfreeablePathToEvictTheNextCandidate(t *testing.T) {
	// /a is the least-recently-used entry. Declaring it unfreeable must
	// not block eviction outright — Free should skip past it and evict
	// the next LRU candidate instead.
	s := New(3)
	s.Add("/a", meta("/a"), "")
	s.Add("/b", meta("/b"), "")
	s.Add("/c", meta("/c"), "")

	if !s.Free(1, "/a") {
		t.Fatal("freeing should succeed by evicting a candidate other than /a")
	}
	if !s.Has("/a") {
		t.Error("/a should not have been evicted")
	}
	if s.Has("/b") == s.Has("/c") {
		t.Error("exactly one of /b or /c should have been evicted")
	}
}

func TestFreeFailsAndLeavesStoreUntouchedWhenNotEnoughEvictable(t *testing.T) {
	s := New(3)
	s.Add("/a", meta("/a"), "")
	s.Add("/b", meta("/b"), "")
	s.MarkOpen("/a", true)

	if s.Free(2, "") {
		t.Fatal("freeing 2 with only 1 evictable entry should fail")
	}
	if s.Len() != 2 {
		t.Fatalf("store length = %d, want 2 (no entries evicted on failure)", s.Len())
	}
	if !s.Has("/a") || !s.Has("/b") {
		t.Error("both entries should remain after a failed Free")
	}
}

func TestAddBatchInsertsSiblingsWithoutEvictingEachOther(t *testing.T) {
	s := New(3)
	metas := []types.FileMetadata{meta("/x"), meta("/y"), meta("/z")}

	if !s.AddBatch(metas) {
		t.Fatal("batch should fit exactly")
	}
	for _, m := range metas {
		if !s.Has(m.Path) {
			t.Errorf("%s should be present after AddBatch", m.Path)
		}
	}
}

func TestAddBatchFailsWhenBatchExceedsCapacityWithPinnedSpace(t *testing.T) {
	s := New(2)
	s.Add("/held", meta("/held"), "")
	s.MarkOpen("/held", true)

	metas := []types.FileMetadata{meta("/x"), meta("/y")}
	if s.AddBatch(metas) {
		t.Fatal("batch should fail: not enough evictable space")
	}
	if s.Has("/x") || s.Has("/y") {
		t.Error("no batch member should have been inserted on failure")
	}
}

func TestEraseRemovesEntry(t *testing.T) {
	s := New(2)
	s.Add("/a", meta("/a"), "")
	s.Erase("/a")
	if s.Has("/a") {
		t.Error("erased entry should be gone")
	}
}

func TestRenameMovesEntryPreservingPinAndMetadata(t *testing.T) {
	s := New(2)
	s.Add("/old", types.FileMetadata{Path: "/old", Size: 42}, "")
	s.MarkOpen("/old", true)

	s.Rename("/old", "/new")

	if s.Has("/old") {
		t.Error("old path should no longer be cached")
	}
	got, ok := s.Get("/new")
	if !ok {
		t.Fatal("new path should be cached")
	}
	if got.Size != 42 || got.Path != "/new" {
		t.Errorf("got = %+v, want Path=/new Size=42", got)
	}

	// The pin should have moved too: evicting to make room should skip it.
	s.Add("/third", meta("/third"), "")
	if !s.Add("/fourth", meta("/fourth"), "/third") {
		// with cap 2, /new is pinned and /third is declared unfreeable,
		// there is nothing evictable, so this must fail cleanly.
	}
	if !s.Has("/new") {
		t.Error("renamed pinned entry should not have been evicted")
	}
}

func TestClearRemovesPinnedEntriesToo(t *testing.T) {
	s := New(2)
	s.Add("/a", meta("/a"), "")
	s.MarkOpen("/a", true)
	s.Clear()
	if s.Has("/a") {
		t.Error("Clear should remove even pinned entries")
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestHasFreeSpace(t *testing.T) {
	s := New(2)
	s.Add("/a", meta("/a"), "")
	if !s.HasFreeSpace(1) {
		t.Error("one slot should remain")
	}
	if s.HasFreeSpace(2) {
		t.Error("two more entries should not fit in one remaining slot")
	}
}

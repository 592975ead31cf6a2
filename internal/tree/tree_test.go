package tree

import (
	"testing"
	"time"

	"github.com/gatewayfs/gatewayfs/pkg/types"
)

func meta(path string, isDir bool, mtime time.Time) types.FileMetadata {
	return types.FileMetadata{Path: path, IsDir: isDir, ModifyTime: mtime}
}

func newTestTree() *Tree {
	return New(types.FileMetadata{ModifyTime: time.Unix(0, 0)}, 1000, 1000, 0755)
}

func TestFindAndHas(t *testing.T) {
	tr := newTestTree()
	if !tr.Has("/") {
		t.Error("root should exist")
	}
	if tr.Has("/missing") {
		t.Error("missing path should not exist")
	}
	tr.Grow(meta("/a.txt", false, time.Unix(1, 0)))
	if !tr.Has("/a.txt") {
		t.Error("grown node should exist")
	}
	if tr.Find("/a.txt") == nil {
		t.Error("Find should return grown node")
	}
}

func TestGrowCreatesAndLinksParent(t *testing.T) {
	tr := newTestTree()
	tr.Grow(meta("/dir/", true, time.Unix(1, 0)))
	tr.Grow(meta("/dir/file.txt", false, time.Unix(1, 0)))

	dir := tr.Find("/dir/")
	file := tr.Find("/dir/file.txt")
	if dir == nil || file == nil {
		t.Fatal("both nodes should exist")
	}
	if file.Parent != dir {
		t.Error("file's parent should be dir")
	}
	if dir.Children["/dir/file.txt"] != file {
		t.Error("dir should have file as a child")
	}
}

func TestGrowAdoptsOrphanedChildren(t *testing.T) {
	tr := newTestTree()
	// child arrives before its parent directory is known
	tr.Grow(meta("/dir/file.txt", false, time.Unix(1, 0)))
	tr.Grow(meta("/dir/", true, time.Unix(1, 0)))

	dir := tr.Find("/dir/")
	file := tr.Find("/dir/file.txt")
	if file.Parent != dir {
		t.Error("orphan should be adopted once parent directory is grown")
	}
	if dir.Children["/dir/file.txt"] != file {
		t.Error("dir should list the adopted child")
	}
}

func TestGrowIsIdempotentOnStaleMtime(t *testing.T) {
	tr := newTestTree()
	tr.Grow(meta("/a.txt", false, time.Unix(5, 0)))
	node := tr.Find("/a.txt")

	tr.Grow(meta("/a.txt", false, time.Unix(1, 0))) // older mtime, ignored
	if tr.Find("/a.txt") != node {
		t.Error("node identity should not change")
	}
	if !tr.Find("/a.txt").Meta.ModifyTime.Equal(time.Unix(5, 0)) {
		t.Error("stale mtime should not overwrite the entry")
	}

	tr.Grow(meta("/a.txt", false, time.Unix(10, 0))) // newer, applied
	if !tr.Find("/a.txt").Meta.ModifyTime.Equal(time.Unix(10, 0)) {
		t.Error("newer mtime should replace the entry")
	}
}

func TestUpdateDirectoryRemovesStaleChildren(t *testing.T) {
	tr := newTestTree()
	tr.Grow(meta("/dir/", true, time.Unix(1, 0)))
	tr.Grow(meta("/dir/a.txt", false, time.Unix(1, 0)))
	tr.Grow(meta("/dir/b.txt", false, time.Unix(1, 0)))

	tr.UpdateDirectory("/dir/", []types.FileMetadata{
		meta("/dir/a.txt", false, time.Unix(2, 0)),
		meta("/dir/c.txt", false, time.Unix(2, 0)),
	})

	if tr.Has("/dir/b.txt") {
		t.Error("b.txt should have been removed")
	}
	if !tr.Has("/dir/a.txt") || !tr.Has("/dir/c.txt") {
		t.Error("a.txt and c.txt should be present")
	}
}

func TestUpdateDirectorySynthesizesUnknownDirectory(t *testing.T) {
	tr := newTestTree()
	node := tr.UpdateDirectory("/new/", []types.FileMetadata{
		meta("/new/x.txt", false, time.Unix(1, 0)),
	})
	if node == nil || !node.IsDirectory() {
		t.Fatal("should synthesize a directory node")
	}
	if !tr.Has("/new/x.txt") {
		t.Error("child should have been grown")
	}
}

func TestUpdateDirectoryRejectsMismatchedParent(t *testing.T) {
	tr := newTestTree()
	tr.UpdateDirectory("/dir/", []types.FileMetadata{
		meta("/other/x.txt", false, time.Unix(1, 0)),
	})
	if tr.Has("/other/x.txt") {
		t.Error("entry with mismatched parent should be rejected")
	}
}

func TestRenameMovesNodeAndDescendants(t *testing.T) {
	tr := newTestTree()
	tr.Grow(meta("/dir/", true, time.Unix(1, 0)))
	tr.Grow(meta("/dir/a.txt", false, time.Unix(1, 0)))

	renamed := tr.Rename("/dir/", "/moved/")
	if renamed == nil {
		t.Fatal("rename should succeed")
	}
	if tr.Has("/dir/") {
		t.Error("old path should no longer exist")
	}
	if !tr.Has("/moved/") {
		t.Error("new path should exist")
	}

	children := tr.FindChildren("/moved/")
	if len(children) != 1 || children[0].Path != "/dir/a.txt" {
		t.Errorf("children should still be indexed under the old child path until re-grown, got %v", children)
	}
}

func TestRenameRejectsRoot(t *testing.T) {
	tr := newTestTree()
	if tr.Rename("/", "/new-root/") != nil {
		t.Error("renaming root should fail")
	}
}

func TestRenameRejectsExistingDestination(t *testing.T) {
	tr := newTestTree()
	tr.Grow(meta("/a.txt", false, time.Unix(1, 0)))
	tr.Grow(meta("/b.txt", false, time.Unix(1, 0)))

	node := tr.Rename("/a.txt", "/b.txt")
	if node == nil {
		t.Fatal("rename should return the source node unchanged")
	}
	if node.Path != "/a.txt" {
		t.Error("source node should not have been renamed when destination exists")
	}
}

func TestRemoveDescendsThroughNestedDirectories(t *testing.T) {
	tr := newTestTree()
	tr.Grow(meta("/dir/", true, time.Unix(1, 0)))
	tr.Grow(meta("/dir/sub/", true, time.Unix(1, 0)))
	tr.Grow(meta("/dir/sub/leaf.txt", false, time.Unix(1, 0)))
	tr.Grow(meta("/dir/file.txt", false, time.Unix(1, 0)))

	tr.Remove("/dir/")

	for _, p := range []string{"/dir/", "/dir/sub/", "/dir/sub/leaf.txt", "/dir/file.txt"} {
		if tr.Has(p) {
			t.Errorf("%s should have been removed along with its ancestor directory", p)
		}
	}
}

func TestRemoveRejectsRoot(t *testing.T) {
	tr := newTestTree()
	tr.Remove("/")
	if !tr.Has("/") {
		t.Error("root should never be removed")
	}
}

func TestRemoveNonexistentIsNoop(t *testing.T) {
	tr := newTestTree()
	tr.Remove("/does/not/exist")
}

func TestHardLinkSharesMetadataAndIncrementsLinkCount(t *testing.T) {
	tr := newTestTree()
	tr.Grow(meta("/a.txt", false, time.Unix(1, 0)))

	link := tr.HardLink("/a.txt", "/b.txt")
	if link == nil {
		t.Fatal("hard link should succeed")
	}
	if !link.IsHardLink {
		t.Error("new node should be marked as a hard link")
	}
	if tr.Find("/a.txt").NumLink() != 2 {
		t.Errorf("source link count = %d, want 2", tr.Find("/a.txt").NumLink())
	}
}

func TestHardLinkRejectsDirectorySource(t *testing.T) {
	tr := newTestTree()
	tr.Grow(meta("/dir/", true, time.Unix(1, 0)))
	if tr.HardLink("/dir/", "/link") != nil {
		t.Error("hard linking a directory should fail")
	}
}

func TestHardLinkRejectsMissingSource(t *testing.T) {
	tr := newTestTree()
	if tr.HardLink("/missing", "/link") != nil {
		t.Error("hard linking a missing source should fail")
	}
}

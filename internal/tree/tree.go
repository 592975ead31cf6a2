// Package tree implements the in-memory directory tree that mirrors the
// bucket's namespace: a path-to-node index plus a parent-to-children
// index, both guarded by a single lock. Every high-level operation
// updates this tree after (or instead of) talking to the backend, so
// repeated Stat/ListDirectory calls on unchanged paths avoid a round
// trip.
package tree

import (
	"strings"
	"sync"

	"github.com/gatewayfs/gatewayfs/pkg/types"
)

const rootPath = "/"

// Node is one entry in the tree: a path, its metadata, and links to its
// parent and children. There is no separate weak/strong pointer
// distinction as in a manually memory-managed tree — a Node reachable
// from the tree's maps is live; one that has been unlinked from every
// map and its parent is left for the garbage collector. The `removed`
// flag distinguishes a Node a caller is still holding a stale reference
// to from one still valid in the tree.
type Node struct {
	Path     string
	Meta     types.FileMetadata
	Parent   *Node
	Children map[string]*Node // full path -> child, empty/nil for files

	IsHardLink   bool
	LinkTarget   *Node // for a hard link, the node whose metadata is shared
	numLink      int
	removed      bool
}

// IsDirectory reports whether the node represents a directory.
func (n *Node) IsDirectory() bool {
	return n.Meta.IsDir
}

// Operable reports whether the node is still linked into its tree. A
// caller holding a *Node obtained before a Remove/Rename should check
// this before trusting the node's Path/Meta.
func (n *Node) Operable() bool {
	return n != nil && !n.removed
}

// NumLink returns the node's hard-link count (1 for an ordinary file).
func (n *Node) NumLink() int {
	if n.numLink == 0 {
		return 1
	}
	return n.numLink
}

func newNode(meta types.FileMetadata) *Node {
	n := &Node{Path: meta.Path, Meta: meta}
	if meta.IsDir {
		n.Children = make(map[string]*Node)
	}
	return n
}

// dirName returns the parent directory path of p, always ending in "/".
// The root's own dirname is "/".
func dirName(p string) string {
	trimmed := strings.TrimSuffix(p, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return rootPath
	}
	return trimmed[:idx+1]
}

func isRoot(p string) bool {
	return p == rootPath
}

// Tree is the directory tree: a path index and a parent-to-children
// index, both mutated under a single lock. Where a public method needs
// to call another tree operation while already holding the lock, it
// calls the corresponding *Locked helper directly instead of
// re-acquiring — Go's sync.Mutex is not reentrant.
type Tree struct {
	mu sync.Mutex

	root *Node

	byPath map[string]*Node

	// childrenIndex mirrors Node.Children but is keyed by parent path
	// even when the parent node hasn't been Grown yet, so children that
	// arrive before their parent are not lost.
	childrenIndex map[string]map[string]*Node

	defaultUID  uint32
	defaultGID  uint32
	defaultMode uint32
}

// New creates a tree with a synthesized root directory. defaultUID/GID/
// Mode seed any directory the tree has to synthesize later (an implicit
// directory discovered via listing, or UpdateDirectory on an unknown
// path).
func New(rootMeta types.FileMetadata, defaultUID, defaultGID, defaultMode uint32) *Tree {
	rootMeta.Path = rootPath
	rootMeta.IsDir = true

	t := &Tree{
		byPath:        make(map[string]*Node),
		childrenIndex: make(map[string]map[string]*Node),
		defaultUID:    defaultUID,
		defaultGID:    defaultGID,
		defaultMode:   defaultMode,
	}
	t.root = newNode(rootMeta)
	t.byPath[rootPath] = t.root
	return t
}

// Root returns the tree's root node.
func (t *Tree) Root() *Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.root
}

// Find returns the node at path, or nil if none exists.
func (t *Tree) Find(path string) *Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.findLocked(path)
}

func (t *Tree) findLocked(path string) *Node {
	return t.byPath[path]
}

// Has reports whether path exists in the tree.
func (t *Tree) Has(path string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.byPath[path]
	return ok
}

// FindChildren returns the children currently indexed under dirPath,
// whether or not dirPath's own node has been Grown yet.
func (t *Tree) FindChildren(dirPath string) []*Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.findChildrenLocked(dirPath)
}

func (t *Tree) findChildrenLocked(dirPath string) []*Node {
	set := t.childrenIndex[dirPath]
	out := make([]*Node, 0, len(set))
	for _, n := range set {
		out = append(out, n)
	}
	return out
}

func (t *Tree) indexChildLocked(parentPath string, child *Node) {
	set, ok := t.childrenIndex[parentPath]
	if !ok {
		set = make(map[string]*Node)
		t.childrenIndex[parentPath] = set
	}
	set[child.Path] = child
}

func (t *Tree) unindexChildLocked(parentPath, childPath string) {
	if set, ok := t.childrenIndex[parentPath]; ok {
		delete(set, childPath)
		if len(set) == 0 {
			delete(t.childrenIndex, parentPath)
		}
	}
}

// Grow is an idempotent upsert: if a live node already exists and the
// incoming metadata is strictly newer, its entry is replaced in place
// (same identity, new attributes). Otherwise the existing node is left
// untouched. If absent, a node is created, indexed, linked to its parent
// if already known, and — for directories — linked to any children
// already indexed under its path.
func (t *Tree) Grow(meta types.FileMetadata) *Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.growLocked(meta)
}

func (t *Tree) growLocked(meta types.FileMetadata) *Node {
	path := meta.Path

	if node := t.findLocked(path); node != nil && node.Operable() {
		if meta.ModifyTime.After(node.Meta.ModifyTime) {
			node.Meta = meta
		}
		return node
	}

	node := newNode(meta)
	t.byPath[path] = node

	parentPath := dirName(path)
	if parent := t.findLocked(parentPath); parent != nil && parent.Operable() {
		parent.Children[path] = node
		node.Parent = parent
	}

	if meta.IsDir {
		for _, child := range t.findChildrenLocked(path) {
			child.Parent = node
			node.Children[child.Path] = child
		}
	}

	t.indexChildLocked(parentPath, node)

	return node
}

// GrowBatch applies Grow to every metadata record under a single lock
// acquisition.
func (t *Tree) GrowBatch(metas []types.FileMetadata) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, meta := range metas {
		t.growLocked(meta)
	}
}

// defaultDirectoryMeta synthesizes a directory record for a path the
// tree has never seen, e.g. one discovered only because a listing
// returned children under it.
func (t *Tree) defaultDirectoryMeta(path string, mtime types.FileMetadata) types.FileMetadata {
	return types.FileMetadata{
		Path:       path,
		IsDir:      true,
		Mode:       t.defaultMode,
		UID:        t.defaultUID,
		GID:        t.defaultGID,
		ModifyTime: mtime.ModifyTime,
		AccessTime: mtime.ModifyTime,
		ChangeTime: mtime.ModifyTime,
	}
}

// UpdateDirectory reconciles a listing page against dirPath's current
// children: entries whose own parent isn't dirPath are rejected, entries
// present before but absent now are removed from the tree, and the
// survivors plus newcomers are grown. If dirPath itself is unknown, a
// default directory entry is synthesized first.
func (t *Tree) UpdateDirectory(dirPath string, childMetas []types.FileMetadata) *Node {
	if dirPath == "" {
		return nil
	}
	path := dirPath
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	newChildMetas := make([]types.FileMetadata, 0, len(childMetas))
	newChildIDs := make(map[string]struct{}, len(childMetas))
	for _, child := range childMetas {
		if dirName(child.Path) != path {
			continue
		}
		newChildIDs[child.Path] = struct{}{}
		newChildMetas = append(newChildMetas, child)
	}

	node := t.findLocked(path)
	if node != nil && node.Operable() {
		if !node.IsDirectory() {
			return nil
		}

		deleteIDs := make([]string, 0)
		for childPath := range node.Children {
			if _, keep := newChildIDs[childPath]; !keep {
				deleteIDs = append(deleteIDs, childPath)
			}
		}
		for _, childPath := range deleteIDs {
			t.removeLocked(childPath)
		}

		for _, meta := range newChildMetas {
			t.growLocked(meta)
		}
		return node
	}

	// Directory not yet known: synthesize it, then apply the listing.
	var stamp types.FileMetadata
	if len(newChildMetas) > 0 {
		stamp = newChildMetas[0]
	}
	node = t.growLocked(t.defaultDirectoryMeta(path, stamp))
	for _, meta := range newChildMetas {
		t.growLocked(meta)
	}
	return node
}

// Rename moves a node from oldPath to newPath. Requires oldPath to exist
// and newPath to be free; the root cannot be renamed. If the node is a
// directory, its immediate children are reparented in childrenIndex
// under the new prefix, but only the renamed node's own Path/Meta.Path
// and byPath entry are rewritten — every descendant, immediate children
// included, keeps its old Path and its old byPath key until something
// renames it individually. Find(newDescendantPath) misses and Find(oldDescendantPath)
// still hits until that happens; this call alone does not make a
// directory rename atomic for the whole subtree. Callers that need the
// full subtree to resolve under its new prefix must rename every
// descendant themselves, as gateway.Gateway.MoveDirectory does: it lists
// the source prefix and issues one MoveFile/MoveDirectory per child
// (including nested common prefixes) in addition to the directory
// marker itself, so each node ends up calling this on its own behalf.
func (t *Tree) Rename(oldPath, newPath string) *Node {
	if oldPath == "" || newPath == "" || isRoot(oldPath) {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.renameLocked(oldPath, newPath)
}

func (t *Tree) renameLocked(oldPath, newPath string) *Node {
	node := t.findLocked(oldPath)
	if node == nil || !node.Operable() {
		return nil
	}
	if existing := t.findLocked(newPath); existing != nil && existing.Operable() {
		return node
	}

	oldParentPath := dirName(oldPath)
	node.Path = newPath
	node.Meta.Path = newPath

	if node.Parent != nil {
		delete(node.Parent.Children, oldPath)
		node.Parent.Children[newPath] = node
	}

	delete(t.byPath, oldPath)
	t.byPath[newPath] = node

	t.unindexChildLocked(oldParentPath, oldPath)
	t.indexChildLocked(dirName(newPath), node)

	if node.IsDirectory() {
		for _, child := range t.findChildrenLocked(oldPath) {
			t.indexChildLocked(newPath, child)
		}
		delete(t.childrenIndex, oldPath)
	}

	return node
}

// Remove unlinks path from its parent and from the tree's indexes. If
// path is a directory, every descendant is walked breadth-first and
// unlinked too, since dropping the last reference to a subtree should
// not leave stale index entries behind. The root cannot be removed.
func (t *Tree) Remove(path string) {
	if isRoot(path) {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeLocked(path)
}

func (t *Tree) removeLocked(path string) {
	node := t.findLocked(path)
	if node == nil || !node.Operable() {
		return
	}

	if node.Parent != nil {
		delete(node.Parent.Children, path)
	}
	delete(t.byPath, path)
	t.unindexChildLocked(dirName(path), path)
	delete(t.childrenIndex, path)

	node.removed = true

	if !node.IsDirectory() {
		return
	}

	queue := make([]*Node, 0, len(node.Children))
	for _, child := range node.Children {
		queue = append(queue, child)
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		delete(t.byPath, current.Path)
		t.unindexChildLocked(dirName(current.Path), current.Path)
		delete(t.childrenIndex, current.Path)
		current.removed = true

		// Enqueue current's own children, not the removed root's — a
		// grandchild under a non-directory current would otherwise be
		// silently skipped.
		if current.IsDirectory() {
			for _, grandchild := range current.Children {
				queue = append(queue, grandchild)
			}
		}
	}
}

// HardLink creates a node at linkPath that shares src's metadata record,
// increments src's link count, and indexes the new node. Fails if src is
// missing or is a directory.
func (t *Tree) HardLink(srcPath, linkPath string) *Node {
	t.mu.Lock()
	defer t.mu.Unlock()

	src := t.findLocked(srcPath)
	if src == nil || !src.Operable() {
		return nil
	}
	if src.IsDirectory() {
		return nil
	}

	link := &Node{
		Path:       linkPath,
		Meta:       src.Meta,
		IsHardLink: true,
		LinkTarget: src,
	}
	link.Meta.Path = linkPath
	src.numLink = src.NumLink() + 1

	t.byPath[linkPath] = link
	t.indexChildLocked(dirName(linkPath), link)

	if parent := t.findLocked(dirName(linkPath)); parent != nil && parent.Operable() {
		parent.Children[linkPath] = link
		link.Parent = parent
	}

	return link
}

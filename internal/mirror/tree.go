package mirror

import (
	"strings"
	"time"
)

// Entry is one row of a raw remote directory listing.
type Entry struct {
	ModTime time.Time
	Name    string
	Size    int64
	Kind    Kind
}

// Tree is the mirror of the remote tree. The root directory has path "";
// every other path has the form "/a/b".
//
// Tree is not safe for concurrent use; callers serialize access.
type Tree struct {
	root *Node
}

// NewTree returns an empty tree.
func NewTree() *Tree {
	return &Tree{root: NewDir()}
}

// Root returns the root directory node.
func (t *Tree) Root() *Node {
	return t.root
}

// Reset discards every node.
func (t *Tree) Reset() {
	t.root = NewDir()
}

// Replace swaps the whole tree for root, which must be a directory.
func (t *Tree) Replace(root *Node) {
	if !root.IsDir() {
		root = NewDir()
	}
	t.root = root
}

// Split divides p into its parent directory path and base name.
// Split("/a/b") is ("/a", "b"); Split("/a") is ("", "a").
func Split(p string) (dir, name string) {
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return "", p
	}
	return p[:i], p[i+1:]
}

// Join appends name to the directory path dir.
func Join(dir, name string) string {
	return dir + "/" + name
}

func segments(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// Get returns the node at p, or nil if p is unknown.
func (t *Tree) Get(p string) *Node {
	n := t.root
	for _, seg := range segments(p) {
		n = n.Child(seg)
		if n == nil {
			return nil
		}
	}
	return n
}

// dirFor walks to the directory p, creating missing directories and
// replacing non-directory nodes that sit in the way.
func (t *Tree) dirFor(p string) *Node {
	n := t.root
	for _, seg := range segments(p) {
		child := n.Children[seg]
		if !child.IsDir() {
			child = NewDir()
			n.Children[seg] = child
		}
		n = child
	}
	return n
}

// Put stores node at p, creating parent directories as needed, and returns
// it. Putting at the root replaces the tree.
func (t *Tree) Put(p string, node *Node) *Node {
	dir, name := Split(p)
	if name == "" && dir == "" {
		t.Replace(node)
		return t.root
	}
	parent := t.dirFor(dir)
	parent.Children[name] = node
	return node
}

// Mkdir ensures a directory exists at p and stamps its LocalSyncedAt.
// An existing directory keeps its children.
func (t *Tree) Mkdir(p string, localSyncedAt time.Time) *Node {
	n := t.dirFor(p)
	n.LocalSyncedAt = localSyncedAt
	return n
}

// Remove drops the node at p. It reports whether a node was removed.
func (t *Tree) Remove(p string) bool {
	dir, name := Split(p)
	if name == "" {
		return false
	}
	parent := t.Get(dir)
	if !parent.IsDir() {
		return false
	}
	if _, ok := parent.Children[name]; !ok {
		return false
	}
	delete(parent.Children, name)
	return true
}

// Refresh replaces the child set of directory p with entries and returns the
// directory node. Files whose kind, size and modification time are unchanged
// keep their node so LocalSyncedAt survives; a zero ModTime means "not yet
// observed" and matches any listed time. Directories keep their node (and
// known subtree) whenever they are still directories. Reused nodes adopt the
// listed ModTime.
func (t *Tree) Refresh(p string, entries []Entry) *Node {
	dir := t.dirFor(p)
	old := dir.Children
	dir.Children = make(map[string]*Node, len(entries))

	for _, e := range entries {
		switch e.Name {
		case "", ".", "..":
			continue
		}
		if prev, ok := old[e.Name]; ok && unchanged(prev, e) {
			prev.ModTime = e.ModTime
			prev.Size = e.Size
			dir.Children[e.Name] = prev
			continue
		}
		n := &Node{Kind: e.Kind, Size: e.Size, ModTime: e.ModTime}
		if e.Kind == Dir {
			n.Children = make(map[string]*Node)
		}
		dir.Children[e.Name] = n
	}
	return dir
}

func unchanged(prev *Node, e Entry) bool {
	if prev.Kind != e.Kind {
		return false
	}
	if e.Kind == Dir {
		return true
	}
	if prev.Size != e.Size {
		return false
	}
	return prev.ModTime.IsZero() || prev.ModTime.Equal(e.ModTime)
}

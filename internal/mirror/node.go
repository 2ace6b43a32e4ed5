package mirror

import (
	"os"
	"time"
)

// Kind identifies the kind of remote entry a Node describes.
type Kind int

const (
	File Kind = iota
	Dir
	Symlink
)

var kindNames = [...]string{
	File:    "file",
	Dir:     "dir",
	Symlink: "symlink",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// KindOf maps a file mode to a Kind. Anything that is neither a directory
// nor a symlink is treated as a file.
func KindOf(mode os.FileMode) Kind {
	switch {
	case mode&os.ModeSymlink != 0:
		return Symlink
	case mode.IsDir():
		return Dir
	default:
		return File
	}
}

// Node is the last observed state of one remote path.
type Node struct {
	// ModTime is the modification time reported by the last remote listing.
	ModTime time.Time

	// LocalSyncedAt is the local modification time recorded when this node
	// was last confirmed synchronized. Zero means never.
	LocalSyncedAt time.Time

	// Children is non-nil only for directories.
	Children map[string]*Node

	Size int64
	Kind Kind
}

// NewDir returns an empty directory node.
func NewDir() *Node {
	return &Node{Kind: Dir, Children: make(map[string]*Node)}
}

// NewFile returns a file node of the given size.
func NewFile(size int64, modTime time.Time) *Node {
	return &Node{Kind: File, Size: size, ModTime: modTime}
}

// IsDir reports whether n is a directory.
func (n *Node) IsDir() bool {
	return n != nil && n.Kind == Dir
}

// Child returns the named child, or nil.
func (n *Node) Child(name string) *Node {
	if !n.IsDir() {
		return nil
	}
	return n.Children[name]
}

// Matches is the cheap "already synchronized" predicate: kinds must match
// and, for files, so must the byte size. Modification times are ignored
// because local and remote clocks are not comparable.
func (n *Node) Matches(info os.FileInfo) bool {
	if n == nil || info == nil {
		return false
	}
	if n.Kind != KindOf(info.Mode()) {
		return false
	}
	if n.Kind == File && n.Size != info.Size() {
		return false
	}
	return true
}

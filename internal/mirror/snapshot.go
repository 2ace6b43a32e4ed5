package mirror

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/BurntSushi/toml"
)

// snapshotVersion is bumped whenever the on-disk layout changes.
const snapshotVersion = 1

// ErrCorrupt is wrapped by every Decode failure.
var ErrCorrupt = errors.New("corrupt mirror snapshot")

type snapshotDoc struct {
	Root    snapshotNode `toml:"root"`
	Version int          `toml:"version"`
}

// escapedPrefix marks a child name stored as base64. TOML keys must be
// UTF-8 while remote names are raw bytes; names that are not valid UTF-8,
// or that happen to start with the prefix, are escaped.
const escapedPrefix = "~b64~"

func encodeName(name string) string {
	if utf8.ValidString(name) && !strings.HasPrefix(name, escapedPrefix) {
		return name
	}
	return escapedPrefix + base64.RawURLEncoding.EncodeToString([]byte(name))
}

func decodeName(key string) (string, error) {
	enc, ok := strings.CutPrefix(key, escapedPrefix)
	if !ok {
		return key, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(enc)
	if err != nil {
		return "", fmt.Errorf("%w: bad escaped name %q: %w", ErrCorrupt, key, err)
	}
	return string(b), nil
}

// snapshotNode is the nested TOML form of a Node. Times are stored as Unix
// nanoseconds so they survive the round trip exactly.
type snapshotNode struct {
	Files  map[string]snapshotNode `toml:"files,omitempty"`
	Kind   string                  `toml:"kind"`
	Size   int64                   `toml:"size,omitempty"`
	MTime  int64                   `toml:"mtime,omitempty"`
	LMTime int64                   `toml:"lmtime,omitempty"`
}

// Encode writes the tree rooted at root as a TOML document.
func Encode(w io.Writer, root *Node) error {
	doc := snapshotDoc{Version: snapshotVersion, Root: toSnapshot(root)}
	if err := toml.NewEncoder(w).Encode(doc); err != nil {
		return fmt.Errorf("encode mirror snapshot: %w", err)
	}
	return nil
}

// Decode parses a document written by Encode and returns its root
// directory.
func Decode(r io.Reader) (*Node, error) {
	var doc snapshotDoc
	md, err := toml.NewDecoder(r).Decode(&doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if !md.IsDefined("root") {
		return nil, fmt.Errorf("%w: missing root table", ErrCorrupt)
	}
	if doc.Version != snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, doc.Version)
	}

	root, err := fromSnapshot(doc.Root)
	if err != nil {
		return nil, err
	}
	if !root.IsDir() {
		return nil, fmt.Errorf("%w: root is a %s", ErrCorrupt, root.Kind)
	}
	return root, nil
}

func toSnapshot(n *Node) snapshotNode {
	sn := snapshotNode{
		Kind:   n.Kind.String(),
		Size:   n.Size,
		MTime:  unixNano(n.ModTime),
		LMTime: unixNano(n.LocalSyncedAt),
	}
	if n.Kind == Dir && len(n.Children) > 0 {
		sn.Files = make(map[string]snapshotNode, len(n.Children))
		for name, child := range n.Children {
			sn.Files[encodeName(name)] = toSnapshot(child)
		}
	}
	return sn
}

func fromSnapshot(sn snapshotNode) (*Node, error) {
	kind, err := parseKind(sn.Kind)
	if err != nil {
		return nil, err
	}

	n := &Node{
		Kind:          kind,
		Size:          sn.Size,
		ModTime:       fromUnixNano(sn.MTime),
		LocalSyncedAt: fromUnixNano(sn.LMTime),
	}
	if kind != Dir {
		if len(sn.Files) > 0 {
			return nil, fmt.Errorf("%w: %s node has children", ErrCorrupt, kind)
		}
		return n, nil
	}

	n.Children = make(map[string]*Node, len(sn.Files))
	for key, child := range sn.Files {
		name, err := decodeName(key)
		if err != nil {
			return nil, err
		}
		switch name {
		case "", ".", "..":
			return nil, fmt.Errorf("%w: invalid child name %q", ErrCorrupt, name)
		}
		c, err := fromSnapshot(child)
		if err != nil {
			return nil, err
		}
		n.Children[name] = c
	}
	return n, nil
}

func parseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown node kind %q", ErrCorrupt, s)
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

package lore

import (
	"strings"

	"github.com/rotisserie/eris"

	"opentales/app/internal/viewer"
)

// ErrCorruptHierarchy is returned when a parent chain in the entry set loops
// back on itself. The record store does not prevent a client from creating a
// cycle, so every traversal guards against one instead of recursing forever.
var ErrCorruptHierarchy = eris.New("corrupt lore hierarchy: parent chain contains a cycle")

// Node is an entry annotated with its filtered children.
type Node struct {
	Entry
	Children []Node `json:"children"`
}

// BuildTree constructs the visible forest for a campaign's entries. A node
// appears when it is visible to the viewer and either its own title contains
// the search string (case-insensitive) or some visible descendant's title
// does. Visibility gates top-down: a private entry hides its whole subtree
// from players even when a public descendant would match. Entries whose
// parent is missing from the set are unreachable and silently dropped. An
// empty search string matches everything.
func BuildTree(entries []Entry, search string, v viewer.Context) ([]Node, error) {
	b := &treeBuilder{
		children: make(map[uint][]Entry),
		search:   strings.ToLower(search),
		viewer:   v,
	}

	var roots []Entry
	for _, e := range entries {
		if e.ParentID == nil {
			roots = append(roots, e)
			continue
		}
		b.children[*e.ParentID] = append(b.children[*e.ParentID], e)
	}

	return b.build(roots, make(map[uint]struct{}))
}

type treeBuilder struct {
	children map[uint][]Entry
	search   string
	viewer   viewer.Context
}

func (b *treeBuilder) build(entries []Entry, path map[uint]struct{}) ([]Node, error) {
	var nodes []Node
	for _, e := range entries {
		if _, seen := path[e.ID]; seen {
			return nil, ErrCorruptHierarchy
		}
		if !e.VisibleTo(b.viewer) {
			continue
		}

		if !b.titleMatches(e) {
			path[e.ID] = struct{}{}
			matched, err := b.hasMatchingDescendant(e.ID, path)
			delete(path, e.ID)
			if err != nil {
				return nil, err
			}
			if !matched {
				continue
			}
		}

		path[e.ID] = struct{}{}
		children, err := b.build(b.children[e.ID], path)
		delete(path, e.ID)
		if err != nil {
			return nil, err
		}

		nodes = append(nodes, Node{Entry: e, Children: children})
	}
	return nodes, nil
}

func (b *treeBuilder) titleMatches(e Entry) bool {
	return strings.Contains(strings.ToLower(e.Title), b.search)
}

func (b *treeBuilder) hasMatchingDescendant(id uint, path map[uint]struct{}) (bool, error) {
	for _, child := range b.children[id] {
		if _, seen := path[child.ID]; seen {
			return false, ErrCorruptHierarchy
		}
		if !child.VisibleTo(b.viewer) {
			continue
		}
		if b.titleMatches(child) {
			return true, nil
		}

		path[child.ID] = struct{}{}
		matched, err := b.hasMatchingDescendant(child.ID, path)
		delete(path, child.ID)
		if err != nil {
			return false, err
		}
		if matched {
			return true, nil
		}
	}
	return false, nil
}

package lore

import "opentales/app/internal/viewer"

// ResolveMapContext returns the nearest entry, starting at scope and walking
// up through parents, that carries its own map image and is visible to the
// viewer. A nil scope or an exhausted ancestor chain yields nil, in which
// case the caller falls back to the campaign-level map. An ancestor hidden
// from the viewer never leaks its map surface to a player navigating through
// its subtree.
func ResolveMapContext(scope *Entry, entries []Entry, v viewer.Context) (*Entry, error) {
	if scope == nil {
		return nil, nil
	}

	if scope.HasMap() && scope.VisibleTo(v) {
		return scope, nil
	}

	byID := make(map[uint]*Entry, len(entries))
	for i := range entries {
		byID[entries[i].ID] = &entries[i]
	}

	visited := map[uint]struct{}{scope.ID: {}}
	parentID := scope.ParentID
	for parentID != nil {
		if _, seen := visited[*parentID]; seen {
			return nil, ErrCorruptHierarchy
		}
		visited[*parentID] = struct{}{}

		parent, ok := byID[*parentID]
		if !ok {
			break
		}
		if parent.HasMap() && parent.VisibleTo(v) {
			return parent, nil
		}
		parentID = parent.ParentID
	}

	return nil, nil
}

// HasOwnMap is the strict, non-inheriting variant of map-context resolution:
// true only when the scope itself carries a visible map. It deliberately does
// not fall back to ancestor maps, so an entry that merely borrows a map
// surface is not reported as having one.
func HasOwnMap(scope *Entry, v viewer.Context) bool {
	if scope == nil {
		return false
	}
	return scope.HasMap() && scope.VisibleTo(v)
}

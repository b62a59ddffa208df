package lore

// CascadeState models the confirmation gate around privacy-narrowing edits.
type CascadeState int

const (
	// CascadeIdle means no visibility decision is outstanding.
	CascadeIdle CascadeState = iota
	// CascadePendingDecision means an edit turned a parent entry private and
	// the caller must decide whether descendants follow.
	CascadePendingDecision
)

// CascadeController tracks whether an edit to an entry's visibility requires
// an explicit decision before being applied. Narrowing visibility on an entry
// with children is never silently propagated: the controller parks in
// CascadePendingDecision until the caller resolves it one way or the other.
// Widening visibility never prompts and never propagates.
type CascadeController struct {
	state   CascadeState
	entryID uint
}

// State returns the controller's current state.
func (c *CascadeController) State() CascadeState {
	if c == nil {
		return CascadeIdle
	}
	return c.state
}

// Observe inspects a pending visibility edit and reports whether it needs a
// decision. The trigger is a public-to-private flip on an entry with at least
// one direct child; only direct children arm the gate, though a confirmed
// cascade later applies to the full descendant subtree.
func (c *CascadeController) Observe(current Entry, nextPublic bool, entries []Entry) bool {
	if !current.IsPublic || nextPublic {
		return false
	}

	for _, e := range entries {
		if e.ParentID != nil && *e.ParentID == current.ID {
			c.state = CascadePendingDecision
			c.entryID = current.ID
			return true
		}
	}
	return false
}

// ResolveOnly dismisses the pending decision, applying the visibility change
// to the edited entry alone. It returns the ids that must be updated, which
// is just the entry itself.
func (c *CascadeController) ResolveOnly() []uint {
	if c.state != CascadePendingDecision {
		return nil
	}
	id := c.entryID
	c.state = CascadeIdle
	c.entryID = 0
	return []uint{id}
}

// ResolveCascade confirms the cascade: the edited entry and its full
// descendant closure all become private. The returned slice excludes the
// edited entry itself, matching the two-step write the store performs (entry
// update first, then one bulk descendant update).
func (c *CascadeController) ResolveCascade(entries []Entry) ([]uint, error) {
	if c.state != CascadePendingDecision {
		return nil, nil
	}
	id := c.entryID
	c.state = CascadeIdle
	c.entryID = 0
	return Descendants(entries, id)
}

// Descendants collects the transitive children of the given entry in the
// provided set. A visited guard converts a looping parent chain into
// ErrCorruptHierarchy instead of an infinite traversal.
func Descendants(entries []Entry, rootID uint) ([]uint, error) {
	children := make(map[uint][]uint)
	for _, e := range entries {
		if e.ParentID != nil {
			children[*e.ParentID] = append(children[*e.ParentID], e.ID)
		}
	}

	var collected []uint
	visited := map[uint]struct{}{rootID: {}}

	var walk func(id uint) error
	walk = func(id uint) error {
		for _, childID := range children[id] {
			if _, seen := visited[childID]; seen {
				return ErrCorruptHierarchy
			}
			visited[childID] = struct{}{}
			collected = append(collected, childID)
			if err := walk(childID); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(rootID); err != nil {
		return nil, err
	}
	return collected, nil
}

// HasDirectChild reports whether any entry in the set names id as its parent.
func HasDirectChild(entries []Entry, id uint) bool {
	for _, e := range entries {
		if e.ParentID != nil && *e.ParentID == id {
			return true
		}
	}
	return false
}

// Package viewer carries the identity a read is evaluated for. The tree
// builder, map context resolver and mention resolver all receive a Context
// parameter instead of consulting ambient session state, so visibility
// decisions are explicit and testable.
package viewer

// Context identifies the current viewer of a campaign.
type Context struct {
	UserID uint
	IsDM   bool
}

// DM returns a viewer context with unrestricted visibility.
func DM(userID uint) Context {
	return Context{UserID: userID, IsDM: true}
}

// Player returns a viewer context restricted to public entries.
func Player(userID uint) Context {
	return Context{UserID: userID, IsDM: false}
}

// CanSee reports whether content with the given public flag is visible to the
// viewer. DMs see everything; players only what is public.
func (c Context) CanSee(isPublic bool) bool {
	return c.IsDM || isPublic
}

package lore

import (
	"testing"

	"github.com/rotisserie/eris"

	"opentales/app/internal/viewer"
)

func mapEntry(id uint, parentID *uint, title string, public bool, mapURL string) Entry {
	e := entry(id, parentID, title, public)
	e.MapImageURL = mapURL
	return e
}

func TestResolveMapContextPrefersOwnMap(t *testing.T) {
	t.Parallel()

	kingdom := mapEntry(1, nil, "Kingdom", true, "kingdom.png")
	city := mapEntry(2, uintPtr(1), "City", true, "city.png")
	entries := []Entry{kingdom, city}

	ctx, err := ResolveMapContext(&city, entries, viewer.Player(7))
	if err != nil {
		t.Fatalf("ResolveMapContext returned error: %v", err)
	}
	if ctx == nil || ctx.ID != city.ID {
		t.Fatalf("expected City's own map, got %v", ctx)
	}
}

func TestResolveMapContextWalksToNearestAncestor(t *testing.T) {
	t.Parallel()

	kingdom := mapEntry(1, nil, "Kingdom", true, "kingdom.png")
	city := mapEntry(2, uintPtr(1), "City", true, "city.png")
	tavern := mapEntry(3, uintPtr(2), "Tavern", true, "")
	entries := []Entry{kingdom, city, tavern}

	ctx, err := ResolveMapContext(&tavern, entries, viewer.Player(7))
	if err != nil {
		t.Fatalf("ResolveMapContext returned error: %v", err)
	}
	if ctx == nil || ctx.ID != city.ID {
		t.Fatalf("expected nearest map-bearing ancestor City, got %v", ctx)
	}
}

func TestResolveMapContextSkipsInvisibleAncestors(t *testing.T) {
	t.Parallel()

	// The private regional map between Tavern and Kingdom must not leak to
	// a player walking up through it.
	kingdom := mapEntry(1, nil, "Kingdom", true, "kingdom.png")
	region := mapEntry(2, uintPtr(1), "Secret Region", false, "region.png")
	tavern := mapEntry(3, uintPtr(2), "Tavern", true, "")
	entries := []Entry{kingdom, region, tavern}

	ctx, err := ResolveMapContext(&tavern, entries, viewer.Player(7))
	if err != nil {
		t.Fatalf("ResolveMapContext returned error: %v", err)
	}
	if ctx == nil || ctx.ID != kingdom.ID {
		t.Fatalf("expected Kingdom past the hidden region, got %v", ctx)
	}

	dmCtx, err := ResolveMapContext(&tavern, entries, viewer.DM(1))
	if err != nil {
		t.Fatalf("ResolveMapContext returned error: %v", err)
	}
	if dmCtx == nil || dmCtx.ID != region.ID {
		t.Fatalf("expected DM to resolve the private region map, got %v", dmCtx)
	}
}

func TestResolveMapContextNilScope(t *testing.T) {
	t.Parallel()

	ctx, err := ResolveMapContext(nil, nil, viewer.Player(7))
	if err != nil {
		t.Fatalf("ResolveMapContext returned error: %v", err)
	}
	if ctx != nil {
		t.Fatalf("expected nil context for campaign root scope, got %v", ctx)
	}
}

func TestResolveMapContextReturnsNilWhenNoAncestorHasMap(t *testing.T) {
	t.Parallel()

	root := mapEntry(1, nil, "Root", true, "")
	leaf := mapEntry(2, uintPtr(1), "Leaf", true, "")
	entries := []Entry{root, leaf}

	ctx, err := ResolveMapContext(&leaf, entries, viewer.Player(7))
	if err != nil {
		t.Fatalf("ResolveMapContext returned error: %v", err)
	}
	if ctx != nil {
		t.Fatalf("expected nil so the caller falls back to the campaign map, got %v", ctx)
	}
}

func TestResolveMapContextStopsAtMissingParent(t *testing.T) {
	t.Parallel()

	leaf := mapEntry(2, uintPtr(99), "Leaf", true, "")
	entries := []Entry{leaf}

	ctx, err := ResolveMapContext(&leaf, entries, viewer.Player(7))
	if err != nil {
		t.Fatalf("ResolveMapContext returned error: %v", err)
	}
	if ctx != nil {
		t.Fatalf("expected nil context for broken chain, got %v", ctx)
	}
}

func TestResolveMapContextDetectsCycle(t *testing.T) {
	t.Parallel()

	a := mapEntry(1, uintPtr(2), "A", true, "")
	b := mapEntry(2, uintPtr(1), "B", true, "")
	entries := []Entry{a, b}

	if _, err := ResolveMapContext(&a, entries, viewer.DM(1)); !eris.Is(err, ErrCorruptHierarchy) {
		t.Fatalf("expected ErrCorruptHierarchy, got %v", err)
	}
}

func TestHasOwnMapIsStrict(t *testing.T) {
	t.Parallel()

	kingdom := mapEntry(1, nil, "Kingdom", true, "kingdom.png")
	borrowing := mapEntry(2, uintPtr(1), "Borrower", true, "")
	private := mapEntry(3, nil, "Private", false, "private.png")

	if !HasOwnMap(&kingdom, viewer.Player(7)) {
		t.Fatalf("expected Kingdom to have its own map")
	}
	if HasOwnMap(&borrowing, viewer.Player(7)) {
		t.Fatalf("an entry borrowing an ancestor map must not report its own")
	}
	if HasOwnMap(&private, viewer.Player(7)) {
		t.Fatalf("a private map must not be reported to a player")
	}
	if !HasOwnMap(&private, viewer.DM(1)) {
		t.Fatalf("expected DM to see the private map")
	}
	if HasOwnMap(nil, viewer.DM(1)) {
		t.Fatalf("nil scope has no own map")
	}
}

package pin

import (
	"context"
	"path/filepath"
	"testing"

	gormlogger "gorm.io/gorm/logger"

	"opentales/app/internal/db"
	"opentales/app/internal/lore"
)

func testRepository(t *testing.T) *GormRepository {
	t.Helper()

	conn, err := db.Open(db.Options{
		Path:   filepath.Join(t.TempDir(), "opentales.db"),
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(conn); err != nil {
			t.Errorf("closing test database: %v", err)
		}
	})

	ctx := context.Background()
	if err := lore.Migrate(ctx, conn, testLogger()); err != nil {
		t.Fatalf("migrating lore schema: %v", err)
	}
	if err := Migrate(ctx, conn, testLogger()); err != nil {
		t.Fatalf("migrating pin schema: %v", err)
	}

	repo, err := NewRepository(conn, testLogger())
	if err != nil {
		t.Fatalf("NewRepository returned error: %v", err)
	}
	return repo
}

func createEntry(t *testing.T, repo *GormRepository, title string, public bool) *lore.Entry {
	t.Helper()

	entry := &lore.Entry{CampaignID: 1, Title: title, IsPublic: public, IconType: lore.DefaultIcon}
	if err := repo.db.Create(entry).Error; err != nil {
		t.Fatalf("creating lore entry: %v", err)
	}
	return entry
}

func TestRepositoryListByContextPreloadsLore(t *testing.T) {
	t.Parallel()

	repo := testRepository(t)
	ctx := context.Background()

	entry := createEntry(t, repo, "Harbor", true)
	parent := createEntry(t, repo, "Coast", true)

	campaignPin := &Pin{CampaignID: 1, LoreID: entry.ID, XPos: 10, YPos: 20, IconType: "anchor"}
	if err := repo.Create(ctx, campaignPin); err != nil {
		t.Fatalf("creating campaign pin: %v", err)
	}
	entryPin := &Pin{CampaignID: 1, LoreID: entry.ID, ParentLoreID: &parent.ID, XPos: 30, YPos: 40, IconType: "anchor"}
	if err := repo.Create(ctx, entryPin); err != nil {
		t.Fatalf("creating entry pin: %v", err)
	}

	campaignSurface, err := repo.ListByContext(ctx, 1, nil)
	if err != nil {
		t.Fatalf("listing campaign surface: %v", err)
	}
	if len(campaignSurface) != 1 {
		t.Fatalf("expected 1 campaign-level pin, got %d", len(campaignSurface))
	}
	if campaignSurface[0].Lore == nil || campaignSurface[0].Lore.Title != "Harbor" {
		t.Fatalf("expected the lore entry preloaded, got %+v", campaignSurface[0].Lore)
	}

	entrySurface, err := repo.ListByContext(ctx, 1, &parent.ID)
	if err != nil {
		t.Fatalf("listing entry surface: %v", err)
	}
	if len(entrySurface) != 1 || entrySurface[0].ID != entryPin.ID {
		t.Fatalf("expected only the entry-level pin, got %+v", entrySurface)
	}
}

func TestRepositoryCreateWithEntryIsAtomic(t *testing.T) {
	t.Parallel()

	repo := testRepository(t)
	ctx := context.Background()

	entry := &lore.Entry{CampaignID: 1, Title: "Cove", IsPublic: true, IconType: "anchor"}
	pin := &Pin{XPos: 5, YPos: 5, IconType: "anchor"}
	if err := repo.CreateWithEntry(ctx, entry, pin); err != nil {
		t.Fatalf("CreateWithEntry returned error: %v", err)
	}
	if entry.ID == 0 || pin.LoreID != entry.ID {
		t.Fatalf("expected the pin to reference the new entry, got entry %d pin lore %d", entry.ID, pin.LoreID)
	}
	if pin.CampaignID != entry.CampaignID {
		t.Fatalf("expected the pin to inherit the campaign, got %d", pin.CampaignID)
	}

	// A blank title fails inside the transaction and must leave no pin
	// behind.
	bad := &lore.Entry{CampaignID: 1, IconType: "anchor"}
	if err := repo.CreateWithEntry(ctx, bad, &Pin{XPos: 1, YPos: 1}); err == nil {
		t.Fatalf("expected the transaction to fail on a blank title")
	}
	pins, err := repo.ListByCampaign(ctx, 1)
	if err != nil {
		t.Fatalf("listing pins: %v", err)
	}
	if len(pins) != 1 {
		t.Fatalf("expected only the first pin to survive, got %d", len(pins))
	}
}

func TestRepositorySyncIconUpdatesEveryReference(t *testing.T) {
	t.Parallel()

	repo := testRepository(t)
	ctx := context.Background()

	entry := createEntry(t, repo, "Fort", true)
	other := createEntry(t, repo, "Village", true)

	for i := 0; i < 2; i++ {
		p := &Pin{CampaignID: 1, LoreID: entry.ID, XPos: float64(i), YPos: float64(i), IconType: "map-pin"}
		if err := repo.Create(ctx, p); err != nil {
			t.Fatalf("creating pin: %v", err)
		}
	}
	untouched := &Pin{CampaignID: 1, LoreID: other.ID, XPos: 9, YPos: 9, IconType: "home"}
	if err := repo.Create(ctx, untouched); err != nil {
		t.Fatalf("creating pin: %v", err)
	}

	if err := repo.SyncIcon(ctx, entry.ID, "castle"); err != nil {
		t.Fatalf("SyncIcon returned error: %v", err)
	}

	pins, err := repo.ListByCampaign(ctx, 1)
	if err != nil {
		t.Fatalf("listing pins: %v", err)
	}
	for _, p := range pins {
		switch p.LoreID {
		case entry.ID:
			if p.IconType != "castle" {
				t.Fatalf("expected pin %d synced to castle, got %q", p.ID, p.IconType)
			}
		case other.ID:
			if p.IconType != "home" {
				t.Fatalf("unrelated pin %d must keep its icon, got %q", p.ID, p.IconType)
			}
		}
	}
}

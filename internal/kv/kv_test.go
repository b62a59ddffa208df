package kv

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	gormlogger "gorm.io/gorm/logger"

	"opentales/app/internal/db"
)

func testStore(t *testing.T) *Store {
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

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	if err := Migrate(context.Background(), conn, logger); err != nil {
		t.Fatalf("migrating kv schema: %v", err)
	}

	store, err := NewStore(conn, logger)
	if err != nil {
		t.Fatalf("NewStore returned error: %v", err)
	}
	return store
}

func TestSetGetRoundTrip(t *testing.T) {
	t.Parallel()

	store := testStore(t)
	ctx := context.Background()

	type snapshot struct {
		Names []string `json:"names"`
		Count int      `json:"count"`
	}

	in := snapshot{Names: []string{"Ari", "Gareth"}, Count: 2}
	if err := store.Set(ctx, "opentales_characters", in); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	var out snapshot
	if err := store.Get(ctx, "opentales_characters", &out); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if out.Count != 2 || len(out.Names) != 2 || out.Names[0] != "Ari" {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestSetOverwritesExistingKey(t *testing.T) {
	t.Parallel()

	store := testStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "theme", "dark"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if err := store.Set(ctx, "theme", "light"); err != nil {
		t.Fatalf("second Set returned error: %v", err)
	}

	var theme string
	if err := store.Get(ctx, "theme", &theme); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if theme != "light" {
		t.Fatalf("expected the later value to win, got %q", theme)
	}
}

func TestGetMissingKey(t *testing.T) {
	t.Parallel()

	store := testStore(t)

	var out string
	if err := store.Get(context.Background(), "missing", &out); !eris.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	t.Parallel()

	store := testStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "doomed", 1); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if err := store.Delete(ctx, "doomed"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if err := store.Delete(ctx, "doomed"); err != nil {
		t.Fatalf("second Delete returned error: %v", err)
	}

	var out int
	if err := store.Get(ctx, "doomed", &out); !eris.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

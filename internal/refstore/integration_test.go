package refstore_test

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"testing"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gyeh/dermbill/internal/logging"
	"github.com/gyeh/dermbill/internal/refdata"
	"github.com/gyeh/dermbill/internal/refstore"
)

const (
	testPort     = 15433
	testDB       = "dermbilltest"
	testUser     = "postgres"
	testPassword = "postgres"
)

var (
	testDSN string
	pg      *embeddedpostgres.EmbeddedPostgres
)

func TestMain(m *testing.M) {
	testDSN = fmt.Sprintf("postgresql://%s:%s@localhost:%d/%s?sslmode=disable",
		testUser, testPassword, testPort, testDB)

	pg = embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(uint32(testPort)).
			Database(testDB).
			Username(testUser).
			Password(testPassword).
			Version(embeddedpostgres.V16).
			StartTimeout(30 * time.Second),
	)

	if err := pg.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start embedded postgres: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	if err := pg.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to stop embedded postgres: %v\n", err)
	}

	os.Exit(code)
}

// setupDB creates a connection pool and applies migrations from a clean
// schema.
func setupDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, testDSN)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	if _, err := pool.Exec(ctx, "DROP SCHEMA IF EXISTS ref CASCADE"); err != nil {
		t.Fatalf("drop schema: %v", err)
	}

	log := logging.Setup("text")
	if err := refstore.ApplyMigrations(ctx, pool, log); err != nil {
		pool.Close()
		t.Fatalf("migrations: %v", err)
	}

	t.Cleanup(func() { pool.Close() })
	return pool
}

func TestSeedAndLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	pool := setupDB(t)

	embedded, err := refdata.Load()
	if err != nil {
		t.Fatalf("load embedded tables: %v", err)
	}
	log := logging.Setup("text")
	if err := refstore.Seed(ctx, pool, embedded.Tables(), log); err != nil {
		t.Fatalf("seed: %v", err)
	}

	loaded, err := refstore.Load(ctx, pool)
	if err != nil {
		t.Fatalf("load from database: %v", err)
	}

	// Tables dumps in deterministic order, so the round trip must be exact.
	if !reflect.DeepEqual(loaded.Tables(), embedded.Tables()) {
		t.Error("database round trip diverged from the embedded tables")
	}
}

func TestSeed_Idempotent(t *testing.T) {
	ctx := context.Background()
	pool := setupDB(t)

	embedded, err := refdata.Load()
	if err != nil {
		t.Fatalf("load embedded tables: %v", err)
	}
	log := logging.Setup("text")
	for i := 0; i < 2; i++ {
		if err := refstore.Seed(ctx, pool, embedded.Tables(), log); err != nil {
			t.Fatalf("seed pass %d: %v", i+1, err)
		}
	}

	var n int
	if err := pool.QueryRow(ctx, "SELECT count(*) FROM ref.codes").Scan(&n); err != nil {
		t.Fatalf("count codes: %v", err)
	}
	if n != len(embedded.Codes()) {
		t.Errorf("code rows = %d, want %d", n, len(embedded.Codes()))
	}
}

func TestLoad_StoreAnswersLookups(t *testing.T) {
	ctx := context.Background()
	pool := setupDB(t)

	embedded, err := refdata.Load()
	if err != nil {
		t.Fatalf("load embedded tables: %v", err)
	}
	log := logging.Setup("text")
	if err := refstore.Seed(ctx, pool, embedded.Tables(), log); err != nil {
		t.Fatalf("seed: %v", err)
	}
	store, err := refstore.Load(ctx, pool)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if w := store.WRVU("99214"); w != 1.92 {
		t.Errorf("99214 wrvu = %v, want 1.92", w)
	}
	if _, ok := store.EditRule("11721", "11401"); ok {
		t.Error("unrelated pair should have no edit rule")
	}
	if rule, ok := store.EditRule("12002", "11401"); !ok || rule.CodeA != "11401" {
		t.Errorf("excision/repair edit = %+v ok=%v, want comprehensive 11401", rule, ok)
	}
	if g, ok := store.AnatomicGroup("left cheek"); !ok || g != "face_ears_eyelids_nose_lips" {
		t.Errorf("cheek group = %q ok=%v", g, ok)
	}
}

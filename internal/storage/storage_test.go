package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hyperjump/norma/internal/models"
)

func sampleNorma(id string) *models.Norma {
	return &models.Norma{
		ID:            id,
		Name:          "Ley 100 de 1993",
		Kind:          models.NormLey,
		EffectiveFrom: models.MustParseDate("1993-12-23"),
		PartialDerogations: []models.PartialDerogation{
			{Article: "Artículo 5", DerogatedBy: "ley-797-2003", Since: models.MustParseDate("2003-01-29")},
		},
		Status: models.StatusPartiallyDerogated,
		Notes:  []string{"Sistema de seguridad social integral"},
	}
}

func openStores(t *testing.T) map[string]NormStore {
	t.Helper()
	dir := t.TempDir()
	dirStore, err := NewDirStore(filepath.Join(dir, "normas"))
	if err != nil {
		t.Fatal(err)
	}
	sqliteStore, err := NewSQLiteStore(filepath.Join(dir, "db", "vigencia.db"))
	if err != nil {
		t.Fatal(err)
	}
	badgerStore, err := NewBadgerStore("")
	if err != nil {
		t.Fatal(err)
	}
	stores := map[string]NormStore{
		BackendDir:    dirStore,
		BackendSQLite: sqliteStore,
		BackendBadger: badgerStore,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func TestNormStore_Contract(t *testing.T) {
	ctx := context.Background()
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := store.Get(ctx, "ley-100-1993"); !errors.Is(err, models.ErrNotFound) {
				t.Fatalf("Get on empty store: got %v, want ErrNotFound", err)
			}

			n := sampleNorma("ley-100-1993")
			if err := store.Create(ctx, n); err != nil {
				t.Fatal(err)
			}
			if err := store.Create(ctx, n); !errors.Is(err, models.ErrConflict) {
				t.Errorf("second Create: got %v, want ErrConflict", err)
			}

			got, err := store.Get(ctx, n.ID)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(n, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}

			got.Status = models.StatusDerogated
			got.DerogatedBy = "ley-2000-2020"
			if err := store.Put(ctx, got); err != nil {
				t.Fatal(err)
			}
			again, err := store.Get(ctx, n.ID)
			if err != nil {
				t.Fatal(err)
			}
			if again.Status != models.StatusDerogated || again.DerogatedBy != "ley-2000-2020" {
				t.Errorf("Put not persisted: %+v", again)
			}

			if err := store.Put(ctx, sampleNorma("decreto-2591-1991")); err != nil {
				t.Fatal(err)
			}
			ids, err := store.List(ctx)
			if err != nil {
				t.Fatal(err)
			}
			want := []string{"decreto-2591-1991", "ley-100-1993"}
			if diff := cmp.Diff(want, ids); diff != "" {
				t.Errorf("List mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormStore_RejectsInvalidID(t *testing.T) {
	ctx := context.Background()
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			err := store.Put(ctx, sampleNorma("../escape"))
			if !errors.Is(err, models.ErrInvalid) {
				t.Errorf("got %v, want ErrInvalid", err)
			}
		})
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	if _, err := Open("postgres", t.TempDir()); !errors.Is(err, models.ErrInvalid) {
		t.Errorf("got %v, want ErrInvalid", err)
	}
}

func TestDirStore_ListSkipsForeignFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDirStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := store.Put(ctx, sampleNorma("ley-50-1990")); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"README.md", "Bad Name.json"} {
		if err := writeFile(filepath.Join(dir, name), "x"); err != nil {
			t.Fatal(err)
		}
	}
	ids, err := store.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != "ley-50-1990" {
		t.Errorf("got %v", ids)
	}
}

func TestDirStore_CorruptRecord(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDirStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(dir, "ley-1-2000.json"), "{not json"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(context.Background(), "ley-1-2000"); !errors.Is(err, models.ErrStructural) {
		t.Errorf("got %v, want ErrStructural", err)
	}
}

package services

import (
	"context"
	"path/filepath"
	"testing"

	"m2_harvester/models"
	"m2_harvester/storage"
)

func testService(t *testing.T) (*RecordService, *storage.SQLiteStore) {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewRecordService(store, nil), store
}

func testRecord() models.PropertyRecord {
	return models.PropertyRecord{
		URL:          "https://www.metrocuadrado.com/inmueble/venta-apartamento/1",
		Title:        "Apartamento en Chapinero",
		Price:        "520000000",
		Currency:     "COP",
		Address:      "Carrera 4 # 58-22",
		City:         "Bogotá",
		PropertyType: "Apartamento",
		Area:         "84.5",
		Rooms:        "3",
		Bathrooms:    "2",
		Images:       []string{"https://cdn.example.com/a1.jpg", "https://cdn.example.com/a2.jpg"},
		ScrapedAt:    "2026-08-24 10:00:00",
	}
}

func TestProcessNewRecord(t *testing.T) {
	svc, store := testService(t)
	rec := testRecord()

	result, err := svc.Process(context.Background(), &rec, 1)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !result.IsNewProperty {
		t.Error("first sighting should be new")
	}
	if result.ImagesQueued != 2 {
		t.Errorf("ImagesQueued = %d, want 2", result.ImagesQueued)
	}

	stored, err := store.GetPropertyByFingerprint(result.Fingerprint)
	if err != nil {
		t.Fatalf("get property: %v", err)
	}
	if stored == nil {
		t.Fatal("property not persisted")
	}
	if stored.Title != rec.Title {
		t.Errorf("Title = %q", stored.Title)
	}
}

func TestProcessResightingDedupes(t *testing.T) {
	svc, _ := testService(t)
	rec := testRecord()

	first, err := svc.Process(context.Background(), &rec, 1)
	if err != nil {
		t.Fatalf("first process: %v", err)
	}

	// Same property, new run, higher price.
	rec2 := testRecord()
	rec2.Price = "530000000"
	second, err := svc.Process(context.Background(), &rec2, 2)
	if err != nil {
		t.Fatalf("second process: %v", err)
	}

	if second.Fingerprint != first.Fingerprint {
		t.Errorf("fingerprint changed across runs: %s vs %s", second.Fingerprint, first.Fingerprint)
	}
	if second.IsNewProperty {
		t.Error("re-sighting flagged as new")
	}
	if second.ImagesQueued != 0 {
		t.Errorf("duplicate images re-queued: %d", second.ImagesQueued)
	}
}

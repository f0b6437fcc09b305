package output

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"m2_harvester/models"
)

func sampleRecord() models.PropertyRecord {
	return models.PropertyRecord{
		URL:          "https://www.metrocuadrado.com/inmueble/venta-apartamento/1",
		Title:        "Apartamento, \"Chapinero\"",
		Price:        "520000000",
		Currency:     "COP",
		Address:      "Carrera 4 # 58-22",
		Neighborhood: "Chapinero Alto",
		City:         "Bogotá",
		PropertyType: "Apartamento",
		Area:         "84.5",
		Rooms:        "3",
		Bathrooms:    "2",
		Parking:      "1",
		Stratum:      "4",
		Status:       "Usado",
		Description:  "Hermoso apartamento, con vista a los cerros",
		Features:     []string{"Ascensor", "Balcón"},
		Broker:       "Inmobiliaria Andina",
		BrokerPhone:  "+57 601 5551234",
		Images:       []string{"https://cdn.example.com/a1.jpg", "https://cdn.example.com/a2.jpg"},
		VirtualTour:  "https://tour.example.com/1",
		PropertyID:   "1023-M4567890",
		ScrapedAt:    "2026-08-24 10:00:00",
	}
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "props.csv")
	records := []models.PropertyRecord{sampleRecord(), sampleRecord()}

	if err := WriteCSV(path, records); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("parse CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}

	header := rows[0]
	if len(header) != len(Columns) {
		t.Fatalf("header has %d columns, want %d", len(header), len(Columns))
	}
	if header[0] != "url" || header[4] != "location" || header[len(header)-1] != "scraped_at" {
		t.Errorf("header order wrong: %v", header)
	}

	row := rows[1]
	if len(row) != len(Columns) {
		t.Fatalf("row has %d fields, want %d", len(row), len(Columns))
	}
	if row[1] != `Apartamento, "Chapinero"` {
		t.Errorf("quoting broken: %q", row[1])
	}
	if row[15] != "Ascensor, Balcón" {
		t.Errorf("features join = %q", row[15])
	}
	if row[18] != "https://cdn.example.com/a1.jpg; https://cdn.example.com/a2.jpg" {
		t.Errorf("images join = %q", row[18])
	}
}

func TestWriteCSVEmptyRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	if err := WriteCSV(path, nil); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("parse CSV: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want header only", len(rows))
	}
}

func TestRowFieldCount(t *testing.T) {
	rec := models.PropertyRecord{}
	row := Row(&rec)
	if len(row) != len(Columns) {
		t.Fatalf("Row() has %d fields, Columns has %d", len(row), len(Columns))
	}
}

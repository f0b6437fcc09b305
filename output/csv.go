// Package output serializes the final record set as the tabular artifact.
package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"m2_harvester/models"
)

// Columns is the fixed output column set, one per PropertyRecord field.
var Columns = []string{
	"url", "title", "price", "currency", "location", "neighborhood", "city",
	"property_type", "area", "rooms", "bathrooms", "parking", "stratum",
	"status", "description", "features", "broker", "broker_phone", "images",
	"virtual_tour", "property_id", "scraped_at",
}

// WriteCSV writes records to path with a header row, one row per record.
func WriteCSV(path string, records []models.PropertyRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i := range records {
		if err := w.Write(Row(&records[i])); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

// Row maps one record onto the Columns order. Features join with ", ",
// images with "; ".
func Row(r *models.PropertyRecord) []string {
	return []string{
		r.URL,
		r.Title,
		r.Price,
		r.Currency,
		r.Address,
		r.Neighborhood,
		r.City,
		r.PropertyType,
		r.Area,
		r.Rooms,
		r.Bathrooms,
		r.Parking,
		r.Stratum,
		r.Status,
		r.Description,
		strings.Join(r.Features, ", "),
		r.Broker,
		r.BrokerPhone,
		strings.Join(r.Images, "; "),
		r.VirtualTour,
		r.PropertyID,
		r.ScrapedAt,
	}
}

package models

// PropertyRecord is the normalized output of one detail-page extraction.
// Every field is explicitly defaulted: a payload missing a field yields an
// empty string or empty slice, never a parse failure.
type PropertyRecord struct {
	URL          string   `json:"url"`
	Title        string   `json:"title"`
	Price        string   `json:"price"`
	Currency     string   `json:"currency"`
	Address      string   `json:"location"`
	Neighborhood string   `json:"neighborhood"`
	City         string   `json:"city"`
	PropertyType string   `json:"property_type"`
	Area         string   `json:"area"`
	Rooms        string   `json:"rooms"`
	Bathrooms    string   `json:"bathrooms"`
	Parking      string   `json:"parking"`
	Stratum      string   `json:"stratum"`
	Status       string   `json:"status"`
	Description  string   `json:"description"`
	Features     []string `json:"features"`
	Broker       string   `json:"broker"`
	BrokerPhone  string   `json:"broker_phone"`
	Images       []string `json:"images"`
	VirtualTour  string   `json:"virtual_tour"`
	PropertyID   string   `json:"property_id"`
	ScrapedAt    string   `json:"scraped_at"`
}

// ScrapedAtLayout is the timestamp format stamped on every record.
const ScrapedAtLayout = "2006-01-02 15:04:05"

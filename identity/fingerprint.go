package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"m2_harvester/models"
)

var (
	streetReplacements = map[string]string{
		"calle":       "cl",
		"carrera":     "cr",
		"avenida":     "av",
		"transversal": "tv",
		"diagonal":    "dg",
		"circular":    "cq",
		"autopista":   "au",
		"kilometro":   "km",
		"norte":       "n",
		"sur":         "s",
		"este":        "e",
		"oeste":       "o",
		"apartamento": "apto",
		"torre":       "tr",
		"edificio":    "ed",
		"numero":      "no",
	}
	multiSpaceRegex = regexp.MustCompile(`\s+`)
	nonAlnumRegex   = regexp.MustCompile(`[^a-z0-9\s]`)
)

// Fingerprint derives a stable identity for a record so the same property
// scraped across runs dedupes to one row. Prefers the normalized address
// plus layout attributes; falls back to the site's own ID, then the URL.
func Fingerprint(rec *models.PropertyRecord) string {
	normalized := NormalizeAddress(rec.Address)

	var input string
	switch {
	case normalized != "":
		input = fmt.Sprintf("%s|%s|%s|%s|%s",
			normalized,
			rec.Rooms,
			rec.Bathrooms,
			rec.Area,
			strings.ToLower(rec.PropertyType),
		)
	case rec.PropertyID != "":
		input = "id|" + rec.PropertyID
	default:
		input = "url|" + rec.URL
	}

	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:16])
}

// NormalizeAddress lowercases, strips accents-adjacent punctuation, and
// abbreviates the Colombian street nomenclature.
func NormalizeAddress(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	addr = strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ñ", "n").Replace(addr)
	addr = nonAlnumRegex.ReplaceAllString(addr, " ")
	for full, abbrev := range streetReplacements {
		addr = strings.ReplaceAll(addr, full, abbrev)
	}
	addr = multiSpaceRegex.ReplaceAllString(addr, " ")
	return strings.TrimSpace(addr)
}

package app

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"terrenos/internal/domain"
)

/********** alias registry (single source of truth) **********/

// Column-header aliases accepted by the spreadsheet importer, in priority
// order. Headers are matched after NormalizeHeader, so "Precio USD" and
// "precio_usd" land on the same key.
var rowAliases = map[string][]string{
	"title":       {"title", "titulo", "nombre", "terreno"},
	"location":    {"location", "ubicacion", "ciudad", "lugar"},
	"price_usd":   {"price_usd", "precio", "precio_usd", "price", "valor"},
	"area_m2":     {"area_m2", "area", "m2", "metros2", "metros_cuadrados"},
	"status":      {"status", "estado"},
	"type":        {"type", "tipo"},
	"description": {"description", "descripcion", "detalle"},
	"image_url":   {"image_url", "imagen", "image", "url", "foto"},
	"lat":         {"lat", "latitud", "latitude"},
	"lng":         {"lng", "lon", "longitud", "longitude"},
}

/********** header normalization **********/

// NormalizeHeader canonicalizes a column label: case-fold, strip accents
// (NFD, drop non-spacing marks), collapse runs outside [a-z0-9] to a single
// underscore, trim underscores. Idempotent.
func NormalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	deaccent := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(deaccent, s); err == nil {
		s = out
	}

	var b strings.Builder
	b.Grow(len(s))
	pendingSep := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}

// NormalizeRow folds a raw record into canonical-key form. Later columns
// overwrite earlier ones when two labels normalize to the same key.
func NormalizeRow(headers, cells []string) map[string]string {
	row := make(map[string]string, len(headers))
	for i, h := range headers {
		if i >= len(cells) {
			break
		}
		row[NormalizeHeader(h)] = strings.TrimSpace(cells[i])
	}
	return row
}

func pickValue(row map[string]string, key string) string {
	for _, alias := range rowAliases[key] {
		if v, ok := row[alias]; ok && v != "" {
			return v
		}
	}
	return ""
}

/********** numeric coercion **********/

// coerceNumber strips everything that is not a digit or decimal point
// (plus a leading minus when signed) and parses the remainder. The bool is
// false for empty, unparseable, or non-finite input.
func coerceNumber(raw string, signed bool) (float64, bool) {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9', r == '.':
			b.WriteRune(r)
		case signed && r == '-' && b.Len() == 0:
			b.WriteRune(r)
		}
	}
	s := b.String()
	if s == "" || s == "-" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

/********** row mapping **********/

// MapRow resolves one normalized record into a catalog candidate. The bool
// is false when the row fails validation (missing title/location, or price
// or area that does not coerce to a finite number).
func MapRow(row map[string]string) (domain.Plot, bool) {
	title := strings.TrimSpace(pickValue(row, "title"))
	location := strings.TrimSpace(pickValue(row, "location"))
	price, priceOK := coerceNumber(pickValue(row, "price_usd"), false)
	area, areaOK := coerceNumber(pickValue(row, "area_m2"), false)

	if title == "" || location == "" || !priceOK || !areaOK {
		return domain.Plot{}, false
	}

	status := strings.ToLower(pickValue(row, "status"))
	if status == "" {
		status = domain.StatusAvailable
	}
	typ := strings.ToLower(pickValue(row, "type"))
	if typ == "" {
		typ = domain.TypeResidential
	}

	p := domain.Plot{
		Title:    title,
		Location: location,
		PriceUSD: price,
		AreaM2:   area,
		Status:   status,
		Type:     typ,
	}
	if d := pickValue(row, "description"); d != "" {
		p.Description = &d
	}
	if u := pickValue(row, "image_url"); u != "" {
		p.ImageURL = &u
	}
	if lat, ok := coerceNumber(pickValue(row, "lat"), true); ok {
		p.Lat = &lat
	}
	if lng, ok := coerceNumber(pickValue(row, "lng"), true); ok {
		p.Lng = &lng
	}
	return p, true
}

// NormalizeRows maps a batch of records to catalog candidates. Rows that
// fail validation are dropped silently; dropped is their count. Callers only
// ever report the aggregate.
func NormalizeRows(headers []string, records [][]string) (valid []domain.Plot, dropped int) {
	for _, rec := range records {
		p, ok := MapRow(NormalizeRow(headers, rec))
		if !ok {
			dropped++
			continue
		}
		valid = append(valid, p)
	}
	return valid, dropped
}

/********** CSV reading **********/

// ReadCSV parses an uploaded file into a header row and data records.
// Ragged rows are tolerated; fully empty rows are skipped.
func ReadCSV(r io.Reader) (headers []string, records [][]string, err error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	all, err := cr.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(all) == 0 {
		return nil, nil, nil
	}

	headers = all[0]
	if len(headers) > 0 {
		// Excel exports often carry a UTF-8 BOM on the first cell.
		headers[0] = strings.TrimPrefix(headers[0], "\uFEFF")
	}

	for _, rec := range all[1:] {
		empty := true
		for _, c := range rec {
			if strings.TrimSpace(c) != "" {
				empty = false
				break
			}
		}
		if empty {
			continue
		}
		records = append(records, rec)
	}
	return headers, records, nil
}

// Package bordercrossing reads border-crossing point lists from CSV exports.
package bordercrossing

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jszwec/csvutil"

	"euroaip/pkg/domain"
)

type record struct {
	ICAOCode         string `csv:"icao_code"`
	CountryISO       string `csv:"country_iso"`
	AirportName      string `csv:"airport_name"`
	IsAirport        string `csv:"is_airport"`
	ExtractionMethod string `csv:"extraction_method"`
	MatchedICAO      string `csv:"matched_airport_icao"`
	MatchScore       string `csv:"match_score"`
}

// ReadCSV decodes a header-led CSV into entries attributed to source. Values
// are trimmed, codes upper-cased and blank rows skipped. Columns without a
// matching field are kept in Metadata.
func ReadCSV(r io.Reader, source string) ([]domain.BorderCrossingEntry, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	dec, err := csvutil.NewDecoder(cr)
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read border crossing header: %w", err)
	}
	header := dec.Header()

	var out []domain.BorderCrossingEntry
	for line := 2; ; line++ {
		var rec record
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("decode border crossing line %d: %w", line, err)
		}
		entry, ok, err := toEntry(rec, source)
		if err != nil {
			return nil, fmt.Errorf("border crossing line %d: %w", line, err)
		}
		if !ok {
			continue
		}
		for _, idx := range dec.Unused() {
			if idx >= len(header) {
				continue
			}
			v := strings.TrimSpace(dec.Record()[idx])
			if v == "" {
				continue
			}
			if entry.Metadata == nil {
				entry.Metadata = make(map[string]string)
			}
			entry.Metadata[strings.TrimSpace(header[idx])] = v
		}
		out = append(out, entry)
	}
	return out, nil
}

func toEntry(rec record, source string) (domain.BorderCrossingEntry, bool, error) {
	e := domain.BorderCrossingEntry{
		ICAOCode:           strings.ToUpper(strings.TrimSpace(rec.ICAOCode)),
		CountryISO:         strings.ToUpper(strings.TrimSpace(rec.CountryISO)),
		AirportName:        strings.TrimSpace(rec.AirportName),
		ExtractionMethod:   strings.TrimSpace(rec.ExtractionMethod),
		MatchedAirportICAO: strings.ToUpper(strings.TrimSpace(rec.MatchedICAO)),
		Source:             source,
	}
	if e.ICAOCode == "" && e.CountryISO == "" && e.AirportName == "" && e.MatchedAirportICAO == "" {
		return e, false, nil
	}
	if v := strings.TrimSpace(rec.IsAirport); v != "" {
		b, err := parseBool(v)
		if err != nil {
			return e, false, err
		}
		e.IsAirport = &b
	}
	if v := strings.TrimSpace(rec.MatchScore); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return e, false, fmt.Errorf("parse match_score %q: %w", v, err)
		}
		e.MatchScore = &f
	}
	return e, true, nil
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y":
		return true, nil
	case "0", "false", "no", "n":
		return false, nil
	}
	return false, fmt.Errorf("parse is_airport %q: not a boolean", v)
}

package batch

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/collections-lab/georef-cli/internal/matcher"
)

// ReadRecords parses a GBIF-style occurrence file into locality
// records. Comma and tab delimiters are both accepted; column names
// are matched case-insensitively against the Darwin Core terms the
// resolver understands, and unknown columns are ignored.
func ReadRecords(in io.Reader, limit int) ([]*matcher.Record, error) {
	buf := bufio.NewReader(in)
	delim, err := sniffDelimiter(buf)
	if err != nil {
		return nil, err
	}
	reader := csv.NewReader(buf)
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "batch: read header")
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[normalizeHeader(name)] = i
	}

	var records []*matcher.Record
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "batch: read row %d", line+1)
		}
		line++
		rec := recordFromRow(cols, row)
		if rec.LocationID == "" {
			rec.LocationID = fmt.Sprintf("row-%d", line)
		}
		records = append(records, rec)
		if limit > 0 && len(records) >= limit {
			break
		}
	}
	return records, nil
}

// sniffDelimiter inspects the start of the header line without
// consuming it. Tab-separated dumps are the GBIF default; anything
// else is treated as comma-separated.
func sniffDelimiter(buf *bufio.Reader) (rune, error) {
	data, err := buf.Peek(4096)
	if len(data) == 0 {
		if err != nil && err != io.EOF {
			return 0, eris.Wrap(err, "batch: inspect input")
		}
		return ',', nil
	}
	head := string(data)
	if nl := strings.IndexByte(head, '\n'); nl >= 0 {
		head = head[:nl]
	}
	if strings.ContainsRune(head, '\t') {
		return '\t', nil
	}
	return ',', nil
}

func normalizeHeader(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, name)
	return name
}

func recordFromRow(cols map[string]int, row []string) *matcher.Record {
	get := func(names ...string) string {
		for _, name := range names {
			idx, ok := cols[name]
			if !ok || idx >= len(row) {
				continue
			}
			if v := strings.TrimSpace(row[idx]); v != "" {
				return v
			}
		}
		return ""
	}
	multi := func(names ...string) []string {
		if v := get(names...); v != "" {
			return []string{v}
		}
		return nil
	}
	return &matcher.Record{
		LocationID:     get("occurrenceid", "locationid", "id"),
		Continent:      get("continent"),
		Country:        get("country"),
		CountryCode:    get("countrycode"),
		StateProvince:  multi("stateprovince"),
		County:         multi("county"),
		Municipality:   get("municipality"),
		Island:         get("island"),
		IslandGroup:    get("islandgroup"),
		WaterBody:      multi("waterbody"),
		Mine:           get("mine"),
		MiningDistrict: get("miningdistrict"),
		Volcano:        get("volcano"),
		Ocean:          get("ocean"),
		SeaGulf:        get("seagulf", "sea"),
		BaySound:       get("baysound", "bay"),
		Features:       multi("features", "locationremarks"),
		Locality:       get("locality", "verbatimlocality"),
	}
}

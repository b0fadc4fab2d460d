// Package geo maps free-text US location references to FIPS identifiers.
// The table is static: 50 states by full name and by two-letter
// abbreviation, both resolving to the 2-digit state FIPS code stored in
// the fact table. Lookups are case-insensitive. Unknown names pass
// through unmodified as a candidate identifier; a bad candidate produces
// an empty join downstream rather than an error.
package geo

import "strings"

// Level is the granularity tag for a geographic identifier.
type Level string

const (
	LevelState  Level = "STATE"
	LevelCounty Level = "COUNTY"
	LevelPlace  Level = "PLACE"
)

// stateFIPS maps lowercase state names and abbreviations to FIPS codes.
var stateFIPS = map[string]string{
	"alabama": "01", "alaska": "02", "arizona": "04", "arkansas": "05", "california": "06",
	"colorado": "08", "connecticut": "09", "delaware": "10", "florida": "12", "georgia": "13",
	"hawaii": "15", "idaho": "16", "illinois": "17", "indiana": "18", "iowa": "19",
	"kansas": "20", "kentucky": "21", "louisiana": "22", "maine": "23", "maryland": "24",
	"massachusetts": "25", "michigan": "26", "minnesota": "27", "mississippi": "28", "missouri": "29",
	"montana": "30", "nebraska": "31", "nevada": "32", "new hampshire": "33", "new jersey": "34",
	"new mexico": "35", "new york": "36", "north carolina": "37", "north dakota": "38", "ohio": "39",
	"oklahoma": "40", "oregon": "41", "pennsylvania": "42", "rhode island": "44", "south carolina": "45",
	"south dakota": "46", "tennessee": "47", "texas": "48", "utah": "49", "vermont": "50",
	"virginia": "51", "washington": "53", "west virginia": "54", "wisconsin": "55", "wyoming": "56",

	// Standard two-letter abbreviations people type instead of names.
	"al": "01", "ak": "02", "az": "04", "ar": "05", "ca": "06", "co": "08", "ct": "09", "de": "10",
	"fl": "12", "ga": "13", "hi": "15", "id": "16", "il": "17", "in": "18", "ia": "19", "ks": "20",
	"ky": "21", "la": "22", "me": "23", "md": "24", "ma": "25", "mi": "26", "mn": "27", "ms": "28",
	"mo": "29", "mt": "30", "ne": "31", "nv": "32", "nh": "33", "nj": "34", "nm": "35", "ny": "36",
	"nc": "37", "nd": "38", "oh": "39", "ok": "40", "or": "41", "pa": "42", "ri": "44", "sc": "45",
	"sd": "46", "tn": "47", "tx": "48", "ut": "49", "vt": "50", "va": "51", "wa": "53", "wv": "54",
	"wi": "55", "wy": "56",
}

// fipsToName maps FIPS codes back to display names. Built from the full
// names only, so "48" renders as "Texas", never "Tx".
var fipsToName = func() map[string]string {
	m := make(map[string]string, 50)
	for name, code := range stateFIPS {
		if len(name) > 2 {
			m[code] = titleCase(name)
		}
	}
	return m
}()

// Resolve maps a free-text location to a geo identifier. Known state
// names and abbreviations yield the FIPS code; anything else passes
// through as given.
func Resolve(name string) string {
	if code, ok := stateFIPS[strings.ToLower(strings.TrimSpace(name))]; ok {
		return code
	}
	return name
}

// Known reports whether the name resolves to a FIPS code.
func Known(name string) bool {
	_, ok := stateFIPS[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// DisplayName maps a geo identifier back to a human-readable name,
// returning the identifier itself when unmapped.
func DisplayName(geoID string) string {
	if name, ok := fipsToName[geoID]; ok {
		return name
	}
	return geoID
}

// DetectLevel scans a question for geo-level keywords. At most one level
// is selected; the first match in the listed priority order wins. The
// second return is false when no keyword is present, meaning no level
// filter applies.
func DetectLevel(question string) (Level, bool) {
	q := strings.ToLower(question)
	switch {
	case strings.Contains(q, "state"):
		return LevelState, true
	case strings.Contains(q, "county"), strings.Contains(q, "counties"):
		return LevelCounty, true
	case strings.Contains(q, "city"), strings.Contains(q, "cities"), strings.Contains(q, "place"):
		return LevelPlace, true
	}
	return "", false
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

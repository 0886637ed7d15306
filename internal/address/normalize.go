// Package address canonicalizes free-text US addresses into a comparable form.
//
// Normalization is deliberately forgiving: components that cannot be parsed
// are left absent and the call never fails. The normalized string is the
// identity key used by the resolver, so two renderings of the same address
// must collapse to the same output.
package address

import (
	"regexp"
	"strings"
)

// Components holds the parsed parts of an address. Unparsed parts are empty.
type Components struct {
	StreetNumber string `json:"street_number,omitempty"`
	StreetName   string `json:"street_name,omitempty"`
	Unit         string `json:"unit,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	Zip          string `json:"zip,omitempty"`
}

// Empty reports whether no component was parsed.
func (c Components) Empty() bool {
	return c == Components{}
}

// Normalized is the result of normalizing a raw address string.
type Normalized struct {
	Normalized string     `json:"normalized"`
	Components Components `json:"components"`
}

// streetAbbrev maps uppercase street-type tokens to their canonical USPS
// abbreviations. Already-abbreviated forms map to themselves so repeated
// normalization is idempotent.
var streetAbbrev = map[string]string{
	"STREET": "ST", "ST": "ST",
	"AVENUE": "AVE", "AVE": "AVE", "AV": "AVE",
	"ROAD": "RD", "RD": "RD",
	"BOULEVARD": "BLVD", "BLVD": "BLVD",
	"DRIVE": "DR", "DR": "DR",
	"LANE": "LN", "LN": "LN",
	"COURT": "CT", "CT": "CT",
	"CIRCLE": "CIR", "CIR": "CIR",
	"PLACE": "PL", "PL": "PL",
	"PARKWAY": "PKWY", "PKWY": "PKWY",
	"HIGHWAY": "HWY", "HWY": "HWY",
	"TERRACE": "TER", "TER": "TER",
	"TRAIL": "TRL", "TRL": "TRL",
	"WAY": "WAY",
	"NORTH": "N", "N": "N",
	"SOUTH": "S", "S": "S",
	"EAST": "E", "E": "E",
	"WEST": "W", "W": "W",
	"NORTHEAST": "NE", "NE": "NE",
	"NORTHWEST": "NW", "NW": "NW",
	"SOUTHEAST": "SE", "SE": "SE",
	"SOUTHWEST": "SW", "SW": "SW",
}

// unitDesignators are tokens that introduce a unit/building qualifier. The
// qualifier is preserved verbatim (uppercased); differing units mean
// different leads and must not collapse.
var unitDesignators = map[string]bool{
	"APT": true, "APARTMENT": true, "STE": true, "SUITE": true,
	"UNIT": true, "BLDG": true, "BUILDING": true, "FL": true,
	"FLOOR": true, "RM": true, "ROOM": true, "#": true,
}

// stateAbbrev maps uppercase full state names to their two-letter codes.
var stateAbbrev = map[string]string{
	"ALABAMA": "AL", "ALASKA": "AK", "ARIZONA": "AZ", "ARKANSAS": "AR",
	"CALIFORNIA": "CA", "COLORADO": "CO", "CONNECTICUT": "CT", "DELAWARE": "DE",
	"FLORIDA": "FL", "GEORGIA": "GA", "HAWAII": "HI", "IDAHO": "ID",
	"ILLINOIS": "IL", "INDIANA": "IN", "IOWA": "IA", "KANSAS": "KS",
	"KENTUCKY": "KY", "LOUISIANA": "LA", "MAINE": "ME", "MARYLAND": "MD",
	"MASSACHUSETTS": "MA", "MICHIGAN": "MI", "MINNESOTA": "MN", "MISSISSIPPI": "MS",
	"MISSOURI": "MO", "MONTANA": "MT", "NEBRASKA": "NE", "NEVADA": "NV",
	"NEW HAMPSHIRE": "NH", "NEW JERSEY": "NJ", "NEW MEXICO": "NM", "NEW YORK": "NY",
	"NORTH CAROLINA": "NC", "NORTH DAKOTA": "ND", "OHIO": "OH", "OKLAHOMA": "OK",
	"OREGON": "OR", "PENNSYLVANIA": "PA", "RHODE ISLAND": "RI", "SOUTH CAROLINA": "SC",
	"SOUTH DAKOTA": "SD", "TENNESSEE": "TN", "TEXAS": "TX", "UTAH": "UT",
	"VERMONT": "VT", "VIRGINIA": "VA", "WASHINGTON": "WA", "WEST VIRGINIA": "WV",
	"WISCONSIN": "WI", "WYOMING": "WY", "DISTRICT OF COLUMBIA": "DC",
}

var twoLetterState = func() map[string]bool {
	m := make(map[string]bool, len(stateAbbrev))
	for _, abbr := range stateAbbrev {
		m[abbr] = true
	}
	return m
}()

var (
	zipPattern    = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
	numberPattern = regexp.MustCompile(`^\d+[A-Z]?$`)
	spacePattern  = regexp.MustCompile(`\s+`)
)

// Normalize canonicalizes a raw address string. It never fails: when nothing
// is parseable the uppercased raw string is returned with empty components.
func Normalize(raw string) Normalized {
	upper := strings.ToUpper(strings.TrimSpace(raw))
	upper = spacePattern.ReplaceAllString(upper, " ")
	if upper == "" {
		return Normalized{}
	}

	comps := parseComponents(upper)
	norm := normalizeTokens(upper)

	return Normalized{Normalized: norm, Components: comps}
}

// normalizeTokens applies the street-type abbreviation table token by token
// and folds full state names, splitting on commas so punctuation never sticks
// to a token.
func normalizeTokens(upper string) string {
	segments := strings.Split(upper, ",")
	for i, seg := range segments {
		tokens := strings.Fields(seg)

		// Fold a full state name, with or without a trailing zip, to its
		// two-letter code so "Illinois 62704" and "IL 62704" compare equal.
		// Must run before the token table, which would split "NORTH CAROLINA"
		// into "N CAROLINA".
		zip := ""
		body := tokens
		if n := len(tokens); n > 0 && zipPattern.MatchString(tokens[n-1]) {
			zip = tokens[n-1]
			body = tokens[:n-1]
		}
		if abbr, ok := stateAbbrev[strings.Join(body, " ")]; ok {
			tokens = []string{abbr}
			if zip != "" {
				tokens = append(tokens, zip)
			}
			segments[i] = strings.Join(tokens, " ")
			continue
		}

		for j, tok := range tokens {
			if abbr, ok := streetAbbrev[tok]; ok {
				tokens[j] = abbr
			}
		}
		segments[i] = strings.Join(tokens, " ")
	}

	// Drop empty segments left by stray commas.
	out := segments[:0]
	for _, seg := range segments {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return strings.Join(out, ", ")
}

// parseComponents extracts structured parts from an uppercased address. The
// heuristic targets the common "NUMBER STREET [UNIT], CITY, STATE ZIP" shape;
// anything it cannot place is simply omitted.
func parseComponents(upper string) Components {
	var c Components

	segments := strings.Split(upper, ",")
	for i := range segments {
		segments[i] = strings.TrimSpace(segments[i])
	}

	// First segment: street number, street name, optional unit suffix.
	if len(segments) > 0 && segments[0] != "" {
		tokens := strings.Fields(segments[0])
		if len(tokens) > 0 && numberPattern.MatchString(tokens[0]) {
			c.StreetNumber = tokens[0]
			tokens = tokens[1:]
		}

		// Peel a trailing unit qualifier: "APT 2", "SUITE 300", "#5".
		for i, tok := range tokens {
			if unitDesignators[tok] {
				c.Unit = strings.Join(tokens[i:], " ")
				tokens = tokens[:i]
				break
			}
			if strings.HasPrefix(tok, "#") && len(tok) > 1 {
				c.Unit = strings.Join(tokens[i:], " ")
				tokens = tokens[:i]
				break
			}
		}

		for i, tok := range tokens {
			if abbr, ok := streetAbbrev[tok]; ok {
				tokens[i] = abbr
			}
		}
		c.StreetName = strings.Join(tokens, " ")
	}

	// Remaining segments: city, then state and zip in the tail.
	tail := segments[1:]
	for _, seg := range tail {
		if seg == "" {
			continue
		}
		tokens := strings.Fields(seg)
		var rest []string
		for _, tok := range tokens {
			switch {
			case zipPattern.MatchString(tok):
				c.Zip = tok
			case twoLetterState[tok] && c.State == "":
				c.State = tok
			default:
				rest = append(rest, tok)
			}
		}
		joined := strings.Join(rest, " ")
		if joined == "" {
			continue
		}
		if abbr, ok := stateAbbrev[joined]; ok && c.State == "" {
			c.State = abbr
			continue
		}
		if (unitDesignators[rest[0]] || strings.HasPrefix(rest[0], "#")) && c.Unit == "" {
			c.Unit = joined
			continue
		}
		if c.City == "" {
			c.City = joined
		}
	}

	return c
}

package transform

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// venueAliases maps the spellings listings use to one canonical name.
// Keys are lower case with single spaces.
var venueAliases = map[string]string{
	"ryman":                            "Ryman Auditorium",
	"the ryman":                        "Ryman Auditorium",
	"ryman auditorium":                 "Ryman Auditorium",
	"grand ole opry":                   "Grand Ole Opry House",
	"the grand ole opry":               "Grand Ole Opry House",
	"opry house":                       "Grand Ole Opry House",
	"grand ole opry house":             "Grand Ole Opry House",
	"bridgestone":                      "Bridgestone Arena",
	"bridgestone arena":                "Bridgestone Arena",
	"nissan stadium":                   "Nissan Stadium",
	"lp field":                         "Nissan Stadium",
	"ascend amphitheater":              "Ascend Amphitheater",
	"ascend":                           "Ascend Amphitheater",
	"tpac":                             "Tennessee Performing Arts Center",
	"tennessee performing arts center": "Tennessee Performing Arts Center",
	"schermerhorn":                     "Schermerhorn Symphony Center",
	"schermerhorn symphony center":     "Schermerhorn Symphony Center",
	"bluebird":                         "The Bluebird Cafe",
	"bluebird cafe":                    "The Bluebird Cafe",
	"the bluebird cafe":                "The Bluebird Cafe",
	"station inn":                      "The Station Inn",
	"the station inn":                  "The Station Inn",
	"exit/in":                          "Exit/In",
	"exit in":                          "Exit/In",
	"geodis park":                      "GEODIS Park",
	"first horizon park":               "First Horizon Park",
}

// StandardizeVenue normalizes known venue aliases and the casing of
// shouted or all-lower names. Other names only get their whitespace tidied.
func StandardizeVenue(value string) (string, error) {
	s := strings.Join(strings.Fields(value), " ")
	if s == "" {
		return "", fmt.Errorf("empty venue name")
	}
	if canonical, ok := venueAliases[strings.ToLower(s)]; ok {
		return canonical, nil
	}
	if isSingleCase(s) {
		return cases.Title(language.English).String(s), nil
	}
	return s, nil
}

// isSingleCase reports whether every letter in s has the same case.
func isSingleCase(s string) bool {
	var upper, lower bool
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		if unicode.IsUpper(r) {
			upper = true
		} else if unicode.IsLower(r) {
			lower = true
		}
	}
	return upper != lower
}

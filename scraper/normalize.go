package scraper

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// numberRegexp matches German-formatted numbers ("1.234,56", "850", "75,5")
// and plain decimals ("3.5"). A dot followed by exactly three digits is a
// thousands separator.
var numberRegexp = regexp.MustCompile(`\d{1,3}(?:\.\d{3})+(?:,\d+)?|\d+(?:[.,]\d+)?`)

// ParseNumber extracts the first number from text such as "1.150 € VB",
// "75,5 m²" or "3 Zi.". It returns nil when no number is present.
func ParseNumber(raw string) *float64 {
	match := numberRegexp.FindString(raw)
	if match == "" {
		return nil
	}

	if thousandsGrouped(match) {
		match = strings.ReplaceAll(match, ".", "")
	}
	match = strings.Replace(match, ",", ".", 1)

	val, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return nil
	}
	return &val
}

// thousandsGrouped reports whether every dot in s is followed by exactly three
// digits and then a comma, another dot or the end.
func thousandsGrouped(s string) bool {
	intPart := s
	if i := strings.IndexByte(s, ','); i >= 0 {
		intPart = s[:i]
	}
	groups := strings.Split(intPart, ".")
	if len(groups) < 2 {
		return false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return false
		}
	}
	return true
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	fields := strings.FieldsFunc(s, unicode.IsSpace)
	return strings.Join(fields, " ")
}

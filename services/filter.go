package services

import "strings"

// Filter flags listings whose description contains a negative keyword.
type Filter struct {
	keywords []string
}

// NewFilter lower-cases keywords once; blank entries are dropped.
func NewFilter(keywords []string) *Filter {
	f := &Filter{}
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			f.keywords = append(f.keywords, k)
		}
	}
	return f
}

// AnalyzeDescription reports whether description is suitable and which
// keywords matched. An empty description is always suitable.
func (f *Filter) AnalyzeDescription(description string) (bool, []string) {
	if description == "" {
		return true, nil
	}

	lower := strings.ToLower(description)
	var matched []string
	for _, k := range f.keywords {
		if strings.Contains(lower, k) {
			matched = append(matched, k)
		}
	}
	return len(matched) == 0, matched
}

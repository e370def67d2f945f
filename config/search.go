package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// District is one search target: a named area and the site's location id for it.
type District struct {
	Name       string `yaml:"name"`
	LocationID string `yaml:"location_id"`
}

// SearchCriteria are the fixed filters applied to every district.
type SearchCriteria struct {
	MinRooms  int        `yaml:"min_rooms"`
	MaxRooms  int        `yaml:"max_rooms"`
	MinSize   float64    `yaml:"min_size"`
	MaxSize   float64    `yaml:"max_size"`
	MaxPrice  int        `yaml:"max_price"`
	Districts []District `yaml:"districts"`
}

// Selectors describe the site markup. They are data, so a changed page
// layout means a changed config file, not changed code.
type Selectors struct {
	ConsentButton        string `yaml:"consent_button"`
	NoResults            string `yaml:"no_results"`
	NoResultsText        string `yaml:"no_results_text"`
	ResultsContainer     string `yaml:"results_container"`
	Entry                string `yaml:"entry"`
	IDAttr               string `yaml:"id_attr"`
	URLAttr              string `yaml:"url_attr"`
	Title                string `yaml:"title"`
	Price                string `yaml:"price"`
	Tags                 string `yaml:"tags"`
	Location             string `yaml:"location"`
	Preview              string `yaml:"preview"`
	DescriptionContainer string `yaml:"description_container"`
	DescriptionText      string `yaml:"description_text"`
}

// DefaultSearchCriteria returns the Bremen districts and apartment filters.
func DefaultSearchCriteria() SearchCriteria {
	return SearchCriteria{
		MinRooms: 3,
		MaxRooms: 4,
		MinSize:  70,
		MaxSize:  95,
		MaxPrice: 973,
		Districts: []District{
			{Name: "woltmershausen", LocationID: "26"},
			{Name: "neustadt", LocationID: "41"},
			{Name: "arsten", LocationID: "18881"},
			{Name: "habenhausen", LocationID: "17479"},
			{Name: "huckelriede", LocationID: "13502"},
			{Name: "kattenturm", LocationID: "21199"},
		},
	}
}

// DefaultSelectors matches the kleinanzeigen.de markup.
func DefaultSelectors() Selectors {
	return Selectors{
		ConsentButton:        "#gdpr-banner-accept",
		NoResults:            "span.breadcrump-summary",
		NoResultsText:        "keine Ergebnisse",
		ResultsContainer:     "#srchrslt-adtable",
		Entry:                "article.aditem",
		IDAttr:               "data-adid",
		URLAttr:              "data-href",
		Title:                "a.ellipsis",
		Price:                "p.aditem-main--middle--price-shipping--price",
		Tags:                 "span.simpletag",
		Location:             "div.aditem-main--top--left",
		Preview:              "p.aditem-main--middle--description",
		DescriptionContainer: "#viewad-description",
		DescriptionText:      "#viewad-description-text",
	}
}

// DefaultNegativeKeywords are phrases that mark a listing as unsuitable.
func DefaultNegativeKeywords() []string {
	return []string{
		"keine leistungsempfänger",
		"keine jobcenter",
		"keine sozialleistungen",
		"keine hartz",
		"keine arbeitslosengeld",
		"nur berufstätige",
		"nur an berufstätige",
		"keine alg",
		"keine arbeitslosen",
		"keine sozialhilfe",
		"nur mit festanstellung",
		"nur mit unbefristeter festanstellung",
		"nur arbeitnehmer",
	}
}

// searchFile is the layout of SEARCH_CONFIG_FILE. Keys that are absent keep
// their current values.
type searchFile struct {
	Search           *SearchCriteria `yaml:"search"`
	Selectors        *Selectors      `yaml:"selectors"`
	NegativeKeywords []string        `yaml:"negative_keywords"`
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read search file %q: %w", path, err)
	}
	return c.applyYAML(data)
}

func (c *Config) applyYAML(data []byte) error {
	f := searchFile{
		Search:           &c.Search,
		Selectors:        &c.Selectors,
		NegativeKeywords: c.NegativeKeywords,
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("config: parse search file: %w", err)
	}
	c.NegativeKeywords = f.NegativeKeywords
	return nil
}

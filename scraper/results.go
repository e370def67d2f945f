package scraper

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"apartment-scraper/config"
	"apartment-scraper/models"
)

// ParseResults extracts listings from the rendered results container.
// Each entry is handled on its own: a missing price, size or room count
// leaves that field nil, and an entry without an id or link is skipped.
// The second return value is the number of skipped entries.
func ParseResults(html, baseURL string, sel config.Selectors) ([]models.RawListing, int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, 0, fmt.Errorf("parse results html: %w", err)
	}

	var (
		listings []models.RawListing
		skipped  int
	)
	doc.Find(sel.Entry).Each(func(_ int, s *goquery.Selection) {
		listing, ok := parseEntry(s, baseURL, sel)
		if !ok {
			skipped++
			return
		}
		listings = append(listings, listing)
	})

	return listings, skipped, nil
}

func parseEntry(s *goquery.Selection, baseURL string, sel config.Selectors) (models.RawListing, bool) {
	id := strings.TrimSpace(s.AttrOr(sel.IDAttr, ""))
	href := strings.TrimSpace(s.AttrOr(sel.URLAttr, ""))
	if id == "" || href == "" {
		return models.RawListing{}, false
	}

	listing := models.RawListing{
		ListingID:   id,
		URL:         resolveURL(baseURL, href),
		Title:       childText(s, sel.Title),
		Location:    childText(s, sel.Location),
		Price:       ParseNumber(childText(s, sel.Price)),
		Description: childText(s, sel.Preview),
	}

	s.Find(sel.Tags).Each(func(_ int, tag *goquery.Selection) {
		text := normaliseText(tag.Text())
		switch {
		case strings.Contains(text, "m²"):
			listing.Size = ParseNumber(text)
		case strings.Contains(text, "Zi."):
			listing.Rooms = ParseNumber(strings.TrimRight(text, "."))
		}
	})

	return listing, true
}

func childText(s *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return normaliseText(s.Find(selector).First().Text())
}

// resolveURL turns a site-relative path into an absolute URL.
func resolveURL(baseURL, href string) string {
	ref, err := url.Parse(href)
	if err != nil || ref.IsAbs() {
		return href
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(href, "/")
	}
	return base.ResolveReference(ref).String()
}
